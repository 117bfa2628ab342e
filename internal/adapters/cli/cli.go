package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"branch-supply/internal/app"
	"branch-supply/internal/core"
)

const usage = `usage: app <command> [flags] [args]

commands:
  list               list orders of the active branch (Admin: all branches)
  mine               list orders of every assigned branch
  pending            count orders awaiting shipment and receipt
  show <id>          show one order with its lines
  history <id>       show the audit trail of an order
  ship <id>          ship an order (Admin)
  confirm <id>       confirm receipt of an order
  cancel <id>        cancel an order (Admin)
  suggest <id>       draft a receive note without confirming

flags:
`

type params struct {
	user     string
	password string
	branch   int
	status   string
	limit    int
	offset   int
	note     string
	key      string
	items    []string
	asJSON   bool
}

func newFlagSet(p *params) *pflag.FlagSet {
	fs := pflag.NewFlagSet("app", pflag.ContinueOnError)
	fs.StringVarP(&p.user, "user", "u", os.Getenv("SUPPLY_USER"), "username to act as (env SUPPLY_USER)")
	fs.StringVar(&p.password, "password", "", "password (default env SUPPLY_PASSWORD)")
	fs.IntVarP(&p.branch, "branch", "b", 0, "active branch id")
	fs.StringVarP(&p.status, "status", "s", "", "status filter: CREATED, IN_TRANSIT, CONFIRMED, CANCELLED")
	fs.IntVar(&p.limit, "limit", 0, "page size")
	fs.IntVar(&p.offset, "offset", 0, "page offset")
	fs.StringVarP(&p.note, "note", "n", "", "ship or receive note")
	fs.StringVar(&p.key, "key", "", "idempotency key (default: generated)")
	fs.StringArrayVarP(&p.items, "item", "i", nil, "line quantity as <line-id>=<qty>, repeatable")
	fs.BoolVar(&p.asJSON, "json", false, "output as JSON")
	return fs
}

// Run executes a one-shot CLI command. args is os.Args[1:]; the first
// element is the subcommand name.
func Run(ctx context.Context, svc app.ApplicationService, args []string, out io.Writer) error {
	var p params
	fs := newFlagSet(&p)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprint(out, usage)
		fs.PrintDefaults()
	}
	if len(args) == 0 {
		fs.Usage()
		return errors.New("no command given")
	}
	cmd := args[0]
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if p.password == "" {
		p.password = os.Getenv("SUPPLY_PASSWORD")
	}

	c, err := login(ctx, svc, p)
	if err != nil {
		return err
	}
	r := runner{svc: svc, c: c, p: p, out: out}

	switch cmd {
	case "list", "ls":
		return r.list(ctx, svc.ListOrders)
	case "mine":
		return r.list(ctx, svc.ListMyOrders)
	case "pending":
		return r.pending(ctx)
	case "show", "get":
		return r.withID(fs.Args(), func(id int) error { return r.show(ctx, id) })
	case "history":
		return r.withID(fs.Args(), func(id int) error { return r.history(ctx, id) })
	case "ship":
		return r.withID(fs.Args(), func(id int) error { return r.ship(ctx, id) })
	case "confirm", "receive":
		return r.withID(fs.Args(), func(id int) error { return r.confirm(ctx, id) })
	case "cancel":
		return r.withID(fs.Args(), func(id int) error { return r.cancel(ctx, id) })
	case "suggest":
		return r.withID(fs.Args(), func(id int) error { return r.suggest(ctx, id) })
	case "help":
		fs.Usage()
		return nil
	default:
		return fmt.Errorf("unknown command: %s (run 'app help')", cmd)
	}
}

func login(ctx context.Context, svc app.ApplicationService, p params) (app.Caller, error) {
	if p.user == "" {
		return app.Caller{}, errors.New("--user is required")
	}
	sess, err := svc.Login(ctx, p.user, p.password)
	if err != nil {
		return app.Caller{}, fmt.Errorf("login as %s: %w", p.user, err)
	}
	c := app.Caller{UserID: sess.Identity.UserID}
	if p.branch != 0 {
		branch := p.branch
		c.BranchHint = &branch
	}
	return c, nil
}

type runner struct {
	svc app.ApplicationService
	c   app.Caller
	p   params
	out io.Writer
}

func (r runner) withID(args []string, fn func(int) error) error {
	if len(args) != 1 {
		return errors.New("expected exactly one order id")
	}
	id, err := strconv.Atoi(args[0])
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid order id %q", args[0])
	}
	return fn(id)
}

func (r runner) printJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r runner) list(ctx context.Context, fn func(context.Context, app.Caller, app.ListOrdersRequest) (*app.OrderListResult, error)) error {
	res, err := fn(ctx, r.c, app.ListOrdersRequest{Status: r.p.status, Limit: r.p.limit, Offset: r.p.offset})
	if err != nil {
		return err
	}
	if r.p.asJSON {
		return r.printJSON(res.Orders)
	}
	PrintOrders(r.out, res.Orders)
	return nil
}

func (r runner) pending(ctx context.Context) error {
	res, err := r.svc.PendingCount(ctx, r.c, nil)
	if err != nil {
		return err
	}
	if r.p.asJSON {
		return r.printJSON(res)
	}
	fmt.Fprintf(r.out, "awaiting shipment: %d\nin transit:        %d\n", res.Count, res.InTransit)
	return nil
}

func (r runner) show(ctx context.Context, id int) error {
	res, err := r.svc.GetOrder(ctx, r.c, id)
	if err != nil {
		return err
	}
	return r.order(res)
}

func (r runner) order(res *app.OrderResult) error {
	if r.p.asJSON {
		return r.printJSON(res.Order)
	}
	PrintOrder(r.out, res.Order)
	if len(res.AllowedEvents) > 0 {
		names := make([]string, len(res.AllowedEvents))
		for i, ev := range res.AllowedEvents {
			names[i] = string(ev)
		}
		fmt.Fprintf(r.out, "Next:     %s\n", strings.Join(names, ", "))
	}
	return nil
}

func (r runner) history(ctx context.Context, id int) error {
	res, err := r.svc.GetOrderHistory(ctx, r.c, id)
	if err != nil {
		return err
	}
	if r.p.asJSON {
		return r.printJSON(res.Events)
	}
	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "AT\tEVENT\tFROM\tTO\tACTOR\tNOTE")
	for _, e := range res.Events {
		from := "-"
		if e.FromStatus != nil {
			from = string(*e.FromStatus)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
			e.At.Format("2006-01-02 15:04"), e.Event, from, e.ToStatus, e.ActorID, deref(e.Note))
	}
	return tw.Flush()
}

func (r runner) idempotencyKey() string {
	if r.p.key != "" {
		return r.p.key
	}
	return uuid.NewString()
}

func (r runner) ship(ctx context.Context, id int) error {
	qty, err := parseItems(r.p.items)
	if err != nil {
		return err
	}
	req := app.ShipOrderRequest{OrderID: id, ShipNote: r.p.note, IdempotencyKey: r.idempotencyKey()}
	for _, q := range qty {
		req.Items = append(req.Items, app.ShipItem{LineID: q.lineID, QuantityShipped: q.qty})
	}
	res, err := r.svc.ShipOrder(ctx, r.c, req)
	if err != nil {
		return err
	}
	return r.order(res)
}

func (r runner) receiveItems() ([]app.ReceiveItem, error) {
	qty, err := parseItems(r.p.items)
	if err != nil {
		return nil, err
	}
	var items []app.ReceiveItem
	for _, q := range qty {
		items = append(items, app.ReceiveItem{LineID: q.lineID, QuantityReceived: q.qty})
	}
	return items, nil
}

func (r runner) confirm(ctx context.Context, id int) error {
	items, err := r.receiveItems()
	if err != nil {
		return err
	}
	res, err := r.svc.ConfirmOrder(ctx, r.c, app.ConfirmOrderRequest{
		OrderID:        id,
		ReceiveNote:    r.p.note,
		Items:          items,
		IdempotencyKey: r.idempotencyKey(),
	})
	if err != nil {
		return err
	}
	return r.order(res)
}

func (r runner) cancel(ctx context.Context, id int) error {
	res, err := r.svc.CancelOrder(ctx, r.c, app.CancelOrderRequest{OrderID: id, IdempotencyKey: r.idempotencyKey()})
	if err != nil {
		return err
	}
	return r.order(res)
}

func (r runner) suggest(ctx context.Context, id int) error {
	items, err := r.receiveItems()
	if err != nil {
		return err
	}
	res, err := r.svc.SuggestReceiveNote(ctx, r.c, app.SuggestNoteRequest{OrderID: id, Items: items})
	if err != nil {
		return err
	}
	if r.p.asJSON {
		return r.printJSON(res)
	}
	fmt.Fprintln(r.out, res.Note)
	return nil
}

type lineQty struct {
	lineID int
	qty    int
}

// parseItems reads <line-id>=<qty> pairs.
func parseItems(raw []string) ([]lineQty, error) {
	out := make([]lineQty, 0, len(raw))
	for _, item := range raw {
		id, qty, ok := strings.Cut(item, "=")
		if !ok {
			return nil, &core.ValidationError{Field: "item", Message: fmt.Sprintf("%q is not <line-id>=<qty>", item)}
		}
		lineID, err1 := strconv.Atoi(strings.TrimSpace(id))
		n, err2 := strconv.Atoi(strings.TrimSpace(qty))
		if err1 != nil || err2 != nil {
			return nil, &core.ValidationError{Field: "item", Message: fmt.Sprintf("%q is not <line-id>=<qty>", item)}
		}
		out = append(out, lineQty{lineID: lineID, qty: n})
	}
	return out, nil
}
