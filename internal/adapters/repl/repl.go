package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"branch-supply/internal/adapters/cli"
	"branch-supply/internal/app"
)

var errExit = errors.New("exit")

type session struct {
	ctx    context.Context
	svc    app.ApplicationService
	in     *bufio.Reader
	out    io.Writer
	caller app.Caller
}

func (s *session) printf(format string, args ...any) { fmt.Fprintf(s.out, format, args...) }
func (s *session) println(args ...any)               { fmt.Fprintln(s.out, args...) }

// prompt prints label and reads one trimmed line. io.EOF is returned once
// the input is exhausted.
func (s *session) prompt(label string) (string, error) {
	s.printf("%s", label)
	line, err := s.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Run starts the interactive console. It asks for credentials, then reads
// slash commands until /exit or end of input.
func Run(ctx context.Context, svc app.ApplicationService, in *bufio.Reader, out io.Writer) error {
	s := &session{ctx: ctx, svc: svc, in: in, out: out}

	user, err := s.prompt("Username: ")
	if err != nil {
		return err
	}
	pass, err := s.prompt("Password: ")
	if err != nil {
		return err
	}
	sess, err := svc.Login(ctx, user, pass)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	s.caller = app.Caller{UserID: sess.Identity.UserID}

	s.println("Branch Supply")
	s.printf("Signed in as %s (%s), active branch %s\n", sess.Identity.Username, sess.Identity.Role, branchLabel(sess.ActiveBranch))
	s.println("Type /help for commands.")
	s.println(strings.Repeat("-", 70))

	for {
		input, err := s.prompt("\n> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if input == "" {
			continue
		}
		if !strings.HasPrefix(input, "/") {
			s.println("Commands start with /. Type /help for the list.")
			continue
		}
		if err := s.dispatch(input); err != nil {
			if errors.Is(err, errExit) {
				s.println("Goodbye!")
				return nil
			}
			s.printf("Error: %v\n", err)
		}
	}
}

func (s *session) dispatch(input string) error {
	tokens := strings.Fields(strings.TrimPrefix(input, "/"))
	if len(tokens) == 0 {
		return nil
	}
	cmd := strings.ToLower(tokens[0])
	args := tokens[1:]

	switch cmd {
	case "orders", "ls":
		req := app.ListOrdersRequest{}
		if len(args) > 0 {
			req.Status = args[0]
		}
		res, err := s.svc.ListOrders(s.ctx, s.caller, req)
		if err != nil {
			return err
		}
		cli.PrintOrders(s.out, res.Orders)

	case "mine":
		res, err := s.svc.ListMyOrders(s.ctx, s.caller, app.ListOrdersRequest{})
		if err != nil {
			return err
		}
		cli.PrintOrders(s.out, res.Orders)

	case "pending":
		res, err := s.svc.PendingCount(s.ctx, s.caller, nil)
		if err != nil {
			return err
		}
		s.printf("Awaiting shipment: %d\nIn transit:        %d\n", res.Count, res.InTransit)

	case "show":
		id, err := orderArg(args, "/show <order-id>")
		if err != nil {
			return err
		}
		res, err := s.svc.GetOrder(s.ctx, s.caller, id)
		if err != nil {
			return err
		}
		cli.PrintOrder(s.out, res.Order)

	case "branch":
		if len(args) < 1 {
			return errors.New("usage: /branch <branch-id>")
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid branch id %q", args[0])
		}
		next := s.caller
		next.BranchHint = &id
		sess, err := s.svc.Me(s.ctx, next)
		if err != nil {
			return err
		}
		s.caller = next
		s.printf("Active branch is now %s.\n", branchLabel(sess.ActiveBranch))

	case "branches":
		res, err := s.svc.ListBranches(s.ctx, s.caller)
		if err != nil {
			return err
		}
		for _, b := range res.Branches {
			central := ""
			if b.IsCentral {
				central = "  (central)"
			}
			s.printf("  %-4d %s%s\n", b.ID, b.Name, central)
		}

	case "new-order":
		return s.newOrder()

	case "ship":
		id, err := orderArg(args, "/ship <order-id>")
		if err != nil {
			return err
		}
		res, err := s.svc.ShipOrder(s.ctx, s.caller, app.ShipOrderRequest{OrderID: id})
		if err != nil {
			return err
		}
		s.printf("Order #%d is %s.\n", res.Order.ID, res.Order.Status)

	case "receive", "confirm":
		id, err := orderArg(args, "/receive <order-id>")
		if err != nil {
			return err
		}
		return s.receive(id)

	case "cancel":
		id, err := orderArg(args, "/cancel <order-id>")
		if err != nil {
			return err
		}
		res, err := s.svc.CancelOrder(s.ctx, s.caller, app.CancelOrderRequest{OrderID: id})
		if err != nil {
			return err
		}
		s.printf("Order #%d is %s.\n", res.Order.ID, res.Order.Status)

	case "help", "h":
		s.printHelp()

	case "exit", "quit", "q":
		return errExit

	default:
		s.printf("Unknown command: /%s  (type /help for all commands)\n", cmd)
	}
	return nil
}

func orderArg(args []string, usage string) (int, error) {
	if len(args) < 1 {
		return 0, errors.New("usage: " + usage)
	}
	id, err := strconv.Atoi(strings.TrimPrefix(args[0], "#"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid order id %q", args[0])
	}
	return id, nil
}

func branchLabel(id int) string {
	if id == 0 {
		return "ALL"
	}
	return strconv.Itoa(id)
}
