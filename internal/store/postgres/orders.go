// Package postgres implements the order and user repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"branch-supply/internal/core"
)

// uniqueViolation is the SQLSTATE of a unique constraint failure.
const uniqueViolation = "23505"

// pgxQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, enabling shared query helpers.
type pgxQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type orderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository backed by PostgreSQL.
func NewOrderRepository(pool *pgxpool.Pool) core.OrderRepository {
	return &orderRepository{pool: pool}
}

const orderColumns = `
	po.id, po.origin_branch_id, COALESCE(ob.name, ''), po.destination_branch_id, COALESCE(db.name, ''),
	po.status, po.note, po.ship_note, po.receive_note, po.created_by, po.created_at,
	po.shipped_at, po.confirmed_at, po.cancelled_at, po.last_transition_key, po.version`

const orderFrom = `
	FROM purchase_orders po
	LEFT JOIN branches ob ON ob.id = po.origin_branch_id
	LEFT JOIN branches db ON db.id = po.destination_branch_id`

func scanOrder(row pgx.Row, po *core.PurchaseOrder) error {
	var status string
	if err := row.Scan(
		&po.ID, &po.OriginBranchID, &po.OriginBranchName, &po.DestinationBranchID, &po.DestinationBranchName,
		&status, &po.Note, &po.ShipNote, &po.ReceiveNote, &po.CreatedBy, &po.CreatedAt,
		&po.ShippedAt, &po.ConfirmedAt, &po.CancelledAt, &po.LastTransitionKey, &po.Version,
	); err != nil {
		return err
	}
	po.Status = core.OrderStatus(status)
	return nil
}

func (r *orderRepository) Create(ctx context.Context, po *core.PurchaseOrder, ev core.OrderEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	createdAt := po.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO purchase_orders (origin_branch_id, destination_branch_id, status, note, created_by, created_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, 1)
		RETURNING id, created_at, version`,
		po.OriginBranchID, po.DestinationBranchID, string(po.Status), po.Note, po.CreatedBy, createdAt,
	).Scan(&po.ID, &po.CreatedAt, &po.Version)
	if err != nil {
		return fmt.Errorf("insert purchase order: %w", err)
	}

	for i := range po.Lines {
		l := &po.Lines[i]
		l.OrderID = po.ID
		if err := tx.QueryRow(ctx, `
			INSERT INTO purchase_order_lines
				(order_id, line_number, product_id, sku, product_name, unit, unit_cost,
				 quantity_ordered, quantity_shipped, quantity_received)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			po.ID, l.LineNumber, l.ProductID, l.SKU, l.ProductName, l.Unit, l.UnitCost,
			l.QuantityOrdered, l.QuantityShipped, l.QuantityReceived,
		).Scan(&l.ID); err != nil {
			return fmt.Errorf("insert line %d: %w", l.LineNumber, err)
		}
	}

	ev.OrderID = po.ID
	if err := insertEvent(ctx, tx, &ev); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, ev *core.OrderEvent) error {
	var from *string
	if ev.FromStatus != nil {
		s := string(*ev.FromStatus)
		from = &s
	}
	at := ev.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO order_events (order_id, event, from_status, to_status, actor_id, note, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		ev.OrderID, string(ev.Event), from, string(ev.ToStatus), ev.ActorID, ev.Note, at,
	).Scan(&ev.ID)
	if err != nil {
		return fmt.Errorf("insert order event: %w", err)
	}
	return nil
}

func (r *orderRepository) Get(ctx context.Context, id int) (*core.PurchaseOrder, error) {
	return r.load(ctx, r.pool, id, false)
}

// load reads an order with lines and evidence. With forUpdate the order row
// stays locked until q's transaction ends.
func (r *orderRepository) load(ctx context.Context, q pgxQuerier, id int, forUpdate bool) (*core.PurchaseOrder, error) {
	sql := "SELECT" + orderColumns + orderFrom + " WHERE po.id = $1"
	if forUpdate {
		sql += " FOR UPDATE OF po"
	}
	po := &core.PurchaseOrder{}
	if err := scanOrder(q.QueryRow(ctx, sql, id), po); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("purchase order %d: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("load purchase order %d: %w", id, err)
	}

	lines, err := loadLines(ctx, q, id)
	if err != nil {
		return nil, err
	}
	po.Lines = lines

	evidence, err := listEvidence(ctx, q, id)
	if err != nil {
		return nil, err
	}
	po.Evidence = evidence
	return po, nil
}

func loadLines(ctx context.Context, q pgxQuerier, orderID int) ([]core.OrderLine, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, line_number, product_id, sku, product_name, unit, unit_cost,
		       quantity_ordered, quantity_shipped, quantity_received
		FROM purchase_order_lines
		WHERE order_id = $1
		ORDER BY line_number`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query lines: %w", err)
	}
	defer rows.Close()

	var lines []core.OrderLine
	for rows.Next() {
		var l core.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.LineNumber, &l.ProductID, &l.SKU, &l.ProductName, &l.Unit,
			&l.UnitCost, &l.QuantityOrdered, &l.QuantityShipped, &l.QuantityReceived); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func (r *orderRepository) Update(ctx context.Context, id int, fn func(po *core.PurchaseOrder) (*core.OrderEvent, error)) (*core.PurchaseOrder, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	po, err := r.load(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	version := po.Version

	ev, err := fn(po)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return po, nil
	}

	tag, err := tx.Exec(ctx, `
		UPDATE purchase_orders
		SET status = $1, ship_note = $2, receive_note = $3, shipped_at = $4, confirmed_at = $5,
		    cancelled_at = $6, last_transition_key = $7, version = version + 1
		WHERE id = $8 AND version = $9`,
		string(po.Status), po.ShipNote, po.ReceiveNote, po.ShippedAt, po.ConfirmedAt,
		po.CancelledAt, po.LastTransitionKey, id, version,
	)
	if err != nil {
		return nil, fmt.Errorf("update purchase order %d: %w", id, err)
	}
	if tag.RowsAffected() != 1 {
		return nil, fmt.Errorf("purchase order %d changed concurrently: %w", id, core.ErrConflict)
	}

	for _, l := range po.Lines {
		if _, err := tx.Exec(ctx, `
			UPDATE purchase_order_lines
			SET quantity_shipped = $1, quantity_received = $2
			WHERE id = $3 AND order_id = $4`,
			l.QuantityShipped, l.QuantityReceived, l.ID, id,
		); err != nil {
			return nil, fmt.Errorf("update line %d: %w", l.ID, err)
		}
	}

	ev.OrderID = id
	if err := insertEvent(ctx, tx, ev); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return r.Get(ctx, id)
}

// filterArgs renders the optional status and branch conditions shared by List
// and CountByStatus.
func filterArgs(status *core.OrderStatus, branchIDs []int) (string, []any) {
	where := " WHERE 1=1"
	var args []any
	if status != nil {
		args = append(args, string(*status))
		where += fmt.Sprintf(" AND po.status = $%d", len(args))
	}
	if branchIDs != nil {
		args = append(args, branchIDs)
		where += fmt.Sprintf(" AND po.destination_branch_id = ANY($%d)", len(args))
	}
	return where, args
}

func (r *orderRepository) List(ctx context.Context, f core.RepoFilter) ([]core.OrderSummary, error) {
	where, args := filterArgs(f.Status, f.BranchIDs)
	sql := `
		SELECT po.id, po.origin_branch_id, po.destination_branch_id, COALESCE(db.name, ''), po.status,
		       po.note, po.receive_note, po.created_at, po.shipped_at, po.confirmed_at,
		       COUNT(l.id), COALESCE(SUM(l.quantity_ordered), 0), COALESCE(SUM(l.quantity_shipped), 0),
		       COALESCE(SUM(l.quantity_received), 0), COALESCE(SUM(l.quantity_ordered * l.unit_cost), 0)
		FROM purchase_orders po
		LEFT JOIN branches db ON db.id = po.destination_branch_id
		LEFT JOIN purchase_order_lines l ON l.order_id = po.id` + where + `
		GROUP BY po.id, db.name
		ORDER BY po.created_at DESC, po.id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query purchase orders: %w", err)
	}
	defer rows.Close()

	out := []core.OrderSummary{}
	for rows.Next() {
		var s core.OrderSummary
		var status string
		if err := rows.Scan(&s.ID, &s.OriginBranchID, &s.DestinationBranchID, &s.DestinationBranchName, &status,
			&s.Note, &s.ReceiveNote, &s.CreatedAt, &s.ShippedAt, &s.ConfirmedAt,
			&s.ItemsCount, &s.TotalOrdered, &s.TotalShipped, &s.TotalReceived, &s.TotalCost); err != nil {
			return nil, fmt.Errorf("scan purchase order row: %w", err)
		}
		s.Status = core.OrderStatus(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *orderRepository) CountByStatus(ctx context.Context, status core.OrderStatus, branchIDs []int) (int, error) {
	where, args := filterArgs(&status, branchIDs)
	var n int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM purchase_orders po"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count purchase orders: %w", err)
	}
	return n, nil
}

func (r *orderRepository) Events(ctx context.Context, orderID int) ([]core.OrderEvent, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM purchase_orders WHERE id = $1)", orderID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("check purchase order %d: %w", orderID, err)
	}
	if !exists {
		return nil, fmt.Errorf("purchase order %d: %w", orderID, core.ErrNotFound)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, event, from_status, to_status, actor_id, note, at
		FROM order_events
		WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order events: %w", err)
	}
	defer rows.Close()

	var out []core.OrderEvent
	for rows.Next() {
		var ev core.OrderEvent
		var event, to string
		var from *string
		if err := rows.Scan(&ev.ID, &ev.OrderID, &event, &from, &to, &ev.ActorID, &ev.Note, &ev.At); err != nil {
			return nil, fmt.Errorf("scan order event: %w", err)
		}
		ev.Event = core.Event(event)
		ev.ToStatus = core.OrderStatus(to)
		if from != nil {
			s := core.OrderStatus(*from)
			ev.FromStatus = &s
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

const evidenceColumns = `id, order_id, file_name, content_type, size_bytes, checksum, storage_key, uploaded_by, uploaded_at`

func scanEvidence(row pgx.Row) (core.Evidence, error) {
	var e core.Evidence
	err := row.Scan(&e.ID, &e.OrderID, &e.FileName, &e.ContentType, &e.SizeBytes, &e.Checksum,
		&e.StorageKey, &e.UploadedBy, &e.UploadedAt)
	return e, err
}

func (r *orderRepository) AddEvidence(ctx context.Context, e *core.Evidence) error {
	uploadedAt := e.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO purchase_order_evidence
			(order_id, file_name, content_type, size_bytes, checksum, storage_key, uploaded_by, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, uploaded_at`,
		e.OrderID, e.FileName, e.ContentType, e.SizeBytes, e.Checksum, e.StorageKey, e.UploadedBy, uploadedAt,
	).Scan(&e.ID, &e.UploadedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("evidence %q already exists: %w", e.FileName, core.ErrConflict)
		}
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

func (r *orderRepository) ListEvidence(ctx context.Context, orderID int) ([]core.Evidence, error) {
	return listEvidence(ctx, r.pool, orderID)
}

func listEvidence(ctx context.Context, q pgxQuerier, orderID int) ([]core.Evidence, error) {
	rows, err := q.Query(ctx, "SELECT "+evidenceColumns+" FROM purchase_order_evidence WHERE order_id = $1 ORDER BY id", orderID)
	if err != nil {
		return nil, fmt.Errorf("query evidence: %w", err)
	}
	defer rows.Close()

	out := []core.Evidence{}
	for rows.Next() {
		e, err := scanEvidence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *orderRepository) GetEvidence(ctx context.Context, orderID int, fileName string) (*core.Evidence, error) {
	e, err := scanEvidence(r.pool.QueryRow(ctx,
		"SELECT "+evidenceColumns+" FROM purchase_order_evidence WHERE order_id = $1 AND file_name = $2",
		orderID, fileName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("evidence %q on purchase order %d: %w", fileName, orderID, core.ErrNotFound)
		}
		return nil, fmt.Errorf("load evidence: %w", err)
	}
	return &e, nil
}

func (r *orderRepository) DeleteEvidence(ctx context.Context, orderID int, fileName string) (*core.Evidence, error) {
	e, err := scanEvidence(r.pool.QueryRow(ctx,
		"DELETE FROM purchase_order_evidence WHERE order_id = $1 AND file_name = $2 RETURNING "+evidenceColumns,
		orderID, fileName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("evidence %q on purchase order %d: %w", fileName, orderID, core.ErrNotFound)
		}
		return nil, fmt.Errorf("delete evidence: %w", err)
	}
	return &e, nil
}

func (r *orderRepository) EvidenceStorageKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := r.pool.Query(ctx, "SELECT storage_key FROM purchase_order_evidence")
	if err != nil {
		return nil, fmt.Errorf("query storage keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan storage key: %w", err)
		}
		keys[k] = struct{}{}
	}
	return keys, rows.Err()
}
