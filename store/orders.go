package store

import (
	"context"
	"database/sql"
	"time"
)

const (
	OrderActive    = "active"
	OrderComplete  = "complete"
	OrderCancelled = "cancelled"
)

// Order is the demand container picks are made against. Order maintenance
// lives outside this service; the create helpers here exist for seeding.
type Order struct {
	ID        int64      `json:"id"`
	Label     string     `json:"label"`
	OrderDate *time.Time `json:"order_date,omitempty"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
}

// Tool is a production unit belonging to one order.
type Tool struct {
	ID      int64  `json:"id"`
	OrderID int64  `json:"order_id"`
	Label   string `json:"label"`
}

const orderSelectCols = `id, label, order_date, status, created_at`

func scanOrder(row interface{ Scan(...any) error }) (*Order, error) {
	var o Order
	var orderDate, createdAt any
	if err := row.Scan(&o.ID, &o.Label, &orderDate, &o.Status, &createdAt); err != nil {
		return nil, err
	}
	o.OrderDate = parseTimePtr(orderDate)
	o.CreatedAt = parseTime(createdAt)
	return &o, nil
}

func scanOrders(rows *sql.Rows) ([]*Order, error) {
	var orders []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (db *DB) CreateOrder(ctx context.Context, o *Order) error {
	if o.Status == "" {
		o.Status = OrderActive
	}
	id, err := db.insertID(ctx, `INSERT INTO orders (label, order_date, status) VALUES (?, ?, ?)`,
		o.Label, db.timePtrArg(o.OrderDate), o.Status)
	if err != nil {
		return err
	}
	o.ID = id
	return nil
}

func (db *DB) GetOrder(ctx context.Context, id int64) (*Order, error) {
	row := db.QueryRowContext(ctx, db.Q(`SELECT `+orderSelectCols+` FROM orders WHERE id=?`), id)
	return scanOrder(row)
}

func (db *DB) SetOrderStatus(ctx context.Context, id int64, status string) error {
	_, err := db.ExecContext(ctx, db.Q(`UPDATE orders SET status=? WHERE id=?`), status, id)
	return err
}

// ListActiveOrders returns one page of active orders in id order.
func (db *DB) ListActiveOrders(ctx context.Context, page Page) ([]*Order, error) {
	page, err := page.normalize()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, db.Q(`SELECT `+orderSelectCols+` FROM orders WHERE status=? ORDER BY id LIMIT ? OFFSET ?`),
		OrderActive, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (db *DB) CreateTool(ctx context.Context, t *Tool) error {
	id, err := db.insertID(ctx, `INSERT INTO tools (order_id, label) VALUES (?, ?)`, t.OrderID, t.Label)
	if err != nil {
		return err
	}
	t.ID = id
	return nil
}

func (db *DB) GetTool(ctx context.Context, id int64) (*Tool, error) {
	var t Tool
	err := db.QueryRowContext(ctx, db.Q(`SELECT id, order_id, label FROM tools WHERE id=?`), id).
		Scan(&t.ID, &t.OrderID, &t.Label)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListToolsByOrders returns one page of tools for at most MaxFilterIDs orders.
func (db *DB) ListToolsByOrders(ctx context.Context, orderIDs []int64, page Page) ([]*Tool, error) {
	if err := checkFilter(orderIDs); err != nil {
		return nil, err
	}
	page, err := page.normalize()
	if err != nil {
		return nil, err
	}
	if len(orderIDs) == 0 {
		return nil, nil
	}
	args := append(int64Args(orderIDs), page.Limit, page.Offset)
	rows, err := db.QueryContext(ctx, db.Q(`SELECT id, order_id, label FROM tools WHERE order_id IN `+inClause(len(orderIDs))+` ORDER BY id LIMIT ? OFFSET ?`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tools []*Tool
	for rows.Next() {
		var t Tool
		if err := rows.Scan(&t.ID, &t.OrderID, &t.Label); err != nil {
			return nil, err
		}
		tools = append(tools, &t)
	}
	return tools, rows.Err()
}
