package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
)

// DemandLine is a required part within an order. An empty ToolIDs list means
// the line applies to every tool in the order.
type DemandLine struct {
	ID          int64   `json:"id"`
	OrderID     int64   `json:"order_id"`
	PartNumber  string  `json:"part_number"`
	Description string  `json:"description"`
	QtyPerUnit  int     `json:"qty_per_unit"`
	TotalQty    int     `json:"total_qty"`
	Location    string  `json:"location,omitempty"`
	ToolIDs     []int64 `json:"tool_ids,omitempty"`
}

// AppliesTo reports whether the line is required on the given tool.
func (l *DemandLine) AppliesTo(toolID int64) bool {
	return len(l.ToolIDs) == 0 || slices.Contains(l.ToolIDs, toolID)
}

const demandLineSelectCols = `id, order_id, part_number, description, qty_per_unit, total_qty, location, tool_ids`

func scanDemandLine(row interface{ Scan(...any) error }) (*DemandLine, error) {
	var l DemandLine
	var toolIDs string
	if err := row.Scan(&l.ID, &l.OrderID, &l.PartNumber, &l.Description, &l.QtyPerUnit, &l.TotalQty, &l.Location, &toolIDs); err != nil {
		return nil, err
	}
	if toolIDs != "" {
		if err := json.Unmarshal([]byte(toolIDs), &l.ToolIDs); err != nil {
			return nil, fmt.Errorf("demand line %d tool_ids: %w", l.ID, err)
		}
	}
	return &l, nil
}

func scanDemandLines(rows *sql.Rows) ([]*DemandLine, error) {
	var lines []*DemandLine
	for rows.Next() {
		l, err := scanDemandLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func encodeToolIDs(ids []int64) (string, error) {
	if len(ids) == 0 {
		return "", nil
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (db *DB) CreateDemandLine(ctx context.Context, l *DemandLine) error {
	toolIDs, err := encodeToolIDs(l.ToolIDs)
	if err != nil {
		return err
	}
	if l.QtyPerUnit == 0 {
		l.QtyPerUnit = 1
	}
	id, err := db.insertID(ctx, `INSERT INTO demand_lines (order_id, part_number, description, qty_per_unit, total_qty, location, tool_ids) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.OrderID, l.PartNumber, l.Description, l.QtyPerUnit, l.TotalQty, l.Location, toolIDs)
	if err != nil {
		return err
	}
	l.ID = id
	return nil
}

func (db *DB) GetDemandLine(ctx context.Context, id int64) (*DemandLine, error) {
	row := db.QueryRowContext(ctx, db.Q(`SELECT `+demandLineSelectCols+` FROM demand_lines WHERE id=?`), id)
	return scanDemandLine(row)
}

// ListDemandLinesByOrders returns one page of lines for at most MaxFilterIDs orders.
func (db *DB) ListDemandLinesByOrders(ctx context.Context, orderIDs []int64, page Page) ([]*DemandLine, error) {
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
	rows, err := db.QueryContext(ctx, db.Q(`SELECT `+demandLineSelectCols+` FROM demand_lines WHERE order_id IN `+inClause(len(orderIDs))+` ORDER BY id LIMIT ? OFFSET ?`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDemandLines(rows)
}
