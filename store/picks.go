package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PickEvent is one immutable ledger entry. Rows are inserted and deleted,
// never updated.
type PickEvent struct {
	ID           int64     `json:"id"`
	DemandLineID int64     `json:"demand_line_id"`
	ToolID       int64     `json:"tool_id"`
	QtyPicked    int       `json:"qty_picked"`
	PickedBy     string    `json:"picked_by"`
	Notes        string    `json:"notes,omitempty"`
	PickedAt     time.Time `json:"picked_at"`
}

// PickFilter narrows a pick select. Empty slices do not filter.
type PickFilter struct {
	DemandLineIDs []int64
	ToolIDs       []int64
}

type PickOrder int

const (
	PickOrderID PickOrder = iota
	PickOrderNewestFirst
)

func (o PickOrder) clause() string {
	if o == PickOrderNewestFirst {
		return "picked_at DESC, id DESC"
	}
	return "id"
}

const pickSelectCols = `id, demand_line_id, tool_id, qty_picked, picked_by, notes, picked_at`

func scanPick(row interface{ Scan(...any) error }) (*PickEvent, error) {
	var p PickEvent
	var pickedAt any
	if err := row.Scan(&p.ID, &p.DemandLineID, &p.ToolID, &p.QtyPicked, &p.PickedBy, &p.Notes, &pickedAt); err != nil {
		return nil, err
	}
	p.PickedAt = parseTime(pickedAt)
	return &p, nil
}

func scanPicks(rows *sql.Rows) ([]*PickEvent, error) {
	var picks []*PickEvent
	for rows.Next() {
		p, err := scanPick(rows)
		if err != nil {
			return nil, err
		}
		picks = append(picks, p)
	}
	return picks, rows.Err()
}

// InsertPick appends an event and fills in its ID. A zero PickedAt is set to now.
func (db *DB) InsertPick(ctx context.Context, p *PickEvent) error {
	if p.QtyPicked <= 0 {
		return fmt.Errorf("insert pick: qty_picked must be > 0, got %d", p.QtyPicked)
	}
	if p.PickedAt.IsZero() {
		p.PickedAt = time.Now().UTC()
	}
	id, err := db.insertID(ctx, `INSERT INTO pick_events (demand_line_id, tool_id, qty_picked, picked_by, notes, picked_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.DemandLineID, p.ToolID, p.QtyPicked, p.PickedBy, p.Notes, db.timeArg(p.PickedAt))
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

func (db *DB) GetPick(ctx context.Context, id int64) (*PickEvent, error) {
	row := db.QueryRowContext(ctx, db.Q(`SELECT `+pickSelectCols+` FROM pick_events WHERE id=?`), id)
	return scanPick(row)
}

// DeletePick removes a live event. It returns sql.ErrNoRows when the event
// is already gone.
func (db *DB) DeletePick(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, db.Q(`DELETE FROM pick_events WHERE id=?`), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPicks returns one page of live events matching the filter.
func (db *DB) ListPicks(ctx context.Context, f PickFilter, order PickOrder, page Page) ([]*PickEvent, error) {
	if err := checkFilter(f.DemandLineIDs); err != nil {
		return nil, err
	}
	if err := checkFilter(f.ToolIDs); err != nil {
		return nil, err
	}
	page, err := page.normalize()
	if err != nil {
		return nil, err
	}
	var where []string
	var args []any
	if len(f.DemandLineIDs) > 0 {
		where = append(where, "demand_line_id IN "+inClause(len(f.DemandLineIDs)))
		args = append(args, int64Args(f.DemandLineIDs)...)
	}
	if len(f.ToolIDs) > 0 {
		where = append(where, "tool_id IN "+inClause(len(f.ToolIDs)))
		args = append(args, int64Args(f.ToolIDs)...)
	}
	q := `SELECT ` + pickSelectCols + ` FROM pick_events`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY ` + order.clause() + ` LIMIT ? OFFSET ?`
	args = append(args, page.Limit, page.Offset)

	rows, err := db.QueryContext(ctx, db.Q(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPicks(rows)
}

// SumLivePicked returns the live picked total for a demand line across all tools.
func (db *DB) SumLivePicked(ctx context.Context, demandLineID int64) (int, error) {
	var total int
	err := db.QueryRowContext(ctx, db.Q(`SELECT COALESCE(SUM(qty_picked), 0) FROM pick_events WHERE demand_line_id=?`), demandLineID).Scan(&total)
	return total, err
}
