package store

import (
	"context"
	"time"
)

// UndoRecord is the audit snapshot written before a pick event is deleted.
type UndoRecord struct {
	ID           int64     `json:"id"`
	PickEventID  int64     `json:"pick_event_id"`
	DemandLineID int64     `json:"demand_line_id"`
	ToolID       int64     `json:"tool_id"`
	QtyPicked    int       `json:"qty_picked"`
	PickedBy     string    `json:"picked_by"`
	Notes        string    `json:"notes,omitempty"`
	PickedAt     time.Time `json:"picked_at"`
	PartNumber   string    `json:"part_number"`
	ToolLabel    string    `json:"tool_label"`
	OrderLabel   string    `json:"order_label"`
	UndoneBy     string    `json:"undone_by"`
	UndoneAt     time.Time `json:"undone_at"`
}

const undoSelectCols = `id, pick_event_id, demand_line_id, tool_id, qty_picked, picked_by, notes, picked_at, part_number, tool_label, order_label, undone_by, undone_at`

func (db *DB) InsertUndoRecord(ctx context.Context, r *UndoRecord) error {
	if r.UndoneAt.IsZero() {
		r.UndoneAt = time.Now().UTC()
	}
	id, err := db.insertID(ctx, `INSERT INTO undo_records (pick_event_id, demand_line_id, tool_id, qty_picked, picked_by, notes, picked_at, part_number, tool_label, order_label, undone_by, undone_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.PickEventID, r.DemandLineID, r.ToolID, r.QtyPicked, r.PickedBy, r.Notes, db.timeArg(r.PickedAt),
		r.PartNumber, r.ToolLabel, r.OrderLabel, r.UndoneBy, db.timeArg(r.UndoneAt))
	if err != nil {
		return err
	}
	r.ID = id
	return nil
}

// ListUndoRecords returns one page of undo records, newest first. A zero
// demandLineID lists every line.
func (db *DB) ListUndoRecords(ctx context.Context, demandLineID int64, page Page) ([]*UndoRecord, error) {
	page, err := page.normalize()
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + undoSelectCols + ` FROM undo_records`
	var args []any
	if demandLineID != 0 {
		q += ` WHERE demand_line_id=?`
		args = append(args, demandLineID)
	}
	q += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, page.Limit, page.Offset)

	rows, err := db.QueryContext(ctx, db.Q(q), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []*UndoRecord
	for rows.Next() {
		var r UndoRecord
		var pickedAt, undoneAt any
		if err := rows.Scan(&r.ID, &r.PickEventID, &r.DemandLineID, &r.ToolID, &r.QtyPicked, &r.PickedBy, &r.Notes, &pickedAt,
			&r.PartNumber, &r.ToolLabel, &r.OrderLabel, &r.UndoneBy, &undoneAt); err != nil {
			return nil, err
		}
		r.PickedAt = parseTime(pickedAt)
		r.UndoneAt = parseTime(undoneAt)
		records = append(records, &r)
	}
	return records, rows.Err()
}
