// Package ledger records and reverses pick events. Events are only ever
// inserted or deleted; a deletion is always preceded by a durable undo
// record. Reads are served from a replica that is fully reloaded after each
// write and on every change notification.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"partpicker/store"
)

// PickRequest is one pick to record.
type PickRequest struct {
	DemandLineID int64  `json:"demand_line_id"`
	ToolID       int64  `json:"tool_id"`
	Qty          int    `json:"qty"`
	Actor        string `json:"actor"`
	Notes        string `json:"notes,omitempty"`
}

// OverPickWarning reports that a pick pushed a demand line past its
// required total. It is advisory: the pick has already been recorded.
type OverPickWarning struct {
	DemandLineID int64 `json:"demand_line_id"`
	ToolID       int64 `json:"tool_id"`
	Required     int   `json:"required"`
	Previous     int   `json:"previous"`
	Projected    int   `json:"projected"`
}

// Excess is how far the projected total overshoots the requirement.
func (w *OverPickWarning) Excess() int { return w.Projected - w.Required }

// PickResult is the outcome of RecordPick. Stale is set when the pick was
// written but the follow-up replica refresh failed.
type PickResult struct {
	Event   *store.PickEvent `json:"event"`
	Warning *OverPickWarning `json:"over_pick_warning,omitempty"`
	Stale   bool             `json:"stale,omitempty"`
}

// UndoPickResult is the outcome of UndoPick.
type UndoPickResult struct {
	Record *store.UndoRecord `json:"record"`
	Stale  bool              `json:"stale,omitempty"`
}

type Options struct {
	PageSize    int
	FilterChunk int
	Emitter     Emitter
}

type Ledger struct {
	backend  Backend
	replica  *Replica
	emitter  Emitter
	pageSize int
}

func New(backend Backend, opts Options) *Ledger {
	if opts.PageSize <= 0 || opts.PageSize > store.MaxPageSize {
		opts.PageSize = store.MaxPageSize
	}
	if opts.FilterChunk <= 0 || opts.FilterChunk > store.MaxFilterIDs {
		opts.FilterChunk = store.MaxFilterIDs
	}
	if opts.Emitter == nil {
		opts.Emitter = noopEmitter{}
	}
	return &Ledger{
		backend:  backend,
		replica:  NewReplica(backend, opts.PageSize, opts.FilterChunk),
		emitter:  opts.Emitter,
		pageSize: opts.PageSize,
	}
}

// Snapshot returns the current replica contents.
func (l *Ledger) Snapshot() *Snapshot { return l.replica.Current() }

// Refresh reloads the replica from the backend.
func (l *Ledger) Refresh(ctx context.Context) error {
	snap, err := l.replica.Refresh(ctx)
	if err != nil {
		return err
	}
	l.emitter.EmitLedgerRefreshed(snap)
	return nil
}

// refreshAfterWrite reloads after a committed write. The write stands even
// when the reload fails, so the failure is logged and reported as staleness.
func (l *Ledger) refreshAfterWrite(ctx context.Context) bool {
	if err := l.Refresh(ctx); err != nil {
		log.Error().Err(err).Msg("ledger: refresh after write failed, replica is stale")
		return true
	}
	return false
}

// RecordPick appends a pick event. The required total and current live sum
// are read before the insert, and the insert is never refused: when the
// projected total exceeds the requirement the result carries a warning.
// Concurrent writers can both pass this check, so the warning is advisory.
func (l *Ledger) RecordPick(ctx context.Context, req PickRequest) (*PickResult, error) {
	if req.Qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	res, err := l.recordOne(ctx, req)
	if err != nil {
		return nil, err
	}
	res.Stale = l.refreshAfterWrite(ctx)
	return res, nil
}

// target reads the demand line a pick is for and checks that the tool
// belongs to the line's order and is not excluded by its restriction. A pick
// outside that set would count toward the line's live sum but never appear
// in the consolidated view, and could not be undone.
func (l *Ledger) target(ctx context.Context, req PickRequest) (*store.DemandLine, error) {
	line, err := l.backend.GetDemandLine(ctx, req.DemandLineID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrDemandLineNotFound, req.DemandLineID)
	}
	if err != nil {
		return nil, fmt.Errorf("read demand line %d: %w", req.DemandLineID, err)
	}
	tool, err := l.backend.GetTool(ctx, req.ToolID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: tool %d does not exist", ErrToolNotApplicable, req.ToolID)
	}
	if err != nil {
		return nil, fmt.Errorf("read tool %d: %w", req.ToolID, err)
	}
	if tool.OrderID != line.OrderID || !line.AppliesTo(tool.ID) {
		return nil, fmt.Errorf("%w: tool %d, line %d", ErrToolNotApplicable, tool.ID, line.ID)
	}
	return line, nil
}

func (l *Ledger) recordOne(ctx context.Context, req PickRequest) (*PickResult, error) {
	line, err := l.target(ctx, req)
	if err != nil {
		return nil, err
	}
	previous, err := l.backend.SumLivePicked(ctx, req.DemandLineID)
	if err != nil {
		return nil, fmt.Errorf("sum picks for line %d: %w", req.DemandLineID, err)
	}

	ev := &store.PickEvent{
		DemandLineID: req.DemandLineID,
		ToolID:       req.ToolID,
		QtyPicked:    req.Qty,
		PickedBy:     req.Actor,
		Notes:        req.Notes,
	}
	if err := l.backend.InsertPick(ctx, ev); err != nil {
		return nil, fmt.Errorf("insert pick: %w", err)
	}

	res := &PickResult{Event: ev}
	if projected := previous + req.Qty; projected > line.TotalQty {
		res.Warning = &OverPickWarning{
			DemandLineID: req.DemandLineID,
			ToolID:       req.ToolID,
			Required:     line.TotalQty,
			Previous:     previous,
			Projected:    projected,
		}
		log.Warn().
			Int64("demand_line_id", req.DemandLineID).
			Int64("tool_id", req.ToolID).
			Int("required", line.TotalQty).
			Int("projected", projected).
			Int("excess", res.Warning.Excess()).
			Msg("ledger: over-pick detected")
	}
	l.emitter.EmitPickRecorded(ev, res.Warning)
	return res, nil
}

// UndoPick reverses a live event. The undo record is written first and the
// event is deleted only if that write succeeds; if the audit write fails
// the event is left untouched.
func (l *Ledger) UndoPick(ctx context.Context, eventID int64, actor string) (*UndoPickResult, error) {
	rec, err := l.undoOne(ctx, eventID, actor)
	if err != nil {
		return nil, err
	}
	return &UndoPickResult{Record: rec, Stale: l.refreshAfterWrite(ctx)}, nil
}

func (l *Ledger) undoOne(ctx context.Context, eventID int64, actor string) (*store.UndoRecord, error) {
	ev, err := l.backend.GetPick(ctx, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrPickNotFound, eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("read pick %d: %w", eventID, err)
	}
	return l.reverse(ctx, ev, actor)
}

func (l *Ledger) reverse(ctx context.Context, ev *store.PickEvent, actor string) (*store.UndoRecord, error) {
	pc, ok := l.Snapshot().resolve(ev)
	if !ok {
		// The replica may predate the event's line or tool.
		if _, err := l.replica.Refresh(ctx); err != nil {
			return nil, fmt.Errorf("%w: pick %d: %v", ErrContextUnresolved, ev.ID, err)
		}
		if pc, ok = l.Snapshot().resolve(ev); !ok {
			return nil, fmt.Errorf("%w: pick %d", ErrContextUnresolved, ev.ID)
		}
	}

	rec := &store.UndoRecord{
		PickEventID:  ev.ID,
		DemandLineID: ev.DemandLineID,
		ToolID:       ev.ToolID,
		QtyPicked:    ev.QtyPicked,
		PickedBy:     ev.PickedBy,
		Notes:        ev.Notes,
		PickedAt:     ev.PickedAt,
		PartNumber:   pc.line.PartNumber,
		ToolLabel:    pc.tool.Label,
		OrderLabel:   pc.order.Label,
		UndoneBy:     actor,
	}
	if err := l.backend.InsertUndoRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("%w: pick %d: %v", ErrAuditWrite, ev.ID, err)
	}
	if err := l.backend.DeletePick(ctx, ev.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d removed concurrently", ErrPickNotFound, ev.ID)
		}
		return nil, fmt.Errorf("delete pick %d: %w", ev.ID, err)
	}
	l.emitter.EmitPickUndone(rec)
	return rec, nil
}
