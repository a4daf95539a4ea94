package ledger

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/rs/zerolog/log"

	"partpicker/store"
)

// BatchWarning folds the over-pick advisories of a batch into one warning.
// Lines keeps the last projected total seen for each demand line.
type BatchWarning struct {
	Count int               `json:"count"`
	Lines []OverPickWarning `json:"lines"`
}

func (b *BatchWarning) add(w *OverPickWarning) {
	b.Count++
	for i := range b.Lines {
		if b.Lines[i].DemandLineID == w.DemandLineID {
			b.Lines[i] = *w
			return
		}
	}
	b.Lines = append(b.Lines, *w)
}

// BatchResult is the outcome of a multi-pick operation.
type BatchResult struct {
	Events  []*store.PickEvent `json:"events"`
	Warning *BatchWarning      `json:"warning,omitempty"`
	Stale   bool               `json:"stale,omitempty"`
}

// CommitPlan records a confirmed set of picks. Every quantity is validated
// before the first write. On a write error the picks already recorded stand
// and are returned with the error.
func (l *Ledger) CommitPlan(ctx context.Context, picks []PickRequest) (*BatchResult, error) {
	for _, p := range picks {
		if p.Qty <= 0 {
			return nil, fmt.Errorf("%w: line %d tool %d qty %d", ErrInvalidQuantity, p.DemandLineID, p.ToolID, p.Qty)
		}
	}
	for _, p := range picks {
		if _, err := l.target(ctx, p); err != nil {
			return nil, err
		}
	}
	return l.recordBatch(ctx, picks)
}

// PickAllRemaining picks the outstanding quantity of a demand line on every
// tool it applies to.
func (l *Ledger) PickAllRemaining(ctx context.Context, demandLineID int64, actor, notes string) (*BatchResult, error) {
	snap := l.Snapshot()
	line, ok := snap.Line(demandLineID)
	if !ok {
		var err error
		if snap, err = l.replica.Refresh(ctx); err != nil {
			return nil, err
		}
		if line, ok = snap.Line(demandLineID); !ok {
			return nil, fmt.Errorf("%w: %d", ErrDemandLineNotFound, demandLineID)
		}
	}

	var picks []PickRequest
	for _, t := range snap.ToolsFor(line) {
		remaining := line.QtyPerUnit - snap.Picked(line.ID, t.ID)
		if remaining <= 0 {
			continue
		}
		picks = append(picks, PickRequest{
			DemandLineID: line.ID,
			ToolID:       t.ID,
			Qty:          remaining,
			Actor:        actor,
			Notes:        notes,
		})
	}
	if len(picks) == 0 {
		return &BatchResult{}, nil
	}
	return l.recordBatch(ctx, picks)
}

func (l *Ledger) recordBatch(ctx context.Context, picks []PickRequest) (*BatchResult, error) {
	res := &BatchResult{}
	var warning BatchWarning
	var writeErr error
	for _, p := range picks {
		one, err := l.recordOne(ctx, p)
		if err != nil {
			writeErr = err
			break
		}
		res.Events = append(res.Events, one.Event)
		if one.Warning != nil {
			warning.add(one.Warning)
		}
	}
	if warning.Count > 0 {
		slices.SortFunc(warning.Lines, func(a, b OverPickWarning) int { return cmp.Compare(a.DemandLineID, b.DemandLineID) })
		res.Warning = &warning
		log.Warn().Int("count", warning.Count).Int("lines", len(warning.Lines)).Msg("ledger: batch over-pick")
	}
	if len(res.Events) > 0 {
		res.Stale = l.refreshAfterWrite(ctx)
	}
	return res, writeErr
}
