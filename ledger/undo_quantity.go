package ledger

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"partpicker/allocation"
	"partpicker/store"
)

// UndoResult reports how much of an undo-by-quantity request was applied.
// Undone plus Shortfall equals Requested when no error occurred. Unrestored
// is set when a split event was reversed but its remainder could not be
// recorded again; those units were removed beyond the request and need
// picking again.
type UndoResult struct {
	Requested  int                 `json:"requested"`
	Undone     int                 `json:"undone"`
	Shortfall  int                 `json:"shortfall"`
	Unrestored int                 `json:"unrestored,omitempty"`
	Reversed   []*store.UndoRecord `json:"reversed"`
	Corrective []*store.PickEvent  `json:"corrective,omitempty"`
	Stale      bool                `json:"stale,omitempty"`
}

// UndoByQuantity removes qty units from a (line, tool) pair, newest events
// first. An event larger than what is still owed is reversed whole and the
// difference is recorded again as a corrective event that keeps the
// original picker and timestamp. History is read from the backend, not the
// replica, so the walk sees every live event.
//
// If a step fails the error is returned with the partial result; steps
// already applied are not rolled back.
func (l *Ledger) UndoByQuantity(ctx context.Context, demandLineID, toolID int64, qty int, actor string) (*UndoResult, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	history, err := store.CollectPages(ctx, l.pageSize, func(ctx context.Context, p store.Page) ([]*store.PickEvent, error) {
		return l.backend.ListPicks(ctx, store.PickFilter{
			DemandLineIDs: []int64{demandLineID},
			ToolIDs:       []int64{toolID},
		}, store.PickOrderNewestFirst, p)
	})
	if err != nil {
		return nil, fmt.Errorf("read pick history: %w", err)
	}

	byID := make(map[int64]*store.PickEvent, len(history))
	events := make([]allocation.HistoryEvent, len(history))
	for i, ev := range history {
		byID[ev.ID] = ev
		events[i] = allocation.HistoryEvent{EventID: ev.ID, Qty: ev.QtyPicked}
	}
	plan := allocation.PlanReversal(events, qty)

	res := &UndoResult{Requested: qty}
	applyErr := l.applyReversal(ctx, plan, byID, actor, res)
	res.Shortfall = max(0, qty-res.Undone)
	if len(res.Reversed) > 0 || len(res.Corrective) > 0 {
		res.Stale = l.refreshAfterWrite(ctx)
	}
	if applyErr != nil {
		return res, applyErr
	}
	if res.Shortfall > 0 {
		log.Warn().
			Int64("demand_line_id", demandLineID).
			Int64("tool_id", toolID).
			Int("requested", qty).
			Int("shortfall", res.Shortfall).
			Msg("ledger: undo by quantity ran out of history")
	}
	return res, nil
}

func (l *Ledger) applyReversal(ctx context.Context, plan allocation.Reversal, byID map[int64]*store.PickEvent, actor string, res *UndoResult) error {
	for _, step := range plan.Steps {
		ev := byID[step.EventID]
		rec, err := l.reverse(ctx, ev, actor)
		if err != nil {
			return err
		}
		res.Reversed = append(res.Reversed, rec)
		res.Undone += step.Qty

		if step.Reinsert == 0 {
			continue
		}
		corrective := &store.PickEvent{
			DemandLineID: ev.DemandLineID,
			ToolID:       ev.ToolID,
			QtyPicked:    step.Reinsert,
			PickedBy:     ev.PickedBy,
			Notes:        ev.Notes,
			PickedAt:     ev.PickedAt,
		}
		if err := l.backend.InsertPick(ctx, corrective); err != nil {
			res.Unrestored = step.Reinsert
			return fmt.Errorf("reinsert remainder %d of pick %d: %w", step.Reinsert, ev.ID, err)
		}
		res.Corrective = append(res.Corrective, corrective)
		res.Undone -= step.Reinsert
		l.emitter.EmitPickRecorded(corrective, nil)
	}
	return nil
}
