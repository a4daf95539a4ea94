package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"partpicker/ledger"
	"partpicker/protocol"
	"partpicker/store"
)

// The engine wraps each ledger write so that exactly one change notice goes
// out per operation, however many events it touched.

func (e *Engine) RecordPick(ctx context.Context, req ledger.PickRequest) (*ledger.PickResult, error) {
	res, err := e.ledger.RecordPick(ctx, req)
	if err != nil {
		return nil, err
	}
	e.notify(protocol.ReasonPickRecorded, []*store.PickEvent{res.Event}, nil)
	return res, nil
}

func (e *Engine) UndoPick(ctx context.Context, eventID int64, actor string) (*ledger.UndoPickResult, error) {
	res, err := e.ledger.UndoPick(ctx, eventID, actor)
	if err != nil {
		return nil, err
	}
	e.notify(protocol.ReasonPickUndone, nil, []*store.UndoRecord{res.Record})
	return res, nil
}

func (e *Engine) UndoByQuantity(ctx context.Context, demandLineID, toolID int64, qty int, actor string) (*ledger.UndoResult, error) {
	res, err := e.ledger.UndoByQuantity(ctx, demandLineID, toolID, qty, actor)
	if res != nil && (len(res.Reversed) > 0 || len(res.Corrective) > 0) {
		e.notify(protocol.ReasonUndoQuantity, res.Corrective, res.Reversed)
	}
	return res, err
}

func (e *Engine) PickAllRemaining(ctx context.Context, demandLineID int64, actor, notes string) (*ledger.BatchResult, error) {
	res, err := e.ledger.PickAllRemaining(ctx, demandLineID, actor, notes)
	if res != nil && len(res.Events) > 0 {
		e.notify(protocol.ReasonBatch, res.Events, nil)
	}
	return res, err
}

func (e *Engine) CommitPlan(ctx context.Context, picks []ledger.PickRequest) (*ledger.BatchResult, error) {
	res, err := e.ledger.CommitPlan(ctx, picks)
	if res != nil && len(res.Events) > 0 {
		e.notify(protocol.ReasonBatch, res.Events, nil)
	}
	return res, err
}

// SetOrderStatus moves an order between active, complete and cancelled.
// Only active orders are part of the consolidated view, so the change is
// applied to the replica immediately and announced like any demand change.
func (e *Engine) SetOrderStatus(ctx context.Context, orderID int64, status, actor string) error {
	switch status {
	case store.OrderActive, store.OrderComplete, store.OrderCancelled:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownOrderStatus, status)
	}
	order, err := e.db.GetOrder(ctx, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrOrderNotFound, orderID)
	}
	if err != nil {
		return err
	}
	if err := e.db.SetOrderStatus(ctx, orderID, status); err != nil {
		return fmt.Errorf("set order %d status: %w", orderID, err)
	}
	e.audit("order", orderID, "status_changed", order.Status, status, actor)
	if err := e.Refresh(ctx); err != nil {
		log.Error().Err(err).Int64("order_id", orderID).Msg("engine: refresh after status change")
	}
	if e.notifier != nil {
		if err := e.notifier.DemandChanged(&protocol.DemandChanged{OrderIDs: []int64{orderID}, Reason: "status " + status}); err != nil {
			log.Error().Err(err).Msg("engine: queue demand notice")
		}
	}
	return nil
}

// DemandChanged is called by the surrounding application after it edits
// orders, tools or demand lines. It refreshes locally and tells the other
// stations.
func (e *Engine) DemandChanged(orderIDs []int64, reason string) {
	e.Invalidate("demand change")
	if e.notifier == nil {
		return
	}
	if err := e.notifier.DemandChanged(&protocol.DemandChanged{OrderIDs: orderIDs, Reason: reason}); err != nil {
		log.Error().Err(err).Msg("engine: queue demand notice")
	}
}

func (e *Engine) notify(reason string, events []*store.PickEvent, undone []*store.UndoRecord) {
	if e.notifier == nil {
		return
	}
	msg := &protocol.LedgerChanged{Reason: reason}
	lines := map[int64]bool{}
	tools := map[int64]bool{}
	add := func(lineID, toolID int64) {
		if !lines[lineID] {
			lines[lineID] = true
			msg.DemandLineIDs = append(msg.DemandLineIDs, lineID)
		}
		if !tools[toolID] {
			tools[toolID] = true
			msg.ToolIDs = append(msg.ToolIDs, toolID)
		}
	}
	for _, ev := range events {
		add(ev.DemandLineID, ev.ToolID)
		msg.EventIDs = append(msg.EventIDs, ev.ID)
	}
	for _, rec := range undone {
		add(rec.DemandLineID, rec.ToolID)
		msg.EventIDs = append(msg.EventIDs, rec.PickEventID)
	}
	if err := e.notifier.LedgerChanged(msg); err != nil {
		log.Error().Err(err).Str("reason", reason).Msg("engine: queue ledger notice")
	}
}
