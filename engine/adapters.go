package engine

import (
	"partpicker/ledger"
	"partpicker/store"
)

// ledgerEmitter bridges the ledger's emitter interface to the EventBus.
type ledgerEmitter struct {
	bus *EventBus
}

var _ ledger.Emitter = (*ledgerEmitter)(nil)

func (e *ledgerEmitter) EmitPickRecorded(ev *store.PickEvent, w *ledger.OverPickWarning) {
	e.bus.Emit(Event{Type: EventPickRecorded, Payload: PickRecordedEvent{Event: ev}})
	if w != nil {
		e.bus.Emit(Event{Type: EventOverPick, Payload: OverPickEvent{Warning: *w, Actor: ev.PickedBy}})
	}
}

func (e *ledgerEmitter) EmitPickUndone(rec *store.UndoRecord) {
	e.bus.Emit(Event{Type: EventPickUndone, Payload: PickUndoneEvent{Record: rec}})
}

func (e *ledgerEmitter) EmitLedgerRefreshed(snap *ledger.Snapshot) {
	e.bus.Emit(Event{Type: EventLedgerRefreshed, Payload: LedgerRefreshedEvent{
		Parts:    len(snap.Parts),
		Picks:    len(snap.Picks),
		LoadedAt: snap.LoadedAt,
		snapshot: snap,
	}})
}
