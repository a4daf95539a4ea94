package ledger

import (
	"context"

	"partpicker/store"
)

// Backend is the shared store the ledger reads and writes. *store.DB
// implements it.
type Backend interface {
	GetDemandLine(ctx context.Context, id int64) (*store.DemandLine, error)
	GetTool(ctx context.Context, id int64) (*store.Tool, error)
	SumLivePicked(ctx context.Context, demandLineID int64) (int, error)

	InsertPick(ctx context.Context, p *store.PickEvent) error
	GetPick(ctx context.Context, id int64) (*store.PickEvent, error)
	DeletePick(ctx context.Context, id int64) error
	ListPicks(ctx context.Context, f store.PickFilter, order store.PickOrder, page store.Page) ([]*store.PickEvent, error)

	InsertUndoRecord(ctx context.Context, r *store.UndoRecord) error

	ListActiveOrders(ctx context.Context, page store.Page) ([]*store.Order, error)
	ListToolsByOrders(ctx context.Context, orderIDs []int64, page store.Page) ([]*store.Tool, error)
	ListDemandLinesByOrders(ctx context.Context, orderIDs []int64, page store.Page) ([]*store.DemandLine, error)
}

var _ Backend = (*store.DB)(nil)

// Emitter receives ledger activity. The engine adapts it onto its event bus.
type Emitter interface {
	EmitPickRecorded(ev *store.PickEvent, warning *OverPickWarning)
	EmitPickUndone(rec *store.UndoRecord)
	EmitLedgerRefreshed(snap *Snapshot)
}

type noopEmitter struct{}

func (noopEmitter) EmitPickRecorded(*store.PickEvent, *OverPickWarning) {}
func (noopEmitter) EmitPickUndone(*store.UndoRecord)                   {}
func (noopEmitter) EmitLedgerRefreshed(*Snapshot)                      {}
