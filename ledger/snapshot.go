package ledger

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"partpicker/consolidate"
	"partpicker/store"
)

type pairKey struct {
	line int64
	tool int64
}

// Snapshot is an immutable copy of the ledger and the active demand
// catalog, with lookup maps built once at load time. A new snapshot replaces
// the old one on every refresh; snapshots are never patched.
type Snapshot struct {
	Orders   []*store.Order
	Tools    []*store.Tool
	Lines    []*store.DemandLine
	Picks    []*store.PickEvent
	Parts    []*consolidate.Part
	LoadedAt time.Time

	orders map[int64]*store.Order
	tools  map[int64]*store.Tool
	lines  map[int64]*store.DemandLine
	byTool map[int64][]*store.PickEvent
	byPair map[pairKey][]*store.PickEvent
}

func newSnapshot(orders []*store.Order, tools []*store.Tool, lines []*store.DemandLine, picks []*store.PickEvent) *Snapshot {
	s := &Snapshot{
		Orders:   orders,
		Tools:    tools,
		Lines:    lines,
		Picks:    picks,
		LoadedAt: time.Now(),
		orders:   make(map[int64]*store.Order, len(orders)),
		tools:    make(map[int64]*store.Tool, len(tools)),
		lines:    make(map[int64]*store.DemandLine, len(lines)),
		byTool:   make(map[int64][]*store.PickEvent),
		byPair:   make(map[pairKey][]*store.PickEvent),
	}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	for _, t := range tools {
		s.tools[t.ID] = t
	}
	for _, l := range lines {
		s.lines[l.ID] = l
	}
	for _, p := range picks {
		s.byTool[p.ToolID] = append(s.byTool[p.ToolID], p)
		k := pairKey{p.DemandLineID, p.ToolID}
		s.byPair[k] = append(s.byPair[k], p)
	}
	for _, hist := range s.byPair {
		slices.SortFunc(hist, newestFirst)
	}
	s.Parts = consolidate.Rebuild(consolidate.Input{Orders: orders, Tools: tools, Lines: lines, Picks: picks})
	return s
}

func emptySnapshot() *Snapshot {
	return newSnapshot(nil, nil, nil, nil)
}

func newestFirst(a, b *store.PickEvent) int {
	if c := b.PickedAt.Compare(a.PickedAt); c != 0 {
		return c
	}
	switch {
	case a.ID > b.ID:
		return -1
	case a.ID < b.ID:
		return 1
	}
	return 0
}

// pickContext is the denormalized detail an undo record carries.
type pickContext struct {
	line  *store.DemandLine
	tool  *store.Tool
	order *store.Order
}

func (s *Snapshot) resolve(ev *store.PickEvent) (pickContext, bool) {
	line, ok := s.lines[ev.DemandLineID]
	if !ok {
		return pickContext{}, false
	}
	tool, ok := s.tools[ev.ToolID]
	if !ok {
		return pickContext{}, false
	}
	order, ok := s.orders[line.OrderID]
	if !ok {
		return pickContext{}, false
	}
	return pickContext{line: line, tool: tool, order: order}, true
}

// Line returns a demand line from the active catalog.
func (s *Snapshot) Line(id int64) (*store.DemandLine, bool) {
	l, ok := s.lines[id]
	return l, ok
}

// ToolsFor returns the tools a demand line applies to, in catalog order.
func (s *Snapshot) ToolsFor(l *store.DemandLine) []*store.Tool {
	var out []*store.Tool
	for _, t := range s.Tools {
		if t.OrderID == l.OrderID && l.AppliesTo(t.ID) {
			out = append(out, t)
		}
	}
	return out
}

// Picked is the live total for one (line, tool) pair.
func (s *Snapshot) Picked(lineID, toolID int64) int {
	n := 0
	for _, p := range s.byPair[pairKey{lineID, toolID}] {
		n += p.QtyPicked
	}
	return n
}

// Replica holds the current snapshot and swaps it on refresh.
type Replica struct {
	backend  Backend
	pageSize int
	chunk    int

	refreshMu sync.Mutex
	mu        sync.RWMutex
	snap      *Snapshot
}

func NewReplica(backend Backend, pageSize, chunk int) *Replica {
	return &Replica{backend: backend, pageSize: pageSize, chunk: chunk, snap: emptySnapshot()}
}

// Current returns the latest snapshot. It never returns nil.
func (r *Replica) Current() *Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Refresh reloads everything from the backend and swaps in a new snapshot.
// Concurrent refreshes run one at a time so an older load cannot replace a
// newer one.
func (r *Replica) Refresh(ctx context.Context) (*Snapshot, error) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	snap, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.snap = snap
	r.mu.Unlock()
	return snap, nil
}

func (r *Replica) load(ctx context.Context) (*Snapshot, error) {
	orders, err := store.CollectPages(ctx, r.pageSize, r.backend.ListActiveOrders)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	orderIDs := make([]int64, len(orders))
	for i, o := range orders {
		orderIDs[i] = o.ID
	}

	var tools []*store.Tool
	var lines []*store.DemandLine
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for _, chunk := range store.ChunkIDs(orderIDs, r.chunk) {
			batch, err := store.CollectPages(gctx, r.pageSize, func(ctx context.Context, p store.Page) ([]*store.Tool, error) {
				return r.backend.ListToolsByOrders(ctx, chunk, p)
			})
			if err != nil {
				return fmt.Errorf("load tools: %w", err)
			}
			tools = append(tools, batch...)
		}
		return nil
	})
	g.Go(func() error {
		for _, chunk := range store.ChunkIDs(orderIDs, r.chunk) {
			batch, err := store.CollectPages(gctx, r.pageSize, func(ctx context.Context, p store.Page) ([]*store.DemandLine, error) {
				return r.backend.ListDemandLinesByOrders(ctx, chunk, p)
			})
			if err != nil {
				return fmt.Errorf("load demand lines: %w", err)
			}
			lines = append(lines, batch...)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	lineIDs := make([]int64, len(lines))
	for i, l := range lines {
		lineIDs[i] = l.ID
	}
	var picks []*store.PickEvent
	for _, chunk := range store.ChunkIDs(lineIDs, r.chunk) {
		batch, err := store.CollectPages(ctx, r.pageSize, func(ctx context.Context, p store.Page) ([]*store.PickEvent, error) {
			return r.backend.ListPicks(ctx, store.PickFilter{DemandLineIDs: chunk}, store.PickOrderID, p)
		})
		if err != nil {
			return nil, fmt.Errorf("load picks: %w", err)
		}
		picks = append(picks, batch...)
	}
	return newSnapshot(orders, tools, lines, picks), nil
}
