package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partpicker/config"
	"partpicker/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// faultyBackend wraps a real store and fails selected calls.
type faultyBackend struct {
	*store.DB
	undoErr   error
	ordersErr error
	insertErr error
}

func (f *faultyBackend) InsertUndoRecord(ctx context.Context, r *store.UndoRecord) error {
	if f.undoErr != nil {
		return f.undoErr
	}
	return f.DB.InsertUndoRecord(ctx, r)
}

func (f *faultyBackend) ListActiveOrders(ctx context.Context, p store.Page) ([]*store.Order, error) {
	if f.ordersErr != nil {
		return nil, f.ordersErr
	}
	return f.DB.ListActiveOrders(ctx, p)
}

func (f *faultyBackend) InsertPick(ctx context.Context, p *store.PickEvent) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.DB.InsertPick(ctx, p)
}

type recordingEmitter struct {
	recorded  []*store.PickEvent
	warnings  int
	undone    []*store.UndoRecord
	refreshes int
}

func (r *recordingEmitter) EmitPickRecorded(ev *store.PickEvent, w *OverPickWarning) {
	r.recorded = append(r.recorded, ev)
	if w != nil {
		r.warnings++
	}
}
func (r *recordingEmitter) EmitPickUndone(rec *store.UndoRecord) { r.undone = append(r.undone, rec) }
func (r *recordingEmitter) EmitLedgerRefreshed(*Snapshot)        { r.refreshes++ }

type fixture struct {
	db    *store.DB
	order *store.Order
	tools []*store.Tool
	line  *store.DemandLine
}

func seed(t *testing.T, db *store.DB, qtyPerUnit, total, nTools int) fixture {
	t.Helper()
	ctx := context.Background()
	f := fixture{db: db, order: &store.Order{Label: "SO-42"}}
	require.NoError(t, db.CreateOrder(ctx, f.order))
	for i := 0; i < nTools; i++ {
		tool := &store.Tool{OrderID: f.order.ID, Label: "T" + string(rune('1'+i))}
		require.NoError(t, db.CreateTool(ctx, tool))
		f.tools = append(f.tools, tool)
	}
	f.line = &store.DemandLine{OrderID: f.order.ID, PartNumber: "PN-9", QtyPerUnit: qtyPerUnit, TotalQty: total}
	require.NoError(t, db.CreateDemandLine(ctx, f.line))
	return f
}

func newLedger(t *testing.T, b Backend, em Emitter) *Ledger {
	t.Helper()
	l := New(b, Options{PageSize: 50, FilterChunk: 10, Emitter: em})
	require.NoError(t, l.Refresh(context.Background()))
	return l
}

func liveTotal(t *testing.T, db *store.DB, lineID int64) int {
	t.Helper()
	n, err := db.SumLivePicked(context.Background(), lineID)
	require.NoError(t, err)
	return n
}

func TestRecordPickRejectsNonPositive(t *testing.T) {
	db := testDB(t)
	f := seed(t, db, 5, 5, 1)
	l := newLedger(t, db, nil)

	for _, qty := range []int{0, -3} {
		_, err := l.RecordPick(context.Background(), PickRequest{DemandLineID: f.line.ID, ToolID: f.tools[0].ID, Qty: qty})
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}
	assert.Zero(t, liveTotal(t, db, f.line.ID))
}

func TestRecordPickOverPickIsAdvisory(t *testing.T) {
	db := testDB(t)
	f := seed(t, db, 5, 5, 1)
	em := &recordingEmitter{}
	l := newLedger(t, db, em)
	ctx := context.Background()

	res, err := l.RecordPick(ctx, PickRequest{DemandLineID: f.line.ID, ToolID: f.tools[0].ID, Qty: 5, Actor: "ana"})
	require.NoError(t, err)
	assert.Nil(t, res.Warning)
	assert.NotZero(t, res.Event.ID)

	res, err = l.RecordPick(ctx, PickRequest{DemandLineID: f.line.ID, ToolID: f.tools[0].ID, Qty: 1, Actor: "ben"})
	require.NoError(t, err)
	require.NotNil(t, res.Warning)
	assert.Equal(t, 5, res.Warning.Required)
	assert.Equal(t, 5, res.Warning.Previous)
	assert.Equal(t, 6, res.Warning.Projected)
	assert.Equal(t, 1, res.Warning.Excess())
	assert.False(t, res.Stale)

	assert.Equal(t, 6, liveTotal(t, db, f.line.ID))
	assert.Equal(t, 6, l.PicksForTool(f.tools[0].ID)[f.line.ID], "replica sees its own write")
	assert.Len(t, em.recorded, 2)
	assert.Equal(t, 1, em.warnings)
}

func TestRecordPickUnknownLine(t *testing.T) {
	db := testDB(t)
	l := newLedger(t, db, nil)
	_, err := l.RecordPick(context.Background(), PickRequest{DemandLineID: 404, ToolID: 1, Qty: 1})
	assert.ErrorIs(t, err, ErrDemandLineNotFound)
}

func TestRecordPickRejectsInapplicableTool(t *testing.T) {
	db := testDB(t)
	f := seed(t, db, 3, 3, 2)
	other := seed(t, db, 1, 1, 1)
	ctx := context.Background()
	restricted := &store.DemandLine{OrderID: f.order.ID, PartNumber: "PN-R", QtyPerUnit: 2, TotalQty: 2, ToolIDs: []int64{f.tools[1].ID}}
	require.NoError(t, db.CreateDemandLine(ctx, restricted))
	em := &recordingEmitter{}
	l := newLedger(t, db, em)

	cases := []struct {
		name string
		req  PickRequest
	}{
		{"unknown tool", PickRequest{DemandLineID: f.line.ID, ToolID: 9999, Qty: 3}},
		{"tool of another order", PickRequest{DemandLineID: f.line.ID, ToolID: other.tools[0].ID, Qty: 1}},
		{"tool outside restriction", PickRequest{DemandLineID: restricted.ID, ToolID: f.tools[0].ID, Qty: 1}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := l.RecordPick(ctx, c.req)
			assert.ErrorIs(t, err, ErrToolNotApplicable)
		})
	}
	assert.Zero(t, liveTotal(t, db, f.line.ID))
	assert.Zero(t, liveTotal(t, db, restricted.ID))
	assert.Empty(t, em.recorded)

	_, err := l.CommitPlan(ctx, []PickRequest{
		{DemandLineID: f.line.ID, ToolID: f.tools[0].ID, Qty: 1},
		{DemandLineID: restricted.ID, ToolID: f.tools[0].ID, Qty: 1},
	})
	assert.ErrorIs(t, err, ErrToolNotApplicable)
	assert.Zero(t, liveTotal(t, db, f.line.ID), "nothing is written when any pick is rejected")

	res, err := l.RecordPick(ctx, PickRequest{DemandLineID: restricted.ID, ToolID: f.tools[1].ID, Qty: 2})
	require.NoError(t, err)
	parts := l.Consolidated()
	var picked int
	for _, p := range parts {
		picked += p.TotalPicked
	}
	assert.Equal(t, 2, picked, "every live pick shows up in the consolidated view")
	_, err = l.UndoPick(ctx, res.Event.ID, "ben")
	require.NoError(t, err)
}

func TestRecordThenUndoRestoresTotal(t *testing.T) {
	db := testDB(t)
	f := seed(t, db, 4, 4, 1)
	em := &recordingEmitter{}
	l := newLedger(t, db, em)
	ctx := context.Background()

	_, err := l.RecordPick(ctx, PickRequest{DemandLineID: f.line.ID, ToolID: f.tools[0].ID, Qty: 1})
	require.NoError(t, err)
	before := liveTotal(t, db, f.line.ID)

	res, err := l.RecordPick(ctx, PickRequest{DemandLineID: f.line.ID, ToolID: f.tools[0].ID, Qty: 2, Actor: "ana", Notes: "bin 4"})
	require.NoError(t, err)

	undo, err := l.UndoPick(ctx, res.Event.ID, "ben")
	require.NoError(t, err)
	assert.Equal(t, before, liveTotal(t, db, f.line.ID))

	rec := undo.Record
	assert.Equal(t, res.Event.ID, rec.PickEventID)
	assert.Equal(t, "PN-9", rec.PartNumber)
	assert.Equal(t, "T1", rec.ToolLabel)
	assert.Equal(t, "SO-42", rec.OrderLabel)
	assert.Equal(t, "ana", rec.PickedBy)
	assert.Equal(t, "bin 4", rec.Notes)
	assert.Equal(t, "ben", rec.UndoneBy)

	recs, err := db.ListUndoRecords(ctx, f.line.ID, store.Page{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Len(t, em.undone, 1)
	assert.Equal(t, before, l.PicksForTool(f.tools[0].ID)[f.line.ID])
}

func TestUndoPickAuditFailureKeepsEvent(t *testing.T) {
	db := testDB(t)
	f := seed(t, db, 3, 3, 1)
	fb := &faultyBackend{DB: db}
	l := newLedger(t, fb, nil)
	ctx := context.Background()

	res, err := l.RecordPick(ctx, PickRequest{DemandLineID: f.line.ID, ToolID: f.tools[0].ID, Qty: 3})
	require.NoError(t, err)

	fb.undoErr = errors.New("disk full")
	_, err = l.UndoPick(ctx, res.Event.ID, "ben")
	require.ErrorIs(t, err, ErrAuditWrite)

	_, err = db.GetPick(ctx, res.Event.ID)
	require.NoError(t, err, "pick must survive a failed audit write")
	assert.Equal(t, 3, liveTotal(t, db, f.line.ID))
}

func TestUndoPickNotFound(t *testing.T) {
	db := testDB(t)
	l := newLedger(t, db, nil)
	_, err := l.UndoPick(context.Background(), 12345, "ben")
	assert.ErrorIs(t, err, ErrPickNotFound)
}

func TestUndoPickUnresolvedContext(t *testing.T) {
	db := testDB(t)
	f := seed(t, db, 3, 3, 1)
	l := newLedger(t, db, nil)
	ctx := context.Background()

	// A tool id that is not in the catalog.
	orphan := &store.PickEvent{DemandLineID: f.line.ID, ToolID: 9999, QtyPicked: 1}
	require.NoError(t, db.InsertPick(ctx, orphan))

	_, err := l.UndoPick(ctx, orphan.ID, "ben")
	require.ErrorIs(t, err, ErrContextUnresolved)

	_, err = db.GetPick(ctx, orphan.ID)
	assert.NoError(t, err)
	recs, err := db.ListUndoRecords(ctx, 0, store.Page{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func insertHistory(t *testing.T, db *store.DB, f fixture, actor string, qtys ...int) []*store.PickEvent {
	t.Helper()
	base := time.Date(2026, 4, 1, 7, 0, 0, 0, time.UTC)
	var out []*store.PickEvent
	for i, q := range qtys {
		ev := &store.PickEvent{
			DemandLineID: f.line.ID, ToolID: f.tools[0].ID, QtyPicked: q,
			PickedBy: actor, PickedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.InsertPick(context.Background(), ev))
		out = append(out, ev)
	}
	return out
}

func liveQtys(t *testing.T, db *store.DB, lineID int64) []int {
	t.Helper()
	picks, err := db.ListPicks(context.Background(), store.PickFilter{DemandLineIDs: []int64{lineID}}, store.PickOrderID, store.Page{})
	require.NoError(t, err)
	var out []int
	for _, p := range picks {
		out = append(out, p.QtyPicked)
	}
	sort.Ints(out)
	return out
}

func TestUndoByQuantitySplitsEvent(t *testing.T) {
	db := testDB(t)
	f := seed(t, db, 10, 10, 1)
	// Oldest to newest: 5, 3, 2.
	hist := insertHistory(t, db, f, "ana", 5, 3, 2)
	l := newLedger(t, db, nil)

	res, err := l.UndoByQuantity(context.Background(), f.line.ID, f.tools[0].ID, 4, "ben")
	require.NoError(t, err)
	assert.Equal(t, 4, res.Undone)
	assert.Equal(t, 0, res.Shortfall)
	require.Len(t, res.Reversed, 2)
	assert.Equal(t, hist[2].ID, res.Reversed[0].PickEventID)
	assert.Equal(t, hist[1].ID, res.Reversed[1].PickEventID)

	require.Len(t, res.Corrective, 1)
	c := res.Corrective[0]
	assert.Equal(t, 1, c.QtyPicked)
	assert.Equal(t, "ana", c.PickedBy)
	assert.True(t, c.PickedAt.Equal(hist[1].PickedAt))

	assert.Equal(t, []int{1, 5}, liveQtys(t, db, f.line.ID))
	assert.Equal(t, 6, liveTotal(t, db, f.line.ID))

	history := l.PickHistory(f.line.ID, f.tools[0].ID)
	require.Len(t, history, 2)
	assert.Equal(t, 1, history[0].QtyPicked, "corrective keeps the newer timestamp")
}

func TestUndoByQuantityShortfall(t *testing.T) {
	db := testDB(t)
	f := seed(t, db, 10, 10, 1)
	insertHistory(t, db, f, "ana", 1, 2)
	l := newLedger(t, db, nil)

	res, err := l.UndoByQuantity(context.Background(), f.line.ID, f.tools[0].ID, 5, "ben")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Undone)
	assert.Equal(t, 2, res.Shortfall)
	assert.Empty(t, res.Corrective)
	assert.Zero(t, liveTotal(t, db, f.line.ID))

	_, err = l.UndoByQuantity(context.Background(), f.line.ID, f.tools[0].ID, 0, "ben")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestUndoByQuantityReinsertFailureReportsPartial(t *testing.T) {
	db := testDB(t)
	f := seed(t, db, 10, 10, 1)
	insertHistory(t, db, f, "ana", 5)
	fb := &faultyBackend{DB: db, insertErr: errors.New("connection reset")}
	l := newLedger(t, fb, nil)

	res, err := l.UndoByQuantity(context.Background(), f.line.ID, f.tools[0].ID, 2, "ben")
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Len(t, res.Reversed, 1)
	assert.Empty(t, res.Corrective)
	assert.Equal(t, 5, res.Undone, "the whole event was removed")
	assert.Equal(t, 3, res.Unrestored)
	assert.Zero(t, res.Shortfall)
}

func TestLiveTotalInvariant(t *testing.T) {
	db := testDB(t)
	f := seed(t, db, 3, 9, 3)
	l := newLedger(t, db, nil)
	ctx := context.Background()

	var ids []int64
	for i, qty := range []int{2, 1, 4, 3, 2, 5} {
		tool := f.tools[i%len(f.tools)]
		res, err := l.RecordPick(ctx, PickRequest{DemandLineID: f.line.ID, ToolID: tool.ID, Qty: qty})
		require.NoError(t, err)
		ids = append(ids, res.Event.ID)
	}
	_, err := l.UndoPick(ctx, ids[2], "x")
	require.NoError(t, err)
	_, err = l.UndoByQuantity(ctx, f.line.ID, f.tools[0].ID, 3, "x")
	require.NoError(t, err)
	_, err = l.UndoByQuantity(ctx, f.line.ID, f.tools[2].ID, 1, "x")
	require.NoError(t, err)

	replicaTotal := 0
	for _, byLine := range l.PicksForAllTools() {
		replicaTotal += byLine[f.line.ID]
	}
	// 17 recorded, 4 undone by id, 3 + 1 by quantity.
	assert.Equal(t, 9, liveTotal(t, db, f.line.ID))
	assert.Equal(t, 9, replicaTotal)

	part := l.Consolidated()
	require.Len(t, part, 1)
	assert.Equal(t, 9, part[0].TotalPicked)
}

func TestPickAllRemainingAggregatesWarnings(t *testing.T) {
	db := testDB(t)
	f := seed(t, db, 2, 3, 3)
	l := newLedger(t, db, nil)
	ctx := context.Background()

	_, err := l.RecordPick(ctx, PickRequest{DemandLineID: f.line.ID, ToolID: f.tools[1].ID, Qty: 1})
	require.NoError(t, err)

	res, err := l.PickAllRemaining(ctx, f.line.ID, "ana", "")
	require.NoError(t, err)
	require.Len(t, res.Events, 3)
	assert.Equal(t, []int{2, 1, 2}, []int{res.Events[0].QtyPicked, res.Events[1].QtyPicked, res.Events[2].QtyPicked})

	// 1+2 = 3 meets the total, then 4 and 6 exceed it.
	require.NotNil(t, res.Warning)
	assert.Equal(t, 2, res.Warning.Count)
	require.Len(t, res.Warning.Lines, 1)
	assert.Equal(t, 6, res.Warning.Lines[0].Projected)

	again, err := l.PickAllRemaining(ctx, f.line.ID, "ana", "")
	require.NoError(t, err)
	assert.Empty(t, again.Events)
	assert.Nil(t, again.Warning)
}

func TestPickAllRemainingRespectsToolRestriction(t *testing.T) {
	db := testDB(t)
	f := seed(t, db, 1, 1, 2)
	ctx := context.Background()
	restricted := &store.DemandLine{OrderID: f.order.ID, PartNumber: "PN-R", QtyPerUnit: 4, TotalQty: 4, ToolIDs: []int64{f.tools[1].ID}}
	require.NoError(t, db.CreateDemandLine(ctx, restricted))
	l := newLedger(t, db, nil)

	res, err := l.PickAllRemaining(ctx, restricted.ID, "ana", "")
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, f.tools[1].ID, res.Events[0].ToolID)
	assert.Equal(t, 4, res.Events[0].QtyPicked)

	_, err = l.PickAllRemaining(ctx, 9999, "ana", "")
	assert.ErrorIs(t, err, ErrDemandLineNotFound)
}

func TestCommitPlanValidatesBeforeWriting(t *testing.T) {
	db := testDB(t)
	f := seed(t, db, 5, 10, 2)
	l := newLedger(t, db, nil)

	_, err := l.CommitPlan(context.Background(), []PickRequest{
		{DemandLineID: f.line.ID, ToolID: f.tools[0].ID, Qty: 3},
		{DemandLineID: f.line.ID, ToolID: f.tools[1].ID, Qty: 0},
	})
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Zero(t, liveTotal(t, db, f.line.ID))

	res, err := l.CommitPlan(context.Background(), []PickRequest{
		{DemandLineID: f.line.ID, ToolID: f.tools[0].ID, Qty: 3},
		{DemandLineID: f.line.ID, ToolID: f.tools[1].ID, Qty: 2},
	})
	require.NoError(t, err)
	assert.Len(t, res.Events, 2)
	assert.Nil(t, res.Warning)
	assert.Equal(t, 5, liveTotal(t, db, f.line.ID))
}

func TestWriteStandsWhenRefreshFails(t *testing.T) {
	db := testDB(t)
	f := seed(t, db, 5, 5, 1)
	fb := &faultyBackend{DB: db}
	l := newLedger(t, fb, nil)

	fb.ordersErr = errors.New("timeout")
	res, err := l.RecordPick(context.Background(), PickRequest{DemandLineID: f.line.ID, ToolID: f.tools[0].ID, Qty: 2})
	require.NoError(t, err)
	assert.True(t, res.Stale)
	assert.Equal(t, 2, liveTotal(t, db, f.line.ID))
	assert.Zero(t, l.PicksForTool(f.tools[0].ID)[f.line.ID], "replica was not refreshed")
}

func TestReplicaPaginatesAndChunks(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	var lines []int64
	for i := 0; i < 3; i++ {
		f := seed(t, db, 1, 1, 2)
		lines = append(lines, f.line.ID)
		for j := 0; j < 4; j++ {
			require.NoError(t, db.InsertPick(ctx, &store.PickEvent{DemandLineID: f.line.ID, ToolID: f.tools[j%2].ID, QtyPicked: 1}))
		}
	}
	r := NewReplica(db, 2, 1)
	snap, err := r.Refresh(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Orders, 3)
	assert.Len(t, snap.Tools, 6)
	assert.Len(t, snap.Lines, 3)
	assert.Len(t, snap.Picks, 12)
	assert.Same(t, snap, r.Current())
	for _, id := range lines {
		_, ok := snap.Line(id)
		assert.True(t, ok)
	}
}
