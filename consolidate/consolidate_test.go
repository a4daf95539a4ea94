package consolidate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partpicker/store"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestCompareNatural(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"SO-9", "SO-10", -1},
		{"SO-10", "SO-9", 1},
		{"so-10", "SO-10", 0},
		{"A2", "A2b", -1},
		{"PN-007", "PN-7", 1},
		{"100", "99", 1},
		{"", "x", -1},
		{"abc", "abd", -1},
		{"12345678901234567890", "12345678901234567891", -1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CompareNatural(tc.a, tc.b), "%q vs %q", tc.a, tc.b)
	}
}

func fixture() Input {
	orders := []*store.Order{
		{ID: 1, Label: "SO-10", OrderDate: date(2026, 1, 5), Status: store.OrderActive},
		{ID: 2, Label: "SO-9", OrderDate: date(2026, 1, 5), Status: store.OrderActive},
		{ID: 3, Label: "SO-1", Status: store.OrderActive},
		{ID: 4, Label: "SO-2", OrderDate: date(2025, 12, 1), Status: store.OrderComplete},
		{ID: 5, Label: "SO-20", OrderDate: date(2025, 12, 20), Status: store.OrderActive},
	}
	tools := []*store.Tool{
		{ID: 11, OrderID: 1, Label: "T1"},
		{ID: 12, OrderID: 1, Label: "T2"},
		{ID: 21, OrderID: 2, Label: "T1"},
		{ID: 31, OrderID: 3, Label: "T1"},
		{ID: 41, OrderID: 4, Label: "T1"},
		{ID: 51, OrderID: 5, Label: "T10"},
		{ID: 52, OrderID: 5, Label: "T9"},
	}
	lines := []*store.DemandLine{
		{ID: 100, OrderID: 1, PartNumber: "PN-A", QtyPerUnit: 2, TotalQty: 4},
		{ID: 200, OrderID: 2, PartNumber: "PN-A", QtyPerUnit: 3, TotalQty: 3},
		{ID: 300, OrderID: 3, PartNumber: "PN-A", QtyPerUnit: 1, TotalQty: 1},
		{ID: 400, OrderID: 4, PartNumber: "PN-A", QtyPerUnit: 9, TotalQty: 9},
		{ID: 500, OrderID: 5, PartNumber: "PN-A", QtyPerUnit: 1, TotalQty: 2},
		{ID: 101, OrderID: 1, PartNumber: "PN-B", QtyPerUnit: 5, TotalQty: 5, ToolIDs: []int64{12}},
	}
	picks := []*store.PickEvent{
		{ID: 1, DemandLineID: 100, ToolID: 11, QtyPicked: 2},
		{ID: 2, DemandLineID: 100, ToolID: 12, QtyPicked: 1},
		{ID: 3, DemandLineID: 200, ToolID: 21, QtyPicked: 4},
		{ID: 4, DemandLineID: 400, ToolID: 41, QtyPicked: 9},
		{ID: 5, DemandLineID: 101, ToolID: 12, QtyPicked: 1},
		{ID: 6, DemandLineID: 101, ToolID: 12, QtyPicked: 2},
	}
	return Input{Orders: orders, Tools: tools, Lines: lines, Picks: picks}
}

func TestRebuildTotals(t *testing.T) {
	parts := Rebuild(fixture())
	require.Len(t, parts, 2)
	assert.Equal(t, "PN-A", parts[0].PartNumber)
	assert.Equal(t, "PN-B", parts[1].PartNumber)

	a := parts[0]
	// 2+2 (SO-10) + 3 (SO-9) + 1 (SO-1) + 1+1 (SO-20); SO-2 is complete.
	assert.Equal(t, 10, a.TotalNeeded)
	assert.Equal(t, 7, a.TotalPicked)
	assert.Equal(t, 3, a.Remaining)
	assert.Len(t, a.Rows, 6)

	var sumNeeded, sumPicked int
	for _, r := range a.Rows {
		sumNeeded += r.Needed
		sumPicked += r.Picked
		assert.Equal(t, max(0, r.Needed-r.Picked), r.Remaining)
	}
	assert.Equal(t, a.TotalNeeded, sumNeeded)
	assert.Equal(t, a.TotalPicked, sumPicked)

	b := parts[1]
	require.Len(t, b.Rows, 1, "restricted line applies to one tool")
	assert.Equal(t, int64(12), b.Rows[0].ToolID)
	assert.Equal(t, 3, b.TotalPicked)
	assert.Equal(t, 2, b.Remaining)
}

func TestRebuildRowOrdering(t *testing.T) {
	parts := Rebuild(fixture())
	a := Find(parts, "PN-A")
	require.NotNil(t, a)

	type key struct {
		order string
		tool  string
	}
	var got []key
	for _, r := range a.Rows {
		got = append(got, key{r.OrderLabel, r.ToolLabel})
	}
	assert.Equal(t, []key{
		{"SO-20", "T9"},
		{"SO-20", "T10"},
		{"SO-9", "T1"},
		{"SO-10", "T1"},
		{"SO-10", "T2"},
		{"SO-1", "T1"},
	}, got)
}

func TestRebuildOverPickedRowClampsRemaining(t *testing.T) {
	a := Find(Rebuild(fixture()), "PN-A")
	require.NotNil(t, a)
	for _, r := range a.Rows {
		if r.DemandLineID == 200 {
			assert.Equal(t, 4, r.Picked)
			assert.Equal(t, 0, r.Remaining)
		}
	}
}

func TestRebuildEmpty(t *testing.T) {
	assert.Empty(t, Rebuild(Input{}))
	assert.Nil(t, Find(nil, "PN-A"))
}

func TestBuckets(t *testing.T) {
	a := Find(Rebuild(fixture()), "PN-A")
	require.NotNil(t, a)

	tb := ToolBuckets(a)
	require.Len(t, tb, 6)
	assert.Equal(t, ToolBucketID(500, 52), tb[0].ID)
	assert.Equal(t, 1, tb[0].Capacity)

	line, tool, err := ParseToolBucketID(tb[0].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), line)
	assert.Equal(t, int64(52), tool)

	ob := OrderBuckets(a)
	require.Len(t, ob, 4)
	assert.Equal(t, "500", ob[0].ID)
	assert.Equal(t, 2, ob[0].Capacity)
	assert.Equal(t, "100", ob[2].ID)
	assert.Equal(t, 1, ob[2].Capacity, "SO-10: T1 full, T2 has one left")

	id, err := ParseLineBucketID(ob[2].ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), id)
	assert.Len(t, LineRows(a, 100), 2)

	_, _, err = ParseToolBucketID("garbage")
	assert.Error(t, err)
}
