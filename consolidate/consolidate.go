// Package consolidate projects demand lines and live pick events into
// per-part totals. The projection holds no state and is rebuilt from scratch
// whenever the ledger or the demand definitions change.
package consolidate

import (
	"slices"
	"time"

	"partpicker/store"
)

// Input is everything a rebuild reads. Orders that are not active are
// ignored along with their tools and lines.
type Input struct {
	Orders []*store.Order
	Tools  []*store.Tool
	Lines  []*store.DemandLine
	Picks  []*store.PickEvent
}

// Row is one (demand line, tool) pair within a part.
type Row struct {
	OrderID      int64      `json:"order_id"`
	OrderLabel   string     `json:"order_label"`
	OrderDate    *time.Time `json:"order_date,omitempty"`
	ToolID       int64      `json:"tool_id"`
	ToolLabel    string     `json:"tool_label"`
	DemandLineID int64      `json:"demand_line_id"`
	Location     string     `json:"location,omitempty"`
	Needed       int        `json:"needed"`
	Picked       int        `json:"picked"`
	Remaining    int        `json:"remaining"`
}

// Part is the rollup for one part number across all active orders.
type Part struct {
	PartNumber  string `json:"part_number"`
	Description string `json:"description,omitempty"`
	TotalNeeded int    `json:"total_needed"`
	TotalPicked int    `json:"total_picked"`
	Remaining   int    `json:"remaining"`
	Rows        []Row  `json:"rows"`
}

type pairKey struct {
	line int64
	tool int64
}

func isActive(o *store.Order) bool {
	return o.Status == "" || o.Status == store.OrderActive
}

// Rebuild computes the consolidated parts, sorted by part number. Rows
// within a part are ordered by order date with undated orders last, then by
// order label, then by tool label.
func Rebuild(in Input) []*Part {
	orders := make(map[int64]*store.Order, len(in.Orders))
	for _, o := range in.Orders {
		if isActive(o) {
			orders[o.ID] = o
		}
	}
	toolsByOrder := make(map[int64][]*store.Tool)
	toolByID := make(map[int64]*store.Tool, len(in.Tools))
	for _, t := range in.Tools {
		if _, ok := orders[t.OrderID]; !ok {
			continue
		}
		toolsByOrder[t.OrderID] = append(toolsByOrder[t.OrderID], t)
		toolByID[t.ID] = t
	}
	picked := make(map[pairKey]int, len(in.Picks))
	for _, p := range in.Picks {
		picked[pairKey{p.DemandLineID, p.ToolID}] += p.QtyPicked
	}

	parts := make(map[string]*Part)
	for _, l := range in.Lines {
		o, ok := orders[l.OrderID]
		if !ok {
			continue
		}
		part := parts[l.PartNumber]
		if part == nil {
			part = &Part{PartNumber: l.PartNumber, Description: l.Description}
			parts[l.PartNumber] = part
		}
		for _, t := range applicableTools(l, toolsByOrder[o.ID], toolByID) {
			got := picked[pairKey{l.ID, t.ID}]
			row := Row{
				OrderID:      o.ID,
				OrderLabel:   o.Label,
				OrderDate:    o.OrderDate,
				ToolID:       t.ID,
				ToolLabel:    t.Label,
				DemandLineID: l.ID,
				Location:     l.Location,
				Needed:       l.QtyPerUnit,
				Picked:       got,
				Remaining:    max(0, l.QtyPerUnit-got),
			}
			part.TotalNeeded += row.Needed
			part.TotalPicked += row.Picked
			part.Rows = append(part.Rows, row)
		}
	}

	out := make([]*Part, 0, len(parts))
	for _, p := range parts {
		p.Remaining = max(0, p.TotalNeeded-p.TotalPicked)
		slices.SortStableFunc(p.Rows, compareRows)
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Part) int { return CompareNatural(a.PartNumber, b.PartNumber) })
	return out
}

func applicableTools(l *store.DemandLine, orderTools []*store.Tool, byID map[int64]*store.Tool) []*store.Tool {
	if len(l.ToolIDs) == 0 {
		return orderTools
	}
	var out []*store.Tool
	for _, id := range l.ToolIDs {
		if t, ok := byID[id]; ok && t.OrderID == l.OrderID {
			out = append(out, t)
		}
	}
	return out
}

func compareRows(a, b Row) int {
	switch {
	case a.OrderDate != nil && b.OrderDate == nil:
		return -1
	case a.OrderDate == nil && b.OrderDate != nil:
		return 1
	case a.OrderDate != nil && b.OrderDate != nil:
		if c := a.OrderDate.Compare(*b.OrderDate); c != 0 {
			return c
		}
	}
	if c := CompareNatural(a.OrderLabel, b.OrderLabel); c != 0 {
		return c
	}
	if a.OrderID != b.OrderID {
		return cmpInt64(a.OrderID, b.OrderID)
	}
	if c := CompareNatural(a.ToolLabel, b.ToolLabel); c != 0 {
		return c
	}
	if a.ToolID != b.ToolID {
		return cmpInt64(a.ToolID, b.ToolID)
	}
	return cmpInt64(a.DemandLineID, b.DemandLineID)
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Find returns the part with the given number, or nil.
func Find(parts []*Part, partNumber string) *Part {
	for _, p := range parts {
		if p.PartNumber == partNumber {
			return p
		}
	}
	return nil
}
