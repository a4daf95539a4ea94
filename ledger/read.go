package ledger

import (
	"slices"

	"partpicker/consolidate"
	"partpicker/store"
)

// PicksForTool returns live picked totals for a tool keyed by demand line.
func (l *Ledger) PicksForTool(toolID int64) map[int64]int {
	out := make(map[int64]int)
	for _, p := range l.Snapshot().byTool[toolID] {
		out[p.DemandLineID] += p.QtyPicked
	}
	return out
}

// PicksForAllTools returns live picked totals keyed by tool, then demand line.
func (l *Ledger) PicksForAllTools() map[int64]map[int64]int {
	snap := l.Snapshot()
	out := make(map[int64]map[int64]int, len(snap.byTool))
	for toolID, picks := range snap.byTool {
		m := make(map[int64]int)
		for _, p := range picks {
			m[p.DemandLineID] += p.QtyPicked
		}
		out[toolID] = m
	}
	return out
}

// PickHistory returns the live events for a (line, tool) pair, newest first.
func (l *Ledger) PickHistory(demandLineID, toolID int64) []*store.PickEvent {
	return slices.Clone(l.Snapshot().byPair[pairKey{demandLineID, toolID}])
}

// Consolidated returns the per-part rollup built with the current snapshot.
func (l *Ledger) Consolidated() []*consolidate.Part {
	return l.Snapshot().Parts
}
