package allocation

// HistoryEvent is one live pick considered for reversal.
type HistoryEvent struct {
	EventID int64
	Qty     int
}

// ReversalStep fully reverses one event. Reinsert is the corrective quantity
// to record afterwards, zero when the whole event is consumed.
type ReversalStep struct {
	EventID  int64 `json:"event_id"`
	Qty      int   `json:"qty"`
	Reinsert int   `json:"reinsert"`
}

// Reversal is the plan for undoing a quantity from a pick history.
type Reversal struct {
	Steps     []ReversalStep `json:"steps"`
	Undone    int            `json:"undone"`
	Shortfall int            `json:"shortfall"`
}

// PlanReversal walks history, which must be newest first, and reverses
// events until qty units are accounted for. An event larger than what is
// still owed is reversed whole and the difference is reinserted, so no event
// is ever modified in place. When history runs out the missing amount is
// reported as Shortfall.
func PlanReversal(history []HistoryEvent, qty int) Reversal {
	var r Reversal
	remaining := max(qty, 0)
	for _, ev := range history {
		if remaining == 0 {
			break
		}
		if ev.Qty <= 0 {
			continue
		}
		step := ReversalStep{EventID: ev.EventID, Qty: ev.Qty}
		if ev.Qty > remaining {
			step.Reinsert = ev.Qty - remaining
			r.Undone += remaining
			remaining = 0
		} else {
			r.Undone += ev.Qty
			remaining -= ev.Qty
		}
		r.Steps = append(r.Steps, step)
	}
	r.Shortfall = remaining
	return r
}
