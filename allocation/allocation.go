// Package allocation turns an available quantity and a list of demand
// buckets into a per-bucket plan. Planners are pure: they read their inputs
// and return a new plan without touching any ledger state.
package allocation

// Policy names a distribution strategy.
type Policy string

const (
	PolicyEven    Policy = "even"
	PolicyInOrder Policy = "in_order"
)

// Bucket is one demand slot. Capacity is the most it can accept.
type Bucket struct {
	ID       string `json:"id"`
	Capacity int    `json:"capacity"`
}

// Allocation is the proposed quantity for one bucket.
type Allocation struct {
	BucketID string `json:"bucket_id"`
	Qty      int    `json:"qty"`
}

// Plan holds one entry per input bucket, in input order.
type Plan []Allocation

// Total is the sum of all planned quantities.
func (p Plan) Total() int {
	n := 0
	for _, a := range p {
		n += a.Qty
	}
	return n
}

// Quantities returns the planned quantities in bucket order.
func (p Plan) Quantities() []int {
	out := make([]int, len(p))
	for i, a := range p {
		out[i] = a.Qty
	}
	return out
}

// NonZero drops entries that would not produce a pick.
func (p Plan) NonZero() Plan {
	out := make(Plan, 0, len(p))
	for _, a := range p {
		if a.Qty > 0 {
			out = append(out, a)
		}
	}
	return out
}

func emptyPlan(buckets []Bucket) Plan {
	p := make(Plan, len(buckets))
	for i, b := range buckets {
		p[i] = Allocation{BucketID: b.ID}
	}
	return p
}

func capacity(b Bucket) int {
	return max(b.Capacity, 0)
}

// Run dispatches to the planner for the given policy.
func Run(policy Policy, buckets []Bucket, available int) (Plan, bool) {
	switch policy {
	case PolicyEven:
		return DistributeEvenly(buckets, available), true
	case PolicyInOrder:
		return FillInOrder(buckets, available), true
	}
	return nil, false
}

// DistributeEvenly sweeps the buckets in order, giving each non-full bucket
// one unit per sweep until the budget runs out or every bucket is full.
// Leftover units go to the earliest buckets.
func DistributeEvenly(buckets []Bucket, available int) Plan {
	plan := emptyPlan(buckets)
	for available > 0 {
		progressed := false
		for i, b := range buckets {
			if available == 0 {
				break
			}
			if plan[i].Qty >= capacity(b) {
				continue
			}
			plan[i].Qty++
			available--
			progressed = true
		}
		if !progressed {
			break
		}
	}
	return plan
}

// FillInOrder fills each bucket to capacity before moving to the next.
func FillInOrder(buckets []Bucket, available int) Plan {
	plan := emptyPlan(buckets)
	for i, b := range buckets {
		if available <= 0 {
			break
		}
		n := min(available, capacity(b))
		plan[i].Qty = n
		available -= n
	}
	return plan
}
