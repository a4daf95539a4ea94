package engine

import (
	"errors"
	"fmt"

	"partpicker/allocation"
	"partpicker/consolidate"
	"partpicker/ledger"
)

var (
	ErrPartNotFound  = errors.New("engine: part not found")
	ErrUnknownPolicy = errors.New("engine: unknown allocation policy")
	ErrUnknownScope  = errors.New("engine: unknown plan scope")

	ErrOrderNotFound      = errors.New("engine: order not found")
	ErrUnknownOrderStatus = errors.New("engine: unknown order status")
)

// PlanScope selects what a bucket stands for.
type PlanScope string

const (
	ScopeTool  PlanScope = "tool"  // one bucket per (demand line, tool) row
	ScopeOrder PlanScope = "order" // one bucket per demand line
)

type PlanRequest struct {
	PartNumber string            `json:"part_number"`
	Scope      PlanScope         `json:"scope"`
	Policy     allocation.Policy `json:"policy"`
	Available  int               `json:"available"`
	Actor      string            `json:"actor,omitempty"`
	Notes      string            `json:"notes,omitempty"`
}

// PartPlan is a proposed split of an available quantity across one part's
// demand. Nothing is written until Picks is passed to CommitPlan.
type PartPlan struct {
	PartNumber  string               `json:"part_number"`
	Scope       PlanScope            `json:"scope"`
	Policy      allocation.Policy    `json:"policy"`
	Available   int                  `json:"available"`
	Allocations allocation.Plan      `json:"allocations"`
	Picks       []ledger.PickRequest `json:"picks"`
	Unallocated int                  `json:"unallocated"`
}

// PlanPart builds an allocation plan for a part from the current read
// model. An order-scoped plan is expanded onto the line's tools in row
// order, filling each tool before the next.
func (e *Engine) PlanPart(req PlanRequest) (*PartPlan, error) {
	return planPart(e.ledger.Consolidated(), req)
}

func planPart(parts []*consolidate.Part, req PlanRequest) (*PartPlan, error) {
	if req.Available < 0 {
		return nil, fmt.Errorf("%w: available %d", ledger.ErrInvalidQuantity, req.Available)
	}
	part := consolidate.Find(parts, req.PartNumber)
	if part == nil {
		return nil, fmt.Errorf("%w: %s", ErrPartNotFound, req.PartNumber)
	}
	if req.Scope == "" {
		req.Scope = ScopeTool
	}

	var buckets []allocation.Bucket
	switch req.Scope {
	case ScopeTool:
		buckets = consolidate.ToolBuckets(part)
	case ScopeOrder:
		buckets = consolidate.OrderBuckets(part)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownScope, req.Scope)
	}
	alloc, ok := allocation.Run(req.Policy, buckets, req.Available)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPolicy, req.Policy)
	}

	plan := &PartPlan{
		PartNumber:  part.PartNumber,
		Scope:       req.Scope,
		Policy:      req.Policy,
		Available:   req.Available,
		Allocations: alloc,
		Unallocated: req.Available - alloc.Total(),
	}
	for _, a := range alloc.NonZero() {
		switch req.Scope {
		case ScopeTool:
			lineID, toolID, err := consolidate.ParseToolBucketID(a.BucketID)
			if err != nil {
				return nil, err
			}
			plan.Picks = append(plan.Picks, pickFor(req, lineID, toolID, a.Qty))
		case ScopeOrder:
			lineID, err := consolidate.ParseLineBucketID(a.BucketID)
			if err != nil {
				return nil, err
			}
			rows := consolidate.LineRows(part, lineID)
			rowBuckets := make([]allocation.Bucket, len(rows))
			for i, r := range rows {
				rowBuckets[i] = allocation.Bucket{ID: consolidate.ToolBucketID(r.DemandLineID, r.ToolID), Capacity: r.Remaining}
			}
			for i, ra := range allocation.FillInOrder(rowBuckets, a.Qty) {
				if ra.Qty > 0 {
					plan.Picks = append(plan.Picks, pickFor(req, lineID, rows[i].ToolID, ra.Qty))
				}
			}
		}
	}
	return plan, nil
}

func pickFor(req PlanRequest, lineID, toolID int64, qty int) ledger.PickRequest {
	return ledger.PickRequest{
		DemandLineID: lineID,
		ToolID:       toolID,
		Qty:          qty,
		Actor:        req.Actor,
		Notes:        req.Notes,
	}
}
