package consolidate

import (
	"fmt"
	"strconv"

	"partpicker/allocation"
)

// ToolBucketID encodes a (demand line, tool) pair as a bucket id.
func ToolBucketID(lineID, toolID int64) string {
	return fmt.Sprintf("%d:%d", lineID, toolID)
}

// ParseToolBucketID reverses ToolBucketID.
func ParseToolBucketID(id string) (lineID, toolID int64, err error) {
	if _, err := fmt.Sscanf(id, "%d:%d", &lineID, &toolID); err != nil {
		return 0, 0, fmt.Errorf("bad tool bucket id %q: %w", id, err)
	}
	return lineID, toolID, nil
}

// ParseLineBucketID parses an order-scoped bucket id.
func ParseLineBucketID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad line bucket id %q: %w", id, err)
	}
	return n, nil
}

// ToolBuckets returns one bucket per breakdown row, in row order, with the
// row's remaining quantity as capacity.
func ToolBuckets(p *Part) []allocation.Bucket {
	out := make([]allocation.Bucket, 0, len(p.Rows))
	for _, r := range p.Rows {
		out = append(out, allocation.Bucket{ID: ToolBucketID(r.DemandLineID, r.ToolID), Capacity: r.Remaining})
	}
	return out
}

// OrderBuckets returns one bucket per demand line, ordered by each line's
// first breakdown row, with the line's summed remaining as capacity.
func OrderBuckets(p *Part) []allocation.Bucket {
	var out []allocation.Bucket
	index := make(map[int64]int)
	for _, r := range p.Rows {
		i, ok := index[r.DemandLineID]
		if !ok {
			i = len(out)
			index[r.DemandLineID] = i
			out = append(out, allocation.Bucket{ID: strconv.FormatInt(r.DemandLineID, 10)})
		}
		out[i].Capacity += r.Remaining
	}
	return out
}

// LineRows returns the rows of a part that belong to one demand line, in
// row order.
func LineRows(p *Part, lineID int64) []Row {
	var out []Row
	for _, r := range p.Rows {
		if r.DemandLineID == lineID {
			out = append(out, r)
		}
	}
	return out
}
