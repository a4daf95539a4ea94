package store

import (
	"context"
	"errors"
	"fmt"
)

// Bounds imposed on every batched read. Callers page and chunk explicitly
// instead of asking for unbounded result sets.
const (
	MaxPageSize  = 1000
	MaxFilterIDs = 100
)

var (
	ErrPageTooLarge   = errors.New("store: page size exceeds limit")
	ErrFilterTooLarge = errors.New("store: filter list exceeds limit")
)

// Page is a bounded window over an ordered select.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize() (Page, error) {
	if p.Limit <= 0 {
		p.Limit = MaxPageSize
	}
	if p.Limit > MaxPageSize {
		return p, fmt.Errorf("%w: %d > %d", ErrPageTooLarge, p.Limit, MaxPageSize)
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p, nil
}

func checkFilter(ids []int64) error {
	if len(ids) > MaxFilterIDs {
		return fmt.Errorf("%w: %d > %d", ErrFilterTooLarge, len(ids), MaxFilterIDs)
	}
	return nil
}

// CollectPages calls fetch with successive pages of the given size until a
// short page comes back.
func CollectPages[T any](ctx context.Context, size int, fetch func(context.Context, Page) ([]T, error)) ([]T, error) {
	if size <= 0 || size > MaxPageSize {
		size = MaxPageSize
	}
	var all []T
	for offset := 0; ; offset += size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, err := fetch(ctx, Page{Limit: size, Offset: offset})
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < size {
			return all, nil
		}
	}
}

// ChunkIDs splits ids into consecutive slices of at most size elements.
func ChunkIDs(ids []int64, size int) [][]int64 {
	if size <= 0 || size > MaxFilterIDs {
		size = MaxFilterIDs
	}
	var chunks [][]int64
	for len(ids) > 0 {
		n := min(size, len(ids))
		chunks = append(chunks, ids[:n:n])
		ids = ids[n:]
	}
	return chunks
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
