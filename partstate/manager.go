// Package partstate serves the consolidated read model. The in-process copy
// is authoritative for this process; the optional cache mirrors it for other
// readers and is rewritten in full on every rebuild.
package partstate

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"partpicker/consolidate"
)

// Cache is the external mirror of the read model. *RedisStore implements it.
type Cache interface {
	ReplaceParts(ctx context.Context, parts []*consolidate.Part, at time.Time) error
	GetPart(ctx context.Context, pn string) (*consolidate.Part, error)
	ListPartNumbers(ctx context.Context) ([]string, error)
	LoadedAt(ctx context.Context) (time.Time, error)
}

var _ Cache = (*RedisStore)(nil)

type Manager struct {
	cache Cache

	mu       sync.RWMutex
	parts    []*consolidate.Part
	byPN     map[string]*consolidate.Part
	loadedAt time.Time
}

// NewManager returns a manager. cache may be nil.
func NewManager(cache Cache) *Manager {
	return &Manager{cache: cache, byPN: map[string]*consolidate.Part{}}
}

// Replace swaps in a freshly rebuilt read model and rewrites the cache. A
// cache failure is returned, but the in-process copy has already been
// replaced by then.
func (m *Manager) Replace(ctx context.Context, parts []*consolidate.Part, at time.Time) error {
	byPN := make(map[string]*consolidate.Part, len(parts))
	for _, p := range parts {
		byPN[p.PartNumber] = p
	}
	m.mu.Lock()
	m.parts = parts
	m.byPN = byPN
	m.loadedAt = at
	m.mu.Unlock()

	if m.cache == nil {
		return nil
	}
	if err := m.cache.ReplaceParts(ctx, parts, at); err != nil {
		return fmt.Errorf("cache write of %d parts: %w", len(parts), err)
	}
	return nil
}

func (m *Manager) loaded() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.loadedAt.IsZero()
}

// Part returns one part, reading the cache only when this process has not
// built a read model yet. A missing part returns nil.
func (m *Manager) Part(ctx context.Context, pn string) (*consolidate.Part, error) {
	if m.loaded() || m.cache == nil {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.byPN[pn], nil
	}
	return m.cache.GetPart(ctx, pn)
}

// Parts returns every part sorted by part number, with the same fallback
// as Part.
func (m *Manager) Parts(ctx context.Context) ([]*consolidate.Part, time.Time, error) {
	if m.loaded() || m.cache == nil {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.parts, m.loadedAt, nil
	}
	pns, err := m.cache.ListPartNumbers(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	parts := make([]*consolidate.Part, 0, len(pns))
	for _, pn := range pns {
		p, err := m.cache.GetPart(ctx, pn)
		if err != nil {
			return nil, time.Time{}, err
		}
		if p != nil {
			parts = append(parts, p)
		}
	}
	slices.SortFunc(parts, func(a, b *consolidate.Part) int {
		return consolidate.CompareNatural(a.PartNumber, b.PartNumber)
	})
	at, err := m.cache.LoadedAt(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	return parts, at, nil
}
