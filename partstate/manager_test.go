package partstate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partpicker/consolidate"
)

type memCache struct {
	mu       sync.Mutex
	parts    map[string]*consolidate.Part
	loadedAt time.Time
	writes   int
	err      error
}

func newMemCache() *memCache { return &memCache{parts: map[string]*consolidate.Part{}} }

func (c *memCache) ReplaceParts(_ context.Context, parts []*consolidate.Part, at time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.writes++
	c.parts = map[string]*consolidate.Part{}
	for _, p := range parts {
		c.parts[p.PartNumber] = p
	}
	c.loadedAt = at
	return nil
}

func (c *memCache) GetPart(_ context.Context, pn string) (*consolidate.Part, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parts[pn], nil
}

func (c *memCache) ListPartNumbers(context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for pn := range c.parts {
		out = append(out, pn)
	}
	return out, nil
}

func (c *memCache) LoadedAt(context.Context) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadedAt, nil
}

func TestReplaceRewritesCacheInFull(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	m := NewManager(cache)

	at := time.Now()
	require.NoError(t, m.Replace(ctx, []*consolidate.Part{{PartNumber: "PN-1"}, {PartNumber: "PN-2"}}, at))
	require.NoError(t, m.Replace(ctx, []*consolidate.Part{{PartNumber: "PN-2", TotalPicked: 3}}, at.Add(time.Second)))

	assert.Equal(t, 2, cache.writes)
	pns, _ := cache.ListPartNumbers(ctx)
	assert.Equal(t, []string{"PN-2"}, pns, "stale parts are dropped, not patched")

	p, err := m.Part(ctx, "PN-2")
	require.NoError(t, err)
	assert.Equal(t, 3, p.TotalPicked)

	gone, err := m.Part(ctx, "PN-1")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestReadsFallBackToCacheBeforeFirstBuild(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	writer := NewManager(cache)
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, writer.Replace(ctx, []*consolidate.Part{{PartNumber: "PN-10"}, {PartNumber: "PN-9"}}, at))

	reader := NewManager(cache)
	parts, loadedAt, err := reader.Parts(ctx)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "PN-9", parts[0].PartNumber)
	assert.Equal(t, at, loadedAt)

	p, err := reader.Part(ctx, "PN-10")
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestCacheFailureKeepsLocalCopy(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	cache.err = errors.New("redis down")
	m := NewManager(cache)

	err := m.Replace(ctx, []*consolidate.Part{{PartNumber: "PN-1"}}, time.Now())
	require.ErrorIs(t, err, cache.err)

	parts, _, err := m.Parts(ctx)
	require.NoError(t, err)
	assert.Len(t, parts, 1)
}

func TestNilCache(t *testing.T) {
	ctx := context.Background()
	m := NewManager(nil)
	parts, at, err := m.Parts(ctx)
	require.NoError(t, err)
	assert.Empty(t, parts)
	assert.True(t, at.IsZero())

	require.NoError(t, m.Replace(ctx, []*consolidate.Part{{PartNumber: "X"}}, time.Now()))
	p, err := m.Part(ctx, "X")
	require.NoError(t, err)
	assert.NotNil(t, p)
}
