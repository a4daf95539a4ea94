package messaging

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"partpicker/config"
	"partpicker/protocol"
	"partpicker/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(&config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type fakePublisher struct {
	mu   sync.Mutex
	sent map[string][][]byte
	err  error
}

func (p *fakePublisher) Publish(topic string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.sent == nil {
		p.sent = map[string][][]byte{}
	}
	p.sent[topic] = append(p.sent[topic], payload)
	return nil
}

func (p *fakePublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent[topic])
}

func TestNotifierQueuesEnvelope(t *testing.T) {
	db := testDB(t)
	n := NewNotifier(db, "partpicker.changes", "bench-1")

	require.NoError(t, n.LedgerChanged(&protocol.LedgerChanged{Reason: protocol.ReasonPickRecorded, EventIDs: []int64{5}}))

	pending, err := db.ListPendingOutbox(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, protocol.TypeLedgerChanged, pending[0].MsgType)
	assert.Equal(t, "bench-1", pending[0].StationID)

	var env protocol.Envelope
	require.NoError(t, json.Unmarshal(pending[0].Payload, &env))
	assert.Equal(t, "bench-1", env.Src.Station)
}

func TestDrainerPublishesAndAcks(t *testing.T) {
	db := testDB(t)
	n := NewNotifier(db, "partpicker.changes", "bench-1")
	require.NoError(t, n.LedgerChanged(&protocol.LedgerChanged{}))
	require.NoError(t, n.DemandChanged(&protocol.DemandChanged{OrderIDs: []int64{1}}))

	pub := &fakePublisher{}
	d := NewOutboxDrainer(db, pub, time.Hour)
	assert.Equal(t, 2, d.drain())
	assert.Equal(t, 2, pub.count("partpicker.changes"))

	pending, err := db.ListPendingOutbox(10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDrainerRetriesOnPublishFailure(t *testing.T) {
	db := testDB(t)
	require.NoError(t, NewNotifier(db, "t", "s").LedgerChanged(&protocol.LedgerChanged{}))

	pub := &fakePublisher{err: errors.New("broker down")}
	d := NewOutboxDrainer(db, pub, time.Hour)
	assert.Equal(t, 0, d.drain())

	pending, err := db.ListPendingOutbox(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].Retries)

	pub.err = nil
	assert.Equal(t, 1, d.drain())
}

func TestDrainerDropsExpiredNotices(t *testing.T) {
	db := testDB(t)
	env, err := protocol.NewEnvelope(protocol.TypeLedgerChanged, protocol.Address{Station: "s"}, protocol.Broadcast(), &protocol.LedgerChanged{})
	require.NoError(t, err)
	env.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	data, err := env.Encode()
	require.NoError(t, err)
	require.NoError(t, db.EnqueueOutbox("t", data, env.Type, "s"))

	pub := &fakePublisher{}
	d := NewOutboxDrainer(db, pub, time.Hour)
	assert.Equal(t, 0, d.drain())
	assert.Equal(t, 0, pub.count("t"))

	pending, err := db.ListPendingOutbox(10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDrainerStartStop(t *testing.T) {
	db := testDB(t)
	require.NoError(t, NewNotifier(db, "t", "s").LedgerChanged(&protocol.LedgerChanged{}))
	pub := &fakePublisher{}
	d := NewOutboxDrainer(db, pub, 10*time.Millisecond)
	d.Start()
	assert.Eventually(t, func() bool { return pub.count("t") == 1 }, 2*time.Second, 10*time.Millisecond)
	d.Stop()
	d.Stop()
}

type invalidations struct {
	mu      sync.Mutex
	reasons []string
}

func (i *invalidations) Invalidate(reason string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.reasons = append(i.reasons, reason)
}

func TestChangeIngestorIgnoresOwnStation(t *testing.T) {
	target := &invalidations{}
	ing := NewChangeIngestor("bench-1", target)

	mine, err := protocol.NewEnvelope(protocol.TypeLedgerChanged,
		protocol.Address{Role: protocol.RoleStation, Station: "bench-1"}, protocol.Broadcast(),
		&protocol.LedgerChanged{Reason: protocol.ReasonPickRecorded})
	require.NoError(t, err)
	theirs, err := protocol.NewEnvelope(protocol.TypeLedgerChanged,
		protocol.Address{Role: protocol.RoleStation, Station: "bench-2"}, protocol.Broadcast(),
		&protocol.LedgerChanged{Reason: protocol.ReasonPickUndone})
	require.NoError(t, err)
	demand, err := protocol.NewEnvelope(protocol.TypeDemandChanged,
		protocol.Address{Role: protocol.RoleTool, Station: "import"}, protocol.Broadcast(),
		&protocol.DemandChanged{OrderIDs: []int64{3}})
	require.NoError(t, err)

	for _, env := range []*protocol.Envelope{mine, theirs, demand} {
		data, err := env.Encode()
		require.NoError(t, err)
		ing.HandleRaw(data)
	}
	assert.Equal(t, []string{"remote pick.undone", "remote demand change"}, target.reasons)
}
