package messaging

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"partpicker/protocol"
	"partpicker/store"
)

// OutboxStore is the slice of the store the drainer needs.
type OutboxStore interface {
	ListPendingOutbox(limit int) ([]*store.OutboxMessage, error)
	AckOutbox(id int64) error
	IncrementOutboxRetries(id int64) error
}

// Publisher sends raw bytes to a topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

const outboxBatch = 50

// OutboxDrainer periodically sends pending outbox messages.
type OutboxDrainer struct {
	db       OutboxStore
	client   Publisher
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
}

func NewOutboxDrainer(db OutboxStore, client Publisher, interval time.Duration) *OutboxDrainer {
	return &OutboxDrainer{
		db:       db,
		client:   client,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (d *OutboxDrainer) Start() {
	go d.run()
}

func (d *OutboxDrainer) Stop() {
	d.stopOnce.Do(func() { close(d.stopChan) })
}

func (d *OutboxDrainer) run() {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.drain()
		}
	}
}

// drain publishes one batch. Notices that expired while queued are acked
// without publishing.
func (d *OutboxDrainer) drain() int {
	msgs, err := d.db.ListPendingOutbox(outboxBatch)
	if err != nil {
		log.Error().Err(err).Msg("outbox: list pending")
		return 0
	}
	sent := 0
	for _, msg := range msgs {
		if expired(msg.Payload) {
			log.Debug().Int64("id", msg.ID).Str("type", msg.MsgType).Msg("outbox: dropping expired notice")
			d.ack(msg.ID)
			continue
		}
		if err := d.client.Publish(msg.Topic, msg.Payload); err != nil {
			log.Warn().Err(err).Str("topic", msg.Topic).Int("retries", msg.Retries).Msg("outbox: publish failed")
			if err := d.db.IncrementOutboxRetries(msg.ID); err != nil {
				log.Error().Err(err).Int64("id", msg.ID).Msg("outbox: increment retries")
			}
			continue
		}
		d.ack(msg.ID)
		sent++
	}
	return sent
}

func (d *OutboxDrainer) ack(id int64) {
	if err := d.db.AckOutbox(id); err != nil {
		log.Error().Err(err).Int64("id", id).Msg("outbox: ack")
	}
}

func expired(payload []byte) bool {
	var hdr protocol.RawHeader
	if err := json.Unmarshal(payload, &hdr); err != nil {
		return false
	}
	return protocol.IsExpiredHeader(&hdr)
}
