package messaging

import (
	"fmt"

	"partpicker/protocol"
)

// OutboxEnqueuer queues a message for the drainer.
type OutboxEnqueuer interface {
	EnqueueOutbox(topic string, payload []byte, msgType, stationID string) error
}

// Notifier turns committed changes into outbound notices. Notices are
// queued in the database so that a broker outage never blocks a write.
type Notifier struct {
	db      OutboxEnqueuer
	topic   string
	station string
}

func NewNotifier(db OutboxEnqueuer, topic, station string) *Notifier {
	return &Notifier{db: db, topic: topic, station: station}
}

func (n *Notifier) Station() string { return n.station }

func (n *Notifier) LedgerChanged(p *protocol.LedgerChanged) error {
	return n.enqueue(protocol.TypeLedgerChanged, p)
}

func (n *Notifier) DemandChanged(p *protocol.DemandChanged) error {
	return n.enqueue(protocol.TypeDemandChanged, p)
}

func (n *Notifier) enqueue(msgType string, payload any) error {
	src := protocol.Address{Role: protocol.RoleStation, Station: n.station}
	env, err := protocol.NewEnvelope(msgType, src, protocol.Broadcast(), payload)
	if err != nil {
		return fmt.Errorf("build %s: %w", msgType, err)
	}
	data, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encode %s: %w", msgType, err)
	}
	if err := n.db.EnqueueOutbox(n.topic, data, msgType, n.station); err != nil {
		return fmt.Errorf("enqueue %s: %w", msgType, err)
	}
	return nil
}
