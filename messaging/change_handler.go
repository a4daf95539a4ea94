package messaging

import (
	"github.com/rs/zerolog/log"

	"partpicker/protocol"
)

// Invalidator is told that shared state changed elsewhere. It is expected
// to schedule a full refresh, not to apply the notice.
type Invalidator interface {
	Invalidate(reason string)
}

// ChangeHandler routes inbound notices from other stations to an Invalidator.
type ChangeHandler struct {
	protocol.NoOpHandler
	target Invalidator
}

func NewChangeHandler(target Invalidator) *ChangeHandler {
	return &ChangeHandler{target: target}
}

func (h *ChangeHandler) HandleLedgerChanged(env *protocol.Envelope, p *protocol.LedgerChanged) {
	log.Debug().Str("from", env.Src.Station).Str("reason", p.Reason).Msg("messaging: ledger changed")
	h.target.Invalidate("remote " + p.Reason)
}

func (h *ChangeHandler) HandleDemandChanged(env *protocol.Envelope, p *protocol.DemandChanged) {
	log.Debug().Str("from", env.Src.Station).Ints64("orders", p.OrderIDs).Msg("messaging: demand changed")
	h.target.Invalidate("remote demand change")
}

// NewChangeIngestor builds an ingestor that ignores this station's own
// notices and invalidates on everything else.
func NewChangeIngestor(station string, target Invalidator) *protocol.Ingestor {
	return protocol.NewIngestor(NewChangeHandler(target), protocol.NotFrom(station))
}
