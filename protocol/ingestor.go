package protocol

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// FilterFunc returns true if the message should be processed.
type FilterFunc func(hdr *RawHeader) bool

// MessageHandler defines callbacks for all protocol message types.
// Embed NoOpHandler and override only the methods you need.
type MessageHandler interface {
	HandleLedgerChanged(env *Envelope, p *LedgerChanged)
	HandleDemandChanged(env *Envelope, p *DemandChanged)
}

// Ingestor performs two-phase decode and dispatches to a MessageHandler.
type Ingestor struct {
	handler MessageHandler
	filter  FilterFunc
}

// NewIngestor creates an ingestor with the given handler and filter.
func NewIngestor(handler MessageHandler, filter FilterFunc) *Ingestor {
	return &Ingestor{
		handler: handler,
		filter:  filter,
	}
}

// NotFrom drops messages whose source is the given station.
func NotFrom(station string) FilterFunc {
	return func(hdr *RawHeader) bool {
		return hdr.Src.Station != station
	}
}

// HandleRaw is the entry point for raw message bytes from the messaging layer.
func (ing *Ingestor) HandleRaw(data []byte) {
	// Phase 1: decode routing header only
	var hdr RawHeader
	if err := json.Unmarshal(data, &hdr); err != nil {
		log.Warn().Err(err).Msg("protocol: header decode error")
		return
	}

	if IsExpiredHeader(&hdr) {
		log.Debug().Str("id", hdr.ID).Str("type", hdr.Type).Msg("protocol: dropping expired message")
		return
	}

	if ing.filter != nil && !ing.filter(&hdr) {
		return
	}

	// Phase 2: full envelope decode
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Msg("protocol: envelope decode error")
		return
	}

	switch env.Type {
	case TypeLedgerChanged:
		decodeAndCall(ing.handler.HandleLedgerChanged, &env)
	case TypeDemandChanged:
		decodeAndCall(ing.handler.HandleDemandChanged, &env)
	default:
		log.Warn().Str("type", env.Type).Msg("protocol: unknown message type")
	}
}

// decodeAndCall unmarshals the payload and calls the handler method.
func decodeAndCall[T any](fn func(*Envelope, *T), env *Envelope) {
	var p T
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		log.Warn().Err(err).Str("type", env.Type).Msg("protocol: payload decode error")
		return
	}
	fn(env, &p)
}
