package protocol

// NoOpHandler implements MessageHandler with no-op methods.
// Embed this and override only the methods you need.
type NoOpHandler struct{}

func (NoOpHandler) HandleLedgerChanged(*Envelope, *LedgerChanged) {}
func (NoOpHandler) HandleDemandChanged(*Envelope, *DemandChanged) {}

// Compile-time check that NoOpHandler implements MessageHandler.
var _ MessageHandler = NoOpHandler{}
