package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"partpicker/config"
	"partpicker/consolidate"
	"partpicker/ledger"
	"partpicker/messaging"
	"partpicker/partstate"
	"partpicker/protocol"
	"partpicker/store"
)

// Notifier publishes change notices to other stations.
type Notifier interface {
	LedgerChanged(p *protocol.LedgerChanged) error
	DemandChanged(p *protocol.DemandChanged) error
}

type Config struct {
	AppConfig *config.Config
	DB        *store.DB
	PartState *partstate.Manager
	MsgClient *messaging.Client
	Notifier  Notifier
}

type Engine struct {
	cfg       *config.Config
	db        *store.DB
	ledger    *ledger.Ledger
	partState *partstate.Manager
	msgClient *messaging.Client
	notifier  Notifier
	Events    *EventBus

	invalidate chan string
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup

	msgConnected bool
}

func New(c Config) *Engine {
	e := &Engine{
		cfg:        c.AppConfig,
		db:         c.DB,
		partState:  c.PartState,
		msgClient:  c.MsgClient,
		notifier:   c.Notifier,
		Events:     NewEventBus(),
		invalidate: make(chan string, 1),
		stopChan:   make(chan struct{}),
	}
	if e.partState == nil {
		e.partState = partstate.NewManager(nil)
	}
	e.ledger = ledger.New(c.DB, ledger.Options{
		PageSize:    c.AppConfig.Ledger.PageSize,
		FilterChunk: c.AppConfig.Ledger.FilterChunk,
		Emitter:     &ledgerEmitter{bus: e.Events},
	})
	e.wireEventHandlers()
	return e
}

// Start loads the replica and begins the background loops. An initial load
// failure is returned; the engine is not started in that case.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.ledger.Refresh(ctx); err != nil {
		return err
	}

	e.wg.Add(1)
	go e.refreshLoop()

	if e.msgClient != nil {
		station := e.cfg.StationID()
		ing := messaging.NewChangeIngestor(station, e)
		if err := e.msgClient.Subscribe(e.cfg.Messaging.ChangesTopic, ing.HandleRaw); err != nil {
			log.Error().Err(err).Str("topic", e.cfg.Messaging.ChangesTopic).Msg("engine: subscribe to change notices")
		}
		e.checkConnectionStatus()
		e.wg.Add(1)
		go e.connectionHealthLoop()
	}

	log.Info().Int("parts", len(e.ledger.Consolidated())).Msg("engine: started")
	return nil
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopChan) })
	e.wg.Wait()
	log.Info().Msg("engine: stopped")
}

// Accessors
func (e *Engine) DB() *store.DB                     { return e.db }
func (e *Engine) AppConfig() *config.Config         { return e.cfg }
func (e *Engine) Ledger() *ledger.Ledger            { return e.ledger }
func (e *Engine) PartState() *partstate.Manager     { return e.partState }
func (e *Engine) MsgClient() *messaging.Client      { return e.msgClient }
func (e *Engine) Consolidated() []*consolidate.Part { return e.ledger.Consolidated() }

// Refresh reloads the replica now.
func (e *Engine) Refresh(ctx context.Context) error {
	if err := e.ledger.Refresh(ctx); err != nil {
		e.Events.Emit(Event{Type: EventRefreshFailed, Payload: RefreshFailedEvent{Reason: "manual", Error: err.Error()}})
		return err
	}
	return nil
}

// Invalidate schedules a refresh. Calls that arrive while one is pending
// are folded into it.
func (e *Engine) Invalidate(reason string) {
	select {
	case e.invalidate <- reason:
	default:
	}
}

func (e *Engine) refreshLoop() {
	defer e.wg.Done()
	debounce := e.cfg.Ledger.RefreshDebounce
	for {
		select {
		case <-e.stopChan:
			return
		case reason := <-e.invalidate:
			if debounce > 0 {
				select {
				case <-time.After(debounce):
				case <-e.stopChan:
					return
				}
			}
			// Anything that arrived during the wait is covered by this refresh.
			select {
			case <-e.invalidate:
			default:
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := e.ledger.Refresh(ctx); err != nil {
				log.Error().Err(err).Str("reason", reason).Msg("engine: refresh failed")
				e.Events.Emit(Event{Type: EventRefreshFailed, Payload: RefreshFailedEvent{Reason: reason, Error: err.Error()}})
			} else {
				log.Debug().Str("reason", reason).Msg("engine: refreshed")
			}
			cancel()
		}
	}
}

func (e *Engine) connectionHealthLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}

func (e *Engine) checkConnectionStatus() {
	if e.msgClient.IsConnected() {
		if !e.msgConnected {
			e.msgConnected = true
			e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: "messaging connected"}})
		}
	} else if e.msgConnected {
		e.msgConnected = false
		e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "messaging disconnected"}})
	}
}
