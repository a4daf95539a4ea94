package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"

	"partpicker/engine"
)

type Handlers struct {
	engine   *engine.Engine
	sessions *sessions.CookieStore
	eventHub *EventHub
}

func NewRouter(eng *engine.Engine) (http.Handler, func()) {
	hub := NewEventHub()
	hub.Start()
	hub.SetupEngineListeners(eng)

	h := &Handlers{
		engine:   eng,
		sessions: newSessionStore(eng.AppConfig().Web.SessionSecret),
		eventHub: hub,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5, "application/json"))

	// SSE
	r.Get("/events", hub.SSEHandler)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.apiHealthCheck)
		r.Get("/operator", h.apiGetOperator)
		r.Post("/operator", h.apiSetOperator)

		// Ledger reads
		r.Get("/picks", h.apiPicksForAllTools)
		r.Get("/tools/{id}/picks", h.apiPicksForTool)
		r.Get("/history", h.apiPickHistory)
		r.Get("/undo-records", h.apiListUndoRecords)
		r.Get("/consolidated", h.apiConsolidated)
		r.Get("/consolidated/{part}", h.apiConsolidatedPart)

		// Ledger writes
		r.Post("/picks", h.apiRecordPick)
		r.Delete("/picks/{id}", h.apiUndoPick)
		r.Post("/picks/undo-quantity", h.apiUndoByQuantity)
		r.Post("/lines/{id}/pick-remaining", h.apiPickAllRemaining)

		// Allocation
		r.Post("/plans", h.apiPlanPart)
		r.Post("/plans/commit", h.apiCommitPlan)

		r.Post("/orders/{id}/status", h.apiSetOrderStatus)

		r.Post("/refresh", h.apiRefresh)
		r.Post("/demand-changed", h.apiDemandChanged)
	})

	stopFn := func() {
		hub.Stop()
	}

	return r, stopFn
}
