package www

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"partpicker/consolidate"
	"partpicker/engine"
	"partpicker/ledger"
)

func (h *Handlers) apiConsolidated(w http.ResponseWriter, r *http.Request) {
	parts, loadedAt, err := h.engine.PartState().Parts(r.Context())
	if err != nil {
		h.engineError(w, err)
		return
	}
	if parts == nil {
		parts = []*consolidate.Part{}
	}
	h.jsonOK(w, map[string]any{"parts": parts, "loaded_at": loadedAt})
}

func (h *Handlers) apiConsolidatedPart(w http.ResponseWriter, r *http.Request) {
	pn := chi.URLParam(r, "part")
	part, err := h.engine.PartState().Part(r.Context(), pn)
	if err != nil {
		h.engineError(w, err)
		return
	}
	if part == nil {
		h.jsonError(w, "part not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, part)
}

func (h *Handlers) apiPlanPart(w http.ResponseWriter, r *http.Request) {
	var req engine.PlanRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Actor = h.actor(r, req.Actor)
	plan, err := h.engine.PlanPart(req)
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, plan)
}

func (h *Handlers) apiCommitPlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Picks []ledger.PickRequest `json:"picks"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	for i := range req.Picks {
		req.Picks[i].Actor = h.actor(r, req.Picks[i].Actor)
	}
	res, err := h.engine.CommitPlan(r.Context(), req.Picks)
	if err != nil {
		if res != nil && len(res.Events) > 0 {
			h.jsonPartial(w, err, res)
			return
		}
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, res)
}
