package www

import (
	"net/http"
)

func (h *Handlers) apiHealthCheck(w http.ResponseWriter, r *http.Request) {
	messaging := false
	if c := h.engine.MsgClient(); c != nil {
		messaging = c.IsConnected()
	}
	snap := h.engine.Ledger().Snapshot()
	h.jsonOK(w, map[string]any{
		"status":      "ok",
		"station":     h.engine.AppConfig().StationID(),
		"messaging":   messaging,
		"loaded_at":   snap.LoadedAt,
		"parts":       len(snap.Parts),
		"sse_clients": h.eventHub.ClientCount(),
	})
}

func (h *Handlers) apiRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Refresh(r.Context()); err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, map[string]any{"loaded_at": h.engine.Ledger().Snapshot().LoadedAt})
}

// apiDemandChanged lets the application that owns orders and demand lines
// report an edit so every station rebuilds.
func (h *Handlers) apiDemandChanged(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderIDs []int64 `json:"order_ids"`
		Reason   string  `json:"reason"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	h.engine.DemandChanged(req.OrderIDs, req.Reason)
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) apiSetOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
		Actor  string `json:"actor"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.engine.SetOrderStatus(r.Context(), id, req.Status, h.actor(r, req.Actor)); err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, map[string]any{"id": id, "status": req.Status})
}
