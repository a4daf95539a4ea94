package www

import (
	"net/http"

	"partpicker/ledger"
	"partpicker/store"
)

func (h *Handlers) apiRecordPick(w http.ResponseWriter, r *http.Request) {
	var req ledger.PickRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Actor = h.actor(r, req.Actor)
	res, err := h.engine.RecordPick(r.Context(), req)
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, res)
}

func (h *Handlers) apiUndoPick(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r)
	if !ok {
		return
	}
	res, err := h.engine.UndoPick(r.Context(), id, h.actor(r, r.URL.Query().Get("actor")))
	if err != nil {
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, res)
}

func (h *Handlers) apiUndoByQuantity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DemandLineID int64  `json:"demand_line_id"`
		ToolID       int64  `json:"tool_id"`
		Qty          int    `json:"qty"`
		Actor        string `json:"actor"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.engine.UndoByQuantity(r.Context(), req.DemandLineID, req.ToolID, req.Qty, h.actor(r, req.Actor))
	if err != nil {
		if res != nil {
			h.jsonPartial(w, err, res)
			return
		}
		h.engineError(w, err)
		return
	}
	h.jsonOK(w, res)
}

func (h *Handlers) apiPickAllRemaining(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r)
	if !ok {
		return
	}
	var req struct {
		Actor string `json:"actor"`
		Notes string `json:"notes"`
	}
	if r.ContentLength != 0 && !h.decode(w, r, &req) {
		return
	}
	res, err := h.engine.PickAllRemaining(r.Context(), id, h.actor(r, req.Actor), req.Notes)
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

func (h *Handlers) apiPicksForTool(w http.ResponseWriter, r *http.Request) {
	id, ok := h.urlID(w, r)
	if !ok {
		return
	}
	h.jsonOK(w, h.engine.Ledger().PicksForTool(id))
}

func (h *Handlers) apiPicksForAllTools(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.Ledger().PicksForAllTools())
}

func (h *Handlers) apiPickHistory(w http.ResponseWriter, r *http.Request) {
	lineID, err := queryID(r, "line")
	if err != nil || lineID == 0 {
		h.jsonError(w, "line is required", http.StatusBadRequest)
		return
	}
	toolID, err := queryID(r, "tool")
	if err != nil || toolID == 0 {
		h.jsonError(w, "tool is required", http.StatusBadRequest)
		return
	}
	history := h.engine.Ledger().PickHistory(lineID, toolID)
	if history == nil {
		history = []*store.PickEvent{}
	}
	h.jsonOK(w, history)
}

func (h *Handlers) apiListUndoRecords(w http.ResponseWriter, r *http.Request) {
	lineID, err := queryID(r, "line")
	if err != nil {
		h.jsonError(w, "invalid line", http.StatusBadRequest)
		return
	}
	page := store.Page{Limit: 100}
	if v, err := queryID(r, "limit"); err == nil && v > 0 {
		page.Limit = int(v)
	}
	if v, err := queryID(r, "offset"); err == nil && v > 0 {
		page.Offset = int(v)
	}
	recs, err := h.engine.DB().ListUndoRecords(r.Context(), lineID, page)
	if err != nil {
		h.engineError(w, err)
		return
	}
	if recs == nil {
		recs = []*store.UndoRecord{}
	}
	h.jsonOK(w, recs)
}
