package www

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"partpicker/engine"
	"partpicker/ledger"
	"partpicker/store"
)

func (h *Handlers) jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// jsonPartial reports a failed operation together with whatever it had
// already committed.
func (h *Handlers) jsonPartial(w http.ResponseWriter, err error, result any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(err))
	json.NewEncoder(w).Encode(map[string]any{"error": err.Error(), "result": result})
}

func (h *Handlers) engineError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Msg("www: request failed")
	}
	h.jsonError(w, err.Error(), code)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrToolNotApplicable),
		errors.Is(err, engine.ErrUnknownPolicy),
		errors.Is(err, engine.ErrUnknownScope),
		errors.Is(err, engine.ErrUnknownOrderStatus),
		errors.Is(err, store.ErrPageTooLarge),
		errors.Is(err, store.ErrFilterTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrPickNotFound),
		errors.Is(err, ledger.ErrDemandLineNotFound),
		errors.Is(err, engine.ErrPartNotFound),
		errors.Is(err, engine.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrContextUnresolved):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func (h *Handlers) urlID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.jsonError(w, "invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func queryID(r *http.Request, key string) (int64, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
