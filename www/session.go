package www

import (
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
)

const sessionName = "partpicker-session"

func newSessionStore(secret string) *sessions.CookieStore {
	if secret == "" {
		secret = "partpicker-default-secret-change-me"
	}
	s := sessions.NewCookieStore([]byte(secret))
	s.Options.HttpOnly = true
	s.Options.Secure = false // shop-floor LAN, plain HTTP
	s.Options.SameSite = http.SameSiteLaxMode
	return s
}

// operator returns the name stored in the session cookie, or "".
func (h *Handlers) operator(r *http.Request) string {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return ""
	}
	name, _ := session.Values["operator"].(string)
	return name
}

// actor picks the name to record against a write: an explicit name in the
// request wins over the session operator.
func (h *Handlers) actor(r *http.Request, explicit string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return s
	}
	return h.operator(r)
}

func (h *Handlers) apiGetOperator(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, map[string]string{"operator": h.operator(r)})
}

func (h *Handlers) apiSetOperator(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Operator string `json:"operator"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	session, _ := h.sessions.Get(r, sessionName)
	session.Values["operator"] = strings.TrimSpace(req.Operator)
	if err := session.Save(r, w); err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, map[string]string{"operator": strings.TrimSpace(req.Operator)})
}
