package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/healthfolio/tracker-manager/internal/config"
	"github.com/healthfolio/tracker-manager/internal/connect"
	"github.com/healthfolio/tracker-manager/internal/serviceerr"
)

type handler struct {
	manager         *connect.Manager
	successRedirect string
	failureRedirect string
}

func newHandler(cfg *config.Config, manager *connect.Manager) *handler {
	return &handler{
		manager:         manager,
		successRedirect: cfg.Tracker.SuccessRedirect,
		failureRedirect: cfg.Tracker.FailureRedirect,
	}
}

func (h *handler) routes(cfg *config.Config) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /connect/authorize", traceMiddleware(cfg, "authorize", h.authorize))
	mux.Handle("GET /connect/callback", traceMiddleware(cfg, "callback", h.callback))
	mux.Handle("GET /connect/status", traceMiddleware(cfg, "status", h.status))
	mux.Handle("DELETE /connect", traceMiddleware(cfg, "disconnect", h.disconnect))
	mux.Handle("GET /connect/diagnostics", traceMiddleware(cfg, "diagnostics", h.diagnostics))

	return mux
}

func (h *handler) authorize(w http.ResponseWriter, r *http.Request) {
	authorizationURL, err := h.manager.Initiate(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"authorizationUrl": authorizationURL})
}

// callback terminates the provider redirect. The browser is sent to the
// configured success or failure location with a query flag only; error detail
// stays in the server logs.
func (h *handler) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	err := h.manager.FinaliseConnect(r.Context(), q.Get("state"), q.Get("code"))
	if err != nil {
		slogctx.Error(r.Context(), "Finalising tracker connection failed", "error", err)
		http.Redirect(w, r, withQueryFlag(h.failureRedirect, "connected", "false"), http.StatusFound)

		return
	}

	http.Redirect(w, r, withQueryFlag(h.successRedirect, "connected", "true"), http.StatusFound)
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	connected, err := h.manager.Status(r.Context(), bearerToken(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"isConnected": connected})
}

func (h *handler) disconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Disconnect(r.Context(), bearerToken(r)); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) diagnostics(w http.ResponseWriter, r *http.Request) {
	report, err := h.manager.Diagnose(r.Context(), bearerToken(r), r.URL.Query().Get("timezone"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return ""
	}

	return strings.TrimPrefix(auth, "Bearer ")
}

func withQueryFlag(rawURL, key, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()

	return u.String()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps an operation error to an HTTP status and an opaque body.
// Internal detail is logged server-side only.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	slogctx.Error(r.Context(), "Request failed", "error", err)

	var svcErr *serviceerr.Error
	if !errors.As(err, &svcErr) {
		svcErr = serviceerr.ErrUnknown
	}

	writeJSON(w, svcErr.HTTPStatus(), map[string]string{"error": string(svcErr.Err)})
}
