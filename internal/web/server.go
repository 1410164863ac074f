// Package web exposes the relay over HTTP: the login endpoint, the
// command ingress, the SSE stream endpoint, Prometheus metrics, and the
// static frontend.
package web

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/event-relay/backend/internal/dispatch"
	"github.com/event-relay/backend/internal/event"
	"github.com/event-relay/backend/internal/metrics"
	"github.com/event-relay/backend/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxCommandBody bounds the /send request body. Commands are tiny; a
// larger body is a client bug.
const maxCommandBody = 4 << 10

type Server struct {
	registry   *session.Registry
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	gatherer   prometheus.Gatherer

	heartbeat Heartbeat
	static    http.Handler
	wsStream  http.HandlerFunc
}

// NewServer wires the HTTP surface. static may be nil when no frontend
// is available (API-only mode); wsStream may be nil to disable the
// WebSocket mirror.
func NewServer(registry *session.Registry, dispatcher *dispatch.Dispatcher, hb Heartbeat, static http.Handler, wsStream http.HandlerFunc, logger *slog.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	return &Server{
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    m,
		gatherer:   gatherer,
		heartbeat:  hb,
		static:     static,
		wsStream:   wsStream,
	}
}

// Routes builds the router. The static handler is the fallback so the
// frontend owns / and /assets/* without shadowing the API routes.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/login", s.handleLogin)
	r.Post("/send/{sessionID}", s.handleSend)
	r.Get("/sse/{sessionID}", s.handleSSE)
	if s.wsStream != nil {
		r.Get("/ws/{sessionID}", s.wsStream)
	}
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	if s.static != nil {
		r.Handle("/*", s.static)
	}
	return r
}

// handleLogin validates the submitted credential and redirects with the
// fresh session id on success, or with a generic failure flag otherwise.
// The response never says which field was wrong.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	id, err := s.registry.Authenticate(username, password)
	if err != nil {
		http.Redirect(w, r, "/?login=failed", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/?session="+url.QueryEscape(id), http.StatusSeeOther)
}

// handleSend accepts a command for a session and hands it to the
// dispatcher. It does not check that the session is authenticated or
// streaming: delivery drops silently when nobody is listening, which is
// the contract for at-most-once commands.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}
	cmd, err := event.UnmarshalClientCommand(body)
	if err != nil {
		http.Error(w, fmt.Sprintf("bad command: %v", err), http.StatusBadRequest)
		return
	}

	s.dispatcher.Enqueue(r.Context(), sessionID, cmd)
	w.WriteHeader(http.StatusNoContent)
}
