// Package ws mirrors the SSE stream endpoint over a WebSocket, for
// clients behind proxies that buffer event streams. Each event is one
// text frame with the same JSON payload as the SSE transport, and the
// same supersession rule applies: one live connection per session,
// regardless of transport.
package ws

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/event-relay/backend/internal/event"
	"github.com/event-relay/backend/internal/metrics"
	"github.com/event-relay/backend/internal/session"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Endpoint serves GET /ws/{sessionID}.
type Endpoint struct {
	registry  *session.Registry
	logger    *slog.Logger
	metrics   *metrics.Metrics
	heartbeat time.Duration

	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
}

// NewEndpoint creates the WebSocket endpoint. allowedOrigins extends the
// default same-host/localhost origin policy.
func NewEndpoint(registry *session.Registry, heartbeat time.Duration, allowedOrigins []string, logger *slog.Logger, m *metrics.Metrics) *Endpoint {
	if heartbeat <= 0 {
		heartbeat = time.Second
	}
	e := &Endpoint{
		registry:       registry,
		logger:         logger,
		metrics:        m,
		heartbeat:      heartbeat,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
	}
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		e.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			e.allowedHosts[parsed.Host] = true
		}
	}
	return e
}

// Handle upgrades the request and streams the session's events until the
// client disconnects or the connection is superseded and starved.
func (e *Endpoint) Handle(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	upgrader := websocket.Upgrader{CheckOrigin: e.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		e.logger.Warn("ws upgrade failed", "session", sessionID, "error", err)
		return
	}
	defer conn.Close()

	events, err := e.registry.RegisterStream(sessionID)
	if err != nil {
		e.metrics.ExpiredStreamOpens.Inc()
		e.writeEvent(conn, event.SessionExpired{})
		return
	}
	defer e.registry.UnregisterStream(sessionID, events)

	e.metrics.StreamsOpened.Inc()
	e.metrics.ActiveStreams.Inc()
	defer e.metrics.ActiveStreams.Dec()
	e.logger.Info("ws stream opened", "session", sessionID, "remote", r.RemoteAddr)
	defer e.logger.Info("ws stream closed", "session", sessionID)

	// Drain reads so close frames and connection drops surface.
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	heartbeat := time.NewTicker(e.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-readerDone:
			return
		case ev := <-events:
			if err := e.writeEvent(conn, ev); err != nil {
				return
			}
			heartbeat.Reset(e.heartbeat)
		case <-heartbeat.C:
			deadline := time.Now().Add(writeWait)
			if err := conn.WriteControl(websocket.PingMessage, []byte(event.KeepAliveText), deadline); err != nil {
				return
			}
		}
	}
}

func (e *Endpoint) writeEvent(conn *websocket.Conn, ev event.ServerEvent) error {
	data, err := event.MarshalServerEvent(ev)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// checkOrigin permits configured origins, same-host requests, and
// localhost during development.
func (e *Endpoint) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(e.allowedOrigins) > 0 {
		if e.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return e.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := parsed.Host
	if host == "" {
		return false
	}
	if host == r.Host {
		return true
	}
	if host == "localhost" || strings.HasPrefix(host, "localhost:") {
		return true
	}
	if host == "127.0.0.1" || strings.HasPrefix(host, "127.0.0.1:") {
		return true
	}
	if host == "::1" || strings.HasPrefix(host, "[::1]:") {
		return true
	}
	return false
}
