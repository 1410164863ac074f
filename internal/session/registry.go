// Package session holds the authoritative state of the relay: which
// sessions are authenticated and which of them currently have a live
// event stream attached.
package session

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/event-relay/backend/internal/event"
	"github.com/event-relay/backend/internal/metrics"
	"github.com/google/uuid"
)

var (
	// ErrInvalidCredentials is returned when the verifier rejects a login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated is returned when an operation references a
	// session id that was never minted (or has been removed).
	ErrUnauthenticated = errors.New("session not authenticated")
)

// Verifier decides whether a username/credential pair is acceptable.
// Real authentication schemes plug in here without touching the registry.
type Verifier interface {
	Verify(username, credential string) bool
}

// StaticVerifier accepts logins against a fixed username -> credential map.
type StaticVerifier map[string]string

func (v StaticVerifier) Verify(username, credential string) bool {
	want, ok := v[username]
	return ok && want == credential
}

// Session is the immutable identity record minted at login.
type Session struct {
	ID       string
	Username string
}

// Registry is the single source of truth for authenticated sessions and
// their live connections. Sessions and connections are guarded by
// separate locks; lookups and delivery take read locks so they can run
// concurrently, while login and stream registration take write locks.
type Registry struct {
	verifier Verifier
	logger   *slog.Logger
	metrics  *metrics.Metrics

	// bufferSize is the capacity of each connection's event channel.
	bufferSize int

	sessMu   sync.RWMutex
	sessions map[string]Session

	connMu      sync.RWMutex
	connections map[string]chan event.ServerEvent
}

// NewRegistry creates an empty registry. bufferSize is the per-connection
// outbound event buffer; delivery to a full buffer drops the event.
func NewRegistry(verifier Verifier, bufferSize int, logger *slog.Logger, m *metrics.Metrics) *Registry {
	return &Registry{
		verifier:    verifier,
		logger:      logger,
		metrics:     m,
		bufferSize:  bufferSize,
		sessions:    make(map[string]Session),
		connections: make(map[string]chan event.ServerEvent),
	}
}

// Authenticate validates the credential and, on success, mints a fresh
// session id and records the session. Each successful call mints an
// independent id, even for a repeat login by the same username.
func (r *Registry) Authenticate(username, credential string) (string, error) {
	if !r.verifier.Verify(username, credential) {
		r.metrics.LoginFailures.Inc()
		r.logger.Info("login rejected", "username", username)
		return "", ErrInvalidCredentials
	}

	id := uuid.NewString()
	r.sessMu.Lock()
	r.sessions[id] = Session{ID: id, Username: username}
	r.sessMu.Unlock()

	r.metrics.Logins.Inc()
	r.logger.Info("login accepted", "username", username, "session", id)
	return id, nil
}

// Lookup returns the session record for id, if it exists.
func (r *Registry) Lookup(id string) (Session, bool) {
	r.sessMu.RLock()
	defer r.sessMu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// RegisterStream attaches a fresh connection to an authenticated session
// and returns its receive side. Any prior connection for the same session
// is superseded: its channel stays open but receives nothing further, so
// the old stream is starved rather than torn down.
func (r *Registry) RegisterStream(sessionID string) (<-chan event.ServerEvent, error) {
	if _, ok := r.Lookup(sessionID); !ok {
		return nil, ErrUnauthenticated
	}

	ch := make(chan event.ServerEvent, r.bufferSize)

	r.connMu.Lock()
	_, superseded := r.connections[sessionID]
	r.connections[sessionID] = ch
	r.connMu.Unlock()

	if superseded {
		r.metrics.StreamsSuperseded.Inc()
		r.logger.Info("stream superseded", "session", sessionID)
	}
	return ch, nil
}

// UnregisterStream detaches the connection ch from sessionID, if it is
// still the live one. A connection that was already superseded is left
// alone so the newer stream keeps receiving.
func (r *Registry) UnregisterStream(sessionID string, ch <-chan event.ServerEvent) {
	r.connMu.Lock()
	if cur, ok := r.connections[sessionID]; ok && (<-chan event.ServerEvent)(cur) == ch {
		delete(r.connections, sessionID)
	}
	r.connMu.Unlock()
}

// Deliver enqueues ev onto the live connection for sessionID, if any.
// Fire-and-forget, at-most-once: no connection means the event is dropped,
// and a full buffer drops the newest event rather than blocking the
// caller. Both drop paths are counted so they stay observable.
func (r *Registry) Deliver(sessionID string, ev event.ServerEvent) {
	r.connMu.RLock()
	ch, ok := r.connections[sessionID]
	r.connMu.RUnlock()

	if !ok {
		r.metrics.EventsDroppedNoConn.Inc()
		r.logger.Debug("event dropped, no open stream", "session", sessionID)
		return
	}

	select {
	case ch <- ev:
		r.metrics.EventsDelivered.Inc()
	default:
		r.metrics.EventsDroppedBufferFull.Inc()
		r.logger.Warn("event dropped, connection buffer full", "session", sessionID)
	}
}

// SessionCount reports the number of authenticated sessions.
func (r *Registry) SessionCount() int {
	r.sessMu.RLock()
	defer r.sessMu.RUnlock()
	return len(r.sessions)
}

// ConnectionCount reports the number of live connections.
func (r *Registry) ConnectionCount() int {
	r.connMu.RLock()
	defer r.connMu.RUnlock()
	return len(r.connections)
}
