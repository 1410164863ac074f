package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/event-relay/backend/internal/event"
	"github.com/go-chi/chi/v5"
)

// Heartbeat is the idle interval between keep-alive frames.
type Heartbeat time.Duration

// DefaultHeartbeat matches the one-second keep-alive cadence clients
// are written against.
const DefaultHeartbeat = Heartbeat(time.Second)

// handleSSE opens the server-push stream for one session. An
// unauthenticated session gets exactly one sessionExpired frame and the
// stream ends; an authenticated one gets every event enqueued on its
// connection until the client disconnects or a newer stream supersedes
// this one (in which case this stream is starved, not closed).
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events, err := s.registry.RegisterStream(sessionID)
	if err != nil {
		s.metrics.ExpiredStreamOpens.Inc()
		s.logger.Info("stream rejected, session unknown", "session", sessionID)
		writeFrame(w, event.SessionExpired{})
		flusher.Flush()
		return
	}
	defer s.registry.UnregisterStream(sessionID, events)

	// Push the response headers out before the first event or heartbeat
	// so the client's stream open completes immediately.
	flusher.Flush()

	s.metrics.StreamsOpened.Inc()
	s.metrics.ActiveStreams.Inc()
	defer s.metrics.ActiveStreams.Dec()
	s.logger.Info("stream opened", "session", sessionID)
	defer s.logger.Info("stream closed", "session", sessionID)

	interval := time.Duration(s.heartbeat)
	if interval <= 0 {
		interval = time.Duration(DefaultHeartbeat)
	}
	heartbeat := time.NewTicker(interval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-events:
			if err := writeFrame(w, ev); err != nil {
				return
			}
			heartbeat.Reset(interval)
		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": %s\n\n", event.KeepAliveText); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

// writeFrame serializes one event as a single SSE data frame.
func writeFrame(w http.ResponseWriter, ev event.ServerEvent) error {
	data, err := event.MarshalServerEvent(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
