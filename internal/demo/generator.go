// Package demo generates synthetic traffic for development: it mints a
// session up front and periodically re-submits a connect command so an
// open stream shows live events without a real client driving it.
package demo

import (
	"context"
	"log/slog"
	"time"

	"github.com/event-relay/backend/internal/dispatch"
	"github.com/event-relay/backend/internal/event"
	"github.com/event-relay/backend/internal/session"
)

// Credentials of the demo user. The generator installs them into the
// verifier's user set before the server starts.
const (
	Username = "demo"
	Password = "demo"
)

type Generator struct {
	registry   *session.Registry
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger
	interval   time.Duration
}

func NewGenerator(registry *session.Registry, dispatcher *dispatch.Dispatcher, interval time.Duration, logger *slog.Logger) *Generator {
	return &Generator{
		registry:   registry,
		dispatcher: dispatcher,
		logger:     logger,
		interval:   interval,
	}
}

// Start mints the demo session and begins the command loop. It returns
// the session id so the caller can print the stream URL.
func (g *Generator) Start(ctx context.Context) (string, error) {
	id, err := g.registry.Authenticate(Username, Password)
	if err != nil {
		return "", err
	}
	g.logger.Info("demo session ready", "session", id, "stream", "/sse/"+id)

	go g.loop(ctx, id)
	return id, nil
}

func (g *Generator) loop(ctx context.Context, sessionID string) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.dispatcher.Enqueue(ctx, sessionID, event.Connect{})
		}
	}
}
