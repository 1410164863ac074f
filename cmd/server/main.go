package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/event-relay/backend/internal/config"
	"github.com/event-relay/backend/internal/demo"
	"github.com/event-relay/backend/internal/dispatch"
	"github.com/event-relay/backend/internal/frontend"
	"github.com/event-relay/backend/internal/metrics"
	"github.com/event-relay/backend/internal/session"
	"github.com/event-relay/backend/internal/web"
	"github.com/event-relay/backend/internal/ws"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	demoMode := flag.Bool("demo", false, "Mint a demo session and generate periodic events")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		logger.Info("no config file, using defaults", "path", *configPath)
		cfg = config.Default()
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	users := session.StaticVerifier(cfg.Auth.Users)
	if users == nil {
		users = session.StaticVerifier{}
	}
	if *demoMode {
		users[demo.Username] = demo.Password
	}

	registry := session.NewRegistry(users, cfg.Stream.ConnectionBuffer, logger, m)
	dispatcher := dispatch.New(registry, cfg.Dispatcher.QueueCapacity, logger, m)
	defer dispatcher.Stop()

	static := frontend.Handler()
	if static == nil {
		dir := cfg.Server.StaticDir
		if dir == "" {
			dir = "www"
		}
		if _, err := os.Stat(dir); err == nil {
			logger.Info("serving frontend from filesystem", "dir", dir)
			static = http.FileServer(http.Dir(dir))
		} else {
			logger.Info("no frontend available, serving API only")
		}
	}

	hb := web.Heartbeat(cfg.Stream.HeartbeatInterval)
	wsEndpoint := ws.NewEndpoint(registry, cfg.Stream.HeartbeatInterval, cfg.Server.AllowedOrigins, logger, m)
	server := web.NewServer(registry, dispatcher, hb, static, wsEndpoint.Handle, logger, m, reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *demoMode {
		gen := demo.NewGenerator(registry, dispatcher, 2*time.Second, logger)
		if _, err := gen.Start(ctx); err != nil {
			logger.Error("failed to start demo generator", "error", err)
			os.Exit(1)
		}
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: server.Routes(),
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown incomplete", "error", err)
		}
	}()

	logger.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
