package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Server.Port != 8000 {
		t.Errorf("Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.Stream.HeartbeatInterval != time.Second {
		t.Errorf("HeartbeatInterval = %v, want 1s", cfg.Stream.HeartbeatInterval)
	}
	if cfg.Dispatcher.QueueCapacity != 32 {
		t.Errorf("QueueCapacity = %d, want 32", cfg.Dispatcher.QueueCapacity)
	}
	if cfg.Stream.ConnectionBuffer != 16 {
		t.Errorf("ConnectionBuffer = %d, want 16", cfg.Stream.ConnectionBuffer)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9000
stream:
  heartbeat_interval: 250ms
auth:
  users:
    alice: secret
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Stream.HeartbeatInterval != 250*time.Millisecond {
		t.Errorf("HeartbeatInterval = %v, want 250ms", cfg.Stream.HeartbeatInterval)
	}
	// Untouched fields keep their defaults.
	if cfg.Stream.ConnectionBuffer != 16 {
		t.Errorf("ConnectionBuffer = %d, want default 16", cfg.Stream.ConnectionBuffer)
	}
	if cfg.Auth.Users["alice"] != "secret" {
		t.Errorf("Users[alice] = %q, want %q", cfg.Auth.Users["alice"], "secret")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"port out of range", "server:\n  port: 70000\n"},
		{"zero heartbeat", "stream:\n  heartbeat_interval: 0s\n"},
		{"zero buffer", "stream:\n  connection_buffer: 0\n"},
		{"zero queue", "dispatcher:\n  queue_capacity: 0\n"},
		{"not yaml", "{{{"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := Load(path); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
