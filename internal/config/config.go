// Package config loads the relay's yaml configuration, layering the
// file's values over built-in defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Stream     StreamConfig     `yaml:"stream"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Auth       AuthConfig       `yaml:"auth"`
}

type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	StaticDir      string   `yaml:"static_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

type StreamConfig struct {
	// HeartbeatInterval is the idle gap before a keep-alive frame.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	// ConnectionBuffer is the per-connection outbound event queue depth.
	ConnectionBuffer int `yaml:"connection_buffer"`
}

type DispatcherConfig struct {
	QueueCapacity int `yaml:"queue_capacity"`
}

type AuthConfig struct {
	// Users maps usernames to plaintext credentials for the stub
	// verifier. Real deployments swap the verifier out entirely.
	Users map[string]string `yaml:"users"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Stream: StreamConfig{
			HeartbeatInterval: time.Second,
			ConnectionBuffer:  16,
		},
		Dispatcher: DispatcherConfig{
			QueueCapacity: 32,
		},
		Auth: AuthConfig{
			Users: map[string]string{},
		},
	}
}

// Load reads the yaml file at path over the defaults. A missing file is
// an error; use Default directly when running without one.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Stream.HeartbeatInterval <= 0 {
		return fmt.Errorf("stream.heartbeat_interval must be positive")
	}
	if c.Stream.ConnectionBuffer <= 0 {
		return fmt.Errorf("stream.connection_buffer must be positive")
	}
	if c.Dispatcher.QueueCapacity <= 0 {
		return fmt.Errorf("dispatcher.queue_capacity must be positive")
	}
	return nil
}
