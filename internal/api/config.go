// Package api serves the admin HTTP surface: on-demand source triggers,
// the source listing, health and Prometheus metrics.
package api

import (
	"fmt"
	"net"
	"time"

	"github.com/hazardwatch/hazardwatch/internal/conf"
)

// Default constants for the HTTP server.
const (
	DefaultListen          = ":8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	// Triggered runs hold the request for the whole ingestion
	DefaultWriteTimeout = 5 * time.Minute
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen string // host:port to bind

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	BodyLimit string // maximum request body size, e.g. "64K"

	AdminTokenHash string // bcrypt hash of the admin bearer token
	Metrics        bool   // expose /metrics
	Debug          bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          DefaultListen,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       "64K",
		Metrics:         true,
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	if settings.WebServer.Listen != "" {
		cfg.Listen = settings.WebServer.Listen
	}
	cfg.AdminTokenHash = settings.WebServer.AdminTokenHash
	cfg.Metrics = settings.WebServer.Metrics
	cfg.Debug = settings.Debug
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	if c.AdminTokenHash == "" {
		return fmt.Errorf("admin token hash is required")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	return nil
}

// String returns a human-readable representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf("Server Config: listen=%s, metrics=%v, debug=%v", c.Listen, c.Metrics, c.Debug)
}
