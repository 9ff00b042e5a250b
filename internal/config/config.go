// Package config loads the broker's TOML configuration file (spec §6.3).
// The teacher loads its Config from environment variables via a hand-rolled
// reflection loader (internal/env); this broker's configuration is a file
// read once at startup, so it is parsed with github.com/pelletier/go-toml/v2
// instead, the library storacha-piri's config/dynamic layer builds its own
// TOML persistence on top of.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/rezkam/broker/internal/broker"
)

// GRPCConfig tunes the gRPC server's keepalive enforcement, the broker-side
// analogue of cmd/server/main.go's createGRPCServer keepalive.ServerParameters.
type GRPCConfig struct {
	KeepaliveTimeSeconds     int `toml:"keepalive_time_seconds"`
	KeepaliveTimeoutSeconds  int `toml:"keepalive_timeout_seconds"`
	MaxConnectionIdleSeconds int `toml:"max_connection_idle_seconds"`
}

// OTelConfig toggles OpenTelemetry export, mirroring
// pkg/observability/otel.go's enabled flag and collector endpoint.
type OTelConfig struct {
	Enabled           bool   `toml:"enabled"`
	CollectorEndpoint string `toml:"collector_endpoint"`
	ServiceName       string `toml:"service_name"`
}

// Config is the broker.toml schema.
type Config struct {
	Addr string `toml:"addr"`

	MaxRetry                 uint8 `toml:"max_retry"`
	ExecutorMailboxSize      int   `toml:"executor_mailbox_size"`
	TaskMailboxSize          int   `toml:"task_mailbox_size"`
	WorkerMailboxSize        int   `toml:"worker_mailbox_size"`
	DeadJobReportMailboxSize int   `toml:"dead_job_report_mailbox_size"`
	FeederStaggerMillis      int   `toml:"feeder_stagger_millis"`
	ShutdownTimeoutSeconds   int   `toml:"shutdown_timeout_seconds"`

	GRPC GRPCConfig `toml:"grpc"`
	OTel OTelConfig `toml:"otel"`
}

// Default returns the configuration used when no broker.toml field
// overrides it; its broker-facing numbers match broker.DefaultConfig().
func Default() Config {
	defaults := broker.DefaultConfig()
	return Config{
		Addr:                     ":7070",
		MaxRetry:                 defaults.MaxRetry,
		ExecutorMailboxSize:      defaults.ExecutorMailboxSize,
		TaskMailboxSize:          defaults.TaskMailboxSize,
		WorkerMailboxSize:        broker.DefaultWorkerMailboxSize,
		DeadJobReportMailboxSize: defaults.ReportMailboxSize,
		FeederStaggerMillis:      int(defaults.FeederStagger / time.Millisecond),
		ShutdownTimeoutSeconds:   10,
		GRPC: GRPCConfig{
			KeepaliveTimeSeconds:     60,
			KeepaliveTimeoutSeconds:  20,
			MaxConnectionIdleSeconds: 0,
		},
		OTel: OTelConfig{
			Enabled:     false,
			ServiceName: "broker",
		},
	}
}

// Load reads and parses the TOML file at path, applying Default() first so a
// file that only overrides a handful of fields still yields a complete,
// valid Config.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Addr == "" {
		return errors.New("config: addr must not be empty")
	}
	if c.MaxRetry == 0 {
		return errors.New("config: max_retry must be greater than zero")
	}
	if c.ShutdownTimeoutSeconds < 0 {
		return errors.New("config: shutdown_timeout_seconds must not be negative")
	}
	if c.OTel.Enabled && c.OTel.CollectorEndpoint == "" {
		return errors.New("config: otel.collector_endpoint is required when otel.enabled is true")
	}
	return nil
}

// BrokerConfig projects the TOML fields relevant to internal/broker into a
// broker.Config. Zero fields fall back to broker's own defaults.
func (c Config) BrokerConfig() broker.Config {
	return broker.Config{
		MaxRetry:            c.MaxRetry,
		ExecutorMailboxSize: c.ExecutorMailboxSize,
		TaskMailboxSize:     c.TaskMailboxSize,
		ReportMailboxSize:   c.DeadJobReportMailboxSize,
		FeederStagger:       time.Duration(c.FeederStaggerMillis) * time.Millisecond,
	}
}

// ShutdownTimeout is ShutdownTimeoutSeconds as a time.Duration.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}
