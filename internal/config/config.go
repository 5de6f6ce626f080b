// Package config defines the engine-wide configuration surface that
// cmd/wdlrun loads (defaults, overlaid by the --config JSON file) and hands
// to every subsystem at startup.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/wdlrun/wdlrun/internal/downloadcache"
	"github.com/wdlrun/wdlrun/internal/store"
	"github.com/wdlrun/wdlrun/internal/taskqueue"
	"github.com/wdlrun/wdlrun/internal/workflowrun"
)

var validate = validator.New()

// RunnerConfig aggregates every subsystem's configuration into the one
// struct cmd/wdlrun loads, validates, and threads through to NewEngine,
// taskqueue.NewManager, downloadcache.New, and store.Open.
type RunnerConfig struct {
	// MountPoint is the fixed container-side path staged task inputs are
	// bind-mounted at (see internal/taskrun).
	MountPoint string `validate:"required"`

	// RunRoot is the host directory new run directories are created under.
	RunRoot string `validate:"required"`

	Workflow     workflowrun.Config `validate:"required"`
	Queue        taskqueue.Config   `validate:"required"`
	Cache        downloadcache.Config
	Store        store.Config
	Logging      LoggingConfig
	Metrics      MetricsConfig
	DownloadAuth DownloadAuthConfig
}

// DownloadAuthConfig controls the "priv" file-download scheme, which
// attaches a short-lived bearer token (see internal/downloadauth) to its
// fetch instead of the plain GET the http/https schemes use — for a
// downloader hook fronting a private bucket or signed-URL source.
type DownloadAuthConfig struct {
	Enabled    bool
	SigningKey string        `validate:"required_if=Enabled true"`
	TokenTTL   time.Duration
}

// LoggingConfig mirrors the reference logging package's Config shape,
// trimmed to the fields this engine actually varies at the command line.
type LoggingConfig struct {
	Level  string `validate:"oneof=debug info warn error"`
	Format string `validate:"oneof=json text"`
}

// MetricsConfig controls the Prometheus namespace/subsystem metrics in
// pkg/metrics are registered under and whether the listener starts at all.
type MetricsConfig struct {
	Enabled   bool
	Namespace string `validate:"required_if=Enabled true"`
	Addr      string `validate:"required_if=Enabled true"`
}

// DefaultConfig returns a RunnerConfig with sensible defaults for running
// against a local Temporal, Redis, and sqlite store.
func DefaultConfig() RunnerConfig {
	return RunnerConfig{
		MountPoint: "/var/lib/wdlrun/work",
		RunRoot:    "/var/lib/wdlrun/runs",
		Workflow:   workflowrun.DefaultConfig(),
		Queue:      taskqueue.DefaultConfig(),
		Cache:      downloadcache.DefaultConfig(),
		Store:      store.DefaultConfig(),
		Logging:    LoggingConfig{Level: "info", Format: "json"},
		Metrics:    MetricsConfig{Enabled: true, Namespace: "wdlrun", Addr: ":9090"},
		DownloadAuth: DownloadAuthConfig{
			Enabled:  false,
			TokenTTL: 5 * time.Minute,
		},
	}
}

// Validate checks struct tags via go-playground/validator, then defers to
// the workflow, cache and store configs' own Validate for the rules a tag
// can't express. The queue config is checked by its struct tags only.
func (c RunnerConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Workflow.Validate(); err != nil {
		return fmt.Errorf("config: workflow: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("config: cache: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("config: store: %w", err)
	}
	return nil
}
