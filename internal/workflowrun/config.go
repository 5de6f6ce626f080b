// Package workflowrun drives a parsed workflow body through Temporal: one
// Temporal workflow execution per run, one activity per task call, and
// one child workflow per scatter iteration so independent calls progress
// concurrently while retaining Temporal's durable-execution guarantees
// across worker restarts.
package workflowrun

import "time"

// Config holds the Temporal connection and worker tuning parameters.
type Config struct {
	TemporalHostPort        string
	Namespace               string
	TaskQueue               string
	MaxConcurrentWorkflows  int
	MaxConcurrentActivities int
	DefaultTimeout          time.Duration
	WorkerID                string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		TemporalHostPort:        "localhost:7233",
		Namespace:               "default",
		TaskQueue:               "wdlrun-workflows",
		MaxConcurrentWorkflows:  50,
		MaxConcurrentActivities: 200,
		DefaultTimeout:          24 * time.Hour,
		WorkerID:                "wdlrun-worker",
	}
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.TemporalHostPort == "" {
		return ErrConfigInvalid{Field: "TemporalHostPort", Reason: "cannot be empty"}
	}
	if c.Namespace == "" {
		return ErrConfigInvalid{Field: "Namespace", Reason: "cannot be empty"}
	}
	if c.TaskQueue == "" {
		return ErrConfigInvalid{Field: "TaskQueue", Reason: "cannot be empty"}
	}
	if c.MaxConcurrentWorkflows <= 0 {
		return ErrConfigInvalid{Field: "MaxConcurrentWorkflows", Reason: "must be positive"}
	}
	if c.MaxConcurrentActivities <= 0 {
		return ErrConfigInvalid{Field: "MaxConcurrentActivities", Reason: "must be positive"}
	}
	return nil
}
