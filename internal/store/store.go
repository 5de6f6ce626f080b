// Package store persists the run index: one record per workflow run
// (its ID, document URI, status, and timestamps), independent of the
// per-call detail already on disk under internal/rundir. It exists so a
// CLI or API surface can list and query runs without walking the run
// directory tree.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a run ID has no matching record.
var ErrNotFound = errors.New("store: run not found")

// Status is a run's lifecycle state as tracked by the index, independent
// of (but kept in step with) the Temporal workflow execution status.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Run is one workflow run's indexed record.
type Run struct {
	ID          string
	DocumentURI string
	RunPath     string
	Status      Status
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store is the persistence interface every backend (sqlite, postgres,
// mongo) satisfies.
type Store interface {
	// CreateRun inserts a new run record in StatusRunning.
	CreateRun(ctx context.Context, r *Run) error
	// UpdateStatus transitions a run to a terminal or running status,
	// recording an error message for StatusFailed.
	UpdateStatus(ctx context.Context, id string, status Status, errMsg string) error
	// GetRun retrieves a run by ID, or ErrNotFound.
	GetRun(ctx context.Context, id string) (*Run, error)
	// ListRuns retrieves runs most-recent-first, paginated.
	ListRuns(ctx context.Context, limit, offset int) ([]*Run, error)
	// Close releases the backend's connection/client.
	Close() error
}

// Open constructs a Store for cfg.Type ("sqlite", "postgres", or
// "mongo"), mirroring the reference repo's database-connection factory
// dispatch.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case TypeSQLite, "":
		return openSQLite(cfg.SQLite)
	case TypePostgres:
		return openPostgres(ctx, cfg.Postgres)
	case TypeMongo:
		return openMongo(ctx, cfg.Mongo)
	default:
		return nil, errors.New("store: unsupported backend type: " + string(cfg.Type))
	}
}
