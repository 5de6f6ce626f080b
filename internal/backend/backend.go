// Package backend defines the container backend contract every task
// executor must satisfy: pull/build an image, run a command against
// staged inputs, and obtain a handle to wait/stop/stream logs.
// internal/backend/testbackend provides a testcontainers-go-driven
// implementation used by integration tests and local runs.
package backend

import (
	"context"
	"io"
)

// Spec describes one container invocation: the image to run, the command
// to execute inside it, and the host directory to bind-mount as the
// task's work directory.
type Spec struct {
	Image      string
	Command    []string
	WorkDir    string            // host path bind-mounted into the container
	MountPoint string            // container-side path WorkDir is mounted at
	Env        map[string]string
	CPU        float64 // fractional vCPUs, 0 = unconstrained
	MemoryMB   int64   // 0 = unconstrained
}

// Handle represents one running (or completed) container.
type Handle interface {
	// Wait blocks until the container exits, returning its exit code.
	Wait(ctx context.Context) (int, error)
	// Stop sends a termination signal, used for Cancelled runs.
	Stop(ctx context.Context) error
	// Logs streams combined stdout/stderr from the container's start.
	Logs(ctx context.Context) (io.ReadCloser, error)
}

// Backend is the container execution contract. Implementations must
// support concurrent Run calls, since the engine bounds task concurrency
// by running many tasks' containers side by side.
type Backend interface {
	// Pull or build the image named by spec.Image, a no-op if already
	// present locally.
	Prepare(ctx context.Context, image string) error
	// Run starts a container per spec and returns a Handle immediately;
	// callers call Wait to block for completion.
	Run(ctx context.Context, spec Spec) (Handle, error)
}
