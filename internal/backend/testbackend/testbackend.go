// Package testbackend implements internal/backend.Backend on top of
// testcontainers-go, the same library the pack's integration-test suites
// use to manage ephemeral containers. It is the reference/test container
// backend: local development and CI drive tasks through it instead of a
// production container orchestrator.
package testbackend

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/testcontainers/testcontainers-go"

	"github.com/wdlrun/wdlrun/internal/backend"
)

// Backend runs tasks as testcontainers-go generic containers.
type Backend struct{}

// New constructs a testbackend.Backend.
func New() *Backend { return &Backend{} }

// Prepare is a no-op: testcontainers-go pulls images lazily on Run, the
// same way the pack's docker integration tests rely on `docker compose build`
// or a prior `docker pull` rather than a dedicated prepare step.
func (b *Backend) Prepare(ctx context.Context, image string) error {
	return nil
}

// Run starts spec.Image with spec.Command, bind-mounting spec.WorkDir at
// spec.MountPoint, and returns a Handle wrapping the running container.
func (b *Backend) Run(ctx context.Context, spec backend.Spec) (backend.Handle, error) {
	req := testcontainers.ContainerRequest{
		Image:      spec.Image,
		Cmd:        spec.Command,
		Env:        spec.Env,
		WorkingDir: spec.MountPoint,
		HostConfigModifier: func(hc *container.HostConfig) {
			hc.Binds = append(hc.Binds, spec.WorkDir+":"+spec.MountPoint)
			if spec.MemoryMB > 0 {
				hc.Resources.Memory = spec.MemoryMB * 1024 * 1024
			}
			if spec.CPU > 0 {
				hc.Resources.NanoCPUs = int64(spec.CPU * 1e9)
			}
		},
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("testbackend: starting %s: %w", spec.Image, err)
	}
	return &handle{container: c}, nil
}

type handle struct {
	container testcontainers.Container
}

func (h *handle) Wait(ctx context.Context) (int, error) {
	state, err := h.container.State(ctx)
	if err != nil {
		return -1, err
	}
	for state.Running {
		state, err = h.container.State(ctx)
		if err != nil {
			return -1, err
		}
	}
	return state.ExitCode, nil
}

func (h *handle) Stop(ctx context.Context) error {
	return h.container.Stop(ctx, nil)
}

func (h *handle) Logs(ctx context.Context) (io.ReadCloser, error) {
	return h.container.Logs(ctx)
}
