package taskqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hibiken/asynq"
)

// Manager wraps the Asynq client/server/scheduler/inspector quartet behind
// the job vocabulary of this package.
type Manager struct {
	client    *asynq.Client
	server    *asynq.Server
	scheduler *asynq.Scheduler
	inspector *asynq.Inspector
	config    Config

	mux     *asynq.ServeMux
	mu      sync.RWMutex
	running bool
}

// NewManager creates a new queue manager.
func NewManager(cfg Config) (*Manager, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	client := asynq.NewClient(redisOpt)
	inspector := asynq.NewInspector(redisOpt)

	serverCfg := asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      cfg.Queues,
		RetryDelayFunc: func(n int, e error, t *asynq.Task) time.Duration {
			delay := time.Duration(1<<uint(n)) * time.Second
			if delay > 10*time.Minute {
				delay = 10 * time.Minute
			}
			return delay
		},
		ShutdownTimeout: cfg.ShutdownTimeout,
	}

	server := asynq.NewServer(redisOpt, serverCfg)
	scheduler := asynq.NewScheduler(redisOpt, nil)

	return &Manager{
		client:    client,
		server:    server,
		scheduler: scheduler,
		inspector: inspector,
		config:    cfg,
		mux:       asynq.NewServeMux(),
	}, nil
}

// RegisterHandler registers a handler for the given job type (JobRunTask,
// JobRunWorkflow, or a caller-defined extension).
func (m *Manager) RegisterHandler(jobType string, handler asynq.HandlerFunc) {
	m.mux.HandleFunc(jobType, handler)
}

// RegisterHandlerFunc registers a plain function handler for a job type.
func (m *Manager) RegisterHandlerFunc(jobType string, handler func(context.Context, *asynq.Task) error) {
	m.mux.HandleFunc(jobType, handler)
}

// Enqueue enqueues a job for immediate processing.
func (m *Manager) Enqueue(ctx context.Context, job *Job) (*asynq.TaskInfo, error) {
	asynqTask := asynq.NewTask(job.Type, job.Payload)

	opts := []asynq.Option{
		asynq.Queue(job.Queue),
		asynq.MaxRetry(job.MaxRetry),
	}
	if job.Timeout > 0 {
		opts = append(opts, asynq.Timeout(job.Timeout))
	}
	if !job.Deadline.IsZero() {
		opts = append(opts, asynq.Deadline(job.Deadline))
	}
	if job.Retention > 0 {
		opts = append(opts, asynq.Retention(job.Retention))
	}
	if job.UniqueKey != "" && job.UniqueTTL > 0 {
		opts = append(opts, asynq.Unique(job.UniqueTTL))
	}
	if job.Group != "" {
		opts = append(opts, asynq.Group(job.Group))
	}

	info, err := m.client.EnqueueContext(ctx, asynqTask, opts...)
	if err != nil {
		return nil, fmt.Errorf("taskqueue: enqueue: %w", err)
	}
	return info, nil
}

// EnqueueIn enqueues a job to run after delay — used to schedule a
// CommandFailed retry per RetryPolicy.CalculateDelay instead of hammering
// the backend immediately.
func (m *Manager) EnqueueIn(ctx context.Context, job *Job, delay time.Duration) (*asynq.TaskInfo, error) {
	asynqTask := asynq.NewTask(job.Type, job.Payload)
	opts := []asynq.Option{
		asynq.Queue(job.Queue),
		asynq.MaxRetry(job.MaxRetry),
		asynq.ProcessIn(delay),
	}
	if job.Timeout > 0 {
		opts = append(opts, asynq.Timeout(job.Timeout))
	}
	if job.Retention > 0 {
		opts = append(opts, asynq.Retention(job.Retention))
	}
	info, err := m.client.EnqueueContext(ctx, asynqTask, opts...)
	if err != nil {
		return nil, fmt.Errorf("taskqueue: enqueue in: %w", err)
	}
	return info, nil
}

// CancelJob signals cancellation to a job that is currently being
// processed; a job still waiting in its queue is not affected.
func (m *Manager) CancelJob(jobID string) error {
	if err := m.inspector.CancelProcessing(jobID); err != nil {
		return fmt.Errorf("taskqueue: cancel: %w", err)
	}
	return nil
}

// DeleteJob deletes a job from a queue.
func (m *Manager) DeleteJob(queue, jobID string) error {
	if err := m.inspector.DeleteTask(queue, jobID); err != nil {
		return fmt.Errorf("taskqueue: delete: %w", err)
	}
	return nil
}

// GetQueueInfo retrieves information about a queue, used to report scatter
// backlog depth.
func (m *Manager) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	info, err := m.inspector.GetQueueInfo(queue)
	if err != nil {
		return nil, fmt.Errorf("taskqueue: queue info: %w", err)
	}
	return info, nil
}

// Start starts the queue server and scheduler.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}
	go func() {
		_ = m.scheduler.Run()
	}()
	go func() {
		_ = m.server.Run(m.mux)
	}()
	m.running = true
	return nil
}

// Stop gracefully stops the queue server, scheduler, client and inspector.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil
	}
	m.scheduler.Shutdown()
	m.server.Shutdown()
	if err := m.client.Close(); err != nil {
		return fmt.Errorf("taskqueue: close client: %w", err)
	}
	if err := m.inspector.Close(); err != nil {
		return fmt.Errorf("taskqueue: close inspector: %w", err)
	}
	m.running = false
	return nil
}

// IsRunning returns whether the manager is running.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Client returns the underlying Asynq client, for callers that need finer
// control than Enqueue exposes.
func (m *Manager) Client() *asynq.Client { return m.client }

// Inspector returns the Asynq inspector for queue introspection.
func (m *Manager) Inspector() *asynq.Inspector { return m.inspector }
