package taskqueue

import (
	"encoding/json"
	"time"
)

// Job is one unit of dispatchable work: one task call, or one scatter
// instance's task call, identified by RunPath/CallName so the worker can
// reconstruct the rundir.CallDir and re-evaluate inputs independently.
type Job struct {
	Type string

	Payload json.RawMessage

	Queue string

	MaxRetry int

	Timeout time.Duration

	Deadline time.Time

	Retention time.Duration

	// UniqueKey, when set together with a positive UniqueTTL, turns on
	// Asynq's uniqueness lock, which rejects a second job with the same
	// type, payload and queue within UniqueTTL. The key's own value is
	// not sent to Asynq.
	UniqueKey string
	UniqueTTL time.Duration

	// Group batches scatter instances of the same call together so the
	// inspector can report scatter progress as one aggregate.
	Group string
}

// TaskJobPayload is the payload carried by a JobRunTask job.
type TaskJobPayload struct {
	RunPath    string          `json:"run_path"`
	CallName   string          `json:"call_name"`
	TaskName   string          `json:"task_name"`
	DocumentURI string         `json:"document_uri"`
	Inputs     json.RawMessage `json:"inputs"`
	ScatterKey string          `json:"scatter_key,omitempty"` // e.g. "scatter-i-3"
}

// WorkflowJobPayload is the payload carried by a JobRunWorkflow job: an
// externally submitted request to start one workflow run, picked up by a
// worker process that owns the Temporal engine this queue itself doesn't
// run task calls on.
type WorkflowJobPayload struct {
	RunID       string          `json:"run_id"`
	DocumentURI string          `json:"document_uri"`
	RunPath     string          `json:"run_path"`
	Inputs      json.RawMessage `json:"inputs"`
}

// NewWorkflowJob builds a Job wrapping a WorkflowJobPayload.
func NewWorkflowJob(p WorkflowJobPayload) (*Job, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return &Job{
		Type:      JobRunWorkflow,
		Payload:   data,
		Queue:     QueueCalls,
		MaxRetry:  1,
		UniqueKey: p.RunID,
		UniqueTTL: time.Hour,
	}, nil
}

// NewTaskJob builds a Job wrapping a TaskJobPayload.
func NewTaskJob(p TaskJobPayload) (*Job, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	queue := QueueCalls
	if p.ScatterKey != "" {
		queue = QueueScatter
	}
	return &Job{
		Type:     JobRunTask,
		Payload:  data,
		Queue:    queue,
		MaxRetry: 3,
	}, nil
}

func (j *Job) WithQueue(queue string) *Job { j.Queue = queue; return j }

func (j *Job) WithMaxRetry(maxRetry int) *Job { j.MaxRetry = maxRetry; return j }

func (j *Job) WithTimeout(timeout time.Duration) *Job { j.Timeout = timeout; return j }

func (j *Job) WithDeadline(deadline time.Time) *Job { j.Deadline = deadline; return j }

func (j *Job) WithRetention(retention time.Duration) *Job { j.Retention = retention; return j }

func (j *Job) WithUnique(key string, ttl time.Duration) *Job {
	j.UniqueKey = key
	j.UniqueTTL = ttl
	return j
}

func (j *Job) WithGroup(group string) *Job { j.Group = group; return j }

// RetryPolicy governs exponential backoff between CommandFailed retries,
// independent of the preemptible-budget handling inside internal/taskrun.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy returns a default retry policy with exponential backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 10 * time.Second,
		MaxDelay:     10 * time.Minute,
		Multiplier:   2.0,
	}
}

// CalculateDelay calculates the delay before the nth retry attempt.
func (p RetryPolicy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return p.InitialDelay
	}
	delay := p.InitialDelay
	for i := 0; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay > p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}
