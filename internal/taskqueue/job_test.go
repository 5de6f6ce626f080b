package taskqueue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkflowJob(t *testing.T) {
	job, err := NewWorkflowJob(WorkflowJobPayload{
		RunID:       "run-1",
		DocumentURI: "workflow.wdl",
		Inputs:      json.RawMessage(`{"who":"world"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, JobRunWorkflow, job.Type)
	assert.Equal(t, QueueCalls, job.Queue)
	assert.Equal(t, "run-1", job.UniqueKey)
	assert.Equal(t, 1, job.MaxRetry)

	var decoded WorkflowJobPayload
	require.NoError(t, json.Unmarshal(job.Payload, &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	assert.Equal(t, "workflow.wdl", decoded.DocumentURI)
}

func TestNewTaskJob_ScatterUsesScatterQueue(t *testing.T) {
	job, err := NewTaskJob(TaskJobPayload{
		RunPath:    "/runs/1",
		CallName:   "greet",
		TaskName:   "greet",
		ScatterKey: "scatter-i-3",
	})
	require.NoError(t, err)
	assert.Equal(t, JobRunTask, job.Type)
	assert.Equal(t, QueueScatter, job.Queue)
}

func TestNewTaskJob_DirectCallUsesCallsQueue(t *testing.T) {
	job, err := NewTaskJob(TaskJobPayload{RunPath: "/runs/1", CallName: "greet", TaskName: "greet"})
	require.NoError(t, err)
	assert.Equal(t, QueueCalls, job.Queue)
}
