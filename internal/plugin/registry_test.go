package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTaskHook struct {
	prepareSource string
	prepareInputs map[string]any
	prepareErr    error
	finalizeOut   map[string]any
	finalizeErr   error
	panicOnCall   bool
}

func (h stubTaskHook) Prepare(ctx context.Context, call TaskCallInfo, source string, inputs map[string]any) (string, map[string]any, error) {
	if h.panicOnCall {
		panic("boom")
	}
	return h.prepareSource, h.prepareInputs, h.prepareErr
}

func (h stubTaskHook) Finalize(ctx context.Context, call TaskCallInfo, outputs map[string]any, failure error) (map[string]any, error) {
	if h.panicOnCall {
		panic("boom")
	}
	return h.finalizeOut, h.finalizeErr
}

func TestRegistry_Download_NoHookRegistered(t *testing.T) {
	r := New(nil)
	_, err := r.Download(context.Background(), "s3", "s3://bucket/key")
	assert.Error(t, err)
}

func TestRegistry_Download_DispatchesByScheme(t *testing.T) {
	r := New(nil)
	r.RegisterFileDownload("s3", FileDownloadHookFunc(func(ctx context.Context, uri string) (string, error) {
		return "/tmp/downloaded", nil
	}))

	assert.True(t, r.HasFileDownload("s3"))
	assert.False(t, r.HasFileDownload("gs"))

	path, err := r.Download(context.Background(), "s3", "s3://bucket/key")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/downloaded", path)
}

func TestRegistry_RegisterFileDownload_ReplacesExisting(t *testing.T) {
	r := New(nil)
	r.RegisterFileDownload("s3", FileDownloadHookFunc(func(ctx context.Context, uri string) (string, error) {
		return "/first", nil
	}))
	r.RegisterFileDownload("s3", FileDownloadHookFunc(func(ctx context.Context, uri string) (string, error) {
		return "/second", nil
	}))

	path, err := r.Download(context.Background(), "s3", "s3://bucket/key")
	require.NoError(t, err)
	assert.Equal(t, "/second", path)
}

func TestRegistry_Prepare_ChainsHooksInOrder(t *testing.T) {
	r := New(nil)
	r.RegisterTask(stubTaskHook{prepareSource: "echo first", prepareInputs: map[string]any{"a": 1}})
	r.RegisterTask(stubTaskHook{prepareSource: "echo second", prepareInputs: map[string]any{"a": 2, "b": 3}})

	source, inputs, err := r.Prepare(context.Background(), TaskCallInfo{CallName: "c"}, "echo original", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "echo second", source)
	assert.Equal(t, map[string]any{"a": 2, "b": 3}, inputs)
}

func TestRegistry_Prepare_EmptySourceLeavesPreviousUnchanged(t *testing.T) {
	r := New(nil)
	r.RegisterTask(stubTaskHook{prepareSource: "echo keep", prepareInputs: nil})
	r.RegisterTask(stubTaskHook{prepareSource: "", prepareInputs: nil})

	source, inputs, err := r.Prepare(context.Background(), TaskCallInfo{CallName: "c"}, "echo original", map[string]any{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, "echo keep", source)
	assert.Equal(t, map[string]any{"x": 1}, inputs)
}

func TestRegistry_Prepare_HookErrorStops(t *testing.T) {
	r := New(nil)
	r.RegisterTask(stubTaskHook{prepareErr: errors.New("rewrite failed")})

	_, _, err := r.Prepare(context.Background(), TaskCallInfo{CallName: "c"}, "echo original", nil)
	assert.Error(t, err)
}

func TestRegistry_Prepare_HookPanicIsolated(t *testing.T) {
	r := New(nil)
	r.RegisterTask(stubTaskHook{panicOnCall: true})

	_, _, err := r.Prepare(context.Background(), TaskCallInfo{CallName: "c"}, "echo original", nil)
	assert.Error(t, err)
}

func TestRegistry_Finalize_ChainsOutputs(t *testing.T) {
	r := New(nil)
	r.RegisterTask(stubTaskHook{finalizeOut: map[string]any{"out": "v1"}})
	r.RegisterTask(stubTaskHook{finalizeOut: map[string]any{"out": "v2"}})

	outputs, err := r.Finalize(context.Background(), TaskCallInfo{CallName: "c"}, map[string]any{"out": "orig"}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"out": "v2"}, outputs)
}

type stubWorkflowHook struct {
	called bool
	panics bool
}

func (h *stubWorkflowHook) OnFailure(ctx context.Context, run WorkflowRunInfo, failure error) {
	if h.panics {
		panic("boom")
	}
	h.called = true
}

func TestRegistry_NotifyFailure_CallsEveryHook(t *testing.T) {
	r := New(nil)
	h1 := &stubWorkflowHook{}
	h2 := &stubWorkflowHook{}
	r.RegisterWorkflow(h1)
	r.RegisterWorkflow(h2)

	r.NotifyFailure(context.Background(), WorkflowRunInfo{RunID: "run-1"}, errors.New("failed"))

	assert.True(t, h1.called)
	assert.True(t, h2.called)
}

func TestRegistry_NotifyFailure_PanicIsolatedFromPeers(t *testing.T) {
	r := New(nil)
	panicking := &stubWorkflowHook{panics: true}
	next := &stubWorkflowHook{}
	r.RegisterWorkflow(panicking)
	r.RegisterWorkflow(next)

	assert.NotPanics(t, func() {
		r.NotifyFailure(context.Background(), WorkflowRunInfo{RunID: "run-1"}, errors.New("failed"))
	})
	assert.True(t, next.called)
}

func TestWorkflowHookFunc_AdaptsFunction(t *testing.T) {
	var got WorkflowRunInfo
	hook := WorkflowHookFunc(func(ctx context.Context, run WorkflowRunInfo, failure error) {
		got = run
	})
	hook.OnFailure(context.Background(), WorkflowRunInfo{RunID: "run-2"}, nil)
	assert.Equal(t, "run-2", got.RunID)
}
