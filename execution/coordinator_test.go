package execution

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeExecutor answers with a canned result or error. When gate is set, each
// call blocks until gate is closed.
type fakeExecutor struct {
	res   *workflow.ExecutionResult
	err   error
	gate  chan struct{}
	calls atomic.Int32

	mu   sync.Mutex
	reqs []workflow.ExecutionRequest

	onCall func()
}

func (f *fakeExecutor) ExecuteWorkflow(ctx context.Context, req *workflow.ExecutionRequest) (*workflow.ExecutionResult, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.reqs = append(f.reqs, *req)
	f.mu.Unlock()
	if f.onCall != nil {
		f.onCall()
	}
	if f.gate != nil {
		<-f.gate
	}
	return f.res, f.err
}

type fakeRuns struct {
	mu   sync.Mutex
	runs []workflow.Run
	err  error
}

func (f *fakeRuns) CreateSchema(context.Context) error { return nil }
func (f *fakeRuns) DropSchema(context.Context) error   { return nil }
func (f *fakeRuns) RecordRun(_ context.Context, r *workflow.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, *r)
	return f.err
}
func (f *fakeRuns) ListRuns(context.Context, int) ([]workflow.Run, error) { return f.runs, nil }

func setup(t *testing.T, exec workflow.Executor, opts ...Option) (*Coordinator, *graph.Store, *graph.Selection) {
	t.Helper()
	sel := graph.NewSelection()
	store := graph.New(sel)
	return New(store, sel, exec, opts...), store, sel
}

func add(t *testing.T, s *graph.Store, typ workflow.NodeType) workflow.Node {
	t.Helper()
	n, ok := s.AddNode(typ)
	require.True(t, ok)
	return n
}

func TestExecute_EndToEnd(t *testing.T) {
	exec := &fakeExecutor{}
	c, store, _ := setup(t, exec)

	img := add(t, store, workflow.ImageInput)
	gen := add(t, store, workflow.GenerateImage)
	_, ok := store.Connect(img.ID, "output_image", gen.ID, "input")
	require.True(t, ok)
	require.True(t, store.UpdateNodeData(gen.ID, workflow.Patch{Prompt: workflow.String("a cat")}))

	exec.res = &workflow.ExecutionResult{AllOutputs: map[string]workflow.NodeOutput{
		gen.ID: {Image: workflow.String("iVBORw0K...")},
	}}

	out := c.Execute(context.Background())
	require.Equal(t, Succeeded, out.Status, "err: %v", out.Err)
	assert.Equal(t, []string{gen.ID}, out.Updated)

	got, _ := store.Node(gen.ID)
	assert.Equal(t, "iVBORw0K...", got.Data.ResultImage)
	assert.Equal(t, "a cat", got.Data.Prompt)
	assert.Equal(t, Idle, c.State())

	require.Len(t, exec.reqs, 1)
	sent := exec.reqs[0]
	require.Len(t, sent.Nodes, 2)
	assert.Equal(t, gen.ID, sent.Nodes[1].ID)
	assert.Equal(t, "a cat", sent.Nodes[1].Data.Prompt)
	require.Len(t, sent.Edges, 1)
}

func TestExecute_MergeLeavesOthersUntouched(t *testing.T) {
	exec := &fakeExecutor{}
	c, store, _ := setup(t, exec)
	a := add(t, store, workflow.PromptBox)
	b := add(t, store, workflow.TextInput)
	store.UpdateNodeData(a.ID, workflow.Patch{ResultImage: workflow.String("prior-image")})
	store.UpdateNodeData(b.ID, workflow.Patch{Text: workflow.String("hello")})
	bBefore, _ := store.Node(b.ID)

	exec.res = &workflow.ExecutionResult{AllOutputs: map[string]workflow.NodeOutput{
		a.ID: {Text: workflow.String("hi")},
	}}
	out := c.Execute(context.Background())
	require.Equal(t, Succeeded, out.Status)

	gotA, _ := store.Node(a.ID)
	assert.Equal(t, "hi", gotA.Data.Result)
	assert.Equal(t, "prior-image", gotA.Data.ResultImage)
	gotB, _ := store.Node(b.ID)
	assert.Equal(t, bBefore, gotB)
}

func TestExecute_ClearsSelection(t *testing.T) {
	exec := &fakeExecutor{res: &workflow.ExecutionResult{AllOutputs: map[string]workflow.NodeOutput{}}}
	c, store, sel := setup(t, exec)
	n := add(t, store, workflow.TextInput)
	require.True(t, store.Select(n.ID))

	exec.onCall = func() {
		_, ok := sel.Current()
		assert.False(t, ok, "selection is cleared before the request is sent")
	}
	c.Execute(context.Background())
}

func TestExecute_EmptyGraphIsNoOp(t *testing.T) {
	exec := &fakeExecutor{}
	c, _, _ := setup(t, exec)

	out := c.Execute(context.Background())
	assert.Equal(t, Skipped, out.Status)
	assert.ErrorIs(t, out.Err, workflow.ErrEmptyGraph)
	assert.Zero(t, exec.calls.Load())
	assert.Equal(t, Idle, c.State())
}

func TestExecute_RejectsReentrantCalls(t *testing.T) {
	exec := &fakeExecutor{gate: make(chan struct{})}
	started := make(chan struct{})
	exec.onCall = func() { close(started) }
	runs := &fakeRuns{}
	c, store, sel := setup(t, exec, WithRunStore(runs))
	n := add(t, store, workflow.PromptBox)
	exec.res = &workflow.ExecutionResult{AllOutputs: map[string]workflow.NodeOutput{n.ID: {Text: workflow.String("done")}}}

	first := make(chan Outcome, 1)
	go func() { first <- c.Execute(context.Background()) }()
	<-started
	require.Equal(t, Executing, c.State())

	// Editing continues while the request is in flight.
	require.True(t, store.UpdateNodeData(n.ID, workflow.Patch{Prompt: workflow.String("edited")}))
	require.True(t, store.Select(n.ID))

	second := c.Execute(context.Background())
	assert.Equal(t, Skipped, second.Status)
	assert.ErrorIs(t, second.Err, workflow.ErrBusy)
	assert.Equal(t, int32(1), exec.calls.Load(), "no second request dispatched")
	assert.Equal(t, Executing, c.State())
	id, ok := sel.Current()
	assert.True(t, ok, "a rejected call has no side effects")
	assert.Equal(t, n.ID, id)

	close(exec.gate)
	out := <-first
	require.Equal(t, Succeeded, out.Status)
	assert.Equal(t, Idle, c.State())

	got, _ := store.Node(n.ID)
	assert.Equal(t, "edited", got.Data.Prompt, "merge applies against the live graph")
	assert.Equal(t, "done", got.Data.Result)
	assert.Len(t, runs.runs, 1, "skipped calls are not recorded")
}

func TestExecute_ResponseForDeletedNode(t *testing.T) {
	exec := &fakeExecutor{gate: make(chan struct{})}
	started := make(chan struct{})
	exec.onCall = func() { close(started) }
	c, store, _ := setup(t, exec)
	a := add(t, store, workflow.PromptBox)
	b := add(t, store, workflow.PromptBox)
	exec.res = &workflow.ExecutionResult{AllOutputs: map[string]workflow.NodeOutput{
		a.ID: {Text: workflow.String("for a")},
		b.ID: {Text: workflow.String("for b")},
	}}

	done := make(chan Outcome, 1)
	go func() { done <- c.Execute(context.Background()) }()
	<-started
	store.DeleteNodes(a.ID)
	close(exec.gate)

	out := <-done
	require.Equal(t, Succeeded, out.Status)
	assert.Equal(t, []string{b.ID}, out.Updated)
	assert.Equal(t, 1, store.Len())
	_, ok := store.Node(a.ID)
	assert.False(t, ok)
}

func TestExecute_FailureAppliesNothing(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("server responded with 500: boom")}
	runs := &fakeRuns{}
	c, store, _ := setup(t, exec, WithRunStore(runs))
	n := add(t, store, workflow.PromptBox)
	store.UpdateNodeData(n.ID, workflow.Patch{Result: workflow.String("prior")})
	before := store.Snapshot()

	out := c.Execute(context.Background())
	assert.Equal(t, Failed, out.Status)
	require.Error(t, out.Err)
	assert.Contains(t, out.Err.Error(), "500: boom")
	assert.Equal(t, before, store.Snapshot())
	assert.Equal(t, Idle, c.State())
	assert.Equal(t, int32(1), exec.calls.Load(), "failures are not retried")

	require.Len(t, runs.runs, 1)
	assert.Equal(t, workflow.RunFailed, runs.runs[0].Status)
	assert.Equal(t, "server responded with 500: boom", runs.runs[0].Error)
	assert.Empty(t, runs.runs[0].Result)

	// The coordinator is usable again after a failure.
	exec.err = nil
	exec.res = &workflow.ExecutionResult{AllOutputs: map[string]workflow.NodeOutput{}}
	assert.Equal(t, Succeeded, c.Execute(context.Background()).Status)
}

func TestExecute_NilResultIsFailure(t *testing.T) {
	c, store, _ := setup(t, &fakeExecutor{})
	add(t, store, workflow.TextInput)
	out := c.Execute(context.Background())
	assert.Equal(t, Failed, out.Status)
	assert.Equal(t, Idle, c.State())
}

func TestExecute_RecordsRun(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	runs := &fakeRuns{err: errors.New("database down")}
	exec := &fakeExecutor{}
	c, store, _ := setup(t, exec, WithRunStore(runs), WithClock(func() time.Time { return now }))
	n := add(t, store, workflow.TextInput)
	exec.res = &workflow.ExecutionResult{AllOutputs: map[string]workflow.NodeOutput{n.ID: {Text: workflow.String("t")}}}

	out := c.Execute(context.Background())
	require.Equal(t, Succeeded, out.Status, "recording errors never change the outcome")

	require.Len(t, runs.runs, 1)
	r := runs.runs[0]
	assert.Equal(t, out.RunID, r.ID)
	assert.Equal(t, workflow.RunSucceeded, r.Status)
	assert.Equal(t, 1, r.NodeCount)
	assert.Equal(t, []string{n.ID}, r.Updated)
	assert.Equal(t, now, r.StartedAt)
	assert.Equal(t, now, r.FinishedAt)
	assert.Contains(t, string(r.Request), n.ID)
	assert.Contains(t, string(r.Result), "all_outputs")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "executing", Executing.String())
	assert.Equal(t, "failed", Failed.String())
}
