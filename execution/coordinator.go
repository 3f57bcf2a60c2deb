// Package execution coordinates running the live graph on the remote
// execution service and reconciling the results back into the graph store.
package execution

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/graph"
)

// State is the coordinator's position in its single-flight state machine.
type State int

const (
	Idle State = iota
	Executing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Executing:
		return "executing"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status classifies how an Execute call ended.
type Status int

const (
	// Skipped means a precondition failed and nothing happened.
	Skipped Status = iota
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Skipped:
		return "skipped"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the result of one Execute call.
//
// Err is ErrBusy or ErrEmptyGraph when Skipped, and the transport or decode
// failure when Failed. Result and Updated are set only when Succeeded.
type Outcome struct {
	Status  Status
	Err     error
	Result  *workflow.ExecutionResult
	Updated []string
	RunID   string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithRunStore records every attempt that reaches the execution service.
func WithRunStore(rs workflow.RunStore) Option {
	return func(c *Coordinator) { c.runs = rs }
}

// WithClock overrides the time source used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// Coordinator runs at most one execution at a time. Calls made while an
// execution is in flight are rejected, never queued.
type Coordinator struct {
	store     *graph.Store
	selection *graph.Selection
	executor  workflow.Executor
	runs      workflow.RunStore
	logger    *slog.Logger
	now       func() time.Time

	mu    sync.Mutex
	state State
}

// New creates an idle coordinator over store. sel is cleared when an
// execution starts.
func New(store *graph.Store, sel *graph.Selection, executor workflow.Executor, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		selection: sel,
		executor:  executor,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Execute projects the live graph, sends it to the execution service and
// merges the returned outputs into the nodes that still exist when the
// response arrives. It blocks until the attempt finishes; run it in a
// goroutine to keep editing meanwhile. Failures are never retried and
// leave the graph untouched.
func (c *Coordinator) Execute(ctx context.Context) Outcome {
	if err := c.begin(); err != nil {
		c.logger.Debug("execution skipped", "reason", err)
		return Outcome{Status: Skipped, Err: err}
	}
	defer c.finish()

	c.selection.Clear()
	req := workflow.Project(c.store.Snapshot())
	run := &workflow.Run{
		ID:        uuid.NewString(),
		NodeCount: len(req.Nodes),
		StartedAt: c.now(),
	}
	c.logger.Info("execution started", "run_id", run.ID, "nodes", len(req.Nodes), "edges", len(req.Edges))

	res, err := c.executor.ExecuteWorkflow(ctx, &req)
	if err == nil && res == nil {
		err = errors.New("execution service returned no result")
	}
	if err != nil {
		c.logger.Error("execution failed", "run_id", run.ID, "error", err)
		run.Status = workflow.RunFailed
		run.Error = err.Error()
		c.record(ctx, run, &req, nil)
		return Outcome{Status: Failed, Err: err, RunID: run.ID}
	}

	updated := c.store.ApplyOutputs(res.AllOutputs)
	c.logger.Info("execution finished", "run_id", run.ID, "outputs", len(res.AllOutputs), "updated", len(updated))

	run.Status = workflow.RunSucceeded
	run.Updated = updated
	c.record(ctx, run, &req, res)
	return Outcome{Status: Succeeded, Result: res, Updated: updated, RunID: run.ID}
}

func (c *Coordinator) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		return workflow.ErrBusy
	}
	if c.store.Len() == 0 {
		return workflow.ErrEmptyGraph
	}
	c.state = Executing
	return nil
}

func (c *Coordinator) finish() {
	c.mu.Lock()
	c.state = Idle
	c.mu.Unlock()
}

// record persists run. Failures are logged; they never change the outcome.
func (c *Coordinator) record(ctx context.Context, run *workflow.Run, req *workflow.ExecutionRequest, res *workflow.ExecutionResult) {
	if c.runs == nil {
		return
	}
	run.FinishedAt = c.now()

	var err error
	if run.Request, err = json.Marshal(req); err != nil {
		c.logger.Warn("failed to encode run request", "run_id", run.ID, "error", err)
		return
	}
	if res != nil {
		if run.Result, err = json.Marshal(res); err != nil {
			c.logger.Warn("failed to encode run result", "run_id", run.ID, "error", err)
			return
		}
	}
	if err := c.runs.RecordRun(context.WithoutCancel(ctx), run); err != nil {
		c.logger.Warn("failed to record run", "run_id", run.ID, "error", err)
	}
}
