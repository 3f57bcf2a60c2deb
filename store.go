package workflow

import (
	"context"
	"errors"
	"io"
)

var (
	ErrNodeNotFound      = errors.New("workflow: node not found")
	ErrUnknownNodeType   = errors.New("workflow: unknown node type")
	ErrFieldNotEditable  = errors.New("workflow: field not editable for node type")
	ErrBusy              = errors.New("workflow: execution already in progress")
	ErrEmptyGraph        = errors.New("workflow: graph has no nodes")
	ErrMalformedResponse = errors.New("workflow: malformed response")
)

// Executor runs a projected graph on the remote execution service.
type Executor interface {
	ExecuteWorkflow(ctx context.Context, req *ExecutionRequest) (*ExecutionResult, error)
}

// ImageUploader stores an image on the remote execution service.
type ImageUploader interface {
	UploadImage(ctx context.Context, filename string, r io.Reader) (*UploadResult, error)
}

// RunStore defines the contract for persisting execution history.
type RunStore interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// Runs
	RecordRun(ctx context.Context, run *Run) error
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}
