// Package remote talks to the workflow execution service over HTTP.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3/client"
	"github.com/meikuraledutech/workflow"
)

const (
	executePath = "/api/execute-workflow"
	uploadPath  = "/api/upload-image"
	healthPath  = "/api/health"

	// uploadField is the multipart field the upload endpoint reads.
	uploadField = "image"
)

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server responded with %d: %s", e.Code, e.Body)
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout bounds every request. Zero, the default, waits indefinitely.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// Client implements workflow.Executor and workflow.ImageUploader.
type Client struct {
	http    *client.Client
	baseURL string
	timeout time.Duration
	logger  *slog.Logger
}

var (
	_ workflow.Executor      = (*Client)(nil)
	_ workflow.ImageUploader = (*Client)(nil)
)

// New creates a client for the service rooted at baseURL
// (for example "http://localhost:5000").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.http = client.New().SetBaseURL(c.baseURL)
	if c.timeout > 0 {
		c.http.SetTimeout(c.timeout)
	}
	return c
}

// BaseURL returns the service root this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ExecuteWorkflow posts req and decodes the per-node outputs.
// A body that is not JSON or lacks all_outputs yields ErrMalformedResponse.
func (c *Client) ExecuteWorkflow(ctx context.Context, req *workflow.ExecutionRequest) (*workflow.ExecutionResult, error) {
	c.logger.Debug("executing workflow", "nodes", len(req.Nodes), "edges", len(req.Edges))

	body, err := c.send(ctx, c.http.R().SetJSON(req), executePath)
	if err != nil {
		return nil, err
	}

	var doc struct {
		AllOutputs   *map[string]workflow.NodeOutput `json:"all_outputs"`
		FinalOutputs map[string]workflow.NodeOutput  `json:"final_outputs"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: decode execution result: %v", workflow.ErrMalformedResponse, err)
	}
	if doc.AllOutputs == nil {
		return nil, fmt.Errorf("%w: execution result has no all_outputs", workflow.ErrMalformedResponse)
	}

	c.logger.Debug("workflow executed", "outputs", len(*doc.AllOutputs))
	return &workflow.ExecutionResult{
		AllOutputs:   *doc.AllOutputs,
		FinalOutputs: doc.FinalOutputs,
	}, nil
}

// UploadImage sends r as a multipart file named filename.
// A response missing imageData or filename yields ErrMalformedResponse.
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (*workflow.UploadResult, error) {
	file := client.AcquireFile(
		client.SetFileName(filename),
		client.SetFileFieldName(uploadField),
		client.SetFileReader(io.NopCloser(r)),
	)

	body, err := c.send(ctx, c.http.R().AddFiles(file), uploadPath)
	if err != nil {
		return nil, err
	}

	var res workflow.UploadResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("%w: decode upload result: %v", workflow.ErrMalformedResponse, err)
	}
	if res.ImageData == "" || res.Filename == "" {
		return nil, fmt.Errorf("%w: upload result missing imageData or filename", workflow.ErrMalformedResponse)
	}

	c.logger.Debug("image uploaded", "filename", res.Filename)
	return &res, nil
}

// Health checks that the service is reachable and reports ok.
func (c *Client) Health(ctx context.Context) error {
	req := c.http.R().SetContext(ctx)
	resp, err := req.Get(healthPath)
	if err != nil {
		client.ReleaseRequest(req)
		return fmt.Errorf("failed to reach execution service: %w", err)
	}
	defer resp.Close()

	if code := resp.StatusCode(); code < 200 || code > 299 {
		return &StatusError{Code: code, Body: resp.String()}
	}
	return nil
}

// send posts req to path and returns the raw body of a 2xx response.
func (c *Client) send(ctx context.Context, req *client.Request, path string) ([]byte, error) {
	resp, err := req.SetContext(ctx).Post(path)
	if err != nil {
		client.ReleaseRequest(req)
		return nil, fmt.Errorf("failed to reach execution service: %w", err)
	}
	defer resp.Close()

	code := resp.StatusCode()
	if code < 200 || code > 299 {
		c.logger.Warn("execution service rejected request", "path", path, "status", code)
		return nil, &StatusError{Code: code, Body: resp.String()}
	}

	// Body is pooled with the response; copy before Close.
	return append([]byte(nil), resp.Body()...), nil
}
