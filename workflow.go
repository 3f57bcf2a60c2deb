package workflow

import (
	"encoding/json"
	"time"
)

// Graph is the live workflow: an ordered node sequence and its edges.
// Node order is creation order and carries no execution meaning.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Position is a node's canvas coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a typed block on the canvas.
// ID is assigned by the graph store and never changes.
type Node struct {
	ID       string   `json:"id"`
	Type     NodeType `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
}

// NodeData holds user-entered and computed values for a node.
// An empty ImageData or ResultImage means the node has no image.
type NodeData struct {
	Label       string `json:"label"`
	Prompt      string `json:"prompt"`
	Text        string `json:"text"`
	ImageData   string `json:"imageData"`
	ImagePath   string `json:"imagePath"`
	Result      string `json:"result"`
	ResultImage string `json:"resultImage"`
}

// Edge is a directed link between a source handle and a target handle.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
}

// ExecutionRequest is the backend-facing projection of a Graph.
type ExecutionRequest struct {
	Nodes []ProjectedNode `json:"nodes"`
	Edges []Edge          `json:"edges"`
}

// ProjectedNode carries only what the execution service reads.
type ProjectedNode struct {
	ID   string        `json:"id"`
	Type NodeType      `json:"type"`
	Data ProjectedData `json:"data"`
}

// ProjectedData is the whitelisted subset of NodeData.
// ImageData is nil when the node has no image and encodes as null.
type ProjectedData struct {
	Prompt    string  `json:"prompt"`
	Text      string  `json:"text"`
	ImagePath string  `json:"imagePath"`
	ImageData *string `json:"imageData"`
}

// ExecutionResult is the execution service's response document.
type ExecutionResult struct {
	AllOutputs   map[string]NodeOutput `json:"all_outputs"`
	FinalOutputs map[string]NodeOutput `json:"final_outputs,omitempty"`
}

// NodeOutput is one node's output. A nil field was not produced
// (absent or null in the response) and must not overwrite prior results.
type NodeOutput struct {
	Text  *string `json:"text,omitempty"`
	Image *string `json:"image,omitempty"`
}

// UploadResult is the upload endpoint's response document.
type UploadResult struct {
	ImageData string `json:"imageData"`
	Filename  string `json:"filename"`
}

// RunStatus is the terminal status of a recorded execution attempt.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one recorded execution attempt.
// Request and Result are the JSON documents exchanged with the execution service;
// Result is empty for failed runs.
type Run struct {
	ID         string          `json:"id"`
	Status     RunStatus       `json:"status"`
	NodeCount  int             `json:"node_count"`
	Updated    []string        `json:"updated"`
	Request    json.RawMessage `json:"request"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
}
