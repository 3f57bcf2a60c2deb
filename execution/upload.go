package execution

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/graph"
)

// Uploader sends images to the execution service and attaches the stored
// reference to the originating node.
type Uploader struct {
	store    *graph.Store
	uploader workflow.ImageUploader
	logger   *slog.Logger
}

// NewUploader creates an Uploader. A nil logger uses slog.Default.
func NewUploader(store *graph.Store, uploader workflow.ImageUploader, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{store: store, uploader: uploader, logger: logger}
}

// Upload stores the image read from r and merges imageData and imagePath
// into node nodeID. On any failure the node is left as it was.
func (u *Uploader) Upload(ctx context.Context, nodeID, filename string, r io.Reader) (workflow.Node, error) {
	if _, ok := u.store.Node(nodeID); !ok {
		return workflow.Node{}, workflow.ErrNodeNotFound
	}

	res, err := u.uploader.UploadImage(ctx, filename, r)
	if err != nil {
		u.logger.Error("image upload failed", "node_id", nodeID, "filename", filename, "error", err)
		return workflow.Node{}, fmt.Errorf("failed to upload image: %w", err)
	}
	if res == nil || res.ImageData == "" || res.Filename == "" {
		return workflow.Node{}, fmt.Errorf("failed to upload image: %w", workflow.ErrMalformedResponse)
	}

	patch := workflow.Patch{
		ImageData: workflow.String(res.ImageData),
		ImagePath: workflow.String(res.Filename),
	}
	if !u.store.UpdateNodeData(nodeID, patch) {
		// Deleted while the upload was in flight.
		return workflow.Node{}, workflow.ErrNodeNotFound
	}

	n, _ := u.store.Node(nodeID)
	u.logger.Info("image attached", "node_id", nodeID, "image_path", res.Filename)
	return n, nil
}
