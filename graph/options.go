package graph

import (
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/meikuraledutech/workflow"
)

// IDFunc returns a candidate id for a new node of type t.
type IDFunc func(t workflow.NodeType) string

// Placer picks the initial canvas position of a new node.
type Placer func() workflow.Position

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	newID IDFunc
	place Placer
}

// WithIDFunc overrides node id generation. Candidates that collide with an
// id already issued by the store are discarded and regenerated.
func WithIDFunc(f IDFunc) StoreOption {
	return func(o *storeOptions) { o.newID = f }
}

// WithPlacer overrides where new nodes appear.
func WithPlacer(p Placer) StoreOption {
	return func(o *storeOptions) { o.place = p }
}

func defaultID(t workflow.NodeType) string {
	return string(t) + "_" + uuid.NewString()
}

// randomPlacement scatters nodes over the visible part of a fresh canvas.
func randomPlacement() workflow.Position {
	return workflow.Position{
		X: rand.Float64()*400 + 150,
		Y: rand.Float64()*200 + 100,
	}
}
