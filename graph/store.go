// Package graph owns the live workflow graph and the node selection.
//
// Store is the only writer of nodes and edges. Every method takes the store
// lock for its whole duration, so callers never observe a half-applied
// mutation. Methods that refer to a missing node are refused and report it
// through their boolean result; they never panic and never touch other nodes.
package graph

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/meikuraledutech/workflow"
)

// Updater applies a patch to one node through the live store.
// It reports false once the node no longer exists.
type Updater func(p workflow.Patch) bool

// Store holds the canonical nodes and edges of one editing session.
type Store struct {
	mu     sync.RWMutex
	nodes  []workflow.Node
	edges  []workflow.Edge
	issued map[string]struct{}

	selection *Selection
	opts      storeOptions
}

// New creates an empty store. sel is cleared whenever its node is deleted;
// pass nil if nothing tracks selection.
func New(sel *Selection, opts ...StoreOption) *Store {
	o := storeOptions{
		newID: defaultID,
		place: randomPlacement,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if sel == nil {
		sel = NewSelection()
	}
	return &Store{
		issued:    make(map[string]struct{}),
		selection: sel,
		opts:      o,
	}
}

// Selection returns the tracker this store keeps consistent.
func (s *Store) Selection() *Selection {
	return s.selection
}

// AddNode appends a node of type t with the type's default data.
// It reports false for an unregistered type.
func (s *Store) AddNode(t workflow.NodeType) (workflow.Node, bool) {
	spec, ok := workflow.Lookup(t)
	if !ok {
		return workflow.Node{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.opts.newID(t)
	for !s.unissued(id) {
		id = defaultID(t)
	}
	s.issued[id] = struct{}{}

	n := workflow.Node{
		ID:       id,
		Type:     t,
		Position: s.opts.place(),
		Data:     spec.Defaults(),
	}
	s.nodes = append(s.nodes, n)
	return n, true
}

// UpdateNodeData merges p over the data of node id.
// It reports false, changing nothing, when the node does not exist.
func (s *Store) UpdateNodeData(id string, p workflow.Patch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return false
	}
	s.nodes[i].Data = s.nodes[i].Data.Merge(p)
	return true
}

// Bind returns the mutation entry point for node id. The returned Updater
// writes to the live store on every call, never to a snapshot.
func (s *Store) Bind(id string) Updater {
	return func(p workflow.Patch) bool {
		return s.UpdateNodeData(id, p)
	}
}

// Connect links sourceHandle on source to targetHandle on target.
// An empty handle selects the node type's default handle on that side.
// The link is refused when either node is missing, a handle does not exist
// on the node's type, or the same link already exists.
func (s *Store) Connect(source, sourceHandle, target, targetHandle string) (workflow.Edge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	si, ti := s.indexOf(source), s.indexOf(target)
	if si < 0 || ti < 0 {
		return workflow.Edge{}, false
	}

	srcSpec, _ := workflow.Lookup(s.nodes[si].Type)
	dstSpec, _ := workflow.Lookup(s.nodes[ti].Type)
	if sourceHandle == "" {
		sourceHandle = srcSpec.DefaultOutput()
	}
	if targetHandle == "" {
		targetHandle = dstSpec.DefaultInput()
	}
	if !srcSpec.HasOutput(sourceHandle) || !dstSpec.HasInput(targetHandle) {
		return workflow.Edge{}, false
	}

	for _, e := range s.edges {
		if e.Source == source && e.SourceHandle == sourceHandle &&
			e.Target == target && e.TargetHandle == targetHandle {
			return workflow.Edge{}, false
		}
	}

	e := workflow.Edge{
		ID:           uuid.NewString(),
		Source:       source,
		SourceHandle: sourceHandle,
		Target:       target,
		TargetHandle: targetHandle,
	}
	s.edges = append(s.edges, e)
	return e, true
}

// DeleteEdge removes one edge. It reports false if no edge has that id.
func (s *Store) DeleteEdge(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.edges)
	s.edges = slices.DeleteFunc(s.edges, func(e workflow.Edge) bool { return e.ID == id })
	return len(s.edges) != before
}

// DeleteNodes removes the listed nodes and every edge touching them, and
// clears the selection if it pointed at one of them. Unknown ids are ignored.
func (s *Store) DeleteNodes(ids ...string) {
	if len(ids) == 0 {
		return
	}
	gone := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		gone[id] = struct{}{}
	}
	removed := func(id string) bool {
		_, ok := gone[id]
		return ok
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nodes = slices.DeleteFunc(s.nodes, func(n workflow.Node) bool { return removed(n.ID) })
	s.edges = slices.DeleteFunc(s.edges, func(e workflow.Edge) bool {
		return removed(e.Source) || removed(e.Target)
	})
	s.selection.ClearIf(removed)
}

// Select makes id the active node. It reports false, leaving the selection
// unchanged, when the node does not exist.
func (s *Store) Select(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.indexOf(id) < 0 {
		return false
	}
	s.selection.Select(id)
	return true
}

// ApplyOutputs reconciles execution outputs onto the live graph. Each node
// still present with an entry in outputs gets its result and resultImage
// merged; nodes without an entry and ids with no node are skipped.
// It returns the ids of updated nodes in node order.
func (s *Store) ApplyOutputs(outputs map[string]workflow.NodeOutput) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated []string
	for i := range s.nodes {
		out, ok := outputs[s.nodes[i].ID]
		if !ok {
			continue
		}
		s.nodes[i].Data = s.nodes[i].Data.Merge(workflow.OutputPatch(out))
		updated = append(updated, s.nodes[i].ID)
	}
	return updated
}

// Node returns a copy of node id.
func (s *Store) Node(id string) (workflow.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return workflow.Node{}, false
	}
	return s.nodes[i], true
}

// Snapshot returns a copy of the graph that later mutations do not affect.
func (s *Store) Snapshot() workflow.Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return workflow.Graph{
		Nodes: append([]workflow.Node{}, s.nodes...),
		Edges: append([]workflow.Edge{}, s.edges...),
	}
}

// Len returns the number of nodes.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

func (s *Store) unissued(id string) bool {
	_, taken := s.issued[id]
	return id != "" && !taken
}

func (s *Store) indexOf(id string) int {
	return slices.IndexFunc(s.nodes, func(n workflow.Node) bool { return n.ID == id })
}
