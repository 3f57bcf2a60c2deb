package graph

import "sync"

// Selection tracks the single active node id, if any. Renderers read it to
// choose between compact and expanded presentation.
//
// The zero value is ready to use and holds no selection.
type Selection struct {
	mu sync.RWMutex
	id string
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{}
}

// Select makes id the active node. It does not check that the node exists;
// use Store.Select for that.
func (s *Selection) Select(id string) {
	s.mu.Lock()
	s.id = id
	s.mu.Unlock()
}

// Clear drops the selection.
func (s *Selection) Clear() {
	s.mu.Lock()
	s.id = ""
	s.mu.Unlock()
}

// Current returns the selected id and whether one is set.
func (s *Selection) Current() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id, s.id != ""
}

// ClearIf drops the selection when match reports true for the selected id.
// It reports whether the selection was cleared.
func (s *Selection) ClearIf(match func(id string) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.id == "" || !match(s.id) {
		return false
	}
	s.id = ""
	return true
}
