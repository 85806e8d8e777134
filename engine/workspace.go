package engine

import (
	"sync"

	"hfoutcome/pkg/errors"
)

// Workspace is the scoped compute context for one unit of work (one subgroup x
// outcome cell, one bootstrap run, one selection iteration). Models trained
// inside a unit are tracked here and released when the unit ends, on every exit
// path. Both the subgroup x outcome loop and the bootstrap loop create models
// into the thousands over a full run, so release is a hard requirement rather
// than an optimization.
type Workspace struct {
	scope string

	mu     sync.Mutex
	live   map[Model]struct{}
	closed bool
}

// NewWorkspace creates a workspace for the named scope.
func NewWorkspace(scope string) *Workspace {
	return &Workspace{scope: scope, live: make(map[Model]struct{})}
}

// Track registers a model with the workspace and returns it.
func (w *Workspace) Track(m Model) Model {
	if m == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.closed {
		w.live[m] = struct{}{}
	}
	return m
}

// Release frees a tracked model immediately. Safe to call for models the
// workspace never saw.
func (w *Workspace) Release(m Model) {
	if m == nil {
		return
	}
	w.mu.Lock()
	delete(w.live, m)
	w.mu.Unlock()
	m.Release()
}

// Close releases every model still tracked. Artifacts that were still live are
// reported as a ResourceCleanupWarning; the warning is logged, not propagated.
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	leftover := make([]Model, 0, len(w.live))
	for m := range w.live {
		leftover = append(leftover, m)
	}
	w.live = nil
	w.mu.Unlock()

	if len(leftover) > 0 {
		errors.Warn(errors.NewResourceCleanupWarning(w.scope, len(leftover)))
		for _, m := range leftover {
			m.Release()
		}
	}
}
