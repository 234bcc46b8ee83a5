// ABOUTME: Mount adapter interface between the runtime and a concrete host
// ABOUTME: MemoryHost keeps the last tree in memory for tests and headless use

package render

import (
	"errors"
	"sync"
)

// ErrAlreadyAttached is returned when a host is asked to mount a second tree.
var ErrAlreadyAttached = errors.New("a widget tree is already attached")

// Host mounts trees into a concrete surface. All calls come from the
// runtime event loop; implementations must copy what they need because the
// tree keeps changing after the call returns.
type Host interface {
	// Attach mounts t.
	Attach(t *Tree) error

	// Detach unmounts t. Detaching a tree that is not attached is not an error.
	Detach(t *Tree) error

	// Refresh is called after t changed.
	Refresh(t *Tree)
}

// MemoryHost is a Host that keeps a copy of the attached tree.
type MemoryHost struct {
	mu       sync.Mutex
	attached *Tree
	current  *Tree
	attaches int
	detaches int
	refreshes int
}

// NewMemoryHost creates an empty host.
func NewMemoryHost() *MemoryHost {
	return &MemoryHost{}
}

// Attach implements Host.
func (h *MemoryHost) Attach(t *Tree) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.attached != nil {
		return ErrAlreadyAttached
	}
	h.attached = t
	h.current = t.Clone()
	h.attaches++
	return nil
}

// Detach implements Host.
func (h *MemoryHost) Detach(t *Tree) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.attached != t {
		return nil
	}
	h.attached = nil
	h.current = nil
	h.detaches++
	return nil
}

// Refresh implements Host.
func (h *MemoryHost) Refresh(t *Tree) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.attached != t {
		return
	}
	h.current = t.Clone()
	h.refreshes++
}

// Current returns a copy of the mounted tree, or nil.
func (h *MemoryHost) Current() *Tree {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.current == nil {
		return nil
	}
	return h.current.Clone()
}

// Attaches returns how many trees have been mounted.
func (h *MemoryHost) Attaches() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.attaches
}

// Detaches returns how many trees have been unmounted.
func (h *MemoryHost) Detaches() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.detaches
}
