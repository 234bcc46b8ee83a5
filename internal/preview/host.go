// ABOUTME: render.Host implementation that keeps the widget as HTML
// ABOUTME: Every attach and refresh re-renders the tree and pushes it to the hub

package preview

import (
	"log/slog"
	"sync"

	"github.com/2389/coven-widget/internal/render"
)

// Host renders the mounted tree to HTML for the preview page.
type Host struct {
	mu       sync.RWMutex
	attached *render.Tree
	html     string
	renders  int
	hub      *Hub
	logger   *slog.Logger
}

// NewHost creates a host that broadcasts through hub. hub may be nil.
func NewHost(hub *Hub, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}
	return &Host{
		hub:    hub,
		logger: logger.With("component", "preview_host"),
	}
}

// Attach implements render.Host.
func (h *Host) Attach(t *render.Tree) error {
	h.mu.Lock()
	if h.attached != nil {
		h.mu.Unlock()
		return render.ErrAlreadyAttached
	}
	h.attached = t
	h.mu.Unlock()

	h.render(t)
	return nil
}

// Detach implements render.Host.
func (h *Host) Detach(t *render.Tree) error {
	h.mu.Lock()
	if h.attached != t {
		h.mu.Unlock()
		return nil
	}
	h.attached = nil
	h.html = ""
	h.mu.Unlock()

	if h.hub != nil {
		h.hub.Broadcast(Frame{Type: "detached"})
	}
	return nil
}

// Refresh implements render.Host.
func (h *Host) Refresh(t *render.Tree) {
	h.mu.RLock()
	attached := h.attached == t
	h.mu.RUnlock()

	if attached {
		h.render(t)
	}
}

// HTML returns the markup of the mounted widget, or "" when nothing is mounted.
func (h *Host) HTML() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.html
}

// Renders returns how many times the widget has been rendered.
func (h *Host) Renders() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.renders
}

// frame describes the current state for a newly connected client.
func (h *Host) frame() Frame {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.attached == nil {
		return Frame{Type: "detached"}
	}
	return Frame{Type: "html", HTML: h.html}
}

// render runs on the widget event loop, so t is stable for the duration.
func (h *Host) render(t *render.Tree) {
	markup, err := render.HTML(t)
	if err != nil {
		h.logger.Error("rendering widget", "error", err)
		return
	}

	h.mu.Lock()
	if h.attached != t {
		h.mu.Unlock()
		return
	}
	h.html = markup
	h.renders++
	h.mu.Unlock()

	if h.hub != nil {
		h.hub.Broadcast(Frame{Type: "html", HTML: markup})
	}
}
