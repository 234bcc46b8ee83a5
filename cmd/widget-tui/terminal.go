// ABOUTME: Terminal mount adapter that prints widget changes as colored lines
// ABOUTME: Tracks what was already shown so each refresh prints only the delta

package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/2389/coven-widget/internal/render"
	"github.com/2389/coven-widget/internal/session"
)

// terminalHost implements render.Host on a line-oriented writer.
type terminalHost struct {
	mu       sync.Mutex
	out      io.Writer
	attached *render.Tree

	printed    map[string]bool // bubble and typing node ids already shown
	panelOpen  bool
	menuShown  bool
	notice     string
	attachment string

	user   *color.Color
	bot    *color.Color
	dim    *color.Color
	warn   *color.Color
	accent *color.Color
}

func newTerminalHost(out io.Writer) *terminalHost {
	return &terminalHost{
		out:     out,
		printed: make(map[string]bool),
		user:    color.New(color.FgCyan),
		bot:     color.New(color.FgGreen),
		dim:     color.New(color.FgHiBlack),
		warn:    color.New(color.FgYellow, color.Bold),
		accent:  color.New(color.FgMagenta),
	}
}

// Attach implements render.Host.
func (h *terminalHost) Attach(t *render.Tree) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.attached != nil {
		return render.ErrAlreadyAttached
	}
	h.attached = t
	h.panelOpen, h.menuShown = false, false
	h.notice, h.attachment = "", ""

	title := ""
	if n := t.Find(render.IDTitle); n != nil {
		title = n.Text
	}
	h.accent.Fprintf(h.out, "── %s ──\n", title)
	h.print(t)
	return nil
}

// Detach implements render.Host.
func (h *terminalHost) Detach(t *render.Tree) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.attached == t {
		h.attached = nil
		h.dim.Fprintln(h.out, "[widget unmounted]")
	}
	return nil
}

// Refresh implements render.Host.
func (h *terminalHost) Refresh(t *render.Tree) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.attached == t {
		h.print(t)
	}
}

// print writes whatever changed since the last call. Must hold mu.
func (h *terminalHost) print(t *render.Tree) {
	open := t.Visible(render.IDPanel)
	if open != h.panelOpen {
		h.panelOpen = open
		if open {
			h.dim.Fprintln(h.out, "[panel opened]")
		} else {
			h.dim.Fprintln(h.out, "[panel closed]")
		}
	}

	menu := open && t.Visible(render.IDMenu)
	if menu && !h.menuShown {
		h.printMenu(t)
	}
	h.menuShown = menu

	notice := ""
	if n := t.Find(render.IDNotice); n != nil && !n.Hidden {
		notice = n.Text
	}
	if notice != h.notice {
		h.notice = notice
		if notice != "" {
			h.warn.Fprintf(h.out, "! %s\n", notice)
		}
	}

	attachment := ""
	if n := t.Find(render.IDAttachmentPreview); n != nil && !n.Hidden && len(n.Children) > 0 {
		attachment = n.Children[0].Text
	}
	if attachment != h.attachment {
		h.attachment = attachment
		if attachment != "" {
			h.dim.Fprintf(h.out, "[attached %s]\n", attachment)
		}
	}

	if n := t.Find(render.IDTranscript); n != nil {
		for _, c := range n.Children {
			h.printEntry(c)
		}
	}
}

func (h *terminalHost) printMenu(t *render.Tree) {
	if n := t.Find(render.IDWelcome); n != nil && n.Text != "" {
		h.bot.Fprintf(h.out, "bot: %s\n", n.Text)
	}
	if n := t.Find(render.IDOptions); n != nil {
		for _, opt := range n.Children {
			if id := opt.Attrs[render.AttrOptionID]; id != "" {
				fmt.Fprintf(h.out, "  /option %s  ", id)
				h.dim.Fprintln(h.out, opt.Text)
			}
		}
	}
}

func (h *terminalHost) printEntry(n *render.Node) {
	if h.printed[n.ID] {
		return
	}
	h.printed[n.ID] = true

	switch n.Kind {
	case render.KindIndicator:
		h.dim.Fprintln(h.out, "bot is typing...")
	case render.KindBubble:
		if n.Attrs[render.AttrSender] == string(session.SenderSystem) {
			h.bot.Fprintf(h.out, "bot: %s\n", n.Text)
		} else {
			h.user.Fprintf(h.out, "you: %s\n", n.Text)
		}
		for _, c := range n.Children {
			if c.Text != "" {
				h.dim.Fprintf(h.out, "     [attachment %s]\n", c.Text)
			}
		}
	}
}

// bell rings the terminal bell for reply chimes.
type bell struct {
	out io.Writer
}

func (b bell) Cue() {
	_, _ = io.WriteString(b.out, "\a")
}
