// ABOUTME: Public runtime API used by hosts and embedding pages
// ABOUTME: Every call runs on the event loop and is a no-op while unmounted

package lifecycle

import (
	"errors"
	"strings"

	"github.com/2389/coven-widget/internal/input"
	"github.com/2389/coven-widget/internal/messaging"
	"github.com/2389/coven-widget/internal/render"
	"github.com/2389/coven-widget/internal/session"
	"github.com/2389/coven-widget/internal/tenant"
)

// ErrNotMounted is returned by calls that need a mounted widget.
var ErrNotMounted = errors.New("widget is not mounted")

// mutate runs fn on the loop when mounted and pushes the result to the host.
func (r *Runtime) mutate(fn func() bool) bool {
	var changed bool
	r.do(func() {
		if !r.mounted {
			return
		}
		changed = fn()
		r.apply()
	})
	return changed
}

// Open opens the panel.
func (r *Runtime) Open() {
	r.mutate(func() bool {
		r.sess.SetOpen(true)
		return true
	})
}

// Close closes the panel.
func (r *Runtime) Close() {
	r.mutate(func() bool {
		r.sess.SetOpen(false)
		r.sess.MarkInteracted()
		return true
	})
}

// Toggle flips the panel open or closed.
func (r *Runtime) Toggle() {
	r.mutate(func() bool {
		r.sess.Toggle()
		return true
	})
}

// SendMessage sends text, plus any staged attachment, as a user turn.
// It reports whether a turn was sent.
func (r *Runtime) SendMessage(text string) bool {
	return r.mutate(func() bool {
		r.view.SetInput(text)
		return r.submit()
	})
}

// SetInput replaces the input field text.
func (r *Runtime) SetInput(text string) {
	r.mutate(func() bool {
		r.view.SetInput(text)
		return true
	})
}

// Submit sends the input field text and staged attachment.
func (r *Runtime) Submit() bool {
	return r.mutate(r.submit)
}

// SelectOption moves to the conversation and sends the option's label.
// It reports false for unknown options.
func (r *Runtime) SelectOption(optionID string) bool {
	return r.mutate(func() bool {
		for _, opt := range r.cfg.Menu.Options {
			if opt.ID != optionID {
				continue
			}
			r.sess.EnterConversation()
			if r.chatEnabled {
				r.pipeline.Send(r.ctx, opt.Label, nil)
			}
			return true
		}
		return false
	})
}

// Back returns from the conversation to the menu.
func (r *Runtime) Back() bool {
	return r.mutate(func() bool {
		if r.sess.Screen != session.ScreenConversation {
			return false
		}
		r.sess.Back()
		return true
	})
}

// EnterConversation is the footer shortcut: it shows the conversation
// without sending anything.
func (r *Runtime) EnterConversation() bool {
	return r.mutate(func() bool {
		if r.sess.Screen != session.ScreenMenu {
			return false
		}
		r.sess.EnterConversation()
		return true
	})
}

// StageFile reads path and stages it as the attachment. Oversize files show
// a blocking notice and are not staged.
func (r *Runtime) StageFile(path string) error {
	att, err := input.ReadAttachment(path)
	return r.stage(att, err)
}

// StageAttachment stages in-memory data as the attachment.
func (r *Runtime) StageAttachment(name, mimeType string, data []byte) error {
	att, err := input.NewAttachment(name, mimeType, data)
	return r.stage(att, err)
}

func (r *Runtime) stage(att *session.Attachment, err error) error {
	ok := r.do(func() {
		if !r.mounted {
			err = ErrNotMounted
			return
		}
		switch {
		case errors.Is(err, input.ErrAttachmentTooLarge):
			r.view.ShowNotice(render.Notice{Text: r.cfg.String(tenant.StringAttachmentTooBig), Blocking: true})
		case err != nil:
			r.view.ShowNotice(render.Notice{Text: r.cfg.String(tenant.StringAttachmentUnknown)})
		default:
			r.view.DismissNotice()
			r.sess.Stage(att)
		}
		r.apply()
	})
	if !ok {
		return ErrNotMounted
	}
	return err
}

// ClearAttachment drops the staged attachment.
func (r *Runtime) ClearAttachment() {
	r.mutate(func() bool {
		return r.sess.Unstage() != nil
	})
}

// DismissNotice hides the current notice.
func (r *Runtime) DismissNotice() {
	r.mutate(func() bool {
		r.view.DismissNotice()
		return true
	})
}

// ToggleMute flips the reply chime and returns whether it is now muted.
func (r *Runtime) ToggleMute() bool {
	return r.mutate(func() bool {
		return r.sess.ToggleMute()
	})
}

// StartVoice starts one speech capture. The transcript is written into the
// input and sent. It reports false if capture was already running.
func (r *Runtime) StartVoice() bool {
	return r.mutate(func() bool {
		if !r.sess.BeginListening() {
			return false
		}
		gen := r.gen
		go func() {
			text, err := r.recognizer.Recognize(r.ctx)
			r.postGen(gen, func() {
				r.sess.EndListening()
				switch {
				case errors.Is(err, input.ErrSpeechUnsupported):
					r.view.ShowNotice(render.Notice{Text: r.cfg.String(tenant.StringVoiceUnsupported)})
				case err != nil:
					r.logger.Warn("speech recognition failed", "error", err)
					r.view.ShowNotice(render.Notice{Text: r.cfg.String(tenant.StringVoiceFailed)})
				default:
					r.view.SetInput(text)
					r.submit()
				}
				r.apply()
			})
		}()
		return true
	})
}

// Press activates the control with the given node id the way a click on it
// would. It reports false for ids that are not controls or had no effect.
func (r *Runtime) Press(nodeID string) bool {
	switch nodeID {
	case render.IDToggle:
		r.Toggle()
		return true
	case render.IDBack:
		return r.Back()
	case render.IDMute:
		r.ToggleMute()
		return true
	case render.IDVoice:
		return r.StartVoice()
	case render.IDShortcut:
		return r.EnterConversation()
	case render.IDSend:
		return r.Submit()
	case render.IDAttachmentRemove:
		return r.mutate(func() bool {
			return r.sess.Unstage() != nil
		})
	case render.IDNoticeDismiss:
		r.DismissNotice()
		return true
	}
	if id, ok := strings.CutPrefix(nodeID, render.OptionNodeID("")); ok {
		return r.SelectOption(id)
	}
	return false
}

// submit sends the input text and staged attachment. Runs on the loop.
func (r *Runtime) submit() bool {
	if !r.chatEnabled {
		return false
	}
	if n, ok := r.view.Notice(); ok && n.Blocking {
		return false
	}
	text := r.view.InputValue()
	att := r.sess.Staged
	if !input.Sendable(text, att) {
		return false
	}
	if r.sess.Screen == session.ScreenMenu {
		r.sess.EnterConversation()
	}
	_, sent := r.pipeline.Send(r.ctx, text, att)
	return sent
}

// Snapshot returns a copy of the session state. ok is false while unmounted.
func (r *Runtime) Snapshot() (snap session.Snapshot, ok bool) {
	r.do(func() {
		if !r.mounted {
			return
		}
		snap, ok = r.sess.Snapshot(), true
	})
	return snap, ok
}

// Tree returns a copy of the mounted tree, or nil while unmounted.
func (r *Runtime) Tree() *render.Tree {
	var t *render.Tree
	r.do(func() {
		if r.mounted {
			t = r.tree.Clone()
		}
	})
	return t
}

// Notice returns the notice currently shown, if any.
func (r *Runtime) Notice() (render.Notice, bool) {
	var (
		n  render.Notice
		ok bool
	)
	r.do(func() {
		if r.mounted {
			n, ok = r.view.Notice()
		}
	})
	return n, ok
}

// Config returns the configuration currently in effect.
func (r *Runtime) Config() tenant.Config {
	var cfg tenant.Config
	r.do(func() {
		cfg = r.cfg
	})
	return cfg
}

// Endpoint returns the chat endpoint later turns will use.
func (r *Runtime) Endpoint() messaging.Endpoint {
	var ep messaging.Endpoint
	r.do(func() {
		ep = r.endpoint
	})
	return ep
}

// Generation returns the mount generation. It increases on every remount.
func (r *Runtime) Generation() uint64 {
	var gen uint64
	r.do(func() {
		gen = r.gen
	})
	return gen
}
