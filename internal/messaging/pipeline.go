// ABOUTME: Messaging pipeline that turns one user action into a rendered exchange
// ABOUTME: Echoes optimistically, shows typing, then renders the reply or an apology

package messaging

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/2389/coven-widget/internal/input"
	"github.com/2389/coven-widget/internal/session"
	"github.com/2389/coven-widget/internal/tenant"
)

// Surface is the part of the mounted tree the pipeline draws on.
type Surface interface {
	AppendMessage(m session.Message)
	ClearInput()
	ClearAttachment()
	ShowTyping(id string)
	HideTyping(id string)
	Chime()
}

// Dispatcher runs fn on the goroutine that owns the session and surface.
// It may drop fn if the surface it was issued for is gone.
type Dispatcher func(fn func())

// Options configures a Pipeline.
type Options struct {
	Client   *Client
	Surface  Surface
	Session  *session.Session
	Dispatch Dispatcher
	Endpoint Endpoint
	Config   tenant.Config
	Logger   *slog.Logger
}

// Pipeline sends turns for one mounted session. Send and SetEndpoint must be
// called from the owning goroutine.
type Pipeline struct {
	client   *Client
	surface  Surface
	sess     *session.Session
	dispatch Dispatcher
	endpoint Endpoint
	cfg      tenant.Config
	logger   *slog.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(opts Options) *Pipeline {
	if opts.Client == nil {
		opts.Client = NewClient(nil, opts.Logger)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Dispatch == nil {
		opts.Dispatch = func(fn func()) { fn() }
	}
	return &Pipeline{
		client:   opts.Client,
		surface:  opts.Surface,
		sess:     opts.Session,
		dispatch: opts.Dispatch,
		endpoint: opts.Endpoint,
		cfg:      opts.Config,
		logger:   opts.Logger.With("component", "messaging"),
	}
}

// SetEndpoint replaces the endpoint and tenant used by later sends.
func (p *Pipeline) SetEndpoint(ep Endpoint, cfg tenant.Config) {
	p.endpoint = ep
	p.cfg = cfg
}

// Endpoint returns the endpoint later sends will use.
func (p *Pipeline) Endpoint() Endpoint {
	return p.endpoint
}

// Send echoes the turn, starts the request and returns the echoed message.
// It returns false without side effects when there is nothing to send.
// The reply is rendered later through the dispatcher.
func (p *Pipeline) Send(ctx context.Context, text string, att *session.Attachment) (session.Message, bool) {
	text = input.NormalizeText(text)
	if !input.Sendable(text, att) {
		return session.Message{}, false
	}

	var desc *session.AttachmentDescriptor
	if att != nil {
		d := att.AttachmentDescriptor
		desc = &d
	}
	echo := session.NewMessage(session.SenderUser, text, desc)
	p.sess.Append(echo)
	p.surface.AppendMessage(echo)

	p.surface.ClearInput()
	if att != nil {
		p.sess.Unstage()
		p.surface.ClearAttachment()
	}

	typingID := uuid.New().String()
	p.surface.ShowTyping(typingID)

	turn := Turn{ID: echo.ID, Message: text, Attachment: att}
	ep := p.endpoint
	apology := p.cfg.String(tenant.StringApology)
	fallback := p.cfg.String(tenant.StringReplyFallback)

	go func() {
		reply, err := p.client.Send(ctx, ep, turn)

		body := reply.Text
		switch {
		case err != nil:
			p.logger.Warn("turn failed", "turn_id", turn.ID, "error", err)
			body = apology
		case body == "":
			body = fallback
		}

		p.dispatch(func() {
			p.surface.HideTyping(typingID)
			msg := session.NewMessage(session.SenderSystem, body, nil)
			p.sess.Append(msg)
			p.surface.AppendMessage(msg)
			if !p.sess.Muted {
				p.surface.Chime()
			}
		})
	}()

	return echo, true
}
