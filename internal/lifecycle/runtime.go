// ABOUTME: Widget runtime owning mount state, the session and the event loop
// ABOUTME: Mounts, remounts on reconfiguration and refreshes config on visibility

package lifecycle

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/2389/coven-widget/internal/eventbus"
	"github.com/2389/coven-widget/internal/input"
	"github.com/2389/coven-widget/internal/kvstore"
	"github.com/2389/coven-widget/internal/messaging"
	"github.com/2389/coven-widget/internal/render"
	"github.com/2389/coven-widget/internal/resolver"
	"github.com/2389/coven-widget/internal/session"
	"github.com/2389/coven-widget/internal/tenant"
)

// ErrNoHost is returned by New when Options.Host is nil.
var ErrNoHost = errors.New("lifecycle: host is required")

const eventQueueSize = 64

// Options configures a Runtime. Only Host is required.
type Options struct {
	// TenantKey is the public key from the embed snippet. Absent or
	// placeholder keys are replaced with tenant.DemoKey.
	TenantKey string

	// APIBaseOverride wins over the origin-derived base when set.
	APIBaseOverride string

	// Origin is the embedding page origin, used to pick the API base.
	Origin string

	Host       render.Host
	Bus        *eventbus.Bus
	Store      kvstore.Store
	HTTPClient *http.Client
	Recognizer input.Recognizer
	Cuer       render.Cuer
	Logger     *slog.Logger

	// AutoOpenDelayUnit scales behavior.auto_open_delay. Defaults to a second.
	AutoOpenDelayUnit time.Duration
}

// Runtime is one widget instance on one host.
type Runtime struct {
	host       render.Host
	bus        *eventbus.Bus
	resolver   *resolver.Resolver
	chat       *messaging.Client
	recognizer input.Recognizer
	cuer       render.Cuer
	logger     *slog.Logger
	tenantKey  string
	apiBase    string
	delayUnit  time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	events  chan func()
	stopped chan struct{}
	running atomic.Bool

	startOnce sync.Once
	bindOnce  sync.Once
	stopOnce  sync.Once

	// Everything below is owned by the event loop.
	mounted     bool
	gen         uint64
	reconfigSeq uint64
	hidden      bool
	exitFired   bool
	autoOpen    *time.Timer
	chatEnabled bool
	cfg         tenant.Config
	endpoint    messaging.Endpoint
	sess        *session.Session
	tree        *render.Tree
	view        *render.View
	pipeline    *messaging.Pipeline
}

// New creates an unmounted runtime.
func New(opts Options) (*Runtime, error) {
	if opts.Host == nil {
		return nil, ErrNoHost
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Bus == nil {
		opts.Bus = eventbus.New(opts.Logger)
	}
	if opts.Recognizer == nil {
		opts.Recognizer = input.UnsupportedRecognizer{}
	}
	if opts.AutoOpenDelayUnit <= 0 {
		opts.AutoOpenDelayUnit = time.Second
	}

	apiBase := strings.TrimRight(opts.APIBaseOverride, "/")
	if apiBase == "" {
		apiBase = resolver.APIBaseForOrigin(opts.Origin)
	}

	logger := opts.Logger.With("component", "lifecycle")
	return &Runtime{
		host: opts.Host,
		bus:  opts.Bus,
		resolver: resolver.New(resolver.Options{
			APIBase:    apiBase,
			HTTPClient: opts.HTTPClient,
			Store:      opts.Store,
			Logger:     opts.Logger,
		}),
		chat:       messaging.NewClient(opts.HTTPClient, opts.Logger),
		recognizer: opts.Recognizer,
		cuer:       opts.Cuer,
		logger:     logger,
		tenantKey:  tenant.NormalizeKey(opts.TenantKey),
		apiBase:    apiBase,
		delayUnit:  opts.AutoOpenDelayUnit,
		events:     make(chan func(), eventQueueSize),
		stopped:    make(chan struct{}),
	}, nil
}

// TenantKey returns the key used for requests.
func (r *Runtime) TenantKey() string {
	return r.tenantKey
}

// APIBase returns the base URL used for both endpoints.
func (r *Runtime) APIBase() string {
	return r.apiBase
}

// Start resolves configuration, mounts the widget and binds host events.
// It returns once the first mount finished. Calling Start again does nothing.
func (r *Runtime) Start(ctx context.Context) error {
	var err error
	r.startOnce.Do(func() {
		r.ctx, r.cancel = context.WithCancel(ctx)
		r.running.Store(true)
		go r.loop()

		cfg := r.resolver.Resolve(r.ctx, r.tenantKey, false)
		r.do(func() {
			err = r.mount(cfg, true)
		})
		r.bind()

		r.logger.Info("widget started",
			"tenant_key", r.tenantKey,
			"api_base", r.apiBase)
	})
	return err
}

// Stop unmounts the widget and ends the event loop.
func (r *Runtime) Stop() {
	if !r.running.Load() {
		return
	}
	r.stopOnce.Do(func() {
		r.do(r.teardown)
		r.cancel()
		<-r.stopped
		// The loop may have exited with ctx before it could tear down.
		r.teardown()
		r.running.Store(false)
		r.logger.Info("widget stopped")
	})
}

// Done is closed when the event loop has exited.
func (r *Runtime) Done() <-chan struct{} {
	return r.stopped
}

func (r *Runtime) loop() {
	defer close(r.stopped)
	for {
		select {
		case fn := <-r.events:
			r.run(fn)
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Runtime) run(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("event handler panicked", "panic", rec)
		}
	}()
	fn()
}

// do runs fn on the event loop and waits for it. It must not be called from
// the loop itself. It reports false if the loop is not running.
func (r *Runtime) do(fn func()) bool {
	if !r.running.Load() {
		return false
	}
	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}
	select {
	case r.events <- wrapped:
	case <-r.stopped:
		return false
	}
	select {
	case <-finished:
		return true
	case <-r.stopped:
		return false
	}
}

// post queues fn on the event loop without waiting. It must not be called
// from the loop itself.
func (r *Runtime) post(fn func()) {
	select {
	case r.events <- fn:
	case <-r.stopped:
	}
}

// postGen queues fn and drops it if the widget was remounted since gen.
func (r *Runtime) postGen(gen uint64, fn func()) {
	r.post(func() {
		if !r.mounted || r.gen != gen {
			r.logger.Debug("discarding stale completion", "gen", gen, "current", r.gen)
			return
		}
		fn()
	})
}

// mount builds and attaches a fresh tree and session. Runs on the loop.
func (r *Runtime) mount(cfg tenant.Config, initial bool) error {
	r.gen++
	gen := r.gen

	r.cfg = cfg
	r.sess = session.New()
	r.tree = render.Build(cfg)
	r.view = render.NewView(r.tree, r.cuer)
	r.endpoint = messaging.Endpoint{URL: r.apiBase + "/gemini-chat", TenantKey: r.tenantKey}
	r.pipeline = messaging.NewPipeline(messaging.Options{
		Client:  r.chat,
		Surface: r.view,
		Session: r.sess,
		Dispatch: func(fn func()) {
			r.postGen(gen, func() {
				fn()
				r.refresh()
			})
		},
		Endpoint: r.endpoint,
		Config:   cfg,
		Logger:   r.logger,
	})
	r.chatEnabled = cfg.Features.Chat
	r.exitFired = false

	if err := r.host.Attach(r.tree); err != nil {
		r.logger.Error("failed to attach widget", "error", err)
		return err
	}
	r.mounted = true

	r.applyBehaviors(initial, gen)
	r.apply()

	r.logger.Debug("widget mounted", "gen", gen)
	return nil
}

// teardown detaches the tree and discards the session. Runs on the loop.
func (r *Runtime) teardown() {
	if !r.mounted {
		return
	}
	if r.autoOpen != nil {
		r.autoOpen.Stop()
		r.autoOpen = nil
	}
	if err := r.host.Detach(r.tree); err != nil {
		r.logger.Warn("detach failed", "error", err)
	}
	r.mounted = false
	r.sess = nil
	r.view = nil
	r.pipeline = nil
}

// applyBehaviors applies auto-open settings for a fresh mount.
func (r *Runtime) applyBehaviors(initial bool, gen uint64) {
	b := r.cfg.Behavior
	if !initial {
		return
	}
	if b.AutoOpen {
		r.sess.SetOpen(true)
		return
	}
	if b.AutoOpenDelay > 0 {
		delay := time.Duration(b.AutoOpenDelay) * r.delayUnit
		r.autoOpen = time.AfterFunc(delay, func() {
			r.postGen(gen, func() {
				if r.sess.Open || r.sess.Interacted() {
					return
				}
				r.logger.Debug("auto-opening after delay", "delay", delay)
				r.sess.SetOpen(true)
				r.apply()
			})
		})
	}
}

// apply pushes session state to the tree and the host. Runs on the loop.
func (r *Runtime) apply() {
	if !r.mounted {
		return
	}
	r.view.ApplyState(r.sess, r.chatEnabled)
	r.refresh()
}

func (r *Runtime) refresh() {
	if r.mounted {
		r.host.Refresh(r.tree)
	}
}

// bind subscribes to host events once per runtime.
func (r *Runtime) bind() {
	r.bindOnce.Do(func() {
		updates, _ := r.bus.Subscribe(r.ctx, eventbus.ConfigUpdated)
		visibility, _ := r.bus.Subscribe(r.ctx, eventbus.VisibilityChange)
		exits, _ := r.bus.Subscribe(r.ctx, eventbus.ExitIntent)

		go func() {
			for updates != nil || visibility != nil || exits != nil {
				select {
				case _, ok := <-updates:
					if !ok {
						updates = nil
						continue
					}
					r.post(r.onConfigUpdated)
				case ev, ok := <-visibility:
					if !ok {
						visibility = nil
						continue
					}
					r.post(func() { r.onVisibility(ev.Visible) })
				case _, ok := <-exits:
					if !ok {
						exits = nil
						continue
					}
					r.post(r.onExitIntent)
				case <-r.ctx.Done():
					return
				}
			}
		}()
	})
}

// onConfigUpdated re-resolves and remounts. Only the latest request applies.
func (r *Runtime) onConfigUpdated() {
	r.reconfigSeq++
	seq := r.reconfigSeq
	r.logger.Info("reconfiguration requested", "seq", seq)

	go func() {
		cfg := r.resolver.Resolve(r.ctx, r.tenantKey, true)
		r.post(func() {
			if seq != r.reconfigSeq {
				r.logger.Debug("superseded reconfiguration", "seq", seq, "latest", r.reconfigSeq)
				return
			}
			r.remount(cfg)
		})
	}()
}

// remount replaces the tree and session, keeping only the open flag.
func (r *Runtime) remount(cfg tenant.Config) {
	wasOpen := r.mounted && r.sess.Open
	r.teardown()
	if err := r.mount(cfg, false); err != nil {
		return
	}
	if wasOpen {
		r.sess.SetOpen(true)
		r.apply()
	}
}

// onVisibility refreshes config when the page becomes visible again. The
// mounted tree is left alone.
func (r *Runtime) onVisibility(visible bool) {
	if !visible {
		r.hidden = true
		return
	}
	if !r.hidden || !r.mounted {
		return
	}
	r.hidden = false

	gen := r.gen
	go func() {
		cfg := r.resolver.Resolve(r.ctx, r.tenantKey, true)
		r.postGen(gen, func() {
			r.cfg = cfg
			r.endpoint = messaging.Endpoint{URL: r.apiBase + "/gemini-chat", TenantKey: r.tenantKey}
			r.pipeline.SetEndpoint(r.endpoint, cfg)
			r.logger.Debug("config refreshed on visibility")
		})
	}()
}

// onExitIntent opens a closed widget once per mount when enabled.
func (r *Runtime) onExitIntent() {
	if !r.mounted || !r.cfg.Behavior.ExitIntent || r.exitFired {
		return
	}
	r.exitFired = true
	if !r.sess.Open {
		r.sess.SetOpen(true)
		r.apply()
	}
}
