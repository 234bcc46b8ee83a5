// ABOUTME: Resolves tenant configuration from the remote config endpoint
// ABOUTME: Falls back to the persisted copy, then to compiled-in defaults

package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/2389/coven-widget/internal/kvstore"
	"github.com/2389/coven-widget/internal/tenant"
)

// CacheKey is the store key holding the last successfully merged document.
const CacheKey = "widget_settings_cache"

// API bases chosen from the embedding origin when no override is given.
const (
	LocalAPIBase      = "http://localhost:8000/api"
	ProductionAPIBase = "https://api.covenwidget.com/api"
)

const maxDocumentBytes = 1 << 20

var errStatus = errors.New("unexpected status")

// Options configures a Resolver.
type Options struct {
	APIBase    string
	HTTPClient *http.Client
	Store      kvstore.Store
	Logger     *slog.Logger

	// Now is used for cache-busting values. Defaults to time.Now.
	Now func() time.Time
}

// Resolver fetches and merges tenant configuration.
type Resolver struct {
	apiBase string
	client  *http.Client
	store   kvstore.Store
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	lastBust int64
}

// New creates a Resolver. A nil Store falls back to an in-memory store.
func New(opts Options) *Resolver {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Store == nil {
		opts.Store = kvstore.NewMemoryStore()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Resolver{
		apiBase: strings.TrimRight(opts.APIBase, "/"),
		client:  opts.HTTPClient,
		store:   opts.Store,
		logger:  opts.Logger.With("component", "resolver"),
		now:     opts.Now,
	}
}

// APIBase returns the base URL requests are made against.
func (r *Resolver) APIBase() string {
	return r.apiBase
}

// Resolve returns the configuration for key. It never fails: when the remote
// fetch fails the persisted copy is returned, and without one the defaults.
func (r *Resolver) Resolve(ctx context.Context, key string, forceFresh bool) tenant.Config {
	key = tenant.NormalizeKey(key)

	cfg, raw, err := r.fetch(ctx, key, forceFresh)
	if err == nil {
		if err := r.store.Set(ctx, CacheKey, raw); err != nil {
			r.logger.Warn("failed to persist tenant config", "error", err)
		}
		return cfg
	}

	r.logger.Warn("config fetch failed, using fallback",
		"tenant_key", key,
		"force_fresh", forceFresh,
		"error", err)
	return r.fallback(ctx)
}

// fetch performs one request and returns the merged config and its encoding.
func (r *Resolver) fetch(ctx context.Context, key string, forceFresh bool) (tenant.Config, []byte, error) {
	q := url.Values{}
	q.Set("key", key)
	if forceFresh {
		q.Set("_t", strconv.FormatInt(r.nextBust(), 10))
	}
	endpoint := r.apiBase + "/widget/config?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return tenant.Config{}, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if forceFresh {
		req.Header.Set("Cache-Control", "no-cache, no-store")
		req.Header.Set("Pragma", "no-cache")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return tenant.Config{}, nil, fmt.Errorf("requesting config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return tenant.Config{}, nil, fmt.Errorf("%w: %d", errStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return tenant.Config{}, nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := tenant.Merge(body)
	if err != nil {
		return tenant.Config{}, nil, err
	}
	raw, err := cfg.JSON()
	if err != nil {
		return tenant.Config{}, nil, fmt.Errorf("encoding config: %w", err)
	}

	r.logger.Debug("config resolved", "tenant_key", key, "force_fresh", forceFresh)
	return cfg, raw, nil
}

// fallback returns the persisted document, or the defaults.
func (r *Resolver) fallback(ctx context.Context) tenant.Config {
	raw, err := r.store.Get(ctx, CacheKey)
	if err != nil {
		r.logger.Warn("failed to read persisted config", "error", err)
		return tenant.Defaults()
	}
	if raw == nil {
		return tenant.Defaults()
	}

	cfg, err := tenant.Merge(raw)
	if err != nil {
		r.logger.Warn("persisted config is unreadable", "error", err)
		return tenant.Defaults()
	}
	return cfg
}

// nextBust returns a strictly increasing cache-busting value based on the clock.
func (r *Resolver) nextBust() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	v := r.now().UnixMilli()
	if v <= r.lastBust {
		v = r.lastBust + 1
	}
	r.lastBust = v
	return v
}

// APIBaseForOrigin picks the API base for the embedding origin. Loopback
// origins talk to a local backend.
func APIBaseForOrigin(origin string) string {
	if isLoopback(origin) {
		return LocalAPIBase
	}
	return ProductionAPIBase
}

func isLoopback(origin string) bool {
	host := origin
	if u, err := url.Parse(origin); err == nil && u.Host != "" {
		host = u.Hostname()
	} else if h, _, err := net.SplitHostPort(origin); err == nil {
		host = h
	}
	host = strings.Trim(strings.ToLower(host), "[]")

	switch {
	case host == "localhost", host == "127.0.0.1", host == "::1":
		return true
	case strings.HasSuffix(host, ".localhost"):
		return true
	}
	return false
}
