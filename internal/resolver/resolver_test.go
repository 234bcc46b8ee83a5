// ABOUTME: Tests for tenant configuration resolution and fallback
// ABOUTME: Uses httptest servers for the config endpoint and a memory store

package resolver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-widget/internal/kvstore"
	"github.com/2389/coven-widget/internal/tenant"
)

type recordedRequest struct {
	key          string
	bust         string
	cacheControl string
	pragma       string
}

type configServer struct {
	mu       sync.Mutex
	status   int
	body     string
	requests []recordedRequest
}

func (s *configServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, recordedRequest{
		key:          r.URL.Query().Get("key"),
		bust:         r.URL.Query().Get("_t"),
		cacheControl: r.Header.Get("Cache-Control"),
		pragma:       r.Header.Get("Pragma"),
	})
	if r.URL.Path != "/api/widget/config" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(s.status)
	_, _ = w.Write([]byte(s.body))
}

func (s *configServer) set(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.body = body
}

func (s *configServer) last() recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[len(s.requests)-1]
}

func newTestResolver(t *testing.T, status int, body string) (*Resolver, *configServer, kvstore.Store) {
	t.Helper()
	cs := &configServer{status: status, body: body}
	srv := httptest.NewServer(cs)
	t.Cleanup(srv.Close)

	store := kvstore.NewMemoryStore()
	r := New(Options{
		APIBase:    srv.URL + "/api/",
		HTTPClient: srv.Client(),
		Store:      store,
	})
	return r, cs, store
}

func TestResolve_SuccessMergesAndPersists(t *testing.T) {
	r, cs, store := newTestResolver(t, http.StatusOK, `{"theme":{"primary_color":"#00ff00"}}`)
	ctx := context.Background()

	cfg := r.Resolve(ctx, "pk_test", false)
	assert.Equal(t, "#00ff00", cfg.Theme.PrimaryColor)
	assert.Equal(t, tenant.Defaults().Theme.Radius, cfg.Theme.Radius)

	req := cs.last()
	assert.Equal(t, "pk_test", req.key)
	assert.Empty(t, req.bust)
	assert.Empty(t, req.cacheControl)

	raw, err := store.Get(ctx, CacheKey)
	require.NoError(t, err)
	require.NotNil(t, raw)
	persisted, err := tenant.Merge(raw)
	require.NoError(t, err)
	assert.Equal(t, cfg, persisted)
}

func TestResolve_ForceFreshBustsCaches(t *testing.T) {
	r, cs, _ := newTestResolver(t, http.StatusOK, `{}`)
	fixed := time.UnixMilli(1_700_000_000_000)
	r.now = func() time.Time { return fixed }

	r.Resolve(context.Background(), "pk_test", true)
	first := cs.last()
	assert.Equal(t, "no-cache, no-store", first.cacheControl)
	assert.Equal(t, "no-cache", first.pragma)

	r.Resolve(context.Background(), "pk_test", true)
	second := cs.last()

	a, err := strconv.ParseInt(first.bust, 10, 64)
	require.NoError(t, err)
	b, err := strconv.ParseInt(second.bust, 10, 64)
	require.NoError(t, err)
	assert.Greater(t, b, a, "cache-bust value must increase even with a frozen clock")
}

func TestResolve_PlaceholderKeyUsesDemoKey(t *testing.T) {
	r, cs, _ := newTestResolver(t, http.StatusOK, `{}`)

	r.Resolve(context.Background(), "YOUR_PUBLIC_KEY", false)
	assert.Equal(t, tenant.DemoKey, cs.last().key)
}

func TestResolve_FailureFallsBackToPersisted(t *testing.T) {
	r, cs, _ := newTestResolver(t, http.StatusOK, `{"i18n":{"strings":{"welcome":"Cached hello"}}}`)
	ctx := context.Background()

	good := r.Resolve(ctx, "pk_test", false)
	require.Equal(t, "Cached hello", good.I18n.Strings[tenant.StringWelcome])

	failures := map[string]struct {
		status int
		body   string
	}{
		"server error": {http.StatusInternalServerError, `{"error":"boom"}`},
		"not found":    {http.StatusNotFound, `{}`},
		"malformed":    {http.StatusOK, `{"theme":`},
		"not object":   {http.StatusOK, `[]`},
	}

	for name, f := range failures {
		t.Run(name, func(t *testing.T) {
			cs.set(f.status, f.body)
			cfg := r.Resolve(ctx, "pk_test", true)
			assert.Equal(t, good, cfg)
		})
	}
}

func TestResolve_NetworkFailureWithoutCacheReturnsDefaults(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	r := New(Options{APIBase: base, Store: kvstore.NewMemoryStore()})
	cfg := r.Resolve(context.Background(), "pk_test", false)
	assert.Equal(t, tenant.Defaults(), cfg)
}

func TestResolve_UnreadableCacheReturnsDefaults(t *testing.T) {
	r, _, store := newTestResolver(t, http.StatusBadGateway, ``)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, CacheKey, []byte("not json")))

	assert.Equal(t, tenant.Defaults(), r.Resolve(ctx, "pk_test", false))
}

func TestAPIBaseForOrigin(t *testing.T) {
	cases := map[string]string{
		"http://localhost:3000":      LocalAPIBase,
		"localhost":                  LocalAPIBase,
		"http://127.0.0.1":           LocalAPIBase,
		"http://[::1]:8080":          LocalAPIBase,
		"::1":                        LocalAPIBase,
		"https://shop.localhost":     LocalAPIBase,
		"https://www.example.com":    ProductionAPIBase,
		"https://localhost.evil.com": ProductionAPIBase,
		"":                           ProductionAPIBase,
	}
	for origin, want := range cases {
		assert.Equal(t, want, APIBaseForOrigin(origin), origin)
	}
}
