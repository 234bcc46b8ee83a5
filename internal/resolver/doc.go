// Package resolver turns a tenant public key into a fully populated
// tenant.Config.
//
// # Overview
//
// Resolve fetches the tenant document from the config endpoint, merges it
// over the compiled-in defaults and persists the merged result under
// CacheKey. Any failure along the way (transport, non-2xx status, malformed
// body) is logged and answered from the persisted copy, or from the
// defaults when nothing was ever persisted. Callers never see an error.
//
// Forced refreshes add a strictly increasing _t query parameter and
// no-cache headers so intermediaries cannot serve a stale document.
package resolver
