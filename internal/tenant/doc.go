// Package tenant defines the tenant configuration document that customizes a
// mounted widget, together with its compiled-in defaults.
//
// # Overview
//
// A tenant is identified by an opaque public key. The configuration service
// returns a JSON document with these sections:
//
//   - theme: colors, corner radius and font family
//   - behavior: docking side, auto-open flags, inactivity delay, z-index
//   - features: capability flags (only chat is exercised)
//   - i18n: default locale and a string table keyed by string id
//   - menu: the options offered on the menu screen
//   - integrations, visibility_rules, cdn: opaque pass-through maps
//
// # Merging
//
// Merge overlays a fetched document on Defaults using koanf. Maps merge key by
// key, so a document that only sets theme.primary_color keeps every other
// default. Explicit nulls are treated as absent. The result is always fully
// populated, and merging a complete document with itself is a no-op.
//
//	cfg, err := tenant.Merge(body)
//	if err != nil {
//	    // malformed document, caller falls back
//	}
//
// String ids in the i18n table must not contain dots; koanf uses "." as its
// key path delimiter.
package tenant
