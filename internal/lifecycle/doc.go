// Package lifecycle runs a mounted widget.
//
// # Overview
//
// A Runtime owns one host, one tenant key and a single event-loop goroutine.
// Everything that touches the session or the mounted tree runs on that
// loop: public API calls are marshalled onto it and wait for completion,
// while network and speech work runs on separate goroutines and posts its
// result back.
//
// Every mount gets a new generation number. Completions carry the
// generation they were started under and are dropped if the widget has been
// remounted since, so a reply to a turn from a discarded session never
// lands in the new one.
//
// # Host events
//
// Start subscribes to three bus events, once per Runtime:
//
//   - widget:config-updated re-resolves with a forced fetch and remounts,
//     carrying over only whether the panel was open. When several arrive
//     close together the last one wins.
//   - visibilitychange with Visible after a hidden period re-resolves and
//     updates the configuration and chat endpoint without touching the tree.
//   - widget:exit-intent opens the panel once per mount when the tenant
//     enables behavior.exit_intent.
package lifecycle
