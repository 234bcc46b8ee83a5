// Package preview mounts the widget into a browser page for local work.
//
// Host implements render.Host by rendering each attached or refreshed tree to
// HTML. The markup is pushed to every page connected on /ws through a Hub.
// Clicks in the page are posted back to /api/* and forwarded to a Controller,
// which lifecycle.Runtime satisfies. Page-level signals (configuration
// reload, visibility, exit intent) are published on the event bus the
// runtime listens to, exactly as an embedding page would.
package preview
