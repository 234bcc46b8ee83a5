// Package eventbus carries host page events to the widget runtime.
//
// A browser would deliver these as DOM events; here hosts publish them on a
// Bus and the runtime subscribes once. Delivery is best effort: Publish never
// blocks, and a subscriber that falls more than a buffer behind misses
// events.
package eventbus
