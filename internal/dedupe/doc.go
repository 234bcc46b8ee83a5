// Package dedupe tracks chat turns by idempotency key so a retried turn gets
// the reply that was already produced instead of a second model call.
//
// A handler claims a key with Claim, then either stores the reply with
// Complete or gives the key back with Release when the turn fails.
package dedupe
