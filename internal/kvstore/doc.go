// Package kvstore provides the small durable key-value store the widget uses
// to remember the last good tenant configuration between runs.
//
// Three drivers are available through NewStore: an in-memory map for tests
// and throwaway sessions, a sqlite file (the default for the terminal and
// preview hosts), and redis for hosts that share a cache across processes.
// Get reports a missing key as (nil, nil) rather than an error.
package kvstore
