// Package store holds the client-side state shared by the chat transport
// and the presentation layer: chat messages, workspace file contents and
// UI preferences.
//
// Each store has a single mutation entry point (Update) guarded by a lock.
// In practice one goroutine writes (the chat session event loop, or the
// CLI command that owns the store) and any number of readers take
// snapshots. Snapshots are deep copies and safe to keep.
//
// Subscribers registered with Subscribe are called after every update with
// the new snapshot, outside the lock.
package store
