// Package credentials persists the single bearer credential that lets the
// client resume a session across process restarts.
//
// The package knows nothing about sessions: it stores one opaque value,
// reports a missing or unreadable value as absent, and clears it on request.
// FileStore keeps the value in a 0600 JSON document written atomically under
// an advisory file lock; MemoryStore serves tests and ephemeral runs.
package credentials
