// Package services defines shared utilities consumed by the session manager,
// the job client, and the conversion API bindings.
//
// Key responsibilities:
//   - Structured error markers plus the Wrap helpers that classify failures
//     (authentication, authorization, validation, transient) and carry the
//     normalized message shown to users.
//   - Context helpers that stamp request correlation identifiers for logging.
//
// Use these helpers when wiring new client logic so error handling and
// retry decisions stay uniform across commands.
package services
