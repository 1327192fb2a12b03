// Package history keeps a SQLite ledger of conversion jobs submitted from
// this machine so they can be listed and re-polled across runs.
//
// The ledger stores job records only. Credentials and profile data never
// reach it; the credential file remains the only persisted session value.
//
// Schema changes bump schemaVersion in schema.go; users clear the ledger to
// adopt a new schema.
package history
