// Package session owns the client's authentication state.
//
// A Manager moves between three phases: Anonymous, CredentialPending (a
// credential has been obtained or restored but the owning user has not yet
// been confirmed), and Authenticated. Only Authenticated counts as logged in.
// Every outbound request to the conversion service goes through Manager.Do,
// which attaches the current bearer credential and forces a logout when the
// service answers 401.
//
// Construct one Manager per process and hand it to every consumer; all state
// changes go through its methods.
package session
