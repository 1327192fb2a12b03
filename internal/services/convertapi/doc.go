// Package convertapi binds the conversion service's HTTP contract: endpoint
// resolution, request construction, response decoding, and normalization of
// the service's "detail" error payloads.
//
// The package never holds or attaches credentials. Callers send the requests
// it builds through the session manager, which owns authorization.
package convertapi
