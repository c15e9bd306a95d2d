// Package lookup holds the error classification shared by the external
// reference-service clients.
package lookup

import "github.com/rotisserie/eris"

// ErrMalformedResponse marks a per-item lookup failure: the service
// answered, but not with a usable document (non-2xx status or a body that
// doesn't decode). The pipeline skips these items; anything else — DNS,
// connection, timeout — is a transport failure and aborts the run.
var ErrMalformedResponse = eris.New("lookup: malformed response")

// IsMalformed reports whether err is a malformed-response failure.
func IsMalformed(err error) bool {
	return eris.Is(err, ErrMalformedResponse)
}
