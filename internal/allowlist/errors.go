package allowlist

import "errors"

// Domain errors for the allowlist package.
var (
	// ErrStatus is returned for a non-2xx response.
	ErrStatus = errors.New("allowlist: unexpected status")

	// ErrDecode is returned when the response body is not a device list.
	ErrDecode = errors.New("allowlist: undecodable body")
)
