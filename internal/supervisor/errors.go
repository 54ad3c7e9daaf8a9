package supervisor

import "errors"

// Domain errors for the supervisor package.
var (
	// ErrLinkDown is returned when the network link could not be brought up.
	ErrLinkDown = errors.New("supervisor: link down")

	// ErrLinkLost is recorded when the watchdog sees the link drop mid-run.
	ErrLinkLost = errors.New("supervisor: link lost")

	// ErrListen is returned when the listener could not be opened.
	ErrListen = errors.New("supervisor: listen failed")

	// ErrServe wraps an error returned by the server.
	ErrServe = errors.New("supervisor: serve failed")

	// ErrServerStopped is recorded when the server returns without an error
	// while the supervisor is still running.
	ErrServerStopped = errors.New("supervisor: server stopped unexpectedly")

	// ErrPanic wraps a panic recovered from one run.
	ErrPanic = errors.New("supervisor: panic recovered")
)
