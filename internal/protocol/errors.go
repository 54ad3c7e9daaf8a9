package protocol

import "errors"

// Domain-specific errors for the telemetry protocol.
var (
	// ErrAccept is returned by Serve when the listener stops accepting.
	ErrAccept = errors.New("protocol: accept failed")

	// ErrMessageTooLarge is returned by Framer.Feed when one message exceeds
	// the configured size limit.
	ErrMessageTooLarge = errors.New("protocol: message exceeds size limit")

	// ErrTruncated is returned by Framer.Feed when an unfinished message was
	// abandoned because a new one started.
	ErrTruncated = errors.New("protocol: truncated message discarded")
)
