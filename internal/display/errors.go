package display

import "errors"

// Domain errors for the display package.
var (
	// ErrNotAdmitted is returned when telemetry comes from a device outside
	// the allow-list.
	ErrNotAdmitted = errors.New("display: device not admitted")

	// ErrUnknownButton is returned when a button name cannot be parsed.
	ErrUnknownButton = errors.New("display: unknown button")
)
