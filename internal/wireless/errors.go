package wireless

import "errors"

// Domain errors for the wireless package.
var (
	// ErrNoAccessPoint is returned when no configured network is visible.
	ErrNoAccessPoint = errors.New("wireless: no known access point visible")

	// ErrNotConnected is returned when Connect gives up.
	ErrNotConnected = errors.New("wireless: not connected")

	// ErrInterfaceDown is returned when the host interface is missing or down.
	ErrInterfaceDown = errors.New("wireless: interface down")

	// ErrNoAddress is returned when the interface has no IPv4 address.
	ErrNoAddress = errors.New("wireless: no address")
)
