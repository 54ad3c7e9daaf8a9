package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrMissingDeviceID) {
//	    // drop the message
//	}
var (
	// ErrMissingDeviceID is returned when a payload has no usable device_id.
	ErrMissingDeviceID = errors.New("device: missing device_id")

	// ErrInvalidID is returned when device_id is not a string or number.
	ErrInvalidID = errors.New("device: invalid device_id")

	// ErrMalformedPayload is returned when a message is not a valid JSON object.
	ErrMalformedPayload = errors.New("device: malformed payload")
)
