package mqtt

import "errors"

// Domain-specific errors for MQTT operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNotConnected is returned while the broker connection is down.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed is returned when the initial connection attempt fails.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrUnhealthy is returned when the broker does not acknowledge the
	// status heartbeat.
	ErrUnhealthy = errors.New("mqtt: status heartbeat not acknowledged")

	// ErrPublishFailed is returned when a state or host sample could not be
	// published.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed is returned when the button topic cannot be
	// subscribed.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidQoS is returned when an invalid QoS level is specified.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic is returned when an empty topic is provided.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")

	// ErrInvalidButton is returned for a button message that names no
	// known button.
	ErrInvalidButton = errors.New("mqtt: invalid button message")

	// ErrButtonDropped is returned when a remote press could not be queued.
	ErrButtonDropped = errors.New("mqtt: button press dropped")
)
