package influxdb

import "errors"

// Sentinel errors for the telemetry history store.
//
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without history
//	}
var (
	// ErrNotConnected is returned after Close.
	ErrNotConnected = errors.New("influxdb: telemetry history closed")

	// ErrConnectionFailed is returned when the server cannot be reached at
	// startup.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrUnhealthy is returned when the server answers but reports itself
	// unhealthy, or a health check ping fails.
	ErrUnhealthy = errors.New("influxdb: server not healthy")

	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: telemetry history disabled in configuration")
)
