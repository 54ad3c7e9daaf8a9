package hoststats

import "errors"

// Domain errors for the hoststats package.
var (
	// ErrNoSensor is returned when no temperature sensor matches.
	ErrNoSensor = errors.New("hoststats: no temperature sensor")
)
