package panel

import "errors"

// Domain errors for the panel package.
var (
	// ErrInvalidSize is returned for a non-positive width or height.
	ErrInvalidSize = errors.New("panel: invalid size")

	// ErrSnapshot is returned when the PNG snapshot cannot be written.
	ErrSnapshot = errors.New("panel: snapshot failed")
)
