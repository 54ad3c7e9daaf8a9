package arbiter

import "errors"

// ErrPanic is returned when a critical section panicked.
// The panic value is included in the wrapped message.
var ErrPanic = errors.New("arbiter: critical section panicked")
