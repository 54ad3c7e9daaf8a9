package arbiter

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Logger defines the logging interface used by the Gate.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Gate serialises every operation that touches display-affecting state.
//
// Exactly one critical section runs at a time. The gate is released on
// every path out of a critical section, including panics, because a held
// gate would block every later telemetry update, button press and idle
// shutdown.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Gate struct {
	mu     sync.Mutex
	busy   atomic.Bool
	logger Logger

	runs      atomic.Uint64
	failures  atomic.Uint64
	panics    atomic.Uint64
	contended atomic.Uint64
}

// New creates an open gate.
func New() *Gate {
	return &Gate{logger: noopLogger{}}
}

// SetLogger sets the logger for the gate.
func (g *Gate) SetLogger(logger Logger) {
	g.logger = logger
}

// Do blocks until the gate is free, then runs fn as a critical section.
//
// Parameters:
//   - op: Short operation name for logs and errors (e.g. "render")
//   - fn: The state transition to perform
//
// Returns:
//   - error: fn's error wrapped with op, or ErrPanic if fn panicked.
//     The operation is abandoned either way; the gate is free again.
func (g *Gate) Do(op string, fn func() error) error {
	g.mu.Lock()
	return g.run(op, fn)
}

// TryDo runs fn only if the gate is free right now.
//
// Returns:
//   - bool: false if the gate was held and fn did not run
//   - error: as for Do
func (g *Gate) TryDo(op string, fn func() error) (bool, error) {
	if !g.mu.TryLock() {
		g.contended.Add(1)
		return false, nil
	}
	return true, g.run(op, fn)
}

// Busy reports whether a critical section is executing.
// It never blocks and is advisory: the answer may be stale by the time the
// caller acts on it, so callers still go through TryDo.
func (g *Gate) Busy() bool {
	return g.busy.Load()
}

// run executes fn with g.mu already held and always releases it.
func (g *Gate) run(op string, fn func() error) (err error) {
	g.busy.Store(true)
	g.runs.Add(1)

	defer func() {
		if r := recover(); r != nil {
			g.panics.Add(1)
			g.logger.Error("critical section panic recovered",
				"op", op,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%w: %s: %v", ErrPanic, op, r)
		}
		g.busy.Store(false)
		g.mu.Unlock()
	}()

	if fnErr := fn(); fnErr != nil {
		g.failures.Add(1)
		g.logger.Warn("critical section failed", "op", op, "error", fnErr)
		return fmt.Errorf("%s: %w", op, fnErr)
	}

	return nil
}

// Stats contains gate counters.
type Stats struct {
	Runs      uint64 `json:"runs"`
	Failures  uint64 `json:"failures"`
	Panics    uint64 `json:"panics"`
	Contended uint64 `json:"contended"`
	Busy      bool   `json:"busy"`
}

// Stats returns current counters.
func (g *Gate) Stats() Stats {
	return Stats{
		Runs:      g.runs.Load(),
		Failures:  g.failures.Load(),
		Panics:    g.panics.Load(),
		Contended: g.contended.Load(),
		Busy:      g.busy.Load(),
	}
}
