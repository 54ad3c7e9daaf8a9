package supervisor

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"
)

// Status represents the current state of the supervised listener.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusBackoff  Status = "backoff"
)

// Default timings applied to zero-valued Config fields.
const (
	DefaultRestartDelay      = 5 * time.Second
	DefaultMaxRestartDelay   = time.Minute
	DefaultStableThreshold   = 2 * time.Minute
	DefaultLinkCheckInterval = 5 * time.Second
)

// Config holds supervisor settings.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// RestartDelay is the first backoff delay after a failed run.
	RestartDelay time.Duration

	// MaxRestartDelay caps the exponential backoff.
	MaxRestartDelay time.Duration

	// StableThreshold is how long a run must last before the backoff
	// resets to RestartDelay.
	StableThreshold time.Duration

	// LinkCheckInterval is how often the watchdog polls the link.
	LinkCheckInterval time.Duration

	// OnRestart is called before each restart attempt.
	OnRestart func(attempt int, cause error)
}

// Link is the network link the listener depends on.
type Link interface {
	IsConnected() bool
	// Connect blocks until the link is up or ctx is done.
	Connect(ctx context.Context) error
}

// Server serves connections on a listener until ctx is cancelled or the
// listener fails.
type Server interface {
	Serve(ctx context.Context, ln net.Listener) error
}

// ListenFunc opens a fresh listener for one run.
type ListenFunc func(ctx context.Context) (net.Listener, error)

// TCPListen returns a ListenFunc that listens on addr.
func TCPListen(addr string) ListenFunc {
	return func(ctx context.Context) (net.Listener, error) {
		var lc net.ListenConfig
		return lc.Listen(ctx, "tcp", addr)
	}
}

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// alwaysUp is the Link used when none is supplied.
type alwaysUp struct{}

func (alwaysUp) IsConnected() bool             { return true }
func (alwaysUp) Connect(context.Context) error { return nil }

// Supervisor restarts the listener whenever a run fails.
//
// Thread Safety:
//   - Run must be called once.
//   - Status, RestartCount, Uptime, LastError and Stats are safe from any
//     goroutine.
type Supervisor struct {
	config Config
	link   Link
	listen ListenFunc
	server Server
	logger Logger

	mu           sync.RWMutex
	status       Status
	restartCount int
	lastError    error
	startTime    time.Time
	delay        time.Duration
}

// New creates a supervisor. A nil link is treated as always connected.
func New(cfg Config, link Link, listen ListenFunc, server Server) *Supervisor {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = DefaultRestartDelay
	}
	if cfg.MaxRestartDelay <= 0 {
		cfg.MaxRestartDelay = DefaultMaxRestartDelay
	}
	if cfg.MaxRestartDelay < cfg.RestartDelay {
		cfg.MaxRestartDelay = cfg.RestartDelay
	}
	if cfg.StableThreshold <= 0 {
		cfg.StableThreshold = DefaultStableThreshold
	}
	if cfg.LinkCheckInterval <= 0 {
		cfg.LinkCheckInterval = DefaultLinkCheckInterval
	}
	if link == nil {
		link = alwaysUp{}
	}

	return &Supervisor{
		config: cfg,
		link:   link,
		listen: listen,
		server: server,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// Run supervises the listener until ctx is cancelled.
//
// Returns:
//   - error: always ctx.Err()
func (s *Supervisor) Run(ctx context.Context) error {
	s.mu.Lock()
	s.delay = s.config.RestartDelay
	s.mu.Unlock()

	for {
		started := time.Now()
		err := s.runOnce(ctx)

		if ctx.Err() != nil {
			s.setStatus(StatusStopped)
			s.logger.Info("supervisor stopped", "name", s.config.Name)
			return ctx.Err()
		}

		s.mu.Lock()
		if time.Since(started) >= s.config.StableThreshold {
			s.delay = s.config.RestartDelay
		}
		s.restartCount++
		attempt := s.restartCount
		delay := s.delay
		s.delay = nextDelay(s.delay, s.config.MaxRestartDelay)
		s.lastError = err
		s.status = StatusBackoff
		s.mu.Unlock()

		s.logger.Warn("listener stopped unexpectedly",
			"name", s.config.Name,
			"error", err,
		)
		s.logger.Info("restarting listener",
			"name", s.config.Name,
			"attempt", attempt,
			"delay", delay,
		)

		if s.config.OnRestart != nil {
			s.config.OnRestart(attempt, err)
		}

		select {
		case <-ctx.Done():
			s.setStatus(StatusStopped)
			s.logger.Info("context cancelled, not restarting", "name", s.config.Name)
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// runOnce performs one connect, listen, serve cycle. It returns nil only
// when ctx was cancelled.
func (s *Supervisor) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in supervised run",
				"name", s.config.Name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	s.setStatus(StatusStarting)

	if !s.link.IsConnected() {
		s.logger.Info("bringing link up", "name", s.config.Name)
		if err := s.link.Connect(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrLinkDown, err)
		}
	}

	ln, err := s.listen(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrListen, err)
	}
	defer ln.Close()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.status = StatusRunning
	s.startTime = time.Now()
	s.mu.Unlock()

	s.logger.Info("listener running", "name", s.config.Name, "addr", ln.Addr().String())

	serveErr := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic in server",
					"name", s.config.Name,
					"panic", r,
					"stack", string(debug.Stack()),
				)
				serveErr <- fmt.Errorf("%w: %v", ErrPanic, r)
			}
		}()
		serveErr <- s.server.Serve(runCtx, ln)
	}()

	ticker := time.NewTicker(s.config.LinkCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case err := <-serveErr:
			if ctx.Err() != nil {
				return nil
			}
			if err == nil {
				return ErrServerStopped
			}
			return fmt.Errorf("%w: %w", ErrServe, err)

		case <-ticker.C:
			if !s.link.IsConnected() {
				s.logger.Warn("link lost, tearing down listener", "name", s.config.Name)
				cancel()
				<-serveErr
				return ErrLinkLost
			}

		case <-ctx.Done():
			<-serveErr
			return nil
		}
	}
}

// nextDelay doubles d up to max.
func nextDelay(d, max time.Duration) time.Duration {
	d *= 2
	if d > max {
		return max
	}
	return d
}

func (s *Supervisor) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// Status returns the current status of the listener.
func (s *Supervisor) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// RestartCount returns the number of restarts so far.
func (s *Supervisor) RestartCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restartCount
}

// LastError returns the error that ended the most recent failed run.
func (s *Supervisor) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// Uptime returns how long the current run has been serving.
// Returns 0 if the listener is not running.
func (s *Supervisor) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status != StatusRunning {
		return 0
	}
	return time.Since(s.startTime)
}

// Stats contains supervisor statistics.
type Stats struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	RestartCount int           `json:"restart_count"`
	NextDelay    time.Duration `json:"next_delay"`
	LastError    string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the supervisor.
func (s *Supervisor) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Name:         s.config.Name,
		Status:       s.status,
		RestartCount: s.restartCount,
		NextDelay:    s.delay,
	}
	if s.status == StatusRunning {
		stats.Uptime = time.Since(s.startTime)
	}
	if s.lastError != nil {
		stats.LastError = s.lastError.Error()
	}
	return stats
}
