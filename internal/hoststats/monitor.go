package hoststats

import (
	"context"
	"time"
)

// DefaultInterval is the sampling period.
const DefaultInterval = 30 * time.Second

// Snapshot is one sampling round.
type Snapshot struct {
	At          time.Time
	Temperature Reading
	Process     ProcessStats
	HasProcess  bool
}

// Logger defines the logging interface for the monitor.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Monitor samples the sensor and process on an interval.
type Monitor struct {
	sensor   Sensor
	proc     ProcessSource
	tracker  *Tracker
	interval time.Duration
	onSample func(Snapshot)
	logger   Logger
}

// NewMonitor creates a monitor. proc may be nil; onSample may be nil.
func NewMonitor(sensor Sensor, proc ProcessSource, tracker *Tracker, interval time.Duration, onSample func(Snapshot)) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if tracker == nil {
		tracker = NewTracker()
	}
	return &Monitor{
		sensor:   sensor,
		proc:     proc,
		tracker:  tracker,
		interval: interval,
		onSample: onSample,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the monitor.
func (m *Monitor) SetLogger(logger Logger) {
	m.logger = logger
}

// Tracker returns the temperature tracker.
func (m *Monitor) Tracker() *Tracker {
	return m.tracker
}

// Sample takes one reading. Sensor failures leave the tracker unchanged.
func (m *Monitor) Sample(ctx context.Context) Snapshot {
	snap := Snapshot{At: time.Now()}

	if m.sensor != nil {
		temp, err := m.sensor.Temperature(ctx)
		if err != nil {
			m.logger.Debug("temperature read failed", "error", err)
			snap.Temperature = m.tracker.Reading()
		} else {
			snap.Temperature = m.tracker.Record(temp)
		}
	}

	if m.proc != nil {
		ps, err := m.proc.Sample()
		if err != nil {
			m.logger.Debug("process sample failed", "error", err)
		} else {
			snap.Process = ps
			snap.HasProcess = true
		}
	}

	if m.onSample != nil {
		m.onSample(snap)
	}
	return snap
}

// Run samples immediately, then every interval until ctx is cancelled.
//
// Returns:
//   - error: always ctx.Err()
func (m *Monitor) Run(ctx context.Context) error {
	m.Sample(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Sample(ctx)
		}
	}
}
