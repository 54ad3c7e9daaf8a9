package device

import (
	"time"
)

// Registry defaults.
const (
	// DefaultTTL is how long a device survives without a message.
	DefaultTTL = 300 * time.Second

	// DefaultHistoryLimit bounds State.History.
	DefaultHistoryLimit = 30

	// DefaultSequenceWrap is where State.Sequence rolls back to zero.
	DefaultSequenceWrap = 100000
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
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

// Option configures a Registry.
type Option func(*Registry)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithHistoryLimit overrides DefaultHistoryLimit.
func WithHistoryLimit(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.historyLimit = n
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Registry holds the live state of every device heard from recently.
//
// Expiry is opportunistic: every scan (FindOrEvict, Upsert, Len, Snapshot)
// removes entries whose LastSeen is TTL or more in the past. There is no
// background timer.
//
// Thread Safety:
//   - Registry is NOT safe for concurrent use. Callers serialise access,
//     normally by holding the display arbiter's gate.
type Registry struct {
	entries      []*State
	ttl          time.Duration
	historyLimit int
	sequenceWrap int
	now          func() time.Time
	logger       Logger

	upserts   uint64
	evictions uint64
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		ttl:          DefaultTTL,
		historyLimit: DefaultHistoryLimit,
		sequenceWrap: DefaultSequenceWrap,
		now:          time.Now,
		logger:       noopLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// FindOrEvict scans every entry once, evicting stale ones, and looks up id.
//
// A stale entry is evicted even when it matches id, so a device that has
// been silent for the TTL is reported as not found.
//
// Parameters:
//   - id: Device to look up
//
// Returns:
//   - int: Position of the match at scan time, -1 if not found. Positions
//     are not stable across later mutations.
//   - *State: The live entry (owned by the registry; do not retain)
//   - bool: Whether id was found
func (r *Registry) FindOrEvict(id ID) (int, *State, bool) {
	now := r.now()
	index := -1
	var match *State

	kept := r.entries[:0]
	for _, st := range r.entries {
		if now.Sub(st.LastSeen) >= r.ttl {
			r.evictions++
			r.logger.Debug("device evicted",
				"device_id", st.ID,
				"last_seen", st.LastSeen,
				"silent_for", now.Sub(st.LastSeen),
			)
			continue
		}
		if st.ID == id {
			index = len(kept)
			match = st
		}
		kept = append(kept, st)
	}

	// Drop references held by the tail so evicted states can be collected
	for i := len(kept); i < len(r.entries); i++ {
		r.entries[i] = nil
	}
	r.entries = kept

	return index, match, match != nil
}

// Upsert records one accepted message.
//
// An unknown device is created from the payload. A known device has only
// the fields present in the payload merged in. In both cases LastSeen is
// refreshed, Sequence advances, and a streak average (when present) is
// appended to History.
//
// Returns:
//   - State: Copy of the device state after the update
//   - error: ErrMissingDeviceID if the payload names no device
func (r *Registry) Upsert(p Payload) (State, error) {
	if err := p.Validate(); err != nil {
		return State{}, err
	}
	id := *p.DeviceID

	_, st, found := r.FindOrEvict(id)
	if !found {
		st = &State{ID: id}
		r.entries = append(r.entries, st)
		r.logger.Info("device registered", "device_id", id, "devices", len(r.entries))
	}

	st.merge(p)
	st.LastSeen = r.now()
	st.Sequence++
	if st.Sequence >= r.sequenceWrap {
		st.Sequence = 0
	}
	if p.Streak != nil && p.Streak.PulsationAverage != nil {
		st.recordAverage(*p.Streak.PulsationAverage, r.historyLimit)
	}
	r.upserts++

	return *st.DeepCopy(), nil
}

// Get returns a copy of the state for id.
func (r *Registry) Get(id ID) (State, bool) {
	_, st, found := r.FindOrEvict(id)
	if !found {
		return State{}, false
	}
	return *st.DeepCopy(), true
}

// Len returns the number of live devices after evicting stale ones.
func (r *Registry) Len() int {
	r.Sweep()
	return len(r.entries)
}

// Sweep evicts stale entries and returns how many were removed.
func (r *Registry) Sweep() int {
	before := len(r.entries)
	r.FindOrEvict("")
	return before - len(r.entries)
}

// Snapshot returns copies of every live device in registry order.
func (r *Registry) Snapshot() []State {
	r.Sweep()
	out := make([]State, 0, len(r.entries))
	for _, st := range r.entries {
		out = append(out, *st.DeepCopy())
	}
	return out
}

// IDs returns the identifiers of every live device in registry order.
func (r *Registry) IDs() []ID {
	r.Sweep()
	ids := make([]ID, 0, len(r.entries))
	for _, st := range r.entries {
		ids = append(ids, st.ID)
	}
	return ids
}

// RegistryStats contains registry counters.
type RegistryStats struct {
	Devices   int    `json:"devices"`
	Upserts   uint64 `json:"upserts"`
	Evictions uint64 `json:"evictions"`
}

// Stats returns registry counters without scanning.
func (r *Registry) Stats() RegistryStats {
	return RegistryStats{
		Devices:   len(r.entries),
		Upserts:   r.upserts,
		Evictions: r.evictions,
	}
}
