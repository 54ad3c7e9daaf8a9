package display

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/keycounter-core/internal/arbiter"
	"github.com/nerrad567/keycounter-core/internal/device"
)

// Default timings applied to zero-valued Config fields.
const (
	DefaultPollInterval = 50 * time.Millisecond
	DefaultIdleTimeout  = 5 * time.Minute
)

// Config holds orchestrator settings.
type Config struct {
	// Title is drawn in the panel header.
	Title string

	// IdleTimeout powers the panel off after this long without activity in
	// Telemetry mode. Zero disables idle shutdown.
	IdleTimeout time.Duration

	// PollInterval is the button and idle check period.
	PollInterval time.Duration

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
}

// Observer receives a copy of every device state updated by telemetry.
// Observers run on the dispatching goroutine after the gate is released.
type Observer func(state device.State)

// Logger defines the logging interface used by the Orchestrator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Orchestrator owns the display state and the device registry.
//
// Thread Safety:
//   - HandleTelemetry, Refresh and Run may be called from different
//     goroutines; every mutation happens under the gate.
//   - Mode, Powered and Stats are safe from any goroutine.
//   - SetLogger, SetHostInfo and SetWirelessInfo must be called before Run
//     and before the first HandleTelemetry.
//   - SetAdmit must not run concurrently with HandleTelemetry. It may be
//     called again between listener runs, as the supervisor's link does on
//     every reconnect.
type Orchestrator struct {
	cfg      Config
	gate     *arbiter.Gate
	registry *device.Registry
	panel    Panel
	buttons  ButtonSource
	logger   Logger

	admit        func(device.ID) bool
	hostInfo     func() HostView
	wirelessInfo func() WirelessView

	observersMu sync.RWMutex
	observers   []Observer

	// Written only under the gate; atomics let Mode and Powered read
	// without it.
	mode         atomic.Value
	powered      atomic.Bool
	lastActivity time.Time

	telemetry  atomic.Uint64
	rejected   atomic.Uint64
	renders    atomic.Uint64
	buttonHits atomic.Uint64
	idleOffs   atomic.Uint64
	skipped    atomic.Uint64
}

// New creates an orchestrator. The panel starts powered, in Telemetry mode.
// A nil buttons source never yields a press.
func New(cfg Config, gate *arbiter.Gate, registry *device.Registry, panel Panel, buttons ButtonSource) *Orchestrator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.IdleTimeout < 0 {
		cfg.IdleTimeout = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if buttons == nil {
		buttons = NewButtonQueue(1)
	}

	o := &Orchestrator{
		cfg:          cfg,
		gate:         gate,
		registry:     registry,
		panel:        panel,
		buttons:      buttons,
		logger:       noopLogger{},
		admit:        func(device.ID) bool { return true },
		hostInfo:     func() HostView { return HostView{} },
		wirelessInfo: func() WirelessView { return WirelessView{} },
		lastActivity: cfg.Now(),
	}
	o.mode.Store(ModeTelemetry)
	o.powered.Store(true)
	return o
}

// SetLogger sets the logger for the orchestrator.
func (o *Orchestrator) SetLogger(logger Logger) {
	o.logger = logger
}

// SetAdmit installs the filter deciding which device IDs reach the
// registry. A nil filter admits everything.
//
// The telemetry server calls HandleTelemetry only from inside Serve, and
// the supervisor waits for Serve to return before it reconnects the link,
// so replacing the filter from the link's Connect does not race with a
// running listener.
func (o *Orchestrator) SetAdmit(admit func(device.ID) bool) {
	if admit == nil {
		admit = func(device.ID) bool { return true }
	}
	o.admit = admit
}

// SetHostInfo installs the Host screen data source.
func (o *Orchestrator) SetHostInfo(fn func() HostView) {
	if fn != nil {
		o.hostInfo = fn
	}
}

// SetWirelessInfo installs the Wireless screen data source.
func (o *Orchestrator) SetWirelessInfo(fn func() WirelessView) {
	if fn != nil {
		o.wirelessInfo = fn
	}
}

// AddObserver registers fn to receive updated device states.
func (o *Orchestrator) AddObserver(fn Observer) {
	o.observersMu.Lock()
	o.observers = append(o.observers, fn)
	o.observersMu.Unlock()
}

// HandleTelemetry applies one accepted message.
//
// Under the gate it upserts the device, switches to Telemetry mode, powers
// the panel on if needed and renders. The idle timer is reset only when the
// render succeeds. Observers are notified after the gate is released
// whenever the registry was updated, even if the render failed.
//
// Returns:
//   - error: ErrNotAdmitted for filtered devices, otherwise the gate error
func (o *Orchestrator) HandleTelemetry(p device.Payload) error {
	if p.DeviceID != nil && !o.admit(*p.DeviceID) {
		o.rejected.Add(1)
		o.logger.Debug("telemetry from unlisted device ignored", "device_id", *p.DeviceID)
		return fmt.Errorf("%w: %s", ErrNotAdmitted, *p.DeviceID)
	}

	var (
		updated  device.State
		upserted bool
	)
	err := o.gate.Do("telemetry", func() error {
		st, err := o.registry.Upsert(p)
		if err != nil {
			return err
		}
		updated, upserted = st, true

		o.mode.Store(ModeTelemetry)
		return o.show()
	})

	if upserted {
		o.telemetry.Add(1)
		o.notify(updated)
	}
	return err
}

// Refresh redraws the current screen if the panel is on, without touching
// the idle timer.
func (o *Orchestrator) Refresh() error {
	return o.gate.Do("refresh", func() error {
		if !o.powered.Load() {
			return nil
		}
		return o.render()
	})
}

// Run polls buttons and the idle timer until ctx is cancelled, then powers
// the panel off.
//
// Returns:
//   - error: always ctx.Err()
func (o *Orchestrator) Run(ctx context.Context) error {
	_ = o.gate.Do("boot", o.render)

	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = o.gate.Do("shutdown", func() error {
				o.powered.Store(false)
				return o.panel.Power(false)
			})
			o.logger.Info("display stopped")
			return ctx.Err()
		case <-ticker.C:
			o.poll()
		}
	}
}

// poll runs one loop iteration. It never waits for the gate.
func (o *Orchestrator) poll() {
	if o.gate.Busy() {
		o.skipped.Add(1)
		return
	}
	if ran, _ := o.gate.TryDo("poll", o.step); !ran {
		o.skipped.Add(1)
	}
}

// step handles one button edge or the idle check. Gate must be held.
func (o *Orchestrator) step() error {
	if b := o.buttons.Poll(); b != ButtonNone {
		mode, ok := b.Mode()
		if !ok {
			o.logger.Warn("ignoring unknown button", "button", string(b))
			return nil
		}
		o.buttonHits.Add(1)
		o.logger.Debug("button pressed", "button", string(b), "mode", string(mode))
		o.mode.Store(mode)
		return o.show()
	}

	if o.cfg.IdleTimeout == 0 || !o.powered.Load() || o.Mode() != ModeTelemetry {
		return nil
	}
	if o.cfg.Now().Sub(o.lastActivity) < o.cfg.IdleTimeout {
		return nil
	}

	o.logger.Info("display idle, powering off", "idle_timeout", o.cfg.IdleTimeout)
	if err := o.panel.Power(false); err != nil {
		return fmt.Errorf("power off: %w", err)
	}
	o.powered.Store(false)
	o.idleOffs.Add(1)
	return nil
}

// show powers the panel on if needed, renders the current mode and resets
// the idle timer. Gate must be held.
func (o *Orchestrator) show() error {
	if !o.powered.Load() {
		if err := o.panel.Power(true); err != nil {
			return fmt.Errorf("power on: %w", err)
		}
		o.powered.Store(true)
	}
	if err := o.render(); err != nil {
		return err
	}
	o.lastActivity = o.cfg.Now()
	return nil
}

// render draws the current mode. Gate must be held.
func (o *Orchestrator) render() error {
	devices := o.registry.Snapshot()
	view := View{
		Title:    o.cfg.Title,
		Devices:  devices,
		Host:     o.hostInfo(),
		Wireless: o.wirelessInfo(),
		At:       o.cfg.Now(),
	}

	if err := o.panel.Render(o.Mode(), view, len(devices) == 1); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	o.renders.Add(1)
	return nil
}

func (o *Orchestrator) notify(st device.State) {
	o.observersMu.RLock()
	observers := o.observers
	o.observersMu.RUnlock()

	for _, fn := range observers {
		fn(*st.DeepCopy())
	}
}

// Mode returns the current display mode.
func (o *Orchestrator) Mode() Mode {
	return o.mode.Load().(Mode)
}

// Powered reports whether the panel is on.
func (o *Orchestrator) Powered() bool {
	return o.powered.Load()
}

// Stats contains orchestrator counters.
type Stats struct {
	Mode      Mode   `json:"mode"`
	Powered   bool   `json:"powered"`
	Telemetry uint64 `json:"telemetry"`
	Rejected  uint64 `json:"rejected"`
	Renders   uint64 `json:"renders"`
	Buttons   uint64 `json:"buttons"`
	IdleOffs  uint64 `json:"idle_offs"`
	PollSkips uint64 `json:"poll_skips"`
}

// Stats returns current counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Mode:      o.Mode(),
		Powered:   o.Powered(),
		Telemetry: o.telemetry.Load(),
		Rejected:  o.rejected.Load(),
		Renders:   o.renders.Load(),
		Buttons:   o.buttonHits.Load(),
		IdleOffs:  o.idleOffs.Load(),
		PollSkips: o.skipped.Load(),
	}
}
