package display

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nerrad567/keycounter-core/internal/arbiter"
	"github.com/nerrad567/keycounter-core/internal/device"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type renderCall struct {
	mode      Mode
	devices   int
	showChart bool
}

// fakePanel records calls and flags any two calls that overlap in time.
type fakePanel struct {
	mu        sync.Mutex
	renders   []renderCall
	powers    []bool
	renderErr error
	panicNext bool

	inFlight atomic.Int32
	overlaps atomic.Int32
}

func (p *fakePanel) enter() {
	if p.inFlight.Add(1) > 1 {
		p.overlaps.Add(1)
	}
}

func (p *fakePanel) Render(mode Mode, view View, showChart bool) error {
	p.enter()
	defer p.inFlight.Add(-1)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panicNext {
		p.panicNext = false
		panic("spi fault")
	}
	if p.renderErr != nil {
		return p.renderErr
	}
	p.renders = append(p.renders, renderCall{mode: mode, devices: len(view.Devices), showChart: showChart})
	return nil
}

func (p *fakePanel) Power(on bool) error {
	p.enter()
	defer p.inFlight.Add(-1)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.powers = append(p.powers, on)
	return nil
}

func (p *fakePanel) lastRender(t *testing.T) renderCall {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.renders) == 0 {
		t.Fatal("no renders recorded")
	}
	return p.renders[len(p.renders)-1]
}

func (p *fakePanel) setRenderErr(err error) {
	p.mu.Lock()
	p.renderErr = err
	p.mu.Unlock()
}

type fixture struct {
	clock    *fakeClock
	gate     *arbiter.Gate
	registry *device.Registry
	panel    *fakePanel
	buttons  *ButtonQueue
	orch     *Orchestrator
}

func newFixture(idle time.Duration) *fixture {
	clk := newFakeClock()
	f := &fixture{
		clock:    clk,
		gate:     arbiter.New(),
		registry: device.NewRegistry(device.WithClock(clk.Now)),
		panel:    &fakePanel{},
		buttons:  NewButtonQueue(16),
	}
	f.orch = New(Config{IdleTimeout: idle, Now: clk.Now}, f.gate, f.registry, f.panel, f.buttons)
	return f
}

func payload(t *testing.T, raw string) device.Payload {
	t.Helper()
	p, err := device.DecodePayload([]byte(raw))
	if err != nil {
		t.Fatalf("DecodePayload(%s) error = %v", raw, err)
	}
	return p
}

func TestOrchestrator_IdleThenTelemetry(t *testing.T) {
	f := newFixture(5 * time.Minute)

	f.clock.Advance(4 * time.Minute)
	f.orch.poll()
	if !f.orch.Powered() {
		t.Fatal("powered off before idle timeout")
	}

	f.clock.Advance(time.Minute)
	f.orch.poll()
	if f.orch.Powered() {
		t.Fatal("still powered after idle timeout")
	}

	if err := f.orch.HandleTelemetry(payload(t, `{"device_id":1,"streak":{"pulsation_average":120}}`)); err != nil {
		t.Fatalf("HandleTelemetry() error = %v", err)
	}
	if !f.orch.Powered() {
		t.Error("Powered() = false after telemetry, want true")
	}
	if f.orch.Mode() != ModeTelemetry {
		t.Errorf("Mode() = %q, want %q", f.orch.Mode(), ModeTelemetry)
	}

	last := f.panel.lastRender(t)
	if last.mode != ModeTelemetry || !last.showChart || last.devices != 1 {
		t.Errorf("last render = %+v, want telemetry with chart for 1 device", last)
	}

	f.panel.mu.Lock()
	powers := append([]bool(nil), f.panel.powers...)
	f.panel.mu.Unlock()
	if len(powers) != 2 || powers[0] || !powers[1] {
		t.Errorf("power calls = %v, want [false true]", powers)
	}
	if f.orch.Stats().IdleOffs != 1 {
		t.Errorf("IdleOffs = %d, want 1", f.orch.Stats().IdleOffs)
	}
}

func TestOrchestrator_TelemetryResetsIdleTimer(t *testing.T) {
	f := newFixture(5 * time.Minute)

	f.clock.Advance(4 * time.Minute)
	if err := f.orch.HandleTelemetry(payload(t, `{"device_id":1}`)); err != nil {
		t.Fatalf("HandleTelemetry() error = %v", err)
	}

	f.clock.Advance(4 * time.Minute)
	f.orch.poll()
	if !f.orch.Powered() {
		t.Error("powered off 4m after telemetry, want on")
	}
}

func TestOrchestrator_ButtonSelectsMode(t *testing.T) {
	tests := []struct {
		button Button
		want   Mode
	}{
		{ButtonB, ModeSession},
		{ButtonC, ModeHost},
		{ButtonD, ModeWireless},
		{ButtonA, ModeTelemetry},
	}

	f := newFixture(5 * time.Minute)
	for _, tt := range tests {
		f.buttons.Press(tt.button)
		f.orch.poll()
		if f.orch.Mode() != tt.want {
			t.Errorf("after %s Mode() = %q, want %q", tt.button, f.orch.Mode(), tt.want)
		}
		if got := f.panel.lastRender(t).mode; got != tt.want {
			t.Errorf("after %s rendered %q, want %q", tt.button, got, tt.want)
		}
	}
	if f.orch.Stats().Buttons != 4 {
		t.Errorf("Buttons = %d, want 4", f.orch.Stats().Buttons)
	}
}

func TestOrchestrator_ButtonWakesPanel(t *testing.T) {
	f := newFixture(time.Minute)

	f.clock.Advance(time.Minute)
	f.orch.poll()
	if f.orch.Powered() {
		t.Fatal("expected idle power-off")
	}

	f.buttons.Press(ButtonD)
	f.orch.poll()
	if !f.orch.Powered() || f.orch.Mode() != ModeWireless {
		t.Errorf("Powered() = %v, Mode() = %q, want true, wireless", f.orch.Powered(), f.orch.Mode())
	}
}

func TestOrchestrator_NoIdleOutsideTelemetry(t *testing.T) {
	f := newFixture(time.Minute)

	f.buttons.Press(ButtonB)
	f.orch.poll()

	f.clock.Advance(10 * time.Minute)
	f.orch.poll()
	if !f.orch.Powered() {
		t.Error("powered off in session mode, want on")
	}
}

func TestOrchestrator_IdleDisabled(t *testing.T) {
	f := newFixture(0)

	f.clock.Advance(24 * time.Hour)
	f.orch.poll()
	if !f.orch.Powered() {
		t.Error("powered off with idle disabled")
	}
}

func TestOrchestrator_ChartOnlyForSingleDevice(t *testing.T) {
	f := newFixture(0)

	if err := f.orch.HandleTelemetry(payload(t, `{"device_id":1}`)); err != nil {
		t.Fatalf("HandleTelemetry() error = %v", err)
	}
	if !f.panel.lastRender(t).showChart {
		t.Error("showChart = false with one device")
	}

	if err := f.orch.HandleTelemetry(payload(t, `{"device_id":2}`)); err != nil {
		t.Fatalf("HandleTelemetry() error = %v", err)
	}
	if last := f.panel.lastRender(t); last.showChart || last.devices != 2 {
		t.Errorf("last render = %+v, want two devices without chart", last)
	}
}

func TestOrchestrator_RenderErrorReleasesGate(t *testing.T) {
	f := newFixture(5 * time.Minute)
	renderErr := errors.New("bus busy")
	f.panel.setRenderErr(renderErr)

	var observed atomic.Int32
	f.orch.AddObserver(func(device.State) { observed.Add(1) })

	f.clock.Advance(5 * time.Minute)
	err := f.orch.HandleTelemetry(payload(t, `{"device_id":1}`))
	if !errors.Is(err, renderErr) {
		t.Fatalf("HandleTelemetry() error = %v, want %v", err, renderErr)
	}
	if f.gate.Busy() {
		t.Fatal("gate still busy after failed render")
	}
	if observed.Load() != 1 {
		t.Errorf("observer calls = %d, want 1 (registry was updated)", observed.Load())
	}

	// Idle timer was not reset by the failed render
	f.orch.poll()
	if f.orch.Powered() {
		t.Error("Powered() = true, want idle power-off after failed render")
	}
}

func TestOrchestrator_RenderPanicRecovered(t *testing.T) {
	f := newFixture(0)
	f.panel.mu.Lock()
	f.panel.panicNext = true
	f.panel.mu.Unlock()

	err := f.orch.HandleTelemetry(payload(t, `{"device_id":1}`))
	if !errors.Is(err, arbiter.ErrPanic) {
		t.Fatalf("HandleTelemetry() error = %v, want ErrPanic", err)
	}

	if err := f.orch.HandleTelemetry(payload(t, `{"device_id":1}`)); err != nil {
		t.Fatalf("HandleTelemetry() after panic error = %v", err)
	}
	st, ok := f.registry.Get("1")
	if !ok || st.Sequence != 2 {
		t.Errorf("Get(1) = %+v, %v, want sequence 2", st, ok)
	}
}

func TestOrchestrator_MissingDeviceID(t *testing.T) {
	f := newFixture(0)

	err := f.orch.HandleTelemetry(device.Payload{})
	if !errors.Is(err, device.ErrMissingDeviceID) {
		t.Errorf("HandleTelemetry() error = %v, want ErrMissingDeviceID", err)
	}
	if f.orch.Stats().Telemetry != 0 {
		t.Errorf("Telemetry = %d, want 0", f.orch.Stats().Telemetry)
	}
}

func TestOrchestrator_AdmitFilter(t *testing.T) {
	f := newFixture(0)
	f.orch.SetAdmit(func(id device.ID) bool { return id == "1" })

	err := f.orch.HandleTelemetry(payload(t, `{"device_id":2}`))
	if !errors.Is(err, ErrNotAdmitted) {
		t.Fatalf("HandleTelemetry(2) error = %v, want ErrNotAdmitted", err)
	}
	if err := f.orch.HandleTelemetry(payload(t, `{"device_id":"1"}`)); err != nil {
		t.Fatalf("HandleTelemetry(1) error = %v", err)
	}
	if ids := f.registry.IDs(); len(ids) != 1 || ids[0] != "1" {
		t.Errorf("IDs() = %v, want [1]", ids)
	}
	if f.orch.Stats().Rejected != 1 {
		t.Errorf("Rejected = %d, want 1", f.orch.Stats().Rejected)
	}
}

func TestOrchestrator_ObserverGetsCopy(t *testing.T) {
	f := newFixture(0)

	var got []device.State
	f.orch.AddObserver(func(st device.State) {
		st.History[0] = -1
		got = append(got, st)
	})

	if err := f.orch.HandleTelemetry(payload(t, `{"device_id":7,"streak":{"pulsation_average":42}}`)); err != nil {
		t.Fatalf("HandleTelemetry() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "7" {
		t.Fatalf("observed = %+v, want one state for 7", got)
	}
	st, _ := f.registry.Get("7")
	if st.History[0] != 42 {
		t.Errorf("registry history = %v, observer mutation leaked", st.History)
	}
}

func TestOrchestrator_ViewSources(t *testing.T) {
	f := newFixture(0)

	var seen View
	capture := &capturePanel{fn: func(v View) { seen = v }}
	o := New(Config{Title: "desk", Now: f.clock.Now}, f.gate, f.registry, capture, nil)
	o.SetHostInfo(func() HostView { return HostView{Valid: true, Current: 41.5} })
	o.SetWirelessInfo(func() WirelessView { return WirelessView{Connected: true, SSID: "lab"} })

	if err := o.Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if seen.Title != "desk" || seen.Host.Current != 41.5 || seen.Wireless.SSID != "lab" {
		t.Errorf("view = %+v, want title, host and wireless filled in", seen)
	}
	if !seen.At.Equal(f.clock.Now()) {
		t.Errorf("view.At = %v, want %v", seen.At, f.clock.Now())
	}
}

// capturePanel hands every rendered view to fn.
type capturePanel struct {
	fn func(View)
}

func (p *capturePanel) Render(_ Mode, v View, _ bool) error { p.fn(v); return nil }
func (p *capturePanel) Power(bool) error                     { return nil }

func TestOrchestrator_RefreshSkippedWhenOff(t *testing.T) {
	f := newFixture(time.Minute)
	f.clock.Advance(time.Minute)
	f.orch.poll()

	before := f.orch.Stats().Renders
	if err := f.orch.Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if f.orch.Stats().Renders != before {
		t.Error("Refresh() rendered while powered off")
	}
}

func TestOrchestrator_PollSkipsWhileGateHeld(t *testing.T) {
	f := newFixture(0)
	f.buttons.Press(ButtonC)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = f.gate.Do("render", func() error {
			close(entered)
			<-release
			return nil
		})
		close(done)
	}()
	<-entered

	f.orch.poll()
	if f.orch.Stats().PollSkips != 1 {
		t.Errorf("PollSkips = %d, want 1", f.orch.Stats().PollSkips)
	}
	if f.orch.Mode() != ModeTelemetry {
		t.Errorf("Mode() = %q while gate held, want telemetry", f.orch.Mode())
	}

	close(release)
	<-done

	f.orch.poll()
	if f.orch.Mode() != ModeHost {
		t.Errorf("Mode() = %q after release, want host", f.orch.Mode())
	}
}

func TestOrchestrator_RunStopsAndPowersOff(t *testing.T) {
	clk := newFakeClock()
	panel := &fakePanel{}
	buttons := NewButtonQueue(4)
	o := New(Config{PollInterval: time.Millisecond, Now: clk.Now}, arbiter.New(), device.NewRegistry(device.WithClock(clk.Now)), panel, buttons)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	buttons.Press(ButtonB)
	deadline := time.Now().Add(2 * time.Second)
	for o.Mode() != ModeSession {
		if time.Now().After(deadline) {
			t.Fatal("button press not handled by Run")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
	if o.Powered() {
		t.Error("Powered() = true after shutdown")
	}
}

func TestOrchestrator_ConcurrentTransitionsDoNotInterleave(t *testing.T) {
	f := newFixture(time.Millisecond)

	const n = 50
	payloads := make([]device.Payload, n)
	for i := range payloads {
		payloads[i] = payload(t, fmt.Sprintf(`{"device_id":%d}`, i%3))
	}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		for _, p := range payloads {
			_ = f.orch.HandleTelemetry(p)
		}
	}()
	go func() {
		defer wg.Done()
		buttons := []Button{ButtonA, ButtonB, ButtonC, ButtonD}
		for i := 0; i < n; i++ {
			f.buttons.Press(buttons[i%len(buttons)])
			f.orch.poll()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			f.clock.Advance(time.Millisecond)
			f.orch.poll()
			_ = f.orch.Refresh()
		}
	}()
	wg.Wait()

	if got := f.panel.overlaps.Load(); got != 0 {
		t.Errorf("overlapping panel calls = %d, want 0", got)
	}
	if f.gate.Busy() {
		t.Error("gate left busy")
	}
	if f.orch.Stats().Telemetry != n {
		t.Errorf("Telemetry = %d, want %d", f.orch.Stats().Telemetry, n)
	}
}
