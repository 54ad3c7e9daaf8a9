// Package arbiter provides the exclusion gate shared by every goroutine
// that changes what the display shows.
//
// Three kinds of work contend for the gate: a telemetry-triggered render
// (network goroutine), a button-triggered mode change and an idle shutdown
// (both from the display poll loop). The poll loop uses Busy and TryDo so it
// never blocks behind a render and never evaluates idle or button logic
// while another transition is half done.
//
//	gate := arbiter.New()
//	err := gate.Do("render", func() error {
//	    return panel.Render(...)
//	})
//
//	ran, err := gate.TryDo("idle", func() error { ... })
package arbiter
