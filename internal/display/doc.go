// Package display drives the panel from two independent sources: telemetry
// arriving from the network and button presses polled locally.
//
// Every state transition (telemetry update, mode change, idle power-off,
// shutdown) runs as a critical section on a shared arbiter.Gate, so the
// registry, the current mode and the panel are never touched by two
// goroutines at once. The poll loop backs off while the gate is busy
// rather than queueing behind a render.
package display
