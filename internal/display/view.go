package display

import (
	"time"

	"github.com/nerrad567/keycounter-core/internal/device"
)

// Mode selects which screen the panel shows.
type Mode string

const (
	ModeTelemetry Mode = "telemetry"
	ModeSession   Mode = "session"
	ModeHost      Mode = "host"
	ModeWireless  Mode = "wireless"
)

// HostView is the host temperature summary shown on the Host screen.
type HostView struct {
	Valid   bool
	Current float64
	Max     float64
	Min     float64
	Avg     float64
}

// WirelessView is the link summary shown on the Wireless screen.
type WirelessView struct {
	Connected bool
	SSID      string
	IP        string
	Hostname  string
}

// View is everything a Panel needs to draw one frame.
type View struct {
	Title    string
	Devices  []device.State
	Host     HostView
	Wireless WirelessView
	At       time.Time
}

// Panel is the physical (or simulated) screen.
type Panel interface {
	Render(mode Mode, view View, showChart bool) error
	Power(on bool) error
}
