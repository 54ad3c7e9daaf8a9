package wireless

import (
	"context"
	"fmt"
	"net"
	"slices"
	"sync"
	"time"
)

// DefaultRetryInterval is the pause between association attempts.
const DefaultRetryInterval = time.Second

// AccessPoint is a network the station may join.
type AccessPoint struct {
	SSID     string
	Password string
}

// Config holds station settings.
type Config struct {
	Primary       AccessPoint
	Alternates    []AccessPoint
	Hostname      string
	Country       string
	RetryInterval time.Duration
}

// Radio is the station's view of the Wi-Fi hardware.
type Radio interface {
	// Scan returns the SSIDs currently visible.
	Scan(ctx context.Context) ([]string, error)
	// Associate joins ssid.
	Associate(ctx context.Context, ssid, password string) error
	// Associated returns the joined SSID, if any.
	Associated() (string, bool)
	// Address returns the station's IPv4 address.
	Address() (net.IP, error)
}

// Logger defines the logging interface for the station.
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

// Info describes the current link for display.
type Info struct {
	Connected bool   `json:"connected"`
	SSID      string `json:"ssid,omitempty"`
	IP        string `json:"ip,omitempty"`
	Hostname  string `json:"hostname"`
	Country   string `json:"country"`
}

// Station associates a Radio with the configured networks.
//
// Thread Safety:
//   - All methods are safe for concurrent use; Connect calls are
//     serialised.
type Station struct {
	cfg    Config
	radio  Radio
	logger Logger

	connectMu sync.Mutex
	mu        sync.Mutex
	attempts  int
}

// NewStation creates a station over radio.
func NewStation(cfg Config, radio Radio) *Station {
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	return &Station{cfg: cfg, radio: radio, logger: noopLogger{}}
}

// SetLogger sets the logger for the station.
func (s *Station) SetLogger(logger Logger) {
	s.logger = logger
}

// HostManaged reports whether no network is configured. The operating
// system then owns the link and the station never scans or associates.
func (s *Station) HostManaged() bool {
	return s.cfg.Primary.SSID == "" && len(s.cfg.Alternates) == 0
}

// IsConnected reports whether the radio is associated and has an address.
// A host-managed station is always connected.
func (s *Station) IsConnected() bool {
	if s.HostManaged() {
		return true
	}
	if _, ok := s.radio.Associated(); !ok {
		return false
	}
	ip, err := s.radio.Address()
	return err == nil && ip != nil
}

// Connect blocks until the station is connected or ctx is done. It
// returns at once for a host-managed station.
//
// Returns:
//   - error: nil once connected, otherwise ErrNotConnected wrapping ctx.Err()
func (s *Station) Connect(ctx context.Context) error {
	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	for {
		if s.IsConnected() {
			return nil
		}

		s.mu.Lock()
		s.attempts++
		attempt := s.attempts
		s.mu.Unlock()

		ap, err := s.associate(ctx)
		switch {
		case err != nil:
			s.logger.Warn("wifi association failed", "attempt", attempt, "error", err)
		case s.IsConnected():
			ip, _ := s.radio.Address()
			s.logger.Info("wifi connected", "ssid", ap.SSID, "ip", ip.String(), "hostname", s.cfg.Hostname)
			return nil
		default:
			s.logger.Debug("wifi associated, waiting for address", "ssid", ap.SSID)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %w", ErrNotConnected, ctx.Err())
		case <-time.After(s.cfg.RetryInterval):
		}
	}
}

// associate scans once and joins the best visible network.
func (s *Station) associate(ctx context.Context) (AccessPoint, error) {
	visible, err := s.radio.Scan(ctx)
	if err != nil {
		return AccessPoint{}, fmt.Errorf("scanning: %w", err)
	}

	ap, ok := s.choose(visible)
	if !ok {
		return AccessPoint{}, fmt.Errorf("%w (saw %d networks)", ErrNoAccessPoint, len(visible))
	}

	if err := s.radio.Associate(ctx, ap.SSID, ap.Password); err != nil {
		return ap, fmt.Errorf("joining %q: %w", ap.SSID, err)
	}
	return ap, nil
}

// choose prefers the primary network, then alternates in order.
func (s *Station) choose(visible []string) (AccessPoint, bool) {
	if s.cfg.Primary.SSID != "" && slices.Contains(visible, s.cfg.Primary.SSID) {
		return s.cfg.Primary, true
	}
	for _, ap := range s.cfg.Alternates {
		if slices.Contains(visible, ap.SSID) {
			return ap, true
		}
	}
	return AccessPoint{}, false
}

// KnownSSIDs returns the primary and alternate SSIDs in preference order.
func (s *Station) KnownSSIDs() []string {
	var out []string
	if s.cfg.Primary.SSID != "" {
		out = append(out, s.cfg.Primary.SSID)
	}
	for _, ap := range s.cfg.Alternates {
		out = append(out, ap.SSID)
	}
	return out
}

// Attempts returns how many association attempts have been made.
func (s *Station) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Info reports the current link.
func (s *Station) Info() Info {
	info := Info{Hostname: s.cfg.Hostname, Country: s.cfg.Country}
	if s.HostManaged() {
		info.Connected = true
		if ip, err := s.radio.Address(); err == nil && ip != nil {
			info.IP = ip.String()
		}
		return info
	}
	ssid, ok := s.radio.Associated()
	if !ok {
		return info
	}
	info.SSID = ssid
	if ip, err := s.radio.Address(); err == nil && ip != nil {
		info.IP = ip.String()
		info.Connected = true
	}
	return info
}
