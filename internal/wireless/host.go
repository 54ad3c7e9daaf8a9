package wireless

import (
	"context"
	"fmt"
	"net"
	"sync"
)

// HostRadio is a Radio backed by a host network interface.
//
// The operating system owns the actual association, so Scan reports the
// known SSIDs whenever the interface is up and Associate only records which
// network the station considers joined.
type HostRadio struct {
	iface string
	known []string

	// lookup is swapped in tests.
	lookup func(name string) (*net.Interface, error)
	addrs  func(*net.Interface) ([]net.Addr, error)

	mu   sync.Mutex
	ssid string
}

// NewHostRadio creates a radio over the named interface.
func NewHostRadio(iface string, known []string) *HostRadio {
	return &HostRadio{
		iface:  iface,
		known:  known,
		lookup: net.InterfaceByName,
		addrs:  func(i *net.Interface) ([]net.Addr, error) { return i.Addrs() },
	}
}

func (r *HostRadio) up() (*net.Interface, error) {
	ifc, err := r.lookup(r.iface)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInterfaceDown, r.iface, err)
	}
	if ifc.Flags&net.FlagUp == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInterfaceDown, r.iface)
	}
	return ifc, nil
}

// Scan implements Radio.
func (r *HostRadio) Scan(ctx context.Context) ([]string, error) {
	if _, err := r.up(); err != nil {
		return nil, err
	}
	return append([]string(nil), r.known...), nil
}

// Associate implements Radio.
func (r *HostRadio) Associate(ctx context.Context, ssid, password string) error {
	if _, err := r.up(); err != nil {
		return err
	}
	r.mu.Lock()
	r.ssid = ssid
	r.mu.Unlock()
	return nil
}

// Associated implements Radio. Association is lost when the interface goes
// down.
func (r *HostRadio) Associated() (string, bool) {
	r.mu.Lock()
	ssid := r.ssid
	r.mu.Unlock()

	if ssid == "" {
		return "", false
	}
	if _, err := r.up(); err != nil {
		return "", false
	}
	return ssid, true
}

// Address implements Radio.
func (r *HostRadio) Address() (net.IP, error) {
	ifc, err := r.up()
	if err != nil {
		return nil, err
	}
	addrs, err := r.addrs(ifc)
	if err != nil {
		return nil, fmt.Errorf("listing addresses: %w", err)
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if v4 := ipNet.IP.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoAddress, r.iface)
}
