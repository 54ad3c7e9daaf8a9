package allowlist

import "github.com/nerrad567/keycounter-core/internal/device"

// Set answers membership queries for a fetched list.
// The zero Set, like an empty list, allows every device.
type Set struct {
	ids map[device.ID]struct{}
}

// NewSet builds a set from ids.
func NewSet(ids []device.ID) Set {
	if len(ids) == 0 {
		return Set{}
	}
	m := make(map[device.ID]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return Set{ids: m}
}

// Allows reports whether telemetry from id may reach the registry.
func (s Set) Allows(id device.ID) bool {
	if len(s.ids) == 0 {
		return true
	}
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of listed devices; 0 means unrestricted.
func (s Set) Len() int {
	return len(s.ids)
}
