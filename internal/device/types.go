package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ID is the opaque identifier a sensor client reports in device_id.
//
// On the wire it may be a JSON number or a JSON string. Numbers are
// canonicalised, so 3, 3.0 and "3" address the same device; strings are
// kept verbatim, so "3.0" is a different device from 3.
type ID string

// UnmarshalJSON accepts a JSON string or number.
// Booleans, objects, arrays and empty strings are rejected.
func (id *ID) UnmarshalJSON(data []byte) (err error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return ErrInvalidID
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidID, err)
		}
		if s == "" {
			return ErrInvalidID
		}
		*id = ID(s)
		return nil
	}

	*id, err = numericID(string(data))
	return err
}

// numericID canonicalises a JSON number so that 3, 3.0 and 3e0 name the
// same device. Integers keep full int64 precision.
func numericID(s string) (ID, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ID(strconv.FormatInt(n, 10)), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidID, s)
	}
	return ID(strconv.FormatFloat(f, 'f', -1, 64)), nil
}

// String returns the identifier text.
func (id ID) String() string {
	return string(id)
}

// Payload is one decoded telemetry message.
//
// Every field is optional except DeviceID. A nil block or nil field means
// the sender did not include it, and the registry keeps the prior value.
type Payload struct {
	DeviceID  *ID           `json:"device_id"`
	Session   *SessionBlock `json:"session,omitempty"`
	Streak    *StreakBlock  `json:"streak,omitempty"`
	Timestamp *string       `json:"timestamp,omitempty"`
	Time      *string       `json:"time,omitempty"`
	System    *SystemBlock  `json:"system,omitempty"`
}

// SessionBlock carries counters for the whole typing session.
type SessionBlock struct {
	PulsationsTotal *int64 `json:"pulsations_total,omitempty"`
}

// StreakBlock carries counters for the current typing streak.
type StreakBlock struct {
	PulsationsCurrent *int64   `json:"pulsations_current,omitempty"`
	PulsationAverage  *float64 `json:"pulsation_average,omitempty"`
}

// SystemBlock describes the sender's host.
type SystemBlock struct {
	OS *string `json:"so,omitempty"`
}

// DecodePayload parses one JSON object into a Payload.
//
// Returns:
//   - Payload: the decoded message
//   - error: ErrMalformedPayload if the bytes are not a valid message,
//     ErrMissingDeviceID if device_id is absent or null
func DecodePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if err := p.Validate(); err != nil {
		return Payload{}, err
	}
	return p, nil
}

// Validate reports whether the payload names a device.
func (p Payload) Validate() error {
	if p.DeviceID == nil || *p.DeviceID == "" {
		return ErrMissingDeviceID
	}
	return nil
}

// State is the registry's view of one device.
type State struct {
	ID            ID        `json:"device_id"`
	SessionTotal  int64     `json:"session_total"`
	StreakCurrent int64     `json:"streak_current"`
	StreakAverage float64   `json:"streak_average"`
	SystemLabel   string    `json:"system_label"`
	Timestamp     string    `json:"timestamp"`
	Time          string    `json:"time"`
	LastSeen      time.Time `json:"last_seen"`

	// History holds the most recent StreakAverage samples, oldest first.
	History []float64 `json:"history"`

	// Sequence counts accepted messages and wraps; diagnostics only.
	Sequence int `json:"sequence"`
}

// DeepCopy returns a copy that shares no memory with s.
func (s *State) DeepCopy() *State {
	if s == nil {
		return nil
	}
	cpy := *s
	if s.History != nil {
		cpy.History = make([]float64, len(s.History))
		copy(cpy.History, s.History)
	}
	return &cpy
}

// merge applies the fields present in p. Absent fields keep their value.
func (s *State) merge(p Payload) {
	if p.Session != nil && p.Session.PulsationsTotal != nil {
		s.SessionTotal = *p.Session.PulsationsTotal
	}
	if p.Streak != nil {
		if p.Streak.PulsationsCurrent != nil {
			s.StreakCurrent = *p.Streak.PulsationsCurrent
		}
		if p.Streak.PulsationAverage != nil {
			s.StreakAverage = *p.Streak.PulsationAverage
		}
	}
	if p.Timestamp != nil {
		s.Timestamp = *p.Timestamp
	}
	if p.Time != nil {
		s.Time = *p.Time
	}
	if p.System != nil && p.System.OS != nil {
		s.SystemLabel = *p.System.OS
	}
}

// recordAverage appends v to History, dropping the oldest beyond limit.
func (s *State) recordAverage(v float64, limit int) {
	s.History = append(s.History, v)
	if over := len(s.History) - limit; over > 0 {
		// Shift down rather than reslice so the backing array does not grow forever
		copy(s.History, s.History[over:])
		s.History = s.History[:limit]
	}
}
