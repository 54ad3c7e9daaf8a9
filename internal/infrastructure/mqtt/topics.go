package mqtt

import "fmt"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "keycounter"

// Topics builds topic names under one prefix.
//
//	topics := mqtt.NewTopics("keycounter")
//	topics.DeviceState("3") // "keycounter/device/3/state"
type Topics struct {
	prefix string
}

// NewTopics returns builders for prefix, or DefaultTopicPrefix when empty.
func NewTopics(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic root.
func (t Topics) Prefix() string {
	return t.prefix
}

// DeviceState returns the retained state topic for one device.
//
// Example: keycounter/device/3/state
func (t Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/state", t.prefix, deviceID)
}

// AllDeviceStates matches every device state topic.
//
// Pattern: keycounter/device/+/state
func (t Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/device/+/state", t.prefix)
}

// HostStats returns the host statistics topic.
//
// Example: keycounter/host/stats
func (t Topics) HostStats() string {
	return fmt.Sprintf("%s/host/stats", t.prefix)
}

// SystemStatus returns the online/offline status topic.
//
// Example: keycounter/system/status
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix)
}

// DisplayButton returns the remote button topic.
//
// Example: keycounter/display/button
func (t Topics) DisplayButton() string {
	return fmt.Sprintf("%s/display/button", t.prefix)
}
