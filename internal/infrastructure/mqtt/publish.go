package mqtt

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/keycounter-core/internal/device"
	"github.com/nerrad567/keycounter-core/internal/hoststats"
)

// Maximum payload size for MQTT messages (1MB).
const maxPayloadSize = 1 << 20

// Publish sends payload to topic.
//
// Parameters:
//   - topic: The topic to publish to
//   - payload: Message body, at most 1MB
//   - qos: 0, 1 or 2
//   - retained: Whether the broker keeps it for new subscribers (use for
//     state, not events)
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// publishRetained publishes a retained message with the configured QoS.
func (c *Client) publishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}

// publishJSON marshals v and publishes it with the configured QoS.
func (c *Client) publishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding: %w", ErrPublishFailed, err)
	}
	return c.Publish(topic, payload, byte(c.cfg.QoS), retained)
}

// PublishDeviceState publishes st as the retained state of its device.
func (c *Client) PublishDeviceState(st device.State) error {
	topic, payload, err := deviceStateMessage(c.topics, st)
	if err != nil {
		return err
	}
	return c.publishRetained(topic, payload)
}

// deviceStateMessage builds the topic and body for a device state.
func deviceStateMessage(topics Topics, st device.State) (string, []byte, error) {
	payload, err := json.Marshal(st)
	if err != nil {
		return "", nil, fmt.Errorf("%w: encoding state: %w", ErrPublishFailed, err)
	}
	return topics.DeviceState(st.ID.String()), payload, nil
}

// hostStatsMessage is the body published on the host stats topic.
type hostStatsMessage struct {
	Timestamp   string                  `json:"timestamp"`
	Temperature hoststats.Reading       `json:"temperature"`
	Process     *hoststats.ProcessStats `json:"process,omitempty"`
}

// PublishHostStats publishes a host sample (not retained).
func (c *Client) PublishHostStats(snap hoststats.Snapshot) error {
	return c.publishJSON(c.topics.HostStats(), newHostStatsMessage(snap), false)
}

func newHostStatsMessage(snap hoststats.Snapshot) hostStatsMessage {
	msg := hostStatsMessage{
		Timestamp:   snap.At.UTC().Format(time.RFC3339),
		Temperature: snap.Temperature,
	}
	if snap.HasProcess {
		proc := snap.Process
		msg.Process = &proc
	}
	return msg
}
