package mqtt

import (
	"errors"
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/keycounter-core/internal/display"
)

// SubscribeButtons relays presses published on the display button topic
// to press. Payloads are "A".."D" or {"button":"B"}.
//
// The subscription is remembered even when the broker is unreachable and
// is restored on every reconnect.
//
// Returns:
//   - error: nil on success, ErrNotConnected while offline, or
//     ErrSubscribeFailed describing the failure
func (c *Client) SubscribeButtons(press func(display.Button) bool) error {
	if press == nil {
		return fmt.Errorf("%w: press cannot be nil", ErrSubscribeFailed)
	}

	topic := c.topics.DisplayButton()
	handler := func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.dispatch(buttonHandler(press), msg.Topic(), msg.Payload())
	}

	c.buttonsMu.Lock()
	c.buttons = handler
	c.buttonsMu.Unlock()

	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := c.subscribe(topic, handler); err != nil {
		return err
	}

	c.logger.Info("remote buttons enabled", "topic", topic)
	return nil
}

func (c *Client) subscribe(topic string, handler pahomqtt.MessageHandler) error {
	token := c.client.Subscribe(topic, byte(c.cfg.QoS), handler)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: %s: timeout after %v", ErrSubscribeFailed, topic, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}
	return nil
}

// buttonHandler parses one button message and queues the press.
func buttonHandler(press func(display.Button) bool) func(payload []byte) error {
	return func(payload []byte) error {
		b, err := display.ParseButton(payload)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidButton, err)
		}
		if !press(b) {
			return fmt.Errorf("%w: %s", ErrButtonDropped, b)
		}
		return nil
	}
}

// dispatch runs handle on a paho goroutine, recovering panics so a bad
// message cannot take the client down.
func (c *Client) dispatch(handle func([]byte) error, topic string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("MQTT handler panic recovered", "topic", topic, "panic", r)
		}
	}()

	err := handle(payload)
	switch {
	case err == nil:
	case errors.Is(err, ErrButtonDropped):
		c.logger.Debug("remote button ignored, queue full", "topic", topic, "error", err)
	default:
		c.logger.Warn("remote button rejected", "topic", topic, "error", err)
	}
}
