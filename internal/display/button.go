package display

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
)

// Button identifies one of the four physical buttons.
type Button string

const (
	ButtonNone Button = ""
	ButtonA    Button = "A"
	ButtonB    Button = "B"
	ButtonC    Button = "C"
	ButtonD    Button = "D"
)

// Mode returns the display mode the button selects.
func (b Button) Mode() (Mode, bool) {
	switch b {
	case ButtonA:
		return ModeTelemetry, true
	case ButtonB:
		return ModeSession, true
	case ButtonC:
		return ModeHost, true
	case ButtonD:
		return ModeWireless, true
	default:
		return "", false
	}
}

// ParseButton accepts a bare name ("b", " C ") or a JSON document, either a
// string ("\"D\"") or an object ({"button":"B"}).
func ParseButton(raw []byte) (Button, error) {
	s := strings.TrimSpace(string(raw))

	if strings.HasPrefix(s, "{") {
		var msg struct {
			Button string `json:"button"`
		}
		if err := json.Unmarshal([]byte(s), &msg); err != nil {
			return ButtonNone, fmt.Errorf("%w: %w", ErrUnknownButton, err)
		}
		s = msg.Button
	} else if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal([]byte(s), &s); err != nil {
			return ButtonNone, fmt.Errorf("%w: %w", ErrUnknownButton, err)
		}
	}

	b := Button(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := b.Mode(); !ok {
		return ButtonNone, fmt.Errorf("%w: %q", ErrUnknownButton, s)
	}
	return b, nil
}

// ButtonSource yields at most one pending button edge per call.
type ButtonSource interface {
	// Poll returns ButtonNone when nothing was pressed. It must not block.
	Poll() Button
}

// DefaultButtonQueueSize is used when NewButtonQueue is given size <= 0.
const DefaultButtonQueueSize = 8

// ButtonQueue is a ButtonSource fed by Press from any goroutine.
type ButtonQueue struct {
	ch      chan Button
	dropped atomic.Uint64
}

// NewButtonQueue creates a queue holding up to size unread presses.
func NewButtonQueue(size int) *ButtonQueue {
	if size <= 0 {
		size = DefaultButtonQueueSize
	}
	return &ButtonQueue{ch: make(chan Button, size)}
}

// Press enqueues b. It never blocks; when the queue is full the press is
// dropped and Press returns false.
func (q *ButtonQueue) Press(b Button) bool {
	select {
	case q.ch <- b:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Poll implements ButtonSource.
func (q *ButtonQueue) Poll() Button {
	select {
	case b := <-q.ch:
		return b
	default:
		return ButtonNone
	}
}

// Dropped returns how many presses were discarded on a full queue.
func (q *ButtonQueue) Dropped() uint64 {
	return q.dropped.Load()
}
