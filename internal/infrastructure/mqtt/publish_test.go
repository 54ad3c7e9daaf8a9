package mqtt

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/keycounter-core/internal/device"
	"github.com/nerrad567/keycounter-core/internal/display"
	"github.com/nerrad567/keycounter-core/internal/hoststats"
)

func TestDeviceStateMessage(t *testing.T) {
	st := device.State{ID: "7", SessionTotal: 120, StreakCurrent: 4, StreakAverage: 2.5}

	topic, payload, err := deviceStateMessage(NewTopics("kc"), st)
	if err != nil {
		t.Fatalf("deviceStateMessage() error = %v", err)
	}
	if topic != "kc/device/7/state" {
		t.Errorf("topic = %q", topic)
	}

	var got device.State
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if got.ID != "7" || got.SessionTotal != 120 || got.StreakAverage != 2.5 {
		t.Errorf("payload = %+v", got)
	}
}

func TestNewHostStatsMessage(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	snap := hoststats.Snapshot{
		At:          at,
		Temperature: hoststats.Reading{Valid: true, Current: 41.5},
	}

	msg := newHostStatsMessage(snap)
	if msg.Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("Timestamp = %q", msg.Timestamp)
	}
	if msg.Process != nil {
		t.Error("Process should be omitted without a process sample")
	}

	snap.HasProcess = true
	snap.Process = hoststats.ProcessStats{CPUPercent: 3.5, RSSBytes: 1024}
	msg = newHostStatsMessage(snap)
	if msg.Process == nil || msg.Process.RSSBytes != 1024 {
		t.Errorf("Process = %+v", msg.Process)
	}
}

func TestPublish_Validation(t *testing.T) {
	c := &Client{logger: noopLogger{}}

	if err := c.Publish("", nil, 0, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic: got %v", err)
	}
	if err := c.Publish("t", nil, 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos: got %v", err)
	}
	if err := c.Publish("t", make([]byte, maxPayloadSize+1), 0, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("oversized: got %v", err)
	}
	if err := c.Publish("t", []byte("x"), 0, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected: got %v", err)
	}
}

func TestPublishDeviceState_Connected(t *testing.T) {
	c, paho := newTestClient(&recordingLogger{})

	if err := c.PublishDeviceState(device.State{ID: "4", SessionTotal: 12}); err != nil {
		t.Fatalf("PublishDeviceState() error = %v", err)
	}
	if err := c.PublishHostStats(hoststats.Snapshot{At: time.Now()}); err != nil {
		t.Fatalf("PublishHostStats() error = %v", err)
	}

	got := paho.publishedTopics()
	want := []string{"kc/device/4/state", "kc/host/stats"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("published = %v, want %v", got, want)
	}
}

func TestButtonHandler(t *testing.T) {
	queue := display.NewButtonQueue(1)
	handle := buttonHandler(queue.Press)

	if err := handle([]byte(`{"button":"B"}`)); err != nil {
		t.Fatalf("first press: %v", err)
	}
	if err := handle([]byte("C")); !errors.Is(err, ErrButtonDropped) {
		t.Errorf("full queue: got %v, want ErrButtonDropped", err)
	}
	err := handle([]byte("Z"))
	if !errors.Is(err, ErrInvalidButton) || !errors.Is(err, display.ErrUnknownButton) {
		t.Errorf("unknown button: got %v, want ErrInvalidButton wrapping ErrUnknownButton", err)
	}

	if got := queue.Poll(); got != display.ButtonB {
		t.Errorf("Poll() = %q, want B", got)
	}
}

func TestDispatch_RecoversAndLogs(t *testing.T) {
	logger := &recordingLogger{}
	c := &Client{logger: logger}

	c.dispatch(func([]byte) error { panic("boom") }, "t", nil)
	c.dispatch(func([]byte) error { return ErrInvalidButton }, "t", nil)
	c.dispatch(func([]byte) error { return ErrButtonDropped }, "t", nil)
	c.dispatch(func([]byte) error { return nil }, "t", nil)

	if logger.count("error") != 1 || logger.count("warn") != 1 || logger.count("debug") != 1 {
		t.Errorf("logged %v, want one error, one warn, one debug", logger.levels())
	}
}
