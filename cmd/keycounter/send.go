package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"time"

	"github.com/spf13/cobra"
)

var (
	sendAddr    string
	sendDevice  string
	sendSystem  string
	sendTimeout time.Duration
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send one sample telemetry message and print the ack.",
	Long: `send connects to a running keycounter, writes a telemetry message ` +
		`with random counters for --device and prints the acknowledgement. ` +
		`Use it to check a unit end to end without a workstation agent.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		payload, err := samplePayload(sendDevice, sendSystem, time.Now(), rand.Int63n)
		if err != nil {
			return err
		}
		ack, err := sendOnce(sendAddr, payload, sendTimeout)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent %s\nack  %s\n", payload, ack)
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVarP(&sendAddr, "addr", "a", "127.0.0.1:80", "keycounter listener address")
	sendCmd.Flags().StringVarP(&sendDevice, "device", "d", "3", "device_id to report")
	sendCmd.Flags().StringVar(&sendSystem, "system", "Debian Testing", "operating system label")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 5*time.Second, "dial and ack timeout")
}

type sampleMessage struct {
	DeviceID string `json:"device_id"`
	Session  struct {
		PulsationsTotal int64 `json:"pulsations_total"`
	} `json:"session"`
	Streak struct {
		PulsationsCurrent int64 `json:"pulsations_current"`
		PulsationAverage  int64 `json:"pulsation_average"`
	} `json:"streak"`
	Timestamp string `json:"timestamp"`
	Time      string `json:"time"`
	System    struct {
		OS string `json:"so"`
	} `json:"system"`
}

// samplePayload builds a telemetry message with random counters in the
// ranges a busy workstation reports. randN returns a value in [0, n).
func samplePayload(deviceID, system string, now time.Time, randN func(int64) int64) ([]byte, error) {
	var msg sampleMessage
	msg.DeviceID = deviceID
	msg.Session.PulsationsTotal = 6000 + randN(24001)
	msg.Streak.PulsationsCurrent = 140 + randN(1061)
	msg.Streak.PulsationAverage = 1 + randN(400)
	msg.Timestamp = now.UTC().Format("2006-01-02 15:04:05")
	msg.Time = now.Format("15:04:05")
	msg.System.OS = system

	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding sample: %w", err)
	}
	return b, nil
}

// sendOnce writes payload to addr and returns the first line sent back.
func sendOnce(addr string, payload []byte, timeout time.Duration) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return "", fmt.Errorf("connecting to %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return "", fmt.Errorf("setting deadline: %w", err)
	}
	if _, err := conn.Write(payload); err != nil {
		return "", fmt.Errorf("writing sample: %w", err)
	}

	ack, err := bufio.NewReader(conn).ReadString('}')
	if err != nil && !(err == io.EOF && ack != "") {
		return "", fmt.Errorf("reading ack: %w", err)
	}
	return ack, nil
}
