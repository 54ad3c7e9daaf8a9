package hoststats

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shirou/gopsutil/host"
	"github.com/shirou/gopsutil/process"
)

// Sensor reads one temperature in degrees Celsius.
type Sensor interface {
	Temperature(ctx context.Context) (float64, error)
}

// GopsutilSensor reads the host's hardware sensors.
//
// Key selects the first sensor whose key contains it (case-insensitive);
// an empty Key takes the first sensor reporting a positive temperature.
type GopsutilSensor struct {
	Key string

	// read is swapped in tests.
	read func(ctx context.Context) ([]host.TemperatureStat, error)
}

// NewGopsutilSensor creates a sensor matching key.
func NewGopsutilSensor(key string) *GopsutilSensor {
	return &GopsutilSensor{Key: key, read: host.SensorsTemperaturesWithContext}
}

// Temperature implements Sensor.
func (s *GopsutilSensor) Temperature(ctx context.Context) (float64, error) {
	// Partial results may come back alongside a warning error.
	stats, err := s.read(ctx)
	if len(stats) == 0 {
		if err != nil {
			return 0, fmt.Errorf("reading sensors: %w", err)
		}
		return 0, ErrNoSensor
	}

	key := strings.ToLower(s.Key)
	for _, st := range stats {
		if key != "" {
			if strings.Contains(strings.ToLower(st.SensorKey), key) {
				return st.Temperature, nil
			}
			continue
		}
		if st.Temperature > 0 {
			return st.Temperature, nil
		}
	}
	return 0, fmt.Errorf("%w: key %q", ErrNoSensor, s.Key)
}

// ProcessStats is the service's own resource use.
type ProcessStats struct {
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
}

// ProcessSource samples process resource use.
type ProcessSource interface {
	Sample() (ProcessStats, error)
}

// SelfProcess samples the running process through gopsutil.
type SelfProcess struct {
	proc *process.Process
}

// NewSelfProcess attaches to the current process.
func NewSelfProcess() (*SelfProcess, error) {
	p, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		return nil, fmt.Errorf("attaching to process: %w", err)
	}
	return &SelfProcess{proc: p}, nil
}

// Sample implements ProcessSource.
func (s *SelfProcess) Sample() (ProcessStats, error) {
	cpu, err := s.proc.CPUPercent()
	if err != nil {
		return ProcessStats{}, fmt.Errorf("cpu percent: %w", err)
	}
	mem, err := s.proc.MemoryInfo()
	if err != nil {
		return ProcessStats{}, fmt.Errorf("memory info: %w", err)
	}
	return ProcessStats{CPUPercent: cpu, RSSBytes: mem.RSS}, nil
}
