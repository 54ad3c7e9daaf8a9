package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
device:
  id: "desk-panel"
server:
  host: "127.0.0.1"
  port: 8081
  read_timeout: 15
display:
  idle_minutes: 2
wireless:
  ssid: "home"
  password: "secret"
  alternates:
    - ssid: "office"
      password: "office-pass"
mqtt:
  enabled: true
  broker:
    host: "broker.local"
    port: 1883
    client_id: "test-client"
  qos: 1
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Device.ID != "desk-panel" {
		t.Errorf("Device.ID = %q, want %q", cfg.Device.ID, "desk-panel")
	}
	if cfg.ListenAddress() != "127.0.0.1:8081" {
		t.Errorf("ListenAddress() = %q, want %q", cfg.ListenAddress(), "127.0.0.1:8081")
	}
	if cfg.GetIdleTimeout() != 2*time.Minute {
		t.Errorf("GetIdleTimeout() = %v, want 2m", cfg.GetIdleTimeout())
	}
	if len(cfg.Wireless.Alternates) != 1 || cfg.Wireless.Alternates[0].SSID != "office" {
		t.Errorf("Wireless.Alternates = %+v, want one entry for office", cfg.Wireless.Alternates)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	// Defaults survive partial files
	if cfg.Server.MaxMessageSize != 1024 {
		t.Errorf("Server.MaxMessageSize = %d, want default 1024", cfg.Server.MaxMessageSize)
	}
	if cfg.MQTT.TopicPrefix != "keycounter" {
		t.Errorf("MQTT.TopicPrefix = %q, want default %q", cfg.MQTT.TopicPrefix, "keycounter")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
device:
  id: ""
server:
  port: 0
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error, got nil")
	}
	// Every failure is reported, not just the first
	if !strings.Contains(err.Error(), "device.id") || !strings.Contains(err.Error(), "server.port") {
		t.Errorf("Load() error = %v, want both device.id and server.port reported", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing device ID",
			mutate:  func(c *Config) { c.Device.ID = "" },
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: true,
		},
		{
			name:    "zero read timeout",
			mutate:  func(c *Config) { c.Server.ReadTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "message size too small",
			mutate:  func(c *Config) { c.Server.MaxMessageSize = 10 },
			wantErr: true,
		},
		{
			name:    "idle disabled is valid",
			mutate:  func(c *Config) { c.Display.IdleMinutes = 0 },
			wantErr: false,
		},
		{
			name:    "negative idle minutes",
			mutate:  func(c *Config) { c.Display.IdleMinutes = -1 },
			wantErr: true,
		},
		{
			name:    "brightness out of range",
			mutate:  func(c *Config) { c.Display.Brightness = 150 },
			wantErr: true,
		},
		{
			name: "alternate without ssid",
			mutate: func(c *Config) {
				c.Wireless.Alternates = []AccessPoint{{Password: "x"}}
			},
			wantErr: true,
		},
		{
			name: "invalid QoS when mqtt enabled",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.QoS = 3
			},
			wantErr: true,
		},
		{
			name:    "invalid QoS ignored when mqtt disabled",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: false,
		},
		{
			name:    "influxdb enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
		{
			name: "max restart delay below restart delay",
			mutate: func(c *Config) {
				c.Supervisor.RestartDelay = 10
				c.Supervisor.MaxRestartDelay = 5
			},
			wantErr: true,
		},
		{
			name: "file output without path",
			mutate: func(c *Config) {
				c.Logging.Output = "file"
				c.Logging.File.Path = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{ReadTimeout: 30},
		Display:  DisplayConfig{IdleMinutes: 5, PollIntervalMS: 50},
		API:      APIConfig{Timeout: 10},
		Wireless: WirelessConfig{RetryInterval: 1},
		Host:     HostConfig{SampleInterval: 30},
	}

	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 5*time.Minute {
		t.Errorf("GetIdleTimeout() = %v, want 5m", got)
	}
	if got := cfg.GetPollInterval(); got != 50*time.Millisecond {
		t.Errorf("GetPollInterval() = %v, want 50ms", got)
	}
	if got := cfg.GetAPITimeout(); got != 10*time.Second {
		t.Errorf("GetAPITimeout() = %v, want 10s", got)
	}
	if got := cfg.GetRetryInterval(); got != time.Second {
		t.Errorf("GetRetryInterval() = %v, want 1s", got)
	}
	if got := cfg.GetSampleInterval(); got != 30*time.Second {
		t.Errorf("GetSampleInterval() = %v, want 30s", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("KEYCOUNTER_DEVICE_ID", "env-device")
	t.Setenv("KEYCOUNTER_SERVER_PORT", "9000")
	t.Setenv("KEYCOUNTER_DISPLAY_IDLE_MINUTES", "0")
	t.Setenv("KEYCOUNTER_WIRELESS_SSID", "env-ssid")
	t.Setenv("KEYCOUNTER_WIRELESS_PASSWORD", "env-pass")
	t.Setenv("KEYCOUNTER_API_URL", "https://api.example.com")
	t.Setenv("KEYCOUNTER_API_TOKEN", "token-123")
	t.Setenv("KEYCOUNTER_MQTT_HOST", "mqtt.example.com")
	t.Setenv("KEYCOUNTER_MQTT_USERNAME", "testuser")
	t.Setenv("KEYCOUNTER_MQTT_PASSWORD", "testpass")
	t.Setenv("KEYCOUNTER_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("KEYCOUNTER_DEBUG", "true")

	applyEnvOverrides(cfg)

	if cfg.Device.ID != "env-device" {
		t.Errorf("Device.ID = %q, want %q", cfg.Device.ID, "env-device")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Display.IdleMinutes != 0 {
		t.Errorf("Display.IdleMinutes = %d, want 0", cfg.Display.IdleMinutes)
	}
	if cfg.Wireless.SSID != "env-ssid" || cfg.Wireless.Password != "env-pass" {
		t.Errorf("Wireless = %q/%q, want env-ssid/env-pass", cfg.Wireless.SSID, cfg.Wireless.Password)
	}
	if cfg.API.URL != "https://api.example.com" {
		t.Errorf("API.URL = %q, want %q", cfg.API.URL, "https://api.example.com")
	}
	if cfg.API.Token != "token-123" {
		t.Errorf("API.Token = %q, want %q", cfg.API.Token, "token-123")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" || cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth = %+v, want testuser/testpass", cfg.MQTT.Auth)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if !cfg.Debug {
		t.Error("Debug = false, want true")
	}
}

func TestApplyEnvOverrides_MalformedIntIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("KEYCOUNTER_SERVER_PORT", "not-a-port")

	applyEnvOverrides(cfg)

	if cfg.Server.Port != 80 {
		t.Errorf("Server.Port = %d, want default 80", cfg.Server.Port)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Device.ID == "" {
		t.Error("defaultConfig should have non-empty Device.ID")
	}
	if cfg.Server.Port != 80 {
		t.Errorf("defaultConfig Server.Port = %d, want 80", cfg.Server.Port)
	}
	if cfg.Display.IdleMinutes != 5 {
		t.Errorf("defaultConfig Display.IdleMinutes = %d, want 5", cfg.Display.IdleMinutes)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Enabled || cfg.InfluxDB.Enabled {
		t.Error("defaultConfig should leave MQTT and InfluxDB disabled")
	}
}
