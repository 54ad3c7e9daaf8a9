package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for KeyCounter Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device     DeviceConfig     `yaml:"device"`
	Server     ServerConfig     `yaml:"server"`
	Display    DisplayConfig    `yaml:"display"`
	Wireless   WirelessConfig   `yaml:"wireless"`
	API        APIConfig        `yaml:"api"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Host       HostConfig       `yaml:"host"`
	Logging    LoggingConfig    `yaml:"logging"`

	// Debug forces debug-level logging regardless of logging.level.
	Debug bool `yaml:"debug"`
}

// DeviceConfig identifies this display unit.
type DeviceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ServerConfig contains the telemetry listener settings.
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	ReadTimeout    int    `yaml:"read_timeout"`     // seconds
	MaxMessageSize int    `yaml:"max_message_size"` // bytes buffered for one partial message
}

// DisplayConfig contains panel and idle-shutdown settings.
type DisplayConfig struct {
	// IdleMinutes powers the panel off after this many minutes without
	// telemetry while in telemetry mode. 0 disables idle shutdown.
	IdleMinutes    int    `yaml:"idle_minutes"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
	Width          int    `yaml:"width"`
	Height         int    `yaml:"height"`
	SnapshotPath   string `yaml:"snapshot_path"`
	Brightness     int    `yaml:"brightness"` // 0-100
}

// WirelessConfig contains station credentials and identity.
type WirelessConfig struct {
	Interface     string        `yaml:"interface"`
	SSID          string        `yaml:"ssid"` // empty with no alternates: host-managed link
	Password      string        `yaml:"password"`
	Alternates    []AccessPoint `yaml:"alternates"`
	Country       string        `yaml:"country"`
	Hostname      string        `yaml:"hostname"`
	RetryInterval int           `yaml:"retry_interval"` // seconds
}

// AccessPoint is a fallback network tried when the primary SSID is not visible.
type AccessPoint struct {
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
}

// APIConfig contains the allow-list endpoint settings.
type APIConfig struct {
	URL     string `yaml:"url"`
	Path    string `yaml:"path"`
	Token   string `yaml:"token"`
	Timeout int    `yaml:"timeout"` // seconds
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// SupervisorConfig contains restart backoff settings for the listener.
type SupervisorConfig struct {
	RestartDelay    int `yaml:"restart_delay"`     // seconds
	MaxRestartDelay int `yaml:"max_restart_delay"` // seconds
	StableThreshold int `yaml:"stable_threshold"`  // seconds
}

// HostConfig contains host temperature sampling settings.
type HostConfig struct {
	SampleInterval int    `yaml:"sample_interval"` // seconds
	SensorKey      string `yaml:"sensor_key"`      // empty picks the first sensor reported
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// minMessageSize is the smallest accepted server.max_message_size.
const minMessageSize = 64

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: KEYCOUNTER_SECTION_KEY
// For example: KEYCOUNTER_SERVER_PORT, KEYCOUNTER_API_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:   "keycounter-01",
			Name: "KeyCounter",
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           80,
			ReadTimeout:    30,
			MaxMessageSize: 1024,
		},
		Display: DisplayConfig{
			IdleMinutes:    5,
			PollIntervalMS: 50,
			Width:          320,
			Height:         240,
			Brightness:     80,
		},
		Wireless: WirelessConfig{
			Interface:     "wlan0",
			Country:       "ES",
			Hostname:      "KeyCounter",
			RetryInterval: 1,
		},
		API: APIConfig{
			Timeout: 10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "keycounter",
			},
			QoS:         1,
			TopicPrefix: "keycounter",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Supervisor: SupervisorConfig{
			RestartDelay:    5,
			MaxRestartDelay: 60,
			StableThreshold: 120,
		},
		Host: HostConfig{
			SampleInterval: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				Path:       "./logs/keycounter.log",
				MaxSize:    10,
				MaxBackups: 3,
				MaxAge:     28,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: KEYCOUNTER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("KEYCOUNTER_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// Server
	if v := os.Getenv("KEYCOUNTER_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v, ok := envInt("KEYCOUNTER_SERVER_PORT"); ok {
		cfg.Server.Port = v
	}

	// Display
	if v, ok := envInt("KEYCOUNTER_DISPLAY_IDLE_MINUTES"); ok {
		cfg.Display.IdleMinutes = v
	}

	// Wireless credentials are usually kept out of the YAML file
	if v := os.Getenv("KEYCOUNTER_WIRELESS_SSID"); v != "" {
		cfg.Wireless.SSID = v
	}
	if v := os.Getenv("KEYCOUNTER_WIRELESS_PASSWORD"); v != "" {
		cfg.Wireless.Password = v
	}

	// API
	if v := os.Getenv("KEYCOUNTER_API_URL"); v != "" {
		cfg.API.URL = v
	}
	if v := os.Getenv("KEYCOUNTER_API_TOKEN"); v != "" {
		cfg.API.Token = v
	}

	// MQTT
	if v := os.Getenv("KEYCOUNTER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("KEYCOUNTER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("KEYCOUNTER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("KEYCOUNTER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Debug
	if v := os.Getenv("KEYCOUNTER_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Debug = b
		}
	}
}

// envInt reads an integer environment variable; malformed values are ignored.
func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.MaxMessageSize < minMessageSize {
		errs = append(errs, fmt.Sprintf("server.max_message_size must be at least %d", minMessageSize))
	}

	// Display validation
	if c.Display.IdleMinutes < 0 {
		errs = append(errs, "display.idle_minutes cannot be negative")
	}
	if c.Display.PollIntervalMS <= 0 {
		errs = append(errs, "display.poll_interval_ms must be positive")
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		errs = append(errs, "display.width and display.height must be positive")
	}
	if c.Display.Brightness < 0 || c.Display.Brightness > 100 {
		errs = append(errs, "display.brightness must be between 0 and 100")
	}

	// Wireless validation
	for i, ap := range c.Wireless.Alternates {
		if ap.SSID == "" {
			errs = append(errs, fmt.Sprintf("wireless.alternates[%d].ssid is required", i))
		}
	}

	// MQTT validation
	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// Supervisor validation
	if c.Supervisor.RestartDelay <= 0 {
		errs = append(errs, "supervisor.restart_delay must be positive")
	}
	if c.Supervisor.MaxRestartDelay < c.Supervisor.RestartDelay {
		errs = append(errs, "supervisor.max_restart_delay must not be less than restart_delay")
	}

	// Logging validation
	if strings.EqualFold(c.Logging.Output, "file") && c.Logging.File.Path == "" {
		errs = append(errs, "logging.file.path is required when logging.output is file")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ListenAddress returns the host:port the telemetry server binds to.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetReadTimeout returns the per-read socket timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeout) * time.Second
}

// GetIdleTimeout returns the display idle-shutdown threshold as a Duration.
// Zero means idle shutdown is disabled.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Display.IdleMinutes) * time.Minute
}

// GetPollInterval returns the display poll loop interval as a Duration.
func (c *Config) GetPollInterval() time.Duration {
	return time.Duration(c.Display.PollIntervalMS) * time.Millisecond
}

// GetAPITimeout returns the allow-list request timeout as a Duration.
func (c *Config) GetAPITimeout() time.Duration {
	return time.Duration(c.API.Timeout) * time.Second
}

// GetRetryInterval returns the wireless association retry interval as a Duration.
func (c *Config) GetRetryInterval() time.Duration {
	return time.Duration(c.Wireless.RetryInterval) * time.Second
}

// GetSampleInterval returns the host temperature sampling interval as a Duration.
func (c *Config) GetSampleInterval() time.Duration {
	return time.Duration(c.Host.SampleInterval) * time.Second
}
