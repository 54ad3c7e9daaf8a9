package allowlist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/keycounter-core/internal/device"
)

// DefaultTimeout bounds one fetch.
const DefaultTimeout = 10 * time.Second

// maxBodySize caps the response body read.
const maxBodySize = 1 << 20

// Config holds client settings.
type Config struct {
	URL      string
	Path     string
	Token    string
	DeviceID string
	Timeout  time.Duration
}

// Logger defines the logging interface for the client.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Client requests the allow-list.
type Client struct {
	cfg    Config
	http   *http.Client
	logger Logger
}

// NewClient creates a client. A nil httpClient uses one with cfg.Timeout.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient, logger: noopLogger{}}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// Endpoint returns the request URL.
func (c *Client) Endpoint() string {
	return strings.TrimRight(c.cfg.URL, "/") + "/" + strings.TrimLeft(c.cfg.Path, "/")
}

// Fetch returns the allowed device IDs, or an empty list on any failure.
// localIP is sent in the Local-Ip header.
func (c *Client) Fetch(ctx context.Context, localIP string) []device.ID {
	if c.cfg.URL == "" {
		return nil
	}

	ids, err := c.fetch(ctx, localIP)
	if err != nil {
		c.logger.Warn("allow-list fetch failed, admitting all devices", "url", c.Endpoint(), "error", err)
		return nil
	}

	c.logger.Debug("allow-list fetched", "devices", len(ids))
	return ids
}

func (c *Client) fetch(ctx context.Context, localIP string) ([]device.ID, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint(), nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Local-Ip", localIP)
	req.Header.Set("Device-Id", c.cfg.DeviceID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	return Decode(body)
}

// Decode parses a device list. Accepted shapes are a bare array or an
// object with a "devices" array; each entry is an ID (number or string) or
// an object carrying "id" or "device_id".
func Decode(body []byte) ([]device.ID, error) {
	body = bytes.TrimSpace(body)

	var entries []json.RawMessage
	switch {
	case bytes.HasPrefix(body, []byte("[")):
		if err := json.Unmarshal(body, &entries); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
	case bytes.HasPrefix(body, []byte("{")):
		var wrapped struct {
			Devices []json.RawMessage `json:"devices"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		entries = wrapped.Devices
	default:
		return nil, fmt.Errorf("%w: not a JSON array or object", ErrDecode)
	}

	ids := make([]device.ID, 0, len(entries))
	for i, raw := range entries {
		id, err := decodeEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %w", ErrDecode, i, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func decodeEntry(raw json.RawMessage) (device.ID, error) {
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		var obj struct {
			ID       *device.ID `json:"id"`
			DeviceID *device.ID `json:"device_id"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", err
		}
		switch {
		case obj.ID != nil:
			return *obj.ID, nil
		case obj.DeviceID != nil:
			return *obj.DeviceID, nil
		default:
			return "", device.ErrMissingDeviceID
		}
	}

	var id device.ID
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", err
	}
	return id, nil
}
