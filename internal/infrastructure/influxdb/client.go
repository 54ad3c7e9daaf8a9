package influxdb

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/keycounter-core/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds
)

// Logger is the logging interface for connection and write failures.
// Compatible with logging.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// Stats counts the points handed to the write API and the batches it
// failed to deliver.
type Stats struct {
	Telemetry   int64 `json:"telemetry"`
	Host        int64 `json:"host"`
	WriteErrors int64 `json:"write_errors"`
}

// Client records counter telemetry and host samples in an InfluxDB v2
// bucket through the non-blocking write API.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Writes are batched; failed batches are logged and counted in Stats.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig
	logger   Logger

	connected atomic.Bool

	telemetry   atomic.Int64
	host        atomic.Int64
	writeErrors atomic.Int64
}

// Connect pings the server and opens a batched write API for the
// configured org and bucket. A nil logger discards output.
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: ErrDisabled when influxdb.enabled is false, or
//     ErrConnectionFailed when the server cannot be reached or is unhealthy
func Connect(cfg config.InfluxDBConfig, logger Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	if logger == nil {
		logger = noopLogger{}
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), defaultConnectTimeout)
	defer cancel()

	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:      cfg,
		logger:   logger,
	}
	c.connected.Store(true)
	go c.logWriteErrors(c.writeAPI.Errors())

	logger.Info("InfluxDB connected", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)
	return c, nil
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return err
	}
	if !healthy {
		return ErrUnhealthy
	}
	return nil
}

// clientOptions maps batch settings onto the client, falling back to
// defaults for non-positive values.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = defaultFlushInterval
	}

	// #nosec G115 -- both values are positive
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batchSize)).
		SetFlushInterval(uint(time.Duration(flushInterval) * time.Second / time.Millisecond))
}

// logWriteErrors drains the write API's error channel until Close.
func (c *Client) logWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		n := c.writeErrors.Add(1)
		c.logger.Warn("InfluxDB batch not written, telemetry history has a gap",
			"bucket", c.cfg.Bucket,
			"failures", n,
			"error", err,
		)
	}
}

// Close flushes pending points and closes the underlying client.
func (c *Client) Close() error {
	if c.client == nil || !c.connected.Swap(false) {
		return nil
	}

	c.writeAPI.Flush()
	c.client.Close()

	st := c.Stats()
	c.logger.Info("InfluxDB closed",
		"telemetry_points", st.Telemetry,
		"host_points", st.Host,
		"write_errors", st.WriteErrors,
	)
	return nil
}

// HealthCheck pings the server.
//
// Returns:
//   - error: nil when healthy, ErrNotConnected after Close, or
//     ErrUnhealthy wrapping the ping failure
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if err := ping(checkCtx, c.client); err != nil {
		if errors.Is(err, ErrUnhealthy) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	return nil
}

// IsConnected reports whether the client is open. Use HealthCheck for an
// active check.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Stats returns the write counters.
func (c *Client) Stats() Stats {
	return Stats{
		Telemetry:   c.telemetry.Load(),
		Host:        c.host.Load(),
		WriteErrors: c.writeErrors.Load(),
	}
}
