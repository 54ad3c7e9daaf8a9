package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"github.com/nerrad567/keycounter-core/internal/device"
)

// Protocol defaults.
const (
	// DefaultReadTimeout bounds how long a silent peer may hold the slot.
	DefaultReadTimeout = 30 * time.Second

	// DefaultMaxMessageSize is the largest single message buffered.
	DefaultMaxMessageSize = 1024

	// defaultReadBufferSize is the size of one socket read.
	defaultReadBufferSize = 1024

	// writeTimeout bounds the acknowledgement write.
	writeTimeout = 5 * time.Second
)

// ack is written back for every accepted message.
var ack = []byte(`{"status":"ok"}`)

// Config holds server settings.
type Config struct {
	ReadTimeout    time.Duration
	MaxMessageSize int
}

// DispatchFunc receives each accepted message, synchronously, on the
// connection's goroutine.
type DispatchFunc func(p device.Payload)

// Logger defines the logging interface used by the Server.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Server accepts telemetry connections one at a time.
//
// Only one peer is serviced at a time: the next connection is accepted
// after the current one closes. Each accepted message is acknowledged and
// then dispatched before the next read.
//
// Thread Safety:
//   - Serve must not be called concurrently on the same Server.
//   - Stats and ActiveConnection are safe from any goroutine.
type Server struct {
	cfg      Config
	dispatch DispatchFunc
	logger   Logger

	activeMu sync.Mutex
	active   net.Conn
	activeID string

	connections atomic.Uint64
	accepted    atomic.Uint64
	dropped     atomic.Uint64
	oversized   atomic.Uint64
}

// NewServer creates a server that hands accepted messages to dispatch.
func NewServer(cfg Config, dispatch DispatchFunc) *Server {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}
	return &Server{
		cfg:      cfg,
		dispatch: dispatch,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the server.
func (s *Server) SetLogger(logger Logger) {
	s.logger = logger
}

// Serve accepts and services connections on ln until ctx is cancelled or
// the listener fails.
//
// Cancelling ctx closes the listener and the active connection.
//
// Returns:
//   - error: ctx.Err() on cancellation, otherwise ErrAccept wrapping the
//     listener error. Serve never returns nil.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() {
		ln.Close()
		s.closeActive()
	})
	defer stop()

	s.logger.Info("telemetry server listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: %w", ErrAccept, err)
		}
		s.handle(ctx, conn)
	}
}

// handle services one connection until the peer closes, a read fails or
// times out, or ctx is cancelled.
func (s *Server) handle(ctx context.Context, conn net.Conn) {
	connID := xid.New().String()
	s.connections.Add(1)
	s.setActive(conn, connID)
	defer func() {
		conn.Close()
		s.setActive(nil, "")
	}()

	// The connection may have been accepted just as ctx was cancelled
	if ctx.Err() != nil {
		return
	}

	s.logger.Info("telemetry peer connected", "conn_id", connID, "remote", conn.RemoteAddr().String())

	framer := NewFramer(s.cfg.MaxMessageSize)
	buf := make([]byte, defaultReadBufferSize)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			s.logger.Warn("set read deadline failed", "conn_id", connID, "error", err)
			return
		}

		n, err := conn.Read(buf)
		if n > 0 {
			if !s.process(conn, connID, framer, buf[:n]) {
				return
			}
		}
		if err != nil {
			s.logReadEnd(connID, err)
			return
		}
		if n == 0 {
			s.logger.Debug("empty read, closing", "conn_id", connID)
			return
		}
	}
}

// process frames one read and handles every complete message in it.
// It returns false when the connection should be closed.
func (s *Server) process(conn net.Conn, connID string, framer *Framer, data []byte) bool {
	msgs, err := framer.Feed(data)
	switch {
	case errors.Is(err, ErrMessageTooLarge):
		s.oversized.Add(1)
		s.logger.Warn("discarding oversized message",
			"conn_id", connID,
			"limit", s.cfg.MaxMessageSize,
		)
	case errors.Is(err, ErrTruncated):
		s.dropped.Add(1)
		s.logger.Debug("discarding truncated message", "conn_id", connID)
	}

	for _, raw := range msgs {
		p, err := device.DecodePayload(raw)
		if err != nil {
			s.dropped.Add(1)
			s.logger.Debug("message dropped", "conn_id", connID, "error", err)
			continue
		}

		if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			s.logger.Warn("set write deadline failed", "conn_id", connID, "error", err)
			return false
		}
		if _, err := conn.Write(ack); err != nil {
			s.logger.Warn("acknowledgement failed, closing", "conn_id", connID, "error", err)
			return false
		}

		s.accepted.Add(1)
		if s.dispatch != nil {
			s.dispatch(p)
		}
	}

	return true
}

// logReadEnd records why a read loop stopped.
func (s *Server) logReadEnd(connID string, err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		s.logger.Info("telemetry peer disconnected", "conn_id", connID)
	case errors.As(err, &netErr) && netErr.Timeout():
		s.logger.Info("telemetry peer idle, closing", "conn_id", connID, "timeout", s.cfg.ReadTimeout)
	case errors.Is(err, net.ErrClosed):
		s.logger.Debug("connection closed", "conn_id", connID)
	default:
		s.logger.Warn("read failed, closing", "conn_id", connID, "error", err)
	}
}

func (s *Server) setActive(conn net.Conn, id string) {
	s.activeMu.Lock()
	s.active = conn
	s.activeID = id
	s.activeMu.Unlock()
}

func (s *Server) closeActive() {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	if s.active != nil {
		s.active.Close()
	}
}

// ActiveConnection returns the ID of the connection being serviced, or ""
// when the slot is free.
func (s *Server) ActiveConnection() string {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	return s.activeID
}

// Stats contains server counters.
type Stats struct {
	Connections uint64 `json:"connections"`
	Accepted    uint64 `json:"accepted"`
	Dropped     uint64 `json:"dropped"`
	Oversized   uint64 `json:"oversized"`
}

// Stats returns current counters.
func (s *Server) Stats() Stats {
	return Stats{
		Connections: s.connections.Load(),
		Accepted:    s.accepted.Load(),
		Dropped:     s.dropped.Load(),
		Oversized:   s.oversized.Load(),
	}
}
