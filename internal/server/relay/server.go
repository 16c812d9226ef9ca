// Package relay implements the event server: it owns one device source and
// streams its button events, framed, to one TCP client at a time.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/Alia5/joyrelay/device"
	"github.com/Alia5/joyrelay/event"
	"github.com/Alia5/joyrelay/frame"
	"github.com/Alia5/joyrelay/internal/log"
)

// State is the server's position in its accept/stream cycle.
type State int32

const (
	StateIdle State = iota
	StateConnectingDevice
	StateListening
	StateAccepted
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnectingDevice:
		return "connecting-device"
	case StateListening:
		return "listening"
	case StateAccepted:
		return "accepted"
	case StateStreaming:
		return "streaming"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

type Server struct {
	config    Config
	src       device.Source
	logger    *slog.Logger
	rawLogger log.RawLogger

	ctx    context.Context
	cancel context.CancelFunc

	ready     chan struct{}
	readyOnce sync.Once

	mu    sync.Mutex
	ln    net.Listener
	conn  net.Conn
	state State
}

func New(config Config, src device.Source, logger *slog.Logger, rawLogger log.RawLogger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		config:    config,
		src:       src,
		logger:    logger,
		rawLogger: rawLogger,
		ctx:       ctx,
		cancel:    cancel,
		ready:     make(chan struct{}),
	}
}

// Ready returns a channel that is closed once the server has bound its
// listen address.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound listen address, or nil before Ready.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// State reports where the server currently is in its cycle.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Server) setState(st State) {
	s.mu.Lock()
	if s.state != StateClosed {
		s.state = st
	}
	s.mu.Unlock()
}

// ListenAndServe binds the listen address and serves clients one at a time
// until Close is called. It returns nil after Close, or the device error if
// the device is missing and retries are disabled.
func (s *Server) ListenAndServe() error {
	lc := net.ListenConfig{Control: control}
	ln, err := lc.Listen(s.ctx, "tcp", s.config.Addr)
	if err != nil {
		if s.ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })
	s.logger.Info("Event server listening", "addr", ln.Addr().String())

	defer s.src.Close()
	defer ln.Close()

	deviceReady := false
	for {
		if !deviceReady {
			if err := s.connectDevice(); err != nil {
				if s.ctx.Err() != nil {
					return nil
				}
				return err
			}
			deviceReady = true
		}

		s.setState(StateListening)
		c, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.logger.Info("Event server stopped")
				return nil
			}
			s.logger.Error("Accept error", "error", err)
			continue
		}

		deviceLost, err := s.handleConn(c)
		switch {
		case s.ctx.Err() != nil:
			s.logger.Info("Event server stopped")
			return nil
		case deviceLost:
			s.logger.Warn("Device lost; dropping client", "error", err)
			_ = s.src.Close()
			deviceReady = false
		case isClientDisconnect(err):
			s.logger.Info("Client disconnected", "error", err)
		case err != nil:
			s.logger.Error("Connection handler error", "error", err)
		}
	}
}

// Close stops the server, dropping the active client. The device is
// released when ListenAndServe returns.
func (s *Server) Close() error {
	s.cancel()
	s.mu.Lock()
	s.state = StateClosed
	ln, conn := s.ln, s.conn
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
	}
	if conn != nil {
		_ = conn.Close()
	}
	return err
}

func (s *Server) connectDevice() error {
	s.setState(StateConnectingDevice)
	for {
		err := s.src.Connect(s.ctx)
		if err == nil {
			s.logger.Info("Device connected", "name", s.src.Name(), "buttons", s.src.ButtonCount())
			return nil
		}
		if s.ctx.Err() != nil {
			return s.ctx.Err()
		}
		if s.config.DeviceRetryInterval <= 0 {
			return fmt.Errorf("connect device: %w", err)
		}
		s.logger.Warn("Device not available, retrying", "error", err, "in", s.config.DeviceRetryInterval)
		if err := device.Wait(s.ctx, s.config.DeviceRetryInterval); err != nil {
			return err
		}
	}
}

// handleConn sends the button count and then one batch per poll until the
// client goes away or the device fails. deviceLost reports the latter.
func (s *Server) handleConn(c net.Conn) (deviceLost bool, err error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		_ = c.Close()
		return false, nil
	}
	s.conn = c
	s.state = StateAccepted
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		_ = c.Close()
	}()

	logger := s.logger.With("session", uuid.NewString(), "remote", c.RemoteAddr().String())
	logger.Info("Client connected")
	conn := &logConn{Conn: c, s: s}

	count := s.src.ButtonCount()
	payload, err := event.MarshalButtonCount(count)
	if err != nil {
		return false, err
	}
	if err := s.send(conn, payload); err != nil {
		return false, fmt.Errorf("send button count: %w", err)
	}
	logger.Debug("Handshake sent", "buttons", count)

	s.setState(StateStreaming)
	for {
		raw, err := s.src.Poll(s.ctx)
		if err != nil {
			if s.ctx.Err() != nil {
				return false, nil
			}
			return true, fmt.Errorf("poll device: %w", err)
		}
		batch := event.Filter(raw)
		payload, err := event.MarshalBatch(batch)
		if err != nil {
			return false, err
		}
		if err := s.send(conn, payload); err != nil {
			return false, fmt.Errorf("send batch: %w", err)
		}
		if len(batch) > 0 {
			logger.Debug("Batch sent", "events", len(batch))
		}
	}
}

func (s *Server) send(conn net.Conn, payload []byte) error {
	if s.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout)); err != nil {
			return err
		}
	}
	return frame.Write(conn, payload)
}

type logConn struct {
	net.Conn
	s *Server
}

func (lc *logConn) Write(p []byte) (int, error) {
	n, err := lc.Conn.Write(p)
	if n > 0 && lc.s.rawLogger != nil {
		lc.s.rawLogger.Log(false, p[:n])
	}
	return n, err
}

func isClientDisconnect(err error) bool {
	if err == nil {
		return false
	}
	if frame.IsClosed(err) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	e := strings.ToLower(err.Error())
	return strings.Contains(e, "connection reset") ||
		strings.Contains(e, "broken pipe") ||
		strings.Contains(e, "forcibly closed")
}
