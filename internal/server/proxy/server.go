package proxy

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/Alia5/joyrelay/internal/log"
)

// Server forwards connections to an event server and logs the relayed
// frames. Several clients may be proxied at once; the upstream server still
// serves them one after the other.
type Server struct {
	listenAddr        string
	upstreamAddr      string
	connectionTimeout time.Duration
	logger            *slog.Logger
	rawLogger         log.RawLogger

	ready chan struct{}
	mu    sync.Mutex
	ln    net.Listener
}

func New(listenAddr, upstreamAddr string, connectionTimeout time.Duration, logger *slog.Logger, rawLogger log.RawLogger) *Server {
	return &Server{
		listenAddr:        listenAddr,
		upstreamAddr:      upstreamAddr,
		connectionTimeout: connectionTimeout,
		logger:            logger,
		rawLogger:         rawLogger,
		ready:             make(chan struct{}),
	}
}

// Ready is closed once the proxy is listening.
func (s *Server) Ready() <-chan struct{} { return s.ready }

func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listenAddr, err)
	}
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	close(s.ready)
	s.logger.Info("Frame proxy listening", "addr", ln.Addr(), "upstream", s.upstreamAddr)

	for {
		clientConn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.logger.Info("Proxy server stopped")
				return nil
			}
			s.logger.Error("Accept error", "error", err)
			continue
		}
		s.logger.Info("Client connected", "remote", clientConn.RemoteAddr())
		go s.handleProxy(clientConn)
	}
}

// Addr returns the listening address, or nil before ListenAndServe.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

// handleProxy pipes one client to its own upstream connection. Both sides
// must see a first byte within connectionTimeout; the event server sends its
// handshake right after accepting, so a busy upstream ends the session.
func (s *Server) handleProxy(clientConn net.Conn) {
	defer clientConn.Close()
	logger := s.logger.With("client", clientConn.RemoteAddr())

	upstreamConn, err := net.DialTimeout("tcp", s.upstreamAddr, s.connectionTimeout)
	if err != nil {
		logger.Error("Failed to connect to upstream", "upstream", s.upstreamAddr, "error", err)
		return
	}
	defer upstreamConn.Close()

	logger.Info("Proxying connection", "upstream", upstreamConn.RemoteAddr())

	deadline := time.Now().Add(s.connectionTimeout)
	if err := clientConn.SetDeadline(deadline); err != nil {
		logger.Error("Failed to set client deadline", "error", err)
		return
	}
	if err := upstreamConn.SetDeadline(deadline); err != nil {
		logger.Error("Failed to set upstream deadline", "error", err)
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		n, err := s.copyWithLogging(logger, upstreamConn, clientConn, true)
		if err != nil && !isExpectedDisconnect(err) {
			logger.Debug("Client->Server copy error", "error", err)
		}
		logger.Debug("Client->Server stream ended", "bytes", n)
		halfClose(upstreamConn, true)
		halfClose(clientConn, false)
	}()

	go func() {
		defer wg.Done()
		n, err := s.copyWithLogging(logger, clientConn, upstreamConn, false)
		if err != nil && !isExpectedDisconnect(err) {
			logger.Debug("Server->Client copy error", "error", err)
		}
		logger.Debug("Server->Client stream ended", "bytes", n)
		halfClose(clientConn, true)
		halfClose(upstreamConn, false)
	}()

	wg.Wait()
	logger.Info("Connection closed")
}

func (s *Server) copyWithLogging(logger *slog.Logger, dst net.Conn, src net.Conn, clientToServer bool) (int64, error) {
	buf := make([]byte, 32*1024)
	var total int64
	parser := NewParser(logger)
	firstPacket := true

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			s.rawLogger.Log(clientToServer, buf[:n])

			parser.Parse(buf[:n], clientToServer)

			if firstPacket {
				err := src.SetDeadline(time.Time{})
				if err != nil {
					logger.Error("Failed to clear source deadline", "error", err)
					return total, err
				}
				err = dst.SetDeadline(time.Time{})
				if err != nil {
					logger.Error("Failed to clear destination deadline", "error", err)
					return total, err
				}
				firstPacket = false
			}

			wn, werr := dst.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
			if wn != n {
				return total, fmt.Errorf("short write: wrote %d of %d", wn, n)
			}
		}

		if rerr != nil {
			if rerr == io.EOF {
				return total, nil
			}
			return total, rerr
		}
	}
}

func halfClose(conn net.Conn, write bool) {
	if tc, ok := conn.(*net.TCPConn); ok {
		if write {
			_ = tc.CloseWrite()
		} else {
			_ = tc.CloseRead()
		}
	}
}

func isExpectedDisconnect(err error) bool {
	return err == nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}
