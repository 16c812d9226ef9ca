// Package client implements the receiving end of the event relay: it dials
// an event server, reads the button count handshake and then yields one
// event batch per frame.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/Alia5/joyrelay/event"
	"github.com/Alia5/joyrelay/frame"
	"github.com/Alia5/joyrelay/relayerr"
)

// DefaultAddr is where Dial connects when no address is given.
const DefaultAddr = "localhost:8001"

// Config controls dialing and reading.
type Config struct {
	DialTimeout time.Duration
	// ReadTimeout bounds how long one frame read may block. 0 means forever.
	ReadTimeout time.Duration
	// MaxFrameSize rejects larger frames. 0 disables the check.
	MaxFrameSize uint32
}

func defaultConfig() Config {
	return Config{
		DialTimeout:  3 * time.Second,
		MaxFrameSize: 1 << 20,
	}
}

// Client is a connected event stream. Reads are serialized; Close may be
// called from any goroutine and unblocks a pending read.
type Client struct {
	conn    net.Conn
	fr      *frame.Reader
	cfg     Config
	buttons int

	readMu    sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to addr and completes the handshake. A nil cfg uses the
// defaults. The returned error matches relayerr.ErrConnectionClosed if the
// server hangs up before sending the button count.
func Dial(ctx context.Context, addr string, cfg *Config) (*Client, error) {
	c := defaultConfig()
	if cfg != nil {
		c = *cfg
	}
	if addr == "" {
		addr = DefaultAddr
	}
	d := &net.Dialer{Timeout: c.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			slog.Warn("failed to set TCP_NODELAY", "error", err)
		}
	}
	cl, err := NewFromConn(ctx, conn, &c)
	if err != nil {
		return nil, fmt.Errorf("handshake with %s: %w", addr, err)
	}
	return cl, nil
}

// NewFromConn performs the handshake over an established connection. conn is
// closed if the handshake fails.
func NewFromConn(ctx context.Context, conn net.Conn, cfg *Config) (*Client, error) {
	c := defaultConfig()
	if cfg != nil {
		c = *cfg
	}
	fr := frame.NewReader(conn)
	fr.MaxSize = c.MaxFrameSize
	cl := &Client{conn: conn, fr: fr, cfg: c}

	payload, err := cl.read(ctx)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	n, err := event.UnmarshalButtonCount(payload)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	cl.buttons = n
	return cl, nil
}

// ButtonCount returns the number of buttons announced by the server.
func (c *Client) ButtonCount() int { return c.buttons }

// RemoteAddr returns the server address.
func (c *Client) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

// Next blocks for the next event batch. Cancelling ctx interrupts the read
// without losing stream position; the call returns ctx.Err().
func (c *Client) Next(ctx context.Context) (event.Batch, error) {
	payload, err := c.read(ctx)
	if err != nil {
		return nil, err
	}
	return event.UnmarshalBatch(payload)
}

// Listen reads one batch. ok is false once the connection is gone; it never
// panics.
func (c *Client) Listen() (batch event.Batch, ok bool) {
	batch, err := c.Next(context.Background())
	if err != nil {
		return nil, false
	}
	return batch, true
}

// Release closes the connection. It is safe to call more than once.
func (c *Client) Release() { _ = c.Close() }

// Close closes the connection. Later calls return the first result.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

var longAgo = time.Unix(1, 0)

func (c *Client) read(ctx context.Context) ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var deadline time.Time
	if c.cfg.ReadTimeout > 0 {
		deadline = time.Now().Add(c.cfg.ReadTimeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, relayerr.ConnectionClosed("set read deadline", err)
	}
	stop := context.AfterFunc(ctx, func() { _ = c.conn.SetReadDeadline(longAgo) })
	defer stop()

	payload, err := c.fr.Next()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return payload, nil
}
