// Package multidisplay implements the client side of a multi-display
// installation link: a persistent TCP connection to a central server that
// pushes text commands and files to addressable displays.
//
// Frames are decoded on a dedicated goroutine, files are written to a
// per-session temp directory and the resulting entries are queued for the
// application, which drains them once per tick.
package multidisplay

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// ConnectionState is the lifecycle state of a connection.
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Closing
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// Conn owns one TCP socket.
// Reads and writes may run concurrently from different goroutines; writes are
// serialized so a frame is never interleaved with another one.
type Conn struct {
	rawConn *net.TCPConn
	logger  Logger

	writeTimeout time.Duration
	wmu          sync.Mutex

	state        atomic.Int32
	mu           sync.Mutex
	cause        error
	closeOnce    sync.Once
	closeErr     error
	disconnected chan struct{}
}

// Dial opens a TCP connection to host:port. It does not retry.
func Dial(ctx context.Context, host string, port int, opt ...Option) (*Conn, error) {
	opts, err := newOptions(opt...)
	if err != nil {
		return nil, err
	}
	return dial(ctx, host, port, opts)
}

func dial(ctx context.Context, host string, port int, opts options) (*Conn, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: opts.dialTimeout}

	raw, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Op: "dial", Err: errors.Wrap(err, addr)}
	}

	tcpConn, ok := raw.(*net.TCPConn)
	if !ok {
		_ = raw.Close()
		return nil, &ConnectionError{Op: "dial", Err: errors.Errorf("%s: unexpected connection type %T", addr, raw)}
	}

	return newConn(tcpConn, opts), nil
}

// NewConn wraps an already established TCP connection.
func NewConn(conn *net.TCPConn, opt ...Option) (*Conn, error) {
	opts, err := newOptions(opt...)
	if err != nil {
		return nil, err
	}
	return newConn(conn, opts), nil
}

func newConn(raw *net.TCPConn, opts options) *Conn {
	c := &Conn{
		rawConn:      raw,
		logger:       opts.logger,
		writeTimeout: opts.writeTimeout,
		disconnected: make(chan struct{}),
	}
	c.state.Store(int32(Connected))
	return c
}

// State returns the current connection state. Safe for concurrent use.
func (c *Conn) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// IsConnected reports whether the connection is usable.
func (c *Conn) IsConnected() bool {
	return c.State() == Connected
}

// Read reads from the socket. A failed read closes the connection.
func (c *Conn) Read(p []byte) (int, error) {
	n, err := c.rawConn.Read(p)
	if err != nil {
		c.fail(err)
	}
	return n, err
}

// Write writes p with a single call to the socket.
// A failed write closes the connection and is returned as a ConnectionError.
func (c *Conn) Write(p []byte) error {
	if !c.IsConnected() {
		return &ConnectionError{Op: "write", Err: ErrConnectionClosed}
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.rawConn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}

	if _, err := c.rawConn.Write(p); err != nil {
		c.logger.Debug("write error", "addr", c.Addr(), "error", err)
		c.fail(err)
		return &ConnectionError{Op: "write", Err: err}
	}
	return nil
}

// Close closes the socket. It is safe to call multiple times and from any
// goroutine; the socket is released exactly once. A blocked Read returns
// with an error.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.state.Store(int32(Closing))
		c.closeErr = c.rawConn.Close()
		c.state.Store(int32(Disconnected))
		close(c.disconnected)
		c.logger.Debug("connection closed", "addr", c.Addr())
	})
	return c.closeErr
}

// Disconnected returns a channel that is closed once the connection is closed.
func (c *Conn) Disconnected() <-chan struct{} {
	return c.disconnected
}

// Err returns the failure that closed the connection, or nil if it is still
// open or was closed with Close.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cause
}

// Addr returns the remote address of the connection.
func (c *Conn) Addr() net.Addr {
	return c.rawConn.RemoteAddr()
}

// fail records err as the reason the connection ended, unless it was already
// closing, and closes it.
func (c *Conn) fail(err error) {
	c.mu.Lock()
	if c.cause == nil && c.IsConnected() {
		c.cause = err
	}
	c.mu.Unlock()

	_ = c.Close()
}
