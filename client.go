package multidisplay

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// session is the state of one successful connection.
type session struct {
	id     string
	conn   *Conn
	sender *Sender
	cancel context.CancelFunc
	group  *errgroup.Group
}

// Client connects an installation to its server. Content pushed by the server
// is queued by a background goroutine and applied to the Display on Tick.
//
// Tick, SendUserInput and TakeDisconnect are meant to be called from the
// application's update loop; Connect and Close may be called from anywhere.
type Client struct {
	opts       options
	queue      *Queue
	tempDir    *TempDir
	dispatcher *Dispatcher

	mu         sync.Mutex // serializes Connect and Close
	connecting atomic.Bool
	current    atomic.Pointer[session]
	lost       atomic.Bool
}

// NewClient returns a Client applying received content to display.
func NewClient(display Display, opt ...Option) (*Client, error) {
	if display == nil {
		return nil, ErrInvalidDisplay
	}

	opts, err := newOptions(opt...)
	if err != nil {
		return nil, err
	}

	queue := NewQueue(opts.queueLimit)
	tempDir := NewTempDir(opts.tempDir)

	return &Client{
		opts:       opts,
		queue:      queue,
		tempDir:    tempDir,
		dispatcher: NewDispatcher(queue, display, tempDir.Path(), opts.logger),
	}, nil
}

// Connect opens a session with the server at host:port. The temp directory is
// wiped and the receiving goroutine started. A failed attempt is not retried.
func (c *Client) Connect(ctx context.Context, host string, port int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s := c.current.Load(); s != nil && s.conn.IsConnected() {
		return ErrAlreadyConnected
	}
	_ = c.stop()

	c.connecting.Store(true)
	defer c.connecting.Store(false)

	conn, err := dial(ctx, host, port, c.opts)
	if err != nil {
		c.opts.logger.Error("unable to connect", "host", host, "port", port, "error", err)
		return err
	}

	if err := c.tempDir.Reset(); err != nil {
		_ = conn.Close()
		return errors.WithMessage(err, "reset temp dir")
	}
	if stale := c.queue.Drain(); len(stale) > 0 {
		c.opts.logger.Debug("discarded entries of previous session", "count", len(stale))
	}

	s := &session{
		id:     uuid.NewString(),
		conn:   conn,
		sender: NewSender(conn, c.opts.codec, c.opts.logger),
	}
	c.lost.Store(false)
	c.start(s)
	c.current.Store(s)

	c.opts.logger.Info("connected", "session", s.id, "addr", conn.Addr(), "temp_dir", c.tempDir.Path())
	return nil
}

// start runs the receiver alongside a watcher that turns an unexpected end of
// the connection into the disconnect signal.
func (c *Client) start(s *session) {
	ctx, cancel := context.WithCancel(context.Background())
	group, child := errgroup.WithContext(ctx)
	s.cancel = cancel
	s.group = group

	receiver := NewReceiver(s.conn, c.opts.codec, c.queue, NewMaterializer(c.tempDir, c.opts.logger), c.opts.logger)
	receiver.onError = c.opts.onError

	group.Go(func() error {
		return receiver.Run(child)
	})

	group.Go(func() error {
		select {
		case <-child.Done():
			_ = s.conn.Close()
		case <-s.conn.Disconnected():
		}

		if err := s.conn.Err(); err != nil {
			c.opts.logger.Info("disconnected", "session", s.id, "addr", s.conn.Addr(), "error", err)
			c.lost.Store(true)
		}
		return nil
	})
}

// stop ends the current session, if any, and waits for its goroutines.
func (c *Client) stop() error {
	s := c.current.Load()
	if s == nil {
		return nil
	}

	s.cancel()
	err := s.group.Wait()
	_ = s.conn.Close()

	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// Close ends the current session. It is safe to call multiple times. Closing
// does not raise the disconnect signal. Files already received are kept.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.current.Load()
	if s == nil {
		return nil
	}

	// The error that ended the session was already reported through onError.
	_ = c.stop()
	c.opts.logger.Info("client closed", "session", s.id)
	return nil
}

// Wait blocks until the current session ends and returns the error that ended
// it, or nil if it was closed locally.
func (c *Client) Wait() error {
	s := c.current.Load()
	if s == nil {
		return nil
	}

	err := s.group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Tick applies everything received since the last tick to the display and
// returns how many entries were applied. It never blocks on the network.
func (c *Client) Tick() int {
	return c.dispatcher.Tick()
}

// SendUserInput sends user input for a display to the server.
func (c *Client) SendUserInput(displayID int, text string) error {
	s := c.current.Load()
	if s == nil {
		return &ConnectionError{Op: "write", Err: ErrConnectionClosed}
	}
	return s.sender.SendUserInput(displayID, text)
}

// TakeDisconnect reports whether the connection was lost since the last call.
// It returns true once per lost session.
func (c *Client) TakeDisconnect() bool {
	return c.lost.Swap(false)
}

// State returns the state of the current connection.
func (c *Client) State() ConnectionState {
	if c.connecting.Load() {
		return Connecting
	}
	s := c.current.Load()
	if s == nil {
		return Disconnected
	}
	return s.conn.State()
}

// Session returns the id of the current or last session, or "" before the
// first successful Connect.
func (c *Client) Session() string {
	if s := c.current.Load(); s != nil {
		return s.id
	}
	return ""
}

// Err returns the error that ended the current session, or nil.
func (c *Client) Err() error {
	if s := c.current.Load(); s != nil {
		return s.conn.Err()
	}
	return nil
}

// TempDir returns the directory received files are written to.
func (c *Client) TempDir() *TempDir {
	return c.tempDir
}

// Pending returns the number of entries waiting for the next Tick.
func (c *Client) Pending() int {
	return c.queue.Len()
}
