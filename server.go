package multidisplay

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Handler serves one installation connected to a Server.
type Handler interface {
	// Handle is called on its own goroutine for each new peer. The peer is
	// closed and unregistered when Handle returns.
	Handle(peer *Peer)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(peer *Peer)

func (f HandlerFunc) Handle(peer *Peer) { f(peer) }

// Server is the content side of the link: it accepts installations and
// pushes text and files to their displays.
type Server struct {
	listener        *net.TCPListener
	logger          Logger
	codec           Codec
	shutdownTimeout time.Duration

	mu          sync.Mutex
	shutdown    bool
	peers       map[string]*Peer
	shutdownNow chan struct{} // signals immediate shutdown, bypassing timeout
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// ServerLoggerOption sets the logger for the server and its peers.
func ServerLoggerOption(logger Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// ServerCodecOption replaces the frame codec used with every peer.
func ServerCodecOption(codec Codec) ServerOption {
	return func(s *Server) {
		s.codec = codec
	}
}

// ServerShutdownTimeoutOption sets the graceful shutdown timeout.
// When the context is canceled, the server will wait up to this duration
// before closing the listener.
func ServerShutdownTimeoutOption(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.shutdownTimeout = timeout
	}
}

// NewServer creates a server bound to the specified address.
func NewServer(addr *net.TCPAddr, opts ...ServerOption) (*Server, error) {
	listener, err := net.ListenTCP(addr.Network(), addr)
	if err != nil {
		return nil, &ConnectionError{Op: "listen", Err: err}
	}

	s := &Server{
		listener:    listener,
		logger:      slog.Default(),
		codec:       NewFrameCodec(0),
		peers:       make(map[string]*Peer),
		shutdownNow: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Serve accepts installations and hands each to handler.
// It blocks until the context is canceled or an unrecoverable error occurs.
func (s *Server) Serve(ctx context.Context, handler Handler) error {
	s.logger.Info("server started", "addr", s.listener.Addr())

	go func() {
		<-ctx.Done()

		if s.shutdownTimeout > 0 {
			s.logger.Info("graceful shutdown initiated", "timeout", s.shutdownTimeout)
			select {
			case <-time.After(s.shutdownTimeout):
			case <-s.shutdownNow:
				s.logger.Debug("shutdown timeout bypassed via Close()")
			}
		}

		s.mu.Lock()
		s.shutdown = true
		s.mu.Unlock()
		// Set a deadline to unblock Accept
		_ = s.listener.SetDeadline(time.Now())
	}()

	for {
		conn, err := s.listener.AcceptTCP()
		if err != nil {
			s.mu.Lock()
			isShutdown := s.shutdown
			s.mu.Unlock()

			if isShutdown {
				s.logger.Info("server stopped", "addr", s.listener.Addr())
				return ctx.Err()
			}

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			s.logger.Error("accept error", "error", err)
			return &ConnectionError{Op: "accept", Err: err}
		}

		_ = conn.SetNoDelay(true)
		peer := s.register(conn)
		s.logger.Info("installation connected", "peer", peer.ID(), "addr", peer.Addr())

		go func() {
			defer s.unregister(peer)
			handler.Handle(peer)
		}()
	}
}

func (s *Server) register(raw *net.TCPConn) *Peer {
	peer := &Peer{
		id:     uuid.NewString(),
		conn:   newConn(raw, options{logger: s.logger, writeTimeout: defaultWriteTimeout}),
		codec:  s.codec,
		logger: s.logger,
	}

	s.mu.Lock()
	s.peers[peer.id] = peer
	s.mu.Unlock()
	return peer
}

func (s *Server) unregister(peer *Peer) {
	_ = peer.Close()

	s.mu.Lock()
	delete(s.peers, peer.id)
	s.mu.Unlock()

	s.logger.Info("installation disconnected", "peer", peer.ID())
}

// Peers returns the currently connected installations.
func (s *Server) Peers() []*Peer {
	s.mu.Lock()
	defer s.mu.Unlock()

	peers := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	return peers
}

// BroadcastText sends text for displayID to every installation and returns
// how many received it. Failed peers are logged and skipped.
func (s *Server) BroadcastText(displayID uint8, text string) int {
	return s.broadcast(StringMessage{DisplayID: displayID, Text: text})
}

// BroadcastFile sends a file for displayID to every installation and returns
// how many received it.
func (s *Server) BroadcastFile(displayID uint8, fileName string, data []byte) int {
	return s.broadcast(ObjectMessage{DisplayID: displayID, FileName: fileName, FileBytes: data})
}

func (s *Server) broadcast(msg Message) int {
	sent := 0
	for _, p := range s.Peers() {
		if err := p.Send(msg); err != nil {
			s.logger.Warn("broadcast failed", "peer", p.ID(), "kind", msg.Kind(), "error", err)
			continue
		}
		sent++
	}
	return sent
}

// Close stops the server by closing the underlying listener.
// If a shutdown timeout is configured, Close() bypasses the remaining timeout.
// Connected peers are left to their handlers.
func (s *Server) Close() error {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	select {
	case s.shutdownNow <- struct{}{}:
	default:
	}

	return s.listener.Close()
}

// Addr returns the listener's network address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Peer is one installation connected to a Server.
type Peer struct {
	id     string
	conn   *Conn
	codec  Codec
	logger Logger
}

// ID returns the id the server assigned to the peer.
func (p *Peer) ID() string {
	return p.id
}

// Addr returns the remote address of the peer.
func (p *Peer) Addr() net.Addr {
	return p.conn.Addr()
}

// Send encodes msg and writes it to the peer.
func (p *Peer) Send(msg Message) error {
	data, err := p.codec.Encode(msg)
	if err != nil {
		return err
	}
	return p.conn.Write(data)
}

// SendText pushes a text command to one display of the installation.
func (p *Peer) SendText(displayID uint8, text string) error {
	return p.Send(StringMessage{DisplayID: displayID, Text: text})
}

// SendFile pushes a file to one display of the installation.
func (p *Peer) SendFile(displayID uint8, fileName string, data []byte) error {
	return p.Send(ObjectMessage{DisplayID: displayID, FileName: fileName, FileBytes: data})
}

// Receive reads user input sent by the installation and passes it to fn until
// the peer disconnects or ctx is canceled. A clean disconnect returns nil.
func (p *Peer) Receive(ctx context.Context, fn func(StringMessage)) error {
	stop := context.AfterFunc(ctx, func() { _ = p.conn.Close() })
	defer stop()

	for {
		msg, err := p.codec.Decode(p.conn)
		if err != nil {
			p.conn.fail(err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if cause := p.conn.Err(); cause == nil || errors.Is(cause, io.EOF) {
				return nil
			}
			return err
		}

		m, ok := msg.(StringMessage)
		if !ok {
			p.logger.Warn("ignoring message from installation", "peer", p.id, "kind", msg.Kind())
			continue
		}
		fn(m)
	}
}

// Close disconnects the peer.
func (p *Peer) Close() error {
	return p.conn.Close()
}
