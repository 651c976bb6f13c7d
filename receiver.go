package multidisplay

import (
	"context"

	"github.com/pkg/errors"
)

// Receiver reads frames from a connection for as long as it stays open and
// turns them into queue entries. It is the only reader of the connection.
type Receiver struct {
	conn         *Conn
	codec        Codec
	queue        *Queue
	materializer *Materializer
	logger       Logger
	onError      func(error)
}

// NewReceiver returns a Receiver. A nil codec selects an unbounded FrameCodec.
func NewReceiver(conn *Conn, codec Codec, queue *Queue, materializer *Materializer, logger Logger) *Receiver {
	if codec == nil {
		codec = NewFrameCodec(0)
	}
	if logger == nil {
		logger = defaultLogger()
	}
	return &Receiver{
		conn:         conn,
		codec:        codec,
		queue:        queue,
		materializer: materializer,
		logger:       logger,
		onError:      func(error) {},
	}
}

// Run decodes frames until the connection fails, is closed, or ctx is
// canceled. Canceling ctx closes the connection to unblock the pending read.
//
// Any decode error, including a protocol error, closes the connection: the
// stream carries no markers to resynchronize on. Run returns nil when the
// connection was closed locally, ctx.Err() on cancellation and the decode
// error otherwise.
func (r *Receiver) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = r.conn.Close() })
	defer stop()

	for r.conn.IsConnected() {
		msg, err := r.codec.Decode(r.conn)
		if err != nil {
			return r.terminate(ctx, err)
		}
		r.handle(msg)
	}

	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

func (r *Receiver) terminate(ctx context.Context, err error) error {
	r.conn.fail(err)

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if r.conn.Err() == nil {
		r.logger.Debug("receiver stopped", "addr", r.conn.Addr())
		return nil
	}

	r.logger.Warn("receive failed, disconnecting", "addr", r.conn.Addr(), "error", err)
	r.onError(err)
	return err
}

func (r *Receiver) handle(msg Message) {
	switch m := msg.(type) {
	case *StringMessage:
		r.handle(*m)
	case *ObjectMessage:
		r.handle(*m)

	case StringMessage:
		r.logger.Debug("text received", "display_id", m.DisplayID, "text", m.Text)
		r.queue.Enqueue(Entry{DisplayID: m.DisplayID, Kind: EntryText, Payload: m.Text})

	case ObjectMessage:
		r.logger.Debug("file received", "display_id", m.DisplayID, "file", m.FileName, "bytes", len(m.FileBytes))
		path, err := r.materializer.Materialize(m.FileName, m.FileBytes)
		if err != nil {
			r.logger.Error("dropping file", "display_id", m.DisplayID, "file", m.FileName, "error", err)
			r.onError(err)
			return
		}
		r.queue.Enqueue(Entry{DisplayID: m.DisplayID, Kind: EntryFile, Payload: path})

	default:
		err := errors.Wrapf(ErrUnsupportedMessage, "%T", msg)
		r.logger.Warn("dropping message", "error", err)
		r.onError(err)
	}
}
