package multidisplay

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Default configuration values.
const (
	// defaultDialTimeout bounds a single connect attempt.
	defaultDialTimeout = 10 * time.Second
	// defaultWriteTimeout bounds a single outbound frame write.
	defaultWriteTimeout = 30 * time.Second
	// tempDirPrefix names the per-client directory under the OS temp folder.
	tempDirPrefix = "multidisplay-"
)

// options holds the configuration for a client and its connections.
type options struct {
	codec  Codec
	logger Logger

	// onError observes every error surfaced by a session. It cannot change
	// how the error is handled.
	onError func(error)

	dialTimeout   time.Duration
	writeTimeout  time.Duration
	queueLimit    int    // 0 means unbounded
	maxObjectSize int    // 0 means unbounded
	tempDir       string // materialized files land here
}

// Option is a function that configures client options.
type Option func(*options)

// checkOptions validates and sets default values for options.
func checkOptions(opts *options) error {
	if opts.queueLimit < 0 {
		return ErrInvalidQueueLimit
	}

	if opts.maxObjectSize < 0 {
		opts.maxObjectSize = 0
	}

	if opts.codec == nil {
		opts.codec = NewFrameCodec(opts.maxObjectSize)
	}

	if opts.dialTimeout <= 0 {
		opts.dialTimeout = defaultDialTimeout
	}

	if opts.writeTimeout <= 0 {
		opts.writeTimeout = defaultWriteTimeout
	}

	if opts.tempDir == "" {
		opts.tempDir = filepath.Join(os.TempDir(), tempDirPrefix+uuid.NewString())
	}

	if opts.onError == nil {
		opts.onError = func(error) {}
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	return nil
}

func newOptions(opt ...Option) (options, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}
	return opts, checkOptions(&opts)
}

// CustomCodecOption returns an Option that replaces the STR/OBJ frame codec.
func CustomCodecOption(codec Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// OnErrorOption returns an Option that sets the error observer.
// It is invoked from the receiving goroutine for dropped files and for the
// error that ended a session.
func OnErrorOption(cb func(error)) Option {
	return func(o *options) {
		o.onError = cb
	}
}

// DialTimeoutOption returns an Option that bounds each connect attempt.
func DialTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.dialTimeout = timeout
	}
}

// WriteTimeoutOption returns an Option that sets the write deadline of each outbound frame.
func WriteTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = timeout
	}
}

// QueueLimitOption returns an Option that bounds the inbound queue.
// When the limit is reached the oldest entry is dropped. Zero keeps the queue unbounded.
func QueueLimitOption(limit int) Option {
	return func(o *options) {
		o.queueLimit = limit
	}
}

// MaxObjectSizeOption returns an Option that bounds the size of a received
// object record. Larger records end the session. Zero means unbounded.
// It only applies to the default codec.
func MaxObjectSizeOption(size int) Option {
	return func(o *options) {
		o.maxObjectSize = size
	}
}

// TempDirOption returns an Option that sets the directory received files are
// written to. The directory is wiped at the start of every session.
func TempDirOption(path string) Option {
	return func(o *options) {
		o.tempDir = path
	}
}
