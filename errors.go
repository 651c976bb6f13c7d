package multidisplay

import (
	"github.com/pkg/errors"
)

// Sentinel errors. Typed errors below wrap them, so callers match with errors.Is.
var (
	// ErrConnectionClosed is returned when operating on a closed connection.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrAlreadyConnected is returned by Connect while a session is still alive.
	ErrAlreadyConnected = errors.New("already connected")
	// ErrInvalidDisplay is returned when no display is provided to NewClient.
	ErrInvalidDisplay = errors.New("invalid display")
	// ErrInvalidQueueLimit is returned for a negative queue limit.
	ErrInvalidQueueLimit = errors.New("invalid queue limit")

	// ErrUnknownTag is returned when a frame starts with an unrecognized tag.
	ErrUnknownTag = errors.New("unknown frame tag")
	// ErrTextTooLong is returned when a text does not fit the one-byte length field.
	ErrTextTooLong = errors.New("text too long")
	// ErrDisplayIDRange is returned when a display id is outside 0-255.
	ErrDisplayIDRange = errors.New("display id out of range")
	// ErrMalformedRecord is returned when an object record cannot be parsed.
	ErrMalformedRecord = errors.New("malformed object record")
	// ErrMessageTooLarge is returned when an object record exceeds the configured maximum.
	ErrMessageTooLarge = errors.New("message too large")
	// ErrUnsupportedMessage is returned when encoding a message the codec does not know.
	ErrUnsupportedMessage = errors.New("unsupported message")

	// ErrInvalidFileName is returned when a received file name cannot be stored.
	ErrInvalidFileName = errors.New("invalid file name")
)

// ConnectionError reports a connect, read or write failure.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return "connection " + e.Op + ": " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError reports a frame that violates the wire format: an unknown tag,
// a malformed length or an out-of-range field.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return "protocol " + e.Op + ": " + e.Err.Error()
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IOError reports a failure to store a received file.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return "io " + e.Path + ": " + e.Err.Error()
}

func (e *IOError) Unwrap() error { return e.Err }

// IsFatal reports whether err ends a session. Only file storage failures are
// local to the file being delivered.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ioErr *IOError
	return !errors.As(err, &ioErr)
}
