package multidisplay

import (
	"github.com/pkg/errors"
)

// Sender writes user input from the displays back to the server.
type Sender struct {
	conn   *Conn
	codec  Codec
	logger Logger
}

// NewSender returns a Sender writing to conn. A nil codec selects FrameCodec.
func NewSender(conn *Conn, codec Codec, logger Logger) *Sender {
	if codec == nil {
		codec = NewFrameCodec(0)
	}
	if logger == nil {
		logger = defaultLogger()
	}
	return &Sender{conn: conn, codec: codec, logger: logger}
}

// SendUserInput sends text for displayID as one STR frame.
// displayID must be within 0-255 and text at most 255 bytes; out-of-range
// input is rejected with a ProtocolError rather than truncated.
// Write failures are returned, not retried.
func (s *Sender) SendUserInput(displayID int, text string) error {
	if displayID < 0 || displayID > MaxDisplayID {
		return &ProtocolError{Op: "encode", Err: errors.Wrapf(ErrDisplayIDRange, "%d", displayID)}
	}

	data, err := s.codec.Encode(StringMessage{DisplayID: uint8(displayID), Text: text})
	if err != nil {
		return err
	}

	if err := s.conn.Write(data); err != nil {
		return err
	}

	s.logger.Debug("user input sent", "display_id", displayID, "text", text)
	return nil
}
