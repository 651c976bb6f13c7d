package multidisplay

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the object record.
const (
	fieldDisplayID    protowire.Number = 1
	fieldFileName     protowire.Number = 2
	fieldFileContents protowire.Number = 3
)

// initialRecordBuffer caps the up-front allocation for an object record so a
// bogus length prefix cannot reserve memory before the bytes actually arrive.
const initialRecordBuffer = 1 << 20

// FrameCodec implements the STR/OBJ wire format.
//
//	STR: "STR" | displayId(1) | textLen(1) | text(textLen, UTF-8)
//	OBJ: "OBJ" | varint(recordLen) | record(recordLen)
//
// The OBJ record is a protobuf message: displayId (field 1, varint),
// fileName (field 2, string), fileContents (field 3, bytes).
//
// An unrecognized tag is a ProtocolError. The stream has no resynchronization
// markers, so the caller is expected to drop the connection.
type FrameCodec struct {
	maxObjectSize int
}

// NewFrameCodec returns a FrameCodec. maxObjectSize bounds the OBJ record
// length; zero means unbounded.
func NewFrameCodec(maxObjectSize int) *FrameCodec {
	if maxObjectSize < 0 {
		maxObjectSize = 0
	}
	return &FrameCodec{maxObjectSize: maxObjectSize}
}

// Decode reads one complete frame.
func (c *FrameCodec) Decode(r io.Reader) (Message, error) {
	var tag [tagLength]byte
	if _, err := io.ReadFull(r, tag[:]); err != nil {
		return nil, &ConnectionError{Op: "read tag", Err: err}
	}

	switch string(tag[:]) {
	case TagString:
		return c.decodeString(r)
	case TagObject:
		return c.decodeObject(r)
	default:
		return nil, &ProtocolError{Op: "read tag", Err: errors.Wrapf(ErrUnknownTag, "%q", tag[:])}
	}
}

func (c *FrameCodec) decodeString(r io.Reader) (Message, error) {
	var header [2]byte
	if err := readFrameBody(r, header[:], "read string header"); err != nil {
		return nil, err
	}

	text := make([]byte, header[1])
	if err := readFrameBody(r, text, "read string body"); err != nil {
		return nil, err
	}

	return StringMessage{
		DisplayID: header[0],
		Text:      strings.ToValidUTF8(string(text), "\uFFFD"),
	}, nil
}

func (c *FrameCodec) decodeObject(r io.Reader) (Message, error) {
	size, err := readVarint(r)
	if err != nil {
		return nil, err
	}
	if size > math.MaxInt || (c.maxObjectSize > 0 && size > uint64(c.maxObjectSize)) {
		return nil, &ProtocolError{Op: "read object length", Err: errors.Wrapf(ErrMessageTooLarge, "%d bytes", size)}
	}

	buf := bytes.NewBuffer(make([]byte, 0, min(int(size), initialRecordBuffer)))
	if _, err := io.CopyN(buf, r, int64(size)); err != nil {
		return nil, &ConnectionError{Op: "read object record", Err: unexpected(err)}
	}

	msg, err := unmarshalObject(buf.Bytes())
	if err != nil {
		return nil, &ProtocolError{Op: "parse object record", Err: err}
	}
	return msg, nil
}

// Encode encodes a StringMessage or an ObjectMessage.
func (c *FrameCodec) Encode(message Message) ([]byte, error) {
	switch m := message.(type) {
	case StringMessage:
		return encodeString(m)
	case *StringMessage:
		return encodeString(*m)
	case ObjectMessage:
		return encodeObject(m), nil
	case *ObjectMessage:
		return encodeObject(*m), nil
	default:
		return nil, &ProtocolError{Op: "encode", Err: errors.Wrapf(ErrUnsupportedMessage, "%T", message)}
	}
}

func encodeString(m StringMessage) ([]byte, error) {
	if len(m.Text) > MaxTextLength {
		return nil, &ProtocolError{Op: "encode", Err: errors.Wrapf(ErrTextTooLong, "%d bytes", len(m.Text))}
	}

	frame := make([]byte, 0, tagLength+2+len(m.Text))
	frame = append(frame, TagString...)
	frame = append(frame, m.DisplayID, byte(len(m.Text)))
	frame = append(frame, m.Text...)
	return frame, nil
}

func encodeObject(m ObjectMessage) []byte {
	record := marshalObject(m)

	frame := make([]byte, 0, tagLength+binary.MaxVarintLen64+len(record))
	frame = append(frame, TagObject...)
	frame = protowire.AppendVarint(frame, uint64(len(record)))
	frame = append(frame, record...)
	return frame
}

func marshalObject(m ObjectMessage) []byte {
	b := protowire.AppendTag(nil, fieldDisplayID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.DisplayID))
	b = protowire.AppendTag(b, fieldFileName, protowire.BytesType)
	b = protowire.AppendString(b, m.FileName)
	b = protowire.AppendTag(b, fieldFileContents, protowire.BytesType)
	b = protowire.AppendBytes(b, m.FileBytes)
	return b
}

// unmarshalObject parses an object record. Unknown fields are skipped and
// missing fields keep their zero value.
func unmarshalObject(b []byte) (ObjectMessage, error) {
	var (
		msg       ObjectMessage
		displayID uint64
	)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return msg, errors.Wrap(ErrMalformedRecord, protowire.ParseError(n).Error())
		}
		b = b[n:]

		switch {
		case num == fieldDisplayID && typ == protowire.VarintType:
			displayID, n = protowire.ConsumeVarint(b)
		case num == fieldFileName && typ == protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			msg.FileName = string(v)
		case num == fieldFileContents && typ == protowire.BytesType:
			msg.FileBytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return msg, errors.Wrapf(ErrMalformedRecord, "field %d: %v", num, protowire.ParseError(n))
		}
		b = b[n:]
	}

	// protobuf int32 sign-extends negatives to ten bytes, so they land here too.
	if displayID > MaxDisplayID {
		return msg, errors.Wrapf(ErrDisplayIDRange, "%d", int64(displayID))
	}
	msg.DisplayID = uint8(displayID)
	return msg, nil
}

// readVarint reads a base128 length prefix one byte at a time so that no
// byte past the prefix is consumed.
func readVarint(r io.Reader) (uint64, error) {
	var buf [binary.MaxVarintLen64]byte
	for i := range buf {
		if err := readFrameBody(r, buf[i:i+1], "read object length"); err != nil {
			return 0, err
		}
		if buf[i] < 0x80 {
			v, n := protowire.ConsumeVarint(buf[:i+1])
			if n < 0 {
				return 0, &ProtocolError{Op: "read object length", Err: errors.Wrap(ErrMalformedRecord, protowire.ParseError(n).Error())}
			}
			return v, nil
		}
	}
	return 0, &ProtocolError{Op: "read object length", Err: errors.Wrap(ErrMalformedRecord, "varint overflow")}
}

// readFrameBody reads bytes that belong to a frame whose tag was already
// consumed, so running out of input is always an unexpected EOF.
func readFrameBody(r io.Reader, p []byte, op string) error {
	if _, err := io.ReadFull(r, p); err != nil {
		return &ConnectionError{Op: op, Err: unexpected(err)}
	}
	return nil
}

func unexpected(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
