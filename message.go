package multidisplay

import "io"

// Frame tags. Every frame on the wire starts with one of them.
const (
	TagString = "STR"
	TagObject = "OBJ"

	tagLength = 3
)

// Wire limits imposed by the one-byte fields of a STR frame.
const (
	MaxDisplayID  = 255
	MaxTextLength = 255
)

// Kind identifies the variant of a Message.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return TagString
	case KindObject:
		return TagObject
	default:
		return "unknown"
	}
}

// Message is a decoded frame addressed to one display.
type Message interface {
	// Kind returns the variant of the message.
	Kind() Kind
	// Display returns the id of the display the message is addressed to.
	Display() uint8
}

// StringMessage is a UI or command update for one display.
type StringMessage struct {
	DisplayID uint8
	Text      string
}

func (m StringMessage) Kind() Kind     { return KindString }
func (m StringMessage) Display() uint8 { return m.DisplayID }

// ObjectMessage is a file payload for one display.
type ObjectMessage struct {
	DisplayID uint8
	FileName  string
	FileBytes []byte
}

func (m ObjectMessage) Kind() Kind     { return KindObject }
func (m ObjectMessage) Display() uint8 { return m.DisplayID }

// Codec is the interface for message encoding and decoding.
//
// Decode reads from an io.Reader so the codec controls exactly how many bytes
// a frame consumes, which handles TCP stream fragmentation.
type Codec interface {
	// Decode reads and decodes exactly one frame from the reader.
	Decode(r io.Reader) (Message, error)
	// Encode encodes a Message into raw bytes for transmission.
	Encode(Message) ([]byte, error)
}
