// Package protocol implements the binary frame format exchanged with the relay
// and the registry that maps four character type tags to message decoders.
package protocol

import "errors"

// Field widths of the frame header
const (
	TypeSize     = 4
	FlagsSize    = 2
	ClientIDSize = 2
	LengthSize   = 4
	HeaderSize   = TypeSize + FlagsSize + ClientIDSize + LengthSize
)

// MaxBodySize bounds the body length accepted from the wire
const MaxBodySize = 1 << 20

// Defaults used when an envelope field is left empty
const (
	DefaultFlags    = "  "
	DefaultClientID = "--"
)

var (
	// ErrUnknownMessageType is returned when no decoder is registered for a frame type
	ErrUnknownMessageType = errors.New("unknown message type")
	// ErrMalformedBody is returned when a decoder rejects a frame body
	ErrMalformedBody = errors.New("malformed message body")
	// ErrTruncatedFrame is returned when the stream ends part way through a frame
	ErrTruncatedFrame = errors.New("truncated frame")
	// ErrInvalidFrame is returned for header fields that cannot be encoded or decoded
	ErrInvalidFrame = errors.New("invalid frame")
)

// Envelope carries the routing fields shared by every message
type Envelope struct {
	Flags    string
	ClientID string
}

// To returns an envelope addressed to clientID with default flags
func To(clientID string) Envelope {
	return Envelope{Flags: DefaultFlags, ClientID: clientID}
}

// Routing returns the envelope itself so embedding types satisfy Message
func (e Envelope) Routing() Envelope {
	return e
}

func (e Envelope) normalized() Envelope {
	if e.Flags == "" {
		e.Flags = DefaultFlags
	}
	if e.ClientID == "" {
		e.ClientID = DefaultClientID
	}
	return e
}

// Message is one application-level unit carried in a frame
type Message interface {
	// Type is the four character tag identifying the message kind
	Type() string
	// Routing returns the flags and client id of the message
	Routing() Envelope
	// Body encodes the type-specific payload
	Body() ([]byte, error)
}
