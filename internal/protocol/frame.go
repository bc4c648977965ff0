package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Frame is the raw wire form of a message
type Frame struct {
	Type     string
	Flags    string
	ClientID string
	Body     []byte
}

// Envelope returns the routing fields of the frame
func (f Frame) Envelope() Envelope {
	return Envelope{Flags: f.Flags, ClientID: f.ClientID}
}

// NewFrame encodes m's body and routing into a frame
func NewFrame(m Message) (Frame, error) {
	body, err := m.Body()
	if err != nil {
		return Frame{}, fmt.Errorf("encode %s body: %w", m.Type(), err)
	}
	env := m.Routing().normalized()
	return Frame{Type: m.Type(), Flags: env.Flags, ClientID: env.ClientID, Body: body}, nil
}

// Encode serializes m as a single frame
func Encode(m Message) ([]byte, error) {
	f, err := NewFrame(m)
	if err != nil {
		return nil, err
	}
	return f.MarshalBinary()
}

// MarshalBinary renders the frame header followed by its body
func (f Frame) MarshalBinary() ([]byte, error) {
	env := f.Envelope().normalized()
	if err := checkField("type", f.Type, TypeSize); err != nil {
		return nil, err
	}
	if err := checkField("flags", env.Flags, FlagsSize); err != nil {
		return nil, err
	}
	if err := checkField("client id", env.ClientID, ClientIDSize); err != nil {
		return nil, err
	}
	if len(f.Body) > MaxBodySize {
		return nil, fmt.Errorf("%w: body of %d bytes exceeds %d", ErrInvalidFrame, len(f.Body), MaxBodySize)
	}

	buf := make([]byte, HeaderSize+len(f.Body))
	copy(buf[0:], f.Type)
	copy(buf[TypeSize:], env.Flags)
	copy(buf[TypeSize+FlagsSize:], env.ClientID)
	binary.BigEndian.PutUint32(buf[HeaderSize-LengthSize:], uint32(len(f.Body)))
	copy(buf[HeaderSize:], f.Body)
	return buf, nil
}

// ReadFrame reads exactly one frame from r.
// It returns io.EOF only when r ends cleanly between frames.
func ReadFrame(r io.Reader) (Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("%w: short header", ErrTruncatedFrame)
		}
		return Frame{}, err
	}

	f := Frame{
		Type:     string(header[0:TypeSize]),
		Flags:    string(header[TypeSize : TypeSize+FlagsSize]),
		ClientID: string(header[TypeSize+FlagsSize : HeaderSize-LengthSize]),
	}
	if err := checkField("type", f.Type, TypeSize); err != nil {
		return Frame{}, err
	}

	length := int32(binary.BigEndian.Uint32(header[HeaderSize-LengthSize:]))
	if length < 0 || length > MaxBodySize {
		return Frame{}, fmt.Errorf("%w: body length %d", ErrInvalidFrame, length)
	}

	f.Body = make([]byte, length)
	if _, err := io.ReadFull(r, f.Body); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return Frame{}, fmt.Errorf("%w: want %d body bytes", ErrTruncatedFrame, length)
		}
		return Frame{}, err
	}
	return f, nil
}

// WriteFrame encodes m and writes it to w in a single call
func WriteFrame(w io.Writer, m Message) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func checkField(name, value string, size int) error {
	if len(value) != size {
		return fmt.Errorf("%w: %s %q must be %d bytes", ErrInvalidFrame, name, value, size)
	}
	for i := 0; i < len(value); i++ {
		if value[i] < 0x20 || value[i] > 0x7e {
			return fmt.Errorf("%w: %s %q is not printable ASCII", ErrInvalidFrame, name, value)
		}
	}
	return nil
}
