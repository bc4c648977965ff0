package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"
)

// Built-in message types
const (
	TypeHello         = "HELO"
	TypeHeartbeat     = "HRTB"
	TypeJoin          = "JOIN"
	TypeLeft          = "LEFT"
	TypeDisconnect    = "DISC"
	TypeReconnect     = "RECN"
	TypeStart         = "STRT"
	TypeGameEnd       = "GEND"
	TypePlayerMessage = "PMSG"
	TypePing          = "PING"
	TypePong          = "PONG"
)

func systemDecoders() map[string]DecodeFunc {
	return map[string]DecodeFunc{
		TypeHello:         emptyDecoder(func(env Envelope) Message { return Hello{env} }),
		TypeLeft:          emptyDecoder(func(env Envelope) Message { return Left{env} }),
		TypeDisconnect:    emptyDecoder(func(env Envelope) Message { return Disconnect{env} }),
		TypeReconnect:     emptyDecoder(func(env Envelope) Message { return Reconnect{env} }),
		TypeGameEnd:       emptyDecoder(func(env Envelope) Message { return GameEnd{env} }),
		TypeHeartbeat:     decodeHeartbeat,
		TypeJoin:          jsonDecoder(func(env Envelope, p map[string]any) Message { return Join{env, p} }),
		TypeStart:         jsonDecoder(func(env Envelope, p map[string]any) Message { return Start{env, p} }),
		TypePlayerMessage: jsonDecoder(func(env Envelope, p map[string]any) Message { return PlayerMessage{env, p} }),
		TypePing:          millisDecoder(func(env Envelope, t time.Time) Message { return Ping{env, t} }),
		TypePong:          millisDecoder(func(env Envelope, t time.Time) Message { return Pong{env, t} }),
	}
}

// Hello announces a client to its peer
type Hello struct{ Envelope }

func (Hello) Type() string          { return TypeHello }
func (Hello) Body() ([]byte, error) { return nil, nil }

// Left reports that a client left the game
type Left struct{ Envelope }

func (Left) Type() string          { return TypeLeft }
func (Left) Body() ([]byte, error) { return nil, nil }

// Disconnect reports that a client's stream dropped
type Disconnect struct{ Envelope }

func (Disconnect) Type() string          { return TypeDisconnect }
func (Disconnect) Body() ([]byte, error) { return nil, nil }

// Reconnect reports that a client's stream came back
type Reconnect struct{ Envelope }

func (Reconnect) Type() string          { return TypeReconnect }
func (Reconnect) Body() ([]byte, error) { return nil, nil }

// GameEnd signals the end of the game
type GameEnd struct{ Envelope }

func (GameEnd) Type() string          { return TypeGameEnd }
func (GameEnd) Body() ([]byte, error) { return nil, nil }

// Heartbeat carries a 16 bit sequence number that wraps at 65536
type Heartbeat struct {
	Envelope
	Sequence uint16
}

// NewHeartbeat builds a heartbeat, reducing seq modulo 65536
func NewHeartbeat(env Envelope, seq int) Heartbeat {
	return Heartbeat{Envelope: env, Sequence: uint16(seq & 0xffff)}
}

func (Heartbeat) Type() string { return TypeHeartbeat }

func (m Heartbeat) Body() ([]byte, error) {
	return binary.BigEndian.AppendUint16(nil, m.Sequence), nil
}

func decodeHeartbeat(f Frame) (Message, error) {
	if len(f.Body) != 2 {
		return nil, fmt.Errorf("%w: heartbeat body is %d bytes", ErrMalformedBody, len(f.Body))
	}
	return Heartbeat{f.Envelope(), binary.BigEndian.Uint16(f.Body)}, nil
}

// Join carries a JSON object describing a joining player
type Join struct {
	Envelope
	Payload map[string]any
}

func (Join) Type() string            { return TypeJoin }
func (m Join) Body() ([]byte, error) { return encodeJSON(m.Payload) }

// Start carries a JSON object sent when the game starts
type Start struct {
	Envelope
	Payload map[string]any
}

func (Start) Type() string            { return TypeStart }
func (m Start) Body() ([]byte, error) { return encodeJSON(m.Payload) }

// PlayerMessage carries an application-defined JSON object
type PlayerMessage struct {
	Envelope
	Payload map[string]any
}

func (PlayerMessage) Type() string            { return TypePlayerMessage }
func (m PlayerMessage) Body() ([]byte, error) { return encodeJSON(m.Payload) }

// Ping carries a send time with millisecond precision
type Ping struct {
	Envelope
	Time time.Time
}

// NewPing builds a ping stamped with t truncated to whole milliseconds
func NewPing(env Envelope, t time.Time) Ping {
	return Ping{Envelope: env, Time: time.UnixMilli(t.UnixMilli())}
}

func (Ping) Type() string            { return TypePing }
func (m Ping) Body() ([]byte, error) { return encodeMillis(m.Time), nil }

// Seconds returns the stamped time as fractional seconds since the epoch
func (m Ping) Seconds() float64 { return float64(m.Time.UnixMilli()) / 1000.0 }

// Pong answers a ping, echoing or restamping the time
type Pong struct {
	Envelope
	Time time.Time
}

// NewPong builds a pong stamped with t truncated to whole milliseconds
func NewPong(env Envelope, t time.Time) Pong {
	return Pong{Envelope: env, Time: time.UnixMilli(t.UnixMilli())}
}

func (Pong) Type() string            { return TypePong }
func (m Pong) Body() ([]byte, error) { return encodeMillis(m.Time), nil }

// Seconds returns the stamped time as fractional seconds since the epoch
func (m Pong) Seconds() float64 { return float64(m.Time.UnixMilli()) / 1000.0 }

// Raw preserves the body of a frame whose type has no registered decoder
type Raw struct {
	Envelope
	Tag  string
	Data []byte
}

func (m Raw) Type() string          { return m.Tag }
func (m Raw) Body() ([]byte, error) { return m.Data, nil }

// DecodeRaw is a fallback decoder that keeps unknown frames intact
func DecodeRaw(f Frame) (Message, error) {
	return Raw{Envelope: f.Envelope(), Tag: f.Type, Data: f.Body}, nil
}

func encodeJSON(payload map[string]any) ([]byte, error) {
	if payload == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(payload)
}

func jsonDecoder(build func(Envelope, map[string]any) Message) DecodeFunc {
	return func(f Frame) (Message, error) {
		var payload map[string]any
		if err := json.Unmarshal(f.Body, &payload); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedBody, f.Type, err)
		}
		// json null unmarshals into a nil map without error
		if payload == nil {
			return nil, fmt.Errorf("%w: %s body is not a json object", ErrMalformedBody, f.Type)
		}
		return build(f.Envelope(), payload), nil
	}
}

func emptyDecoder(build func(Envelope) Message) DecodeFunc {
	return func(f Frame) (Message, error) {
		if len(f.Body) != 0 {
			return nil, fmt.Errorf("%w: %s takes no body, got %d bytes", ErrMalformedBody, f.Type, len(f.Body))
		}
		return build(f.Envelope()), nil
	}
}

func encodeMillis(t time.Time) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(t.UnixMilli()))
}

func millisDecoder(build func(Envelope, time.Time) Message) DecodeFunc {
	return func(f Frame) (Message, error) {
		if len(f.Body) != 8 {
			return nil, fmt.Errorf("%w: %s timestamp body is %d bytes", ErrMalformedBody, f.Type, len(f.Body))
		}
		return build(f.Envelope(), time.UnixMilli(int64(binary.BigEndian.Uint64(f.Body)))), nil
	}
}
