// Package live serves a weft.Registry over HTTP and WebSocket. Connected
// clients subscribe to signals by name and receive an Update frame for
// every change, pushed synchronously from the write that caused it. Inbound
// Set frames apply through the registry, so a write from one client fans
// out to every subscriber of that signal.
package live

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Frame constants.
const (
	// FrameHeaderSize is the size of the frame header in bytes.
	FrameHeaderSize = 4

	// MaxPayloadSize is the maximum payload size (2^16 - 1 bytes).
	MaxPayloadSize = 65535

	// ProtocolVersion is negotiated in the Hello/HelloAck exchange.
	ProtocolVersion = 1
)

// FrameType identifies the type of frame.
type FrameType uint8

const (
	FrameHello    FrameType = 0x00 // Client → Server: open a session
	FrameHelloAck FrameType = 0x01 // Server → Client: session accepted
	FrameSub      FrameType = 0x02 // Client → Server: subscribe to names
	FrameUnsub    FrameType = 0x03 // Client → Server: drop subscriptions
	FrameSet      FrameType = 0x04 // Client → Server: write a signal
	FrameUpdate   FrameType = 0x05 // Server → Client: a subscribed signal changed
	FramePing     FrameType = 0x06 // Heartbeat request
	FramePong     FrameType = 0x07 // Heartbeat response
	FrameError    FrameType = 0x08 // Server → Client: request rejected
)

// String returns the string representation of the frame type.
func (ft FrameType) String() string {
	switch ft {
	case FrameHello:
		return "Hello"
	case FrameHelloAck:
		return "HelloAck"
	case FrameSub:
		return "Sub"
	case FrameUnsub:
		return "Unsub"
	case FrameSet:
		return "Set"
	case FrameUpdate:
		return "Update"
	case FramePing:
		return "Ping"
	case FramePong:
		return "Pong"
	case FrameError:
		return "Error"
	default:
		return "Unknown"
	}
}

// FrameFlags are optional flags for frame processing.
type FrameFlags uint8

const (
	// FlagInitial marks the Update that carries a signal's current value
	// right after subscription, before any change.
	FlagInitial FrameFlags = 0x01
)

// Has returns true if the flags contain the specified flag.
func (ff FrameFlags) Has(flag FrameFlags) bool {
	return ff&flag != 0
}

// Frame errors.
var (
	ErrFrameTooLarge = errors.New("live: frame payload too large")
	ErrShortFrame    = errors.New("live: frame shorter than header")
)

// Frame is one protocol message: a 4-byte header and a JSON payload.
//
// Wire format:
//
//	byte 0    frame type
//	byte 1    flags
//	bytes 2-3 payload length, big-endian
//	bytes 4+  payload
type Frame struct {
	Type    FrameType
	Flags   FrameFlags
	Payload []byte
}

// NewFrame creates a frame with the given type and payload.
func NewFrame(ft FrameType, payload []byte) *Frame {
	return &Frame{Type: ft, Payload: payload}
}

// Encode encodes the frame to bytes including the header.
func (f *Frame) Encode() []byte {
	length := len(f.Payload)
	buf := make([]byte, FrameHeaderSize+length)
	buf[0] = byte(f.Type)
	buf[1] = byte(f.Flags)
	buf[2] = byte(length >> 8)
	buf[3] = byte(length)
	copy(buf[FrameHeaderSize:], f.Payload)
	return buf
}

// DecodeFrame decodes a frame from bytes. The input must contain the full
// header and payload.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) < FrameHeaderSize {
		return nil, ErrShortFrame
	}

	length := int(data[2])<<8 | int(data[3])
	if len(data) < FrameHeaderSize+length {
		return nil, io.ErrUnexpectedEOF
	}

	payload := make([]byte, length)
	copy(payload, data[FrameHeaderSize:FrameHeaderSize+length])

	return &Frame{
		Type:    FrameType(data[0]),
		Flags:   FrameFlags(data[1]),
		Payload: payload,
	}, nil
}

// ReadFrame reads a complete frame from an io.Reader.
func ReadFrame(r io.Reader) (*Frame, error) {
	header := make([]byte, FrameHeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}

	length := int(header[2])<<8 | int(header[3])
	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, err
		}
	}

	return &Frame{
		Type:    FrameType(header[0]),
		Flags:   FrameFlags(header[1]),
		Payload: payload,
	}, nil
}

// WriteFrame writes a complete frame to an io.Writer.
func WriteFrame(w io.Writer, f *Frame) error {
	if len(f.Payload) > MaxPayloadSize {
		return ErrFrameTooLarge
	}
	_, err := w.Write(f.Encode())
	return err
}

// HelloPayload opens a session.
type HelloPayload struct {
	Protocol int    `json:"protocol"`
	Client   string `json:"client,omitempty"`
}

// HelloAckPayload confirms a session and lists the served signal names.
type HelloAckPayload struct {
	Protocol  int      `json:"protocol"`
	SessionID uint64   `json:"session_id"`
	Signals   []string `json:"signals"`
}

// SubPayload subscribes the session to the named signals.
type SubPayload struct {
	Names []string `json:"names"`
}

// UnsubPayload drops the named subscriptions.
type UnsubPayload struct {
	Names []string `json:"names"`
}

// SetPayload writes a value into the named signal.
type SetPayload struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
}

// UpdatePayload carries a changed signal value to a subscriber. Seq is a
// per-session counter so clients can detect gaps after a slow-consumer
// disconnect.
type UpdatePayload struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value"`
	Seq   uint64          `json:"seq"`
}

// PingPayload and PongPayload carry the sender's clock for latency
// measurement.
type PingPayload struct {
	Timestamp int64 `json:"ts"`
}

// PongPayload echoes the timestamp from the matching ping.
type PongPayload struct {
	Timestamp int64 `json:"ts"`
}

// Error codes carried in ErrorPayload.
const (
	CodeBadFrame      = "bad_frame"
	CodeBadPayload    = "bad_payload"
	CodeUnknownSignal = "unknown_signal"
	CodeTypeMismatch  = "type_mismatch"
)

// ErrorPayload reports a rejected request.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EncodeFrame marshals v as JSON and wraps it in a frame of the given type.
func EncodeFrame(ft FrameType, v any) (*Frame, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("live: encode %s payload: %w", ft, err)
	}
	if len(payload) > MaxPayloadSize {
		return nil, ErrFrameTooLarge
	}
	return NewFrame(ft, payload), nil
}

// DecodePayload unmarshals a frame payload into v.
func DecodePayload(f *Frame, v any) error {
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return fmt.Errorf("live: decode %s payload: %w", f.Type, err)
	}
	return nil
}
