package live

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"
)

func TestFrameEncodeDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   Frame
		wantLen int // expected total length including header
	}{
		{
			name: "empty_payload",
			frame: Frame{
				Type:    FrameHello,
				Flags:   0,
				Payload: []byte{},
			},
			wantLen: FrameHeaderSize,
		},
		{
			name: "with_payload",
			frame: Frame{
				Type:    FrameUpdate,
				Flags:   0,
				Payload: []byte(`{"name":"counter","value":7,"seq":1}`),
			},
			wantLen: FrameHeaderSize + 36,
		},
		{
			name: "with_flags",
			frame: Frame{
				Type:    FrameUpdate,
				Flags:   FlagInitial,
				Payload: []byte("test"),
			},
			wantLen: FrameHeaderSize + 4,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			encoded := tc.frame.Encode()
			if len(encoded) != tc.wantLen {
				t.Errorf("Encode() length = %d, want %d", len(encoded), tc.wantLen)
			}

			if FrameType(encoded[0]) != tc.frame.Type {
				t.Errorf("Encoded type = %v, want %v", FrameType(encoded[0]), tc.frame.Type)
			}
			if FrameFlags(encoded[1]) != tc.frame.Flags {
				t.Errorf("Encoded flags = %v, want %v", FrameFlags(encoded[1]), tc.frame.Flags)
			}

			decoded, err := DecodeFrame(encoded)
			if err != nil {
				t.Fatalf("DecodeFrame() error = %v", err)
			}

			if decoded.Type != tc.frame.Type {
				t.Errorf("Decoded type = %v, want %v", decoded.Type, tc.frame.Type)
			}
			if decoded.Flags != tc.frame.Flags {
				t.Errorf("Decoded flags = %v, want %v", decoded.Flags, tc.frame.Flags)
			}
			if !bytes.Equal(decoded.Payload, tc.frame.Payload) {
				t.Errorf("Decoded payload = %v, want %v", decoded.Payload, tc.frame.Payload)
			}
		})
	}
}

func TestDecodeFrameErrors(t *testing.T) {
	// Short header
	_, err := DecodeFrame([]byte{0x00, 0x00})
	if err != ErrShortFrame {
		t.Errorf("Short header: got %v, want ErrShortFrame", err)
	}

	// Short payload
	_, err = DecodeFrame([]byte{0x05, 0x00, 0x00, 0x10}) // Claims 16 bytes, has 0
	if err != io.ErrUnexpectedEOF {
		t.Errorf("Short payload: got %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestReadWriteFrame(t *testing.T) {
	original := &Frame{
		Type:    FrameSet,
		Flags:   0,
		Payload: []byte(`{"name":"counter","value":42}`),
	}

	var buf bytes.Buffer
	if err := WriteFrame(&buf, original); err != nil {
		t.Fatalf("WriteFrame() error = %v", err)
	}

	decoded, err := ReadFrame(&buf)
	if err != nil {
		t.Fatalf("ReadFrame() error = %v", err)
	}

	if decoded.Type != original.Type {
		t.Errorf("Type = %v, want %v", decoded.Type, original.Type)
	}
	if decoded.Flags != original.Flags {
		t.Errorf("Flags = %v, want %v", decoded.Flags, original.Flags)
	}
	if !bytes.Equal(decoded.Payload, original.Payload) {
		t.Errorf("Payload = %v, want %v", decoded.Payload, original.Payload)
	}
}

func TestReadFrameErrors(t *testing.T) {
	// EOF on header
	_, err := ReadFrame(bytes.NewReader([]byte{}))
	if err != io.EOF {
		t.Errorf("Empty reader: got %v, want io.EOF", err)
	}

	// Short header
	_, err = ReadFrame(bytes.NewReader([]byte{0x00, 0x00}))
	if err != io.ErrUnexpectedEOF {
		t.Errorf("Short header: got %v, want io.ErrUnexpectedEOF", err)
	}

	// Short payload
	_, err = ReadFrame(bytes.NewReader([]byte{0x05, 0x00, 0x00, 0x05, 0x01, 0x02}))
	if err != io.ErrUnexpectedEOF {
		t.Errorf("Short payload: got %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestWriteFrameTooLarge(t *testing.T) {
	f := &Frame{
		Type:    FrameUpdate,
		Payload: make([]byte, MaxPayloadSize+1),
	}

	var buf bytes.Buffer
	err := WriteFrame(&buf, f)
	if err != ErrFrameTooLarge {
		t.Errorf("WriteFrame() = %v, want ErrFrameTooLarge", err)
	}
}

func TestFrameTypeString(t *testing.T) {
	tests := []struct {
		ft   FrameType
		want string
	}{
		{FrameHello, "Hello"},
		{FrameHelloAck, "HelloAck"},
		{FrameSub, "Sub"},
		{FrameUnsub, "Unsub"},
		{FrameSet, "Set"},
		{FrameUpdate, "Update"},
		{FramePing, "Ping"},
		{FramePong, "Pong"},
		{FrameError, "Error"},
		{FrameType(0xFF), "Unknown"},
	}

	for _, tc := range tests {
		if got := tc.ft.String(); got != tc.want {
			t.Errorf("FrameType(%d).String() = %q, want %q", tc.ft, got, tc.want)
		}
	}
}

func TestFrameFlagsHas(t *testing.T) {
	var flags FrameFlags

	if flags.Has(FlagInitial) {
		t.Error("Has(FlagInitial) = true, want false")
	}

	flags = FlagInitial
	if !flags.Has(FlagInitial) {
		t.Error("Has(FlagInitial) = false, want true")
	}
}

func TestEncodeFramePayloadRoundTrip(t *testing.T) {
	original := UpdatePayload{
		Name:  "counter",
		Value: json.RawMessage(`42`),
		Seq:   9,
	}

	frame, err := EncodeFrame(FrameUpdate, original)
	if err != nil {
		t.Fatalf("EncodeFrame() error = %v", err)
	}
	if frame.Type != FrameUpdate {
		t.Errorf("Type = %v, want FrameUpdate", frame.Type)
	}

	var decoded UpdatePayload
	if err := DecodePayload(frame, &decoded); err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}

	if decoded.Name != original.Name {
		t.Errorf("Name = %q, want %q", decoded.Name, original.Name)
	}
	if !bytes.Equal(decoded.Value, original.Value) {
		t.Errorf("Value = %s, want %s", decoded.Value, original.Value)
	}
	if decoded.Seq != original.Seq {
		t.Errorf("Seq = %d, want %d", decoded.Seq, original.Seq)
	}
}

func TestEncodeFrameTooLarge(t *testing.T) {
	huge := SetPayload{
		Name:  "blob",
		Value: json.RawMessage(`"` + strings.Repeat("x", MaxPayloadSize) + `"`),
	}

	_, err := EncodeFrame(FrameSet, huge)
	if err != ErrFrameTooLarge {
		t.Errorf("EncodeFrame() = %v, want ErrFrameTooLarge", err)
	}
}

func TestDecodePayloadError(t *testing.T) {
	frame := NewFrame(FrameSet, []byte("{not json"))

	var set SetPayload
	if err := DecodePayload(frame, &set); err == nil {
		t.Error("DecodePayload() = nil, want error")
	}
}

func TestMultipleFrames(t *testing.T) {
	var buf bytes.Buffer

	frames := []*Frame{
		{Type: FrameHello, Payload: []byte(`{"protocol":1}`)},
		{Type: FrameSub, Payload: []byte(`{"names":["a","b"]}`)},
		{Type: FramePing, Payload: []byte(`{"ts":123}`)},
	}

	for _, f := range frames {
		if err := WriteFrame(&buf, f); err != nil {
			t.Fatalf("WriteFrame() error = %v", err)
		}
	}

	reader := bytes.NewReader(buf.Bytes())
	for i, original := range frames {
		decoded, err := ReadFrame(reader)
		if err != nil {
			t.Fatalf("ReadFrame(%d) error = %v", i, err)
		}
		if decoded.Type != original.Type {
			t.Errorf("Frame %d: Type = %v, want %v", i, decoded.Type, original.Type)
		}
		if !bytes.Equal(decoded.Payload, original.Payload) {
			t.Errorf("Frame %d: Payload mismatch", i)
		}
	}
}

func BenchmarkFrameEncode(b *testing.B) {
	f := &Frame{
		Type:    FrameUpdate,
		Payload: make([]byte, 100),
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = f.Encode()
	}
}

func BenchmarkFrameDecode(b *testing.B) {
	f := &Frame{
		Type:    FrameUpdate,
		Payload: make([]byte, 100),
	}
	data := f.Encode()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = DecodeFrame(data)
	}
}
