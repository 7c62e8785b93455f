package protocol

import (
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		f    Frame
	}{
		{"no payload", Frame{Destination: 1, Source: SourceAddress, Command: GetSettings}},
		{"with payload", Frame{
			Destination: PanelAddress,
			Source:      SourceAddress,
			Command:     GetParamsResponse,
			Payload:     []byte{0x02, 0x0a, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04, 0x00},
		}},
		{"broadcast", Frame{Destination: BroadcastAddress, Source: SourceAddress, Command: GetSettings}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			wire := c.f.ToBytes()
			if wire[0] != BeginFrame {
				t.Fatalf("expected begin marker, got 0x%02x", wire[0])
			}
			if wire[len(wire)-1] != EndFrame {
				t.Fatalf("expected end marker, got 0x%02x", wire[len(wire)-1])
			}

			got, n, err := ParseFrame(wire)
			if err != nil {
				t.Fatalf("ParseFrame: %v", err)
			}
			if n != len(wire) {
				t.Fatalf("consumed %d bytes, want %d", n, len(wire))
			}
			if got.Destination != c.f.Destination || got.Source != c.f.Source || got.Command != c.f.Command {
				t.Fatalf("round-trip mismatch: got %+v want %+v", got, c.f)
			}
			if !bytes.Equal(got.Payload, c.f.Payload) {
				t.Fatalf("payload mismatch: got %v want %v", got.Payload, c.f.Payload)
			}
		})
	}
}

func TestFrameLengthField(t *testing.T) {
	f := Frame{Destination: 1, Source: 131, Command: GetSettings, Payload: []byte{1, 2, 3}}
	wire := f.ToBytes()
	// total size = BEGIN+LEN(2)+DST(2)+SRC(2)+CMD(1)+payload(3)+CRC(2)+END(1) = 14
	wantTotal := 14
	if len(wire) != wantTotal {
		t.Fatalf("wire length = %d, want %d", len(wire), wantTotal)
	}
	gotLen := int(wire[1]) | int(wire[2])<<8
	if gotLen != wantTotal-6 {
		t.Fatalf("LEN field = %d, want %d", gotLen, wantTotal-6)
	}
}

func TestParseFrameRejectsShortBuffer(t *testing.T) {
	if _, _, err := ParseFrame([]byte{0x68, 0x00}); err == nil {
		t.Fatal("expected error for short buffer")
	}
}

func TestParseFrameRejectsBadBegin(t *testing.T) {
	f := Frame{Destination: 1, Source: 131, Command: GetSettings}
	wire := f.ToBytes()
	wire[0] = 0x00
	if _, _, err := ParseFrame(wire); err == nil {
		t.Fatal("expected error for bad begin marker")
	}
}

func TestParseFrameRejectsBadEnd(t *testing.T) {
	f := Frame{Destination: 1, Source: 131, Command: GetSettings}
	wire := f.ToBytes()
	wire[len(wire)-1] = 0x00
	if _, _, err := ParseFrame(wire); err == nil {
		t.Fatal("expected error for bad end marker")
	}
}

func TestParseFrameRejectsCRCMismatch(t *testing.T) {
	f := Frame{Destination: 1, Source: 131, Command: GetSettings, Payload: []byte{1, 2, 3}}
	wire := f.ToBytes()
	wire[len(wire)-3] ^= 0xFF // corrupt the high CRC byte
	if _, _, err := ParseFrame(wire); err == nil {
		t.Fatal("expected error for crc mismatch")
	}
}

func TestParseFrameIncomplete(t *testing.T) {
	f := Frame{Destination: 1, Source: 131, Command: GetSettings, Payload: []byte{1, 2, 3}}
	wire := f.ToBytes()
	if _, _, err := ParseFrame(wire[:len(wire)-2]); err == nil {
		t.Fatal("expected error for truncated frame")
	}
}

func TestAddressedTo(t *testing.T) {
	if !AddressedTo(5, 5) {
		t.Fatal("expected exact match to be addressed")
	}
	if !AddressedTo(BroadcastAddress, 5) {
		t.Fatal("expected broadcast to be addressed")
	}
	if AddressedTo(6, 5) {
		t.Fatal("expected mismatch to not be addressed")
	}
}
