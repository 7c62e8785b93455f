package protocol

import (
	"encoding/binary"
	"fmt"
)

// Frame is a single GM3 bus frame: BEGIN | LEN(2,LE) | DST(2,LE) | SRC(2,LE)
// | CMD | PAYLOAD... | CRC(2,BE) | END.
type Frame struct {
	Destination uint16
	Source      uint16
	Command     Command
	Payload     []byte
}

// ToBytes serializes f into a wire frame, computing LEN and CRC.
//
// LEN is total_size - 6: it counts the bytes from SRC_H through END
// inclusive (BEGIN, the two LEN bytes, the two DST bytes and SRC_L are not
// counted); CRC covers every byte from LEN_L through the end of
// the payload (BEGIN itself is excluded) and is placed big-endian,
// immediately before END.
func (f Frame) ToBytes() []byte {
	body := make([]byte, 0, 7+len(f.Payload))
	body = append(body, BeginFrame)
	// Placeholder LEN, patched below once the total size is known.
	body = append(body, 0, 0)
	var addr [2]byte
	binary.LittleEndian.PutUint16(addr[:], f.Destination)
	body = append(body, addr[:]...)
	binary.LittleEndian.PutUint16(addr[:], f.Source)
	body = append(body, addr[:]...)
	body = append(body, byte(f.Command))
	body = append(body, f.Payload...)

	total := len(body) + 3 // + CRC(2) + END(1)
	binary.LittleEndian.PutUint16(body[1:3], uint16(total-6))

	crc := crc16(body[1:])
	out := make([]byte, 0, total)
	out = append(out, body...)
	out = append(out, byte(crc>>8), byte(crc))
	out = append(out, EndFrame)
	return out
}

// ParseFrame parses exactly one frame from the front of buf, returning the
// frame and the number of bytes consumed. It returns an error if buf does
// not begin with a complete, valid frame.
func ParseFrame(buf []byte) (Frame, int, error) {
	if len(buf) < FrameMinLen {
		return Frame{}, 0, fmt.Errorf("protocol: short buffer (%d bytes)", len(buf))
	}
	if buf[0] != BeginFrame {
		return Frame{}, 0, fmt.Errorf("protocol: missing begin marker (got 0x%02x)", buf[0])
	}
	length := binary.LittleEndian.Uint16(buf[1:3])
	total := int(length) + 6
	if total < FrameMinLen || total > FrameMaxLen {
		return Frame{}, 0, fmt.Errorf("protocol: implausible frame length %d", total)
	}
	if len(buf) < total {
		return Frame{}, 0, fmt.Errorf("protocol: incomplete frame, need %d have %d", total, len(buf))
	}
	if buf[total-1] != EndFrame {
		return Frame{}, 0, fmt.Errorf("protocol: missing end marker (got 0x%02x)", buf[total-1])
	}

	wantCRC := uint16(buf[total-3])<<8 | uint16(buf[total-2])
	gotCRC := crc16(buf[1 : total-3])
	if wantCRC != gotCRC {
		return Frame{}, 0, fmt.Errorf("protocol: crc mismatch: want 0x%04x got 0x%04x", wantCRC, gotCRC)
	}

	f := Frame{
		Destination: binary.LittleEndian.Uint16(buf[3:5]),
		Source:      binary.LittleEndian.Uint16(buf[5:7]),
		Command:     Command(buf[7]),
	}
	if total-3 > 8 {
		f.Payload = append([]byte(nil), buf[8:total-3]...)
	}
	return f, total, nil
}

// AddressedTo reports whether a frame carrying this destination should be
// accepted by a listener at addr (unicast match or broadcast).
func AddressedTo(dst, addr uint16) bool {
	return dst == addr || dst == BroadcastAddress
}
