package protocol

import "testing"

func TestCRC16Deterministic(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"single byte", []byte{0x68}},
		{"ascending", []byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			// The algorithm must be deterministic and reproducible across
			// calls, and must not panic on an empty input.
			got1 := crc16(c.data)
			got2 := crc16(c.data)
			if got1 != got2 {
				t.Fatalf("crc16 not deterministic: %04x vs %04x", got1, got2)
			}
		})
	}
}

func TestCRC16DetectsCorruption(t *testing.T) {
	data := []byte{0x68, 0x05, 0x00, 0x01, 0x00, 0x83, 0x01, 0x29}
	base := crc16(data)

	for i := range data {
		corrupted := append([]byte(nil), data...)
		corrupted[i] ^= 0xFF
		if crc16(corrupted) == base {
			t.Fatalf("flipping byte %d did not change the CRC", i)
		}
	}
}
