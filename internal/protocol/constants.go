// Package protocol implements the GM3 field-bus wire format: frame
// serialization, the domain-specific CRC-16, per-type value encoding, and
// the struct/value payload parsers used during discovery and polling.
package protocol

// Frame markers and addressing.
const (
	BeginFrame byte = 0x68
	EndFrame   byte = 0x16

	// BroadcastAddress is accepted as "addressed to us" on top of our own
	// source address.
	BroadcastAddress uint16 = 0xFFFF

	// PanelAddress is the display master's fixed bus address.
	PanelAddress uint16 = 100

	// DefaultControllerAddress is the most common controller address.
	// 2 and 237 are also seen in the field.
	DefaultControllerAddress uint16 = 1

	// SourceAddress is this gateway's own address, used as SRC on every
	// outbound frame.
	SourceAddress uint16 = 131

	// FrameMinLen is the smallest legal frame: BEGIN+LEN(2)+DST(2)+SRC(2)+CMD+CRC(2)+END.
	FrameMinLen = 11

	// FrameMaxLen bounds how large a frame we will ever attempt to parse;
	// anything claiming to be longer is framing garbage.
	FrameMaxLen = 1024
)

// Command is an 8-bit GM3 command code.
type Command byte

const (
	GetSettings         Command = 0x00
	GetSettingsResponse Command = 0x80

	GetParamsStruct         Command = 0x01
	GetParamsStructResponse Command = 0x81

	GetParamsStructWithRange         Command = 0x02
	GetParamsStructWithRangeResponse Command = 0x82

	GetParams         Command = 0x40
	GetParamsResponse Command = 0xC0

	ModifyParam         Command = 0x29
	ModifyParamResponse Command = 0xA9

	IdentifyCmd Command = 0x71
	IdentifyAns Command = 0xF1

	ServiceCmd Command = 0x73
	ServiceAns Command = 0xF3

	NoData Command = 0x7F
	Error  Command = 0x7E
)

// DataType is the GM3 per-value type code.
type DataType byte

const (
	Int8   DataType = 1
	Int16  DataType = 2
	Int32  DataType = 3
	Uint8  DataType = 4
	Uint16 DataType = 5
	Uint32 DataType = 6
	Float  DataType = 7
	Double DataType = 9
	Bool   DataType = 10
	String DataType = 12
	Int64  DataType = 13
	Uint64 DataType = 14
)

// TypeSizes gives the fixed wire width for every type except String, which
// is NUL-terminated and therefore variable-length.
var TypeSizes = map[DataType]int{
	Int8:   1,
	Int16:  2,
	Int32:  4,
	Uint8:  1,
	Uint16: 2,
	Uint32: 4,
	Float:  4,
	Double: 8,
	Bool:   1,
	Int64:  8,
	Uint64: 8,
}

// UnitNames maps the unit code back to a human string for logging/HTTP.
var UnitNames = map[byte]string{
	0: "",
	1: "C",
	2: "s",
	3: "min",
	4: "h",
	5: "d",
	6: "%",
	7: "kW",
	8: "kWh",
}

// unitStringToCode maps the wire unit string (as seen during discovery) to
// its code. Unknown strings map to 0, matching spec.md §4.8.
var unitStringToCode = map[string]byte{
	"":    0,
	"C":   1,
	"s":   2,
	"min": 3,
	"h":   4,
	"d":   5,
	"%":   6,
	"kW":  7,
	"kWh": 8,
}

// UnitCodeFor returns the wire-unit-string's code, defaulting to 0 (no
// unit) for anything unrecognized.
func UnitCodeFor(unit string) byte {
	if code, ok := unitStringToCode[unit]; ok {
		return code
	}
	return 0
}

// GetTokenFunc is the SERVICE payload's function code meaning "here is the
// bus token".
const GetTokenFunc uint16 = 0x0101

// GiveBackTokenData is the fixed SERVICE payload sent to return the token.
var GiveBackTokenData = []byte{0x01, 0x02}

// IdentifyResponseData is the fixed identity payload we answer IDENTIFY
// probes with. Treated as opaque per spec.md §9 — reproduced verbatim from
// the firmware constants table.
var IdentifyResponseData = []byte{
	0x47, 0x4d, 0x33, 0x2d, 0x47, 0x41, 0x54, 0x45, 0x57, 0x41, 0x59, 0x00,
}

// AlarmRequestPrefix is the fixed SERVICE payload prefix for an alarm-slot
// read; the wire request appends a single slot-index byte.
var AlarmRequestPrefix = []byte{0x05, 0x00}

// ModifyAuthHeader is the fixed 14-byte authorization header every
// MODIFY_PARAM request carries: ASCII "USER-000", NUL, "4096", NUL.
var ModifyAuthHeader = []byte("USER-000\x004096\x00")

// ModifyModeWrite is the mode byte following the auth header in a
// MODIFY_PARAM request.
const ModifyModeWrite byte = 0x01
