package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// StructEntry is a single parameter's metadata as reported by a struct
// discovery response. MinValue/MaxValue are literal range bounds; when a
// range bound is instead a reference to another parameter's live value,
// MinParamRef/MaxParamRef carries that parameter's stored index and the
// corresponding *Value is nil (resolved later, against the cache).
type StructEntry struct {
	Index       int
	Name        string
	Unit        byte
	Type        DataType
	Writable    bool
	MinValue    *float64
	MaxValue    *float64
	MinParamRef *uint16
	MaxParamRef *uint16
}

// BuildGetParamsRequest builds a GET_PARAMS request payload: count byte
// followed by the little-endian start index.
func BuildGetParamsRequest(startIndex uint16, count byte) []byte {
	return []byte{count, byte(startIndex), byte(startIndex >> 8)}
}

// BuildStructRequest builds a GET_PARAMS_STRUCT(_WITH_RANGE) request
// payload; the wire shape is identical to a GET_PARAMS request.
func BuildStructRequest(startIndex uint16, count byte) []byte {
	return BuildGetParamsRequest(startIndex, count)
}

// BuildModifyParamRequest builds a MODIFY_PARAM request payload: the fixed
// authorization header, the write mode byte, the little-endian parameter
// index, and the encoded value.
func BuildModifyParamRequest(index uint16, typ DataType, value any) ([]byte, error) {
	encoded, err := EncodeValue(typ, value)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(ModifyAuthHeader)+3+len(encoded))
	out = append(out, ModifyAuthHeader...)
	out = append(out, ModifyModeWrite, byte(index), byte(index>>8))
	out = append(out, encoded...)
	return out, nil
}

// ValueEntry is one decoded value from a GET_PARAMS response, keyed by its
// stored index (wire index plus the caller's store offset).
type ValueEntry struct {
	StoredIndex int
	Value       any
}

// ParseGetParamsResponse parses a GET_PARAMS_RESPONSE payload. lookup
// resolves a stored index to the catalog entry describing how to decode
// it; parsing stops (without error) as soon as a stored index has no
// catalog entry or the buffer runs out, matching the reference parser's
// best-effort truncation.
func ParseGetParamsResponse(data []byte, storeOffset int, lookup func(storedIndex int) (DataType, bool)) ([]ValueEntry, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("protocol: GET_PARAMS_RESPONSE too short: %d bytes", len(data))
	}
	paramsNo := int(data[0])
	firstIndex := int(binary.LittleEndian.Uint16(data[1:3]))

	var results []ValueEntry
	offset := 4 // header(3) + leading separator byte

	for i := 0; i < paramsNo; i++ {
		storedIndex := firstIndex + i + storeOffset
		typ, ok := lookup(storedIndex)
		if !ok {
			break
		}

		var valueBytes []byte
		if typ == String {
			nul := bytes.IndexByte(data[offset:], 0)
			if nul == -1 {
				break
			}
			valueBytes = data[offset : offset+nul+1]
		} else {
			size := TypeSizes[typ]
			if size == 0 || offset+size > len(data) {
				break
			}
			valueBytes = data[offset : offset+size]
		}

		decoded, n, err := DecodeValue(typ, valueBytes)
		if err != nil {
			break
		}
		results = append(results, ValueEntry{StoredIndex: storedIndex, Value: decoded})
		offset += n + 1 // +1 trailing separator byte
	}

	return results, nil
}

// ParseStructResponseWithRange parses a GET_PARAMS_STRUCT_WITH_RANGE
// response payload (controller/regulator address space).
func ParseStructResponseWithRange(data []byte) ([]StructEntry, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("protocol: struct response too short: %d bytes", len(data))
	}
	paramsNo := int(data[0])
	firstIndex := int(binary.LittleEndian.Uint16(data[1:3]))

	var entries []StructEntry
	offset := 3

	for i := 0; i < paramsNo; i++ {
		if offset >= len(data) {
			break
		}

		name, next, ok := readCString(data, offset)
		if !ok {
			break
		}
		offset = next

		unitStr, next, ok := readCString(data, offset)
		if !ok {
			break
		}
		offset = next

		if offset+2 > len(data) {
			break
		}
		typeByte := data[offset]
		extraByte := data[offset+1]
		offset += 2

		typ := DataType(typeByte & 0x0F)
		writable := typeByte&0x20 != 0

		if offset+4 > len(data) {
			break
		}

		var minValue, maxValue *float64
		var minRef, maxRef *uint16

		unsignedRange := typ == Uint8 || typ == Uint16 || typ == Uint32

		if extraByte&0x10 != 0 {
			ref := binary.LittleEndian.Uint16(data[offset : offset+2])
			minRef = &ref
		} else if extraByte&0x40 == 0 {
			v := decodeRangeWord(data[offset:offset+2], unsignedRange)
			minValue = &v
		}

		if extraByte&0x20 != 0 {
			ref := binary.LittleEndian.Uint16(data[offset+2 : offset+4])
			maxRef = &ref
		} else if extraByte&0x80 == 0 {
			v := decodeRangeWord(data[offset+2:offset+4], unsignedRange)
			maxValue = &v
		}

		offset += 4

		entries = append(entries, StructEntry{
			Index:       firstIndex + i,
			Name:        sanitizeName(name),
			Unit:        UnitCodeFor(unitStr),
			Type:        typ,
			Writable:    writable,
			MinValue:    minValue,
			MaxValue:    maxValue,
			MinParamRef: minRef,
			MaxParamRef: maxRef,
		})
	}

	return entries, nil
}

// ParseStructResponseNoRange parses a GET_PARAMS_STRUCT response payload
// (panel address space). Panel entries never carry range data.
func ParseStructResponseNoRange(data []byte) ([]StructEntry, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("protocol: struct response too short: %d bytes", len(data))
	}
	paramsNo := int(data[0])
	firstIndex := int(binary.LittleEndian.Uint16(data[1:3]))

	var entries []StructEntry
	offset := 3

	for i := 0; i < paramsNo; i++ {
		if offset >= len(data) {
			break
		}

		name, next, ok := readCString(data, offset)
		if !ok {
			break
		}
		offset = next

		unitStr, next, ok := readCString(data, offset)
		if !ok {
			break
		}
		offset = next

		if offset+2 > len(data) {
			break
		}
		// byte 0 is a signed exponent, unused beyond this point; byte 1 is
		// the type byte, same bit layout as the WITH_RANGE format.
		typeByte := data[offset+1]
		offset += 2

		typ := DataType(typeByte & 0x0F)
		writable := typeByte&0x20 != 0

		entries = append(entries, StructEntry{
			Index:    firstIndex + i,
			Name:     sanitizeName(name),
			Unit:     UnitCodeFor(unitStr),
			Type:     typ,
			Writable: writable,
		})
	}

	return entries, nil
}

func readCString(data []byte, offset int) (string, int, bool) {
	nul := bytes.IndexByte(data[offset:], 0)
	if nul == -1 {
		return "", 0, false
	}
	return string(data[offset : offset+nul]), offset + nul + 1, true
}

func decodeRangeWord(b []byte, unsigned bool) float64 {
	if unsigned {
		return float64(binary.LittleEndian.Uint16(b))
	}
	return float64(int16(binary.LittleEndian.Uint16(b)))
}

// sanitizeName mirrors the reference parser's name cleanup: spaces become
// underscores, then the result is trimmed.
func sanitizeName(name string) string {
	return strings.TrimSpace(strings.ReplaceAll(name, " ", "_"))
}
