package protocol

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DecodeValue decodes a wire payload of the given type from the front of
// buf, returning the decoded value (int64, uint64, float64, bool, or
// string, depending on typ) and the number of bytes consumed.
//
// Float and Double are rounded to 2 decimal places on the way out, matching
// the reference codec's round(value, 2).
func DecodeValue(typ DataType, buf []byte) (any, int, error) {
	if typ == String {
		for i, b := range buf {
			if b == 0 {
				return string(buf[:i]), i + 1, nil
			}
		}
		return nil, 0, fmt.Errorf("protocol: unterminated string value")
	}

	size, ok := TypeSizes[typ]
	if !ok {
		return nil, 0, fmt.Errorf("protocol: unknown type code %d", typ)
	}
	if len(buf) < size {
		return nil, 0, fmt.Errorf("protocol: short value buffer for type %d: need %d have %d", typ, size, len(buf))
	}
	b := buf[:size]

	switch typ {
	case Int8:
		return int64(int8(b[0])), size, nil
	case Uint8:
		return uint64(b[0]), size, nil
	case Bool:
		return b[0] != 0, size, nil
	case Int16:
		return int64(int16(binary.LittleEndian.Uint16(b))), size, nil
	case Uint16:
		return uint64(binary.LittleEndian.Uint16(b)), size, nil
	case Int32:
		return int64(int32(binary.LittleEndian.Uint32(b))), size, nil
	case Uint32:
		return uint64(binary.LittleEndian.Uint32(b)), size, nil
	case Int64:
		return int64(binary.LittleEndian.Uint64(b)), size, nil
	case Uint64:
		return binary.LittleEndian.Uint64(b), size, nil
	case Float:
		v := math.Float32frombits(binary.LittleEndian.Uint32(b))
		return round2(float64(v)), size, nil
	case Double:
		v := math.Float64frombits(binary.LittleEndian.Uint64(b))
		return round2(v), size, nil
	default:
		return nil, 0, fmt.Errorf("protocol: unhandled type code %d", typ)
	}
}

// EncodeValue encodes v (expected to be an int64, uint64, float64, bool, or
// string, compatible with typ) to its little-endian wire representation.
func EncodeValue(typ DataType, v any) ([]byte, error) {
	switch typ {
	case String:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("protocol: value %v is not a string for type %d", v, typ)
		}
		out := make([]byte, 0, len(s)+1)
		out = append(out, []byte(s)...)
		out = append(out, 0)
		return out, nil
	case Bool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("protocol: value %v is not a bool for type %d", v, typ)
		}
		if b {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	}

	size := TypeSizes[typ]
	out := make([]byte, size)

	switch typ {
	case Int8, Int16, Int32, Int64:
		n, err := asInt64(v)
		if err != nil {
			return nil, err
		}
		switch typ {
		case Int8:
			out[0] = byte(int8(n))
		case Int16:
			binary.LittleEndian.PutUint16(out, uint16(int16(n)))
		case Int32:
			binary.LittleEndian.PutUint32(out, uint32(int32(n)))
		case Int64:
			binary.LittleEndian.PutUint64(out, uint64(n))
		}
		return out, nil
	case Uint8, Uint16, Uint32, Uint64:
		n, err := asUint64(v)
		if err != nil {
			return nil, err
		}
		switch typ {
		case Uint8:
			out[0] = byte(n)
		case Uint16:
			binary.LittleEndian.PutUint16(out, uint16(n))
		case Uint32:
			binary.LittleEndian.PutUint32(out, uint32(n))
		case Uint64:
			binary.LittleEndian.PutUint64(out, n)
		}
		return out, nil
	case Float:
		f, err := asFloat64(v)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint32(out, math.Float32bits(float32(round2(f))))
		return out, nil
	case Double:
		f, err := asFloat64(v)
		if err != nil {
			return nil, err
		}
		binary.LittleEndian.PutUint64(out, math.Float64bits(round2(f)))
		return out, nil
	default:
		return nil, fmt.Errorf("protocol: unknown type code %d", typ)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("protocol: value %v (%T) is not numeric", v, v)
	}
}

func asUint64(v any) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		return n, nil
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("protocol: negative value %d for unsigned type", n)
		}
		return uint64(n), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("protocol: negative value %d for unsigned type", n)
		}
		return uint64(n), nil
	case float64:
		if n < 0 {
			return 0, fmt.Errorf("protocol: negative value %v for unsigned type", n)
		}
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("protocol: value %v (%T) is not numeric", v, v)
	}
}

func asFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("protocol: value %v (%T) is not numeric", v, v)
	}
}
