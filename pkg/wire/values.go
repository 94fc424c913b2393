package wire

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// PositionSize is the size of an encoded preset position in bytes.
const PositionSize = 4

func formatValue(v any) (string, error) {
	switch val := v.(type) {
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case bool:
		if val {
			return "1", nil
		}
		return "0", nil
	case string:
		if strings.ContainsAny(val, "\"\r\n") {
			return "", fmt.Errorf("%w: string contains quote or line break", ErrEncoding)
		}
		return `"` + val + `"`, nil
	case []byte:
		return "[" + hex.EncodeToString(val) + "]", nil
	default:
		return "", fmt.Errorf("%w: unsupported value type %T", ErrEncoding, v)
	}
}

// Int returns the value as an integer.
func (f Frame) Int() (int, error) {
	n, err := strconv.Atoi(f.Value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s = %q is not an integer", ErrInvalidValue, f.Key, f.Value)
	}
	return n, nil
}

// Text returns the value as a string with surrounding quotes removed.
func (f Frame) Text() string {
	return strings.Trim(f.Value, `"`)
}

// Bool returns the value as a boolean. Any non-zero integer is true.
func (f Frame) Bool() (bool, error) {
	n, err := f.Int()
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

// Bytes returns a bracketed hex value as bytes.
func (f Frame) Bytes() ([]byte, error) {
	v := f.Value
	if len(v) < 2 || v[0] != '[' || v[len(v)-1] != ']' {
		return nil, fmt.Errorf("%w: %s = %q is not a byte array", ErrInvalidValue, f.Key, f.Value)
	}
	b, err := hex.DecodeString(v[1 : len(v)-1])
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidValue, f.Key, err)
	}
	return b, nil
}

// EncodePosition packs an extension and turn into the preset position format.
func EncodePosition(extension, turn int) []byte {
	b := make([]byte, PositionSize)
	binary.BigEndian.PutUint16(b[0:2], uint16(extension))
	binary.BigEndian.PutUint16(b[2:4], uint16(int16(turn)))
	return b
}

// DecodePosition unpacks a preset position.
func DecodePosition(b []byte) (extension, turn int, err error) {
	if len(b) != PositionSize {
		return 0, 0, fmt.Errorf("%w: position must be %d bytes, got %d", ErrInvalidValue, PositionSize, len(b))
	}
	extension = int(binary.BigEndian.Uint16(b[0:2]))
	turn = int(int16(binary.BigEndian.Uint16(b[2:4])))
	return extension, turn, nil
}
