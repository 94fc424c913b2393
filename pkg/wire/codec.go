package wire

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultMaxLineLength is the default maximum length of a received line,
// terminator excluded.
const DefaultMaxLineLength = 4096

// Codec errors.
var (
	// ErrEncoding indicates a request value outside its declared domain.
	ErrEncoding = errors.New("encoding error")

	// ErrNeedMoreData indicates the buffer ends in the middle of a line.
	ErrNeedMoreData = errors.New("need more data")

	// ErrLineTooLong marks a line that exceeds the maximum line length.
	// Such lines are decoded as FrameUnknown with Overflow set.
	ErrLineTooLong = errors.New("line too long")

	// ErrUnknownFrame marks a line this client does not understand.
	ErrUnknownFrame = errors.New("unknown frame")

	// ErrInvalidValue indicates a value could not be converted to the
	// requested type.
	ErrInvalidValue = errors.New("invalid value")
)

// Encode serializes a request into its wire form, terminator included.
func Encode(req Request) ([]byte, error) {
	if err := validateKey(req.Key); err != nil {
		return nil, err
	}
	if req.Value == nil {
		return []byte(req.Key + "\n"), nil
	}
	v, err := formatValue(req.Value)
	if err != nil {
		return nil, err
	}
	return []byte(req.Key + " = " + v + "\n"), nil
}

func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrEncoding)
	}
	if strings.ContainsAny(key, " =#\"\r\n\t") {
		return fmt.Errorf("%w: invalid key %q", ErrEncoding, key)
	}
	return nil
}

// overflowPreview is the number of leading bytes of an over-long line kept
// in Frame.Raw.
const overflowPreview = 64

// Decoder splits a byte stream into frames.
//
// Decode never assumes a frame boundary from a single read: callers append
// received bytes to a buffer, call Decode until it returns ErrNeedMoreData,
// and drop the consumed prefix each time. A Decoder is not safe for
// concurrent use.
type Decoder struct {
	maxLineLength int

	// discarding is set while the tail of an over-long line is skipped.
	discarding bool
}

// NewDecoder creates a decoder with the default maximum line length.
func NewDecoder() *Decoder {
	return &Decoder{maxLineLength: DefaultMaxLineLength}
}

// NewDecoderWithMaxLength creates a decoder with a custom maximum line length.
func NewDecoderWithMaxLength(maxLineLength int) *Decoder {
	if maxLineLength <= 0 {
		maxLineLength = DefaultMaxLineLength
	}
	return &Decoder{maxLineLength: maxLineLength}
}

// Decode decodes the first complete frame in buf and returns it together
// with the number of bytes consumed. Blank lines are skipped.
//
// When buf holds no complete frame Decode returns ErrNeedMoreData; consumed
// may still be non-zero if blank lines or the tail of an over-long line
// were skipped.
//
// A line longer than the maximum line length is returned once as a
// FrameUnknown with Overflow set. If its terminator has not arrived yet,
// the remaining bytes up to the next terminator are dropped by later calls.
func (d *Decoder) Decode(buf []byte) (Frame, int, error) {
	consumed := 0
	for {
		rest := buf[consumed:]
		idx := bytes.IndexByte(rest, '\n')

		if d.discarding {
			if idx < 0 {
				return Frame{}, len(buf), ErrNeedMoreData
			}
			d.discarding = false
			consumed += idx + 1
			continue
		}

		if idx < 0 {
			if len(rest) > d.maxLineLength {
				d.discarding = true
				return overflowFrame(rest), len(buf), nil
			}
			return Frame{}, consumed, ErrNeedMoreData
		}
		line := rest[:idx]
		consumed += idx + 1

		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		if len(line) > d.maxLineLength {
			return overflowFrame(line), consumed, nil
		}

		text := strings.TrimSpace(string(line))
		if text == "" {
			continue
		}
		return ParseLine(text), consumed, nil
	}
}

func overflowFrame(line []byte) Frame {
	return Frame{
		Type:     FrameUnknown,
		Raw:      string(line[:min(len(line), overflowPreview)]),
		Overflow: true,
	}
}

// ParseLine converts one trimmed line into a frame.
func ParseLine(line string) Frame {
	if strings.HasPrefix(line, "#") {
		code, err := strconv.Atoi(strings.TrimSpace(line[1:]))
		if err != nil {
			return Frame{Type: FrameUnknown, Raw: line}
		}
		return Frame{Type: FrameResponse, Status: ParseStatus(code), Code: code, Raw: line}
	}

	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return Frame{Type: FrameUnknown, Raw: line}
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	f := Frame{Key: key, Value: value, Raw: line}
	switch {
	case key == KeyAuthChallenge:
		f.Type = FrameAuthChallenge
	case key == KeyAuthResult:
		f.Type = FrameAuthResult
	case IsKnownKey(key):
		f.Type = FramePush
	default:
		f.Type = FrameUnknown
	}
	return f
}
