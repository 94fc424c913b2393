package wire

import (
	"fmt"
	"strconv"
)

// Request is a message from client to device.
//
// A request without a value is a query; the device answers with a value
// report for the same key. A request with a value is a write; the device
// answers with a status or echoes the accepted value.
type Request struct {
	Key string

	// Value is nil for queries. Supported types are int, int64, string,
	// []byte and bool.
	Value any
}

// IsQuery returns true if the request reads a value.
func (r Request) IsQuery() bool {
	return r.Value == nil
}

// Kind returns the correlation kind of the request.
func (r Request) Kind() Kind {
	return KindOf(r.Key)
}

// ReplyKey returns the key of the value report that answers this request.
func (r Request) ReplyKey() string {
	if r.Key == KeyAuthResponse {
		return KeyAuthResult
	}
	return r.Key
}

// String returns the request as it appears on the wire, without the
// terminator. Unsupported values are rendered with %v.
func (r Request) String() string {
	if r.Value == nil {
		return r.Key
	}
	v, err := formatValue(r.Value)
	if err != nil {
		v = fmt.Sprintf("%v", r.Value)
	}
	return r.Key + " = " + v
}

// FrameType tags a decoded or encoded message.
type FrameType uint8

const (
	// FrameUnknown is a line this client does not understand. It is not an
	// error: newer firmware may send keys or shapes unknown to this client.
	FrameUnknown FrameType = iota

	// FrameCommand is an outgoing request.
	FrameCommand

	// FrameResponse is a status line ("#202").
	FrameResponse

	// FramePush is a value report for a known key. It answers a pending
	// query when the correlator claims it; otherwise it is an unsolicited
	// state change.
	FramePush

	// FrameAuthChallenge carries the device nonce for authentication.
	FrameAuthChallenge

	// FrameAuthResult carries the outcome of an authentication attempt.
	FrameAuthResult
)

// String returns the frame type name.
func (t FrameType) String() string {
	switch t {
	case FrameCommand:
		return "COMMAND"
	case FrameResponse:
		return "RESPONSE"
	case FramePush:
		return "PUSH"
	case FrameAuthChallenge:
		return "AUTH_CHALLENGE"
	case FrameAuthResult:
		return "AUTH_RESULT"
	default:
		return "UNKNOWN"
	}
}

// Frame is one decoded protocol line.
type Frame struct {
	Type FrameType

	// Key and Value are set for value reports. Value is the raw textual
	// value; use the typed accessors to convert it.
	Key   string
	Value string

	// Status and Code are set for responses. Code holds the raw number so
	// that unknown codes remain visible.
	Status Status
	Code   int

	// Raw is the complete line without its terminator.
	Raw string

	// Overflow is set for lines longer than the maximum line length. Raw
	// then holds only the beginning of the line.
	Overflow bool
}

// Err returns ErrUnknownFrame for unknown frames and nil otherwise. Over-long
// lines also match ErrLineTooLong.
func (f Frame) Err() error {
	if f.Overflow {
		return fmt.Errorf("%w: %w: %q...", ErrUnknownFrame, ErrLineTooLong, f.Raw)
	}
	if f.Type == FrameUnknown {
		return fmt.Errorf("%w: %q", ErrUnknownFrame, f.Raw)
	}
	return nil
}

// String returns a short description for logs.
func (f Frame) String() string {
	switch f.Type {
	case FrameResponse:
		return "#" + strconv.Itoa(f.Code) + " (" + f.Status.String() + ")"
	case FrameUnknown:
		return "unknown " + strconv.Quote(f.Raw)
	default:
		return f.Key + " = " + f.Value
	}
}
