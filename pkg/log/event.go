package log

import (
	"time"

	"github.com/motionmount/motionmount-go/pkg/wire"
)

// Event is a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the connection (UUID). Empty for events
	// raised before a connection exists.
	ConnectionID string `cbor:"2,keyasint"`

	Direction Direction `cbor:"3,keyasint"`
	Layer     Layer     `cbor:"4,keyasint"`
	Category  Category  `cbor:"5,keyasint"`

	// RemoteAddr is the mount address (host:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload; exactly one is set.
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	DirectionIn  Direction = 0
	DirectionOut Direction = 1

	// DirectionNone is used for events that are not tied to traffic,
	// such as state changes.
	DirectionNone Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionNone:
		return "NONE"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the line framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the decoded frame layer.
	LayerWire Layer = 1
	// LayerSession is the session and correlation layer.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	CategoryMessage Category = 0
	CategoryState   Category = 1
	CategoryError   Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures a raw line at the transport layer.
type FrameEvent struct {
	// Size is the line size in bytes, terminator included.
	Size int `cbor:"1,keyasint"`

	// Data is the raw line (may be truncated for very long lines).
	Data []byte `cbor:"2,keyasint,omitempty"`

	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded frame or an encoded request.
type MessageEvent struct {
	Type wire.FrameType `cbor:"1,keyasint"`

	Key   string `cbor:"2,keyasint,omitempty"`
	Value string `cbor:"3,keyasint,omitempty"`

	// Status is set for response frames.
	Status *wire.Status `cbor:"4,keyasint,omitempty"`

	// Unsolicited is true for pushes that matched no pending request.
	Unsolicited bool `cbor:"5,keyasint,omitempty"`

	// RoundTrip is the time from sending a request until the frame that
	// resolved it arrived. Stored as nanoseconds.
	RoundTrip *time.Duration `cbor:"6,keyasint,omitempty"`
}

// StateChangeEvent captures session lifecycle events.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	StateEntityConnection     StateEntity = 0
	StateEntityAuthentication StateEntity = 1
	StateEntityDevice         StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntityAuthentication:
		return "AUTHENTICATION"
	case StateEntityDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}

// NewStateChange builds a session-layer state change event.
func NewStateChange(connID string, entity StateEntity, oldState, newState, reason string) Event {
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    DirectionNone,
		Layer:        LayerSession,
		Category:     CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	}
}

// NewError builds an error event.
func NewError(connID string, layer Layer, err error, context string) Event {
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    DirectionNone,
		Layer:        layer,
		Category:     CategoryError,
		Error: &ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	}
}

// NewFrameMessage builds a wire-layer event for a decoded frame.
func NewFrameMessage(connID string, f wire.Frame, unsolicited bool, roundTrip time.Duration) Event {
	msg := &MessageEvent{
		Type:        f.Type,
		Key:         f.Key,
		Value:       f.Value,
		Unsolicited: unsolicited,
	}
	if f.Type == wire.FrameResponse {
		status := f.Status
		msg.Status = &status
	}
	if roundTrip > 0 {
		msg.RoundTrip = &roundTrip
	}
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    DirectionIn,
		Layer:        LayerWire,
		Category:     CategoryMessage,
		Message:      msg,
	}
}

// NewRequestMessage builds a wire-layer event for an outgoing request.
func NewRequestMessage(connID string, req wire.Request) Event {
	msg := &MessageEvent{Type: wire.FrameCommand, Key: req.Key}
	if !req.IsQuery() {
		msg.Value = req.String()[len(req.Key)+3:]
	}
	return Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    DirectionOut,
		Layer:        LayerWire,
		Category:     CategoryMessage,
		Message:      msg,
	}
}
