package state

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/motionmount/motionmount-go/pkg/wire"
)

// DeviceState is an immutable snapshot of the device.
//
// Extension, Turn and Preset are nil until the device has reported them.
type DeviceState struct {
	Extension *int
	Turn      *int

	// Preset is the last preset the mount moved to. It is cleared when the
	// mount moves to an explicit position.
	Preset *int

	Name     string
	Firmware string

	// PresetCount is the number of presets, wall position included.
	PresetCount int

	AuthRequired  bool
	Authenticated bool

	// UpdatedAt is the time of the last change.
	UpdatedAt time.Time
}

// Field identifies a DeviceState field.
type Field uint16

const (
	FieldExtension Field = 1 << iota
	FieldTurn
	FieldPreset
	FieldName
	FieldFirmware
	FieldPresetCount
	FieldAuthRequired
	FieldAuthenticated
)

var fieldNames = []struct {
	f    Field
	name string
}{
	{FieldExtension, "extension"},
	{FieldTurn, "turn"},
	{FieldPreset, "preset"},
	{FieldName, "name"},
	{FieldFirmware, "firmware"},
	{FieldPresetCount, "presetCount"},
	{FieldAuthRequired, "authRequired"},
	{FieldAuthenticated, "authenticated"},
}

// String returns the names of the set fields joined by "|".
func (f Field) String() string {
	if f == 0 {
		return "none"
	}
	s := ""
	for _, fn := range fieldNames {
		if f&fn.f != 0 {
			if s != "" {
				s += "|"
			}
			s += fn.name
		}
	}
	return s
}

// Change describes the effect of one frame on the cache.
type Change struct {
	// Key is the protocol key that caused the change.
	Key string

	// Fields is the set of fields whose value changed.
	Fields Field
}

// IsZero reports whether nothing changed.
func (c Change) IsZero() bool {
	return c.Fields == 0
}

// Has reports whether f changed.
func (c Change) Has(f Field) bool {
	return c.Fields&f != 0
}

// Listener is called after every change with the new snapshot.
type Listener func(Change, DeviceState)

// Cache holds the latest snapshot.
//
// Apply and Reset must be called from a single goroutine. Snapshot and the
// accessors are safe from any goroutine.
type Cache struct {
	current atomic.Pointer[DeviceState]

	mu        sync.RWMutex
	listeners []Listener
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	c := &Cache{}
	c.current.Store(initialState())
	return c
}

func initialState() *DeviceState {
	return &DeviceState{PresetCount: wire.DefaultPresetCount}
}

// Snapshot returns the latest state.
func (c *Cache) Snapshot() DeviceState {
	return *c.current.Load()
}

// OnChange registers a listener. Listeners run on the goroutine that
// applies frames and must not block.
func (c *Cache) OnChange(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Apply updates the cache from a frame.
//
// Frames that carry no state, or values that do not parse, leave the cache
// untouched; the error reports the latter.
func (c *Cache) Apply(f wire.Frame) (Change, error) {
	prev := c.current.Load()
	next := *prev
	change := Change{Key: f.Key}

	switch f.Key {
	case wire.KeyExtension:
		n, err := f.Int()
		if err != nil {
			return Change{}, err
		}
		change.Fields |= setInt(&next.Extension, n, FieldExtension)

	case wire.KeyTurn:
		n, err := f.Int()
		if err != nil {
			return Change{}, err
		}
		change.Fields |= setInt(&next.Turn, n, FieldTurn)

	case wire.KeyPresetIndex:
		n, err := f.Int()
		if err != nil {
			return Change{}, err
		}
		change.Fields |= setInt(&next.Preset, n, FieldPreset)

	case wire.KeyPresetPosition:
		b, err := f.Bytes()
		if err != nil {
			return Change{}, err
		}
		ext, turn, err := wire.DecodePosition(b)
		if err != nil {
			return Change{}, err
		}
		change.Fields |= setInt(&next.Extension, ext, FieldExtension)
		change.Fields |= setInt(&next.Turn, turn, FieldTurn)
		if next.Preset != nil {
			next.Preset = nil
			change.Fields |= FieldPreset
		}

	case wire.KeyPresetCount:
		n, err := f.Int()
		if err != nil {
			return Change{}, err
		}
		if n > 0 && n != next.PresetCount {
			next.PresetCount = n
			change.Fields |= FieldPresetCount
		}

	case wire.KeyName:
		if name := f.Text(); name != next.Name {
			next.Name = name
			change.Fields |= FieldName
		}

	case wire.KeyFirmware:
		if fw := f.Text(); fw != next.Firmware {
			next.Firmware = fw
			change.Fields |= FieldFirmware
		}

	case wire.KeyAuthChallenge:
		required := f.Text() != ""
		if required != next.AuthRequired {
			next.AuthRequired = required
			change.Fields |= FieldAuthRequired
		}
		if next.Authenticated {
			next.Authenticated = false
			change.Fields |= FieldAuthenticated
		}

	case wire.KeyAuthResult:
		ok, err := f.Bool()
		if err != nil {
			return Change{}, err
		}
		if ok != next.Authenticated {
			next.Authenticated = ok
			change.Fields |= FieldAuthenticated
		}
	}

	if change.IsZero() {
		return Change{}, nil
	}
	c.publish(&next, change)
	return change, nil
}

// SetAuthenticated records the outcome of a handshake that completed
// without an authentication/result frame.
func (c *Cache) SetAuthenticated(required, authenticated bool) Change {
	prev := c.current.Load()
	next := *prev
	change := Change{Key: wire.KeyAuthResult}
	if next.AuthRequired != required {
		next.AuthRequired = required
		change.Fields |= FieldAuthRequired
	}
	if next.Authenticated != authenticated {
		next.Authenticated = authenticated
		change.Fields |= FieldAuthenticated
	}
	if change.IsZero() {
		return Change{}
	}
	c.publish(&next, change)
	return change
}

// Reset clears the authentication flags. Position values, name and
// firmware are kept as last known values across reconnects.
func (c *Cache) Reset() {
	prev := c.current.Load()
	next := *prev
	next.AuthRequired = false
	next.Authenticated = false
	c.current.Store(&next)
}

func (c *Cache) publish(next *DeviceState, change Change) {
	next.UpdatedAt = time.Now()
	c.current.Store(next)

	c.mu.RLock()
	listeners := c.listeners
	c.mu.RUnlock()

	snapshot := *next
	for _, fn := range listeners {
		fn(change, snapshot)
	}
}

func setInt(dst **int, v int, field Field) Field {
	if *dst != nil && **dst == v {
		return 0
	}
	*dst = &v
	return field
}
