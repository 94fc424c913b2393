package motionmount

import (
	"context"
	"fmt"

	"github.com/motionmount/motionmount-go/pkg/wire"
)

func invalidArgument(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
}

// presetCount is the number of accepted preset indices.
func (s *Session) presetCount() int {
	if s.config.MaxPreset > 0 {
		return s.config.MaxPreset + 1
	}
	return s.cache.Snapshot().PresetCount
}

// GoToPreset moves the mount to a stored preset. Preset 0 is the wall
// position. Out of range indices fail with ErrInvalidArgument before
// anything is sent.
func (s *Session) GoToPreset(ctx context.Context, index int) error {
	req, err := wire.GoToPreset(index, s.presetCount())
	if err != nil {
		return invalidArgument(err)
	}
	_, err = s.request(ctx, req)
	return err
}

// GoToPosition moves the mount to an explicit extension (0..100) and turn
// (-100..100). It returns once the mount has confirmed the move; the cached
// extension and turn then reflect the new position.
func (s *Session) GoToPosition(ctx context.Context, extension, turn int) error {
	req, err := wire.GoToPosition(extension, turn)
	if err != nil {
		return invalidArgument(err)
	}
	_, err = s.request(ctx, req)
	return err
}

// SetExtension moves the mount arm to an extension (0..100).
func (s *Session) SetExtension(ctx context.Context, extension int) error {
	req, err := wire.SetExtension(extension)
	if err != nil {
		return invalidArgument(err)
	}
	_, err = s.request(ctx, req)
	return err
}

// SetTurn rotates the mount to a turn value (-100..100).
func (s *Session) SetTurn(ctx context.Context, turn int) error {
	req, err := wire.SetTurn(turn)
	if err != nil {
		return invalidArgument(err)
	}
	_, err = s.request(ctx, req)
	return err
}

// GetName queries the device name.
func (s *Session) GetName(ctx context.Context) (string, error) {
	f, err := s.request(ctx, wire.QueryName())
	if err != nil {
		return "", err
	}
	return f.Text(), nil
}

// SetName renames the device. Names are 1 to 32 bytes without quotes or
// control characters.
func (s *Session) SetName(ctx context.Context, name string) error {
	req, err := wire.SetName(name)
	if err != nil {
		return invalidArgument(err)
	}
	_, err = s.request(ctx, req)
	return err
}

// UpdatePosition refreshes the cached extension and turn.
func (s *Session) UpdatePosition(ctx context.Context) error {
	if _, err := s.request(ctx, wire.QueryExtension()); err != nil {
		return err
	}
	_, err := s.request(ctx, wire.QueryTurn())
	return err
}

// Firmware queries the firmware version.
func (s *Session) Firmware(ctx context.Context) (string, error) {
	f, err := s.request(ctx, wire.QueryFirmware())
	if err != nil {
		return "", err
	}
	return f.Text(), nil
}
