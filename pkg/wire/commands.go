package wire

import (
	"encoding/hex"
	"fmt"
	"unicode"
)

// Domain bounds of the mount.
const (
	MinExtension = 0
	MaxExtension = 100
	MinTurn      = -100
	MaxTurn      = 100

	// MinPreset is the wall position, which always exists.
	MinPreset = 0

	// DefaultPresetCount is the number of presets (wall included) assumed
	// until the device advertises its own count.
	DefaultPresetCount = 10

	// MaxNameLength is the longest device name accepted.
	MaxNameLength = 32
)

// QueryName requests the device name.
func QueryName() Request { return Request{Key: KeyName} }

// QueryExtension requests the current extension.
func QueryExtension() Request { return Request{Key: KeyExtension} }

// QueryTurn requests the current turn.
func QueryTurn() Request { return Request{Key: KeyTurn} }

// QueryPresetCount requests the number of presets supported by the device.
func QueryPresetCount() Request { return Request{Key: KeyPresetCount} }

// QueryFirmware requests the firmware version.
func QueryFirmware() Request { return Request{Key: KeyFirmware} }

// QueryChallenge requests an authentication challenge.
func QueryChallenge() Request { return Request{Key: KeyAuthChallenge} }

// GoToPreset moves the mount to a stored preset. presetCount is the number
// of presets known to be valid; index must be in [0, presetCount).
func GoToPreset(index, presetCount int) (Request, error) {
	if presetCount <= 0 {
		presetCount = DefaultPresetCount
	}
	if index < MinPreset || index >= presetCount {
		return Request{}, fmt.Errorf("%w: preset %d not in [%d, %d]", ErrEncoding, index, MinPreset, presetCount-1)
	}
	return Request{Key: KeyPresetIndex, Value: index}, nil
}

// GoToPosition moves the mount to an explicit extension and turn.
func GoToPosition(extension, turn int) (Request, error) {
	if err := checkExtension(extension); err != nil {
		return Request{}, err
	}
	if err := checkTurn(turn); err != nil {
		return Request{}, err
	}
	return Request{Key: KeyPresetPosition, Value: EncodePosition(extension, turn)}, nil
}

// SetExtension sets the extension target.
func SetExtension(extension int) (Request, error) {
	if err := checkExtension(extension); err != nil {
		return Request{}, err
	}
	return Request{Key: KeyExtensionTarget, Value: extension}, nil
}

// SetTurn sets the turn target.
func SetTurn(turn int) (Request, error) {
	if err := checkTurn(turn); err != nil {
		return Request{}, err
	}
	return Request{Key: KeyTurnTarget, Value: turn}, nil
}

// SetName renames the device.
func SetName(name string) (Request, error) {
	if err := CheckName(name); err != nil {
		return Request{}, err
	}
	return Request{Key: KeyName, Value: name}, nil
}

// AuthResponse carries the computed answer to an authentication challenge.
func AuthResponse(response []byte) Request {
	return Request{Key: KeyAuthResponse, Value: hex.EncodeToString(response)}
}

// CheckName validates a device name.
func CheckName(name string) error {
	if name == "" || len(name) > MaxNameLength {
		return fmt.Errorf("%w: name length %d not in [1, %d]", ErrEncoding, len(name), MaxNameLength)
	}
	for _, r := range name {
		if r == '"' || unicode.IsControl(r) {
			return fmt.Errorf("%w: name contains %q", ErrEncoding, r)
		}
	}
	return nil
}

func checkExtension(extension int) error {
	if extension < MinExtension || extension > MaxExtension {
		return fmt.Errorf("%w: extension %d not in [%d, %d]", ErrEncoding, extension, MinExtension, MaxExtension)
	}
	return nil
}

func checkTurn(turn int) error {
	if turn < MinTurn || turn > MaxTurn {
		return fmt.Errorf("%w: turn %d not in [%d, %d]", ErrEncoding, turn, MinTurn, MaxTurn)
	}
	return nil
}
