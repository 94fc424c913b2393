package wire

// Protocol keys understood by this client.
const (
	KeyName            = "configuration/name"
	KeyExtension       = "mount/extension/current"
	KeyTurn            = "mount/turn/current"
	KeyExtensionTarget = "mount/extension/target"
	KeyTurnTarget      = "mount/turn/target"
	KeyPresetIndex     = "mount/preset/index"
	KeyPresetPosition  = "mount/preset/position"
	KeyPresetCount     = "mount/preset/count"
	KeyFirmware        = "version/ce/firmware"
	KeyAuthChallenge   = "authentication/challenge"
	KeyAuthResponse    = "authentication/response"
	KeyAuthResult      = "authentication/result"
)

// Kind identifies a command type for request correlation. At most one
// request of each kind may be outstanding on a connection.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindName
	KindExtension
	KindTurn
	KindExtensionTarget
	KindTurnTarget
	KindPresetIndex
	KindPresetPosition
	KindPresetCount
	KindFirmware
	KindAuthChallenge
	KindAuthResponse
)

var kindByKey = map[string]Kind{
	KeyName:            KindName,
	KeyExtension:       KindExtension,
	KeyTurn:            KindTurn,
	KeyExtensionTarget: KindExtensionTarget,
	KeyTurnTarget:      KindTurnTarget,
	KeyPresetIndex:     KindPresetIndex,
	KeyPresetPosition:  KindPresetPosition,
	KeyPresetCount:     KindPresetCount,
	KeyFirmware:        KindFirmware,
	KeyAuthChallenge:   KindAuthChallenge,
	KeyAuthResponse:    KindAuthResponse,
}

// KindOf returns the command kind for a protocol key.
func KindOf(key string) Kind {
	return kindByKey[key]
}

// IsKnownKey reports whether the key is part of the protocol subset this
// client understands. The authentication result is only ever sent by the
// device and therefore has no Kind of its own.
func IsKnownKey(key string) bool {
	_, ok := kindByKey[key]
	return ok || key == KeyAuthResult
}

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindName:
		return "Name"
	case KindExtension:
		return "Extension"
	case KindTurn:
		return "Turn"
	case KindExtensionTarget:
		return "ExtensionTarget"
	case KindTurnTarget:
		return "TurnTarget"
	case KindPresetIndex:
		return "PresetIndex"
	case KindPresetPosition:
		return "PresetPosition"
	case KindPresetCount:
		return "PresetCount"
	case KindFirmware:
		return "Firmware"
	case KindAuthChallenge:
		return "AuthChallenge"
	case KindAuthResponse:
		return "AuthResponse"
	default:
		return "Unknown"
	}
}
