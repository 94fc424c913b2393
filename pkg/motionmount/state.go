package motionmount

// State is the session lifecycle state.
type State uint8

const (
	// StateDisconnected - no connection.
	StateDisconnected State = iota

	// StateConnecting - dialing and querying the challenge.
	StateConnecting

	// StateAuthenticating - the mount issued a challenge.
	StateAuthenticating

	// StateReady - connected and, if required, authenticated.
	StateReady

	// StateClosing - Disconnect is tearing the connection down.
	StateClosing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateReady:
		return "READY"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// StateChangeFunc is called after every state transition.
type StateChangeFunc func(old, new State)
