// Package motionmount is a client for Vogel's MotionMount motorized TV
// mounts.
//
// A Session keeps one TCP connection to a mount, authenticates when the
// mount requires it, and exposes the mount's controls as blocking calls
// that return once the device has confirmed them:
//
//	s := motionmount.NewSession("192.168.1.40", motionmount.DefaultPort,
//	    motionmount.WithCredentials(auth.NewCredentials("1234")),
//	)
//	if err := s.Connect(ctx); err != nil {
//	    return err
//	}
//	defer s.Disconnect()
//
//	if err := s.GoToPreset(ctx, 1); err != nil {
//	    return err
//	}
//
// The last known device state is cached and updated from every frame the
// mount sends, including unsolicited ones. Read it with Snapshot or the
// Extension, Turn, Preset and Name accessors, or register a listener with
// OnChange.
//
// # Concurrency
//
// All methods are safe for concurrent use. Requests of different kinds may
// be outstanding at the same time; a second request of a kind that is
// already outstanding fails immediately with ErrRequestInFlight.
//
// Cancelling the context of a call stops the caller from waiting. The
// request itself stays outstanding until the device answers or it times
// out.
//
// # Connection loss
//
// The session never reconnects on its own. After a connection failure every
// outstanding request fails with ErrConnectionLost, the session moves to
// StateDisconnected, and further calls return an error wrapping
// ErrConnectionLost until Connect succeeds again. See package connection for
// an opt-in reconnect loop.
package motionmount
