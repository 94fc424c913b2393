// Package connection provides opt-in reconnection for MotionMount sessions.
//
// A motionmount.Session never reconnects on its own. Callers that want a
// session to come back after the mount reboots or the network drops run a
// Reconnector next to it and tell it about connection loss:
//
//	r := connection.NewReconnector(session, connection.ReconnectorConfig{})
//	session.OnStateChange(func(old, new motionmount.State) {
//		if old == motionmount.StateReady && new == motionmount.StateDisconnected {
//			r.NotifyLost()
//		}
//	})
//	go r.Run(ctx)
//
// # Backoff
//
// Attempts are spaced with exponential backoff:
//
//  1. Initial delay: 1 second
//  2. Doubling: 2s, 4s, 8s, 16s
//  3. Maximum delay: 30 seconds, repeated until an attempt succeeds
//  4. Reset to 1s after a successful connect
//
// Each delay gets up to 25% random jitter so that several controllers
// do not hit the mount in lockstep:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
package connection
