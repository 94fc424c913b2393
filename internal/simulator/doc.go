// Package simulator provides an in-process fake MotionMount.
//
// A Device listens on a loopback TCP port and speaks the MotionMount line
// protocol: it answers queries, executes moves, confirms writes either by
// echo or with #202, runs the authentication handshake when a secret is
// configured, and lets tests inject pushes, silence keys or drop
// connections.
package simulator
