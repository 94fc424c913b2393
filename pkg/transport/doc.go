// Package transport provides the MotionMount transport layer.
//
// The transport layer handles:
//   - TCP dialing with a connect timeout and error classification
//   - Newline framing on top of the wire codec
//   - Protocol log events for every line sent and received
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│   key / key = value / #code    │
//	├────────────────────────────────┤
//	│     Newline Framing (\n)       │
//	├────────────────────────────────┤
//	│           TCP (23)             │
//	└────────────────────────────────┘
//
// The mount does not use TLS. Authentication, when enabled on the device,
// runs as a challenge/response exchange over the same line protocol (see
// package auth).
package transport
