// Package wire defines the MotionMount line protocol.
//
// Every message is a single line of text terminated by a newline. A client
// sends either a query (just a key) or a write (key, equals sign, value):
//
//	mount/extension/current
//	mount/preset/index = 3
//
// The device answers with one of two line shapes:
//   - A value report: "key = value". This is either the answer to a query,
//     the echo of a write, or an unsolicited push after a state change.
//   - A status: "#" followed by an HTTP-like code, e.g. "#202" (Accepted)
//     or "#404" (NotFound).
//
// The protocol carries no request identifiers. Callers correlate replies by
// key and by stream order; see package interaction.
//
// # Values
//
// Integers are decimal, strings are enclosed in double quotes and byte
// arrays are hex digits enclosed in square brackets. The preset position
// value packs a big-endian uint16 extension and a big-endian int16 turn:
//
//	mount/preset/position = [0032ffce]   // extension 50, turn -50
package wire
