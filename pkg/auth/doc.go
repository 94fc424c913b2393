// Package auth implements the MotionMount challenge/response handshake.
//
// # Handshake
//
// Right after the TCP connection is established the client queries the
// device challenge:
//
//	client: authentication/challenge
//	device: authentication/challenge = "9f86d081884c7d65"
//
// An empty challenge, or #404 from firmware without authentication, means
// the device is open. Otherwise the client proves knowledge of the shared
// secret without sending it:
//
//	key      = HKDF-SHA256(secret, salt = nonce, info = "motionmount-auth")
//	response = HMAC-SHA256(key, nonce)
//
//	client: authentication/response = "<hex response>"
//	device: authentication/result = 1
//
// A result of 0, or #401/#403, is a failure. The device side of the
// computation is available as Verify.
package auth
