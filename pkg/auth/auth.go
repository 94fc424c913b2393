package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"github.com/motionmount/motionmount-go/pkg/interaction"
	"github.com/motionmount/motionmount-go/pkg/wire"
)

// Handshake constants.
const (
	// KeySize is the size of the derived MAC key in bytes.
	KeySize = 32

	// ResponseSize is the size of a challenge response in bytes.
	ResponseSize = sha256.Size

	// MinNonceSize is the smallest challenge a device may send.
	MinNonceSize = 8
)

var keyInfo = []byte("motionmount-auth")

// Authentication errors.
var (
	// ErrAuthenticationFailed indicates the device rejected the
	// credentials, or credentials were required but not configured.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrInvalidChallenge indicates a malformed device challenge.
	ErrInvalidChallenge = errors.New("invalid challenge")
)

// Credentials hold the shared secret configured on the mount.
type Credentials struct {
	Secret []byte
}

// NewCredentials creates credentials from a secret string (for example the
// PIN configured in the MotionMount app).
func NewCredentials(secret string) Credentials {
	return Credentials{Secret: []byte(secret)}
}

// IsZero reports whether no secret is configured.
func (c Credentials) IsZero() bool {
	return len(c.Secret) == 0
}

// ComputeResponse derives the response to a device challenge.
func ComputeResponse(secret, nonce []byte) ([]byte, error) {
	if len(nonce) < MinNonceSize {
		return nil, fmt.Errorf("%w: nonce must be at least %d bytes, got %d", ErrInvalidChallenge, MinNonceSize, len(nonce))
	}

	hkdfReader := hkdf.New(sha256.New, secret, nonce, keyInfo)
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(hkdfReader, key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(nonce)
	return mac.Sum(nil), nil
}

// Verify checks a response against the expected secret in constant time.
func Verify(secret, nonce, response []byte) bool {
	expected, err := ComputeResponse(secret, nonce)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, response)
}

// Exchanger sends a request and returns the frame that resolved it.
// A rejected request returns an *interaction.StatusError.
type Exchanger interface {
	Exchange(ctx context.Context, req wire.Request) (wire.Frame, error)
}

// ExchangeFunc adapts a function to the Exchanger interface.
type ExchangeFunc func(ctx context.Context, req wire.Request) (wire.Frame, error)

// Exchange calls f.
func (f ExchangeFunc) Exchange(ctx context.Context, req wire.Request) (wire.Frame, error) {
	return f(ctx, req)
}

// Result describes a completed handshake.
type Result struct {
	// Required is true if the device issued a challenge.
	Required bool

	// Authenticated is true if the device accepted the response.
	Authenticated bool
}

// Handshake runs the client side of the authentication exchange.
type Handshake struct {
	Exchanger   Exchanger
	Credentials Credentials

	// OnChallenge is called when the device requires authentication,
	// before the response is sent. Optional.
	OnChallenge func()
}

// Run performs the handshake.
//
// It returns a zero Result and nil error for devices without
// authentication, including firmware that rejects the challenge key as
// unknown (#400, #404 or #405). Any other rejection wraps
// ErrAuthenticationFailed; transport and timeout errors are returned
// unchanged.
func (h *Handshake) Run(ctx context.Context) (Result, error) {
	f, err := h.Exchanger.Exchange(ctx, wire.QueryChallenge())
	if err != nil {
		var se *interaction.StatusError
		if errors.As(err, &se) {
			if challengeUnsupported(se.Status) {
				return Result{}, nil
			}
			return Result{}, fmt.Errorf("%w: challenge: %w", ErrAuthenticationFailed, err)
		}
		return Result{}, fmt.Errorf("challenge: %w", err)
	}

	text := f.Text()
	if text == "" {
		return Result{}, nil
	}
	result := Result{Required: true}

	nonce, err := hex.DecodeString(text)
	if err != nil {
		return result, fmt.Errorf("%w: %w: %q", ErrAuthenticationFailed, ErrInvalidChallenge, text)
	}
	if h.Credentials.IsZero() {
		return result, fmt.Errorf("%w: device requires authentication but no credentials are configured", ErrAuthenticationFailed)
	}
	if h.OnChallenge != nil {
		h.OnChallenge()
	}

	response, err := ComputeResponse(h.Credentials.Secret, nonce)
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}

	f, err = h.Exchanger.Exchange(ctx, wire.AuthResponse(response))
	if err != nil {
		var se *interaction.StatusError
		if errors.As(err, &se) && se.Status.IsAuthError() {
			return result, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
		}
		return result, fmt.Errorf("response: %w", err)
	}
	if f.Type == wire.FrameResponse {
		// #202 without an explicit result counts as acceptance.
		result.Authenticated = true
		return result, nil
	}

	ok, err := f.Bool()
	if err != nil {
		return result, fmt.Errorf("%w: %w", ErrAuthenticationFailed, err)
	}
	if !ok {
		return result, fmt.Errorf("%w: device rejected response", ErrAuthenticationFailed)
	}
	result.Authenticated = true
	return result, nil
}

// challengeUnsupported reports whether a status answering the challenge
// query means the firmware has no authentication.
func challengeUnsupported(status wire.Status) bool {
	switch status {
	case wire.StatusBadRequest, wire.StatusNotFound, wire.StatusMethodNotAllowed:
		return true
	}
	return false
}
