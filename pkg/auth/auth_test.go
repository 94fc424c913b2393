package auth

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motionmount/motionmount-go/pkg/interaction"
	"github.com/motionmount/motionmount-go/pkg/wire"
)

var testNonce = []byte{0x9f, 0x86, 0xd0, 0x81, 0x88, 0x4c, 0x7d, 0x65, 0x9a, 0x2f}

// scriptedDevice answers handshake requests the way a mount would.
type scriptedDevice struct {
	challenge string
	secret    []byte

	challengeErr error
	responseErr  error

	requests []wire.Request
}

func (d *scriptedDevice) Exchange(_ context.Context, req wire.Request) (wire.Frame, error) {
	d.requests = append(d.requests, req)
	switch req.Key {
	case wire.KeyAuthChallenge:
		if d.challengeErr != nil {
			return wire.Frame{}, d.challengeErr
		}
		return wire.ParseLine(wire.KeyAuthChallenge + ` = "` + d.challenge + `"`), nil
	case wire.KeyAuthResponse:
		if d.responseErr != nil {
			return wire.Frame{}, d.responseErr
		}
		resp, _ := hex.DecodeString(req.Value.(string))
		nonce, _ := hex.DecodeString(d.challenge)
		if Verify(d.secret, nonce, resp) {
			return wire.ParseLine(wire.KeyAuthResult + " = 1"), nil
		}
		return wire.ParseLine(wire.KeyAuthResult + " = 0"), nil
	}
	return wire.Frame{}, errors.New("unexpected request")
}

func TestComputeResponseDeterministic(t *testing.T) {
	a, err := ComputeResponse([]byte("1234"), testNonce)
	require.NoError(t, err)
	b, err := ComputeResponse([]byte("1234"), testNonce)
	require.NoError(t, err)

	assert.Len(t, a, ResponseSize)
	assert.Equal(t, a, b)

	other, err := ComputeResponse([]byte("4321"), testNonce)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(a, other), "different secrets must give different responses")

	nonce2 := append([]byte(nil), testNonce...)
	nonce2[0] ^= 0xff
	other, err = ComputeResponse([]byte("1234"), nonce2)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(a, other), "different nonces must give different responses")
}

func TestComputeResponseShortNonce(t *testing.T) {
	_, err := ComputeResponse([]byte("1234"), []byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidChallenge)
}

func TestVerify(t *testing.T) {
	resp, err := ComputeResponse([]byte("1234"), testNonce)
	require.NoError(t, err)

	assert.True(t, Verify([]byte("1234"), testNonce, resp))
	assert.False(t, Verify([]byte("0000"), testNonce, resp))
	assert.False(t, Verify([]byte("1234"), testNonce, resp[:10]))
}

func TestHandshake(t *testing.T) {
	nonceHex := hex.EncodeToString(testNonce)

	tests := []struct {
		name        string
		device      *scriptedDevice
		credentials Credentials
		want        Result
		wantErr     error
		wantReqs    int
	}{
		{
			name:     "no authentication required",
			device:   &scriptedDevice{challenge: ""},
			want:     Result{},
			wantReqs: 1,
		},
		{
			name:     "firmware without authentication",
			device:   &scriptedDevice{challengeErr: &interaction.StatusError{Status: wire.StatusNotFound, Code: 404}},
			want:     Result{},
			wantReqs: 1,
		},
		{
			name:     "firmware rejecting the challenge key as bad request",
			device:   &scriptedDevice{challengeErr: &interaction.StatusError{Status: wire.StatusBadRequest, Code: 400}},
			want:     Result{},
			wantReqs: 1,
		},
		{
			name:     "firmware rejecting the challenge query method",
			device:   &scriptedDevice{challengeErr: &interaction.StatusError{Status: wire.StatusMethodNotAllowed, Code: 405}},
			want:     Result{},
			wantReqs: 1,
		},
		{
			name:     "challenge forbidden",
			device:   &scriptedDevice{challengeErr: &interaction.StatusError{Status: wire.StatusForbidden, Code: 403}},
			want:     Result{},
			wantErr:  ErrAuthenticationFailed,
			wantReqs: 1,
		},
		{
			name:        "correct secret",
			device:      &scriptedDevice{challenge: nonceHex, secret: []byte("1234")},
			credentials: NewCredentials("1234"),
			want:        Result{Required: true, Authenticated: true},
			wantReqs:    2,
		},
		{
			name:        "wrong secret",
			device:      &scriptedDevice{challenge: nonceHex, secret: []byte("1234")},
			credentials: NewCredentials("9999"),
			want:        Result{Required: true},
			wantErr:     ErrAuthenticationFailed,
			wantReqs:    2,
		},
		{
			name:     "challenge without credentials",
			device:   &scriptedDevice{challenge: nonceHex, secret: []byte("1234")},
			want:     Result{Required: true},
			wantErr:  ErrAuthenticationFailed,
			wantReqs: 1,
		},
		{
			name: "response rejected with status",
			device: &scriptedDevice{
				challenge:   nonceHex,
				responseErr: &interaction.StatusError{Status: wire.StatusForbidden, Code: 403},
			},
			credentials: NewCredentials("1234"),
			want:        Result{Required: true},
			wantErr:     ErrAuthenticationFailed,
			wantReqs:    2,
		},
		{
			name:        "malformed challenge",
			device:      &scriptedDevice{challenge: "not-hex"},
			credentials: NewCredentials("1234"),
			want:        Result{Required: true},
			wantErr:     ErrAuthenticationFailed,
			wantReqs:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &Handshake{Exchanger: tt.device, Credentials: tt.credentials}
			got, err := h.Run(context.Background())

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
			assert.Len(t, tt.device.requests, tt.wantReqs)
		})
	}
}

func TestHandshakeTransportErrorPassesThrough(t *testing.T) {
	lost := errors.New("connection lost")
	h := &Handshake{
		Exchanger: ExchangeFunc(func(context.Context, wire.Request) (wire.Frame, error) {
			return wire.Frame{}, lost
		}),
		Credentials: NewCredentials("1234"),
	}

	_, err := h.Run(context.Background())
	assert.ErrorIs(t, err, lost)
	assert.NotErrorIs(t, err, ErrAuthenticationFailed)
}

func TestHandshakeOnChallenge(t *testing.T) {
	called := 0
	h := &Handshake{
		Exchanger:   &scriptedDevice{challenge: hex.EncodeToString(testNonce), secret: []byte("s")},
		Credentials: NewCredentials("s"),
		OnChallenge: func() { called++ },
	}

	_, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, called)
}

func TestHandshakeAcceptedStatus(t *testing.T) {
	h := &Handshake{
		Exchanger: ExchangeFunc(func(_ context.Context, req wire.Request) (wire.Frame, error) {
			if req.Key == wire.KeyAuthChallenge {
				return wire.ParseLine(wire.KeyAuthChallenge + ` = "` + hex.EncodeToString(testNonce) + `"`), nil
			}
			return wire.ParseLine("#202"), nil
		}),
		Credentials: NewCredentials("1234"),
	}

	got, err := h.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Required: true, Authenticated: true}, got)
}
