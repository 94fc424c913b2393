package motionmount

import (
	"errors"

	"github.com/motionmount/motionmount-go/pkg/auth"
	"github.com/motionmount/motionmount-go/pkg/interaction"
	"github.com/motionmount/motionmount-go/pkg/transport"
	"github.com/motionmount/motionmount-go/pkg/wire"
)

// Session errors.
var (
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// Errors returned by the layers below, re-exported for errors.Is.
var (
	ErrConnectTimeout       = transport.ErrConnectTimeout
	ErrConnectionRefused    = transport.ErrConnectionRefused
	ErrConnectionLost       = transport.ErrConnectionLost
	ErrAuthenticationFailed = auth.ErrAuthenticationFailed
	ErrRequestTimeout       = interaction.ErrRequestTimeout
	ErrRequestInFlight      = interaction.ErrRequestInFlight
	ErrEncoding             = wire.ErrEncoding
	ErrUnknownFrame         = wire.ErrUnknownFrame
)

// StatusError is a device rejection of a request (any status other than
// #202). Use errors.As to inspect the status.
type StatusError = interaction.StatusError
