package transport

import (
	"context"
	"net"

	"github.com/motionmount/motionmount-go/pkg/wire"
)

// Dialer opens network connections.
// Implemented by *net.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Connection is an established device connection.
// Implemented by Conn.
type Connection interface {
	// ID returns the connection id.
	ID() string

	// RemoteAddr returns the remote network address.
	RemoteAddr() net.Addr

	// Send writes a request.
	Send(req wire.Request) error

	// Receive blocks until the next frame arrives.
	Receive() (wire.Frame, error)

	// Close closes the connection.
	Close() error
}

// Compile-time interface satisfaction checks.
var (
	_ Dialer     = (*net.Dialer)(nil)
	_ Connection = (*Conn)(nil)
)
