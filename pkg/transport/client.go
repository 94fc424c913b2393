package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/motionmount/motionmount-go/pkg/log"
	"github.com/motionmount/motionmount-go/pkg/wire"
)

// DefaultPort is the MotionMount control port.
const DefaultPort = 23

// DefaultConnectTimeout bounds dialing.
const DefaultConnectTimeout = 15 * time.Second

// Connection errors.
var (
	// ErrConnectTimeout indicates the peer did not accept the connection
	// within the connect timeout.
	ErrConnectTimeout = errors.New("connect timeout")

	// ErrConnectionRefused indicates the peer rejected the connection or
	// could not be reached.
	ErrConnectionRefused = errors.New("connection refused")

	// ErrConnectionLost indicates an established connection failed.
	ErrConnectionLost = errors.New("connection lost")

	// ErrConnectionClosed indicates the connection was closed locally.
	ErrConnectionClosed = errors.New("connection closed")
)

// ClientConfig configures a transport client.
type ClientConfig struct {
	// ConnectTimeout is the dial timeout (default: 15s). It applies only
	// when the context passed to Connect has no deadline.
	ConnectTimeout time.Duration

	// MaxLineLength is the maximum accepted line length
	// (default: wire.DefaultMaxLineLength).
	MaxLineLength int

	// WriteTimeout bounds a single write. Zero disables the deadline.
	WriteTimeout time.Duration

	// Dialer opens the TCP connection (default: *net.Dialer).
	Dialer Dialer

	// ProtocolLogger receives transport and wire events. Optional.
	ProtocolLogger log.Logger
}

// Client dials MotionMount devices.
type Client struct {
	config ClientConfig
}

// NewClient creates a new transport client.
func NewClient(config ClientConfig) *Client {
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	if config.MaxLineLength == 0 {
		config.MaxLineLength = wire.DefaultMaxLineLength
	}
	if config.Dialer == nil {
		config.Dialer = &net.Dialer{}
	}
	return &Client{config: config}
}

// Connect establishes a connection to address (host:port).
//
// Dial failures are classified: a timeout, or a context deadline, yields
// ErrConnectTimeout; every other failure wraps ErrConnectionRefused.
// Cancellation of ctx is returned as ctx.Err().
func (c *Client) Connect(ctx context.Context, address string) (*Conn, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	nc, err := c.config.Dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, classifyDialError(ctx, address, err)
	}

	id := uuid.New().String()
	conn := &Conn{
		conn:         nc,
		id:           id,
		reader:       NewFrameReaderWithMaxLength(nc, c.config.MaxLineLength),
		writer:       NewFrameWriter(nc),
		writeTimeout: c.config.WriteTimeout,
		logger:       c.config.ProtocolLogger,
		closeCh:      make(chan struct{}),
	}
	if conn.logger != nil {
		conn.reader.SetLogger(conn.logger, id)
		conn.writer.SetLogger(conn.logger, id)
	}
	return conn, nil
}

func classifyDialError(ctx context.Context, address string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s: %v", ErrConnectTimeout, address, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %s", ErrConnectionRefused, address)
	}
	return fmt.Errorf("%w: %s: %v", ErrConnectionRefused, address, err)
}

// Conn is an established connection to a device.
//
// Send may be called from any goroutine. Receive must only be called from
// a single reader goroutine.
type Conn struct {
	conn         net.Conn
	id           string
	reader       *FrameReader
	writer       *FrameWriter
	writeTimeout time.Duration
	logger       log.Logger
	closeCh      chan struct{}

	closeOnce sync.Once
}

// ID returns the connection id used in protocol log events.
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the remote network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// LocalAddr returns the local network address.
func (c *Conn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Send writes a request.
//
// Encoding errors (wire.ErrEncoding) are returned without touching the
// socket. I/O failures wrap ErrConnectionLost.
func (c *Conn) Send(req wire.Request) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}

	if _, err := wire.Encode(req); err != nil {
		return err
	}

	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		defer func() { _ = c.conn.SetWriteDeadline(time.Time{}) }()
	}

	if err := c.writer.WriteRequest(req); err != nil {
		c.logError(err, "write")
		return c.lostOrClosed(err)
	}
	return nil
}

// Receive blocks until the next frame arrives.
//
// Unknown frames are returned with a nil error. Stream failures wrap
// ErrConnectionLost; after Close, ErrConnectionClosed is returned.
func (c *Conn) Receive() (wire.Frame, error) {
	frame, err := c.reader.ReadFrame()
	if err != nil {
		c.logError(err, "read")
		return wire.Frame{}, c.lostOrClosed(err)
	}
	return frame, nil
}

// Close closes the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
	})
	return err
}

// Done is closed when Close has been called.
func (c *Conn) Done() <-chan struct{} {
	return c.closeCh
}

func (c *Conn) lostOrClosed(err error) error {
	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}
	return fmt.Errorf("%w: %w", ErrConnectionLost, err)
}

func (c *Conn) logError(err error, context string) {
	if c.logger == nil {
		return
	}
	select {
	case <-c.closeCh:
		// Errors caused by a local close are not interesting.
		return
	default:
	}
	ev := log.NewError(c.id, log.LayerTransport, err, context)
	ev.RemoteAddr = c.conn.RemoteAddr().String()
	c.logger.Log(ev)
}
