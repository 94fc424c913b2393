package motionmount

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/motionmount/motionmount-go/pkg/auth"
	"github.com/motionmount/motionmount-go/pkg/interaction"
	"github.com/motionmount/motionmount-go/pkg/log"
	"github.com/motionmount/motionmount-go/pkg/transport"
	"github.com/motionmount/motionmount-go/pkg/wire"
)

// DefaultPort is the MotionMount control port.
const DefaultPort = transport.DefaultPort

// Config configures a Session.
type Config struct {
	// ConnectTimeout bounds Connect, authentication included (default: 15s).
	ConnectTimeout time.Duration

	// RequestTimeout is how long a request waits for the device
	// (default: 5s).
	RequestTimeout time.Duration

	// WriteTimeout bounds a single socket write (default: 5s).
	WriteTimeout time.Duration

	// MaxLineLength is the maximum accepted line length
	// (default: wire.DefaultMaxLineLength).
	MaxLineLength int

	// Credentials are used when the mount requires authentication.
	Credentials auth.Credentials

	// MaxPreset overrides the highest accepted preset index. Zero uses the
	// preset count reported by the mount, or presets 0..9 when it has not
	// reported one.
	MaxPreset int

	// Dialer opens the TCP connection (default: *net.Dialer).
	Dialer transport.Dialer

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger receives protocol events. Optional.
	ProtocolLogger log.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: transport.DefaultConnectTimeout,
		RequestTimeout: interaction.DefaultTimeout,
		WriteTimeout:   5 * time.Second,
		MaxLineLength:  wire.DefaultMaxLineLength,
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: connect timeout must be positive", ErrInvalidConfig)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%w: request timeout must be positive", ErrInvalidConfig)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("%w: write timeout must not be negative", ErrInvalidConfig)
	}
	if c.MaxLineLength <= 0 {
		return fmt.Errorf("%w: max line length must be positive", ErrInvalidConfig)
	}
	if c.MaxPreset < 0 {
		return fmt.Errorf("%w: max preset must not be negative", ErrInvalidConfig)
	}
	return nil
}

// Option modifies a Config.
type Option func(*Config)

// WithConfig replaces the whole configuration.
func WithConfig(config Config) Option {
	return func(c *Config) { *c = config }
}

// WithConnectTimeout sets the connect timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Config) { c.ConnectTimeout = d }
}

// WithRequestTimeout sets the request timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Config) { c.RequestTimeout = d }
}

// WithWriteTimeout sets the write timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) { c.WriteTimeout = d }
}

// WithCredentials sets the authentication credentials.
func WithCredentials(creds auth.Credentials) Option {
	return func(c *Config) { c.Credentials = creds }
}

// WithMaxPreset overrides the highest accepted preset index.
func WithMaxPreset(n int) Option {
	return func(c *Config) { c.MaxPreset = n }
}

// WithDialer sets the dialer.
func WithDialer(d transport.Dialer) Option {
	return func(c *Config) { c.Dialer = d }
}

// WithLogger sets the debug logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithProtocolLogger sets the protocol logger.
func WithProtocolLogger(l log.Logger) Option {
	return func(c *Config) { c.ProtocolLogger = l }
}
