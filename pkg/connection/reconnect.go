package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrReconnectorRunning is returned when Run is called twice.
var ErrReconnectorRunning = errors.New("reconnector already running")

// Connector establishes a connection. *motionmount.Session implements it.
type Connector interface {
	Connect(ctx context.Context) error
}

// ReconnectorConfig configures a Reconnector.
type ReconnectorConfig struct {
	// Backoff spaces the attempts.
	Backoff BackoffConfig

	// Permanent reports errors that make further attempts pointless, such
	// as rejected credentials. Run returns the first permanent error.
	// If nil, every error is retried.
	Permanent func(error) bool

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// OnAttempt is called after every failed attempt.
	OnAttempt func(attempt int, err error, next time.Duration)

	// OnReconnected is called after a successful attempt.
	OnReconnected func(attempts int)
}

// Reconnector reconnects a Connector after NotifyLost, with backoff.
type Reconnector struct {
	connector Connector
	config    ReconnectorConfig
	backoff   *Backoff
	lost      chan struct{}

	mu      sync.Mutex
	running bool
}

// NewReconnector creates a reconnector for c.
func NewReconnector(c Connector, config ReconnectorConfig) *Reconnector {
	return &Reconnector{
		connector: c,
		config:    config,
		backoff:   NewBackoffWithConfig(config.Backoff),
		lost:      make(chan struct{}, 1),
	}
}

// NotifyLost signals that the connection dropped. It never blocks;
// signals received while an attempt is already pending are merged.
func (r *Reconnector) NotifyLost() {
	select {
	case r.lost <- struct{}{}:
	default:
	}
}

// Backoff returns the backoff used between attempts.
func (r *Reconnector) Backoff() *Backoff {
	return r.backoff
}

// Run waits for loss notifications and reconnects until ctx is done.
// It returns ctx.Err() on cancellation or the first permanent error.
func (r *Reconnector) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return ErrReconnectorRunning
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.lost:
		}

		if err := r.reconnect(ctx); err != nil {
			return err
		}
	}
}

func (r *Reconnector) reconnect(ctx context.Context) error {
	for {
		delay := r.backoff.Next()
		r.debugLog("reconnect: waiting", "attempt", r.backoff.Attempts(), "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		err := r.connector.Connect(ctx)
		if err == nil {
			attempts := r.backoff.Attempts()
			r.backoff.Reset()
			r.debugLog("reconnect: connected", "attempts", attempts)
			if r.config.OnReconnected != nil {
				r.config.OnReconnected(attempts)
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if r.config.Permanent != nil && r.config.Permanent(err) {
			r.debugLog("reconnect: giving up", "error", err)
			return err
		}

		r.debugLog("reconnect: attempt failed", "attempt", r.backoff.Attempts(), "error", err)
		if r.config.OnAttempt != nil {
			r.config.OnAttempt(r.backoff.Attempts(), err, r.backoff.Current())
		}
	}
}

func (r *Reconnector) debugLog(msg string, args ...any) {
	if r.config.Logger != nil {
		r.config.Logger.Debug(msg, args...)
	}
}
