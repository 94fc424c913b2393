package motionmount

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/motionmount/motionmount-go/pkg/auth"
	"github.com/motionmount/motionmount-go/pkg/interaction"
	"github.com/motionmount/motionmount-go/pkg/log"
	"github.com/motionmount/motionmount-go/pkg/state"
	"github.com/motionmount/motionmount-go/pkg/transport"
	"github.com/motionmount/motionmount-go/pkg/wire"
)

// Session is a connection to one MotionMount.
type Session struct {
	host    string
	port    int
	address string
	config  Config
	client  *transport.Client
	cache   *state.Cache

	mu            sync.Mutex
	state         State
	link          *link
	connID        string
	lostErr       error
	epoch         uint64
	connectCancel context.CancelFunc
	stateHandlers []StateChangeFunc

	// closed is closed when an in-progress Disconnect has finished.
	closed chan struct{}
}

var errDisconnectedWhileConnecting = fmt.Errorf("%w: disconnected while connecting", ErrNotConnected)

// NewSession creates a disconnected session for the mount at host:port.
// A zero port selects DefaultPort.
func NewSession(host string, port int, opts ...Option) *Session {
	config := DefaultConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if port == 0 {
		port = DefaultPort
	}

	return &Session{
		host:    host,
		port:    port,
		address: net.JoinHostPort(host, strconv.Itoa(port)),
		config:  config,
		client: transport.NewClient(transport.ClientConfig{
			ConnectTimeout: config.ConnectTimeout,
			MaxLineLength:  config.MaxLineLength,
			WriteTimeout:   config.WriteTimeout,
			Dialer:         config.Dialer,
			ProtocolLogger: config.ProtocolLogger,
		}),
		cache: state.NewCache(),
	}
}

// Host returns the mount host.
func (s *Session) Host() string { return s.host }

// Port returns the mount port.
func (s *Session) Port() int { return s.port }

// Address returns host:port.
func (s *Session) Address() string { return s.address }

// Connect opens the connection, authenticates if the mount requires it and
// queries the current position.
//
// The whole sequence is bounded by Config.ConnectTimeout; exceeding it
// returns ErrConnectTimeout. A refused dial returns ErrConnectionRefused and
// a rejected handshake ErrAuthenticationFailed. On any failure the session
// is left in StateDisconnected.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.epoch++
	epoch := s.epoch
	ctx, cancel := context.WithTimeout(ctx, s.config.ConnectTimeout)
	defer cancel()
	s.connectCancel = cancel
	s.lostErr = nil
	notify := s.setStateLocked(StateConnecting, "connect requested")
	s.mu.Unlock()
	notify()

	s.debugLog("Connect: dialing", "address", s.address)
	conn, err := s.client.Connect(ctx, s.address)
	if err != nil {
		return s.abortConnect(epoch, nil, connectError(ctx, err))
	}

	s.cache.Reset()
	l := newLink(conn, s.cache, s.config, s.linkLost)
	l.start()

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		l.close()
		return errDisconnectedWhileConnecting
	}
	s.link = l
	s.connID = conn.ID()
	s.mu.Unlock()

	hs := &auth.Handshake{
		Exchanger:   auth.ExchangeFunc(l.exchange),
		Credentials: s.config.Credentials,
		OnChallenge: func() {
			s.advance(epoch, StateConnecting, StateAuthenticating, "challenge received")
		},
	}
	res, err := hs.Run(ctx)
	if err != nil {
		return s.abortConnect(epoch, l, connectError(ctx, err))
	}
	if res.Required {
		_ = l.call(func() { s.cache.SetAuthenticated(res.Required, res.Authenticated) })
		s.debugLog("Connect: authenticated", "address", s.address)
	}

	if err := s.prime(ctx, l); err != nil {
		return s.abortConnect(epoch, l, connectError(ctx, err))
	}

	s.mu.Lock()
	if s.epoch != epoch || s.link != l {
		err := s.lostErr
		s.mu.Unlock()
		if err == nil {
			err = errDisconnectedWhileConnecting
		}
		return err
	}
	s.connectCancel = nil
	notify = s.setStateLocked(StateReady, "connected")
	s.mu.Unlock()
	notify()
	return nil
}

// prime fills the cache with the current position, as the device does not
// push it on connect. Rejections are not fatal.
func (s *Session) prime(ctx context.Context, l *link) error {
	for _, req := range []wire.Request{wire.QueryExtension(), wire.QueryTurn(), wire.QueryPresetCount()} {
		_, err := l.exchange(ctx, req)
		var se *StatusError
		switch {
		case err == nil:
		case errors.As(err, &se):
			s.debugLog("Connect: initial query rejected", "key", req.Key, "status", se.Status.String())
		default:
			return err
		}
	}
	return nil
}

func connectError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, ErrConnectTimeout),
		errors.Is(err, ErrConnectionRefused),
		errors.Is(err, ErrAuthenticationFailed):
		return err
	case errors.Is(ctx.Err(), context.DeadlineExceeded),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, interaction.ErrRequestTimeout):
		return fmt.Errorf("%w: %w", ErrConnectTimeout, err)
	}
	return err
}

// abortConnect ends a failed connect attempt. If Disconnect superseded the
// attempt, the caller gets ErrNotConnected instead of the cancellation it
// caused.
func (s *Session) abortConnect(epoch uint64, l *link, err error) error {
	s.mu.Lock()
	notify := func() {}
	if s.epoch == epoch {
		if s.link == l {
			s.link = nil
		}
		s.connectCancel = nil
		s.lostErr = nil
		notify = s.setStateLocked(StateDisconnected, err.Error())
	} else {
		err = errDisconnectedWhileConnecting
	}
	s.mu.Unlock()
	notify()

	if l != nil {
		l.close()
	}
	s.debugLog("Connect: failed", "address", s.address, "error", err)
	return err
}

// advance moves from one state to another if the connect attempt is still
// current.
func (s *Session) advance(epoch uint64, from, to State, reason string) {
	s.mu.Lock()
	notify := func() {}
	if s.epoch == epoch && s.state == from {
		notify = s.setStateLocked(to, reason)
	}
	s.mu.Unlock()
	notify()
}

// linkLost runs on the actor of a failed link.
func (s *Session) linkLost(l *link, err error) {
	s.mu.Lock()
	if s.link != l {
		s.mu.Unlock()
		return
	}
	s.link = nil
	if s.state == StateReady {
		s.lostErr = err
	}
	notify := s.setStateLocked(StateDisconnected, err.Error())
	s.mu.Unlock()
	notify()
}

// Disconnect closes the connection. Outstanding requests fail with
// ErrConnectionLost. Disconnect is idempotent and always leaves the
// session in StateDisconnected; a call racing another Disconnect waits for
// it to finish.
func (s *Session) Disconnect() {
	s.mu.Lock()
	switch s.state {
	case StateDisconnected:
		s.lostErr = nil
		s.mu.Unlock()
		return
	case StateClosing:
		closed := s.closed
		s.mu.Unlock()
		<-closed
		return
	}
	s.epoch++
	if s.connectCancel != nil {
		s.connectCancel()
		s.connectCancel = nil
	}
	l := s.link
	s.link = nil
	s.lostErr = nil
	closed := make(chan struct{})
	s.closed = closed
	notify := s.setStateLocked(StateClosing, "disconnect requested")
	s.mu.Unlock()
	notify()

	if l != nil {
		l.close()
	}

	s.mu.Lock()
	notify = s.setStateLocked(StateDisconnected, "disconnected")
	s.closed = nil
	s.mu.Unlock()
	close(closed)
	notify()
}

// setStateLocked records a transition and returns a function that runs the
// state handlers. Call it after releasing s.mu.
func (s *Session) setStateLocked(next State, reason string) func() {
	old := s.state
	if old == next {
		return func() {}
	}
	s.state = next

	s.debugLog("state change", "from", old.String(), "to", next.String(), "reason", reason)
	if s.config.ProtocolLogger != nil {
		s.config.ProtocolLogger.Log(log.NewStateChange(s.connID, log.StateEntityConnection, old.String(), next.String(), reason))
	}

	handlers := append([]StateChangeFunc(nil), s.stateHandlers...)
	return func() {
		for _, h := range handlers {
			h(old, next)
		}
	}
}

// OnStateChange registers a handler for state transitions. Handlers must
// not block.
func (s *Session) OnStateChange(fn StateChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stateHandlers = append(s.stateHandlers, fn)
}

// OnChange registers a listener for device state changes, including
// unsolicited ones. Listeners run on the session's internal goroutine and
// must not block or call back into the session.
func (s *Session) OnChange(fn state.Listener) {
	s.cache.OnChange(fn)
}

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsConnected reports whether the session is ready for commands.
func (s *Session) IsConnected() bool {
	return s.State() == StateReady
}

// IsAuthenticated reports whether the mount accepted our credentials.
func (s *Session) IsAuthenticated() bool {
	return s.cache.Snapshot().Authenticated
}

// Snapshot returns the last known device state.
func (s *Session) Snapshot() state.DeviceState {
	return s.cache.Snapshot()
}

// Extension returns the last known extension (0..100).
func (s *Session) Extension() (int, bool) {
	return deref(s.cache.Snapshot().Extension)
}

// Turn returns the last known turn (-100..100).
func (s *Session) Turn() (int, bool) {
	return deref(s.cache.Snapshot().Turn)
}

// Preset returns the last preset the mount moved to.
func (s *Session) Preset() (int, bool) {
	return deref(s.cache.Snapshot().Preset)
}

// Name returns the last known device name.
func (s *Session) Name() string {
	return s.cache.Snapshot().Name
}

func deref(p *int) (int, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}

func (s *Session) activeLink() (*link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.state == StateReady && s.link != nil:
		return s.link, nil
	case s.lostErr != nil:
		return nil, s.lostErr
	default:
		return nil, ErrNotConnected
	}
}

// request sends req and waits for its confirmation.
func (s *Session) request(ctx context.Context, req wire.Request) (wire.Frame, error) {
	l, err := s.activeLink()
	if err != nil {
		return wire.Frame{}, err
	}
	return l.exchange(ctx, req)
}

func (s *Session) debugLog(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, args...)
	}
}
