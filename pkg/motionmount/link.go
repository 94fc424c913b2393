package motionmount

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/motionmount/motionmount-go/pkg/interaction"
	"github.com/motionmount/motionmount-go/pkg/log"
	"github.com/motionmount/motionmount-go/pkg/state"
	"github.com/motionmount/motionmount-go/pkg/transport"
	"github.com/motionmount/motionmount-go/pkg/wire"
)

var errLinkClosed = fmt.Errorf("%w: connection closed locally", ErrConnectionLost)

type submission struct {
	req   wire.Request
	reply chan submitReply
}

type submitReply struct {
	pending *interaction.Pending
	err     error
}

// link owns one live connection.
//
// A single actor goroutine (run) owns the correlator, the cache writes and
// the write path. A reader goroutine blocks on the socket and hands frames
// to the actor.
type link struct {
	conn   *transport.Conn
	corr   *interaction.Correlator
	cache  *state.Cache
	logger *slog.Logger
	plog   log.Logger

	submitCh chan submission
	callCh   chan func()
	frames   chan wire.Frame
	readErr  chan error
	closeCh  chan struct{}
	done     chan struct{}

	// err is the reason the actor stopped; valid once done is closed.
	err error

	// onLost is called from the actor when the connection fails.
	onLost func(*link, error)
}

func newLink(conn *transport.Conn, cache *state.Cache, config Config, onLost func(*link, error)) *link {
	return &link{
		conn:     conn,
		corr:     interaction.NewCorrelator(config.RequestTimeout),
		cache:    cache,
		logger:   config.Logger,
		plog:     config.ProtocolLogger,
		submitCh: make(chan submission),
		callCh:   make(chan func()),
		frames:   make(chan wire.Frame),
		readErr:  make(chan error, 1),
		closeCh:  make(chan struct{}),
		done:     make(chan struct{}),
		onLost:   onLost,
	}
}

func (l *link) start() {
	go l.readLoop()
	go l.run()
}

// close stops the actor, fails outstanding requests and waits for the
// actor to exit. It is safe to call more than once.
func (l *link) close() {
	select {
	case <-l.closeCh:
	default:
		close(l.closeCh)
	}
	<-l.done
}

func (l *link) readLoop() {
	for {
		f, err := l.conn.Receive()
		if err != nil {
			l.readErr <- err
			return
		}
		select {
		case l.frames <- f:
		case <-l.done:
			return
		}
	}
}

func (l *link) run() {
	defer close(l.done)

	for {
		select {
		case s := <-l.submitCh:
			if err := l.submit(s); err != nil {
				l.fail(err)
				return
			}

		case fn := <-l.callCh:
			fn()

		case f := <-l.frames:
			l.handleFrame(f)

		case p := <-l.corr.Expired():
			if l.corr.Expire(p) {
				l.debugLog("request timed out", "key", p.Request().Key, "timeout", l.corr.Timeout())
			}

		case err := <-l.readErr:
			l.fail(err)
			return

		case <-l.closeCh:
			l.err = errLinkClosed
			l.corr.FailAll(errLinkClosed)
			l.corr.Close()
			_ = l.conn.Close()
			return
		}
	}
}

// submit registers and sends a request. A non-nil return is a connection
// failure that ends the actor.
func (l *link) submit(s submission) error {
	p, err := l.corr.Register(s.req)
	if err != nil {
		s.reply <- submitReply{err: err}
		return nil
	}

	if err := l.conn.Send(s.req); err != nil {
		l.corr.Cancel(p, err)
		if errors.Is(err, wire.ErrEncoding) {
			s.reply <- submitReply{err: err}
			return nil
		}
		s.reply <- submitReply{err: lostError(err)}
		return err
	}

	s.reply <- submitReply{pending: p}
	return nil
}

func (l *link) handleFrame(f wire.Frame) {
	if f.Type == wire.FrameUnknown {
		l.debugLog("ignoring unknown frame", "line", f.Raw, "overflow", f.Overflow)
		l.logFrame(f, true, 0)
		return
	}

	// The cache is updated before the request is resolved so that a caller
	// woken by the reply observes the confirmed state. Oldest is nil when
	// the status answers a timed-out request, so no echo is applied then.
	l.apply(f)
	if f.Type == wire.FrameResponse && f.Status == wire.StatusAccepted {
		if p := l.corr.Oldest(); p != nil && !p.Request().IsQuery() {
			l.apply(wire.ParseLine(p.Request().String()))
		}
	}

	var roundTrip time.Duration
	if f.Type == wire.FrameResponse {
		if p := l.corr.Oldest(); p != nil {
			roundTrip = time.Since(p.Sent())
		}
	}

	awaiting := l.corr.Awaiting()
	claimed := l.corr.Resolve(f)
	if claimed && l.corr.Awaiting() < awaiting {
		l.debugLog("late reply to timed-out request", "frame", f.String())
	}
	if !claimed && f.Type == wire.FrameResponse {
		l.debugLog("status without outstanding request", "status", f.Status.String(), "code", f.Code)
	}
	l.logFrame(f, !claimed, roundTrip)
}

func (l *link) apply(f wire.Frame) {
	change, err := l.cache.Apply(f)
	if err != nil {
		l.debugLog("ignoring malformed value", "key", f.Key, "value", f.Value, "error", err)
		return
	}
	if !change.IsZero() {
		l.debugLog("state changed", "key", change.Key, "fields", change.Fields.String())
	}
}

func (l *link) fail(err error) {
	lost := lostError(err)
	l.err = lost

	n := l.corr.FailAll(lost)
	l.corr.Close()
	_ = l.conn.Close()

	l.debugLog("connection lost", "error", err, "failedRequests", n)
	if l.plog != nil {
		l.plog.Log(log.NewError(l.conn.ID(), log.LayerSession, err, "connection lost"))
	}
	if l.onLost != nil {
		l.onLost(l, lost)
	}
}

// exchange submits req and waits for the frame that resolves it.
func (l *link) exchange(ctx context.Context, req wire.Request) (wire.Frame, error) {
	reply := make(chan submitReply, 1)
	select {
	case l.submitCh <- submission{req: req, reply: reply}:
	case <-l.done:
		return wire.Frame{}, l.err
	case <-ctx.Done():
		return wire.Frame{}, ctx.Err()
	}

	r := <-reply
	if r.err != nil {
		return wire.Frame{}, r.err
	}

	select {
	case res := <-r.pending.Done():
		return res.Frame, res.Err
	case <-ctx.Done():
		return wire.Frame{}, ctx.Err()
	}
}

// call runs fn on the actor goroutine and waits for it to return.
func (l *link) call(fn func()) error {
	finished := make(chan struct{})
	select {
	case l.callCh <- func() { fn(); close(finished) }:
		<-finished
		return nil
	case <-l.done:
		return l.err
	}
}

func (l *link) logFrame(f wire.Frame, unsolicited bool, roundTrip time.Duration) {
	if l.plog == nil {
		return
	}
	ev := log.NewFrameMessage(l.conn.ID(), f, unsolicited, roundTrip)
	ev.RemoteAddr = l.conn.RemoteAddr().String()
	l.plog.Log(ev)
}

func (l *link) debugLog(msg string, args ...any) {
	if l.logger != nil {
		l.logger.Debug(msg, args...)
	}
}

func lostError(err error) error {
	if errors.Is(err, ErrConnectionLost) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrConnectionLost, err)
}
