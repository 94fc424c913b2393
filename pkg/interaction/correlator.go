package interaction

import (
	"errors"
	"fmt"
	"time"

	"github.com/motionmount/motionmount-go/pkg/wire"
)

// DefaultTimeout is the default time a request waits for its reply.
const DefaultTimeout = 5 * time.Second

// Correlator errors.
var (
	ErrRequestTimeout   = errors.New("request timed out")
	ErrRequestInFlight  = errors.New("request of the same kind already in flight")
	ErrCorrelatorClosed = errors.New("correlator is closed")
	ErrUncorrelated     = errors.New("request kind cannot be correlated")
)

// Result is the outcome of a request.
type Result struct {
	// Frame is the frame that resolved the request. It is the zero frame
	// when the request failed without a reply.
	Frame wire.Frame

	// Err is nil for accepted requests, a *StatusError for rejected ones,
	// and ErrRequestTimeout or a connection error otherwise.
	Err error
}

// Pending is an outstanding request.
type Pending struct {
	id       uint64
	kind     wire.Kind
	req      wire.Request
	replyKey string
	sent     time.Time

	timer *time.Timer
	done  chan Result

	// expired marks a timed-out request whose reply has not arrived yet.
	// It keeps its place in the stream order so the late reply is
	// absorbed instead of being credited to a younger request.
	expired bool
}

// ID returns the registration sequence number.
func (p *Pending) ID() uint64 { return p.id }

// Kind returns the correlation kind.
func (p *Pending) Kind() wire.Kind { return p.kind }

// Request returns the registered request.
func (p *Pending) Request() wire.Request { return p.req }

// Sent returns the registration time.
func (p *Pending) Sent() time.Time { return p.sent }

// Done delivers the result exactly once.
func (p *Pending) Done() <-chan Result { return p.done }

// Correlator matches replies to outstanding requests.
//
// The device answers in request order. A request that timed out still
// occupies its position until its late reply arrives; its kind slot is
// free again immediately.
type Correlator struct {
	timeout time.Duration
	nextID  uint64

	slots map[wire.Kind]*Pending
	order []*Pending

	expired chan *Pending
	stop    chan struct{}
	closed  bool
}

// NewCorrelator creates a correlator with the given request timeout.
// A non-positive timeout selects DefaultTimeout.
func NewCorrelator(timeout time.Duration) *Correlator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Correlator{
		timeout: timeout,
		slots:   make(map[wire.Kind]*Pending),
		expired: make(chan *Pending),
		stop:    make(chan struct{}),
	}
}

// Timeout returns the request timeout.
func (c *Correlator) Timeout() time.Duration {
	return c.timeout
}

// Register records req as outstanding and arms its timer.
//
// If a request of the same kind is already outstanding, Register fails with
// ErrRequestInFlight and the outstanding request is not affected.
func (c *Correlator) Register(req wire.Request) (*Pending, error) {
	if c.closed {
		return nil, ErrCorrelatorClosed
	}
	kind := req.Kind()
	if kind == wire.KindUnknown {
		return nil, fmt.Errorf("%w: %q", ErrUncorrelated, req.Key)
	}
	if _, busy := c.slots[kind]; busy {
		return nil, fmt.Errorf("%w: %s", ErrRequestInFlight, kind)
	}

	c.nextID++
	p := &Pending{
		id:       c.nextID,
		kind:     kind,
		req:      req,
		replyKey: req.ReplyKey(),
		sent:     time.Now(),
		done:     make(chan Result, 1),
	}
	p.timer = time.AfterFunc(c.timeout, func() {
		select {
		case c.expired <- p:
		case <-c.stop:
		}
	})

	c.slots[kind] = p
	c.order = append(c.order, p)
	return p, nil
}

// Resolve offers an incoming frame to the outstanding requests and reports
// whether one of them claimed it. Unclaimed frames are unsolicited.
//
// A late status line or write echo for a timed-out request is claimed but
// resolves nothing.
func (c *Correlator) Resolve(f wire.Frame) bool {
	switch f.Type {
	case wire.FrameResponse:
		if len(c.order) == 0 {
			return false
		}
		p := c.order[0]
		if p.expired {
			c.remove(p)
			return true
		}
		if f.Status == wire.StatusAccepted {
			c.finish(p, Result{Frame: f})
		} else {
			c.finish(p, Result{Frame: f, Err: &StatusError{Status: f.Status, Code: f.Code, Key: p.req.Key}})
		}
		return true

	case wire.FramePush, wire.FrameAuthChallenge, wire.FrameAuthResult:
		// A late answer to a timed-out query reports current state, so it
		// also answers a younger query for the same key. A late echo of a
		// timed-out write confirms only that write.
		absorbed := false
		for _, p := range append([]*Pending(nil), c.order...) {
			if p.replyKey != f.Key {
				continue
			}
			if !p.expired {
				c.finish(p, Result{Frame: f})
				return true
			}
			c.remove(p)
			absorbed = true
			if !p.req.IsQuery() {
				return true
			}
		}
		return absorbed
	}
	return false
}

// Expired delivers requests whose timer fired. The owner passes each one to
// Expire.
func (c *Correlator) Expired() <-chan *Pending {
	return c.expired
}

// Expire fails p with ErrRequestTimeout and frees its kind. It returns
// false if p was already resolved.
func (c *Correlator) Expire(p *Pending) bool {
	if c.slots[p.kind] != p {
		return false
	}
	p.timer.Stop()
	delete(c.slots, p.kind)
	p.expired = true
	p.done <- Result{Err: fmt.Errorf("%w: %s after %v", ErrRequestTimeout, p.req.Key, c.timeout)}
	return true
}

// Cancel fails p with err. It returns false if p was already resolved.
// A cancelled request never reached the device, so it leaves no trace in
// the stream order.
func (c *Correlator) Cancel(p *Pending, err error) bool {
	if c.slots[p.kind] != p {
		return false
	}
	c.finish(p, Result{Err: err})
	return true
}

// FailAll fails every outstanding request with err, drops the timed-out
// ones still awaiting a reply, and returns how many were failed.
func (c *Correlator) FailAll(err error) int {
	pending := c.order
	c.order = nil
	n := 0
	for _, p := range pending {
		if p.expired {
			continue
		}
		p.timer.Stop()
		delete(c.slots, p.kind)
		p.done <- Result{Err: err}
		n++
	}
	return n
}

// Close fails outstanding requests with ErrCorrelatorClosed and releases
// the timers. Register fails afterwards.
func (c *Correlator) Close() {
	if c.closed {
		return
	}
	c.FailAll(ErrCorrelatorClosed)
	c.closed = true
	close(c.stop)
}

// Len returns the number of outstanding requests. Timed-out requests
// awaiting a late reply are not counted.
func (c *Correlator) Len() int {
	return len(c.slots)
}

// Awaiting returns the number of timed-out requests whose late reply has
// not arrived yet.
func (c *Correlator) Awaiting() int {
	return len(c.order) - len(c.slots)
}

// Oldest returns the request the next status line will resolve, or nil.
// It is nil as well when the next status line is the late reply to a
// timed-out request.
func (c *Correlator) Oldest() *Pending {
	if len(c.order) == 0 || c.order[0].expired {
		return nil
	}
	return c.order[0]
}

// InFlight reports whether a request of the given kind is outstanding.
func (c *Correlator) InFlight(kind wire.Kind) bool {
	_, ok := c.slots[kind]
	return ok
}

func (c *Correlator) finish(p *Pending, r Result) {
	p.timer.Stop()
	delete(c.slots, p.kind)
	c.remove(p)
	p.done <- r
}

func (c *Correlator) remove(p *Pending) {
	for i, q := range c.order {
		if q == p {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// StatusError is a device rejection of a request.
type StatusError struct {
	Status wire.Status

	// Code is the raw status number.
	Code int

	// Key is the key of the rejected request.
	Key string
}

func (e *StatusError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("device returned #%d (%s)", e.Code, e.Status)
	}
	return fmt.Sprintf("device rejected %s: #%d (%s)", e.Key, e.Code, e.Status)
}
