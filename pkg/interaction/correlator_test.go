package interaction

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motionmount/motionmount-go/pkg/wire"
)

func mustGoToPosition(t *testing.T, ext, turn int) wire.Request {
	t.Helper()
	req, err := wire.GoToPosition(ext, turn)
	require.NoError(t, err)
	return req
}

func waitResult(t *testing.T, p *Pending) Result {
	t.Helper()
	select {
	case r := <-p.Done():
		return r
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for result")
		return Result{}
	}
}

func assertPending(t *testing.T, p *Pending) {
	t.Helper()
	select {
	case r := <-p.Done():
		t.Fatalf("request resolved unexpectedly: %+v", r)
	default:
	}
}

func TestCorrelatorQueryAnswer(t *testing.T) {
	c := NewCorrelator(time.Second)
	defer c.Close()

	p, err := c.Register(wire.QueryName())
	require.NoError(t, err)
	assert.True(t, c.InFlight(wire.KindName))

	ok := c.Resolve(wire.ParseLine(`configuration/name = "Den"`))
	require.True(t, ok)

	r := waitResult(t, p)
	require.NoError(t, r.Err)
	assert.Equal(t, "Den", r.Frame.Text())
	assert.Equal(t, 0, c.Len())
	assert.False(t, c.InFlight(wire.KindName))
}

func TestCorrelatorRequestInFlight(t *testing.T) {
	c := NewCorrelator(time.Second)
	defer c.Close()

	first, err := c.Register(wire.QueryName())
	require.NoError(t, err)

	_, err = c.Register(wire.QueryName())
	require.ErrorIs(t, err, ErrRequestInFlight)

	// The first request is unaffected.
	assertPending(t, first)
	assert.Equal(t, 1, c.Len())

	require.True(t, c.Resolve(wire.ParseLine(`configuration/name = "Den"`)))
	r := waitResult(t, first)
	assert.NoError(t, r.Err)

	// The slot is free again.
	_, err = c.Register(wire.QueryName())
	assert.NoError(t, err)
}

func TestCorrelatorDifferentKindsConcurrently(t *testing.T) {
	c := NewCorrelator(time.Second)
	defer c.Close()

	ext, err := c.Register(wire.QueryExtension())
	require.NoError(t, err)
	turn, err := c.Register(wire.QueryTurn())
	require.NoError(t, err)

	// Answers arrive out of order; keys decide.
	require.True(t, c.Resolve(wire.ParseLine("mount/turn/current = -40")))
	require.True(t, c.Resolve(wire.ParseLine("mount/extension/current = 60")))

	n, _ := waitResult(t, ext).Frame.Int()
	assert.Equal(t, 60, n)
	n, _ = waitResult(t, turn).Frame.Int()
	assert.Equal(t, -40, n)
}

func TestCorrelatorStatusResolvesOldest(t *testing.T) {
	c := NewCorrelator(time.Second)
	defer c.Close()

	move, err := c.Register(mustGoToPosition(t, 50, -50))
	require.NoError(t, err)
	rename, err := c.Register(wire.Request{Key: wire.KeyName, Value: "Den"})
	require.NoError(t, err)

	require.True(t, c.Resolve(wire.ParseLine("#202")))
	assert.NoError(t, waitResult(t, move).Err)
	assertPending(t, rename)

	require.True(t, c.Resolve(wire.ParseLine("#400")))
	r := waitResult(t, rename)

	var se *StatusError
	require.ErrorAs(t, r.Err, &se)
	assert.Equal(t, wire.StatusBadRequest, se.Status)
	assert.Equal(t, 400, se.Code)
	assert.Equal(t, wire.KeyName, se.Key)
}

func TestCorrelatorWriteEcho(t *testing.T) {
	c := NewCorrelator(time.Second)
	defer c.Close()

	p, err := c.Register(mustGoToPosition(t, 50, -50))
	require.NoError(t, err)

	// A push for a different key is not claimed.
	assert.False(t, c.Resolve(wire.ParseLine("mount/extension/current = 20")))
	assertPending(t, p)

	assert.True(t, c.Resolve(wire.ParseLine("mount/preset/position = [0032ffce]")))
	r := waitResult(t, p)
	require.NoError(t, r.Err)
	b, err := r.Frame.Bytes()
	require.NoError(t, err)
	ext, turn, err := wire.DecodePosition(b)
	require.NoError(t, err)
	assert.Equal(t, 50, ext)
	assert.Equal(t, -50, turn)
}

func TestCorrelatorUnsolicited(t *testing.T) {
	c := NewCorrelator(time.Second)
	defer c.Close()

	assert.False(t, c.Resolve(wire.ParseLine("mount/extension/current = 20")))
	assert.False(t, c.Resolve(wire.ParseLine("#202")))
	assert.False(t, c.Resolve(wire.ParseLine("what/is/this = 1")))
	assert.Equal(t, 0, c.Len())
}

func TestCorrelatorAuthReplies(t *testing.T) {
	c := NewCorrelator(time.Second)
	defer c.Close()

	challenge, err := c.Register(wire.QueryChallenge())
	require.NoError(t, err)
	require.True(t, c.Resolve(wire.ParseLine(`authentication/challenge = "00ff"`)))
	assert.Equal(t, "00ff", waitResult(t, challenge).Frame.Text())

	resp, err := c.Register(wire.AuthResponse([]byte{1, 2, 3}))
	require.NoError(t, err)
	require.True(t, c.Resolve(wire.ParseLine("authentication/result = 1")))
	ok, err := waitResult(t, resp).Frame.Bool()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCorrelatorTimeoutExactlyOnce(t *testing.T) {
	c := NewCorrelator(20 * time.Millisecond)
	defer c.Close()

	p, err := c.Register(wire.QueryName())
	require.NoError(t, err)

	var expired *Pending
	select {
	case expired = <-c.Expired():
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	require.Same(t, p, expired)
	require.True(t, c.Expire(expired))

	r := waitResult(t, p)
	assert.ErrorIs(t, r.Err, ErrRequestTimeout)

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 1, c.Awaiting())

	// The late answer is absorbed without a second result; a further
	// report of the key is unsolicited.
	assert.True(t, c.Resolve(wire.ParseLine(`configuration/name = "Den"`)))
	assert.Equal(t, 0, c.Awaiting())
	assert.False(t, c.Resolve(wire.ParseLine(`configuration/name = "Den"`)))
	assert.False(t, c.Expire(p))
	assert.False(t, c.Cancel(p, errors.New("late")))

	select {
	case r := <-p.Done():
		t.Fatalf("second result delivered: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCorrelatorExpireAfterResolveIsNoop(t *testing.T) {
	c := NewCorrelator(time.Second)
	defer c.Close()

	p, err := c.Register(wire.QueryTurn())
	require.NoError(t, err)
	require.True(t, c.Resolve(wire.ParseLine("mount/turn/current = 0")))

	assert.False(t, c.Expire(p))
	assert.NoError(t, waitResult(t, p).Err)
}

func TestCorrelatorFailAll(t *testing.T) {
	c := NewCorrelator(time.Second)
	defer c.Close()

	lost := errors.New("connection lost")
	a, _ := c.Register(wire.QueryName())
	b, _ := c.Register(wire.QueryExtension())

	assert.Equal(t, 2, c.FailAll(lost))
	assert.ErrorIs(t, waitResult(t, a).Err, lost)
	assert.ErrorIs(t, waitResult(t, b).Err, lost)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.FailAll(lost))
}

func TestCorrelatorClose(t *testing.T) {
	c := NewCorrelator(time.Second)

	p, _ := c.Register(wire.QueryName())
	c.Close()
	c.Close()

	assert.ErrorIs(t, waitResult(t, p).Err, ErrCorrelatorClosed)

	_, err := c.Register(wire.QueryName())
	assert.ErrorIs(t, err, ErrCorrelatorClosed)
}

func TestCorrelatorUnknownKind(t *testing.T) {
	c := NewCorrelator(time.Second)
	defer c.Close()

	_, err := c.Register(wire.Request{Key: "vendor/secret"})
	assert.ErrorIs(t, err, ErrUncorrelated)
}

func TestStatusErrorMessage(t *testing.T) {
	err := &StatusError{Status: wire.StatusNotFound, Code: 404, Key: wire.KeyFirmware}
	assert.Contains(t, err.Error(), "#404")
	assert.Contains(t, err.Error(), wire.KeyFirmware)

	var target *StatusError
	wrapped := errors.Join(errors.New("context"), err)
	assert.True(t, errors.As(wrapped, &target))
}

func TestCorrelatorOldest(t *testing.T) {
	c := NewCorrelator(time.Second)
	defer c.Close()

	assert.Nil(t, c.Oldest())

	a, _ := c.Register(wire.QueryName())
	_, _ = c.Register(wire.QueryTurn())
	assert.Same(t, a, c.Oldest())

	c.Resolve(wire.ParseLine(`configuration/name = "x"`))
	assert.Equal(t, wire.KindTurn, c.Oldest().Kind())
}

func expireNow(t *testing.T, c *Correlator, p *Pending) {
	t.Helper()
	select {
	case expired := <-c.Expired():
		require.Same(t, p, expired)
		require.True(t, c.Expire(expired))
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
	assert.ErrorIs(t, waitResult(t, p).Err, ErrRequestTimeout)
}

func TestCorrelatorLateStatusIsNotMisattributed(t *testing.T) {
	c := NewCorrelator(20 * time.Millisecond)
	defer c.Close()

	ext, err := wire.SetExtension(40)
	require.NoError(t, err)
	stale, err := c.Register(ext)
	require.NoError(t, err)
	expireNow(t, c, stale)

	// The kind is free again while the late reply is still owed.
	assert.False(t, c.InFlight(wire.KindExtensionTarget))

	preset, err := wire.GoToPreset(3, wire.DefaultPresetCount)
	require.NoError(t, err)
	p, err := c.Register(preset)
	require.NoError(t, err)
	assert.Nil(t, c.Oldest(), "the next status belongs to the timed-out request")

	// #202 answers the timed-out write, #400 the preset.
	require.True(t, c.Resolve(wire.ParseLine("#202")))
	assertPending(t, p)
	assert.Same(t, p, c.Oldest())

	require.True(t, c.Resolve(wire.ParseLine("#400")))
	var statusErr *StatusError
	require.ErrorAs(t, waitResult(t, p).Err, &statusErr)
	assert.Equal(t, wire.StatusBadRequest, statusErr.Status)
	assert.Equal(t, wire.KeyPresetIndex, statusErr.Key)
}

func TestCorrelatorLateQueryAnswerServesNewQuery(t *testing.T) {
	c := NewCorrelator(20 * time.Millisecond)
	defer c.Close()

	stale, err := c.Register(wire.QueryExtension())
	require.NoError(t, err)
	expireNow(t, c, stale)

	fresh, err := c.Register(wire.QueryExtension())
	require.NoError(t, err)

	require.True(t, c.Resolve(wire.ParseLine("mount/extension/current = 10")))
	r := waitResult(t, fresh)
	require.NoError(t, r.Err)
	assert.Equal(t, "10", r.Frame.Value)
	assert.Equal(t, 0, c.Awaiting())

	assert.False(t, c.Resolve(wire.ParseLine("mount/extension/current = 10")))
}

func TestCorrelatorLateWriteEchoAbsorbed(t *testing.T) {
	c := NewCorrelator(20 * time.Millisecond)
	defer c.Close()

	first, err := wire.SetExtension(40)
	require.NoError(t, err)
	stale, err := c.Register(first)
	require.NoError(t, err)
	expireNow(t, c, stale)

	second, err := wire.SetExtension(50)
	require.NoError(t, err)
	fresh, err := c.Register(second)
	require.NoError(t, err)

	require.True(t, c.Resolve(wire.ParseLine("mount/extension/target = 40")))
	assertPending(t, fresh)

	require.True(t, c.Resolve(wire.ParseLine("mount/extension/target = 50")))
	r := waitResult(t, fresh)
	require.NoError(t, r.Err)
	assert.Equal(t, "50", r.Frame.Value)
}

func TestCorrelatorFailAllDropsTimedOut(t *testing.T) {
	c := NewCorrelator(20 * time.Millisecond)
	defer c.Close()

	stale, _ := c.Register(wire.QueryName())
	expireNow(t, c, stale)
	live, _ := c.Register(wire.QueryTurn())

	assert.Equal(t, 1, c.FailAll(errors.New("lost")))
	assert.Error(t, waitResult(t, live).Err)
	assert.Equal(t, 0, c.Awaiting())
	assert.False(t, c.Resolve(wire.ParseLine("#202")))
}
