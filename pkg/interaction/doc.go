// Package interaction correlates MotionMount requests with their replies.
//
// The line protocol carries no request ids. A Correlator therefore keeps at
// most one outstanding request per command kind (see wire.Kind) and matches
// incoming frames by shape:
//
//   - A status line ("#202", "#404", ...) resolves the oldest outstanding
//     request, because the device answers in stream order.
//   - A value report resolves the outstanding request whose reply key equals
//     the report's key. This covers query answers and write echoes.
//   - Anything else is unsolicited and left to the caller.
//
// Every request is resolved exactly once: by a reply, by its timeout, or by
// a connection failure.
//
// # Usage
//
// The Correlator is not safe for concurrent use. It is owned by a single
// goroutine that also receives frames and expiry notifications:
//
//	c := interaction.NewCorrelator(5 * time.Second)
//	defer c.Close()
//
//	p, err := c.Register(req)
//	if err != nil {
//	    return err // ErrRequestInFlight
//	}
//	send(req)
//
//	for {
//	    select {
//	    case f := <-frames:
//	        if !c.Resolve(f) {
//	            handlePush(f)
//	        }
//	    case p := <-c.Expired():
//	        c.Expire(p)
//	    }
//	}
//
// Callers wait on Pending.Done.
package interaction
