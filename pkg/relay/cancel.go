package relay

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// AbortReason is the terminal state of a session's cancellation token.
// The transition is one-way: the first trigger wins and the token is never
// reset. The reason determines downstream signaling: timeouts produce an
// explicit error to the caller, caller disconnects produce nothing at all.
type AbortReason int32

const (
	// ReasonNone means the token is still running (or the session
	// completed without cancellation).
	ReasonNone AbortReason = iota

	// ReasonTimeout means the connect watchdog or the overall deadline
	// fired.
	ReasonTimeout

	// ReasonCallerGone means the original requester disconnected before
	// the session completed.
	ReasonCallerGone
)

// String returns the reason name for logs.
func (r AbortReason) String() string {
	switch r {
	case ReasonTimeout:
		return "timeout"
	case ReasonCallerGone:
		return "caller_gone"
	default:
		return "none"
	}
}

// Controller composes the three independent cancellation triggers into one
// context consumed by the upstream session:
//
//   - a connect watchdog that fires if the upstream does not begin
//     responding within a short window,
//   - an overall deadline that stays armed for the entire session,
//     including while frames are being consumed,
//   - the caller's own context, which cancels when the requester
//     disconnects.
//
// The derived context cancels on the first trigger; the read loop blocked
// on the upstream body unwinds promptly because the request carries this
// context.
type Controller struct {
	ctx    context.Context
	cancel context.CancelFunc

	reason    atomic.Int32
	connected chan struct{}
	done      chan struct{}

	connectOnce sync.Once
	finishOnce  sync.Once
}

// NewController starts a controller for one session. connectTimeout guards
// only the connection phase; overallTimeout covers connect plus streaming
// to completion and is never disarmed early.
func NewController(parent context.Context, connectTimeout, overallTimeout time.Duration) *Controller {
	ctx, cancel := context.WithCancel(parent)
	c := &Controller{
		ctx:       ctx,
		cancel:    cancel,
		connected: make(chan struct{}),
		done:      make(chan struct{}),
	}
	go c.watch(parent, connectTimeout, overallTimeout)
	return c
}

// watch waits for the first trigger and trips the token.
func (c *Controller) watch(parent context.Context, connectTimeout, overallTimeout time.Duration) {
	watchdog := time.NewTimer(connectTimeout)
	defer watchdog.Stop()

	// The overall deadline stays armed for the whole session; disarming
	// it once the connection opens would defeat its purpose.
	overall := time.NewTimer(overallTimeout)
	defer overall.Stop()

	connected := c.connected
	for {
		select {
		case <-parent.Done():
			c.trip(ReasonCallerGone)
			return
		case <-watchdog.C:
			select {
			case <-connected:
				// Connection opened before the watchdog drained;
				// only the overall deadline applies now.
				connected = nil
			default:
				c.trip(ReasonTimeout)
				return
			}
		case <-connected:
			watchdog.Stop()
			connected = nil
		case <-overall.C:
			c.trip(ReasonTimeout)
			return
		case <-c.done:
			return
		}
	}
}

// trip transitions the token once; later triggers are ignored.
func (c *Controller) trip(reason AbortReason) {
	if c.reason.CompareAndSwap(int32(ReasonNone), int32(reason)) {
		c.cancel()
	}
}

// Context returns the composed cancellation context. It must be attached
// to the upstream request so every trigger is observable from inside the
// blocking read.
func (c *Controller) Context() context.Context {
	return c.ctx
}

// ConnectEstablished disarms the connect watchdog. The overall deadline
// remains armed.
func (c *Controller) ConnectEstablished() {
	c.connectOnce.Do(func() { close(c.connected) })
}

// CallerGone trips the token as a caller disconnect. It is used when a
// write to the caller's sink fails, which means nobody is listening even
// though the caller context has not (yet) been cancelled.
func (c *Controller) CallerGone() {
	c.trip(ReasonCallerGone)
}

// Reason returns the token's terminal state, or ReasonNone while running.
func (c *Controller) Reason() AbortReason {
	return AbortReason(c.reason.Load())
}

// Finish marks the session completed and releases the controller's
// resources. It does not change an already-tripped reason.
func (c *Controller) Finish() {
	c.finishOnce.Do(func() {
		close(c.done)
		c.cancel()
	})
}
