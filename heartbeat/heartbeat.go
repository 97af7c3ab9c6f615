// Package heartbeat implements the Session Engine's ping pacemaker: a
// relaxed interval while the transport is otherwise idle, and a hurried
// interval to unblock a long-polling receive that's parked inside the
// server's long-poll window.
//
// This reimplements the source's cooperative send/yield pacing as a
// plain periodic task driven by a monotonic clock — the yield dance was
// an artifact of that runtime, not part of the contract.
package heartbeat

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/invisibleroads/socketio-client-go/pkg/log"
)

var heartbeat_log = log.NewLog("socketio-client:heartbeat")

// Driver ticks send at either the relaxed or hurried interval, whichever
// is currently selected, until Halt is called. A non-nil return from send
// ends the driver — the caller is expected to have already swallowed
// recoverable Timeout failures inside send, so any error reaching the
// driver is treated as connection loss.
type Driver struct {
	relaxInterval time.Duration
	hurryInterval time.Duration
	send          func() error

	hurried atomic.Bool
	halted  atomic.Bool
	hurryCh chan struct{}
	haltCh  chan struct{}

	once sync.Once
	done chan struct{}
}

// NewDriver builds a Driver. relaxInterval is normally the server's
// pingInterval; hurryInterval defaults to 1s per spec if zero is passed.
func NewDriver(relaxInterval, hurryInterval time.Duration, send func() error) *Driver {
	if hurryInterval <= 0 {
		hurryInterval = time.Second
	}
	return &Driver{
		relaxInterval: relaxInterval,
		hurryInterval: hurryInterval,
		send:          send,
		hurryCh:       make(chan struct{}, 1),
		haltCh:        make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start launches the background tick loop. Safe to call once per Driver.
func (d *Driver) Start() {
	go d.run()
}

// Done returns a channel closed once the driver has exited, either
// because Halt was called or send returned a fatal error.
func (d *Driver) Done() <-chan struct{} {
	return d.done
}

func (d *Driver) run() {
	defer close(d.done)

	for {
		timer := time.NewTimer(d.currentInterval())
		select {
		case <-timer.C:
			if err := d.send(); err != nil {
				heartbeat_log.Debug("heartbeat exiting: %v", err)
				return
			}
		case <-d.hurryCh:
			timer.Stop()
			continue
		case <-d.haltCh:
			timer.Stop()
			return
		}
	}
}

func (d *Driver) currentInterval() time.Duration {
	if d.hurried.Load() {
		return d.hurryInterval
	}
	return d.relaxInterval
}

// Hurry switches the driver to the hurried interval and wakes an
// in-progress wait immediately, so the next tick fires at the hurried
// cadence rather than waiting out whatever was left of a relaxed tick.
func (d *Driver) Hurry() {
	d.hurried.Store(true)
	select {
	case d.hurryCh <- struct{}{}:
	default:
	}
}

// Relax switches the driver back to the relaxed interval. Takes effect on
// the next tick; no need to wake a sleeping timer early.
func (d *Driver) Relax() {
	d.hurried.Store(false)
}

// Hurried reports whether the driver is currently in hurried mode.
func (d *Driver) Hurried() bool {
	return d.hurried.Load()
}

// Halt stops the driver. Level-triggered: a goroutine blocked in a
// sleeping tick wakes immediately. Idempotent. A halted Driver is
// discarded, never restarted — build a new one instead.
func (d *Driver) Halt() {
	if d.halted.CompareAndSwap(false, true) {
		close(d.haltCh)
	}
}
