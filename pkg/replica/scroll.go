package replica

import (
	"time"

	"github.com/beachshare/beach/pkg/wire"
)

// Scroll implements spec §4.6.5's user-scroll half: moves scroll_top
// (clamped to [0, rows-viewport]) and sets follow_tail only when the new
// scroll_top is at the bottom (the tail-follow trigger is evaluated
// separately by the caller on new deltas, via MaybeFollowTail/ScrollToTail).
func (r *Replica) Scroll(delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ScrollTop += delta
	if r.ScrollTop < 0 {
		r.ScrollTop = 0
	}
	maxTop := len(r.rows) - r.ViewportHeight
	if maxTop < 0 {
		maxTop = 0
	}
	if r.ScrollTop > maxTop {
		r.ScrollTop = maxTop
	}
	r.FollowTail = r.ScrollTop == maxTop
}

// ScrollToTail snaps scroll_top to the bottom and re-enables follow_tail.
func (r *Replica) ScrollToTail() {
	r.mu.Lock()
	defer r.mu.Unlock()
	maxTop := len(r.rows) - r.ViewportHeight
	if maxTop < 0 {
		maxTop = 0
	}
	r.ScrollTop = maxTop
	r.FollowTail = true
}

// MaybeFollowTail calls ScrollToTail when follow_tail is already set, per
// spec §4.6.5 ("New deltas that extend the grid trigger scroll_to_tail()
// only when follow_tail is true"). Call after applying a batch that grew
// the grid.
func (r *Replica) MaybeFollowTail() {
	r.mu.Lock()
	follow := r.FollowTail
	r.mu.Unlock()
	if follow {
		r.ScrollToTail()
	}
}

// Resize implements the client side of spec §4.6.6: updates cols,
// discards predictions at columns beyond the new width, and leaves row
// allocation to the next Grid frame the host sends in response to the
// Resize it's about to transmit.
func (r *Replica) Resize(cols, rows int, sendResize func(wire.ResizeFrame)) {
	r.mu.Lock()
	r.Cols = cols
	r.ViewportHeight = rows
	for k := range r.predictions {
		if k.col >= cols {
			delete(r.predictions, k)
		}
	}
	r.mu.Unlock()
	if sendResize != nil {
		sendResize(wire.ResizeFrame{Cols: uint32(cols), Rows: uint32(rows)})
	}
}

// livenessCheckInterval is how often the liveness monitor polls; it must
// be finer than the heartbeat interval it's watching.
const livenessCheckInterval = 500 * time.Millisecond

// WarnAfterMultiplier matches the teacher-adjacent convention of warning
// well before declaring the connection dead: 5x the heartbeat interval
// (SPEC_FULL §9.2).
const WarnAfterMultiplier = 5

// MonitorLiveness polls heartbeat staleness against heartbeatInterval*
// WarnAfterMultiplier and transitions StateSynced -> StateReconnecting ->
// StateOffline. Intended to run in its own goroutine; returns when done
// is closed.
func (r *Replica) MonitorLiveness(heartbeatInterval time.Duration, done <-chan struct{}) {
	threshold := heartbeatInterval * WarnAfterMultiplier
	ticker := time.NewTicker(livenessCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			r.mu.Lock()
			if r.connState == StateSynced && !r.lastHeartbeat.IsZero() && walltime().Sub(r.lastHeartbeat) > threshold {
				r.connState = StateReconnecting
			}
			if r.connState == StateReconnecting && !r.lastHeartbeat.IsZero() && walltime().Sub(r.lastHeartbeat) > threshold*2 {
				r.connState = StateOffline
			}
			r.mu.Unlock()
		}
	}
}
