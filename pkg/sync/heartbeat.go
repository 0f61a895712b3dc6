package sync

import (
	"context"
	"time"

	"github.com/beachshare/beach/pkg/wire"
)

// RunHeartbeatLoop ticks at Config.HeartbeatMillis and sends a Heartbeat
// frame each time, independent of the delta loop (which only wakes on new
// data and would otherwise go silent on an idle session). The client's
// liveness monitor (spec §4.6.5) relies on these arriving at a steady
// cadence to tell an idle connection from a dead one.
func (s *Subscription) RunHeartbeatLoop(ctx context.Context) error {
	interval := time.Duration(s.Config.HeartbeatMillis) * time.Millisecond
	if interval <= 0 {
		interval = time.Duration(wire.DefaultSyncConfig().HeartbeatMillis) * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var seq uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			seq++
			if err := s.send(wire.HeartbeatFrame{
				Subscription: s.ID,
				Seq:          seq,
				TimestampMs:  uint64(now.UnixMilli()),
			}); err != nil {
				return err
			}
		}
	}
}
