package sync

import (
	"context"
	"time"

	"github.com/beachshare/beach/pkg/wire"
)

// MaxBatchesPerWake caps how many delta batches one wakeup processes
// before yielding to other subscriptions (spec §4.4.2 step 6).
const MaxBatchesPerWake = 32

// RunDeltaLoop implements spec §4.4.2: while handshake is complete and
// watermark < grid.latest_seq, collect updates since watermark, dedup
// through the transmitter cache, and emit Delta frames. It blocks on
// s.Timeline.Wait between wakeups and returns only when ctx is cancelled
// or a send fails.
func (s *Subscription) RunDeltaLoop(ctx context.Context) error {
	done := ctx.Done()
	for {
		if !s.handshakeDone {
			if err := s.Handshake(); err != nil {
				select {
				case <-time.After(HandshakeRefreshMillis * time.Millisecond):
					continue
				case <-done:
					return ctx.Err()
				}
			}
		}

		for batches := 0; batches < MaxBatchesPerWake; batches++ {
			if !s.Timeline.HasNewSince(s.watermark) {
				break
			}
			if err := s.pumpOnce(); err != nil {
				return err
			}
		}

		s.Timeline.Wait(s.watermark, done)
		select {
		case <-done:
			return ctx.Err()
		default:
		}
	}
}

// pumpOnce drains one collect_since batch and emits it as one or more
// Delta frames, advancing watermark to the highest seq actually encoded.
func (s *Subscription) pumpOnce() error {
	batch := s.Timeline.CollectSince(s.watermark, int(s.Config.DeltaBudget))
	if len(batch) == 0 {
		return nil
	}

	highestSeq := batch[len(batch)-1].Seq
	updates, cursor := s.filterBatch(batch)
	chunks := wire.ChunkUpdates(updates, wire.DeltaHeaderOverhead(cursor != nil), false)

	for ci, c := range chunks {
		f := wire.DeltaFrame{
			Subscription: s.ID,
			Watermark:    uint64(highestSeq),
			HasMore:      c.HasMore,
			Updates:      c.Updates,
		}
		if ci == 0 && cursor != nil {
			f.HasCursor = true
			f.Cursor = *cursor
		}
		if err := s.send(f); err != nil {
			return err
		}
	}
	s.watermark = highestSeq
	return nil
}
