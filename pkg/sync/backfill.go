package sync

import (
	"context"
	"time"

	"github.com/beachshare/beach/pkg/cache"
	"github.com/beachshare/beach/pkg/wire"
)

// ServerBackfillThrottleMillis bounds how often the scheduler emits a
// HistoryBackfill chunk for one job (spec §4.4.3, "~50ms").
const ServerBackfillThrottleMillis = 50

// backfillScheduler runs a single job at a time per subscription, popping
// RequestBackfill frames off a queue and emitting chunked HistoryBackfill
// replies. Grounded on original_source/.../server_pipeline/mod.rs's
// backfill chunking loop (SERVER_BACKFILL_THROTTLE, chunk size 64).
type backfillScheduler struct {
	sub  *Subscription
	jobs chan wire.RequestBackfillFrame
}

func newBackfillScheduler(sub *Subscription) *backfillScheduler {
	return &backfillScheduler{sub: sub, jobs: make(chan wire.RequestBackfillFrame, 16)}
}

// Enqueue submits a client's RequestBackfill for processing. Blocks if the
// queue is full, applying natural backpressure to the frame reader.
func (b *backfillScheduler) Enqueue(req wire.RequestBackfillFrame) {
	b.jobs <- req
}

// Run processes jobs one at a time until ctx is cancelled or a send fails.
func (b *backfillScheduler) Run(ctx context.Context) error {
	for {
		select {
		case req := <-b.jobs:
			if err := b.processJob(ctx, req); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// processJob emits one or more HistoryBackfill frames for req, each
// covering up to ServerBackfillChunkRows rows, throttled by
// ServerBackfillThrottleMillis between frames. If the requested range
// begins below the grid's current base_row, a Trim update is prepended to
// the first chunk so the client learns the gap is permanent (spec §4.4.3).
func (b *backfillScheduler) processJob(ctx context.Context, req wire.RequestBackfillFrame) error {
	sub := b.sub
	cursorRow := cache.Row(req.StartRow)
	remaining := req.Count
	if remaining > wire.MaxBackfillRowsPerRequest {
		remaining = wire.MaxBackfillRowsPerRequest
	}

	cols, _ := sub.Grid.Dims()
	buf := make([]cache.Cell, cols)
	first := true
	sentStyles := make(map[cache.StyleID]bool)

	for {
		chunkRows := remaining
		if chunkRows > wire.ServerBackfillChunkRows {
			chunkRows = wire.ServerBackfillChunkRows
		}

		pieceStart := cursorRow
		pieceCount := chunkRows
		var rowUpdates []cache.CacheUpdate

		base := sub.Grid.RowOffset()
		if first && cursorRow < base && chunkRows > 0 {
			gap := base - cursorRow
			if gap > cache.Row(chunkRows) {
				gap = cache.Row(chunkRows)
			}
			if gap > 0 {
				rowUpdates = append(rowUpdates, cache.NewTrimUpdate(sub.Grid.LatestSeq(), cursorRow, uint32(gap)))
				cursorRow += gap
			}
		}

		for i := cache.Row(0); i < cache.Row(pieceCount)-(cursorRow-pieceStart); i++ {
			row := cursorRow + i
			if sub.Grid.IsRowBlank(row) {
				continue
			}
			if !sub.Grid.SnapshotRow(row, buf) {
				continue
			}
			seq := sub.Grid.RowLatestSeq(row)
			sub.inlineStyles(buf, sentStyles, &rowUpdates)
			rowUpdates = append(rowUpdates, cache.NewRowUpdate(seq, row, buf))
		}

		cursorRow = pieceStart + cache.Row(pieceCount)
		remaining -= chunkRows
		outerMore := remaining > 0

		updates, cursor := sub.encodeBatchUnshadowed(rowUpdates)
		chunks := wire.ChunkUpdates(updates, wire.BackfillHeaderOverhead(cursor != nil), outerMore)
		for ci, c := range chunks {
			f := wire.HistoryBackfillFrame{
				Subscription: req.Subscription,
				RequestID:    req.RequestID,
				StartRow:     uint64(pieceStart),
				Count:        pieceCount,
				Updates:      c.Updates,
				More:         c.HasMore,
			}
			if ci == 0 && cursor != nil {
				f.HasCursor = true
				f.Cursor = *cursor
			}
			if err := sub.send(f); err != nil {
				return err
			}
		}

		first = false
		if remaining == 0 {
			return nil
		}

		select {
		case <-time.After(ServerBackfillThrottleMillis * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
