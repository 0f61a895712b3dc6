package replica

import (
	"sync/atomic"

	"github.com/beachshare/beach/pkg/cache"
	"github.com/beachshare/beach/pkg/wire"
)

var localRequestID uint64

func nextRequestID() uint64 {
	return atomic.AddUint64(&localRequestID, 1)
}

// ScanForGap implements spec §4.6.4: scan
// [viewport_top-LOOKAROUND, viewport_top+viewport_height+LOOKAROUND] for
// the first maximal run of non-Loaded rows, and — if no overlapping
// request is in flight within BackfillRetryWindow — issue a
// RequestBackfill. Call this after applying any frame.
func (r *Replica) ScanForGap() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scanForGapLocked()
}

func (r *Replica) scanForGapLocked() {
	viewportTop := r.BaseRow + cache.Row(r.ScrollTop)
	scanStart := viewportTop
	if scanStart > cache.Row(LookaroundRows) {
		scanStart -= LookaroundRows
	} else {
		scanStart = 0
	}
	if scanStart < r.BaseRow {
		scanStart = r.BaseRow
	}
	scanEnd := viewportTop + cache.Row(r.ViewportHeight) + LookaroundRows

	runStart, runLen := r.firstGapRun(scanStart, scanEnd)
	if runLen == 0 {
		return
	}

	count := runLen
	if count > wire.MaxBackfillRowsPerRequest {
		count = wire.MaxBackfillRowsPerRequest
	}

	now := walltime()
	for _, pending := range r.pendingBackfill {
		if rangesOverlap(pending.startRow, pending.count, runStart, count) && now.Sub(pending.issued) < BackfillRetryWindow {
			return
		}
	}

	reqID := nextRequestID()
	r.pendingBackfill[reqID] = backfillRequest{startRow: runStart, count: count, issued: now}
	if r.SendBackfillRequest != nil {
		r.SendBackfillRequest(wire.RequestBackfillFrame{Subscription: r.Subscription, RequestID: reqID, StartRow: uint64(runStart), Count: count})
	}
}

// firstGapRun finds the first maximal run of rows in [start,end) that are
// not SlotLoaded (absent rows count as non-Loaded too).
func (r *Replica) firstGapRun(start, end cache.Row) (runStart cache.Row, runLen uint32) {
	inRun := false
	for row := start; row < end; row++ {
		slot, ok := r.rows[row]
		loaded := ok && slot.state == SlotLoaded
		if !loaded {
			if !inRun {
				inRun = true
				runStart = row
			}
			runLen++
			continue
		}
		if inRun {
			return runStart, runLen
		}
	}
	return runStart, runLen
}

func rangesOverlap(aStart cache.Row, aCount uint32, bStart cache.Row, bCount uint32) bool {
	aEnd := aStart + cache.Row(aCount)
	bEnd := bStart + cache.Row(bCount)
	return aStart < bEnd && bStart < aEnd
}

// ApplyHistoryBackfill applies a HistoryBackfill frame's updates, marks any
// row in the requested range not covered by an update as Missing, and
// clears the matching pendingBackfill entry once the response's More flag
// is false (spec §4.6.4).
func (r *Replica) ApplyHistoryBackfill(f wire.HistoryBackfillFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	covered := make(map[cache.Row]bool, len(f.Updates))
	for _, u := range f.Updates {
		r.applyUpdateLocked(u)
		switch u.Kind {
		case wire.WireUpdateCell, wire.WireUpdateRow, wire.WireUpdateRowSeg:
			covered[cache.Row(wire.ReconstructRow(uint64(r.BaseRow), u.Row))] = true
		case wire.WireUpdateRect:
			r0 := cache.Row(wire.ReconstructRow(uint64(r.BaseRow), u.R0))
			r1 := cache.Row(wire.ReconstructRow(uint64(r.BaseRow), u.R1))
			for row := r0; row < r1; row++ {
				covered[row] = true
			}
		}
	}

	start := cache.Row(f.StartRow)
	for row := start; row < start+cache.Row(f.Count); row++ {
		if covered[row] {
			continue
		}
		if slot, ok := r.rows[row]; ok && slot.state == SlotLoaded {
			continue
		}
		r.rows[row] = &rowSlot{state: SlotMissing}
	}

	if !f.More {
		delete(r.pendingBackfill, f.RequestID)
	}
}
