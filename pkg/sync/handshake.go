package sync

import (
	"github.com/beachshare/beach/pkg/cache"
	"github.com/beachshare/beach/pkg/wire"
)

// Handshake runs spec §4.4.1: Hello, then Grid, then a Snapshot*/
// SnapshotComplete sequence per lane. It is idempotent — the synchronizer
// re-scans the grid on every call, so a retry after a transport failure
// converges identically (invariant 6, "idempotent handshake").
func (s *Subscription) Handshake() error {
	maxSeq := s.Grid.LatestSeq()
	if err := s.send(wire.HelloFrame{
		Subscription: s.ID,
		MaxSeq:       uint64(maxSeq),
		Config:       s.Config,
		Features:     wire.DefaultFeatures,
	}); err != nil {
		return err
	}

	cols, rows := s.Grid.Dims()
	base := s.Grid.RowOffset()
	historyRows := uint32(s.Grid.Capacity())
	if err := s.send(wire.GridFrame{
		Subscription: s.ID,
		Cols:         uint32(cols),
		HistoryRows:  historyRows,
		BaseRow:      uint64(base),
		HasViewport:  true,
		ViewportRows: uint32(rows),
	}); err != nil {
		return err
	}

	for _, lane := range []wire.Lane{wire.LaneForeground, wire.LaneRecent, wire.LaneHistory} {
		if err := s.sendLaneSnapshot(lane); err != nil {
			return err
		}
	}

	s.watermark = maxSeq
	s.handshakeDone = true
	return nil
}

// laneRowRange carves up the retained row range into the three lanes: the
// current viewport (Foreground), a recent band just above it (Recent), and
// everything older (History). Scanned newest-first within each lane per
// spec §4.4.1.
func (s *Subscription) laneRowRange(lane wire.Lane) (start, end cache.Row) {
	cols, rows := s.Grid.Dims()
	_ = cols
	base := s.Grid.RowOffset()
	next := s.Grid.NextRow()
	viewportTop := cache.Row(0)
	if next > cache.Row(rows) {
		viewportTop = next - cache.Row(rows)
	}
	if viewportTop < base {
		viewportTop = base
	}
	const recentBand = 200

	switch lane {
	case wire.LaneForeground:
		return viewportTop, next
	case wire.LaneRecent:
		recentStart := viewportTop
		if recentStart > base+recentBand {
			recentStart -= recentBand
		} else {
			recentStart = base
		}
		return recentStart, viewportTop
	default: // LaneHistory
		recentStart := viewportTop
		if recentStart > base+recentBand {
			recentStart -= recentBand
		} else {
			recentStart = base
		}
		return base, recentStart
	}
}

// sendLaneSnapshot scans one lane newest-first, batches rows into Snapshot
// frames respecting the lane budget and frame byte budget, and finishes
// with SnapshotComplete.
func (s *Subscription) sendLaneSnapshot(lane wire.Lane) error {
	start, end := s.laneRowRange(lane)
	if end <= start {
		return s.send(wire.SnapshotCompleteFrame{Subscription: s.ID, Lane: lane})
	}

	cols, _ := s.Grid.Dims()
	budget := s.dataBudget(lane)

	var rowUpdates []cache.CacheUpdate
	buf := make([]cache.Cell, cols)
	sentStyles := make(map[cache.StyleID]bool)
	for row := end - 1; row >= start; row-- {
		if s.Grid.IsRowBlank(row) {
			if row == start {
				break
			}
			continue
		}
		if !s.Grid.SnapshotRow(row, buf) {
			if row == start {
				break
			}
			continue
		}
		seq := s.Grid.RowLatestSeq(row)
		s.inlineStyles(buf, sentStyles, &rowUpdates)
		rowUpdates = append(rowUpdates, cache.NewRowUpdate(seq, row, buf))
		if row == start {
			break
		}
	}

	watermark := s.Grid.LatestSeq()
	for i := 0; i < len(rowUpdates); i += int(budget) {
		j := i + int(budget)
		if j > len(rowUpdates) {
			j = len(rowUpdates)
		}
		batch := rowUpdates[i:j]
		updates, cursor := s.encodeBatchUnshadowed(batch)
		chunks := wire.ChunkUpdates(updates, wire.SnapshotHeaderOverhead(cursor != nil), j < len(rowUpdates))
		for ci, c := range chunks {
			f := wire.SnapshotFrame{
				Subscription: s.ID,
				Lane:         lane,
				Watermark:    uint64(watermark),
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
	}

	return s.send(wire.SnapshotCompleteFrame{Subscription: s.ID, Lane: lane})
}
