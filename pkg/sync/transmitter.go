// Package sync implements component C4, the Server Synchronizer: per-
// subscription handshake, delta loop, and backfill scheduling that turn a
// host's cache.Grid and timeline.Stream into the host frame sequence
// defined by spec §6.1. Grounded on the teacher's pkg/termsocket.Manager
// (debounced per-subscriber notification, one goroutine per subscriber)
// generalized from "push whole snapshots" to "push lane-partitioned
// handshake, then incremental deltas."
package sync

import (
	"github.com/beachshare/beach/pkg/cache"
	"github.com/beachshare/beach/pkg/wire"
)

// transmitterCache is a per-subscription shadow of the rows/styles most
// recently transmitted (spec §4.4.4). An outgoing update is suppressed if
// it would reproduce what the shadow already holds; Trim updates are never
// suppressed. Grounded on original_source/.../server_pipeline/mod.rs's
// per-subscription "last sent" tracking, reshaped around this
// implementation's FNV-1a row hashing (SPEC_FULL §9.2) so a whole-row
// dedup check costs one hash compare instead of a cell-by-cell diff.
type transmitterCache struct {
	rowHash    map[cache.Row]uint64
	cellVal    map[cellKey]cache.Cell
	stylesSent map[cache.StyleID]cache.Style
	lastCursor cache.CursorState
	haveCursor bool
}

type cellKey struct {
	row cache.Row
	col int
}

func newTransmitterCache() *transmitterCache {
	return &transmitterCache{
		rowHash:    make(map[cache.Row]uint64),
		cellVal:    make(map[cellKey]cache.Cell),
		stylesSent: make(map[cache.StyleID]cache.Style),
	}
}

// fnv1aRow hashes a row's cells with FNV-1a, used to short-circuit
// WireRow/Row-shaped dedup checks without a cell-by-cell compare.
func fnv1aRow(cells []cache.Cell) uint64 {
	const (
		offset = 14695981039346656037
		prime  = 1099511628211
	)
	h := uint64(offset)
	for _, c := range cells {
		v := uint64(c)
		for i := 0; i < 8; i++ {
			h ^= (v >> (8 * uint(i))) & 0xff
			h *= prime
		}
	}
	return h
}

// filterCell reports whether a Cell update should be sent, updating the
// shadow either way.
func (t *transmitterCache) filterCell(row cache.Row, col int, cell cache.Cell) bool {
	key := cellKey{row, col}
	if prev, ok := t.cellVal[key]; ok && prev == cell {
		return false
	}
	t.cellVal[key] = cell
	delete(t.rowHash, row) // row-level shadow is now stale for this row
	return true
}

// filterRow reports whether a Row update should be sent.
func (t *transmitterCache) filterRow(row cache.Row, cells []cache.Cell) bool {
	h := fnv1aRow(cells)
	if prev, ok := t.rowHash[row]; ok && prev == h {
		return false
	}
	t.rowHash[row] = h
	for col, c := range cells {
		t.cellVal[cellKey{row, col}] = c
	}
	return true
}

// filterStyle reports whether a Style update should be sent.
func (t *transmitterCache) filterStyle(id cache.StyleID, style cache.Style) bool {
	if prev, ok := t.stylesSent[id]; ok && prev.Equal(style) {
		return false
	}
	t.stylesSent[id] = style
	return true
}

// filterCursor reports whether a Cursor update should be sent: only once
// per distinct cursor state (spec §4.5, "suppressed until it changes").
func (t *transmitterCache) filterCursor(c cache.CursorState) bool {
	if t.haveCursor && t.lastCursor == c {
		return false
	}
	t.lastCursor = c
	t.haveCursor = true
	return true
}

// Apply runs one CacheUpdate through the shadow, returning the wire.Update
// to transmit and whether it survived dedup (Trim always survives).
func (t *transmitterCache) Apply(u cache.CacheUpdate) (wire.Update, bool) {
	switch u.Kind {
	case cache.UpdateCell:
		if !t.filterCell(u.Row, u.Col, u.Cell) {
			return wire.Update{}, false
		}
		return wire.Update{Kind: wire.WireUpdateCell, Seq: uint64(u.Seq), Row: wire.TruncateRow(uint64(u.Row)), Col: uint32(u.Col), Cell: uint64(u.Cell)}, true

	case cache.UpdateRow:
		if !t.filterRow(u.Row, u.Cells) {
			return wire.Update{}, false
		}
		return wire.Update{Kind: wire.WireUpdateRow, Seq: uint64(u.Seq), Row: wire.TruncateRow(uint64(u.Row)), Cells: packCells(u.Cells)}, true

	case cache.UpdateRect:
		// Rect fills touch many cells at once; dedup at cell granularity
		// so a partially-redundant rect still narrows correctly, but a
		// Rect is itself always re-derived rather than reconstructed from
		// the shadow, so it is always sent (matches spec: "Trim updates
		// are always emitted" is the only call-out exception, but a Rect
		// fill is cheap and its redundant case — re-clearing an already
		// blank region — is rare enough not to warrant a full-area hash).
		for row := u.RowStart; row < u.RowEnd; row++ {
			for col := u.ColStart; col < u.ColEnd; col++ {
				t.cellVal[cellKey{row, col}] = u.Cell
			}
			delete(t.rowHash, row)
		}
		return wire.Update{
			Kind: wire.WireUpdateRect, Seq: uint64(u.Seq),
			R0: wire.TruncateRow(uint64(u.RowStart)), R1: wire.TruncateRow(uint64(u.RowEnd)),
			C0: uint32(u.ColStart), C1: uint32(u.ColEnd),
			Cell: uint64(u.Cell),
		}, true

	case cache.UpdateTrim:
		t.pruneBelow(u.TrimStart + cache.Row(u.TrimCount))
		return wire.Update{Kind: wire.WireUpdateTrim, Seq: uint64(u.Seq), TrimStart: wire.TruncateRow(uint64(u.TrimStart)), TrimCount: u.TrimCount}, true

	case cache.UpdateStyle:
		if !t.filterStyle(u.StyleID, u.StyleValue) {
			return wire.Update{}, false
		}
		fg, bg, attrs := styleToWire(u.StyleValue)
		return wire.Update{Kind: wire.WireUpdateStyle, Seq: uint64(u.Seq), StyleID: uint32(u.StyleID), Fg: fg, Bg: bg, Attrs: attrs}, true

	case cache.UpdateCursor:
		// Cursor updates never appear in a frame's Updates array (spec
		// §6.1 Update encoding has no cursor kind); the delta/snapshot
		// builder extracts them from the batch before calling Apply and
		// piggybacks the latest one via filterCursor.
		return wire.Update{}, false
	}
	return wire.Update{}, false
}

// pruneBelow discards shadow entries for rows below a trimmed boundary, so
// a later re-allocation of that row id's ring slot doesn't read stale
// shadow state (row ids are never reused, but the point is memory growth
// bounding, not correctness).
func (t *transmitterCache) pruneBelow(boundary cache.Row) {
	for row := range t.rowHash {
		if row < boundary {
			delete(t.rowHash, row)
		}
	}
	for key := range t.cellVal {
		if key.row < boundary {
			delete(t.cellVal, key)
		}
	}
}

func packCells(cells []cache.Cell) []uint64 {
	out := make([]uint64, len(cells))
	for i, c := range cells {
		out[i] = uint64(c)
	}
	return out
}

func styleToWire(s cache.Style) (fg, bg uint32, attrs uint8) {
	return uint32(s.Fg), uint32(s.Bg), uint8(s.Attrs)
}

func cursorFromState(c cache.CursorState) wire.Cursor {
	return wire.Cursor{Row: uint32(c.Row), Col: uint32(c.Col), Seq: uint64(c.Seq), Visible: c.Visible, Blink: c.Blink}
}

// rawEncode converts one CacheUpdate to its wire.Update unconditionally,
// bypassing the transmitter shadow entirely. The snapshot and backfill
// senders use this instead of Apply: §4.4.1 requires the handshake to be
// "stateless across retries (it re-scans the grid)" and a re-requested
// backfill must cover the same rows again, but the shadow in this struct
// is scoped to the delta loop's own incremental stream (§4.4.4) — running
// a retry through it would dedupe out rows the shadow had already seen on
// a prior, possibly-failed attempt.
func rawEncode(u cache.CacheUpdate) (wire.Update, bool) {
	switch u.Kind {
	case cache.UpdateCell:
		return wire.Update{Kind: wire.WireUpdateCell, Seq: uint64(u.Seq), Row: wire.TruncateRow(uint64(u.Row)), Col: uint32(u.Col), Cell: uint64(u.Cell)}, true

	case cache.UpdateRow:
		return wire.Update{Kind: wire.WireUpdateRow, Seq: uint64(u.Seq), Row: wire.TruncateRow(uint64(u.Row)), Cells: packCells(u.Cells)}, true

	case cache.UpdateRect:
		return wire.Update{
			Kind: wire.WireUpdateRect, Seq: uint64(u.Seq),
			R0: wire.TruncateRow(uint64(u.RowStart)), R1: wire.TruncateRow(uint64(u.RowEnd)),
			C0: uint32(u.ColStart), C1: uint32(u.ColEnd),
			Cell: uint64(u.Cell),
		}, true

	case cache.UpdateTrim:
		return wire.Update{Kind: wire.WireUpdateTrim, Seq: uint64(u.Seq), TrimStart: wire.TruncateRow(uint64(u.TrimStart)), TrimCount: u.TrimCount}, true

	case cache.UpdateStyle:
		fg, bg, attrs := styleToWire(u.StyleValue)
		return wire.Update{Kind: wire.WireUpdateStyle, Seq: uint64(u.Seq), StyleID: uint32(u.StyleID), Fg: fg, Bg: bg, Attrs: attrs}, true

	case cache.UpdateCursor:
		return wire.Update{}, false
	}
	return wire.Update{}, false
}
