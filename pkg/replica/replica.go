// Package replica implements component C6, the Client Replica: the
// sparse row-slot grid a client maintains from host frames, predictive
// echo, gap detection/backfill requesting, and scroll/tail-follow
// bookkeeping (spec §4.6). Grounded on other_examples/framegrace-
// texelation's PaneState (sparse row map keyed by index, revision
// bookkeeping) for the row-slot shape, and on original_source's
// grid_renderer.rs/terminal_client.rs for the gap-scan and liveness
// state machine this implementation generalizes into Go.
package replica

import (
	"sync"
	"time"

	"github.com/beachshare/beach/pkg/cache"
	"github.com/beachshare/beach/pkg/wire"
)

// SlotState is a client-side row's lifecycle (spec §4.6.1/§7).
type SlotState uint8

const (
	SlotPending SlotState = iota
	SlotLoaded
	SlotMissing
)

type rowSlot struct {
	state SlotState
	cells []cache.Cell
	seq   uint64
}

// predictionKey is a (row,col) coordinate; row is an absolute row id, the
// same id the row slots are keyed by.
type predictionKey struct {
	row cache.Row
	col int
}

type prediction struct {
	ch  rune
	seq uint64
}

// ConnState is the client's liveness/handshake status (spec §7,
// "Connecting / Synced / Reconnecting / Offline").
type ConnState uint8

const (
	StateConnecting ConnState = iota
	StateSynced
	StateReconnecting
	StateOffline
)

// LookaroundRows is the gap-scan margin around the viewport (spec §4.6.4).
const LookaroundRows = 64

// BackfillRetryWindow is how long a client waits before re-requesting an
// overlapping backfill range (spec §4.6.4, "within the last 75ms").
const BackfillRetryWindow = 75 * time.Millisecond

// Replica is the client-side mirror of one subscription's grid.
type Replica struct {
	mu sync.Mutex

	Subscription uint64

	BaseRow     cache.Row
	Cols        int
	HistoryRows uint32
	rows        map[cache.Row]*rowSlot

	ScrollTop       int
	ViewportHeight  int
	FollowTail      bool

	Watermark       cache.Seq
	lastCursorSeq   cache.Seq
	Cursor          wire.Cursor

	predictions map[predictionKey]prediction

	pendingBackfill map[uint64]backfillRequest
	nextRequestID   uint64

	connState     ConnState
	lastHeartbeat time.Time

	// SendBackfillRequest, when set, is invoked whenever gap detection
	// decides a new RequestBackfill must go out; kept as a hook so Replica
	// stays transport-agnostic (same separation as pkg/sync.Subscription
	// vs pkg/transport).
	SendBackfillRequest func(wire.RequestBackfillFrame)
	SendInput           func(wire.InputFrame)
}

type backfillRequest struct {
	startRow cache.Row
	count    uint32
	issued   time.Time
}

// New creates a Replica with no rows yet; ApplyGrid seeds geometry.
func New(subscription uint64, viewportHeight int) *Replica {
	return &Replica{
		Subscription:    subscription,
		ViewportHeight:  viewportHeight,
		FollowTail:      true,
		rows:            make(map[cache.Row]*rowSlot),
		predictions:     make(map[predictionKey]prediction),
		pendingBackfill: make(map[uint64]backfillRequest),
		connState:       StateConnecting,
	}
}

func (r *Replica) ConnState() ConnState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connState
}

// ApplyHello initializes watermark from Hello.max_seq (spec §4.6.2).
func (r *Replica) ApplyHello(f wire.HelloFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Watermark = cache.Seq(f.MaxSeq)
	r.connState = StateConnecting
}

// ApplyGrid sets geometry and allocates newly-visible rows as Pending.
func (r *Replica) ApplyGrid(f wire.GridFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Cols = int(f.Cols)
	r.HistoryRows = f.HistoryRows
	r.BaseRow = cache.Row(f.BaseRow)
	if f.HasViewport {
		r.ViewportHeight = int(f.ViewportRows)
	}
	count := cache.Row(f.HistoryRows)
	for row := r.BaseRow; row < r.BaseRow+count; row++ {
		if _, ok := r.rows[row]; !ok {
			r.rows[row] = &rowSlot{state: SlotPending}
		}
	}
}

// ApplyUpdate applies one wire.Update with the monotonic rule: accepted
// iff its seq >= the slot's recorded seq (spec §4.6.2). Clears any
// prediction at a touched cell.
func (r *Replica) ApplyUpdate(u wire.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyUpdateLocked(u)
}

func (r *Replica) applyUpdateLocked(u wire.Update) {
	switch u.Kind {
	case wire.WireUpdateCell:
		row := cache.Row(wire.ReconstructRow(uint64(r.BaseRow), u.Row))
		slot := r.allocRow(row)
		if u.Seq < slot.seq && slot.state == SlotLoaded {
			return
		}
		if slot.cells == nil {
			slot.cells = make([]cache.Cell, r.Cols)
		}
		if int(u.Col) < len(slot.cells) {
			slot.cells[u.Col] = cache.Cell(u.Cell)
		}
		slot.seq = u.Seq
		slot.state = SlotLoaded
		delete(r.predictions, predictionKey{row, int(u.Col)})

	case wire.WireUpdateRow:
		row := cache.Row(wire.ReconstructRow(uint64(r.BaseRow), u.Row))
		slot := r.allocRow(row)
		if u.Seq < slot.seq && slot.state == SlotLoaded {
			return
		}
		cells := make([]cache.Cell, r.Cols)
		for i := 0; i < r.Cols; i++ {
			if i < len(u.Cells) {
				cells[i] = cache.Cell(u.Cells[i])
			} else {
				cells[i] = cache.BlankCell
			}
		}
		slot.cells = cells
		slot.seq = u.Seq
		slot.state = SlotLoaded
		for col := range cells {
			delete(r.predictions, predictionKey{row, col})
		}

	case wire.WireUpdateRowSeg:
		row := cache.Row(wire.ReconstructRow(uint64(r.BaseRow), u.Row))
		slot := r.allocRow(row)
		if u.Seq < slot.seq && slot.state == SlotLoaded {
			return
		}
		if slot.cells == nil {
			slot.cells = make([]cache.Cell, r.Cols)
		}
		for i, c := range u.Cells {
			col := int(u.StartCol) + i
			if col >= len(slot.cells) {
				break
			}
			slot.cells[col] = cache.Cell(c)
			delete(r.predictions, predictionKey{row, col})
		}
		slot.seq = u.Seq
		slot.state = SlotLoaded

	case wire.WireUpdateRect:
		r0 := cache.Row(wire.ReconstructRow(uint64(r.BaseRow), u.R0))
		r1 := cache.Row(wire.ReconstructRow(uint64(r.BaseRow), u.R1))
		for row := r0; row < r1; row++ {
			slot := r.allocRow(row)
			if u.Seq < slot.seq && slot.state == SlotLoaded {
				continue
			}
			if slot.cells == nil {
				slot.cells = make([]cache.Cell, r.Cols)
			}
			for col := int(u.C0); col < int(u.C1) && col < len(slot.cells); col++ {
				slot.cells[col] = cache.Cell(u.Cell)
				delete(r.predictions, predictionKey{row, col})
			}
			slot.seq = u.Seq
			slot.state = SlotLoaded
		}

	case wire.WireUpdateTrim:
		start := cache.Row(wire.ReconstructRow(uint64(r.BaseRow), u.TrimStart))
		count := cache.Row(u.TrimCount)
		for row := start; row < start+count; row++ {
			delete(r.rows, row)
			for col := 0; col < r.Cols; col++ {
				delete(r.predictions, predictionKey{row, col})
			}
		}
		newBase := start + count
		if newBase > r.BaseRow {
			trimmed := int(newBase - r.BaseRow)
			r.BaseRow = newBase
			r.ScrollTop -= trimmed
			if r.ScrollTop < 0 {
				r.ScrollTop = 0
			}
		}

	case wire.WireUpdateStyle:
		// Style application is owned by the renderer's style table, which
		// is out of scope for replica row bookkeeping; nothing to do here
		// beyond having carried it across the wire intact.
	}

	if cache.Seq(u.Seq) > r.Watermark {
		r.Watermark = cache.Seq(u.Seq)
	}
}

// cursorAbsRowLocked recovers the cursor's absolute row id from the low 32
// bits carried on the wire (the emulator adapter reports the cursor row as
// an absolute id, like every other row on the wire). Caller must hold r.mu.
func (r *Replica) cursorAbsRowLocked() cache.Row {
	return cache.Row(wire.ReconstructRow(uint64(r.BaseRow), r.Cursor.Row))
}

func (r *Replica) allocRow(row cache.Row) *rowSlot {
	slot, ok := r.rows[row]
	if !ok {
		slot = &rowSlot{state: SlotPending}
		r.rows[row] = slot
	}
	return slot
}

// ApplyCursor applies a Cursor update if its seq is newer than the last
// applied cursor (spec §4.6.2).
func (r *Replica) ApplyCursor(c wire.Cursor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cache.Seq(c.Seq) < r.lastCursorSeq {
		return
	}
	r.Cursor = c
	r.lastCursorSeq = cache.Seq(c.Seq)
}

// ApplyHeartbeat resets the idle timer and marks the replica live.
func (r *Replica) ApplyHeartbeat() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastHeartbeat = walltime()
	if r.connState != StateOffline {
		r.connState = StateSynced
	}
}

// MarkSnapshotComplete is bookkeeping-only (spec §4.6.2): the first
// SnapshotComplete of any lane marks the client synced; lanes are not
// tracked individually.
func (r *Replica) MarkSnapshotComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connState = StateSynced
}

// Viewport returns the absolute row of the topmost visible line, the
// viewport's row count, and its column count — everything a renderer
// needs to iterate the currently visible grid.
func (r *Replica) Viewport() (top cache.Row, rows, cols int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.BaseRow + cache.Row(r.ScrollTop), r.ViewportHeight, r.Cols
}

// RowCells returns a row's cells and lifecycle state for rendering. The
// returned slice must not be mutated.
func (r *Replica) RowCells(row cache.Row) ([]cache.Cell, SlotState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, ok := r.rows[row]
	if !ok {
		return nil, SlotPending
	}
	return slot.cells, slot.state
}

// walltime is a seam so tests can avoid depending on wall-clock ordering;
// production code just wants time.Now().
var walltime = time.Now
