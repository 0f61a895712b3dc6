package sync

import (
	"github.com/beachshare/beach/pkg/cache"
	"github.com/beachshare/beach/pkg/timeline"
	"github.com/beachshare/beach/pkg/transport"
	"github.com/beachshare/beach/pkg/wire"
)

// HandshakeRefreshMillis is the retry interval when a transport send fails mid-
// handshake (spec §4.4.1, "HANDSHAKE_REFRESH (~200ms)").
const HandshakeRefreshMillis = 200

// Subscription drives one client's host frame stream: handshake, delta
// loop, and backfill scheduling, over a cache.Grid + timeline.Stream shared
// with every other subscription on the same session. Grounded on the
// teacher's per-subscriber goroutine in pkg/termsocket.Manager.monitorSession,
// generalized from raw-byte forwarding to the full §4.4 state machine.
type Subscription struct {
	ID        uint64
	Grid      *cache.Grid
	Timeline  *timeline.Stream
	Transport transport.Transport
	Config    wire.SyncConfig

	watermark     cache.Seq
	handshakeDone bool
	tx            *transmitterCache
	backfill      *backfillScheduler
}

// NewSubscription wires a fresh subscription over an already-attached
// transport. The caller is expected to call Run in its own goroutine.
func NewSubscription(id uint64, grid *cache.Grid, stream *timeline.Stream, t transport.Transport, cfg wire.SyncConfig) *Subscription {
	s := &Subscription{
		ID:        id,
		Grid:      grid,
		Timeline:  stream,
		Transport: t,
		Config:    cfg,
		tx:        newTransmitterCache(),
	}
	s.backfill = newBackfillScheduler(s)
	return s
}

// Watermark returns the highest sequence successfully encoded onto the wire.
func (s *Subscription) Watermark() cache.Seq { return s.watermark }

// send is the sole write path to the transport, so every failure funnels
// through one place implementing spec §4.4.5's failure semantics.
func (s *Subscription) send(frame interface{ Encode() []byte }) error {
	buf := frame.Encode()
	if err := s.Transport.Send(buf); err != nil {
		s.handshakeDone = false
		return err
	}
	return nil
}

func (s *Subscription) dataBudget(lane wire.Lane) uint32 {
	for _, b := range s.Config.LaneBudgets {
		if b.Lane == lane {
			return b.MaxUpdates
		}
	}
	return wire.MaxUpdatesPerFrame
}

// Shutdown tells the client this subscription is ending, best-effort — the
// transport may already be gone by the time a caller notices the session
// died. Callers still cancel the run loop's context afterward; this is
// purely the courtesy frame spec §4.4.5/§7 expects before the connection
// drops.
func (s *Subscription) Shutdown() {
	_ = s.send(wire.ShutdownFrame{Subscription: s.ID})
}

func extractCursor(batch []cache.CacheUpdate) (cache.CursorState, bool) {
	var found cache.CursorState
	ok := false
	for _, u := range batch {
		if u.Kind == cache.UpdateCursor {
			found = u.Cursor
			ok = true
		}
	}
	return found, ok
}

// filterBatch runs a batch of CacheUpdates through the transmitter cache,
// returning the surviving wire updates plus, if present and novel, the
// cursor to piggyback. Only the delta loop uses this — the shadow it
// filters against is scoped to the incremental stream (spec §4.4.4).
func (s *Subscription) filterBatch(batch []cache.CacheUpdate) ([]wire.Update, *wire.Cursor) {
	cursorState, hasCursor := extractCursor(batch)

	out := make([]wire.Update, 0, len(batch))
	for _, u := range batch {
		if u.Kind == cache.UpdateCursor {
			continue
		}
		wu, ok := s.tx.Apply(u)
		if ok {
			out = append(out, wu)
		}
	}

	var cursorOut *wire.Cursor
	if hasCursor && s.tx.filterCursor(cursorState) {
		c := cursorFromState(cursorState)
		cursorOut = &c
	}
	return out, cursorOut
}

// encodeBatchUnshadowed converts a batch of CacheUpdates straight to wire
// updates without consulting or updating the transmitter shadow (see
// rawEncode). The handshake and backfill senders use this so a retried
// handshake or a re-requested backfill range (spec §4.4.1, §4.4.3) always
// re-emits everything it re-scans, rather than being silently narrowed by
// whatever the delta loop's shadow already holds.
func (s *Subscription) encodeBatchUnshadowed(batch []cache.CacheUpdate) ([]wire.Update, *wire.Cursor) {
	cursorState, hasCursor := extractCursor(batch)

	out := make([]wire.Update, 0, len(batch))
	for _, u := range batch {
		if u.Kind == cache.UpdateCursor {
			continue
		}
		wu, ok := rawEncode(u)
		if ok {
			out = append(out, wu)
		}
	}

	var cursorOut *wire.Cursor
	if hasCursor {
		c := cursorFromState(cursorState)
		cursorOut = &c
	}
	return out, cursorOut
}

// inlineStyles prepends a Style update onto *out for every style id in
// cells not already recorded in sent, so the rows that follow have their
// styles resolvable (spec §4.4.1: "all referenced styles are inlined as
// Style updates preceding the first cell that references them"). sent is
// scoped to a single handshake lane or backfill job, not persisted across
// calls, matching the "stateless across retries" requirement those
// sections also make.
func (s *Subscription) inlineStyles(cells []cache.Cell, sent map[cache.StyleID]bool, out *[]cache.CacheUpdate) {
	for _, c := range cells {
		id := c.Style()
		if id == cache.DefaultStyleID || sent[id] {
			continue
		}
		style, ok := s.Grid.Style(id)
		if !ok {
			continue
		}
		sent[id] = true
		*out = append(*out, cache.NewStyleUpdate(s.Grid.StyleDefinedAt(id), id, style))
	}
}
