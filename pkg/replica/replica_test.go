package replica

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beachshare/beach/pkg/cache"
	"github.com/beachshare/beach/pkg/wire"
)

func TestApplyRowUpdateLoadsSlot(t *testing.T) {
	r := New(1, 5)
	r.ApplyGrid(wire.GridFrame{Cols: 10, HistoryRows: 5, BaseRow: 0, HasViewport: true, ViewportRows: 5})

	cells := make([]uint64, 5)
	for i, ch := range "hello" {
		cells[i] = uint64(cache.PackCell(ch, 0))
	}
	r.ApplyUpdate(wire.Update{Kind: wire.WireUpdateRow, Row: 0, Seq: 1, Cells: cells})

	slot, ok := r.rows[0]
	require.True(t, ok)
	require.Equal(t, SlotLoaded, slot.state)
	require.Equal(t, uint64(1), slot.seq)
	require.EqualValues(t, 1, r.Watermark)
}

func TestMonotonicWriteRejectsStaleUpdate(t *testing.T) {
	r := New(1, 5)
	r.ApplyGrid(wire.GridFrame{Cols: 10, HistoryRows: 5, BaseRow: 0, HasViewport: true, ViewportRows: 5})

	r.ApplyUpdate(wire.Update{Kind: wire.WireUpdateCell, Row: 0, Col: 0, Seq: 5, Cell: uint64(cache.PackCell('x', 0))})
	r.ApplyUpdate(wire.Update{Kind: wire.WireUpdateCell, Row: 0, Col: 0, Seq: 2, Cell: uint64(cache.PackCell('y', 0))})

	slot := r.rows[0]
	require.Equal(t, 'x', slot.cells[0].Rune(), "a lower-seq write must not overwrite a higher-seq one")
}

// TestTrimKeepsViewportStable exercises spec §8 scenario S5.
func TestTrimKeepsViewportStable(t *testing.T) {
	r := New(1, 10)
	r.ApplyGrid(wire.GridFrame{Cols: 10, HistoryRows: 200, BaseRow: 0, HasViewport: true, ViewportRows: 10})
	r.ScrollTop = 50
	for row := cache.Row(0); row < 200; row++ {
		r.rows[row] = &rowSlot{state: SlotLoaded, cells: make([]cache.Cell, 10)}
	}

	r.ApplyUpdate(wire.Update{Kind: wire.WireUpdateTrim, TrimStart: 0, TrimCount: 100, Seq: 500})

	require.EqualValues(t, 100, r.BaseRow)
	require.Equal(t, 0, r.ScrollTop)
	_, stillThere := r.rows[50]
	require.False(t, stillThere)
	_, kept := r.rows[150]
	require.True(t, kept)
}

func TestGapDetectionIssuesBackfillRequestOnce(t *testing.T) {
	r := New(1, 5)
	r.ApplyGrid(wire.GridFrame{Cols: 10, HistoryRows: 20, BaseRow: 0, HasViewport: true, ViewportRows: 5})

	var requests []wire.RequestBackfillFrame
	r.SendBackfillRequest = func(f wire.RequestBackfillFrame) { requests = append(requests, f) }

	r.ScanForGap()
	require.Len(t, requests, 1)
	require.EqualValues(t, 0, requests[0].StartRow)

	// A second scan within the retry window must not re-request the same range.
	r.ScanForGap()
	require.Len(t, requests, 1)
}

func TestHistoryBackfillMarksUncoveredRowsMissing(t *testing.T) {
	r := New(1, 5)
	r.ApplyGrid(wire.GridFrame{Cols: 10, HistoryRows: 5, BaseRow: 0, HasViewport: true, ViewportRows: 5})
	r.pendingBackfill[7] = backfillRequest{startRow: 1, count: 2, issued: time.Now()}

	r.ApplyHistoryBackfill(wire.HistoryBackfillFrame{RequestID: 7, StartRow: 1, Count: 2, Updates: nil, More: false})

	require.Equal(t, SlotMissing, r.rows[1].state)
	require.Equal(t, SlotMissing, r.rows[2].state)
	_, pending := r.pendingBackfill[7]
	require.False(t, pending)
}

func TestPredictiveEchoInsertsAndReleasesOnAck(t *testing.T) {
	r := New(1, 5)
	r.ApplyGrid(wire.GridFrame{Cols: 10, HistoryRows: 5, BaseRow: 0, HasViewport: true, ViewportRows: 5})

	var sent []wire.InputFrame
	r.SendInput = func(f wire.InputFrame) { sent = append(sent, f) }

	r.TypeChar('a')
	require.Len(t, sent, 1)
	ch, ok := r.PredictedCell(0, 0)
	require.True(t, ok)
	require.Equal(t, 'a', ch)

	r.ApplyInputAck(sent[0].Seq)
	_, ok = r.PredictedCell(0, 0)
	require.False(t, ok, "ack should release the prediction")
}

func TestEnterClearsRowPredictions(t *testing.T) {
	r := New(1, 5)
	r.ApplyGrid(wire.GridFrame{Cols: 10, HistoryRows: 5, BaseRow: 0, HasViewport: true, ViewportRows: 5})
	r.SendInput = func(wire.InputFrame) {}

	r.TypeChar('a')
	r.TypeChar('b')
	require.Len(t, r.predictions, 2)

	r.Enter()
	require.Empty(t, r.predictions)
}
