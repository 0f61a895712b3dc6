package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHelloFrameRoundTrip(t *testing.T) {
	f := HelloFrame{
		Subscription: 42,
		MaxSeq:       100,
		Config:       DefaultSyncConfig(),
		Features:     DefaultFeatures,
	}
	buf := f.Encode()
	got, err := DecodeHostFrame(buf)
	require.NoError(t, err)
	hf, ok := got.(HelloFrame)
	require.True(t, ok)
	require.Equal(t, f.Subscription, hf.Subscription)
	require.Equal(t, f.MaxSeq, hf.MaxSeq)
	require.Equal(t, f.Features, hf.Features)
	require.Equal(t, f.Config.DeltaBudget, hf.Config.DeltaBudget)
	require.Len(t, hf.Config.LaneBudgets, len(f.Config.LaneBudgets))
}

func TestGridFrameRoundTripWithViewport(t *testing.T) {
	f := GridFrame{Subscription: 1, Cols: 80, HistoryRows: 5000, BaseRow: 12345, HasViewport: true, ViewportRows: 24}
	buf := f.Encode()
	got, err := DecodeHostFrame(buf)
	require.NoError(t, err)
	gf := got.(GridFrame)
	require.Equal(t, f, gf)
}

func TestDeltaFrameRoundTripWithUpdatesAndCursor(t *testing.T) {
	f := DeltaFrame{
		Subscription: 7,
		Watermark:    99,
		HasMore:      false,
		Updates: []Update{
			{Kind: WireUpdateCell, Row: 0, Col: 4, Seq: 3, Cell: 0x1122334455},
			{Kind: WireUpdateRow, Row: 1, Seq: 4, Cells: []uint64{1, 2, 3}},
			{Kind: WireUpdateTrim, TrimStart: 0, TrimCount: 10, Seq: 5},
			{Kind: WireUpdateStyle, StyleID: 2, Seq: 6, Fg: 0x01ff0000, Bg: 0, Attrs: 1},
		},
		HasCursor: true,
		Cursor:    Cursor{Row: 2, Col: 3, Seq: 6, Visible: true, Blink: false},
	}
	buf := f.Encode()
	got, err := DecodeHostFrame(buf)
	require.NoError(t, err)
	df := got.(DeltaFrame)
	require.Equal(t, f.Watermark, df.Watermark)
	require.Equal(t, f.HasMore, df.HasMore)
	require.Equal(t, f.Updates, df.Updates)
	require.Equal(t, f.Cursor, df.Cursor)
}

func TestHistoryBackfillFrameRoundTrip(t *testing.T) {
	f := HistoryBackfillFrame{
		Subscription: 3,
		RequestID:    55,
		StartRow:     1000,
		Count:        64,
		Updates:      nil,
		More:         false,
	}
	buf := f.Encode()
	got, err := DecodeHostFrame(buf)
	require.NoError(t, err)
	bf := got.(HistoryBackfillFrame)
	require.Equal(t, f.RequestID, bf.RequestID)
	require.Equal(t, f.StartRow, bf.StartRow)
	require.Equal(t, f.Count, bf.Count)
	require.Empty(t, bf.Updates)
	require.False(t, bf.More)
}

func TestInputFrameRoundTrip(t *testing.T) {
	f := InputFrame{Seq: 7, Data: []byte("a")}
	buf := f.Encode()
	got, err := DecodeClientFrame(buf)
	require.NoError(t, err)
	inf := got.(InputFrame)
	require.Equal(t, f.Seq, inf.Seq)
	require.Equal(t, f.Data, inf.Data)
}

func TestRequestBackfillFrameRoundTrip(t *testing.T) {
	f := RequestBackfillFrame{Subscription: 1, RequestID: 2, StartRow: 10, Count: 5}
	buf := f.Encode()
	got, err := DecodeClientFrame(buf)
	require.NoError(t, err)
	require.Equal(t, f, got.(RequestBackfillFrame))
}

func TestReconstructRowHandlesWraparound(t *testing.T) {
	// A row sharing base_row's high half reconstructs exactly.
	require.Equal(t, uint64(5_000_000_123), ReconstructRow(5_000_000_000, TruncateRow(5_000_000_123)))

	// Row id has wrapped past 2^32 relative to a small base_row.
	base := uint64(10)
	row := uint64(1) << 32 // wraps to low=0
	require.Equal(t, row, ReconstructRow(base, TruncateRow(row)))
}

func TestChunkUpdatesSplitsOnFrameBudget(t *testing.T) {
	var updates []Update
	for i := 0; i < MaxUpdatesPerFrame*3; i++ {
		updates = append(updates, Update{Kind: WireUpdateCell, Row: uint32(i), Seq: uint64(i)})
	}
	chunks := ChunkUpdates(updates, DeltaHeaderOverhead(false), false)
	require.Len(t, chunks, 3)
	require.True(t, chunks[0].HasMore)
	require.True(t, chunks[1].HasMore)
	require.False(t, chunks[2].HasMore)

	var total int
	for _, c := range chunks {
		require.LessOrEqual(t, len(c.Updates), MaxUpdatesPerFrame)
		total += len(c.Updates)
	}
	require.Equal(t, len(updates), total)
}

func TestChunkUpdatesFragmentsOversizedRowIntoRowSegs(t *testing.T) {
	huge := Update{Kind: WireUpdateRow, Row: 0, Seq: 1, Cells: make([]uint64, MaxTransportFrameBytes)}
	chunks := ChunkUpdates([]Update{huge}, DeltaHeaderOverhead(false), false)
	require.Greater(t, len(chunks), 1)
	require.False(t, chunks[len(chunks)-1].HasMore)

	var totalCells, startCol int
	for i, c := range chunks {
		require.Len(t, c.Updates, 1)
		u := c.Updates[0]
		require.Equal(t, WireUpdateRowSeg, u.Kind)
		require.Equal(t, uint32(startCol), u.StartCol)
		require.LessOrEqual(t, EncodedSize(u)+DeltaHeaderOverhead(false), MaxTransportFrameBytes)
		totalCells += len(u.Cells)
		startCol += len(u.Cells)
		if i < len(chunks)-1 {
			require.True(t, c.HasMore)
		}
	}
	require.Equal(t, len(huge.Cells), totalCells)
}

func TestChunkUpdatesEmptyBatchYieldsOneEmptyChunk(t *testing.T) {
	chunks := ChunkUpdates(nil, DeltaHeaderOverhead(false), false)
	require.Len(t, chunks, 1)
	require.Empty(t, chunks[0].Updates)
	require.False(t, chunks[0].HasMore)
}
