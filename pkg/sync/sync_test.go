package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beachshare/beach/pkg/cache"
	"github.com/beachshare/beach/pkg/timeline"
	"github.com/beachshare/beach/pkg/transport"
	"github.com/beachshare/beach/pkg/wire"
)

func recvFrame(t *testing.T, tr transport.Transport) interface{} {
	t.Helper()
	buf, err := tr.Recv(time.Second)
	require.NoError(t, err)
	f, err := wire.DecodeHostFrame(buf)
	require.NoError(t, err)
	return f
}

// TestHandshakeBasicSnapshotReplay exercises spec §8 scenario S1.
func TestHandshakeBasicSnapshotReplay(t *testing.T) {
	grid := cache.NewGrid(10, 4, 0)
	grid.WriteRow(0, 1, []cache.Cell{cache.PackCell('h', 0), cache.PackCell('e', 0), cache.PackCell('l', 0), cache.PackCell('l', 0), cache.PackCell('o', 0)})
	grid.WriteRow(1, 2, []cache.Cell{cache.PackCell('w', 0), cache.PackCell('o', 0), cache.PackCell('r', 0), cache.PackCell('l', 0), cache.PackCell('d', 0)})
	stream := timeline.NewStream(100)

	hostSide, clientSide := transport.NewPipe()
	sub := NewSubscription(1, grid, stream, hostSide, wire.DefaultSyncConfig())

	errCh := make(chan error, 1)
	go func() { errCh <- sub.Handshake() }()

	hello := recvFrame(t, clientSide).(wire.HelloFrame)
	require.EqualValues(t, 2, hello.MaxSeq)

	gridFrame := recvFrame(t, clientSide).(wire.GridFrame)
	require.EqualValues(t, 10, gridFrame.Cols)
	require.EqualValues(t, 0, gridFrame.BaseRow)

	// Foreground lane: expect a Snapshot carrying both rows (newest first)
	// followed by SnapshotComplete, then the other two lanes' completes
	// (no rows to send since everything fits in the viewport).
	snap := recvFrame(t, clientSide).(wire.SnapshotFrame)
	require.Equal(t, wire.LaneForeground, snap.Lane)
	require.False(t, snap.HasMore)
	require.Len(t, snap.Updates, 2)
	// newest-first: row 1 ("world") before row 0 ("hello").
	require.EqualValues(t, 1, snap.Updates[0].Row)
	require.EqualValues(t, 0, snap.Updates[1].Row)

	complete := recvFrame(t, clientSide).(wire.SnapshotCompleteFrame)
	require.Equal(t, wire.LaneForeground, complete.Lane)

	recentComplete := recvFrame(t, clientSide).(wire.SnapshotCompleteFrame)
	require.Equal(t, wire.LaneRecent, recentComplete.Lane)

	historyComplete := recvFrame(t, clientSide).(wire.SnapshotCompleteFrame)
	require.Equal(t, wire.LaneHistory, historyComplete.Lane)

	require.NoError(t, <-errCh)
	require.True(t, sub.handshakeDone)
	require.EqualValues(t, 2, sub.Watermark())
}

// TestDeltaLoopSendsNewCellAfterHandshake exercises spec §8 scenario S2.
func TestDeltaLoopSendsNewCellAfterHandshake(t *testing.T) {
	grid := cache.NewGrid(10, 2, 0)
	grid.WriteRow(0, 1, []cache.Cell{cache.PackCell('h', 0), cache.PackCell('e', 0), cache.PackCell('l', 0), cache.PackCell('l', 0), cache.PackCell('o', 0)})
	stream := timeline.NewStream(100)

	hostSide, clientSide := transport.NewPipe()
	sub := NewSubscription(1, grid, stream, hostSide, wire.DefaultSyncConfig())
	require.NoError(t, sub.Handshake())

	// Drain the handshake frames: Hello, Grid, Snapshot(Foreground),
	// SnapshotComplete(Foreground), SnapshotComplete(Recent),
	// SnapshotComplete(History).
	for i := 0; i < 6; i++ {
		recvFrame(t, clientSide)
	}

	u := cache.NewCellUpdate(3, 0, 4, cache.PackCell('!', 0))
	grid.WriteCellIfNewer(0, 4, 3, cache.PackCell('!', 0))
	stream.Record(u)

	require.NoError(t, sub.pumpOnce())
	delta := recvFrame(t, clientSide).(wire.DeltaFrame)
	require.EqualValues(t, 3, delta.Watermark)
	require.Len(t, delta.Updates, 1)
	require.Equal(t, wire.WireUpdateCell, delta.Updates[0].Kind)
	require.EqualValues(t, 4, delta.Updates[0].Col)
	require.EqualValues(t, 3, sub.Watermark())
}

func TestTransmitterCacheSuppressesRedundantCell(t *testing.T) {
	tx := newTransmitterCache()
	u := cache.NewCellUpdate(1, 0, 0, cache.PackCell('x', 0))
	_, ok := tx.Apply(u)
	require.True(t, ok)

	repeat := cache.NewCellUpdate(2, 0, 0, cache.PackCell('x', 0))
	_, ok = tx.Apply(repeat)
	require.False(t, ok, "identical cell content should be suppressed by the transmitter cache")
}

func TestTransmitterCacheAlwaysEmitsTrim(t *testing.T) {
	tx := newTransmitterCache()
	u := cache.NewTrimUpdate(1, 0, 5)
	_, ok := tx.Apply(u)
	require.True(t, ok)
	_, ok = tx.Apply(u)
	require.True(t, ok, "Trim updates are never suppressed")
}

func TestBackfillRequestYieldsHistoryBackfillFrame(t *testing.T) {
	grid := cache.NewGrid(10, 2, 10)
	grid.WriteRow(0, 1, []cache.Cell{cache.PackCell('a', 0)})
	for i := 0; i < 5; i++ {
		grid.AppendRow()
	}
	grid.WriteRow(3, 2, []cache.Cell{cache.PackCell('z', 0)})
	stream := timeline.NewStream(100)

	hostSide, clientSide := transport.NewPipe()
	sub := NewSubscription(1, grid, stream, hostSide, wire.DefaultSyncConfig())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = sub.backfill.Run(ctx)
	}()

	sub.backfill.Enqueue(wire.RequestBackfillFrame{Subscription: 1, RequestID: 9, StartRow: 1, Count: 2})

	got := recvFrame(t, clientSide).(wire.HistoryBackfillFrame)
	require.EqualValues(t, 9, got.RequestID)
	require.EqualValues(t, 1, got.StartRow)
	require.False(t, got.More)
}
