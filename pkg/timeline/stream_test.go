package timeline

import (
	"testing"

	"github.com/beachshare/beach/pkg/cache"
	"github.com/stretchr/testify/require"
)

func TestCollectSinceStrictOrder(t *testing.T) {
	s := NewStream(10)
	for i := 1; i <= 5; i++ {
		s.Record(cache.NewCellUpdate(cache.Seq(i), cache.Row(0), 0, cache.BlankCell))
	}

	got := s.CollectSince(2, 0)
	require.Len(t, got, 3)
	require.EqualValues(t, 3, got[0].Seq)
	require.EqualValues(t, 4, got[1].Seq)
	require.EqualValues(t, 5, got[2].Seq)
}

func TestCollectSinceRespectsBudget(t *testing.T) {
	s := NewStream(100)
	for i := 1; i <= 10; i++ {
		s.Record(cache.NewCellUpdate(cache.Seq(i), cache.Row(0), 0, cache.BlankCell))
	}
	got := s.CollectSince(0, 3)
	require.Len(t, got, 3)
	require.EqualValues(t, 1, got[0].Seq)
}

func TestRingEvictsOldest(t *testing.T) {
	s := NewStream(3)
	for i := 1; i <= 5; i++ {
		s.Record(cache.NewCellUpdate(cache.Seq(i), cache.Row(0), 0, cache.BlankCell))
	}
	require.EqualValues(t, 3, s.OldestRetainedSeq())

	// since=1 is older than the oldest retained (3): caller must fall back
	// to a snapshot; CollectSince just answers with what's in the ring.
	got := s.CollectSince(1, 0)
	require.Len(t, got, 3)
	require.EqualValues(t, 3, got[0].Seq)
}

func TestCollectSinceEmptyWhenCaughtUp(t *testing.T) {
	s := NewStream(10)
	s.Record(cache.NewCellUpdate(1, 0, 0, cache.BlankCell))
	got := s.CollectSince(1, 0)
	require.Empty(t, got)
}
