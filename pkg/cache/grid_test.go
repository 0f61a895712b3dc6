package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteCellIfNewerMonotonic(t *testing.T) {
	g := NewGrid(10, 4, 0)

	ok := g.WriteCellIfNewer(0, 0, 5, PackCell('a', DefaultStyleID))
	require.True(t, ok)

	// Lower seq must not regress a higher one (invariant G1).
	ok = g.WriteCellIfNewer(0, 0, 3, PackCell('b', DefaultStyleID))
	require.False(t, ok)

	buf := make([]Cell, 10)
	require.True(t, g.SnapshotRow(0, buf))
	require.Equal(t, 'a', buf[0].Rune())

	ok = g.WriteCellIfNewer(0, 0, 7, PackCell('c', DefaultStyleID))
	require.True(t, ok)
	require.True(t, g.SnapshotRow(0, buf))
	require.Equal(t, 'c', buf[0].Rune())
}

func TestWriteRowPadsWithBlanks(t *testing.T) {
	g := NewGrid(5, 2, 0)
	g.WriteRow(0, 1, []Cell{PackCell('h', 0), PackCell('i', 0)})

	buf := make([]Cell, 5)
	require.True(t, g.SnapshotRow(0, buf))
	require.Equal(t, "hi   ", cellsToString(buf))
}

func TestTrimRaisesBaseRowExactly(t *testing.T) {
	g := NewGrid(5, 2, 10)
	for i := 0; i < 8; i++ {
		g.AppendRow()
	}
	require.EqualValues(t, 0, g.RowOffset())

	upd := g.Trim(100, 4)
	require.EqualValues(t, 4, g.RowOffset())
	require.Equal(t, UpdateTrim, upd.Kind)
	require.EqualValues(t, 0, upd.TrimStart)
	require.EqualValues(t, 4, upd.TrimCount)

	// Rows below the new base are gone (G2).
	buf := make([]Cell, 5)
	require.False(t, g.SnapshotRow(0, buf))
	require.True(t, g.SnapshotRow(4, buf))
}

func TestEnsureStyleIDDedupes(t *testing.T) {
	g := NewGrid(5, 2, 0)
	s := Style{Fg: NewColor(ColorIndexed256, 1), Attrs: AttrBold}
	id1 := g.EnsureStyleID(1, s)
	id2 := g.EnsureStyleID(2, s)
	require.Equal(t, id1, id2)
	require.NotEqual(t, DefaultStyleID, id1)

	other := Style{Fg: NewColor(ColorIndexed256, 2)}
	id3 := g.EnsureStyleID(3, other)
	require.NotEqual(t, id1, id3)
}

func TestResizePreservesContent(t *testing.T) {
	g := NewGrid(5, 2, 0)
	g.WriteRow(0, 1, []Cell{PackCell('x', 0)})
	g.Resize(10, 3)

	cols, rows := g.Dims()
	require.Equal(t, 10, cols)
	require.Equal(t, 3, rows)

	buf := make([]Cell, 10)
	require.True(t, g.SnapshotRow(0, buf))
	require.Equal(t, 'x', buf[0].Rune())
}

func cellsToString(cells []Cell) string {
	out := make([]rune, len(cells))
	for i, c := range cells {
		out[i] = c.Rune()
	}
	return string(out)
}
