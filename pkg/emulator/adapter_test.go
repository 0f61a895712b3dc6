package emulator

import (
	"testing"

	"github.com/beachshare/beach/pkg/cache"
	"github.com/stretchr/testify/require"
)

func TestPrintWritesCellsInOrder(t *testing.T) {
	grid := cache.NewGrid(10, 3, 0)
	a := NewAdapter(grid)

	_, err := a.Write([]byte("hi"))
	require.NoError(t, err)

	updates := a.Drain()
	require.Len(t, updates, 2)
	require.Equal(t, cache.UpdateCell, updates[0].Kind)
	require.Equal(t, 'h', updates[0].Cell.Rune())
	require.Equal(t, 0, updates[0].Col)
	require.Equal(t, 'i', updates[1].Cell.Rune())
	require.Equal(t, 1, updates[1].Col)

	buf := make([]cache.Cell, 10)
	require.True(t, grid.SnapshotRow(0, buf))
	require.Equal(t, "hi", string([]rune{buf[0].Rune(), buf[1].Rune()}))
}

func TestLineWrapScrollsAndTrims(t *testing.T) {
	grid := cache.NewGrid(3, 2, 2) // capacity 4
	a := NewAdapter(grid)

	// Fill past the bottom several times to force eviction.
	_, _ = a.Write([]byte("abcdefghijkl"))
	_ = a.Drain()

	require.Greater(t, grid.RowOffset(), cache.Row(0))
}

func TestSGRAppliesStyle(t *testing.T) {
	grid := cache.NewGrid(10, 2, 0)
	a := NewAdapter(grid)

	_, _ = a.Write([]byte("\x1b[1;31mX\x1b[0m"))
	updates := a.Drain()

	var styleUpdates, cellUpdates int
	var styleID cache.StyleID
	for _, u := range updates {
		switch u.Kind {
		case cache.UpdateStyle:
			styleUpdates++
			styleID = u.StyleID
		case cache.UpdateCell:
			cellUpdates++
			require.Equal(t, styleID, u.Cell.Style())
		}
	}
	require.Equal(t, 1, styleUpdates)
	require.Equal(t, 1, cellUpdates)
}

func TestCursorPositioning(t *testing.T) {
	grid := cache.NewGrid(10, 5, 0)
	a := NewAdapter(grid)

	_, _ = a.Write([]byte("\x1b[3;4H"))
	updates := a.Drain()
	require.Len(t, updates, 1)
	require.Equal(t, cache.UpdateCursor, updates[0].Kind)
	require.Equal(t, 3, updates[0].Cursor.Col)
	require.Equal(t, 2, updates[0].Cursor.Row)
}

func TestEraseLine(t *testing.T) {
	grid := cache.NewGrid(6, 2, 0)
	a := NewAdapter(grid)
	_, _ = a.Write([]byte("abcde"))
	_ = a.Drain()
	_, _ = a.Write([]byte("\x1b[3D\x1b[K"))
	_ = a.Drain()

	buf := make([]cache.Cell, 6)
	require.True(t, grid.SnapshotRow(0, buf))
	require.Equal(t, "ab    ", cellsStr(buf))
}

func cellsStr(cells []cache.Cell) string {
	r := make([]rune, len(cells))
	for i, c := range cells {
		r[i] = c.Rune()
	}
	return string(r)
}
