package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/beachshare/beach/pkg/cache"
	"github.com/beachshare/beach/pkg/replica"
)

// renderer paints a replica's visible viewport rows to an ANSI terminal.
// Grounded on original_source's grid_renderer.rs, which redraws the whole
// viewport per frame rather than diffing cell-by-cell on the client side
// (the wire protocol's own Delta/Snapshot framing already minimizes what
// reaches the client, so a full-viewport repaint here is cheap).
type renderer struct {
	out  *bufio.Writer
	cols int
	rows int
}

func newRenderer(w io.Writer, cols, rows int) *renderer {
	return &renderer{out: bufio.NewWriter(w), cols: cols, rows: rows}
}

func (r *renderer) resize(cols, rows int) {
	r.cols = cols
	r.rows = rows
}

// draw repaints every visible row from the replica's current scroll
// position, overlaying any pending predictions.
func (r *renderer) draw(rep *replica.Replica) {
	fmt.Fprint(r.out, "\x1b[H\x1b[2J")
	top, rows, cols := rep.Viewport()
	for i := 0; i < rows; i++ {
		row := top + cache.Row(i)
		cells, state := rep.RowCells(row)
		for col := 0; col < cols; col++ {
			ch, predicted := rep.PredictedCell(row, col)
			if !predicted {
				if state == replica.SlotLoaded && col < len(cells) {
					ch = cells[col].Rune()
				} else {
					ch = ' '
				}
			}
			if ch == 0 {
				ch = ' '
			}
			r.out.WriteRune(ch)
		}
		r.out.WriteString("\r\n")
	}
	r.out.Flush()
}
