// Package emulator implements component C2, the Emulator Adapter: it drives
// a VT parser fed by PTY bytes, mutates the terminal grid (C1), and emits an
// ordered stream of CacheUpdates for the timeline (C3) to retain.
//
// Grounded on amantus-ai-vibetunnel/linux/pkg/terminal/buffer.go's
// handlePrint/handleExecute/handleCsi/handleSGR family, generalized from
// writes against a flat 2D buffer to writes against the absolute-row-id
// cache.Grid, and from "return the whole buffer" snapshotting to "emit one
// CacheUpdate per mutation" streaming.
package emulator

import (
	"github.com/beachshare/beach/pkg/ansiparser"
	"github.com/beachshare/beach/pkg/cache"
)

// Adapter drives a VT parser against a cache.Grid and publishes the
// resulting updates. It is not safe for concurrent Write calls; a session
// owns exactly one goroutine that reads PTY bytes and calls Write.
type Adapter struct {
	grid   *cache.Grid
	parser *ansiparser.Parser
	queue  *updateQueue

	top       cache.Row // absolute id of the viewport's topmost visible row
	cursorRow int       // 0-based offset into the viewport
	cursorCol int

	cursorVisible bool
	cursorBlink   bool
	lastCursorSeq cache.Seq

	currentFg    cache.Color
	currentBg    cache.Color
	currentAttrs cache.Attr

	title string
}

// NewAdapter creates an Adapter bound to grid, driving a fresh parser.
func NewAdapter(grid *cache.Grid) *Adapter {
	a := &Adapter{
		grid:          grid,
		parser:        ansiparser.NewParser(),
		queue:         newUpdateQueue(),
		cursorVisible: true,
	}
	a.parser.OnPrint = a.handlePrint
	a.parser.OnExecute = a.handleExecute
	a.parser.OnCsi = a.handleCsi
	a.parser.OnOsc = a.handleOsc
	a.parser.OnEscape = a.handleEscape
	return a
}

// Write feeds PTY output through the VT parser. Ordering contract: updates
// are emitted in the exact order they are applied to the grid.
func (a *Adapter) Write(data []byte) (int, error) {
	a.parser.Parse(data)
	return len(data), nil
}

// Drain blocks until updates are queued (or the adapter is closed) and
// returns them; the forwarder goroutine uses it to copy emitted updates
// into the timeline (C3).
func (a *Adapter) Drain() []cache.CacheUpdate {
	return a.queue.Drain()
}

// Close unblocks any goroutine waiting in Drain.
func (a *Adapter) Close() {
	a.queue.Close()
}

// Title returns the most recent OSC 0/2 window title, for session
// bookkeeping only — it is never a CacheUpdate.
func (a *Adapter) Title() string {
	return a.title
}

func (a *Adapter) emit(u cache.CacheUpdate) {
	a.queue.Push(u)
}

func (a *Adapter) currentStyleID(seq cache.Seq) cache.StyleID {
	if a.currentFg == cache.DefaultColor && a.currentBg == cache.DefaultColor && a.currentAttrs == 0 {
		return cache.DefaultStyleID
	}
	style := cache.Style{Fg: a.currentFg, Bg: a.currentBg, Attrs: a.currentAttrs}
	id := a.grid.EnsureStyleID(seq, style)
	if id != cache.DefaultStyleID && a.grid.StyleDefinedAt(id) == seq {
		a.emit(cache.NewStyleUpdate(seq, id, style))
	}
	return id
}

func (a *Adapter) absRow(offset int) cache.Row {
	return a.top + cache.Row(offset)
}

func (a *Adapter) handlePrint(r rune) {
	seq := NextSeq()
	_, rows := a.grid.Dims()
	row := a.absRow(a.cursorRow)
	styleID := a.currentStyleID(seq)
	cell := cache.PackCell(r, styleID)
	if a.grid.WriteCellIfNewer(row, a.cursorCol, seq, cell) {
		a.emit(cache.NewCellUpdate(seq, row, a.cursorCol, cell))
	}
	a.cursorCol++
	cols, _ := a.grid.Dims()
	if a.cursorCol >= cols {
		a.cursorCol = 0
		a.lineFeed(rows)
	}
}

// lineFeed advances the cursor to the next row, scrolling the viewport
// (appending a fresh absolute row and emitting a Trim if the ring evicted
// the oldest retained row) when already at the bottom.
func (a *Adapter) lineFeed(rows int) {
	if a.cursorRow < rows-1 {
		a.cursorRow++
		return
	}
	seq := NextSeq()
	_, evicted := a.grid.AppendRow()
	a.top++
	if evicted > 0 {
		a.emit(cache.NewTrimUpdate(seq, a.top-cache.Row(evicted), evicted))
	}
}

func (a *Adapter) handleExecute(b byte) {
	rows := a.gridRows()
	switch b {
	case '\r':
		a.cursorCol = 0
	case '\n':
		a.lineFeed(rows)
	case '\b':
		if a.cursorCol > 0 {
			a.cursorCol--
		}
	case '\t':
		cols := a.gridCols()
		a.cursorCol = ((a.cursorCol / 8) + 1) * 8
		if a.cursorCol >= cols {
			a.cursorCol = cols - 1
		}
	}
}

func (a *Adapter) gridCols() int { c, _ := a.grid.Dims(); return c }
func (a *Adapter) gridRows() int { _, r := a.grid.Dims(); return r }

func (a *Adapter) handleCsi(params []int, intermediate []byte, final byte) {
	switch final {
	case 'A':
		a.moveCursor(0, -param(params, 0, 1))
	case 'B':
		a.moveCursor(0, param(params, 0, 1))
	case 'C':
		a.moveCursor(param(params, 0, 1), 0)
	case 'D':
		a.moveCursor(-param(params, 0, 1), 0)
	case 'H', 'f':
		row := param(params, 0, 1) - 1
		col := 0
		if len(params) > 1 {
			col = params[1] - 1
		}
		a.setCursor(col, row)
	case 'J':
		a.eraseDisplay(param(params, 0, 0))
	case 'K':
		a.eraseLine(param(params, 0, 0))
	case 'm':
		a.handleSGR(params)
	case 'h', 'l':
		if len(intermediate) == 1 && intermediate[0] == '?' {
			a.handlePrivateMode(params, final == 'h')
		}
	}
}

func param(params []int, idx, def int) int {
	if idx < len(params) && params[idx] > 0 {
		return params[idx]
	}
	return def
}

func (a *Adapter) moveCursor(dCol, dRow int) {
	rows := a.gridRows()
	cols := a.gridCols()
	newCol := clamp(a.cursorCol+dCol, 0, cols-1)
	newRow := clamp(a.cursorRow+dRow, 0, rows-1)
	if newCol != a.cursorCol || newRow != a.cursorRow {
		a.cursorCol, a.cursorRow = newCol, newRow
		a.emitCursor()
	}
}

func (a *Adapter) setCursor(col, row int) {
	rows := a.gridRows()
	cols := a.gridCols()
	col = clamp(col, 0, cols-1)
	row = clamp(row, 0, rows-1)
	if col != a.cursorCol || row != a.cursorRow {
		a.cursorCol, a.cursorRow = col, row
		a.emitCursor()
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (a *Adapter) emitCursor() {
	seq := NextSeq()
	cs := cache.CursorState{
		Row:     int(a.absRow(a.cursorRow)),
		Col:     a.cursorCol,
		Visible: a.cursorVisible,
		Blink:   a.cursorBlink,
	}
	a.lastCursorSeq = seq
	a.emit(cache.NewCursorUpdate(seq, cs))
}

func (a *Adapter) handlePrivateMode(params []int, set bool) {
	for _, p := range params {
		if p == 25 { // DECTCEM cursor visibility
			a.cursorVisible = set
			a.emitCursor()
		}
	}
}

func (a *Adapter) eraseDisplay(mode int) {
	seq := NextSeq()
	rows := a.gridRows()
	cols := a.gridCols()
	switch mode {
	case 0:
		a.grid.FillRect(a.absRow(a.cursorRow), a.absRow(a.cursorRow)+1, a.cursorCol, cols, seq, cache.BlankCell)
		a.emit(cache.NewRectUpdate(seq, a.absRow(a.cursorRow), a.absRow(a.cursorRow)+1, a.cursorCol, cols, cache.BlankCell))
		if a.cursorRow+1 < rows {
			a.grid.FillRect(a.absRow(a.cursorRow+1), a.absRow(rows), 0, cols, seq, cache.BlankCell)
			a.emit(cache.NewRectUpdate(seq, a.absRow(a.cursorRow+1), a.absRow(rows), 0, cols, cache.BlankCell))
		}
	case 1:
		a.grid.FillRect(a.top, a.absRow(a.cursorRow)+1, 0, cols, seq, cache.BlankCell)
		a.emit(cache.NewRectUpdate(seq, a.top, a.absRow(a.cursorRow)+1, 0, cols, cache.BlankCell))
	case 2, 3:
		a.grid.FillRect(a.top, a.absRow(rows), 0, cols, seq, cache.BlankCell)
		a.emit(cache.NewRectUpdate(seq, a.top, a.absRow(rows), 0, cols, cache.BlankCell))
	}
}

func (a *Adapter) eraseLine(mode int) {
	seq := NextSeq()
	cols := a.gridCols()
	row := a.absRow(a.cursorRow)
	var colStart, colEnd int
	switch mode {
	case 0:
		colStart, colEnd = a.cursorCol, cols
	case 1:
		colStart, colEnd = 0, a.cursorCol+1
	default:
		colStart, colEnd = 0, cols
	}
	a.grid.FillRect(row, row+1, colStart, colEnd, seq, cache.BlankCell)
	a.emit(cache.NewRectUpdate(seq, row, row+1, colStart, colEnd, cache.BlankCell))
}

func (a *Adapter) handleSGR(params []int) {
	if len(params) == 0 {
		params = []int{0}
	}
	for i := 0; i < len(params); i++ {
		switch p := params[i]; {
		case p == 0:
			a.currentFg, a.currentBg, a.currentAttrs = cache.DefaultColor, cache.DefaultColor, 0
		case p == 1:
			a.currentAttrs |= cache.AttrBold
		case p == 3:
			a.currentAttrs |= cache.AttrItalic
		case p == 4:
			a.currentAttrs |= cache.AttrUnderline
		case p == 5:
			a.currentAttrs |= cache.AttrBlink
		case p == 7:
			a.currentAttrs |= cache.AttrReverse
		case p == 8:
			a.currentAttrs |= cache.AttrHidden
		case p == 9:
			a.currentAttrs |= cache.AttrStrikethrough
		case p == 2:
			a.currentAttrs |= cache.AttrDim
		case p == 22:
			a.currentAttrs &^= cache.AttrBold | cache.AttrDim
		case p == 23:
			a.currentAttrs &^= cache.AttrItalic
		case p == 24:
			a.currentAttrs &^= cache.AttrUnderline
		case p == 25:
			a.currentAttrs &^= cache.AttrBlink
		case p == 27:
			a.currentAttrs &^= cache.AttrReverse
		case p == 28:
			a.currentAttrs &^= cache.AttrHidden
		case p == 29:
			a.currentAttrs &^= cache.AttrStrikethrough
		case p == 39:
			a.currentFg = cache.DefaultColor
		case p == 49:
			a.currentBg = cache.DefaultColor
		case p >= 30 && p <= 37:
			a.currentFg = cache.NewColor(cache.ColorIndexed256, uint32(p-30))
		case p >= 40 && p <= 47:
			a.currentBg = cache.NewColor(cache.ColorIndexed256, uint32(p-40))
		case p >= 90 && p <= 97:
			a.currentFg = cache.NewColor(cache.ColorIndexed256, uint32(p-90+8))
		case p >= 100 && p <= 107:
			a.currentBg = cache.NewColor(cache.ColorIndexed256, uint32(p-100+8))
		case p == 38:
			if i+2 < len(params) && params[i+1] == 5 {
				a.currentFg = cache.NewColor(cache.ColorIndexed256, uint32(params[i+2]))
				i += 2
			} else if i+4 < len(params) && params[i+1] == 2 {
				rgb := uint32(params[i+2])<<16 | uint32(params[i+3])<<8 | uint32(params[i+4])
				a.currentFg = cache.NewColor(cache.ColorTrueColor, rgb)
				i += 4
			}
		case p == 48:
			if i+2 < len(params) && params[i+1] == 5 {
				a.currentBg = cache.NewColor(cache.ColorIndexed256, uint32(params[i+2]))
				i += 2
			} else if i+4 < len(params) && params[i+1] == 2 {
				rgb := uint32(params[i+2])<<16 | uint32(params[i+3])<<8 | uint32(params[i+4])
				a.currentBg = cache.NewColor(cache.ColorTrueColor, rgb)
				i += 4
			}
		}
	}
}

func (a *Adapter) handleOsc(params [][]byte) {
	if len(params) < 2 {
		return
	}
	switch string(params[0]) {
	case "0", "2":
		a.title = string(params[1])
	}
}

func (a *Adapter) handleEscape(intermediate []byte, final byte) {
	// Covers ESC D (index)/ESC M (reverse index) minimally: treated as
	// line feed/cursor-up without carriage return, matching common VT
	// behavior for programs that rely on them for scrolling regions.
	switch final {
	case 'D':
		a.lineFeed(a.gridRows())
	case 'M':
		a.moveCursor(0, -1)
	}
}

// Resize applies a viewport resize: the grid is resized in place and the
// cursor is clamped to stay in bounds, per spec §4.6.6 (the Grid frame and
// fresh snapshot sequence this triggers on the wire are the synchronizer's
// responsibility, not the adapter's).
func (a *Adapter) Resize(cols, rows int) {
	a.grid.Resize(cols, rows)
	if a.cursorCol >= cols {
		a.cursorCol = cols - 1
	}
	if a.cursorRow >= rows {
		a.cursorRow = rows - 1
	}
}
