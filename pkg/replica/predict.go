package replica

import (
	"sync/atomic"

	"github.com/beachshare/beach/pkg/cache"
	"github.com/beachshare/beach/pkg/wire"
)

var localInputSeq uint64

func nextInputSeq() uint64 {
	return atomic.AddUint64(&localInputSeq, 1)
}

// TypeChar implements the printable-byte half of spec §4.6.3: send an
// Input frame with a fresh local seq, then overlay a prediction at the
// current cursor cell so the user sees their keystroke before the host
// echoes it back.
func (r *Replica) TypeChar(ch rune) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq := nextInputSeq()
	row := r.cursorAbsRowLocked()
	col := int(r.Cursor.Col)
	r.predictions[predictionKey{row, col}] = prediction{ch: ch, seq: seq}
	r.Cursor.Col++
	if r.SendInput != nil {
		r.SendInput(wire.InputFrame{Seq: seq, Data: []byte(string(ch))})
	}
}

// Backspace predicts a shift-left of this row's predictions by one column
// (spec §4.6.3).
func (r *Replica) Backspace() {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.cursorAbsRowLocked()
	if r.Cursor.Col == 0 {
		return
	}
	r.Cursor.Col--
	shifted := make(map[predictionKey]prediction, len(r.predictions))
	for k, v := range r.predictions {
		if k.row == row && k.col > int(r.Cursor.Col) {
			shifted[predictionKey{row, k.col - 1}] = v
			continue
		}
		shifted[k] = v
	}
	delete(shifted, predictionKey{row, int(r.Cursor.Col)})
	r.predictions = shifted
	seq := nextInputSeq()
	if r.SendInput != nil {
		r.SendInput(wire.InputFrame{Seq: seq, Data: []byte{0x7f}})
	}
}

// Enter clears all row-local predictions (spec §4.6.3) and sends the
// newline byte.
func (r *Replica) Enter() {
	r.mu.Lock()
	defer r.mu.Unlock()
	row := r.cursorAbsRowLocked()
	for k := range r.predictions {
		if k.row == row {
			delete(r.predictions, k)
		}
	}
	seq := nextInputSeq()
	if r.SendInput != nil {
		r.SendInput(wire.InputFrame{Seq: seq, Data: []byte{'\r'}})
	}
}

// ApplyInputAck releases every prediction whose seq <= acked (spec §4.6.2/
// §4.6.3). It does not check whether the committed row content matches the
// prediction, and it raises no uncertainty flag; a later Cell/Row apply is
// what corrects any mismatch on screen.
func (r *Replica) ApplyInputAck(seq uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, p := range r.predictions {
		if p.seq <= seq {
			delete(r.predictions, k)
		}
	}
}

// PredictedCell returns the predicted character at (row,col), if any, for
// the renderer to overlay atop the Loaded cell.
func (r *Replica) PredictedCell(row cache.Row, col int) (rune, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.predictions[predictionKey{row, col}]
	if !ok {
		return 0, false
	}
	return p.ch, true
}
