package wire

// Chunk is one slice of a logical Snapshot/Delta/HistoryBackfill batch,
// sized to fit a single host frame.
type Chunk struct {
	Updates []Update
	HasMore bool
}

// ChunkUpdates splits updates into frame-sized chunks per the §4.5
// algorithm: first, any Row too wide to fit a frame on its own is
// fragmented into RowSeg pieces (expandOversizedRows); then chunking
// speculatively grows a chunk, backs off by one update when it would
// exceed MaxTransportFrameBytes (unless that leaves the chunk empty, in
// which case the oversized update is emitted alone — this fallback is now
// only reachable for non-Row kinds, which have no fragment form), and caps
// every chunk at MaxUpdatesPerFrame. headerOverhead is the caller's fixed
// frame header size (subscription id, watermark, lane byte, etc. —
// everything in the frame besides the `n` count and the Update array
// itself), included in the budget check so the true wire size never
// exceeds the limit. outerHasMore is ORed into the final chunk's HasMore
// (step 6): a multi-chunk batch always has_more=true until the very last
// chunk, which inherits whatever the caller's own continuation state is.
func ChunkUpdates(updates []Update, headerOverhead int, outerHasMore bool) []Chunk {
	updates = expandOversizedRows(updates, headerOverhead)

	var chunks [][]Update
	var cur []Update
	curBytes := headerOverhead

	i := 0
	for i < len(updates) {
		u := updates[i]
		sz := EncodedSize(u)
		cur = append(cur, u)
		curBytes += sz

		if curBytes > MaxTransportFrameBytes && len(cur) > 1 {
			cur = cur[:len(cur)-1]
			curBytes -= sz
			chunks = append(chunks, cur)
			cur = nil
			curBytes = headerOverhead
			continue // retry u against a fresh chunk
		}

		i++
		if len(cur) >= MaxUpdatesPerFrame {
			chunks = append(chunks, cur)
			cur = nil
			curBytes = headerOverhead
		}
	}
	if len(cur) > 0 || len(chunks) == 0 {
		chunks = append(chunks, cur)
	}

	out := make([]Chunk, len(chunks))
	for idx, c := range chunks {
		out[idx] = Chunk{Updates: c, HasMore: true}
	}
	out[len(out)-1].HasMore = outerHasMore
	return out
}

// rowSegFixedOverhead is the byte cost of a WireUpdateRowSeg's fields besides
// its Cells array: kind + row + start_col + seq + count.
const rowSegFixedOverhead = 1 + 4 + 4 + 8 + 4

// expandOversizedRows replaces any WireUpdateRow whose EncodedSize alone
// would exceed a single frame's usable budget (MaxTransportFrameBytes minus
// the caller's header) with a run of WireUpdateRowSeg fragments, each sized
// to fit, so step 4's "emit the oversized update alone" fallback never has
// to violate the frame limit for a row that is merely very wide (spec §4.5).
// Rows that already fit are passed through untouched.
func expandOversizedRows(updates []Update, headerOverhead int) []Update {
	budget := MaxTransportFrameBytes - headerOverhead
	out := make([]Update, 0, len(updates))
	for _, u := range updates {
		if u.Kind != WireUpdateRow || EncodedSize(u) <= budget {
			out = append(out, u)
			continue
		}
		out = append(out, splitRowIntoSegments(u, budget)...)
	}
	return out
}

// splitRowIntoSegments carves a too-wide Row into consecutive RowSeg
// fragments, each holding as many cells as fit within budget bytes.
func splitRowIntoSegments(u Update, budget int) []Update {
	perCellBudget := budget - rowSegFixedOverhead
	cellsPerSeg := perCellBudget / 8
	if cellsPerSeg < 1 {
		cellsPerSeg = 1
	}

	var segs []Update
	for start := 0; start < len(u.Cells); start += cellsPerSeg {
		end := start + cellsPerSeg
		if end > len(u.Cells) {
			end = len(u.Cells)
		}
		segs = append(segs, Update{
			Kind:     WireUpdateRowSeg,
			Row:      u.Row,
			StartCol: uint32(start),
			Seq:      u.Seq,
			Cells:    u.Cells[start:end],
		})
	}
	return segs
}

// SnapshotHeaderOverhead / DeltaHeaderOverhead / BackfillHeaderOverhead are
// the fixed byte costs of each frame's non-Update fields (tag +
// subscription + the frame's own scalars + the has_cursor byte and, when
// present, the Cursor body), used so ChunkUpdates budgets against the
// actual wire size rather than just the Update array. Exported so
// pkg/sync's handshake/delta/backfill senders can budget their own chunks
// against the real frame size.
func SnapshotHeaderOverhead(hasCursor bool) int {
	n := 1 + 8 + 1 + 8 + 1 + 4 + 1 // tag, sub, lane, watermark, has_more, n, has_cursor
	if hasCursor {
		n += cursorSize
	}
	return n
}

func DeltaHeaderOverhead(hasCursor bool) int {
	n := 1 + 8 + 8 + 1 + 4 + 1 // tag, sub, watermark, has_more, n, has_cursor
	if hasCursor {
		n += cursorSize
	}
	return n
}

func BackfillHeaderOverhead(hasCursor bool) int {
	n := 1 + 8 + 8 + 8 + 4 + 4 + 1 + 1 // tag, sub, request_id, start_row, count, n, more, has_cursor
	if hasCursor {
		n += cursorSize
	}
	return n
}

const cursorSize = 4 + 4 + 8 + 1 + 1
