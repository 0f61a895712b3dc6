package main

import (
	"errors"

	"github.com/beachshare/beach/pkg/replica"
	"github.com/beachshare/beach/pkg/transport"
	"github.com/beachshare/beach/pkg/wire"
)

// runFrameLoop decodes host frames off t and applies them to rep,
// repainting the screen whenever a frame changes visible state.
func runFrameLoop(t transport.Transport, rep *replica.Replica, r *renderer, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		default:
		}

		buf, err := t.Recv(0)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				continue
			}
			return
		}

		frame, err := wire.DecodeHostFrame(buf)
		if err != nil {
			continue
		}

		switch f := frame.(type) {
		case wire.HelloFrame:
			rep.ApplyHello(f)
		case wire.GridFrame:
			rep.ApplyGrid(f)
			r.resize(int(f.Cols), rep.ViewportHeight)
		case wire.SnapshotFrame:
			applyUpdatesAndCursor(rep, f.Updates, f.HasCursor, f.Cursor)
			r.draw(rep)
		case wire.SnapshotCompleteFrame:
			rep.MarkSnapshotComplete()
		case wire.DeltaFrame:
			applyUpdatesAndCursor(rep, f.Updates, f.HasCursor, f.Cursor)
			rep.MaybeFollowTail()
			r.draw(rep)
		case wire.HistoryBackfillFrame:
			rep.ApplyHistoryBackfill(f)
			r.draw(rep)
		case wire.CursorFrame:
			rep.ApplyCursor(f.Cursor)
			r.draw(rep)
		case wire.InputAckFrame:
			rep.ApplyInputAck(f.Seq)
			r.draw(rep)
		case wire.HeartbeatFrame:
			rep.ApplyHeartbeat()
		case wire.ShutdownFrame:
			return
		}
	}
}

func applyUpdatesAndCursor(rep *replica.Replica, updates []wire.Update, hasCursor bool, cursor wire.Cursor) {
	for _, u := range updates {
		rep.ApplyUpdate(u)
	}
	if hasCursor {
		rep.ApplyCursor(cursor)
	}
}
