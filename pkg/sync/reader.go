package sync

import (
	"context"
	"errors"
	"time"

	"github.com/beachshare/beach/pkg/transport"
	"github.com/beachshare/beach/pkg/wire"
)

// Hooks a subscription's owner (typically pkg/session) wires up to react to
// client frames that don't belong to the synchronizer itself.
type Hooks struct {
	OnInput           func(seq uint64, data []byte)
	OnResize          func(cols, rows uint32)
	OnViewportCommand func(kind uint8, payload []byte)
}

// Run drives a subscription end to end: the delta loop (which performs the
// initial handshake), the client-frame reader, the backfill scheduler, and
// the heartbeat ticker, each in its own goroutine. Returns the first error
// from any of them and cancels the others via ctx.
func (s *Subscription) Run(ctx context.Context, hooks Hooks) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	const numWorkers = 4
	errCh := make(chan error, numWorkers)
	go func() { errCh <- s.RunDeltaLoop(ctx) }()
	go func() { errCh <- s.RunReader(ctx, hooks) }()
	go func() { errCh <- s.backfill.Run(ctx) }()
	go func() { errCh <- s.RunHeartbeatLoop(ctx) }()

	err := <-errCh
	cancel()
	for i := 1; i < numWorkers; i++ {
		<-errCh
	}
	return err
}

// RunReader pulls client frames off the transport and dispatches them:
// RequestBackfill goes to this subscription's backfill scheduler, the rest
// go to Hooks. Runs until ctx is cancelled or the transport closes.
func (s *Subscription) RunReader(ctx context.Context, hooks Hooks) error {
	const pollInterval = 100 * time.Millisecond
	done := ctx.Done()
	for {
		select {
		case <-done:
			return ctx.Err()
		default:
		}

		buf, err := s.Transport.Recv(pollInterval)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				continue
			}
			return err
		}

		frame, err := wire.DecodeClientFrame(buf)
		if err != nil {
			// ProtocolDecode (spec §7): skip a single malformed frame,
			// without logging it, rather than tearing down the
			// subscription.
			continue
		}

		switch f := frame.(type) {
		case wire.InputFrame:
			if hooks.OnInput != nil {
				hooks.OnInput(f.Seq, f.Data)
			}
			// Ack once applied so the client can release its predictive
			// echo for this input (spec §4.6.3, scenario S3).
			if err := s.send(wire.InputAckFrame{Subscription: s.ID, Seq: f.Seq}); err != nil {
				return err
			}
		case wire.ResizeFrame:
			if hooks.OnResize != nil {
				hooks.OnResize(f.Cols, f.Rows)
			}
		case wire.RequestBackfillFrame:
			s.backfill.Enqueue(f)
		case wire.ViewportCommandFrame:
			if hooks.OnViewportCommand != nil {
				hooks.OnViewportCommand(f.Kind, f.Payload)
			}
		}
	}
}
