package main

import (
	"io"

	"github.com/beachshare/beach/pkg/replica"
	"github.com/beachshare/beach/pkg/transport"
	"github.com/beachshare/beach/pkg/wire"
)

// runInputLoop reads raw bytes from stdin and turns them into predictive
// replica calls (printable runes, backspace, enter) or a raw passthrough
// Input frame for everything else (escape sequences: arrows, function
// keys), matching spec §4.6.3's "predict printable input, pass through
// the rest" split.
func runInputLoop(t transport.Transport, rep *replica.Replica, in io.Reader, cols, rows int, done <-chan struct{}) {
	buf := make([]byte, 4096)

	for {
		select {
		case <-done:
			return
		default:
		}

		n, err := in.Read(buf)
		if err != nil {
			return
		}
		for i := 0; i < n; i++ {
			b := buf[i]
			switch {
			case b == 0x7f || b == 0x08:
				rep.Backspace()
			case b == '\r' || b == '\n':
				rep.Enter()
			case b == 0x1b:
				// Escape sequence: pass the rest of this read through raw
				// rather than predicting it.
				rest := buf[i:n]
				_ = t.Send(wire.InputFrame{Data: append([]byte(nil), rest...)}.Encode())
				i = n
			case b >= 0x20 && b < 0x7f:
				rep.TypeChar(rune(b))
			default:
				_ = t.Send(wire.InputFrame{Data: []byte{b}}.Encode())
			}
		}
	}
}
