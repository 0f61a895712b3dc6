package transport

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/beachshare/beach/pkg/wire"
)

// Keepalive tuning, grounded on the teacher's pkg/api/raw_websocket.go
// (ping/pong deadlines, writer-goroutine-owns-the-conn pattern) but scaled
// to this protocol's own Heartbeat frame cadence rather than vibetunnel's
// terminal-output cadence.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = wire.MaxTransportFrameBytes + 1024
)

// WSTransport adapts a gorilla/websocket connection to the Transport
// interface. A single writer goroutine owns conn.WriteMessage (gorilla
// connections are not safe for concurrent writers); Send hands off to it
// over a channel. A single reader goroutine owns conn.ReadMessage and
// forwards payloads to Recv's caller.
type WSTransport struct {
	conn *websocket.Conn

	sendCh chan []byte
	recvCh chan []byte

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
	mu        sync.Mutex
}

// NewWSTransport wraps an already-upgraded websocket connection and starts
// its reader/writer goroutines.
func NewWSTransport(conn *websocket.Conn) *WSTransport {
	t := &WSTransport{
		conn:   conn,
		sendCh: make(chan []byte, 64),
		recvCh: make(chan []byte, 64),
		done:   make(chan struct{}),
	}
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go t.readLoop()
	go t.writeLoop()
	return t
}

func (t *WSTransport) Send(b []byte) error {
	select {
	case t.sendCh <- b:
		return nil
	case <-t.done:
		return ErrClosed
	}
}

func (t *WSTransport) Recv(timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		select {
		case b, ok := <-t.recvCh:
			if !ok {
				return nil, t.closedErr()
			}
			return b, nil
		case <-t.done:
			return nil, t.closedErr()
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case b, ok := <-t.recvCh:
		if !ok {
			return nil, t.closedErr()
		}
		return b, nil
	case <-t.done:
		return nil, t.closedErr()
	case <-timer.C:
		return nil, ErrTimeout
	}
}

func (t *WSTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.done)
		_ = t.conn.Close()
	})
	return nil
}

func (t *WSTransport) closedErr() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closeErr != nil {
		return t.closeErr
	}
	return ErrClosed
}

func (t *WSTransport) failWith(err error) {
	t.mu.Lock()
	if t.closeErr == nil {
		t.closeErr = err
	}
	t.mu.Unlock()
	_ = t.Close()
}

func (t *WSTransport) readLoop() {
	defer close(t.recvCh)
	for {
		_, data, err := t.conn.ReadMessage()
		if err != nil {
			t.failWith(err)
			return
		}
		select {
		case t.recvCh <- data:
		case <-t.done:
			return
		}
	}
}

func (t *WSTransport) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case b, ok := <-t.sendCh:
			if !ok {
				return
			}
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
				t.failWith(err)
				return
			}
		case <-ticker.C:
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				t.failWith(err)
				return
			}
		case <-t.done:
			return
		}
	}
}
