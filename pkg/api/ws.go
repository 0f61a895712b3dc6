package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/beachshare/beach/pkg/sync"
	"github.com/beachshare/beach/pkg/transport"
)

// upgrader permits cross-origin upgrades: a beach host is reached over a
// tunnel (ngrok) or LAN address the browser's origin rarely matches, the
// same tradeoff the teacher's raw_websocket.go makes.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebSocket upgrades the connection and hands it to the termsocket
// bridge as a fresh subscription against the named session's grid and
// timeline.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sess, err := s.sessions.GetSession(id)
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("websocket upgrade failed", "session", id, "error", err)
		return
	}
	t := transport.NewWSTransport(conn)

	cfg := s.syncConfig()
	hooks := sync.Hooks{
		OnInput: func(_ uint64, data []byte) {
			if err := sess.Write(data); err != nil {
				s.log.Debugw("input write failed", "session", id, "error", err)
			}
		},
		OnResize: func(cols, rows uint32) {
			if s.sessions.GetDoNotAllowColumnSet() {
				return
			}
			if err := sess.Resize(int(cols), int(rows)); err != nil {
				s.log.Debugw("resize failed", "session", id, "error", err)
			}
		},
	}

	if _, err := s.bridge.Attach(r.Context(), id, t, cfg, hooks); err != nil {
		s.log.Warnw("subscription attach failed", "session", id, "error", err)
		_ = t.Close()
	}
}
