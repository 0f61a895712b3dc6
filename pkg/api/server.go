// Package api exposes the host daemon's HTTP surface: session CRUD over
// JSON and the WebSocket endpoint that upgrades a connection into the wire
// protocol's Transport. Grounded on the teacher's pkg/api package (gorilla/
// mux routing, gorilla/websocket upgrades), restructured so the WebSocket
// path hands off to pkg/transport.WSTransport + pkg/termsocket.Manager
// instead of relaying raw PTY bytes as JSON text frames.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/beachshare/beach/pkg/session"
	"github.com/beachshare/beach/pkg/termsocket"
	"github.com/beachshare/beach/pkg/wire"
)

// Server bundles the session registry and subscription bridge behind an
// HTTP router.
type Server struct {
	sessions   *session.Manager
	bridge     *termsocket.Manager
	log        *zap.SugaredLogger
	scrollback int
	wireCfg    wire.SyncConfig
}

// NewServer builds a Server. scrollbackRows sizes every newly-created
// session's cache.Grid; wireCfg is negotiated with every new subscription
// during its Hello handshake.
func NewServer(sessions *session.Manager, bridge *termsocket.Manager, log *zap.SugaredLogger, scrollbackRows int, wireCfg wire.SyncConfig) *Server {
	return &Server{sessions: sessions, bridge: bridge, log: log, scrollback: scrollbackRows, wireCfg: wireCfg}
}

func (s *Server) syncConfig() wire.SyncConfig { return s.wireCfg }

// Router builds the gorilla/mux route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/sessions", s.handleListSessions).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions", s.handleCreateSession).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	r.HandleFunc("/api/sessions/{id}/resize", s.handleResize).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions/{id}/ws", s.handleWebSocket)
	return r
}
