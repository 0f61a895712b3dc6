package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/beachshare/beach/pkg/session"
	"github.com/beachshare/beach/pkg/termsocket"
	"github.com/beachshare/beach/pkg/wire"
)

func newTestServer(t *testing.T) (*Server, *session.Manager) {
	t.Helper()
	sm := session.NewManager(t.TempDir())
	bridge := termsocket.NewManager(sm)
	t.Cleanup(bridge.Shutdown)
	return NewServer(sm, bridge, zap.NewNop().Sugar(), 1000, wire.DefaultSyncConfig()), sm
}

func TestCreateAndListSessions(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	body, _ := json.Marshal(createSessionRequest{Name: "test", Command: []string{"/bin/cat"}})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created session.Info
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	defer srv.sessions.RemoveSession(created.ID)

	listReq := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, listReq)
	require.Equal(t, http.StatusOK, listRec.Code)

	var infos []session.Info
	require.NoError(t, json.Unmarshal(listRec.Body.Bytes(), &infos))
	require.Len(t, infos, 1)
	require.Equal(t, created.ID, infos[0].ID)
}

func TestGetMissingSessionReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	router := srv.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResizeRejectsInvalidSize(t *testing.T) {
	srv, sm := newTestServer(t)
	router := srv.Router()

	sess, err := sm.CreateSession(session.Config{Command: []string{"/bin/cat"}})
	require.NoError(t, err)
	defer sess.Stop()

	body, _ := json.Marshal(resizeRequest{Cols: 0, Rows: 0})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sess.ID+"/resize", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResizeAppliesNewDims(t *testing.T) {
	srv, sm := newTestServer(t)
	router := srv.Router()

	sess, err := sm.CreateSession(session.Config{Command: []string{"/bin/cat"}, Cols: 20, Rows: 5})
	require.NoError(t, err)
	defer sess.Stop()

	body, _ := json.Marshal(resizeRequest{Cols: 40, Rows: 10})
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+sess.ID+"/resize", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	cols, rows := sess.Grid.Dims()
	require.Equal(t, 40, cols)
	require.Equal(t, 10, rows)
}

func TestDeleteSessionRemovesIt(t *testing.T) {
	srv, sm := newTestServer(t)
	router := srv.Router()

	sess, err := sm.CreateSession(session.Config{Command: []string{"/bin/cat"}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/"+sess.ID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, err = sm.GetSession(sess.ID)
	require.Error(t, err)
}
