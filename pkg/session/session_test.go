package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Fail(t, "condition not met within timeout")
}

func TestCreateSessionWritesInfoAndStartsProcess(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	sess, err := m.CreateSession(Config{
		Name:    "catsession",
		Command: []string{"/bin/cat"},
	})
	require.NoError(t, err)
	defer sess.Stop()

	require.NotZero(t, sess.Info().Pid)
	require.FileExists(t, filepath.Join(dir, sess.ID, "info.json"))

	data, err := os.ReadFile(filepath.Join(dir, sess.ID, "info.json"))
	require.NoError(t, err)
	require.Contains(t, string(data), sess.ID)
}

func TestSessionWriteFeedsAdapterAndTimeline(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	sess, err := m.CreateSession(Config{Command: []string{"/bin/cat"}, Cols: 20, Rows: 5})
	require.NoError(t, err)
	defer sess.Stop()

	require.NoError(t, sess.Write([]byte("hi\r")))

	waitFor(t, time.Second, func() bool {
		return sess.Timeline.LatestSeq() > 0
	})
}

func TestSessionResizeUpdatesGridDims(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	sess, err := m.CreateSession(Config{Command: []string{"/bin/cat"}, Cols: 20, Rows: 5})
	require.NoError(t, err)
	defer sess.Stop()

	require.NoError(t, sess.Resize(40, 10))
	cols, rows := sess.Grid.Dims()
	require.Equal(t, 40, cols)
	require.Equal(t, 10, rows)
}

func TestManagerListAndRemoveSession(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	sess, err := m.CreateSession(Config{Name: "removeme", Command: []string{"/bin/cat"}})
	require.NoError(t, err)

	list, err := m.ListSessions()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, sess.ID, list[0].ID)

	require.NoError(t, m.RemoveSession(sess.ID))
	require.NoDirExists(t, filepath.Join(dir, sess.ID))

	list, err = m.ListSessions()
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestManagerOutputCallbackReceivesPTYBytes(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	received := make(chan []byte, 8)
	sess, err := m.CreateSession(Config{Command: []string{"/bin/cat"}})
	require.NoError(t, err)
	defer sess.Stop()

	m.RegisterOutputCallback(sess.ID, func(sessionID string, data []byte) {
		received <- data
	})
	require.NoError(t, sess.Write([]byte("ping\r")))

	select {
	case <-received:
	case <-time.After(time.Second):
		require.Fail(t, "expected output callback to fire")
	}

	m.UnregisterOutputCallbacks(sess.ID)
}

func TestSessionUpdateStatusDetectsExit(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	sess, err := m.CreateSession(Config{Command: []string{"/bin/true"}})
	require.NoError(t, err)

	waitFor(t, time.Second, func() bool {
		return sess.Info().Status == string(StatusExited)
	})

	require.NoError(t, sess.UpdateStatus())
	require.Equal(t, string(StatusExited), sess.Info().Status)
}
