package termsocket

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/beachshare/beach/pkg/session"
	syncpkg "github.com/beachshare/beach/pkg/sync"
	"github.com/beachshare/beach/pkg/transport"
	"github.com/beachshare/beach/pkg/wire"
)

func TestAttachRunsHandshakeOverAttachedTransport(t *testing.T) {
	sm := session.NewManager(t.TempDir())
	sess, err := sm.CreateSession(session.Config{Command: []string{"/bin/cat"}, Cols: 10, Rows: 4})
	require.NoError(t, err)
	defer sess.Stop()

	bridge := NewManager(sm)
	defer bridge.Shutdown()

	hostSide, clientSide := transport.NewPipe()
	defer clientSide.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subID, err := bridge.Attach(ctx, sess.ID, hostSide, wire.DefaultSyncConfig(), syncpkg.Hooks{})
	require.NoError(t, err)
	require.NotZero(t, subID)

	buf, err := clientSide.Recv(time.Second)
	require.NoError(t, err)
	_, err = wire.DecodeHostFrame(buf)
	require.NoError(t, err, "expected a decodable Hello frame as the first message")

	require.Equal(t, 1, bridge.ActiveSubscriptions(sess.ID))
}

func TestAttachUnknownSessionReturnsError(t *testing.T) {
	sm := session.NewManager(t.TempDir())
	bridge := NewManager(sm)
	defer bridge.Shutdown()

	hostSide, clientSide := transport.NewPipe()
	defer hostSide.Close()
	defer clientSide.Close()

	_, err := bridge.Attach(context.Background(), "does-not-exist", hostSide, wire.DefaultSyncConfig(), syncpkg.Hooks{})
	require.Error(t, err)
}

func TestDetachRemovesSubscription(t *testing.T) {
	sm := session.NewManager(t.TempDir())
	sess, err := sm.CreateSession(session.Config{Command: []string{"/bin/cat"}, Cols: 10, Rows: 4})
	require.NoError(t, err)
	defer sess.Stop()

	bridge := NewManager(sm)
	defer bridge.Shutdown()

	hostSide, clientSide := transport.NewPipe()
	defer clientSide.Close()

	subID, err := bridge.Attach(context.Background(), sess.ID, hostSide, wire.DefaultSyncConfig(), syncpkg.Hooks{})
	require.NoError(t, err)

	bridge.Detach(sess.ID, subID)

	require.Eventually(t, func() bool {
		return bridge.ActiveSubscriptions(sess.ID) == 0
	}, time.Second, 5*time.Millisecond)
}
