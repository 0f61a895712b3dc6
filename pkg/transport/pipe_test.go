package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPipeSendRecvRoundTrip(t *testing.T) {
	a, b := NewPipe()
	defer a.Close()
	defer b.Close()

	require.NoError(t, a.Send([]byte("hello")))
	got, err := b.Recv(time.Second)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func TestPipeRecvTimesOutWithNoData(t *testing.T) {
	a, b := NewPipe()
	defer a.Close()
	defer b.Close()

	_, err := b.Recv(10 * time.Millisecond)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestPipeRecvReturnsClosedAfterClose(t *testing.T) {
	a, b := NewPipe()
	defer a.Close()

	require.NoError(t, b.Close())
	_, err := b.Recv(time.Second)
	require.ErrorIs(t, err, ErrClosed)
}

func TestPipeSendAfterCloseReturnsClosed(t *testing.T) {
	a, b := NewPipe()
	defer b.Close()

	require.NoError(t, a.Close())
	err := a.Send([]byte("x"))
	require.ErrorIs(t, err, ErrClosed)
}
