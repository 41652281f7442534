package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memConn is an in-memory Conn test double, avoiding a real socket.
type memConn struct {
	written [][]byte
	closed  bool
}

func (m *memConn) ReadMessage() ([]byte, error) { return nil, nil }
func (m *memConn) WriteMessage(data []byte) error {
	m.written = append(m.written, data)
	return nil
}
func (m *memConn) Close() error {
	m.closed = true
	return nil
}

func TestReliableSendWritesImmediately(t *testing.T) {
	conn := &memConn{}
	ch := NewChannel(conn, nil)

	require.NoError(t, ch.Send([]byte("hello"), true))
	require.Len(t, conn.written, 1)
	assert.Equal(t, []byte("hello"), conn.written[0])
}

func TestUnreliableSendQueuesUntilFlush(t *testing.T) {
	conn := &memConn{}
	ch := NewChannel(conn, nil)

	require.NoError(t, ch.Send([]byte("a"), false))
	require.NoError(t, ch.Send([]byte("b"), false))
	assert.Empty(t, conn.written)

	require.NoError(t, ch.Flush())
	require.Len(t, conn.written, 2)
	assert.Equal(t, []byte("a"), conn.written[0])
	assert.Equal(t, []byte("b"), conn.written[1])
}

func TestUnreliableQueueDropsOldestWhenFull(t *testing.T) {
	conn := &memConn{}
	ch := NewChannel(conn, nil)

	for i := 0; i < unreliableQueueSize+5; i++ {
		require.NoError(t, ch.Send([]byte{byte(i)}, false))
	}

	require.NoError(t, ch.Flush())
	require.Len(t, conn.written, unreliableQueueSize)
	// The oldest 5 frames (0..4) should have been evicted.
	assert.Equal(t, byte(5), conn.written[0][0])
}

func TestCloseIsIdempotent(t *testing.T) {
	conn := &memConn{}
	ch := NewChannel(conn, nil)

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	assert.True(t, conn.closed)
}
