package client

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CitroenGames/garden-framework-sub000/internal/netcore/proto"
	"github.com/CitroenGames/garden-framework-sub000/internal/netcore/transport"
)

type pipeConn struct {
	out chan []byte
	in  chan []byte
}

func newPipe() (a, b *pipeConn) {
	ab := make(chan []byte, 16)
	ba := make(chan []byte, 16)
	return &pipeConn{out: ab, in: ba}, &pipeConn{out: ba, in: ab}
}

func (c *pipeConn) ReadMessage() ([]byte, error) {
	data, ok := <-c.in
	if !ok {
		return nil, errPipeClosed
	}
	return data, nil
}

func (c *pipeConn) WriteMessage(data []byte) error {
	c.out <- data
	return nil
}

func (c *pipeConn) Close() error { return nil }

type pipeClosedError string

func (e pipeClosedError) Error() string { return string(e) }

const errPipeClosed = pipeClosedError("pipe closed")

type fakeWorld struct {
	mu        sync.Mutex
	spawned   map[uint32][3]float32
	updated   map[uint32]proto.EntityUpdate
	despawns  int
	clearAlls int
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{spawned: make(map[uint32][3]float32), updated: make(map[uint32]proto.EntityUpdate)}
}

func (w *fakeWorld) SpawnEntity(networkID uint32, owner uint16, pos [3]float32, yaw float32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.spawned[networkID] = pos
}

func (w *fakeWorld) DespawnEntity(networkID uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.spawned, networkID)
	w.despawns++
}

func (w *fakeWorld) ApplyUpdate(update proto.EntityUpdate) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.updated[update.NetworkID] = update
}

func (w *fakeWorld) ClearAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.spawned = make(map[uint32][3]float32)
	w.updated = make(map[uint32]proto.EntityUpdate)
	w.clearAlls++
}

func TestConnectSucceedsOnAccept(t *testing.T) {
	serverSide, clientSide := newPipe()
	world := newFakeWorld()
	c := NewClient(transport.NewChannel(clientSide, nil), world, nil)

	done := make(chan error, 1)
	go func() { done <- c.Connect("alice") }()

	req := <-serverSide.out
	typ, ok := proto.PeekType(req)
	require.True(t, ok)
	assert.Equal(t, proto.ConnectRequest, typ)

	accept := proto.ConnectAcceptMsg{ClientID: 7, ServerTick: 42}
	serverSide.WriteMessage(accept.Encode())

	require.NoError(t, <-done)
	assert.Equal(t, Connected, c.State())
}

func TestConnectFailsOnReject(t *testing.T) {
	serverSide, clientSide := newPipe()
	world := newFakeWorld()
	c := NewClient(transport.NewChannel(clientSide, nil), world, nil)

	done := make(chan error, 1)
	go func() { done <- c.Connect("bob") }()

	<-serverSide.out
	reject := proto.ConnectRejectMsg{Reason: "server full"}
	serverSide.WriteMessage(reject.Encode())

	err := <-done
	assert.Error(t, err)
	assert.Equal(t, Disconnected, c.State())
}

func TestConnectTimesOut(t *testing.T) {
	t.Parallel()
	_, clientSide := newPipe()
	world := newFakeWorld()
	c := NewClient(transport.NewChannel(clientSide, nil), world, nil)

	done := make(chan error, 1)
	go func() { done <- c.Connect("nobody") }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("connect did not time out as expected")
	}
}

func TestQueueInputThenFlushSendsLatestOnly(t *testing.T) {
	serverSide, clientSide := newPipe()
	world := newFakeWorld()
	c := NewClient(transport.NewChannel(clientSide, nil), world, nil)

	c.QueueInput(proto.ButtonForward, 0.1, 0, 1, 0)
	c.QueueInput(proto.ButtonForward, 0.2, 0, 1, 0)
	require.NoError(t, c.FlushInput())

	data := <-serverSide.out
	typ, ok := proto.PeekType(data)
	require.True(t, ok)
	assert.Equal(t, proto.InputCommand, typ)

	cmd := proto.DecodeInputCommand(proto.BodyReader(data))
	assert.Equal(t, float32(0.2), cmd.Yaw)

	// No pending input left: a second flush sends nothing.
	require.NoError(t, c.FlushInput())
	select {
	case <-serverSide.out:
		t.Fatal("expected no second input frame")
	default:
	}
}

func TestHandleSpawnPlayerTracksLocalPlayer(t *testing.T) {
	_, clientSide := newPipe()
	world := newFakeWorld()
	c := NewClient(transport.NewChannel(clientSide, nil), world, nil)
	c.clientID = 3

	spawn := proto.SpawnPlayerMsg{ClientID: 3, NetworkID: 9, X: 1, Y: 2, Z: 3, Yaw: 0.5}
	c.HandleMessage(spawn.Encode(), 0)

	assert.Equal(t, uint32(9), c.LocalPlayerNetworkID())
	world.mu.Lock()
	pos, ok := world.spawned[9]
	world.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, [3]float32{1, 2, 3}, pos)
}

func TestHandleWorldStateUpdateAppliesDeltas(t *testing.T) {
	_, clientSide := newPipe()
	world := newFakeWorld()
	c := NewClient(transport.NewChannel(clientSide, nil), world, nil)

	update := proto.WorldStateUpdateMsg{
		ServerTick: 10,
		Entities: []proto.EntityUpdate{
			{NetworkID: 1, Flags: proto.FlagTransform, PosX: 5},
			{NetworkID: 2, Flags: proto.FlagDeleted},
		},
	}
	c.HandleMessage(update.Encode(), 0)

	world.mu.Lock()
	_, sawUpdate := world.updated[1]
	despawns := world.despawns
	world.mu.Unlock()
	assert.True(t, sawUpdate)
	assert.Equal(t, 1, despawns)
}

func TestHandlePongComputesRTT(t *testing.T) {
	_, clientSide := newPipe()
	world := newFakeWorld()
	c := NewClient(transport.NewChannel(clientSide, nil), world, nil)

	pong := proto.PongMsg{Timestamp: 1000}
	c.HandleMessage(pong.Encode(), 1050)

	assert.InDelta(t, 50, c.Stats().PingMS, 0.001)
}

func TestHandleDespawnClearsLocalPlayer(t *testing.T) {
	_, clientSide := newPipe()
	world := newFakeWorld()
	c := NewClient(transport.NewChannel(clientSide, nil), world, nil)
	c.localPlayerID = 9

	despawn := proto.DespawnPlayerMsg{ClientID: 3, NetworkID: 9}
	c.HandleMessage(despawn.Encode(), 0)

	assert.Equal(t, uint32(0), c.LocalPlayerNetworkID())
}

func TestHandleMessageDropsTruncatedMessage(t *testing.T) {
	_, clientSide := newPipe()
	world := newFakeWorld()
	c := NewClient(transport.NewChannel(clientSide, nil), world, nil)

	truncated := []byte{byte(proto.WorldStateUpdate)}
	c.HandleMessage(truncated, 0)
	assert.Equal(t, uint64(1), c.DroppedPackets())
}

func TestHandleMessageDropsUnknownType(t *testing.T) {
	_, clientSide := newPipe()
	world := newFakeWorld()
	c := NewClient(transport.NewChannel(clientSide, nil), world, nil)

	c.HandleMessage([]byte{0xFF}, 0)
	assert.Equal(t, uint64(1), c.DroppedPackets())
}

func TestDisconnectSendsReasonAndClosesChannel(t *testing.T) {
	serverSide, clientSide := newPipe()
	world := newFakeWorld()
	c := NewClient(transport.NewChannel(clientSide, nil), world, nil)
	c.setState(Connected)

	var hookCalls int
	c.OnDisconnected = func() { hookCalls++ }

	require.NoError(t, c.Disconnect("leaving"))
	assert.Equal(t, Disconnected, c.State())
	assert.Equal(t, 1, world.clearAlls)
	assert.Equal(t, 1, hookCalls)

	data := <-serverSide.out
	typ, ok := proto.PeekType(data)
	require.True(t, ok)
	assert.Equal(t, proto.Disconnect, typ)
}

func TestRemoteDisconnectClearsWorldAndFiresHook(t *testing.T) {
	_, clientSide := newPipe()
	world := newFakeWorld()
	c := NewClient(transport.NewChannel(clientSide, nil), world, nil)
	c.setState(Connected)
	c.clientID = 7
	c.localPlayerID = 42

	var hookCalls int
	c.OnDisconnected = func() { hookCalls++ }

	c.handleRemoteDisconnect()

	assert.Equal(t, Disconnected, c.State())
	assert.Equal(t, 1, world.clearAlls)
	assert.Equal(t, 1, hookCalls)
	assert.Equal(t, uint16(0), c.clientID)
	assert.Equal(t, uint32(0), c.localPlayerID)
}
