// Package client implements the replication core's client side:
// connection state machine, rate-limited input upload, world
// reconstruction from server snapshots, and RTT measurement.
package client

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/CitroenGames/garden-framework-sub000/errors"
	"github.com/CitroenGames/garden-framework-sub000/internal/netcore/proto"
	"github.com/CitroenGames/garden-framework-sub000/internal/netcore/transport"
)

// State is the client's connection lifecycle stage.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

const connectTimeout = 5 * time.Second
const inputInterval = time.Second / 60
const pingInterval = time.Second

// World is the host-provided hook the Client drives as it reconstructs
// the world from server updates, mirroring server.World's split of
// protocol handling (this package) from gameplay storage (the host).
type World interface {
	// SpawnEntity creates a local entity bound to networkID, owned by
	// ownerClient, at the given position/yaw.
	SpawnEntity(networkID uint32, ownerClient uint16, pos [3]float32, yaw float32)
	// DespawnEntity destroys the local entity bound to networkID.
	DespawnEntity(networkID uint32)
	// ApplyUpdate writes replicated fields onto the entity bound to
	// networkID, creating it first if it doesn't exist locally yet.
	ApplyUpdate(update proto.EntityUpdate)
	// ClearAll destroys every networked entity and clears all
	// network-id mappings. Called on transport teardown.
	ClearAll()
}

// Stats tracks client-observed connection metrics.
type Stats struct {
	PingMS float64
}

// Client drives one connection to a replication server.
type Client struct {
	ch    *transport.Channel
	world World
	log   *zap.SugaredLogger

	mu            sync.Mutex
	state         State
	clientID      uint16
	localPlayerID uint32
	lastServerTick uint32
	stats         Stats

	pendingMu sync.Mutex
	pending   *proto.InputCommandMsg

	clientTick uint32
	stopCh     chan struct{}
	stopOnce   sync.Once

	// OnDisconnected fires once from teardown, after the world has been
	// cleared and identity fields reset, for both a self-initiated
	// Disconnect and a remote/transport-level disconnect.
	OnDisconnected func()

	// droppedPackets counts inbound messages discarded because of an
	// unrecognized type tag or a bit reader overread.
	droppedPackets atomic.Uint64
}

// NewClient constructs a Client bound to an established transport
// channel and a host World implementation.
func NewClient(ch *transport.Channel, world World, log *zap.SugaredLogger) *Client {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Client{ch: ch, world: world, log: log, stopCh: make(chan struct{})}
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Connect sends CONNECT_REQUEST and waits up to connectTimeout for
// CONNECT_ACCEPT, returning to Disconnected on timeout or reject.
func (c *Client) Connect(playerName string) error {
	c.setState(Connecting)

	req := proto.ConnectRequestMsg{ProtocolVersion: proto.ProtocolVersion, PlayerName: playerName}
	if err := c.ch.Send(req.Encode(), true); err != nil {
		c.setState(Disconnected)
		return err
	}
	c.ch.Flush()

	result := make(chan error, 1)
	go func() {
		data, err := c.ch.Receive()
		if err != nil {
			result <- err
			return
		}
		typ, ok := proto.PeekType(data)
		if !ok {
			result <- errUnexpectedResponse
			return
		}
		body := proto.BodyReader(data)
		switch typ {
		case proto.ConnectAccept:
			accept := proto.DecodeConnectAccept(body)
			if body.Err() {
				c.droppedPackets.Add(1)
				result <- errUnexpectedResponse
				return
			}
			c.mu.Lock()
			c.clientID = accept.ClientID
			c.lastServerTick = accept.ServerTick
			c.mu.Unlock()
			c.setState(Connected)
			result <- nil
		case proto.ConnectReject:
			reject := proto.DecodeConnectReject(body)
			if body.Err() {
				c.droppedPackets.Add(1)
				result <- errUnexpectedResponse
				return
			}
			c.setState(Disconnected)
			result <- errors.Newf("connect rejected: %s", reject.Reason)
		default:
			c.droppedPackets.Add(1)
			result <- errUnexpectedResponse
		}
	}()

	select {
	case err := <-result:
		return err
	case <-time.After(connectTimeout):
		c.setState(Disconnected)
		return errConnectTimeout
	}
}

// QueueInput buffers the most recent input sample for the next
// upload tick. Only the latest sample is ever sent — no queuing.
func (c *Client) QueueInput(buttons byte, yaw, pitch, moveForward, moveRight float32) {
	c.mu.Lock()
	c.clientTick++
	tick := c.clientTick
	ack := c.lastServerTick
	c.mu.Unlock()

	cmd := proto.InputCommandMsg{
		ClientTick: tick, AckServerTick: ack, Buttons: buttons,
		Yaw: yaw, Pitch: pitch, MoveForward: moveForward, MoveRight: moveRight,
	}
	c.pendingMu.Lock()
	c.pending = &cmd
	c.pendingMu.Unlock()
}

// FlushInput sends the pending input sample, if any, and clears it.
// Callers invoke this once per inputInterval tick.
func (c *Client) FlushInput() error {
	c.pendingMu.Lock()
	cmd := c.pending
	c.pending = nil
	c.pendingMu.Unlock()

	if cmd == nil {
		return nil
	}
	if err := c.ch.Send(cmd.Encode(), false); err != nil {
		return err
	}
	return c.ch.Flush()
}

// SendPing emits a PING carrying now, for RTT measurement on the matching PONG.
func (c *Client) SendPing(now uint32) error {
	ping := proto.PingMsg{Timestamp: now}
	if err := c.ch.Send(ping.Encode(), true); err != nil {
		return err
	}
	return c.ch.Flush()
}

// Run drives the input-upload and ping tickers and the inbound message
// pump until Stop is called or the channel closes. clockMS reports the
// caller's monotonic clock in milliseconds, used to stamp pings.
func (c *Client) Run(clockMS func() uint32) {
	inputTicker := time.NewTicker(inputInterval)
	pingTicker := time.NewTicker(pingInterval)
	defer inputTicker.Stop()
	defer pingTicker.Stop()

	recvErr := make(chan struct{})
	go func() {
		defer close(recvErr)
		for {
			data, err := c.ch.Receive()
			if err != nil {
				return
			}
			c.HandleMessage(data, clockMS())
		}
	}()

	for {
		select {
		case <-c.stopCh:
			return
		case <-recvErr:
			c.teardown()
			return
		case <-inputTicker.C:
			if c.State() == Connected {
				c.FlushInput()
			}
		case <-pingTicker.C:
			if c.State() == Connected {
				c.SendPing(clockMS())
			}
		}
	}
}

// Stop ends a running Run loop without sending a DISCONNECT; callers
// that want a clean handshake should call Disconnect instead.
func (c *Client) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

// HandleMessage dispatches one decoded inbound message. A message with
// an unrecognized type tag or that overreads its bit reader is
// silently dropped and counted, never applied.
func (c *Client) HandleMessage(data []byte, nowMS uint32) {
	typ, ok := proto.PeekType(data)
	if !ok {
		c.droppedPackets.Add(1)
		return
	}
	body := proto.BodyReader(data)

	switch typ {
	case proto.WorldStateUpdate:
		msg := proto.DecodeWorldStateUpdate(body)
		if body.Err() {
			c.droppedPackets.Add(1)
			return
		}
		c.applyWorldUpdate(msg)
	case proto.SpawnPlayer:
		msg := proto.DecodeSpawnPlayer(body)
		if body.Err() {
			c.droppedPackets.Add(1)
			return
		}
		c.applySpawn(msg)
	case proto.DespawnPlayer:
		msg := proto.DecodeDespawnPlayer(body)
		if body.Err() {
			c.droppedPackets.Add(1)
			return
		}
		c.world.DespawnEntity(msg.NetworkID)
		c.mu.Lock()
		if c.localPlayerID == msg.NetworkID {
			c.localPlayerID = 0
		}
		c.mu.Unlock()
	case proto.Pong:
		pong := proto.DecodePong(body)
		if body.Err() {
			c.droppedPackets.Add(1)
			return
		}
		rtt := float64(nowMS) - float64(pong.Timestamp)
		if rtt < 0 {
			rtt = 0
		}
		c.mu.Lock()
		c.stats.PingMS = rtt
		c.mu.Unlock()
	case proto.Disconnect:
		c.handleRemoteDisconnect()
	default:
		c.droppedPackets.Add(1)
	}
}

// DroppedPackets returns the number of inbound messages discarded due
// to an unrecognized type tag or a bit reader overread.
func (c *Client) DroppedPackets() uint64 { return c.droppedPackets.Load() }

func (c *Client) applyWorldUpdate(msg proto.WorldStateUpdateMsg) {
	c.mu.Lock()
	c.lastServerTick = msg.ServerTick
	c.mu.Unlock()

	for _, e := range msg.Entities {
		if e.Flags&proto.FlagDeleted != 0 {
			c.world.DespawnEntity(e.NetworkID)
			continue
		}
		c.world.ApplyUpdate(e)
	}
}

func (c *Client) applySpawn(msg proto.SpawnPlayerMsg) {
	c.world.SpawnEntity(msg.NetworkID, msg.ClientID, [3]float32{msg.X, msg.Y, msg.Z}, msg.Yaw)
	c.mu.Lock()
	if msg.ClientID == c.clientID {
		c.localPlayerID = msg.NetworkID
	}
	c.mu.Unlock()
}

// Stats returns the client's current connection statistics.
func (c *Client) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// LocalPlayerNetworkID returns the network id of this client's own
// player entity, or 0 if not yet spawned.
func (c *Client) LocalPlayerNetworkID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.localPlayerID
}

// Disconnect sends DISCONNECT with reason and tears down the connection.
func (c *Client) Disconnect(reason string) error {
	msg := proto.DisconnectMsg{Reason: reason}
	c.ch.Send(msg.Encode(), true)
	c.ch.Flush()
	c.Stop()
	return c.teardown()
}

func (c *Client) handleRemoteDisconnect() {
	c.Stop()
	c.teardown()
}

// teardown destroys every networked entity, clears all id mappings,
// resets identity fields, and fires OnDisconnected, per spec.md's
// "on transport teardown" contract — shared by both a self-initiated
// Disconnect and a remote/transport-level disconnect.
func (c *Client) teardown() error {
	c.world.ClearAll()

	c.mu.Lock()
	c.state = Disconnected
	c.clientID = 0
	c.localPlayerID = 0
	c.lastServerTick = 0
	c.mu.Unlock()

	err := c.ch.Close()

	if c.OnDisconnected != nil {
		c.OnDisconnected()
	}

	return err
}
