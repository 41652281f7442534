package server

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/CitroenGames/garden-framework-sub000/internal/netcore/proto"
	"github.com/CitroenGames/garden-framework-sub000/internal/netcore/transport"
	"github.com/CitroenGames/garden-framework-sub000/logger"
)

// Config configures a Server at construction time.
type Config struct {
	SimTickHz        float64 // default 60
	SnapshotDivisor  int     // default 3 (one snapshot every N sim ticks)
	ShutdownDrainMS  int     // default 100
}

func (c Config) withDefaults() Config {
	if c.SimTickHz <= 0 {
		c.SimTickHz = 60
	}
	if c.SnapshotDivisor <= 0 {
		c.SnapshotDivisor = 3
	}
	if c.ShutdownDrainMS <= 0 {
		c.ShutdownDrainMS = 100
	}
	return c
}

// serverLogger mirrors the job scheduler's lifecycle logging wrapper:
// distinct levels for connect/disconnect events versus steady-state
// per-tick activity.
type serverLogger struct {
	*zap.SugaredLogger
}

func (l serverLogger) Connecting(msg string, kv ...interface{}) { l.Debugw("connect: "+msg, kv...) }
func (l serverLogger) Closing(msg string, kv ...interface{})    { l.Warnw("disconnect: "+msg, kv...) }
func (l serverLogger) Pulse(msg string, kv ...interface{})      { l.Infow(msg, kv...) }

// Server is the authoritative replication core: tick loop, session
// table, handshake, snapshot/delta broadcast, input ingestion.
type Server struct {
	cfg      Config
	world    World
	log      serverLogger
	sessions *sessionTable

	currentTick uint64

	// droppedPackets counts inbound messages discarded because of an
	// unrecognized type tag or a bit reader overread.
	droppedPackets atomic.Uint64

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	stopped  chan struct{}
}

// NewServer constructs a Server bound to a World implementation.
func NewServer(cfg Config, world World, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{
		cfg:      cfg.withDefaults(),
		world:    world,
		log:      serverLogger{log},
		sessions: newSessionTable(),
		stopCh:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Run advances the sim/snapshot tick loop until Shutdown is called.
// Intended to be invoked from a dedicated goroutine by the host.
func (s *Server) Run() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	interval := time.Duration(float64(time.Second) / s.cfg.SimTickHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(s.stopped)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Server) tick() {
	s.currentTick++
	if s.currentTick%uint64(s.cfg.SnapshotDivisor) == 0 {
		s.broadcastSnapshot()
	}
}

// Accept registers a freshly connected transport channel as a pending
// session and blocks until the CONNECT_REQUEST handshake resolves,
// returning the new session on success.
func (s *Server) Accept(ch *transport.Channel) (*Session, error) {
	data, err := ch.Receive()
	if err != nil {
		return nil, err
	}

	typ, ok := proto.PeekType(data)
	if !ok || typ != proto.ConnectRequest {
		ch.Close()
		return nil, errUnexpectedHandshakeMessage
	}

	body := proto.BodyReader(data)
	req := proto.DecodeConnectRequest(body)
	if body.Err() {
		s.droppedPackets.Add(1)
		ch.Close()
		return nil, errUnexpectedHandshakeMessage
	}
	if err := proto.CheckVersion(req.ProtocolVersion); err != nil {
		reject := proto.ConnectRejectMsg{Reason: "protocol version mismatch"}
		ch.Send(reject.Encode(), true)
		ch.Flush()
		ch.Close()
		s.log.Closing("rejected connect", "reason", "protocol version mismatch")
		return nil, err
	}

	sess := s.sessions.add(ch)
	sess.setName(req.PlayerName)
	s.log.Connecting("accepted", logger.FieldComponent, "session", "client_id", sess.ID, "name", req.PlayerName)

	accept := proto.ConnectAcceptMsg{ClientID: uint16(sess.ID), ServerTick: uint32(s.currentTick)}
	if err := ch.Send(accept.Encode(), true); err != nil {
		s.sessions.remove(sess.ID)
		return nil, err
	}
	ch.Flush()

	networkID, pos, yaw := s.world.SpawnPlayer(sess.ID)
	sess.setPlayerEntity(networkID)

	spawnMsg := proto.SpawnPlayerMsg{ClientID: uint16(sess.ID), NetworkID: networkID, X: pos[0], Y: pos[1], Z: pos[2], Yaw: yaw}
	s.broadcastReliable(spawnMsg.Encode())

	// Unicast the existing roster to the late joiner.
	for _, other := range s.sessions.all() {
		if other.ID == sess.ID {
			continue
		}
		otherNetID := other.getPlayerEntity()
		if otherNetID == 0 {
			continue
		}
		roster := proto.SpawnPlayerMsg{ClientID: uint16(other.ID), NetworkID: otherNetID}
		sess.Channel.Send(roster.Encode(), true)
	}
	sess.Channel.Flush()

	return sess, nil
}

// HandleMessage dispatches one decoded inbound message for sess. A
// message with an unrecognized type tag or that overreads its bit
// reader is silently dropped and counted, never applied.
func (s *Server) HandleMessage(sess *Session, data []byte) {
	typ, ok := proto.PeekType(data)
	if !ok {
		s.droppedPackets.Add(1)
		return
	}
	body := proto.BodyReader(data)

	switch typ {
	case proto.InputCommand:
		cmd := proto.DecodeInputCommand(body)
		if body.Err() {
			s.droppedPackets.Add(1)
			return
		}
		s.handleInput(sess, cmd)
	case proto.Ping:
		ping := proto.DecodePing(body)
		if body.Err() {
			s.droppedPackets.Add(1)
			return
		}
		pong := proto.PongMsg{Timestamp: ping.Timestamp}
		sess.Channel.Send(pong.Encode(), true)
	case proto.Disconnect:
		s.Disconnect(sess, "client requested disconnect")
	default:
		s.droppedPackets.Add(1)
	}
}

// DroppedPackets returns the number of inbound messages discarded due
// to an unrecognized type tag or a bit reader overread.
func (s *Server) DroppedPackets() uint64 { return s.droppedPackets.Load() }

func (s *Server) handleInput(sess *Session, cmd proto.InputCommandMsg) {
	if !sess.allowInput() {
		return
	}
	sess.recordInputTick(cmd.ClientTick)
	sess.ackAndPrune(cmd.AckServerTick)

	networkID := sess.getPlayerEntity()
	if networkID == 0 {
		return
	}

	jump := cmd.Buttons&proto.ButtonJump != 0
	s.world.ApplyInput(networkID, cmd.Yaw, cmd.Pitch, cmd.MoveForward, cmd.MoveRight, jump)
}

// MovementBasis computes the planar forward/right vectors for a given
// yaw, per the input-application algorithm: forward = (-sin, 0, -cos),
// right = (cos, 0, -sin).
func MovementBasis(yaw float32) (forward, right [3]float32) {
	s, c := math.Sincos(float64(yaw))
	forward = [3]float32{float32(-s), 0, float32(-c)}
	right = [3]float32{float32(c), 0, float32(-s)}
	return
}

func (s *Server) broadcastSnapshot() {
	current := s.world.Snapshot()
	for _, sess := range s.sessions.all() {
		delta := buildDelta(current, sess)
		msg := proto.WorldStateUpdateMsg{ServerTick: uint32(s.currentTick), Entities: delta}
		sess.Channel.Send(msg.Encode(), false)
		sess.appendSnapshot(uint32(s.currentTick), current)
		sess.recordSnapshotSentAt(uint32(s.currentTick))
		sess.Channel.Flush()
	}
}

// buildDelta computes the entity updates for sess against its stored
// baseline, per the delta-compression algorithm: changed-field bits
// only, deleted-only updates for entities that vanished.
func buildDelta(current WorldSnapshot, sess *Session) []proto.EntityUpdate {
	baseline, haveBaseline := sess.baseline()

	var out []proto.EntityUpdate
	for id, cur := range current {
		prev, existed := baseline[id]
		var flags byte
		if !haveBaseline || !existed || positionChanged(cur, prev) {
			flags |= proto.FlagTransform
		}
		if cur.HasVelocity && (!existed || velocityChanged(cur, prev)) {
			flags |= proto.FlagVelocity
		}
		if cur.HasGrounded && (!existed || cur.Grounded != prev.Grounded) {
			flags |= proto.FlagGrounded
		}
		if flags == 0 {
			continue
		}
		out = append(out, proto.EntityUpdate{
			NetworkID: id,
			Flags:     flags,
			PosX:      cur.PosX, PosY: cur.PosY, PosZ: cur.PosZ,
			VelX: cur.VelX, VelY: cur.VelY, VelZ: cur.VelZ,
			Grounded: cur.Grounded,
		})
	}

	if haveBaseline {
		for id := range baseline {
			if _, stillPresent := current[id]; !stillPresent {
				out = append(out, proto.EntityUpdate{NetworkID: id, Flags: proto.FlagDeleted})
			}
		}
	}
	return out
}

func (s *Server) broadcastReliable(payload []byte) {
	for _, sess := range s.sessions.all() {
		sess.Channel.Send(payload, true)
		sess.Channel.Flush()
	}
}

// Disconnect removes sess, destroys its player entity, and notifies
// remaining peers.
func (s *Server) Disconnect(sess *Session, reason string) {
	networkID := sess.getPlayerEntity()
	if networkID != 0 {
		s.world.DespawnPlayer(networkID)
		despawn := proto.DespawnPlayerMsg{ClientID: uint16(sess.ID), NetworkID: networkID}
		s.broadcastReliable(despawn.Encode())
	}
	info := sess.Info()
	s.sessions.remove(sess.ID)
	s.log.Closing("session removed", "client_id", sess.ID, "name", info.Name,
		"smoothed_ping_ms", info.SmoothedPingMS, "reason", reason)
	sess.Channel.Close()
}

// Shutdown sends DISCONNECT to every peer, sleeps for the configured
// drain window, then stops the tick loop.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	reason := proto.DisconnectMsg{Reason: "server shutting down"}
	for _, sess := range s.sessions.all() {
		sess.Channel.Send(reason.Encode(), true)
		sess.Channel.Flush()
	}

	drain := time.Duration(s.cfg.ShutdownDrainMS) * time.Millisecond
	time.Sleep(drain)

	close(s.stopCh)
	<-s.stopped

	for _, sess := range s.sessions.all() {
		sess.Channel.Close()
	}
}

// SessionCount returns the number of currently connected sessions.
func (s *Server) SessionCount() int { return s.sessions.count() }

// Sessions returns a diagnostic snapshot of every connected session's
// spec.md §3 Client Session fields.
func (s *Server) Sessions() []SessionInfo {
	all := s.sessions.all()
	out := make([]SessionInfo, len(all))
	for i, sess := range all {
		out[i] = sess.Info()
	}
	return out
}
