// Package demoworld is a minimal in-memory gameplay host for the
// sample cmd/server and cmd/client binaries: flat-plane player
// movement with no physics beyond the replication core's own
// movement-basis formula. It exists to give the sample binaries a
// concrete World to drive; real games supply their own.
package demoworld

import (
	"sync"

	"github.com/CitroenGames/garden-framework-sub000/internal/netcore/proto"
	"github.com/CitroenGames/garden-framework-sub000/internal/netcore/server"
)

const moveSpeed = 4.0 // units/sec, applied over ApplyInput's fixed 1/60 s step

type playerState struct {
	client   server.ClientID
	pos      [3]float32
	yaw      float32
	pitch    float32
	velocity [3]float32
	grounded bool
}

// ServerWorld is a server.World implementation: one player per
// connected client, spawned at the origin, moved along the
// replication core's forward/right movement basis. It has no entity id
// scheme of its own, so network ids are assigned and resolved entirely
// through a server.EntityRegistry, treating the connecting ClientID as
// the registry's opaque LocalEntity.
type ServerWorld struct {
	mu       sync.Mutex
	registry *server.EntityRegistry
	players  map[uint32]*playerState
}

func NewServerWorld() *ServerWorld {
	return &ServerWorld{registry: server.NewEntityRegistry(), players: make(map[uint32]*playerState)}
}

func (w *ServerWorld) SpawnPlayer(client server.ClientID) (uint32, [3]float32, float32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.registry.RegisterEntity(server.LocalEntity(client))
	w.players[id] = &playerState{client: client, grounded: true}
	return id, [3]float32{0, 0, 0}, 0
}

func (w *ServerWorld) DespawnPlayer(networkID uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if local, ok := w.registry.LocalEntity(networkID); ok {
		w.registry.UnregisterEntity(local)
	}
	delete(w.players, networkID)
}

// ApplyInput moves the player one fixed step along the input's planar
// axes, projected through the movement basis for the submitted yaw.
func (w *ServerWorld) ApplyInput(networkID uint32, yaw, pitch, moveForward, moveRight float32, jump bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.players[networkID]
	if !ok {
		return
	}
	p.yaw = yaw
	p.pitch = pitch

	forward, right := server.MovementBasis(yaw)
	const dt = 1.0 / 60.0
	step := float32(moveSpeed * dt)
	p.pos[0] += (forward[0]*moveForward + right[0]*moveRight) * step
	p.pos[1] += (forward[1]*moveForward + right[1]*moveRight) * step
	p.pos[2] += (forward[2]*moveForward + right[2]*moveRight) * step

	if jump && p.grounded {
		p.velocity[1] = 5
		p.grounded = false
	}
}

// Snapshot returns every player's current replicated state.
func (w *ServerWorld) Snapshot() server.WorldSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := make(server.WorldSnapshot, len(w.players))
	for id, p := range w.players {
		snap[id] = server.EntitySnapshot{
			NetworkID: id,
			PosX:      p.pos[0], PosY: p.pos[1], PosZ: p.pos[2],
			HasVelocity: true,
			VelX:        p.velocity[0], VelY: p.velocity[1], VelZ: p.velocity[2],
			HasGrounded: true,
			Grounded:    p.grounded,
		}
	}
	return snap
}

// ClientEntity is one remote player as seen by a ClientWorld.
type ClientEntity struct {
	NetworkID uint32
	Owner     uint16
	Pos       [3]float32
	Velocity  [3]float32
	Grounded  bool
}

// ClientWorld is a client.World implementation storing a flat map of
// replicated entities, for display or inspection by the sample binary.
type ClientWorld struct {
	mu       sync.Mutex
	entities map[uint32]*ClientEntity
}

func NewClientWorld() *ClientWorld {
	return &ClientWorld{entities: make(map[uint32]*ClientEntity)}
}

func (w *ClientWorld) SpawnEntity(networkID uint32, owner uint16, pos [3]float32, yaw float32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entities[networkID] = &ClientEntity{NetworkID: networkID, Owner: owner, Pos: pos}
}

func (w *ClientWorld) DespawnEntity(networkID uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.entities, networkID)
}

func (w *ClientWorld) ApplyUpdate(update proto.EntityUpdate) {
	w.mu.Lock()
	defer w.mu.Unlock()
	e, ok := w.entities[update.NetworkID]
	if !ok {
		e = &ClientEntity{NetworkID: update.NetworkID}
		w.entities[update.NetworkID] = e
	}
	if update.Flags&proto.FlagTransform != 0 {
		e.Pos = [3]float32{update.PosX, update.PosY, update.PosZ}
	}
	if update.Flags&proto.FlagVelocity != 0 {
		e.Velocity = [3]float32{update.VelX, update.VelY, update.VelZ}
	}
	if update.Flags&proto.FlagGrounded != 0 {
		e.Grounded = update.Grounded
	}
}

// ClearAll destroys every tracked entity, for transport teardown.
func (w *ClientWorld) ClearAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entities = make(map[uint32]*ClientEntity)
}

// Entities returns a snapshot copy of all currently known entities.
func (w *ClientWorld) Entities() map[uint32]ClientEntity {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make(map[uint32]ClientEntity, len(w.entities))
	for id, e := range w.entities {
		out[id] = *e
	}
	return out
}
