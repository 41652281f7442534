package server

// World is the host-provided gameplay hook the Server drives. The
// replication core owns the protocol, tick pacing, and session
// bookkeeping; it has no opinion on how entities are stored or
// simulated, matching the host-threaded-through-DI model the rest of
// this module follows — there is no scene graph here to own natively.
type World interface {
	// SpawnPlayer creates a player entity for a newly connected client
	// and returns its network id, initial position, and facing yaw.
	SpawnPlayer(client ClientID) (networkID uint32, pos [3]float32, yaw float32)
	// DespawnPlayer destroys the entity owning networkID.
	DespawnPlayer(networkID uint32)
	// ApplyInput drives the entity owning networkID from one decoded
	// INPUT_COMMAND: camera orientation, planar move axes in [-1,1],
	// and whether the jump button was pressed this tick.
	ApplyInput(networkID uint32, yaw, pitch, moveForward, moveRight float32, jump bool)
	// Snapshot returns every networked entity's current replicated state.
	Snapshot() WorldSnapshot
}
