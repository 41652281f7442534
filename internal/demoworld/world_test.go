package demoworld

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CitroenGames/garden-framework-sub000/internal/netcore/server"
)

func TestServerWorldSpawnAssignsNetworkIDThroughRegistry(t *testing.T) {
	w := NewServerWorld()

	id, pos, yaw := w.SpawnPlayer(server.ClientID(1))
	assert.NotZero(t, id)
	assert.Equal(t, [3]float32{0, 0, 0}, pos)
	assert.Zero(t, yaw)

	local, ok := w.registry.LocalEntity(id)
	assert.True(t, ok)
	assert.Equal(t, server.LocalEntity(1), local)
}

func TestServerWorldDespawnReleasesRegistryEntry(t *testing.T) {
	w := NewServerWorld()

	id, _, _ := w.SpawnPlayer(server.ClientID(5))
	w.DespawnPlayer(id)

	_, ok := w.registry.LocalEntity(id)
	assert.False(t, ok)

	snap := w.Snapshot()
	_, present := snap[id]
	assert.False(t, present)
}

func TestServerWorldApplyInputMovesAlongMovementBasis(t *testing.T) {
	w := NewServerWorld()
	id, _, _ := w.SpawnPlayer(server.ClientID(1))

	w.ApplyInput(id, 0, 0, 1, 0, false)

	snap := w.Snapshot()
	e, ok := snap[id]
	assert.True(t, ok)
	assert.Less(t, e.PosZ, float32(0))
}
