package render

import "sync/atomic"

// Headless is a no-op Device that allocates and tracks handles without
// touching any graphics API. It exists for tests and for running the
// asset pipeline and replication core without a window — every method
// here returns immediately, mirroring the headless render backend
// used to exercise engine subsystems without a display.
type Headless struct {
	nextMesh    atomic.Uint64
	nextTexture atomic.Uint64

	meshVertexCounts map[MeshHandle]int
}

// NewHeadless constructs a Headless device.
func NewHeadless() *Headless {
	return &Headless{meshVertexCounts: make(map[MeshHandle]int)}
}

func (h *Headless) CreateMesh() MeshHandle {
	return MeshHandle(h.nextMesh.Add(1))
}

func (h *Headless) UploadMeshData(mesh MeshHandle, vertices []Vertex) {
	h.meshVertexCounts[mesh] = len(vertices)
}

func (h *Headless) LoadTextureFromMemory(pixels []byte, width, height, channels int, flipVertically, generateMipmaps bool) TextureHandle {
	return TextureHandle(h.nextTexture.Add(1))
}

func (h *Headless) DeleteTexture(handle TextureHandle) {}

// VertexCount returns how many vertices were last uploaded to mesh,
// for test assertions.
func (h *Headless) VertexCount(mesh MeshHandle) int {
	return h.meshVertexCounts[mesh]
}
