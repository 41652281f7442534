// Package render defines the capability surface the engine core
// expects from a graphics backend. The backend itself — shader
// management, cascaded shadow maps, anti-aliasing, the skybox — is an
// opaque implementation detail the core never touches.
package render

// MeshHandle is an opaque GPU mesh resource owned by a Device.
type MeshHandle uint64

// TextureHandle is an opaque GPU texture resource owned by a Device.
type TextureHandle uint64

// InvalidMeshHandle and InvalidTextureHandle are the reserved zero
// values returned on failure.
const (
	InvalidMeshHandle    MeshHandle    = 0
	InvalidTextureHandle TextureHandle = 0
)

// Vertex is a minimal position/normal/uv vertex layout sufficient for
// the asset pipeline's mesh upload path. Renderer implementations are
// free to expand on this internally.
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	UV       [2]float32
}

// Device is the capability the asset pipeline and renderer consume.
// It is accessed only from the main thread — every method here is
// expected to run during a MainThread-context job or the host's frame
// loop, never from a worker goroutine.
type Device interface {
	// CreateMesh allocates an empty GPU mesh resource.
	CreateMesh() MeshHandle
	// UploadMeshData uploads vertex data to a previously created mesh.
	UploadMeshData(mesh MeshHandle, vertices []Vertex)
	// LoadTextureFromMemory uploads decoded pixel data and returns a
	// texture handle, or InvalidTextureHandle on failure.
	LoadTextureFromMemory(pixels []byte, width, height, channels int, flipVertically, generateMipmaps bool) TextureHandle
	// DeleteTexture releases a texture resource.
	DeleteTexture(handle TextureHandle)
}
