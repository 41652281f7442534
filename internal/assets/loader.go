package assets

import (
	"strings"

	"github.com/CitroenGames/garden-framework-sub000/internal/render"
)

// Loader handles loading and uploading for one asset type.
type Loader interface {
	AssetType() Type
	SupportedExtensions() []string
	// CanLoad reports whether this loader accepts path. The default
	// suffix-match helper below covers the common case.
	CanLoad(path string) bool
	// LoadFromFile parses the asset off the main thread; it may block.
	LoadFromFile(path string, ctx LoadContext) LoadResult
	// UploadToGPU uploads CPU-side data from a successful LoadResult to
	// the render device and returns the resulting payload with CPU
	// buffers replaced by GPU handles. Runs on the main thread.
	UploadToGPU(data Payload, device render.Device) (Payload, bool)
}

// ExtensionMatch implements the default case-insensitive suffix match
// CanLoad behavior described for loaders that don't need custom logic.
func ExtensionMatch(path string, extensions []string) bool {
	lower := strings.ToLower(path)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
