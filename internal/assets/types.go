// Package assets implements the handle-based async asset pipeline:
// dedup by canonical path, a state machine driving each asset from
// Queued through GPU upload, and format-dispatched loaders. Loading
// runs on top of internal/jobs — parse jobs execute on workers, GPU
// upload jobs execute on the main thread.
package assets

import "github.com/CitroenGames/garden-framework-sub000/internal/render"

// AssetID identifies a loaded or loading asset. The zero value is invalid.
type AssetID uint64

// InvalidAssetID is the reserved zero value.
const InvalidAssetID AssetID = 0

// Type tags the kind of resource an asset holds.
type Type int

const (
	TypeUnknown Type = iota
	TypeMesh
	TypeTexture
	TypeMaterial
	TypeModel
	TypeShader
	TypeSound
	TypeAnimation
)

func (t Type) String() string {
	switch t {
	case TypeMesh:
		return "Mesh"
	case TypeTexture:
		return "Texture"
	case TypeMaterial:
		return "Material"
	case TypeModel:
		return "Model"
	case TypeShader:
		return "Shader"
	case TypeSound:
		return "Sound"
	case TypeAnimation:
		return "Animation"
	default:
		return "Unknown"
	}
}

// LoadState is the asset's position in its loading lifecycle. Failed is
// reachable from any non-terminal state; Ready and Failed are terminal.
type LoadState int

const (
	NotLoaded LoadState = iota
	Queued
	LoadingIO
	Parsing
	Processing
	UploadingGPU
	Ready
	Failed
)

func (s LoadState) String() string {
	switch s {
	case NotLoaded:
		return "NotLoaded"
	case Queued:
		return "Queued"
	case LoadingIO:
		return "LoadingIO"
	case Parsing:
		return "Parsing"
	case Processing:
		return "Processing"
	case UploadingGPU:
		return "UploadingGPU"
	case Ready:
		return "Ready"
	case Failed:
		return "Failed"
	default:
		return "NotLoaded"
	}
}

// Priority maps to job scheduler priority on submission: Background→Low,
// Normal→Normal, High/Immediate→High.
type Priority int

const (
	Background Priority = iota
	Normal
	High
	Immediate
)

// Error records why an asset load failed.
type Error struct {
	Message   string
	FilePath  string
	ErrorCode int
}

func (e *Error) Error() string {
	return e.Message
}

// Payload is a closed tagged union over the known asset types — only
// the variant matching the asset's Type is ever populated on a Ready
// asset. NoPayload is the monostate "empty" case.
type Payload interface {
	isPayload()
}

type NoPayload struct{}

func (NoPayload) isPayload() {}

// MeshPayload holds CPU-side vertex data until upload; after a
// successful upload the CPU buffer is dropped and only Handle remains.
type MeshPayload struct {
	Vertices []render.Vertex
	Handle   render.MeshHandle
}

func (MeshPayload) isPayload() {}

// TexturePayload holds decoded pixel data until upload.
type TexturePayload struct {
	Pixels          []byte
	Width           int
	Height          int
	Channels        int
	FlipVertically  bool
	GenerateMipmaps bool
	Handle          render.TextureHandle
}

func (TexturePayload) isPayload() {}

// MaterialPayload references textures and shading parameters by path;
// resolution of sub-assets happens through ReferencedAssets on LoadResult.
type MaterialPayload struct {
	ShaderPath   string
	TexturePaths map[string]string
	Parameters   map[string]float32
}

func (MaterialPayload) isPayload() {}

// ModelPayload bundles the meshes and materials composing a model;
// referenced sub-assets are loaded independently via ReferencedAssets.
type ModelPayload struct {
	MeshPaths     []string
	MaterialPaths []string
}

func (ModelPayload) isPayload() {}

type ShaderPayload struct {
	Source string
	Stage  string
}

func (ShaderPayload) isPayload() {}

type SoundPayload struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

func (SoundPayload) isPayload() {}

type AnimationPayload struct {
	Clip []byte
}

func (AnimationPayload) isPayload() {}

// LoadContext is handed to a loader's LoadFromFile call.
type LoadContext struct {
	RenderDevice   render.Device
	BasePath       string
	VerboseLogging bool
}

// LoadResult is what a loader reports back from LoadFromFile.
type LoadResult struct {
	Success          bool
	ErrorMessage     string
	Data             Payload
	ReferencedAssets []string
}

// OnComplete is invoked when an asset finishes loading, successfully or not.
type OnComplete func(id AssetID, success bool)

// OnProgress is invoked at every progress checkpoint.
type OnProgress func(id AssetID, progress float32)

// Progress checkpoints per the pipeline's stage contract.
const (
	ProgressIO        float32 = 0.1
	ProgressParsing    float32 = 0.3
	ProgressProcessing float32 = 0.7
	ProgressUploading  float32 = 0.8
	ProgressReady      float32 = 1.0
)
