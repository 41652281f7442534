package assets

import "github.com/CitroenGames/garden-framework-sub000/errors"

// Sentinel errors surfaced at the asset pipeline's boundaries.
var (
	ErrAssetNotFound = errors.New("asset: no loader accepts path")
	errAssetInFlight = errors.New("asset: cannot unload while load is in flight")
)
