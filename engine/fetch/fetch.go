// Package fetch defines the contracts the terrain pipeline consumes:
// remote image sources for prerendered chunks, single tile textures and
// packed atlases, plus the synchronous tile-id source backed by the loaded
// terrain data. Implementations live behind these interfaces so the caches
// never know where bytes come from.
package fetch

import (
	"context"
	"errors"

	"github.com/fieldstone/isomap/engine/iso"
	"github.com/fieldstone/isomap/engine/land"
)

// ErrNotFound marks a resource confirmed absent at the source. Callers
// cache it as terminal and never retry; any other error is transient.
var ErrNotFound = errors.New("fetch: resource not found")

// AtlasRect is one tile's sub-rectangle inside a packed atlas bitmap.
type AtlasRect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"w"`
	Height int `json:"h"`
}

// AtlasManifest maps tile ids to their placement inside the atlas bitmap.
type AtlasManifest struct {
	TileWidth  int                   `json:"tile_w"`
	TileHeight int                   `json:"tile_h"`
	Rects      map[land.ID]AtlasRect `json:"rects"`
}

// ChunkFetcher retrieves a server-side prerendered chunk image.
type ChunkFetcher interface {
	FetchChunk(ctx context.Context, mapName string, set land.TerrainSet, season land.Season,
		zoom iso.Zoom, chunkRow, chunkCol int) ([]byte, error)
}

// TextureFetcher retrieves the encoded bitmap for a single tile id.
type TextureFetcher interface {
	FetchTexture(ctx context.Context, set land.TerrainSet, season land.Season, id land.ID) ([]byte, error)
}

// AtlasFetcher retrieves one packed atlas bitmap plus its manifest.
type AtlasFetcher interface {
	FetchAtlas(ctx context.Context, set land.TerrainSet, season land.Season) ([]byte, *AtlasManifest, error)
}

// TileSource is the synchronous lookup into loaded terrain data. Lookups
// outside the map return the zero id; the chunk cache clamps its windows
// so that only edge padding ever hits that case.
type TileSource interface {
	TileID(row, col int) land.ID
}
