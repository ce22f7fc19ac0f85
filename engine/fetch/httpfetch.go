package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fieldstone/isomap/engine/iso"
	"github.com/fieldstone/isomap/engine/land"
)

// HTTPClient fetches chunk images, textures and atlases from the asset
// server over plain GETs. A 404 maps to ErrNotFound; every other non-200
// status and every transport error is transient.
type HTTPClient struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPClient builds a client for the given base URL.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: timeout},
	}
}

var _ ChunkFetcher = (*HTTPClient)(nil)
var _ TextureFetcher = (*HTTPClient)(nil)
var _ AtlasFetcher = (*HTTPClient)(nil)

// FetchChunk gets a prerendered chunk image.
func (c *HTTPClient) FetchChunk(ctx context.Context, mapName string, set land.TerrainSet, season land.Season,
	zoom iso.Zoom, chunkRow, chunkCol int) ([]byte, error) {
	url := fmt.Sprintf("%s/chunks/%s/%s/%s/z%d/%d_%d.png",
		c.BaseURL, mapName, set, season, zoom, chunkRow, chunkCol)
	return c.get(ctx, url)
}

// FetchTexture gets a single tile texture.
func (c *HTTPClient) FetchTexture(ctx context.Context, set land.TerrainSet, season land.Season, id land.ID) ([]byte, error) {
	url := fmt.Sprintf("%s/textures/%s/%s/%02x.png", c.BaseURL, set, season, uint8(id))
	return c.get(ctx, url)
}

// FetchAtlas gets the packed atlas bitmap and its JSON manifest.
func (c *HTTPClient) FetchAtlas(ctx context.Context, set land.TerrainSet, season land.Season) ([]byte, *AtlasManifest, error) {
	img, err := c.get(ctx, fmt.Sprintf("%s/atlas/%s/%s.png", c.BaseURL, set, season))
	if err != nil {
		return nil, nil, err
	}
	raw, err := c.get(ctx, fmt.Sprintf("%s/atlas/%s/%s.json", c.BaseURL, set, season))
	if err != nil {
		return nil, nil, err
	}
	var man AtlasManifest
	if err := json.Unmarshal(raw, &man); err != nil {
		return nil, nil, fmt.Errorf("fetch: decode atlas manifest: %w", err)
	}
	return img, &man, nil
}

func (c *HTTPClient) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("fetch: %s: %w", url, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch: %s: unexpected status %s", url, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch: read %s: %w", url, err)
	}
	return data, nil
}
