// Package atlas caches one packed terrain bitmap plus the manifest that
// maps tile ids to sub-rectangles, per terrain set and season. The atlas
// loads as a unit: it is either fully ready or absent, and a failed load
// is terminal until the set or season changes.
package atlas

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/png"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fieldstone/isomap/engine/fetch"
	"github.com/fieldstone/isomap/engine/land"
)

type state uint8

const (
	stateEmpty state = iota
	statePending
	stateReady
	stateAbsent
)

// Cache holds the atlas for the current terrain set and season.
type Cache struct {
	mu      sync.Mutex
	fetcher fetch.AtlasFetcher
	set     land.TerrainSet
	season  land.Season
	gen     uint64

	state state
	img   *image.RGBA
	man   *fetch.AtlasManifest
	done  chan struct{}

	log logrus.FieldLogger
}

// New builds an atlas cache over the given fetcher. A nil log discards
// output.
func New(fetcher fetch.AtlasFetcher, log logrus.FieldLogger) *Cache {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Cache{
		fetcher: fetcher,
		log:     log.WithField("component", "atlas"),
	}
}

// Load fetches the atlas for the current set and season. It is
// idempotent: while a load is in flight further callers wait on it, and
// once the outcome is known repeated calls return it without refetching.
// Any failure, missing resource or transport error alike, settles the
// atlas as absent; callers then use the per-texture path instead.
func (c *Cache) Load(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case stateReady:
		c.mu.Unlock()
		return nil
	case stateAbsent:
		c.mu.Unlock()
		return fetch.ErrNotFound
	case statePending:
		done := c.done
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		}
		return c.Load(ctx)
	}
	c.state = statePending
	c.done = make(chan struct{})
	gen := c.gen
	set, season := c.set, c.season
	done := c.done
	c.mu.Unlock()

	data, man, err := c.fetcher.FetchAtlas(ctx, set, season)
	var img *image.RGBA
	if err == nil {
		img, err = decodeRGBA(data)
	}
	if err == nil && man == nil {
		err = fmt.Errorf("atlas: %s/%s: empty manifest", set, season)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(done)
	if c.gen != gen {
		// Set or season changed mid-flight; this result belongs to the
		// old key and the new state was already reset.
		return fmt.Errorf("atlas: superseded by terrain/season change")
	}
	if err != nil {
		c.state = stateAbsent
		c.log.WithError(err).WithFields(logrus.Fields{
			"set": set.String(), "season": season.String(),
		}).Debug("atlas unavailable, using per-texture path")
		return fmt.Errorf("atlas: %s/%s: %w", set, season, err)
	}
	c.state = stateReady
	c.img = img
	c.man = man
	return nil
}

// IsReady reports whether the atlas bitmap and manifest are resident.
func (c *Cache) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateReady
}

// Rect returns the sub-rectangle for a tile id, if the atlas is ready and
// the manifest knows the id.
func (c *Cache) Rect(id land.ID) (image.Rectangle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateReady {
		return image.Rectangle{}, false
	}
	r, ok := c.man.Rects[id]
	if !ok {
		return image.Rectangle{}, false
	}
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height), true
}

// SubImage returns a view of the atlas bitmap for a tile id.
func (c *Cache) SubImage(id land.ID) (*image.RGBA, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateReady {
		return nil, false
	}
	r, ok := c.man.Rects[id]
	if !ok {
		return nil, false
	}
	sub := c.img.SubImage(image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height))
	return sub.(*image.RGBA), true
}

// TileSize returns the standard tile pixel dimensions of the manifest.
func (c *Cache) TileSize() (w, h int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateReady {
		return 0, 0, false
	}
	return c.man.TileWidth, c.man.TileHeight, true
}

// SetTerrain switches the terrain set, releasing the held bitmap and
// manifest so the next Load fetches the new key.
func (c *Cache) SetTerrain(set land.TerrainSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set == c.set {
		return
	}
	c.set = set
	c.resetLocked()
}

// SetSeason switches the season, releasing atlas state.
func (c *Cache) SetSeason(season land.Season) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if season == c.season {
		return
	}
	c.season = season
	c.resetLocked()
}

func (c *Cache) resetLocked() {
	c.gen++
	c.state = stateEmpty
	c.img = nil
	c.man = nil
}

func decodeRGBA(data []byte) (*image.RGBA, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode bitmap: %w", err)
	}
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba, nil
	}
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst, nil
}
