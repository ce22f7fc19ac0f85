package chunkcache

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	stddraw "image/draw"
	_ "image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/fieldstone/isomap/engine/fetch"
	"github.com/fieldstone/isomap/engine/iso"
)

// populate fills one chunk surface. Tiers, first success wins: server
// prerendered image, local render from atlas/texture caches, flat
// diamonds. Every tier failure is absorbed; the chunk always ends up
// ready with the best pixels available this session.
func (c *Cache) populate(ctx context.Context, ch *chunk) {
	if !c.fillFromServer(ctx, ch) {
		c.renderLocal(ctx, ch)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	lvl := c.levels[ch.zoom]
	if lvl.entries[ch.key] != ch {
		// Invalidated or superseded while rendering: dead work, the
		// surface is unreachable and gets collected.
		return
	}
	ch.state = stateReady
	c.touchLocked(lvl, ch)
}

// fillFromServer tries the prerendered-chunk tier. A not-found response
// disables the tier for the rest of the session; transient errors leave
// it enabled so the next miss retries.
func (c *Cache) fillFromServer(ctx context.Context, ch *chunk) bool {
	c.mu.Lock()
	remote := c.remote
	disabled := c.serverDisabled
	mapName := c.cfg.MapName
	set, season := c.set, c.season
	c.mu.Unlock()
	if remote == nil || disabled {
		return false
	}

	data, err := remote.FetchChunk(ctx, mapName, set, season, ch.zoom, ch.key.Row, ch.key.Col)
	if err != nil {
		if errors.Is(err, fetch.ErrNotFound) {
			c.mu.Lock()
			first := !c.serverDisabled
			c.serverDisabled = true
			c.mu.Unlock()
			if first {
				c.log.Info("no prerendered chunks on server, rendering locally for this session")
			}
		} else {
			c.log.WithError(err).Debug("prerendered chunk fetch failed")
		}
		return false
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		c.log.WithError(err).Debug("prerendered chunk image undecodable")
		return false
	}
	if src.Bounds().Dx() == ch.surface.Bounds().Dx() && src.Bounds().Dy() == ch.surface.Bounds().Dy() {
		stddraw.Draw(ch.surface, ch.surface.Bounds(), src, src.Bounds().Min, stddraw.Src)
	} else {
		draw.NearestNeighbor.Scale(ch.surface, ch.surface.Bounds(), src, src.Bounds(), draw.Src, nil)
	}
	return true
}

// renderLocal draws every tile of the chunk window back to front.
// Vegetation/special tiles are flattened to their land class; the tall
// object itself belongs to the overlay layer, not the terrain base.
func (c *Cache) renderLocal(ctx context.Context, ch *chunk) {
	c.mu.Lock()
	mapper := c.mapper
	n := c.cfg.ChunkWindow
	c.mu.Unlock()

	// Best effort: an unreachable or missing atlas settles as absent and
	// the texture path takes over.
	_ = c.atlas.Load(ctx)
	atlasReady := c.atlas.IsReady()

	origin := c.ChunkOrigin(ch.key.Row, ch.key.Col, ch.zoom)
	r0, c0 := ch.key.Row*n, ch.key.Col*n

	type cell struct{ i, j int }
	cells := make([]cell, 0, n*n)
	for i := r0; i < r0+n && i < mapper.Rows; i++ {
		for j := c0; j < c0+n && j < mapper.Cols; j++ {
			cells = append(cells, cell{i, j})
		}
	}
	iso.BackToFront(cells, func(t cell) (int, int) { return t.i, t.j })

	u := ch.zoom.Unit()
	for _, t := range cells {
		id := c.tiles.TileID(t.i, t.j)
		if id.IsSpecial() {
			id = id.Flatten()
		}
		p := mapper.MapToScreen(t.i, t.j, ch.zoom, iso.North, origin)
		dst := image.Rect(p.X, p.Y, p.X+2*u, p.Y+u)

		if atlasReady {
			if sub, ok := c.atlas.SubImage(id); ok {
				draw.NearestNeighbor.Scale(ch.surface, dst, sub, sub.Bounds(), draw.Over, nil)
				continue
			}
		}
		if img, err := c.textures.GetWait(ctx, id); err == nil && img != nil {
			draw.NearestNeighbor.Scale(ch.surface, dst, img, img.Bounds(), draw.Over, nil)
			continue
		}
		fillDiamond(ch.surface, dst, id.FallbackColor())
	}
}

// fillDiamond rasterizes the tile diamond instead of a filled rectangle;
// with the overlap-by-half-tile tiling a rectangle would paint over the
// corners of its neighbors and leave visible seams.
func fillDiamond(dst *image.RGBA, rect image.Rectangle, clr color.RGBA) {
	w, h := rect.Dx(), rect.Dy()
	r := vector.NewRasterizer(w, h)
	r.MoveTo(float32(w)/2, 0)
	r.LineTo(float32(w), float32(h)/2)
	r.LineTo(float32(w)/2, float32(h))
	r.LineTo(0, float32(h)/2)
	r.ClosePath()
	r.DrawOp = stddraw.Over
	r.Draw(dst, rect, image.NewUniform(clr), image.Point{})
}

// ChunkOrigin is the top-left pixel of the chunk's footprint in
// unshifted projection space (origin zero). Population subtracts it so
// that chunk-local pixels line up exactly with tile-level projection.
func (c *Cache) ChunkOrigin(row, col int, z iso.Zoom) iso.Point {
	c.mu.Lock()
	mapper := c.mapper
	n := c.cfg.ChunkWindow
	c.mu.Unlock()
	r0, c0 := row*n, col*n
	left := mapper.MapToScreen(r0+n-1, c0, z, iso.North, iso.Point{})
	top := mapper.MapToScreen(r0+n-1, c0+n-1, z, iso.North, iso.Point{})
	return iso.Point{X: left.X, Y: top.Y}
}

// ChunkScreenRect is where the chunk surface lands on screen for a given
// camera origin. It reuses the same projection as tile rendering, so
// chunk edges are pixel-exact against individually projected tiles.
func (c *Cache) ChunkScreenRect(row, col int, z iso.Zoom, origin iso.Point) image.Rectangle {
	o := c.ChunkOrigin(row, col, z)
	x, y := o.X-origin.X, o.Y-origin.Y
	return image.Rect(x, y, x+c.surfaceW(z), y+c.surfaceH(z))
}

// VisibleChunkRange returns the inclusive chunk coordinate box
// intersecting the viewport.
func (c *Cache) VisibleChunkRange(view image.Rectangle, z iso.Zoom, origin iso.Point) (minRow, minCol, maxRow, maxCol int) {
	c.mu.Lock()
	mapper := c.mapper
	n := c.cfg.ChunkWindow
	c.mu.Unlock()
	b := mapper.VisibleTileBounds(view, z, iso.North, origin)
	rows, cols := c.ChunkGrid()
	minRow = clampInt(b.MinI/n, 0, rows-1)
	maxRow = clampInt(b.MaxI/n, 0, rows-1)
	minCol = clampInt(b.MinJ/n, 0, cols-1)
	maxCol = clampInt(b.MaxJ/n, 0, cols-1)
	return
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
