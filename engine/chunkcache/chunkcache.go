// Package chunkcache pre-renders the terrain in fixed-size chunks, one
// off-screen surface per (chunk, zoom level), and keeps an independent
// LRU cache per zoom level. A miss allocates the chunk in queued state
// and schedules its population on a bounded render queue; population
// tries a server-side prerendered image first, then renders locally from
// the atlas / texture caches with a flat-color diamond as the last tier.
// The renderer only ever sees ready surfaces or "not yet".
package chunkcache

import (
	"context"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/fieldstone/isomap/engine/atlas"
	"github.com/fieldstone/isomap/engine/fetch"
	"github.com/fieldstone/isomap/engine/iso"
	"github.com/fieldstone/isomap/engine/land"
	"github.com/fieldstone/isomap/engine/texcache"
)

// Defaults for the tuning knobs; all of them only trade memory against
// latency.
const (
	DefaultChunkWindow = 32
	DefaultRenderBatch = 6
)

// DefaultZoomBudgets is the per-level chunk capacity. Lower levels have
// smaller chunks and more of them on screen, so they get more slots.
var DefaultZoomBudgets = [iso.NumZooms]int{128, 96, 64, 48}

// Key identifies a chunk within one zoom level.
type Key struct {
	Row, Col int
}

type chunkState uint8

const (
	stateQueued chunkState = iota
	stateReady
)

// chunk owns one off-screen surface. The surface is written only by the
// population worker and becomes visible to readers in a single state flip
// under the cache lock.
type chunk struct {
	key      Key
	zoom     iso.Zoom
	surface  *image.RGBA
	state    chunkState
	lastUsed uint64
}

type level struct {
	entries map[Key]*chunk
	clock   uint64
	budget  int
}

// Config carries the chunk cache knobs.
type Config struct {
	MapName     string
	ChunkWindow int
	RenderBatch int
	ZoomBudgets [iso.NumZooms]int
}

func (c *Config) applyDefaults() {
	if c.ChunkWindow <= 0 {
		c.ChunkWindow = DefaultChunkWindow
	}
	if c.RenderBatch <= 0 {
		c.RenderBatch = DefaultRenderBatch
	}
	for z := range c.ZoomBudgets {
		if c.ZoomBudgets[z] <= 0 {
			c.ZoomBudgets[z] = DefaultZoomBudgets[z]
		}
	}
}

// Stats is an observability snapshot.
type Stats struct {
	Hits           uint64
	Misses         uint64
	Evictions      uint64
	QueueLen       int
	CacheSizes     [iso.NumZooms]int
	ServerDisabled bool
}

// Cache is the chunk orchestrator.
type Cache struct {
	mu     sync.Mutex
	cfg    Config
	mapper iso.Mapper

	tiles    fetch.TileSource
	textures *texcache.Cache
	atlas    *atlas.Cache
	remote   fetch.ChunkFetcher // nil disables the server tier outright

	set    land.TerrainSet
	season land.Season

	levels    [iso.NumZooms]*level
	queue     []*chunk
	wake      chan struct{}
	listeners []func()

	serverDisabled bool
	hits           uint64
	misses         uint64
	evictions      uint64

	log logrus.FieldLogger
}

// New builds a chunk cache. remote may be nil when no asset server is
// configured; a nil log discards output.
func New(cfg Config, tiles fetch.TileSource, textures *texcache.Cache, atl *atlas.Cache,
	remote fetch.ChunkFetcher, log logrus.FieldLogger) *Cache {
	cfg.applyDefaults()
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	c := &Cache{
		cfg:      cfg,
		tiles:    tiles,
		textures: textures,
		atlas:    atl,
		remote:   remote,
		wake:     make(chan struct{}, 1),
		log:      log.WithField("component", "chunkcache"),
	}
	for z := range c.levels {
		c.levels[z] = &level{
			entries: make(map[Key]*chunk),
			budget:  cfg.ZoomBudgets[z],
		}
	}
	return c
}

// SetMapInfo installs the map dimensions and name, dropping every cached
// chunk. The server prerender tier is re-enabled for the new map.
func (c *Cache) SetMapInfo(name string, rows, cols int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.MapName = name
	c.mapper = iso.Mapper{Rows: rows, Cols: cols}
	c.serverDisabled = false
	c.clearLocked()
}

// SetTerrain switches the terrain set, cascading to the texture and atlas
// caches and dropping every chunk.
func (c *Cache) SetTerrain(set land.TerrainSet) {
	c.mu.Lock()
	if set == c.set {
		c.mu.Unlock()
		return
	}
	c.set = set
	c.clearLocked()
	c.mu.Unlock()
	c.textures.SetTerrain(set)
	c.atlas.SetTerrain(set)
}

// SetSeason switches the season, cascading like SetTerrain.
func (c *Cache) SetSeason(season land.Season) {
	c.mu.Lock()
	if season == c.season {
		c.mu.Unlock()
		return
	}
	c.season = season
	c.clearLocked()
	c.mu.Unlock()
	c.textures.SetSeason(season)
	c.atlas.SetSeason(season)
}

// GetSurface returns the ready surface for a chunk, or nil when the chunk
// is still rendering: the caller retries next frame. A first miss
// allocates the chunk and schedules its population. Requests outside the
// map or at an unregistered zoom level are programming errors and are
// returned as such.
func (c *Cache) GetSurface(row, col int, z iso.Zoom) (*image.RGBA, error) {
	if err := iso.CheckZoom(z); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mapper.Rows == 0 || c.mapper.Cols == 0 {
		return nil, fmt.Errorf("chunkcache: map info not set")
	}
	rows, cols := c.chunkGridLocked()
	if row < 0 || col < 0 || row >= rows || col >= cols {
		return nil, fmt.Errorf("chunkcache: chunk (%d,%d) outside %dx%d grid", row, col, rows, cols)
	}

	lvl := c.levels[z]
	key := Key{Row: row, Col: col}
	if ch, ok := lvl.entries[key]; ok {
		if ch.state == stateReady {
			c.hits++
			c.touchLocked(lvl, ch)
			return ch.surface, nil
		}
		// Queued: already scheduled, attach by doing nothing.
		return nil, nil
	}

	c.misses++
	ch := &chunk{
		key:     key,
		zoom:    z,
		surface: image.NewRGBA(image.Rect(0, 0, c.surfaceW(z), c.surfaceH(z))),
	}
	lvl.entries[key] = ch
	c.queue = append(c.queue, ch)
	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil, nil
}

// Invalidate drops a chunk at every zoom level, e.g. after a terrain
// edit. An in-flight render of the dropped chunk finishes into a surface
// nobody reads.
func (c *Cache) Invalidate(row, col int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := Key{Row: row, Col: col}
	for _, lvl := range c.levels {
		delete(lvl.entries, key)
	}
}

// Clear drops everything at every zoom level.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// AddListener registers a callback fired once per drained render batch,
// after new surfaces became ready.
func (c *Cache) AddListener(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Stats returns an observability snapshot.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Stats{
		Hits:           c.hits,
		Misses:         c.misses,
		Evictions:      c.evictions,
		QueueLen:       len(c.queue),
		ServerDisabled: c.serverDisabled,
	}
	for z, lvl := range c.levels {
		s.CacheSizes[z] = len(lvl.entries)
	}
	return s
}

// ChunkGrid returns the chunk grid dimensions for the current map.
func (c *Cache) ChunkGrid() (rows, cols int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.chunkGridLocked()
}

// Start runs the render queue until ctx is done.
func (c *Cache) Start(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.wake:
			}
			for c.DrainOnce(ctx) > 0 {
				select {
				case <-ctx.Done():
					return
				default:
				}
			}
		}
	}()
}

// DrainOnce populates at most one batch of queued chunks, runs the
// eviction pass, and notifies listeners once. It returns the number of
// chunks processed; frame-driven hosts may call it instead of Start.
func (c *Cache) DrainOnce(ctx context.Context) int {
	batch := c.takeBatch()
	if len(batch) == 0 {
		return 0
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.RenderBatch)
	for _, ch := range batch {
		ch := ch
		g.Go(func() error {
			c.populate(gctx, ch)
			return nil
		})
	}
	// Populations absorb their own failures; the group only propagates
	// context cancellation.
	_ = g.Wait()

	c.mu.Lock()
	c.evictLocked()
	fns := append([]func(){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return len(batch)
}

// takeBatch pops up to RenderBatch live chunks from the FIFO queue,
// skipping entries invalidated while they waited.
func (c *Cache) takeBatch() []*chunk {
	c.mu.Lock()
	defer c.mu.Unlock()
	var batch []*chunk
	for len(batch) < c.cfg.RenderBatch && len(c.queue) > 0 {
		ch := c.queue[0]
		c.queue = c.queue[1:]
		if c.levels[ch.zoom].entries[ch.key] != ch {
			continue
		}
		batch = append(batch, ch)
	}
	return batch
}

func (c *Cache) touchLocked(lvl *level, ch *chunk) {
	lvl.clock++
	ch.lastUsed = lvl.clock
}

// evictLocked enforces every level's budget. Only fully ready chunks are
// candidates; if a level holds nothing but mid-render chunks it may stay
// over budget rather than corrupt in-flight work.
func (c *Cache) evictLocked() {
	for _, lvl := range c.levels {
		for len(lvl.entries) > lvl.budget {
			var victim Key
			var found bool
			var oldest uint64
			for key, ch := range lvl.entries {
				if ch.state != stateReady {
					continue
				}
				if !found || ch.lastUsed < oldest {
					victim, oldest, found = key, ch.lastUsed, true
				}
			}
			if !found {
				break
			}
			delete(lvl.entries, victim)
			c.evictions++
		}
	}
}

func (c *Cache) clearLocked() {
	for z := range c.levels {
		c.levels[z] = &level{
			entries: make(map[Key]*chunk),
			budget:  c.cfg.ZoomBudgets[z],
		}
	}
	c.queue = nil
}

func (c *Cache) chunkGridLocked() (rows, cols int) {
	n := c.cfg.ChunkWindow
	return (c.mapper.Rows + n - 1) / n, (c.mapper.Cols + n - 1) / n
}

// surfaceW is the pixel width of a chunk's seamless isometric footprint.
func (c *Cache) surfaceW(z iso.Zoom) int { return 2 * c.cfg.ChunkWindow * z.Unit() }

// surfaceH is the footprint height.
func (c *Cache) surfaceH(z iso.Zoom) int { return c.cfg.ChunkWindow * z.Unit() }
