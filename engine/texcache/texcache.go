// Package texcache caches decoded per-tile textures keyed by tile id for
// the current terrain set and season. Lookups never block; a miss starts
// one background load and later lookups attach to it. Eviction is strict
// LRU over a logical access clock and never touches in-flight loads.
package texcache

import (
	"bytes"
	"context"
	"errors"
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

// DefaultCapacity bounds the number of resident entries when no explicit
// capacity is configured.
const DefaultCapacity = 256

type entryState uint8

const (
	statePending entryState = iota
	stateReady
	stateAbsent // confirmed missing at the source, never retried
)

type entry struct {
	state    entryState
	img      *image.RGBA
	err      error         // transient load error, for waiters only
	done     chan struct{} // closed once the load settles
	lastUsed uint64
}

// Stats is a snapshot of cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Fetches   uint64
	Size      int
}

// Cache is the per-tile-id texture cache. All methods are safe for
// concurrent use.
type Cache struct {
	mu       sync.Mutex
	fetcher  fetch.TextureFetcher
	entries  map[land.ID]*entry
	set      land.TerrainSet
	season   land.Season
	capacity int
	clock    uint64
	stats    Stats
	log      logrus.FieldLogger
}

// New builds a cache reading through the given fetcher. A nil log
// discards output; capacity <= 0 selects DefaultCapacity.
func New(fetcher fetch.TextureFetcher, capacity int, log logrus.FieldLogger) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Cache{
		fetcher:  fetcher,
		entries:  make(map[land.ID]*entry),
		capacity: capacity,
		log:      log.WithField("component", "texcache"),
	}
}

// Get returns the decoded texture for id if it is resident. A first miss
// starts a background load as a side effect and reports not-ready; a
// confirmed-absent id reports not-ready without fetching again.
func (c *Cache) Get(id land.ID) (*image.RGBA, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[id]
	if !ok {
		c.startLoadLocked(id)
		c.stats.Misses++
		return nil, false
	}
	switch e.state {
	case stateReady:
		c.touchLocked(e)
		c.stats.Hits++
		return e.img, true
	case stateAbsent:
		c.touchLocked(e)
		return nil, false
	default: // pending
		return nil, false
	}
}

// GetWait is the awaitable variant of Get: it resolves once loading
// settles. A confirmed-absent texture yields fetch.ErrNotFound; transient
// load failures yield their error and stay retryable.
func (c *Cache) GetWait(ctx context.Context, id land.ID) (*image.RGBA, error) {
	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		e = c.startLoadLocked(id)
		c.stats.Misses++
	}
	switch e.state {
	case stateReady:
		c.touchLocked(e)
		c.stats.Hits++
		img := e.img
		c.mu.Unlock()
		return img, nil
	case stateAbsent:
		c.touchLocked(e)
		c.mu.Unlock()
		return nil, fetch.ErrNotFound
	}
	done := e.done
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch e.state {
	case stateReady:
		c.touchLocked(e)
		return e.img, nil
	case stateAbsent:
		return nil, fetch.ErrNotFound
	default:
		return nil, e.err
	}
}

// SetTerrain switches the terrain set. Textures are not reusable across
// sets, so the whole cache is released.
func (c *Cache) SetTerrain(set land.TerrainSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if set == c.set {
		return
	}
	c.set = set
	c.clearLocked()
}

// SetSeason switches the season, releasing the whole cache.
func (c *Cache) SetSeason(season land.Season) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if season == c.season {
		return
	}
	c.season = season
	c.clearLocked()
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.entries)
	return s
}

// startLoadLocked inserts a pending entry and spawns its load. In-flight
// dedup falls out of the entry map: a second request for the same id finds
// the pending entry and attaches instead of fetching again.
func (c *Cache) startLoadLocked(id land.ID) *entry {
	e := &entry{state: statePending, done: make(chan struct{})}
	c.entries[id] = e
	c.stats.Fetches++
	go c.load(id, e, c.set, c.season)
	return e
}

func (c *Cache) load(id land.ID, e *entry, set land.TerrainSet, season land.Season) {
	data, err := c.fetcher.FetchTexture(context.Background(), set, season, id)
	var img *image.RGBA
	if err == nil {
		img, err = decodeRGBA(data)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	defer close(e.done)

	// The cache may have been cleared (terrain/season change) while the
	// load was in flight; the settled entry then belongs to nobody.
	current := c.entries[id] == e

	switch {
	case err == nil:
		e.state = stateReady
		e.img = img
	case errors.Is(err, fetch.ErrNotFound):
		e.state = stateAbsent
	default:
		// Transient failure: drop the entry so the next miss retries.
		e.err = err
		if current {
			delete(c.entries, id)
		}
		c.log.WithError(err).WithField("tile", fmt.Sprintf("%#02x", uint8(id))).
			Debug("texture load failed")
		return
	}
	if current {
		c.touchLocked(e)
		c.evictLocked()
	}
}

func (c *Cache) touchLocked(e *entry) {
	c.clock++
	e.lastUsed = c.clock
}

// evictLocked enforces the capacity. Entries mid-load are never
// candidates; if nothing is evictable the cache temporarily exceeds its
// capacity rather than corrupt in-flight work.
func (c *Cache) evictLocked() {
	for len(c.entries) > c.capacity {
		var victim land.ID
		var found bool
		var oldest uint64
		for id, e := range c.entries {
			if e.state == statePending {
				continue
			}
			if !found || e.lastUsed < oldest {
				victim, oldest, found = id, e.lastUsed, true
			}
		}
		if !found {
			return
		}
		delete(c.entries, victim)
		c.stats.Evictions++
	}
}

func (c *Cache) clearLocked() {
	c.entries = make(map[land.ID]*entry)
	c.clock = 0
}

func decodeRGBA(data []byte) (*image.RGBA, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("texcache: decode: %w", err)
	}
	if rgba, ok := src.(*image.RGBA); ok {
		return rgba, nil
	}
	dst := image.NewRGBA(src.Bounds())
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst, nil
}
