package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/sirupsen/logrus"

	"github.com/fieldstone/isomap/engine/atlas"
	"github.com/fieldstone/isomap/engine/chunkcache"
	"github.com/fieldstone/isomap/engine/config"
	"github.com/fieldstone/isomap/engine/fetch"
	"github.com/fieldstone/isomap/engine/iso"
	"github.com/fieldstone/isomap/engine/land"
	"github.com/fieldstone/isomap/engine/texcache"
)

const (
	ScreenWidth  = 1280
	ScreenHeight = 720
)

type uploadKey struct {
	chunkcache.Key
	zoom iso.Zoom
}

type upload struct {
	src *image.RGBA
	img *ebiten.Image
}

// Game implements ebiten.Game over the chunk cache pipeline.
type Game struct {
	log    logrus.FieldLogger
	mapper iso.Mapper
	chunks *chunkcache.Cache

	origin   iso.Point
	zoom     iso.Zoom
	rotation iso.Rotation

	// GPU copies of ready chunk surfaces, re-uploaded when the cache
	// replaces a surface.
	uploads map[uploadKey]*upload

	dragging     bool
	dragX, dragY int

	hoverI, hoverJ int
}

func NewGame(cfg *config.Config, log logrus.FieldLogger, rows, cols int) *Game {
	var remoteChunks fetch.ChunkFetcher
	var textureSrc fetch.TextureFetcher = offlineFetcher{}
	var atlasSrc fetch.AtlasFetcher = offlineFetcher{}
	if cfg.Server.BaseURL != "" {
		client := fetch.NewHTTPClient(cfg.Server.BaseURL, time.Duration(cfg.Server.TimeoutSeconds)*time.Second)
		remoteChunks, textureSrc, atlasSrc = client, client, client
	}

	textures := texcache.New(textureSrc, cfg.Renderer.TextureCacheSize, log)
	atlases := atlas.New(atlasSrc, log)

	ccfg := chunkcache.Config{
		MapName:     "demo",
		ChunkWindow: cfg.Renderer.ChunkWindow,
		RenderBatch: cfg.Renderer.RenderBatch,
	}
	copy(ccfg.ZoomBudgets[:], cfg.Renderer.ZoomBudgets)

	chunks := chunkcache.New(ccfg, demoTerrain{rows: rows, cols: cols}, textures, atlases, remoteChunks, log)
	chunks.SetMapInfo("demo", rows, cols)
	chunks.SetSeason(land.SeasonSummer)

	g := &Game{
		log:     log,
		mapper:  iso.Mapper{Rows: rows, Cols: cols},
		chunks:  chunks,
		zoom:    2,
		uploads: make(map[uploadKey]*upload),
	}
	// Start looking at the map center.
	c := g.mapper.MapToScreen(rows/2, cols/2, g.zoom, iso.North, iso.Point{})
	g.origin = iso.Point{X: c.X - ScreenWidth/2, Y: c.Y - ScreenHeight/2}
	return g
}

// offlineFetcher serves nothing; every tier degrades to fallback colors.
type offlineFetcher struct{}

func (offlineFetcher) FetchTexture(ctx context.Context, set land.TerrainSet, season land.Season, id land.ID) ([]byte, error) {
	return nil, fetch.ErrNotFound
}

func (offlineFetcher) FetchAtlas(ctx context.Context, set land.TerrainSet, season land.Season) ([]byte, *fetch.AtlasManifest, error) {
	return nil, nil, fetch.ErrNotFound
}

func (g *Game) Update() error {
	g.handlePan()
	g.handleZoom()

	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		g.rotation = g.rotation.Next()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyT) {
		g.chunks.SetTerrain(land.SetWinter)
		clear(g.uploads)
	}

	mx, my := ebiten.CursorPosition()
	g.hoverI, g.hoverJ = g.mapper.ScreenToMap(mx, my, g.zoom, g.rotation, g.origin)
	return nil
}

func (g *Game) handlePan() {
	const speed = 12
	if ebiten.IsKeyPressed(ebiten.KeyArrowLeft) || ebiten.IsKeyPressed(ebiten.KeyA) {
		g.origin.X -= speed
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowRight) || ebiten.IsKeyPressed(ebiten.KeyD) {
		g.origin.X += speed
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowUp) || ebiten.IsKeyPressed(ebiten.KeyW) {
		g.origin.Y -= speed
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowDown) || ebiten.IsKeyPressed(ebiten.KeyS) {
		g.origin.Y += speed
	}

	if ebiten.IsMouseButtonPressed(ebiten.MouseButtonRight) {
		x, y := ebiten.CursorPosition()
		if g.dragging {
			g.origin.X -= x - g.dragX
			g.origin.Y -= y - g.dragY
		}
		g.dragging = true
		g.dragX, g.dragY = x, y
	} else {
		g.dragging = false
	}
}

// handleZoom steps through the discrete levels, keeping the point under
// the cursor stationary: projections double per level, so the new origin
// is derived from the old one and the cursor position.
func (g *Game) handleZoom() {
	_, wheel := ebiten.Wheel()
	mx, my := ebiten.CursorPosition()
	switch {
	case wheel > 0 && g.zoom < iso.ZoomMax:
		g.zoom++
		g.origin = iso.Point{X: 2*g.origin.X + mx, Y: 2*g.origin.Y + my}
	case wheel < 0 && g.zoom > iso.ZoomMin:
		g.zoom--
		g.origin = iso.Point{X: (g.origin.X - mx) / 2, Y: (g.origin.Y - my) / 2}
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(color.RGBA{12, 14, 20, 255})

	minRow, minCol, maxRow, maxCol := g.chunks.VisibleChunkRange(
		image.Rect(0, 0, ScreenWidth, ScreenHeight), g.zoom, g.origin)

	visible := make(map[uploadKey]bool)
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			surf, err := g.chunks.GetSurface(row, col, g.zoom)
			if err != nil {
				g.log.WithError(err).Warn("chunk lookup failed")
				continue
			}
			if surf == nil {
				continue // rendering, try again next frame
			}
			key := uploadKey{Key: chunkcache.Key{Row: row, Col: col}, zoom: g.zoom}
			visible[key] = true
			up := g.uploads[key]
			if up == nil || up.src != surf {
				up = &upload{src: surf, img: ebiten.NewImageFromImage(surf)}
				g.uploads[key] = up
			}
			rect := g.chunks.ChunkScreenRect(row, col, g.zoom, g.origin)
			op := &ebiten.DrawImageOptions{}
			op.GeoM.Translate(float64(rect.Min.X), float64(rect.Min.Y))
			screen.DrawImage(up.img, op)
		}
	}
	// Release GPU copies of chunks that scrolled out or were evicted.
	for key := range g.uploads {
		if !visible[key] {
			g.uploads[key].img.Deallocate()
			delete(g.uploads, key)
		}
	}

	g.drawHover(screen)
	g.drawHUD(screen)
}

// drawHover outlines the tile under the cursor using the rotated
// projection, so rotating with R visibly remaps picking.
func (g *Game) drawHover(screen *ebiten.Image) {
	i, j := g.hoverI, g.hoverJ
	if i < 0 || j < 0 || i >= g.mapper.Rows || j >= g.mapper.Cols {
		return
	}
	p := g.mapper.MapToScreen(i, j, g.zoom, g.rotation, g.origin)
	w := float32(g.zoom.TileWidth())
	h := float32(g.zoom.TileHeight())
	x, y := float32(p.X), float32(p.Y)
	clr := color.RGBA{255, 255, 255, 180}
	vector.StrokeLine(screen, x+w/2, y, x+w, y+h/2, 1, clr, false)
	vector.StrokeLine(screen, x+w, y+h/2, x+w/2, y+h, 1, clr, false)
	vector.StrokeLine(screen, x+w/2, y+h, x, y+h/2, 1, clr, false)
	vector.StrokeLine(screen, x, y+h/2, x+w/2, y, 1, clr, false)
}

func (g *Game) drawHUD(screen *ebiten.Image) {
	s := g.chunks.Stats()
	msg := fmt.Sprintf(
		"zoom %d  rot %s  tile (%d,%d)\nhits %d  misses %d  evictions %d  queue %d\nchunks z0-z3: %v  server tier off: %v\nWASD/drag pan - wheel zoom - R rotate - T winter",
		g.zoom, g.rotation, g.hoverI, g.hoverJ,
		s.Hits, s.Misses, s.Evictions, s.QueueLen,
		s.CacheSizes, s.ServerDisabled,
	)
	ebitenutil.DebugPrint(screen, msg)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return ScreenWidth, ScreenHeight
}

func main() {
	configPath := flag.String("config", "", "path to engine YAML config")
	serverURL := flag.String("server", "", "asset server base URL (overrides config)")
	mapSize := flag.Int("map-size", 2000, "demo map edge length in tiles")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logrus.WithError(err).Fatal("config")
		}
		cfg = loaded
	}
	if *serverURL != "" {
		cfg.Server.BaseURL = *serverURL
	}

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(lvl)
	}

	game := NewGame(cfg, log, *mapSize, *mapSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	game.chunks.Start(ctx)
	game.chunks.AddListener(func() {
		log.Debug("chunk batch ready")
	})

	ebiten.SetWindowSize(ScreenWidth, ScreenHeight)
	ebiten.SetWindowTitle("isomap viewer")
	if err := ebiten.RunGame(game); err != nil {
		log.WithError(err).Fatal("viewer exited")
	}
}
