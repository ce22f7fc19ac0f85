package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fieldstone/isomap/engine/land"
)

func newServer(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL, 2*time.Second)
}

func TestFetchTextureOK(t *testing.T) {
	var gotPath string
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("png-bytes"))
	})

	data, err := c.FetchTexture(context.Background(), land.SetGreen, land.SeasonSummer, 0x41)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("data = %q", data)
	}
	if gotPath != "/textures/green/summer/41.png" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestNotFoundMapsToErrNotFound(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	_, err := c.FetchChunk(context.Background(), "alpha", land.SetGreen, land.SeasonSummer, 2, 3, 4)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestServerErrorIsTransient(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	_, err := c.FetchTexture(context.Background(), land.SetGreen, land.SeasonSummer, 1)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrNotFound) {
		t.Fatal("5xx must not be terminal not-found")
	}
}

func TestFetchAtlasDecodesManifest(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/atlas/winter/winter.png":
			w.Write([]byte("atlas-bitmap"))
		case "/atlas/winter/winter.json":
			w.Write([]byte(`{"tile_w":64,"tile_h":32,"rects":{"64":{"x":0,"y":0,"w":64,"h":32}}}`))
		default:
			http.NotFound(w, r)
		}
	})

	img, man, err := c.FetchAtlas(context.Background(), land.SetWinter, land.SeasonWinter)
	if err != nil {
		t.Fatalf("fetch atlas: %v", err)
	}
	if string(img) != "atlas-bitmap" {
		t.Fatalf("bitmap = %q", img)
	}
	if man.TileWidth != 64 || man.TileHeight != 32 {
		t.Fatalf("manifest dims = %dx%d", man.TileWidth, man.TileHeight)
	}
	r, ok := man.Rects[land.ID(0x40)]
	if !ok || r.Width != 64 {
		t.Fatalf("rects = %+v", man.Rects)
	}
}

func TestChunkURLShape(t *testing.T) {
	var gotPath string
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("x"))
	})
	if _, err := c.FetchChunk(context.Background(), "alpha", land.SetWasteland, land.SeasonAutumn, 1, 12, 7); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/chunks/alpha/wasteland/autumn/z1/12_7.png" {
		t.Fatalf("path = %q", gotPath)
	}
}
