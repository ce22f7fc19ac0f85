package iso

import (
	"image"
	"testing"
)

var testOrigins = []Point{
	{0, 0},
	{137, -52},
	{-4096, 977},
}

var allRotations = []Rotation{North, East, South, West}

func TestRoundTripAllZoomsRotationsOrigins(t *testing.T) {
	m := Mapper{Rows: 48, Cols: 36}
	for z := ZoomMin; z <= ZoomMax; z++ {
		for _, r := range allRotations {
			for _, o := range testOrigins {
				for i := 0; i < m.Rows; i++ {
					for j := 0; j < m.Cols; j++ {
						p := m.MapToScreen(i, j, z, r, o)
						gi, gj := m.ScreenToMap(p.X, p.Y, z, r, o)
						if gi != i || gj != j {
							t.Fatalf("zoom %d rot %v origin %v: (%d,%d) -> %v -> (%d,%d)",
								z, r, o, i, j, p, gi, gj)
						}
					}
				}
			}
		}
	}
}

func TestRoundTripOddDimensions(t *testing.T) {
	// Quarter turns on a map with mismatched row/col parity must still
	// invert exactly.
	m := Mapper{Rows: 31, Cols: 20}
	for _, r := range allRotations {
		for i := 0; i < m.Rows; i++ {
			for j := 0; j < m.Cols; j++ {
				p := m.MapToScreen(i, j, 1, r, Point{X: 9, Y: -3})
				gi, gj := m.ScreenToMap(p.X, p.Y, 1, r, Point{X: 9, Y: -3})
				if gi != i || gj != j {
					t.Fatalf("rot %v: (%d,%d) -> %v -> (%d,%d)", r, i, j, p, gi, gj)
				}
			}
		}
	}
}

func TestZoomDoubling(t *testing.T) {
	m := Mapper{Rows: 200, Cols: 200}
	for z := ZoomMin; z < ZoomMax; z++ {
		for _, o := range testOrigins {
			for i := 0; i < m.Rows; i += 7 {
				for j := 0; j < m.Cols; j += 7 {
					lo := m.MapToScreen(i, j, z, North, o)
					hi := m.MapToScreen(i, j, z+1, North, Point{X: 2 * o.X, Y: 2 * o.Y})
					if hi.X != 2*lo.X || hi.Y != 2*lo.Y {
						t.Fatalf("zoom %d->%d at (%d,%d): %v vs %v", z, z+1, i, j, lo, hi)
					}
				}
			}
		}
	}
}

func TestZoomUnits(t *testing.T) {
	want := [NumZooms]int{4, 8, 16, 32}
	for z := ZoomMin; z <= ZoomMax; z++ {
		if z.Unit() != want[z] {
			t.Fatalf("zoom %d unit = %d, want %d", z, z.Unit(), want[z])
		}
		if z.TileWidth() != 2*want[z] || z.TileHeight() != want[z] {
			t.Fatalf("zoom %d tile = %dx%d", z, z.TileWidth(), z.TileHeight())
		}
	}
	if ZoomMax.Valid() == false || Zoom(4).Valid() || Zoom(-1).Valid() {
		t.Fatal("zoom validity broken")
	}
}

func TestRotationIdentityAtCenter(t *testing.T) {
	m := Mapper{Rows: 64, Cols: 40}
	ci, cj := m.Rows/2, m.Cols/2
	base := m.MapToScreen(ci, cj, 2, North, Point{X: 11, Y: 23})
	for _, r := range allRotations {
		if p := m.MapToScreen(ci, cj, 2, r, Point{X: 11, Y: 23}); p != base {
			t.Fatalf("center tile moved under rotation %v: %v != %v", r, p, base)
		}
	}
}

func TestRotation180Symmetry(t *testing.T) {
	m := Mapper{Rows: 50, Cols: 34}
	o := Point{X: -7, Y: 19}
	for i := 0; i <= m.Rows; i += 3 {
		for j := 0; j <= m.Cols; j += 3 {
			south := m.MapToScreen(i, j, 1, South, o)
			mirror := m.MapToScreen(m.Rows-i, m.Cols-j, 1, North, o)
			if south != mirror {
				t.Fatalf("(%d,%d): south %v != mirrored north %v", i, j, south, mirror)
			}
		}
	}
}

func TestVisibleTileBoundsClampedAndPadded(t *testing.T) {
	m := Mapper{Rows: 200, Cols: 200}
	// A viewport far larger than the map must clamp to the full map.
	huge := image.Rect(-100000, -100000, 100000, 100000)
	b := m.VisibleTileBounds(huge, 2, North, Point{})
	if b.MinI != 0 || b.MinJ != 0 || b.MaxI != 199 || b.MaxJ != 199 {
		t.Fatalf("huge viewport bounds = %+v", b)
	}

	// A viewport around a single tile must include that tile plus at
	// least the one-tile pad.
	z := Zoom(2)
	p := m.MapToScreen(100, 100, z, North, Point{})
	view := image.Rect(p.X, p.Y, p.X+z.TileWidth(), p.Y+z.TileHeight())
	b = m.VisibleTileBounds(view, z, North, Point{})
	if b.MinI > 99 || b.MaxI < 101 || b.MinJ > 99 || b.MaxJ < 101 {
		t.Fatalf("tile viewport bounds too tight: %+v", b)
	}
	if b.MinI < 0 || b.MinJ < 0 || b.MaxI > 199 || b.MaxJ > 199 {
		t.Fatalf("tile viewport bounds out of map: %+v", b)
	}
}

func TestBackToFront(t *testing.T) {
	type item struct{ i, j int }
	items := []item{{0, 0}, {5, 5}, {2, 1}, {3, 3}, {0, 1}}
	BackToFront(items, func(it item) (int, int) { return it.i, it.j })
	for n := 1; n < len(items); n++ {
		if items[n-1].i+items[n-1].j < items[n].i+items[n].j {
			t.Fatalf("not back-to-front at %d: %+v", n, items)
		}
	}
	if items[0] != (item{5, 5}) {
		t.Fatalf("deepest item not first: %+v", items)
	}
}

func TestDeeper(t *testing.T) {
	if !Deeper(3, 4, 2, 2) {
		t.Fatal("(3,4) should draw before (2,2)")
	}
	if Deeper(1, 1, 1, 1) {
		t.Fatal("equal depth must not be strictly deeper")
	}
}

func TestCheckZoom(t *testing.T) {
	if err := CheckZoom(2); err != nil {
		t.Fatalf("valid zoom rejected: %v", err)
	}
	if err := CheckZoom(7); err == nil {
		t.Fatal("invalid zoom accepted")
	}
}
