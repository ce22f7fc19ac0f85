// Package iso holds the isometric projection math shared by tile-level
// rendering and the chunk cache. Everything here is pure integer
// arithmetic: the inverse solves the projection equations exactly and
// floors, so screen-to-map is a strict inverse of map-to-screen for every
// tile, zoom, rotation and origin.
package iso

import (
	"fmt"
	"image"
)

// Zoom is one of the four discrete tile scales.
type Zoom int

const (
	ZoomMin Zoom = 0
	ZoomMax Zoom = 3
	// NumZooms is the number of discrete zoom levels.
	NumZooms = 4
)

// Valid reports whether z is a registered zoom level.
func (z Zoom) Valid() bool { return z >= ZoomMin && z <= ZoomMax }

// Unit is the half-tile pixel unit u at this zoom. Level n+1 is exactly
// twice level n; this exactness carries the round-trip and doubling laws.
func (z Zoom) Unit() int { return 4 << z }

// TileWidth is the tile pixel width (2u) at this zoom.
func (z Zoom) TileWidth() int { return 2 * z.Unit() }

// TileHeight is the tile pixel height (u) at this zoom.
func (z Zoom) TileHeight() int { return z.Unit() }

// Rotation is one of the four snap orientations.
type Rotation int

const (
	North Rotation = iota
	East
	South
	West
)

// Next returns the rotation one quarter turn clockwise.
func (r Rotation) Next() Rotation { return (r + 1) & 3 }

func (r Rotation) String() string {
	switch r & 3 {
	case North:
		return "north"
	case East:
		return "east"
	case South:
		return "south"
	}
	return "west"
}

// Point is a screen-space pixel position.
type Point struct {
	X, Y int
}

// Bounds is an inclusive tile-coordinate box.
type Bounds struct {
	MinI, MinJ int
	MaxI, MaxJ int
}

// Mapper projects tile coordinates of a Rows x Cols map to screen pixels
// and back. It carries no mutable state.
type Mapper struct {
	Rows, Cols int
}

// Rotation works on doubled tile coordinates (2i, 2j) relative to the
// doubled map center (Rows, Cols). Quarter turns stay on the doubled
// lattice for any map size, so no intermediate rounding ever happens.
func (m Mapper) rotate(i2, j2 int, r Rotation) (int, int) {
	di, dj := i2-m.Rows, j2-m.Cols
	switch r & 3 {
	case East:
		di, dj = dj, -di
	case South:
		di, dj = -di, -dj
	case West:
		di, dj = -dj, di
	}
	return di + m.Rows, dj + m.Cols
}

// unrotate is the exact inverse of rotate, in the same doubled space.
func (m Mapper) unrotate(i2, j2 int, r Rotation) (int, int) {
	di, dj := i2-m.Rows, j2-m.Cols
	switch r & 3 {
	case East:
		di, dj = -dj, di
	case South:
		di, dj = -di, -dj
	case West:
		di, dj = dj, -di
	}
	return di + m.Rows, dj + m.Cols
}

// MapToScreen returns the top-left pixel of tile (i, j)'s bounding box:
//
//	x = u*(rows - i + j) - ox
//	y = (u/2)*((rows - i) + (cols - j)) - oy
//
// with (i, j) first rotated around the map center.
func (m Mapper) MapToScreen(i, j int, z Zoom, r Rotation, origin Point) Point {
	u := z.Unit()
	i2, j2 := m.rotate(2*i, 2*j, r)
	return Point{
		X: u/2*(2*m.Rows-i2+j2) - origin.X,
		Y: u/4*((2*m.Rows-i2)+(2*m.Cols-j2)) - origin.Y,
	}
}

// ScreenToMap inverts MapToScreen. It solves the two projection equations
// for the rotated tile coordinates, un-rotates exactly, and floors each
// result, so any pixel inside a tile's box maps back to that tile.
func (m Mapper) ScreenToMap(x, y int, z Zoom, r Rotation, origin Point) (i, j int) {
	u := z.Unit()
	p := x + origin.X
	q := y + origin.Y
	// Numerators of the doubled rotated coordinates, scaled by u.
	riNum := (2*m.Rows+m.Cols)*u - p - 2*q
	rjNum := p - 2*q + m.Cols*u
	// Un-rotate in the same scaled space (rotate/unrotate are linear).
	daNum, dbNum := riNum-m.Rows*u, rjNum-m.Cols*u
	switch r & 3 {
	case East:
		daNum, dbNum = -dbNum, daNum
	case South:
		daNum, dbNum = -daNum, -dbNum
	case West:
		daNum, dbNum = dbNum, -daNum
	}
	iNum := daNum + m.Rows*u
	jNum := dbNum + m.Cols*u
	return floorDiv(iNum, 2*u), floorDiv(jNum, 2*u)
}

// VisibleTileBounds inverts the four viewport corners and returns their
// tile bounding box, padded by one tile for edge overlap and clamped to
// the map.
func (m Mapper) VisibleTileBounds(view image.Rectangle, z Zoom, r Rotation, origin Point) Bounds {
	corners := [4][2]int{
		{view.Min.X, view.Min.Y},
		{view.Max.X, view.Min.Y},
		{view.Min.X, view.Max.Y},
		{view.Max.X, view.Max.Y},
	}
	var b Bounds
	for n, c := range corners {
		i, j := m.ScreenToMap(c[0], c[1], z, r, origin)
		if n == 0 {
			b = Bounds{MinI: i, MinJ: j, MaxI: i, MaxJ: j}
			continue
		}
		b.MinI = min(b.MinI, i)
		b.MinJ = min(b.MinJ, j)
		b.MaxI = max(b.MaxI, i)
		b.MaxJ = max(b.MaxJ, j)
	}
	b.MinI = clamp(b.MinI-1, 0, m.Rows-1)
	b.MaxI = clamp(b.MaxI+1, 0, m.Rows-1)
	b.MinJ = clamp(b.MinJ-1, 0, m.Cols-1)
	b.MaxJ = clamp(b.MaxJ+1, 0, m.Cols-1)
	return b
}

// CheckZoom returns an error for zoom levels outside the registered range.
func CheckZoom(z Zoom) error {
	if !z.Valid() {
		return fmt.Errorf("iso: zoom level %d out of range [%d,%d]", z, ZoomMin, ZoomMax)
	}
	return nil
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
