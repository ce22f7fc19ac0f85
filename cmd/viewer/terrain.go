package main

import "github.com/fieldstone/isomap/engine/land"

// demoTerrain is a procedural stand-in for the terrain-data loader: a
// deterministic hash picks each cell's land class, edge shapes between
// classes, and sprinkles vegetation markers. It only exists so the viewer
// has something to render without map data.
type demoTerrain struct {
	rows, cols int
}

func (d demoTerrain) TileID(row, col int) land.ID {
	if row < 0 || col < 0 || row >= d.rows || col >= d.cols {
		return 0
	}

	c := d.classAt(row, col)
	v := uint8(cellHash(row, col) >> 8 & 3)

	// Cells whose coarse neighborhood changes class become edges; the
	// exact edge type only matters visually, not structurally.
	t := land.TypeCenter
	switch {
	case d.classAt(row-1, col) != c:
		t = land.TypeEdgeNorth
	case d.classAt(row+1, col) != c:
		t = land.TypeEdgeSouth
	case d.classAt(row, col-1) != c:
		t = land.TypeEdgeWest
	case d.classAt(row, col+1) != c:
		t = land.TypeEdgeEast
	case c == land.ClassGrass && cellHash(row, col)&0x3F == 0:
		t = land.TypeSpecial // scattered trees
	}
	return land.Make(c, t, v)
}

// classAt picks the land class from a coarse 8x8 neighborhood hash so
// classes form patches instead of per-tile noise.
func (d demoTerrain) classAt(row, col int) land.Class {
	h := cellHash(row>>3, col>>3)
	switch {
	case h%11 < 5:
		return land.ClassGrass
	case h%11 < 8:
		return land.ClassMidGrass
	case h%11 < 10:
		return land.ClassDryGround
	default:
		return land.ClassWater
	}
}

func cellHash(x, y int) uint32 {
	h := uint32(x*73856093) ^ uint32(y*19349663)
	h ^= h >> 13
	h *= 0x5bd1e995
	h ^= h >> 15
	return h
}
