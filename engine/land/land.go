package land

import "image/color"

// ID is the packed per-cell land identity byte.
//
// Layout: bits 7-6 = Class (terrain zone), bits 5-2 = Type (shape and
// orientation within the zone), bits 1-0 = Var (visual variation).
// Everything about a tile's base appearance derives from this one byte.
type ID uint8

// Class is the terrain zone a tile belongs to.
type Class uint8

const (
	ClassGrass Class = iota
	ClassMidGrass
	ClassDryGround
	ClassWater
)

// Type is the shape/orientation of a tile within its class.
type Type uint8

const (
	TypeCenter Type = iota
	TypeEdgeNorth
	TypeEdgeEast
	TypeEdgeSouth
	TypeEdgeWest
	TypeCornerNE
	TypeCornerSE
	TypeCornerSW
	TypeCornerNW
	// TypeSpecial marks vegetation and other tall objects that the base
	// terrain layer replaces with flat ground; the object itself is drawn
	// by the overlay layer.
	TypeSpecial Type = 0x0F
)

const (
	classMask = 0xC0
	typeMask  = 0x3C
	varMask   = 0x03

	classShift = 6
	typeShift  = 2
)

// Make packs a class, type and variation into an ID.
func Make(c Class, t Type, v uint8) ID {
	return ID(uint8(c)<<classShift&classMask | uint8(t)<<typeShift&typeMask | v&varMask)
}

// Class extracts the terrain zone.
func (id ID) Class() Class { return Class(uint8(id) >> classShift) }

// Type extracts the shape/orientation field.
func (id ID) Type() Type { return Type((uint8(id) & typeMask) >> typeShift) }

// Var extracts the 4-way visual variation.
func (id ID) Var() uint8 { return uint8(id) & varMask }

// IsSpecial reports whether the tile carries a vegetation/special object.
func (id ID) IsSpecial() bool { return id.Type() == TypeSpecial }

// Flatten strips the type and variation fields, keeping only the class.
// Applying it twice yields the same result as applying it once.
func (id ID) Flatten() ID { return id & classMask }

var classColors = [4]color.RGBA{
	ClassGrass:     {58, 121, 39, 255},
	ClassMidGrass:  {107, 144, 62, 255},
	ClassDryGround: {155, 118, 83, 255},
	ClassWater:     {38, 84, 145, 255},
}

// FallbackColor returns the flat color drawn when no bitmap is available
// for a tile. It depends only on the class plus the low variation bits, so
// the same id always yields the same color and classes stay distinct.
func (id ID) FallbackColor() color.RGBA {
	c := classColors[id.Class()]
	// Nudge brightness a little per variation so adjacent tiles don't
	// merge into one flat field.
	d := int16(id.Var()) * 6
	return color.RGBA{
		R: clamp8(int16(c.R) + d),
		G: clamp8(int16(c.G) + d),
		B: clamp8(int16(c.B) + d),
		A: 255,
	}
}

func clamp8(v int16) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
