package world

import "fmt"

// BlockType enumerates the closed set of world block materials. Air is the
// absence of matter and is never meshed.
type BlockType uint8

const (
	BlockAir BlockType = iota
	BlockGrass
	BlockDirt
	BlockStone
	BlockWater
	BlockBedrock

	blockTypeCount
)

var blockNames = [blockTypeCount]string{
	BlockAir:     "air",
	BlockGrass:   "grass",
	BlockDirt:    "dirt",
	BlockStone:   "stone",
	BlockWater:   "water",
	BlockBedrock: "bedrock",
}

func (t BlockType) String() string {
	if int(t) < len(blockNames) {
		return blockNames[t]
	}
	return fmt.Sprintf("blocktype(%d)", uint8(t))
}

// ParseBlockType resolves a configuration name to a block type.
func ParseBlockType(name string) (BlockType, error) {
	for t, n := range blockNames {
		if n == name {
			return BlockType(t), nil
		}
	}
	return BlockAir, fmt.Errorf("unknown block type %q", name)
}

// Solid reports whether the block occupies its cell for face culling.
func (t BlockType) Solid() bool {
	return t != BlockAir
}

// Appearance captures visual styling for a block material: a flat color used
// by the preview renderer and one texture-atlas tile per face direction.
type Appearance struct {
	Color string
	Tiles [FaceCount]int
}

func tiles(top, side, bottom int) [FaceCount]int {
	return [FaceCount]int{
		FaceEast:  side,
		FaceWest:  side,
		FaceUp:    top,
		FaceDown:  bottom,
		FaceSouth: side,
		FaceNorth: side,
	}
}

var appearances = [blockTypeCount]Appearance{
	BlockAir:     {Color: "#000000", Tiles: tiles(0, 0, 0)},
	BlockGrass:   {Color: "#91cb7d", Tiles: tiles(1, 2, 3)},
	BlockDirt:    {Color: "#9b7653", Tiles: tiles(3, 3, 3)},
	BlockStone:   {Color: "#9f9484", Tiles: tiles(4, 4, 4)},
	BlockWater:   {Color: "#497786", Tiles: tiles(5, 5, 5)},
	BlockBedrock: {Color: "#4d4e52", Tiles: tiles(6, 6, 6)},
}

// Appearance returns the styling table entry for the block type.
func (t BlockType) Appearance() Appearance {
	if int(t) < len(appearances) {
		return appearances[t]
	}
	return appearances[BlockAir]
}

const atlasTilesPerRow = 4

// UVRect is an axis-aligned texture rectangle in atlas space.
type UVRect struct {
	U0, V0 float32
	U1, V1 float32
}

// FaceUV looks up the atlas rectangle for a block face. The lookup is a
// plain table indexed by block type and face direction.
func (t BlockType) FaceUV(face FaceDir) UVRect {
	tile := t.Appearance().Tiles[face]
	step := float32(1) / atlasTilesPerRow
	u := float32(tile%atlasTilesPerRow) * step
	v := float32(tile/atlasTilesPerRow) * step
	return UVRect{U0: u, V0: v, U1: u + step, V1: v + step}
}
