package world

import (
	"errors"
	"fmt"
	"math"
)

// RegionCoord identifies a region in global region space. Regions are
// columnar: they tile the XZ plane and span the full world height.
type RegionCoord struct {
	X int
	Z int
}

func (c RegionCoord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Z)
}

// Dimensions defines the size of a region in blocks.
type Dimensions struct {
	Size   int // blocks per horizontal axis
	Height int // vertical blocks
}

func (d Dimensions) Volume() int {
	return d.Size * d.Size * d.Height
}

// LocateRegion maps a world block coordinate to its owning region. The
// mapping is floored division, total over the full signed domain.
func LocateRegion(worldX, worldZ, size int) RegionCoord {
	return RegionCoord{
		X: floorDiv(worldX, size),
		Z: floorDiv(worldZ, size),
	}
}

func floorDiv(value, size int) int {
	if size <= 0 {
		return 0
	}
	if value >= 0 {
		return value / size
	}
	return -((-value - 1) / size) - 1
}

// ChebyshevDist is the streaming distance metric: the active set is "N
// regions in each direction" around the observer.
func ChebyshevDist(a, b RegionCoord) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dz := a.Z - b.Z
	if dz < 0 {
		dz = -dz
	}
	if dx > dz {
		return dx
	}
	return dz
}

// ErrCoordOutOfRange marks region coordinates whose block range cannot be
// represented. Such coordinates are rejected per request and stay unloaded.
var ErrCoordOutOfRange = errors.New("region coordinate outside representable block range")

const maxWorldBlock = math.MaxInt32

// ValidateCoord rejects coordinates whose world-space block origin would
// leave the representable range.
func ValidateCoord(coord RegionCoord, dim Dimensions) error {
	if dim.Size <= 0 {
		return fmt.Errorf("region size must be positive, got %d", dim.Size)
	}
	limit := maxWorldBlock / dim.Size
	if coord.X > limit || coord.X < -limit || coord.Z > limit || coord.Z < -limit {
		return fmt.Errorf("region %v: %w", coord, ErrCoordOutOfRange)
	}
	return nil
}

// Region owns a dense block grid for one cell of world space. The grid is
// column-major: each (x,z) column is one contiguous subslice, so generation
// workers can fill disjoint columns without synchronisation.
//
// A region is observable in exactly two grid states: ungenerated (all Air)
// or fully generated. MarkGenerated is the barrier between them; surface
// extraction refuses ungenerated regions.
type Region struct {
	Coord RegionCoord

	dim       Dimensions
	blocks    []BlockType
	generated bool
}

func NewRegion(coord RegionCoord, dim Dimensions) *Region {
	return &Region{
		Coord:  coord,
		dim:    dim,
		blocks: make([]BlockType, dim.Volume()),
	}
}

func (r *Region) Dimensions() Dimensions {
	return r.dim
}

// Origin returns the region's world-space block origin.
func (r *Region) Origin() (x, y, z int) {
	return r.Coord.X * r.dim.Size, 0, r.Coord.Z * r.dim.Size
}

func (r *Region) index(x, y, z int) int {
	return (x*r.dim.Size+z)*r.dim.Height + y
}

func (r *Region) inBounds(x, y, z int) bool {
	return x >= 0 && x < r.dim.Size &&
		y >= 0 && y < r.dim.Height &&
		z >= 0 && z < r.dim.Size
}

// Block returns the block at the local coordinate. Out-of-range coordinates
// report false rather than clamping.
func (r *Region) Block(x, y, z int) (BlockType, bool) {
	if !r.inBounds(x, y, z) {
		return BlockAir, false
	}
	return r.blocks[r.index(x, y, z)], true
}

// blockOrAir treats everything outside the grid as Air. Face culling relies
// on this: an absent neighbor means the face is visible.
func (r *Region) blockOrAir(x, y, z int) BlockType {
	if !r.inBounds(x, y, z) {
		return BlockAir
	}
	return r.blocks[r.index(x, y, z)]
}

func (r *Region) SetBlock(x, y, z int, t BlockType) bool {
	if !r.inBounds(x, y, z) {
		return false
	}
	r.blocks[r.index(x, y, z)] = t
	return true
}

// Column returns the vertical column at (x,z) as a mutable subslice of the
// grid. Distinct columns never alias.
func (r *Region) Column(x, z int) []BlockType {
	if x < 0 || x >= r.dim.Size || z < 0 || z >= r.dim.Size {
		return nil
	}
	start := r.index(x, 0, z)
	return r.blocks[start : start+r.dim.Height]
}

// MarkGenerated publishes the grid as fully generated. Callers must not
// mutate blocks afterwards.
func (r *Region) MarkGenerated() {
	r.generated = true
}

func (r *Region) Generated() bool {
	return r.generated
}

// Count reports how many cells hold the given block type.
func (r *Region) Count(t BlockType) int {
	n := 0
	for _, b := range r.blocks {
		if b == t {
			n++
		}
	}
	return n
}

// SolidCount reports the number of non-Air cells.
func (r *Region) SolidCount() int {
	return r.dim.Volume() - r.Count(BlockAir)
}

// ForEachBlock visits every non-Air cell in local coordinates. Returning
// false from fn stops the walk.
func (r *Region) ForEachBlock(fn func(x, y, z int, t BlockType) bool) {
	for x := 0; x < r.dim.Size; x++ {
		for z := 0; z < r.dim.Size; z++ {
			column := r.Column(x, z)
			for y, t := range column {
				if t == BlockAir {
					continue
				}
				if !fn(x, y, z, t) {
					return
				}
			}
		}
	}
}
