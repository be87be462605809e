package world

import (
	"fmt"
	"runtime"
	"sync"
)

// FaceDir enumerates the six axis-aligned block face directions.
type FaceDir uint8

const (
	FaceEast  FaceDir = iota // +X
	FaceWest                 // -X
	FaceUp                   // +Y
	FaceDown                 // -Y
	FaceSouth                // +Z
	FaceNorth                // -Z
)

// FaceCount is the number of block face directions.
const FaceCount = 6

// Vec3 is a geometry-space vector.
type Vec3 [3]float32

// UV is a texture coordinate pair.
type UV [2]float32

var faceOffsets = [FaceCount][3]int{
	FaceEast:  {1, 0, 0},
	FaceWest:  {-1, 0, 0},
	FaceUp:    {0, 1, 0},
	FaceDown:  {0, -1, 0},
	FaceSouth: {0, 0, 1},
	FaceNorth: {0, 0, -1},
}

var faceNormals = [FaceCount]Vec3{
	FaceEast:  {1, 0, 0},
	FaceWest:  {-1, 0, 0},
	FaceUp:    {0, 1, 0},
	FaceDown:  {0, -1, 0},
	FaceSouth: {0, 0, 1},
	FaceNorth: {0, 0, -1},
}

// Quad corners per face in perimeter order, counter-clockwise seen from
// outside the block, relative to the block's minimum corner.
var faceCorners = [FaceCount][4]Vec3{
	FaceEast:  {{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}},
	FaceWest:  {{0, 0, 0}, {0, 0, 1}, {0, 1, 1}, {0, 1, 0}},
	FaceUp:    {{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}},
	FaceDown:  {{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}},
	FaceSouth: {{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1}},
	FaceNorth: {{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}},
}

// Two triangles per quad, fanned over the perimeter corners.
var quadPattern = [6]uint32{0, 1, 3, 3, 1, 2}

// SurfaceBatch is the renderable geometry for one material group of a
// region: flat vertex attributes plus triangle indices into them. Positions
// are region-local; the region's world origin places the batch.
type SurfaceBatch struct {
	Material  BlockType
	Positions []Vec3
	Normals   []Vec3
	UVs       []UV
	Indices   []uint32
}

// FaceCount reports the number of emitted quads.
func (b *SurfaceBatch) FaceCount() int {
	return len(b.Positions) / 4
}

func (b *SurfaceBatch) addFace(x, y, z int, face FaceDir) {
	base := uint32(len(b.Positions))
	fx, fy, fz := float32(x), float32(y), float32(z)
	for _, corner := range faceCorners[face] {
		b.Positions = append(b.Positions, Vec3{fx + corner[0], fy + corner[1], fz + corner[2]})
		b.Normals = append(b.Normals, faceNormals[face])
	}
	rect := b.Material.FaceUV(face)
	b.UVs = append(b.UVs,
		UV{rect.U0, rect.V0},
		UV{rect.U1, rect.V0},
		UV{rect.U1, rect.V1},
		UV{rect.U0, rect.V1},
	)
	for _, idx := range quadPattern {
		b.Indices = append(b.Indices, base+idx)
	}
}

// ExtractSurface derives the region's visible geometry by face culling: a
// face is emitted iff the neighbor cell in its direction is absent, meaning
// Air or outside the region. Out-of-region neighbors deliberately count as
// absent, so boundary faces are always emitted; overlapping quads between
// adjacent regions cost overdraw but never leave holes, and extraction never
// depends on neighbor residency.
//
// The grid must be fully generated and is treated as immutable. Work is
// partitioned into x-slabs so extraction parallelises without shared writes;
// slab results are merged with index renumbering in a fixed order, keeping
// output deterministic.
func ExtractSurface(region *Region) ([]SurfaceBatch, error) {
	if region == nil {
		return nil, fmt.Errorf("region is nil")
	}
	if !region.Generated() {
		return nil, fmt.Errorf("region %v: surface extraction before generation completed", region.Coord)
	}

	dim := region.Dimensions()
	workers := extractWorkers(dim.Size)
	slabs := make([][]*SurfaceBatch, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			slabs[w] = extractSlab(region, w, workers)
		}(w)
	}
	wg.Wait()

	return mergeSlabs(slabs), nil
}

// extractSlab meshes the x columns assigned to one worker, producing at most
// one batch per material, indexed by block type.
func extractSlab(region *Region, worker, workers int) []*SurfaceBatch {
	dim := region.Dimensions()
	batches := make([]*SurfaceBatch, blockTypeCount)

	for x := worker; x < dim.Size; x += workers {
		for z := 0; z < dim.Size; z++ {
			column := region.Column(x, z)
			for y, t := range column {
				if !t.Solid() {
					continue
				}
				for face := FaceDir(0); face < FaceCount; face++ {
					off := faceOffsets[face]
					if region.blockOrAir(x+off[0], y+off[1], z+off[2]).Solid() {
						continue
					}
					b := batches[t]
					if b == nil {
						b = &SurfaceBatch{Material: t}
						batches[t] = b
					}
					b.addFace(x, y, z, face)
				}
			}
		}
	}
	return batches
}

// mergeSlabs concatenates slab batches per material, offsetting indices so
// they reference the merged vertex list. Materials are ordered by block type
// and slabs by worker, so the merge order never depends on scheduling.
func mergeSlabs(slabs [][]*SurfaceBatch) []SurfaceBatch {
	var merged []SurfaceBatch
	for t := BlockType(1); t < blockTypeCount; t++ {
		var out *SurfaceBatch
		for _, slab := range slabs {
			part := slab[t]
			if part == nil {
				continue
			}
			if out == nil {
				merged = append(merged, SurfaceBatch{Material: t})
				out = &merged[len(merged)-1]
			}
			offset := uint32(len(out.Positions))
			out.Positions = append(out.Positions, part.Positions...)
			out.Normals = append(out.Normals, part.Normals...)
			out.UVs = append(out.UVs, part.UVs...)
			for _, idx := range part.Indices {
				out.Indices = append(out.Indices, offset+idx)
			}
		}
	}
	return merged
}

func extractWorkers(size int) int {
	workers := runtime.GOMAXPROCS(0)
	if workers > size {
		workers = size
	}
	if workers <= 0 {
		workers = 1
	}
	return workers
}
