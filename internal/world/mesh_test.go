package world

import (
	"reflect"
	"testing"
)

func generatedRegion(dim Dimensions, fill func(r *Region)) *Region {
	region := NewRegion(RegionCoord{}, dim)
	if fill != nil {
		fill(region)
	}
	region.MarkGenerated()
	return region
}

func totalFaces(batches []SurfaceBatch) int {
	n := 0
	for i := range batches {
		n += batches[i].FaceCount()
	}
	return n
}

func TestExtractSurfaceSingleBlock(t *testing.T) {
	region := generatedRegion(Dimensions{Size: 4, Height: 4}, func(r *Region) {
		r.SetBlock(1, 1, 1, BlockStone)
	})

	batches, err := ExtractSurface(region)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected one material batch, got %d", len(batches))
	}

	b := batches[0]
	if b.Material != BlockStone {
		t.Fatalf("expected stone batch, got %v", b.Material)
	}
	if b.FaceCount() != 6 {
		t.Fatalf("isolated block should emit 6 faces, got %d", b.FaceCount())
	}
	if len(b.Positions) != 24 || len(b.Normals) != 24 || len(b.UVs) != 24 {
		t.Fatalf("expected 24 vertices, got %d/%d/%d", len(b.Positions), len(b.Normals), len(b.UVs))
	}
	if len(b.Indices) != 36 {
		t.Fatalf("expected 36 indices, got %d", len(b.Indices))
	}
	for _, idx := range b.Indices {
		if int(idx) >= len(b.Positions) {
			t.Fatalf("index %d out of range for %d vertices", idx, len(b.Positions))
		}
	}
}

func TestExtractSurfaceCullsInteriorFaces(t *testing.T) {
	dim := Dimensions{Size: 4, Height: 3}
	region := generatedRegion(dim, func(r *Region) {
		for x := 0; x < dim.Size; x++ {
			for z := 0; z < dim.Size; z++ {
				for y := 0; y < dim.Height; y++ {
					r.SetBlock(x, y, z, BlockStone)
				}
			}
		}
	})

	batches, err := ExtractSurface(region)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	// A fully solid region exposes only its hull: every interior face is
	// shared by two solid cells and must be culled.
	wantFaces := 2*dim.Size*dim.Size + 4*dim.Size*dim.Height
	if got := totalFaces(batches); got != wantFaces {
		t.Fatalf("expected %d hull faces, got %d", wantFaces, got)
	}
}

func TestExtractSurfaceBandedSlab(t *testing.T) {
	dim := Dimensions{Size: 4, Height: 5}
	region := generatedRegion(dim, func(r *Region) {
		for x := 0; x < dim.Size; x++ {
			for z := 0; z < dim.Size; z++ {
				r.SetBlock(x, 0, z, BlockStone)
				r.SetBlock(x, 1, z, BlockDirt)
				r.SetBlock(x, 2, z, BlockDirt)
				r.SetBlock(x, 3, z, BlockGrass)
				r.SetBlock(x, 4, z, BlockGrass)
			}
		}
	})

	batches, err := ExtractSurface(region)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(batches) != 3 {
		t.Fatalf("expected 3 material batches, got %d", len(batches))
	}

	faces := map[BlockType]int{}
	vertices := 0
	indices := 0
	for i := range batches {
		b := &batches[i]
		faces[b.Material] = b.FaceCount()
		vertices += len(b.Positions)
		indices += len(b.Indices)
		if len(b.Normals) != len(b.Positions) || len(b.UVs) != len(b.Positions) {
			t.Fatalf("material %v: attribute arrays disagree", b.Material)
		}
		for _, idx := range b.Indices {
			if int(idx) >= len(b.Positions) {
				t.Fatalf("material %v: index %d out of range", b.Material, idx)
			}
		}
	}

	// Stone and dirt layers expose only their sides and the slab underside;
	// the grass layers add the full top.
	if faces[BlockStone] != 32 {
		t.Fatalf("expected 32 stone faces, got %d", faces[BlockStone])
	}
	if faces[BlockDirt] != 32 {
		t.Fatalf("expected 32 dirt faces, got %d", faces[BlockDirt])
	}
	if faces[BlockGrass] != 48 {
		t.Fatalf("expected 48 grass faces, got %d", faces[BlockGrass])
	}
	if vertices != 448 {
		t.Fatalf("expected 448 vertices, got %d", vertices)
	}
	if indices != 672 {
		t.Fatalf("expected 672 indices, got %d", indices)
	}
}

func TestExtractSurfaceEmptyRegion(t *testing.T) {
	region := generatedRegion(Dimensions{Size: 4, Height: 4}, nil)
	batches, err := ExtractSurface(region)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(batches) != 0 {
		t.Fatalf("expected no batches for an empty region, got %d", len(batches))
	}
}

func TestExtractSurfaceRequiresGeneratedRegion(t *testing.T) {
	if _, err := ExtractSurface(nil); err == nil {
		t.Fatal("expected error for nil region")
	}

	region := NewRegion(RegionCoord{}, Dimensions{Size: 4, Height: 4})
	if _, err := ExtractSurface(region); err == nil {
		t.Fatal("expected error for ungenerated region")
	}
}

func TestExtractSurfaceDeterministic(t *testing.T) {
	dim := Dimensions{Size: 8, Height: 8}
	region := generatedRegion(dim, func(r *Region) {
		for x := 0; x < dim.Size; x++ {
			for z := 0; z < dim.Size; z++ {
				height := 1 + (x*7+z*3)%6
				for y := 0; y < height; y++ {
					switch {
					case y == height-1:
						r.SetBlock(x, y, z, BlockGrass)
					case y >= height-3:
						r.SetBlock(x, y, z, BlockDirt)
					default:
						r.SetBlock(x, y, z, BlockStone)
					}
				}
			}
		}
	})

	first, err := ExtractSurface(region)
	if err != nil {
		t.Fatalf("first extract: %v", err)
	}
	second, err := ExtractSurface(region)
	if err != nil {
		t.Fatalf("second extract: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("extraction output differs between runs over the same region")
	}
}
