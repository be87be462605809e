package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"voxelstream/internal/config"
	"voxelstream/internal/terrain"
	"voxelstream/internal/world"
)

// streamprofile measures generation and surface-extraction throughput for a
// square of regions around the origin, the same work one activation burst
// pushes through the streaming worker pool.
func main() {
	var size int
	var height int
	var radius int
	var seed int64
	var workers int
	flag.IntVar(&size, "size", 32, "region size in blocks per horizontal axis")
	flag.IntVar(&height, "height", 64, "region height in blocks")
	flag.IntVar(&radius, "radius", 2, "profile regions within this Chebyshev radius of the origin")
	flag.Int64Var(&seed, "seed", 14, "terrain seed")
	flag.IntVar(&workers, "workers", 0, "generation workers per region (0 = GOMAXPROCS)")
	flag.Parse()

	cfg := config.Default()
	cfg.Region.Size = size
	cfg.Region.Height = height
	cfg.Terrain.Seed = seed
	cfg.Terrain.Workers = workers
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid parameters: %v\n", err)
		os.Exit(1)
	}

	gen, err := terrain.NewGenerator(cfg.Terrain)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initialise generator: %v\n", err)
		os.Exit(1)
	}

	dim := world.Dimensions{Size: cfg.Region.Size, Height: cfg.Region.Height}
	ctx := context.Background()

	var (
		regions   int
		blocks    int
		faces     int
		genTotal  time.Duration
		meshTotal time.Duration
	)

	for x := -radius; x <= radius; x++ {
		for z := -radius; z <= radius; z++ {
			coord := world.RegionCoord{X: x, Z: z}

			genStart := time.Now()
			region, err := gen.Generate(ctx, coord, dim)
			if err != nil {
				fmt.Fprintf(os.Stderr, "generate %v: %v\n", coord, err)
				os.Exit(1)
			}
			genTotal += time.Since(genStart)

			meshStart := time.Now()
			surface, err := world.ExtractSurface(region)
			if err != nil {
				fmt.Fprintf(os.Stderr, "extract %v: %v\n", coord, err)
				os.Exit(1)
			}
			meshTotal += time.Since(meshStart)

			regions++
			blocks += region.SolidCount()
			for i := range surface {
				faces += surface[i].FaceCount()
			}
		}
	}

	fmt.Printf("regions:        %d (%dx%dx%d blocks each)\n", regions, size, height, size)
	fmt.Printf("solid blocks:   %d\n", blocks)
	fmt.Printf("emitted faces:  %d\n", faces)
	fmt.Printf("generation:     %v total, %v per region\n", genTotal, genTotal/time.Duration(regions))
	fmt.Printf("extraction:     %v total, %v per region\n", meshTotal, meshTotal/time.Duration(regions))
}
