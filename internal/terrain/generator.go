package terrain

import (
	"context"
	"fmt"
	"log"
	"math"
	"runtime"
	"sync"

	"voxelstream/internal/config"
	"voxelstream/internal/world"
)

// HeightField yields normalised terrain height samples for world columns.
type HeightField interface {
	Sample(x, z float64) float64
}

type band struct {
	below int
	block world.BlockType
}

// Generator populates regions from a height field. Block classification per
// layer comes from the configured band table; a column's cells depend only
// on that column's height sample, so columns generate in parallel.
type Generator struct {
	cfg     config.TerrainConfig
	field   HeightField
	surface world.BlockType
	bands   []band
}

// NewGenerator builds a generator backed by the fractal noise field for the
// configured seed.
func NewGenerator(cfg config.TerrainConfig) (*Generator, error) {
	return NewGeneratorWithField(cfg, NewField(cfg))
}

// NewGeneratorWithField accepts an explicit height field, letting callers
// substitute fixed or scripted terrain shapes.
func NewGeneratorWithField(cfg config.TerrainConfig, field HeightField) (*Generator, error) {
	if field == nil {
		return nil, fmt.Errorf("height field is nil")
	}
	surface, err := world.ParseBlockType(cfg.Surface)
	if err != nil {
		return nil, fmt.Errorf("terrain surface: %w", err)
	}
	bands := make([]band, 0, len(cfg.Bands))
	prev := 0
	for i, b := range cfg.Bands {
		block, err := world.ParseBlockType(b.Block)
		if err != nil {
			return nil, fmt.Errorf("terrain band %d: %w", i, err)
		}
		if b.Below <= prev {
			return nil, fmt.Errorf("terrain band %d: below %d not ascending", i, b.Below)
		}
		prev = b.Below
		bands = append(bands, band{below: b.Below, block: block})
	}
	return &Generator{
		cfg:     cfg,
		field:   field,
		surface: surface,
		bands:   bands,
	}, nil
}

// SurfaceHeight computes the terrain height for a world column, clamped to
// the region height.
func (g *Generator) SurfaceHeight(worldX, worldZ, maxHeight int) int {
	sample := g.field.Sample(float64(worldX), float64(worldZ))
	height := int(math.Abs(sample) * g.cfg.HeightScale)
	if height > maxHeight {
		height = maxHeight
	}
	if height < 0 {
		height = 0
	}
	return height
}

// Generate fills a region column by column on a worker pool. Each worker
// writes only the column subslices it was handed, so the grid needs no
// locking; the single result consumer tracks progress and failure. The
// region is marked generated only after every column has landed.
func (g *Generator) Generate(ctx context.Context, coord world.RegionCoord, dim world.Dimensions) (*world.Region, error) {
	if err := world.ValidateCoord(coord, dim); err != nil {
		return nil, err
	}

	region := world.NewRegion(coord, dim)
	originX, _, originZ := region.Origin()

	totalColumns := dim.Size * dim.Size
	if totalColumns <= 0 {
		return nil, fmt.Errorf("region %v: empty dimensions %+v", coord, dim)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type columnTask struct {
		localX int
		localZ int
	}

	workers := g.workerCount(totalColumns)
	tasks := make(chan columnTask, workers)
	results := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				if err := ctx.Err(); err != nil {
					select {
					case results <- err:
					default:
					}
					return
				}
				g.populateColumn(
					region.Column(task.localX, task.localZ),
					originX+task.localX,
					originZ+task.localZ,
				)
				select {
				case results <- nil:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	go func() {
		defer close(tasks)
		for x := 0; x < dim.Size; x++ {
			for z := 0; z < dim.Size; z++ {
				select {
				case <-ctx.Done():
					return
				case tasks <- columnTask{localX: x, localZ: z}:
				}
			}
		}
	}()

	generated := 0
	nextLogPercent := 10
	for err := range results {
		if err != nil {
			cancel()
			return nil, err
		}
		generated++
		progress := generated * 100 / totalColumns
		if progress >= nextLogPercent {
			log.Printf("region %v generation progress: %d%%", coord, progress)
			nextLogPercent = ((progress / 10) + 1) * 10
		}
	}

	if generated != totalColumns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("region %v: generated %d of %d columns", coord, generated, totalColumns)
	}

	region.MarkGenerated()
	return region, nil
}

// populateColumn classifies every cell of one column. The column slice
// arrives zeroed, so cells above the terrain stay Air.
func (g *Generator) populateColumn(column []world.BlockType, worldX, worldZ int) {
	if len(column) == 0 {
		return
	}
	height := g.SurfaceHeight(worldX, worldZ, len(column))

	for y := 0; y < height; y++ {
		column[y] = g.blockForLayer(y)
	}
	if g.cfg.BedrockFloor && height > 0 {
		column[0] = world.BlockBedrock
	}
	if w := g.cfg.WaterLevel; w >= 0 && w < len(column) && w >= height {
		column[w] = world.BlockWater
	}
}

func (g *Generator) blockForLayer(y int) world.BlockType {
	for _, b := range g.bands {
		if y < b.below {
			return b.block
		}
	}
	return g.surface
}

func (g *Generator) workerCount(totalColumns int) int {
	workers := g.cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > totalColumns {
		workers = totalColumns
	}
	if workers <= 0 {
		workers = 1
	}
	return workers
}
