package world

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	previewTileWidth    = 16
	previewTileHeight   = 8
	previewBlockHeight  = 8
	previewAmbientLight = 0.2
)

type previewBlock struct {
	x, y, z int
	block   BlockType
	screenX int
	screenY int
}

// SaveRegionPreview renders an isometric preview PNG for a generated region
// into outputDir, named region_<x>_<z>.png.
func SaveRegionPreview(region *Region, outputDir string) error {
	if region == nil {
		return fmt.Errorf("region is nil")
	}
	dim := region.Dimensions()
	if dim.Size <= 0 || dim.Height <= 0 {
		return fmt.Errorf("invalid region dimensions: %+v", dim)
	}

	width := dim.Size*previewTileWidth + previewTileWidth
	height := dim.Size*previewTileHeight + dim.Height*previewBlockHeight + previewTileHeight
	img := image.NewNRGBA(image.Rect(0, 0, width, height))

	background := color.NRGBA{R: 10, G: 10, B: 18, A: 255}
	draw.Draw(img, img.Bounds(), &image.Uniform{background}, image.Point{}, draw.Src)

	blocks := collectPreviewBlocks(region)
	sort.Slice(blocks, func(i, j int) bool {
		bi, bj := blocks[i], blocks[j]
		if bi.screenY != bj.screenY {
			return bi.screenY < bj.screenY
		}
		if bi.screenX != bj.screenX {
			return bi.screenX < bj.screenX
		}
		if bi.z != bj.z {
			return bi.z < bj.z
		}
		return bi.y < bj.y
	})

	offsetX := dim.Size * previewTileWidth / 2
	offsetY := dim.Height * previewBlockHeight

	for _, info := range blocks {
		renderPreviewBlock(img, offsetX+info.screenX, offsetY+info.screenY, info.block)
	}

	if outputDir == "" {
		return fmt.Errorf("output directory is empty")
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create preview directory: %w", err)
	}
	path := filepath.Join(outputDir, fmt.Sprintf("region_%d_%d.png", region.Coord.X, region.Coord.Z))
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create preview: %w", err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	return nil
}

func collectPreviewBlocks(region *Region) []previewBlock {
	dim := region.Dimensions()
	estimated := dim.Size * dim.Size * 4
	blocks := make([]previewBlock, 0, estimated)
	region.ForEachBlock(func(x, y, z int, t BlockType) bool {
		// Buried cells never contribute pixels.
		if region.blockOrAir(x+1, y, z).Solid() &&
			region.blockOrAir(x, y+1, z).Solid() &&
			region.blockOrAir(x, y, z+1).Solid() {
			return true
		}
		blocks = append(blocks, previewBlock{
			x: x, y: y, z: z,
			block:   t,
			screenX: (x - z) * previewTileWidth / 2,
			screenY: (x+z)*previewTileHeight/2 - y*previewBlockHeight,
		})
		return true
	})
	return blocks
}

func renderPreviewBlock(img *image.NRGBA, baseX, baseY int, t BlockType) {
	base := previewColor(t)

	topColor := applyLighting(base, previewAmbientLight+0.6)
	leftColor := applyLighting(base, previewAmbientLight+0.35)
	rightColor := applyLighting(base, previewAmbientLight+0.2)

	top := []image.Point{
		{X: baseX, Y: baseY - previewBlockHeight},
		{X: baseX + previewTileWidth/2, Y: baseY - previewBlockHeight + previewTileHeight/2},
		{X: baseX, Y: baseY - previewBlockHeight + previewTileHeight},
		{X: baseX - previewTileWidth/2, Y: baseY - previewBlockHeight + previewTileHeight/2},
	}
	left := []image.Point{
		{X: baseX - previewTileWidth/2, Y: baseY - previewBlockHeight + previewTileHeight/2},
		{X: baseX, Y: baseY - previewBlockHeight + previewTileHeight},
		{X: baseX, Y: baseY + previewTileHeight},
		{X: baseX - previewTileWidth/2, Y: baseY + previewTileHeight/2},
	}
	right := []image.Point{
		{X: baseX + previewTileWidth/2, Y: baseY - previewBlockHeight + previewTileHeight/2},
		{X: baseX, Y: baseY - previewBlockHeight + previewTileHeight},
		{X: baseX, Y: baseY + previewTileHeight},
		{X: baseX + previewTileWidth/2, Y: baseY + previewTileHeight/2},
	}

	fillPolygon(img, left, leftColor)
	fillPolygon(img, right, rightColor)
	fillPolygon(img, top, topColor)
}

func previewColor(t BlockType) color.NRGBA {
	if col, ok := parseHexColor(t.Appearance().Color); ok {
		return col
	}
	return color.NRGBA{R: 128, G: 128, B: 128, A: 255}
}

func parseHexColor(value string) (color.NRGBA, bool) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(trimmed) != 6 {
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(trimmed, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 255,
	}, true
}

func applyLighting(base color.NRGBA, factor float64) color.NRGBA {
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	return color.NRGBA{
		R: uint8(math.Round(float64(base.R) * factor)),
		G: uint8(math.Round(float64(base.G) * factor)),
		B: uint8(math.Round(float64(base.B) * factor)),
		A: 255,
	}
}

func fillPolygon(img *image.NRGBA, pts []image.Point, col color.NRGBA) {
	if len(pts) < 3 {
		return
	}
	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts[1:] {
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}
	}
	bounds := img.Bounds()
	if minY < bounds.Min.Y {
		minY = bounds.Min.Y
	}
	if maxY > bounds.Max.Y-1 {
		maxY = bounds.Max.Y - 1
	}

	crossings := make([]int, 0, len(pts))
	for y := minY; y <= maxY; y++ {
		crossings = crossings[:0]
		for i := range pts {
			j := (i + 1) % len(pts)
			y1, y2 := pts[i].Y, pts[j].Y
			if y1 == y2 {
				continue
			}
			lo, hi := y1, y2
			if lo > hi {
				lo, hi = hi, lo
			}
			if y < lo || y >= hi {
				continue
			}
			x := pts[i].X + (y-y1)*(pts[j].X-pts[i].X)/(y2-y1)
			crossings = append(crossings, x)
		}
		if len(crossings) < 2 {
			continue
		}
		sort.Ints(crossings)
		for i := 0; i+1 < len(crossings); i += 2 {
			xStart, xEnd := crossings[i], crossings[i+1]
			if xEnd < bounds.Min.X || xStart >= bounds.Max.X {
				continue
			}
			if xStart < bounds.Min.X {
				xStart = bounds.Min.X
			}
			if xEnd > bounds.Max.X-1 {
				xEnd = bounds.Max.X - 1
			}
			for x := xStart; x <= xEnd; x++ {
				idx := (y-bounds.Min.Y)*img.Stride + (x-bounds.Min.X)*4
				img.Pix[idx] = col.R
				img.Pix[idx+1] = col.G
				img.Pix[idx+2] = col.B
				img.Pix[idx+3] = col.A
			}
		}
	}
}
