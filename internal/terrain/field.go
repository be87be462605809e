package terrain

import (
	"math"

	"voxelstream/internal/config"
)

// Field is a deterministic fractal value-noise field over world columns.
// It is immutable once constructed and safe to share across concurrent
// generation without synchronisation. The lattice hash is defined over the
// full signed integer domain; negative coordinates need no remapping.
type Field struct {
	seed        int64
	frequency   float64
	octaves     int
	persistence float64
	lacunarity  float64
}

func NewField(cfg config.TerrainConfig) *Field {
	return &Field{
		seed:        cfg.Seed,
		frequency:   cfg.Frequency,
		octaves:     cfg.Octaves,
		persistence: cfg.Persistence,
		lacunarity:  cfg.Lacunarity,
	}
}

// Sample returns the fractal noise value for a world column, normalised to
// [-1, 1]. Pure and deterministic for a fixed seed; every input yields a
// finite value.
func (f *Field) Sample(x, z float64) float64 {
	frequency := f.frequency
	amplitude := 1.0
	noiseSum := 0.0
	maxAmplitude := 0.0

	for i := 0; i < f.octaves; i++ {
		noiseSum += f.valueNoise(x*frequency, z*frequency) * amplitude
		maxAmplitude += amplitude
		amplitude *= f.persistence
		frequency *= f.lacunarity
	}

	if maxAmplitude == 0 {
		return 0
	}
	return noiseSum / maxAmplitude
}

func (f *Field) valueNoise(x, z float64) float64 {
	x0 := int(math.Floor(x))
	z0 := int(math.Floor(z))
	x1 := x0 + 1
	z1 := z0 + 1

	sx := smooth(x - float64(x0))
	sz := smooth(z - float64(z0))

	n0 := lattice(x0, z0, f.seed)
	n1 := lattice(x1, z0, f.seed)
	ix0 := lerp(n0, n1, sx)

	n2 := lattice(x0, z1, f.seed)
	n3 := lattice(x1, z1, f.seed)
	ix1 := lerp(n2, n3, sx)

	return lerp(ix0, ix1, sz)
}

func smooth(t float64) float64 {
	return t * t * (3 - 2*t)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func lattice(x, z int, seed int64) float64 {
	return float64(hash3(x, z, int(seed))&0xFFFF)/0x8000 - 1.0
}

func hash3(x, y, z int) uint32 {
	h := uint32(x*374761393 + y*668265263 + z*2147483647)
	h = (h ^ (h >> 13)) * 1274126177
	return h ^ (h >> 16)
}
