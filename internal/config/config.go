package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a JSON-friendly wrapper around time.Duration that accepts human
// readable strings such as "150ms" in configuration files while still
// allowing numeric representations when necessary.
type Duration time.Duration

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration using the canonical string representation.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration from either a string (e.g. "250ms") or a
// numeric value representing nanoseconds. Empty strings and null values decode
// to zero.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("duration: empty value")
	}
	if string(b) == "null" {
		*d = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("duration: decode string: %w", err)
		}
		if s == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("duration: parse %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*d = Duration(time.Duration(f))
		return nil
	}
	return fmt.Errorf("duration: invalid value %s", string(b))
}

// MarshalYAML encodes the duration using the canonical string representation.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML decodes a duration from either a string scalar such as "33ms"
// or an integer nanosecond count.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		if s == "" {
			*d = 0
			return nil
		}
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("duration: parse %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}
	return fmt.Errorf("duration: invalid value %q", value.Value)
}

// Config captures the tunable parameters needed to bootstrap the streaming engine.
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	Region    RegionConfig    `json:"region" yaml:"region"`
	Streaming StreamingConfig `json:"streaming" yaml:"streaming"`
	Terrain   TerrainConfig   `json:"terrain" yaml:"terrain"`
}

type ServerConfig struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description" yaml:"description"`
	// PreviewDir, when set, receives an isometric PNG per activated region.
	PreviewDir string `json:"previewDir" yaml:"previewDir"`
}

type RegionConfig struct {
	Size   int `json:"size" yaml:"size"`     // blocks per horizontal axis
	Height int `json:"height" yaml:"height"` // vertical blocks per region
}

type StreamingConfig struct {
	TickRate           Duration `json:"tickRate" yaml:"tickRate"`
	ActiveRadius       int      `json:"activeRadius" yaml:"activeRadius"` // Chebyshev, in regions
	CacheRadius        int      `json:"cacheRadius" yaml:"cacheRadius"`
	CacheCapacity      int      `json:"cacheCapacity" yaml:"cacheCapacity"` // 0 disables the count bound
	MaxConcurrentLoads int      `json:"maxConcurrentLoads" yaml:"maxConcurrentLoads"`
}

// Band assigns a block type to every layer strictly below the given height.
// Bands are evaluated in order; the first match wins, and layers above the
// last band fall through to Terrain.Surface.
type Band struct {
	Below int    `json:"below" yaml:"below"`
	Block string `json:"block" yaml:"block"`
}

type TerrainConfig struct {
	Seed         int64   `json:"seed" yaml:"seed"`
	Frequency    float64 `json:"frequency" yaml:"frequency"`
	Octaves      int     `json:"octaves" yaml:"octaves"`
	Persistence  float64 `json:"persistence" yaml:"persistence"`
	Lacunarity   float64 `json:"lacunarity" yaml:"lacunarity"`
	HeightScale  float64 `json:"heightScale" yaml:"heightScale"`
	Bands        []Band  `json:"bands" yaml:"bands"`
	Surface      string  `json:"surface" yaml:"surface"`
	WaterLevel   int     `json:"waterLevel" yaml:"waterLevel"` // negative disables water
	BedrockFloor bool    `json:"bedrockFloor" yaml:"bedrockFloor"`
	Workers      int     `json:"workers" yaml:"workers"` // 0 sizes the pool from GOMAXPROCS
}

// Load reads configuration from a JSON file if provided. An empty path returns defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ID:          "voxelstream-0",
			Description: "local development streaming engine",
		},
		Region: RegionConfig{
			Size:   32,
			Height: 64,
		},
		Streaming: StreamingConfig{
			TickRate:           Duration(33 * time.Millisecond),
			ActiveRadius:       3,
			CacheRadius:        5,
			CacheCapacity:      64,
			MaxConcurrentLoads: 4,
		},
		Terrain: TerrainConfig{
			Seed:        14,
			Frequency:   0.01,
			Octaves:     4,
			Persistence: 0.45,
			Lacunarity:  2.0,
			HeightScale: 32,
			Bands: []Band{
				{Below: 4, Block: "stone"},
				{Below: 7, Block: "dirt"},
			},
			Surface:      "grass",
			WaterLevel:   7,
			BedrockFloor: true,
		},
	}
}

func (c *Config) Validate() error {
	if c.Server.ID == "" {
		return errors.New("server.id must be set")
	}
	if c.Region.Size <= 0 || c.Region.Height <= 0 {
		return errors.New("region dimensions must be positive")
	}
	if c.Streaming.ActiveRadius <= 0 {
		return errors.New("streaming.activeRadius must be positive")
	}
	if c.Streaming.CacheRadius < c.Streaming.ActiveRadius {
		return errors.New("streaming.cacheRadius must be >= activeRadius")
	}
	if c.Streaming.CacheCapacity < 0 {
		return errors.New("streaming.cacheCapacity cannot be negative")
	}
	if c.Streaming.MaxConcurrentLoads <= 0 {
		return errors.New("streaming.maxConcurrentLoads must be positive")
	}
	if c.Terrain.HeightScale <= 0 {
		return errors.New("terrain.heightScale must be positive")
	}
	if c.Terrain.Octaves <= 0 {
		return errors.New("terrain.octaves must be positive")
	}
	if c.Terrain.Surface == "" {
		return errors.New("terrain.surface must be set")
	}
	prev := 0
	for i, band := range c.Terrain.Bands {
		if band.Block == "" {
			return fmt.Errorf("terrain.bands[%d].block must be set", i)
		}
		if band.Below <= prev {
			return errors.New("terrain.bands must have strictly ascending below thresholds")
		}
		prev = band.Below
	}
	if c.Terrain.Workers < 0 {
		return errors.New("terrain.workers cannot be negative")
	}
	return nil
}
