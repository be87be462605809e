package stream

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"voxelstream/internal/config"
	"voxelstream/internal/world"
)

// stubGenerator builds a one-block region per request and counts how often
// each coordinate is generated. A non-nil gate blocks generation until the
// test closes it.
type stubGenerator struct {
	mu     sync.Mutex
	counts map[world.RegionCoord]int
	gate   chan struct{}
}

func newStubGenerator(gate chan struct{}) *stubGenerator {
	return &stubGenerator{
		counts: make(map[world.RegionCoord]int),
		gate:   gate,
	}
}

func (g *stubGenerator) Generate(ctx context.Context, coord world.RegionCoord, dim world.Dimensions) (*world.Region, error) {
	g.mu.Lock()
	g.counts[coord]++
	g.mu.Unlock()

	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	region := world.NewRegion(coord, dim)
	region.SetBlock(0, 0, 0, world.BlockStone)
	region.MarkGenerated()
	return region, nil
}

func (g *stubGenerator) count(coord world.RegionCoord) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.counts[coord]
}

// recordingSink captures emissions and retractions for assertions.
type recordingSink struct {
	mu        sync.Mutex
	emitted   []RenderObject
	retracted []uuid.UUID
}

func (s *recordingSink) Emit(obj RenderObject) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitted = append(s.emitted, obj)
}

func (s *recordingSink) Retract(handle uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retracted = append(s.retracted, handle)
}

func (s *recordingSink) emitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.emitted)
}

func (s *recordingSink) retractCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.retracted)
}

func (s *recordingSink) emitsFor(coord world.RegionCoord) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, obj := range s.emitted {
		if obj.Coord == coord {
			n++
		}
	}
	return n
}

func testStreamingConfig() *config.Config {
	cfg := config.Default()
	cfg.Region.Size = 8
	cfg.Region.Height = 8
	cfg.Streaming.ActiveRadius = 1
	cfg.Streaming.CacheRadius = 3
	cfg.Streaming.CacheCapacity = 32
	cfg.Streaming.MaxConcurrentLoads = 4
	cfg.Server.PreviewDir = ""
	return cfg
}

// tickUntil repeatedly ticks the controller at the given world position until
// the condition holds. Conditions that read controller maps are safe here
// because Tick runs on the calling goroutine.
func tickUntil(t *testing.T, ctrl *Controller, x, z float64, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		ctrl.Tick(context.Background(), x, 0, z)
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestControllerActivatesRegionsAroundObserver(t *testing.T) {
	cfg := testStreamingConfig()
	gen := newStubGenerator(nil)
	sink := &recordingSink{}
	ctrl, err := NewController(cfg, gen, sink)
	if err != nil {
		t.Fatalf("build controller: %v", err)
	}

	tickUntil(t, ctrl, 4, 4, "9 active regions", func() bool {
		active, _ := ctrl.Store().Counts()
		return active == 9
	})

	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			coord := world.RegionCoord{X: dx, Z: dz}
			if !ctrl.Store().IsActive(coord) {
				t.Fatalf("region %v should be active", coord)
			}
			if got := gen.count(coord); got != 1 {
				t.Fatalf("region %v generated %d times, expected 1", coord, got)
			}
			if got := sink.emitsFor(coord); got != 1 {
				t.Fatalf("region %v emitted %d times, expected 1", coord, got)
			}
		}
	}
}

func TestControllerNeverEmitsBeforeGenerationCompletes(t *testing.T) {
	cfg := testStreamingConfig()
	gate := make(chan struct{})
	gen := newStubGenerator(gate)
	sink := &recordingSink{}
	ctrl, err := NewController(cfg, gen, sink)
	if err != nil {
		t.Fatalf("build controller: %v", err)
	}

	ctrl.Tick(context.Background(), 4, 0, 4)
	time.Sleep(50 * time.Millisecond)
	ctrl.Tick(context.Background(), 4, 0, 4)

	if got := sink.emitCount(); got != 0 {
		t.Fatalf("sink received %d emissions while generation was blocked", got)
	}
	if active, cached := ctrl.Store().Counts(); active != 0 || cached != 0 {
		t.Fatalf("store admitted regions while generation was blocked: %d active, %d cached", active, cached)
	}

	close(gate)
	tickUntil(t, ctrl, 4, 4, "9 active regions after release", func() bool {
		active, _ := ctrl.Store().Counts()
		return active == 9
	})

	// Each stub region holds one block, so every emission carries a full cube.
	sink.mu.Lock()
	defer sink.mu.Unlock()
	for _, obj := range sink.emitted {
		if obj.Batch.FaceCount() != 6 {
			t.Fatalf("region %v emitted with %d faces, expected 6", obj.Coord, obj.Batch.FaceCount())
		}
	}
}

func TestControllerCacheRoundTripSkipsRegeneration(t *testing.T) {
	cfg := testStreamingConfig()
	gen := newStubGenerator(nil)
	sink := &recordingSink{}
	ctrl, err := NewController(cfg, gen, sink)
	if err != nil {
		t.Fatalf("build controller: %v", err)
	}

	size := float64(cfg.Region.Size)
	home := size / 2         // inside region (0,0)
	away := 2*size + size/2  // inside region (2,0)

	tickUntil(t, ctrl, home, home, "initial active set", func() bool {
		active, _ := ctrl.Store().Counts()
		return active == 9
	})

	// Step two regions east: the western active columns demote into the
	// cache, two new columns activate.
	tickUntil(t, ctrl, away, home, "shifted active set", func() bool {
		active, _ := ctrl.Store().Counts()
		return active == 9 && ctrl.Store().IsCached(world.RegionCoord{X: 0, Z: 0})
	})
	if sink.retractCount() == 0 {
		t.Fatal("demotion should retract emitted geometry")
	}

	// Step back: the cached columns promote without touching the generator.
	tickUntil(t, ctrl, home, home, "restored active set", func() bool {
		active, _ := ctrl.Store().Counts()
		return active == 9 && ctrl.Store().IsActive(world.RegionCoord{X: 0, Z: 0})
	})

	gen.mu.Lock()
	for coord, n := range gen.counts {
		if n != 1 {
			gen.mu.Unlock()
			t.Fatalf("region %v generated %d times across the round trip", coord, n)
		}
	}
	gen.mu.Unlock()

	if got := sink.emitsFor(world.RegionCoord{X: 0, Z: 0}); got < 2 {
		t.Fatalf("expected re-emission after promotion, got %d emissions", got)
	}
}

func TestControllerDiscardsResultsBeyondCacheRadius(t *testing.T) {
	cfg := testStreamingConfig()
	gate := make(chan struct{})
	gen := newStubGenerator(gate)
	sink := &recordingSink{}
	ctrl, err := NewController(cfg, gen, sink)
	if err != nil {
		t.Fatalf("build controller: %v", err)
	}

	size := float64(cfg.Region.Size)

	// Start loads around the origin, then leave before any completes.
	ctrl.Tick(context.Background(), size/2, 0, size/2)
	away := 10*size + size/2
	ctrl.Tick(context.Background(), away, 0, size/2)

	close(gate)
	tickUntil(t, ctrl, away, size/2, "settled active set far away", func() bool {
		active, _ := ctrl.Store().Counts()
		return active == 9 && len(ctrl.pending) == 0
	})

	// The abandoned loads finished, but their coordinates sit far outside
	// the cache radius now; the results must have been dropped.
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			coord := world.RegionCoord{X: dx, Z: dz}
			if ctrl.Store().IsActive(coord) || ctrl.Store().IsCached(coord) {
				t.Fatalf("stale region %v still resident after observer left", coord)
			}
			if got := sink.emitsFor(coord); got != 0 {
				t.Fatalf("stale region %v was emitted %d times", coord, got)
			}
		}
	}
}

func TestControllerRejectsUnrepresentableRegions(t *testing.T) {
	cfg := testStreamingConfig()
	gen := newStubGenerator(nil)
	sink := &recordingSink{}
	ctrl, err := NewController(cfg, gen, sink)
	if err != nil {
		t.Fatalf("build controller: %v", err)
	}

	limit := math.MaxInt32 / cfg.Region.Size
	x := float64(limit+1) * float64(cfg.Region.Size)
	badCoord := world.RegionCoord{X: limit + 1, Z: 0}

	tickUntil(t, ctrl, x, 4, "valid neighbours active", func() bool {
		return ctrl.Store().IsActive(world.RegionCoord{X: limit, Z: 0})
	})

	if _, ok := ctrl.rejected[badCoord]; !ok {
		t.Fatalf("coordinate %v should be marked permanently unloaded", badCoord)
	}
	if ctrl.Store().IsActive(badCoord) || ctrl.Store().IsCached(badCoord) {
		t.Fatalf("unrepresentable region %v must never become resident", badCoord)
	}
	if got := gen.count(badCoord); got != 0 {
		t.Fatalf("unrepresentable region %v was generated %d times", badCoord, got)
	}
}

func TestNewControllerValidatesDependencies(t *testing.T) {
	cfg := testStreamingConfig()
	gen := newStubGenerator(nil)
	sink := &recordingSink{}

	if _, err := NewController(nil, gen, sink); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := NewController(cfg, nil, sink); err == nil {
		t.Fatal("expected error for nil generator")
	}
	if _, err := NewController(cfg, gen, nil); err == nil {
		t.Fatal("expected error for nil sink")
	}

	bad := testStreamingConfig()
	bad.Streaming.ActiveRadius = 0
	if _, err := NewController(bad, gen, sink); err == nil {
		t.Fatal("expected error for invalid config")
	}
}
