package stream

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"voxelstream/internal/config"
	"voxelstream/internal/world"
)

// RenderObject is one material batch of an activated region. Origin is the
// region's world-space placement; batch positions are region-local.
type RenderObject struct {
	Handle uuid.UUID
	Coord  world.RegionCoord
	Origin world.Vec3
	Batch  world.SurfaceBatch
}

// RenderSink is the boundary to the rendering collaborator. The sink holds
// only the uuid handles; geometry ownership stays with the store, so a
// retraction is just a handle, never shared mutable state.
type RenderSink interface {
	Emit(obj RenderObject)
	Retract(handle uuid.UUID)
}

// ObserverSource supplies the observer's world position, read once per tick.
type ObserverSource interface {
	Position() (x, y, z float64)
}

type activationResult struct {
	coord   world.RegionCoord
	region  *world.Region
	surface []world.SurfaceBatch
	err     error
}

// Controller drives streaming per tick: it reads the observer position,
// syncs the store, dispatches generation and meshing onto a bounded worker
// pool, and emits or retracts render objects as regions change state.
//
// All controller state is owned by the tick goroutine; workers communicate
// only through the completion channel, so commits are naturally serialised.
type Controller struct {
	cfg    *config.Config
	dim    world.Dimensions
	store  *world.Store
	gen    world.Generator
	sink   RenderSink
	logger *log.Logger

	pending   map[world.RegionCoord]struct{}
	rejected  map[world.RegionCoord]struct{}
	emitted   map[world.RegionCoord][]uuid.UUID
	results   chan activationResult
	loadSlots chan struct{}
	observer  world.RegionCoord
}

func NewController(cfg *config.Config, gen world.Generator, sink RenderSink) (*Controller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if gen == nil {
		return nil, fmt.Errorf("generator is nil")
	}
	if sink == nil {
		return nil, fmt.Errorf("render sink is nil")
	}
	return &Controller{
		cfg:       cfg,
		dim:       world.Dimensions{Size: cfg.Region.Size, Height: cfg.Region.Height},
		store:     world.NewStore(cfg.Streaming.CacheCapacity),
		gen:       gen,
		sink:      sink,
		logger:    log.New(log.Writer(), "stream ", log.LstdFlags|log.Lmicroseconds),
		pending:   make(map[world.RegionCoord]struct{}),
		rejected:  make(map[world.RegionCoord]struct{}),
		emitted:   make(map[world.RegionCoord][]uuid.UUID),
		results:   make(chan activationResult, cfg.Streaming.MaxConcurrentLoads),
		loadSlots: make(chan struct{}, cfg.Streaming.MaxConcurrentLoads),
	}, nil
}

// Store exposes the controller's region store.
func (c *Controller) Store() *world.Store {
	return c.store
}

// Run ticks the controller at the configured rate until the context ends.
func (c *Controller) Run(ctx context.Context, source ObserverSource) error {
	rate := c.cfg.Streaming.TickRate.Duration()
	if rate <= 0 {
		rate = 33 * time.Millisecond
	}
	ticker := time.NewTicker(rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			x, y, z := source.Position()
			c.Tick(ctx, x, y, z)
		}
	}
}

// Tick advances streaming for one observer position sample.
func (c *Controller) Tick(ctx context.Context, x, _, z float64) {
	c.observer = world.LocateRegion(int(math.Floor(x)), int(math.Floor(z)), c.dim.Size)

	c.drainResults()

	plan := c.store.Sync(c.observer, c.cfg.Streaming.ActiveRadius, c.cfg.Streaming.CacheRadius)

	for _, coord := range plan.Activate {
		if res, ok := c.store.Promote(coord); ok {
			c.emitSurface(coord, res)
			continue
		}
		if _, ok := c.pending[coord]; ok {
			continue
		}
		if _, ok := c.rejected[coord]; ok {
			continue
		}
		if err := world.ValidateCoord(coord, c.dim); err != nil {
			c.logger.Printf("region %v permanently unloaded: %v", coord, err)
			c.rejected[coord] = struct{}{}
			continue
		}
		c.pending[coord] = struct{}{}
		go c.load(ctx, coord)
	}

	for _, coord := range plan.Demote {
		if c.store.Demote(coord) {
			c.retract(coord)
		}
	}

	for _, coord := range plan.Evict {
		c.retract(coord)
		c.store.Evict(coord)
	}
}

// load generates and meshes one region off the tick goroutine. The slot
// channel bounds concurrency; excess loads queue here until a slot frees.
func (c *Controller) load(ctx context.Context, coord world.RegionCoord) {
	select {
	case c.loadSlots <- struct{}{}:
	case <-ctx.Done():
		c.deliver(ctx, activationResult{coord: coord, err: ctx.Err()})
		return
	}
	defer func() { <-c.loadSlots }()

	region, err := c.gen.Generate(ctx, coord, c.dim)
	if err != nil {
		c.deliver(ctx, activationResult{coord: coord, err: err})
		return
	}
	surface, err := world.ExtractSurface(region)
	c.deliver(ctx, activationResult{coord: coord, region: region, surface: surface, err: err})
}

func (c *Controller) deliver(ctx context.Context, res activationResult) {
	select {
	case c.results <- res:
	case <-ctx.Done():
	}
}

// drainResults commits completed activations. A result whose coordinate left
// the desired set while work was in flight is cached when still close enough,
// otherwise dropped; both are correctness-preserving, only generation cost is
// lost.
func (c *Controller) drainResults() {
	for {
		select {
		case res := <-c.results:
			c.applyResult(res)
		default:
			return
		}
	}
}

func (c *Controller) applyResult(res activationResult) {
	delete(c.pending, res.coord)

	if res.err != nil {
		if !errors.Is(res.err, context.Canceled) {
			c.logger.Printf("region %v load failed: %v", res.coord, res.err)
		}
		return
	}

	dist := world.ChebyshevDist(res.coord, c.observer)
	switch {
	case dist <= c.cfg.Streaming.ActiveRadius:
		resident, err := c.store.CommitActivation(res.coord, res.region, res.surface)
		if err != nil {
			c.logger.Printf("region %v activation rejected: %v", res.coord, err)
			return
		}
		c.emitSurface(res.coord, resident)
		c.savePreview(res.region)
	case dist <= c.cfg.Streaming.CacheRadius:
		if _, err := c.store.CommitCached(res.coord, res.region, res.surface); err != nil {
			c.logger.Printf("region %v cache commit rejected: %v", res.coord, err)
		}
	default:
		// Observer moved on; discard the result.
	}
}

func (c *Controller) emitSurface(coord world.RegionCoord, res *world.Resident) {
	ox, oy, oz := res.Region.Origin()
	origin := world.Vec3{float32(ox), float32(oy), float32(oz)}

	handles := make([]uuid.UUID, 0, len(res.Surface))
	for _, batch := range res.Surface {
		handle := uuid.New()
		c.sink.Emit(RenderObject{
			Handle: handle,
			Coord:  coord,
			Origin: origin,
			Batch:  batch,
		})
		handles = append(handles, handle)
	}
	c.emitted[coord] = handles
}

func (c *Controller) retract(coord world.RegionCoord) {
	for _, handle := range c.emitted[coord] {
		c.sink.Retract(handle)
	}
	delete(c.emitted, coord)
}

func (c *Controller) savePreview(region *world.Region) {
	dir := c.cfg.Server.PreviewDir
	if dir == "" {
		return
	}
	go func() {
		if err := world.SaveRegionPreview(region, dir); err != nil {
			c.logger.Printf("region %v preview: %v", region.Coord, err)
		}
	}()
}
