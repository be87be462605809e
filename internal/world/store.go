package world

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Generator describes terrain population for regions.
type Generator interface {
	Generate(ctx context.Context, coord RegionCoord, dim Dimensions) (*Region, error)
}

// Resident pairs a generated region with its extracted surface geometry.
// The store owns both until the region is evicted; the rendering side only
// ever holds handles.
type Resident struct {
	Region  *Region
	Surface []SurfaceBatch

	seq uint64
}

// Plan lists the state transitions one sync pass asks for. Activation of
// non-resident coordinates involves asynchronous generation, so the plan
// only names coordinates; the caller dispatches work and commits results.
type Plan struct {
	Activate []RegionCoord
	Demote   []RegionCoord
	Evict    []RegionCoord
}

// Store owns the resident-region state machine. Every coordinate is in
// exactly one of three logical states: Active (resident and visible),
// Cached (resident, not visible) or Unloaded (not tracked). All transitions
// are applied under one mutex, so Active and Cached can never overlap.
type Store struct {
	mu       sync.Mutex
	capacity int
	active   map[RegionCoord]*Resident
	cached   map[RegionCoord]*Resident
	seq      uint64
}

// NewStore builds an empty store. cacheCapacity bounds the number of cached
// regions in addition to the cache radius; zero disables the count bound.
func NewStore(cacheCapacity int) *Store {
	return &Store{
		capacity: cacheCapacity,
		active:   make(map[RegionCoord]*Resident),
		cached:   make(map[RegionCoord]*Resident),
	}
}

// Sync diffs the desired active set around the observer against current
// state and returns the transitions needed to converge. It never blocks on
// generation and does not itself change state.
//
// Activate is ordered nearest first. Evict is ordered farthest first with
// ties broken by insertion order, which also selects the victims when the
// cache capacity would be exceeded.
func (s *Store) Sync(observer RegionCoord, activeRadius, cacheRadius int) Plan {
	s.mu.Lock()
	defer s.mu.Unlock()

	var plan Plan

	desired := make(map[RegionCoord]struct{}, (2*activeRadius+1)*(2*activeRadius+1))
	for dx := -activeRadius; dx <= activeRadius; dx++ {
		for dz := -activeRadius; dz <= activeRadius; dz++ {
			coord := RegionCoord{X: observer.X + dx, Z: observer.Z + dz}
			desired[coord] = struct{}{}
			if _, ok := s.active[coord]; !ok {
				plan.Activate = append(plan.Activate, coord)
			}
		}
	}
	sort.Slice(plan.Activate, func(i, j int) bool {
		a, b := plan.Activate[i], plan.Activate[j]
		da, db := ChebyshevDist(a, observer), ChebyshevDist(b, observer)
		if da != db {
			return da < db
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Z < b.Z
	})

	// Regions cached now, or demoted by this plan, that survive into the
	// cache; used to apply the capacity bound below.
	type victim struct {
		coord RegionCoord
		dist  int
		seq   uint64
	}
	var surviving []victim

	for coord, res := range s.active {
		if _, ok := desired[coord]; ok {
			continue
		}
		if ChebyshevDist(coord, observer) > cacheRadius {
			plan.Evict = append(plan.Evict, coord)
			continue
		}
		plan.Demote = append(plan.Demote, coord)
		surviving = append(surviving, victim{coord, ChebyshevDist(coord, observer), res.seq})
	}

	for coord, res := range s.cached {
		if ChebyshevDist(coord, observer) > cacheRadius {
			plan.Evict = append(plan.Evict, coord)
			continue
		}
		if _, ok := desired[coord]; ok {
			// Leaving the cache via promotion this tick.
			continue
		}
		surviving = append(surviving, victim{coord, ChebyshevDist(coord, observer), res.seq})
	}

	if s.capacity > 0 && len(surviving) > s.capacity {
		sort.Slice(surviving, func(i, j int) bool {
			if surviving[i].dist != surviving[j].dist {
				return surviving[i].dist > surviving[j].dist
			}
			return surviving[i].seq < surviving[j].seq
		})
		for _, v := range surviving[:len(surviving)-s.capacity] {
			plan.Evict = append(plan.Evict, v.coord)
		}
	}

	sortEviction(plan.Evict, observer, s.insertionSeqLocked)
	return plan
}

func (s *Store) insertionSeqLocked(coord RegionCoord) uint64 {
	if res, ok := s.active[coord]; ok {
		return res.seq
	}
	if res, ok := s.cached[coord]; ok {
		return res.seq
	}
	return 0
}

func sortEviction(coords []RegionCoord, observer RegionCoord, seqOf func(RegionCoord) uint64) {
	sort.Slice(coords, func(i, j int) bool {
		di, dj := ChebyshevDist(coords[i], observer), ChebyshevDist(coords[j], observer)
		if di != dj {
			return di > dj
		}
		return seqOf(coords[i]) < seqOf(coords[j])
	})
}

// Promote moves a cached region back to Active without regeneration.
func (s *Store) Promote(coord RegionCoord) (*Resident, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.cached[coord]
	if !ok {
		return nil, false
	}
	delete(s.cached, coord)
	s.active[coord] = res
	return res, true
}

// CommitActivation applies Unloaded -> Active once generation and surface
// extraction have both completed. Committing a coordinate that is already
// resident is an invariant violation and is rejected.
func (s *Store) CommitActivation(coord RegionCoord, region *Region, surface []SurfaceBatch) (*Resident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.admitLocked(coord, region); err != nil {
		return nil, err
	}
	res := s.newResidentLocked(region, surface)
	s.active[coord] = res
	return res, nil
}

// CommitCached admits a generation result whose coordinate left the desired
// active set while work was in flight but still sits within the cache
// radius. The work is retained instead of thrown away.
func (s *Store) CommitCached(coord RegionCoord, region *Region, surface []SurfaceBatch) (*Resident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.admitLocked(coord, region); err != nil {
		return nil, err
	}
	res := s.newResidentLocked(region, surface)
	s.cached[coord] = res
	return res, nil
}

func (s *Store) admitLocked(coord RegionCoord, region *Region) error {
	if region == nil || !region.Generated() {
		return fmt.Errorf("region %v: commit of ungenerated region", coord)
	}
	if region.Coord != coord {
		return fmt.Errorf("region %v committed under coordinate %v", region.Coord, coord)
	}
	if _, ok := s.active[coord]; ok {
		return fmt.Errorf("region %v already active", coord)
	}
	if _, ok := s.cached[coord]; ok {
		return fmt.Errorf("region %v already cached", coord)
	}
	return nil
}

func (s *Store) newResidentLocked(region *Region, surface []SurfaceBatch) *Resident {
	s.seq++
	return &Resident{Region: region, Surface: surface, seq: s.seq}
}

// Demote moves an active region into the cache, keeping grid and surface.
func (s *Store) Demote(coord RegionCoord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.active[coord]
	if !ok {
		return false
	}
	delete(s.active, coord)
	s.cached[coord] = res
	return true
}

// Evict drops a resident region entirely. The returned resident lets the
// caller retract whatever it emitted; afterwards the coordinate is Unloaded
// and a re-request regenerates from scratch.
func (s *Store) Evict(coord RegionCoord) (*Resident, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.active[coord]; ok {
		delete(s.active, coord)
		return res, true
	}
	if res, ok := s.cached[coord]; ok {
		delete(s.cached, coord)
		return res, true
	}
	return nil, false
}

// IsActive reports whether the coordinate is currently visible.
func (s *Store) IsActive(coord RegionCoord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[coord]
	return ok
}

// IsCached reports whether the coordinate is resident but not visible.
func (s *Store) IsCached(coord RegionCoord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cached[coord]
	return ok
}

// Counts returns the number of active and cached regions.
func (s *Store) Counts() (active, cached int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active), len(s.cached)
}
