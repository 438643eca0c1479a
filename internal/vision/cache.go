package vision

import (
	"math"
	"time"

	"Sightline/internal/geom"
	"Sightline/internal/scene"
)

// Fingerprint is a rounded positional key. Two positions inside the same
// bucket are identical for caching purposes; any mismatch against a stored
// fingerprint forces recomputation.
type Fingerprint struct {
	X, Y, E int
}

func FingerprintOf(pos geom.Vec2, elevation, grain float64) Fingerprint {
	if grain <= 0 {
		grain = DefaultFingerprintGrain
	}
	return Fingerprint{
		X: int(math.Round(pos.X / grain)),
		Y: int(math.Round(pos.Y / grain)),
		E: int(math.Round(elevation / grain)),
	}
}

// PairKey identifies one ordered (observer, target) pair.
type PairKey struct {
	Observer scene.EntityID
	Target   scene.EntityID
}

type pairEntry[T any] struct {
	val     T
	obsFP   Fingerprint
	tgtFP   Fingerprint
	touched time.Time
}

// PairCache memoizes a per-pair value together with the two position
// fingerprints that produced it. Eviction is approximate LRU/TTL, run by a
// periodic pruning pass instead of per-write bookkeeping.
type PairCache[T any] struct {
	cap       int
	ttl       time.Duration
	pruneMin  time.Duration
	entries   map[PairKey]*pairEntry[T]
	lastPrune time.Time
}

func NewPairCache[T any](capacity int, ttl, pruneMin time.Duration) *PairCache[T] {
	if capacity <= 0 {
		capacity = DefaultCacheCap
	}
	if pruneMin <= 0 {
		pruneMin = DefaultPruneInterval
	}
	return &PairCache[T]{
		cap:      capacity,
		ttl:      ttl,
		pruneMin: pruneMin,
		entries:  make(map[PairKey]*pairEntry[T]),
	}
}

// Get returns the cached value when both stored fingerprints still match the
// entities' current ones. A mismatch is the designed invalidation signal, not
// an error: the entry is dropped and the caller recomputes.
func (c *PairCache[T]) Get(key PairKey, obsFP, tgtFP Fingerprint, now time.Time) (T, bool) {
	var zero T
	e, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	if e.obsFP != obsFP || e.tgtFP != tgtFP {
		delete(c.entries, key)
		return zero, false
	}
	if c.ttl > 0 && now.Sub(e.touched) > c.ttl {
		delete(c.entries, key)
		return zero, false
	}
	e.touched = now
	return e.val, true
}

func (c *PairCache[T]) Set(key PairKey, val T, obsFP, tgtFP Fingerprint, now time.Time) {
	c.entries[key] = &pairEntry[T]{val: val, obsFP: obsFP, tgtFP: tgtFP, touched: now}
}

// Peek returns the stored value and fingerprints without validation, for
// callers that want to inspect staleness rather than read through.
func (c *PairCache[T]) Peek(key PairKey) (T, Fingerprint, Fingerprint, bool) {
	var zero T
	e, ok := c.entries[key]
	if !ok {
		return zero, Fingerprint{}, Fingerprint{}, false
	}
	return e.val, e.obsFP, e.tgtFP, true
}

func (c *PairCache[T]) Size() int { return len(c.entries) }

func (c *PairCache[T]) Drop(key PairKey) { delete(c.entries, key) }

// PruneIfDue evicts expired entries and, when the cache is over capacity,
// the least recently touched ones. Rate-limited so pruning itself stays
// cheap; returns the number of entries evicted.
func (c *PairCache[T]) PruneIfDue(now time.Time) int {
	if !c.lastPrune.IsZero() && now.Sub(c.lastPrune) < c.pruneMin {
		return 0
	}
	c.lastPrune = now

	evicted := 0
	if c.ttl > 0 {
		for key, e := range c.entries {
			if now.Sub(e.touched) > c.ttl {
				delete(c.entries, key)
				evicted++
			}
		}
	}
	for len(c.entries) > c.cap {
		var oldestKey PairKey
		var oldest time.Time
		first := true
		for key, e := range c.entries {
			if first || e.touched.Before(oldest) {
				oldestKey, oldest = key, e.touched
				first = false
			}
		}
		delete(c.entries, oldestKey)
		evicted++
	}
	return evicted
}

// DropEntity removes every entry involving the entity, used when it leaves
// the scene.
func (c *PairCache[T]) DropEntity(id scene.EntityID) {
	for key := range c.entries {
		if key.Observer == id || key.Target == id {
			delete(c.entries, key)
		}
	}
}

// OverrideSnapshot is the override-validity cache payload: the last-known
// override plus the fingerprints it was computed under. The stored override
// distinguishes a re-pin (a different entry now occupies the list slot, so
// the snapshot reseeds) from drift on the same entry, which flags the
// override for review rather than silently trusting or discarding it.
type OverrideSnapshot struct {
	Override *scene.Override
}

// CacheSet bundles the three pairwise caches a room owns.
type CacheSet struct {
	Visibility *PairCache[scene.VisibilityState]
	LOS        *PairCache[bool]
	Overrides  *PairCache[OverrideSnapshot]
}

func NewCacheSet(cfg *Config) *CacheSet {
	return &CacheSet{
		Visibility: NewPairCache[scene.VisibilityState](cfg.CacheCap, 0, cfg.PruneInterval),
		LOS:        NewPairCache[bool](cfg.CacheCap, 0, cfg.PruneInterval),
		Overrides:  NewPairCache[OverrideSnapshot](cfg.CacheCap, 0, cfg.PruneInterval),
	}
}

// PruneIfDue runs the periodic pruning pass over all three caches.
func (s *CacheSet) PruneIfDue(now time.Time) int {
	return s.Visibility.PruneIfDue(now) + s.LOS.PruneIfDue(now) + s.Overrides.PruneIfDue(now)
}

// DropEntity clears all pair state involving the entity.
func (s *CacheSet) DropEntity(id scene.EntityID) {
	s.Visibility.DropEntity(id)
	s.LOS.DropEntity(id)
	s.Overrides.DropEntity(id)
}
