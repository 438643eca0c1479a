package vision

import (
	"math"
	"time"

	"Sightline/internal/geom"
	"Sightline/internal/scene"
)

type LightLevel int

const (
	LightBright LightLevel = iota
	LightDim
	LightDarkness
)

func (l LightLevel) String() string {
	switch l {
	case LightBright:
		return "bright"
	case LightDim:
		return "dim"
	case LightDarkness:
		return "darkness"
	}
	return "unknown"
}

// LightSample is the resolved illumination at one point for one entity.
type LightSample struct {
	Level            LightLevel
	DarknessRank     int
	IsDarknessSource bool
}

type lightKey struct {
	id   scene.EntityID
	x, y int
}

// LightingResolver computes illumination by containment against the active
// regions. Darkness outranks light at the same point; a higher darkness rank
// wins over a lower one. Lookups memoize into a cache that is cleared
// wholesale once its age passes the TTL, trading a little staleness for O(1)
// lookups during a recompute burst.
type LightingResolver struct {
	regions scene.RegionSource
	ambient LightLevel
	ttl     time.Duration
	born    time.Time
	cache   map[lightKey]LightSample
}

func NewLightingResolver(regions scene.RegionSource, ambient LightLevel, ttl time.Duration) *LightingResolver {
	if ttl <= 0 {
		ttl = DefaultLightCacheTTL
	}
	return &LightingResolver{
		regions: regions,
		ambient: ambient,
		ttl:     ttl,
		cache:   make(map[lightKey]LightSample),
	}
}

// LightLevelAt resolves the light level at pos for the given entity.
func (r *LightingResolver) LightLevelAt(pos geom.Vec2, id scene.EntityID, now time.Time) LightSample {
	if r.born.IsZero() {
		r.born = now
	} else if now.Sub(r.born) > r.ttl {
		r.cache = make(map[lightKey]LightSample, len(r.cache))
		r.born = now
	}
	key := lightKey{id: id, x: int(math.Round(pos.X)), y: int(math.Round(pos.Y))}
	if sample, ok := r.cache[key]; ok {
		return sample
	}
	sample := r.resolve(pos)
	r.cache[key] = sample
	return sample
}

// BatchResolve precomputes light for a filtered subset of entities so a pass
// never recomputes for entities nobody is asking about.
func (r *LightingResolver) BatchResolve(ids []scene.EntityID, pos func(scene.EntityID) (geom.Vec2, bool), now time.Time) map[scene.EntityID]LightSample {
	out := make(map[scene.EntityID]LightSample, len(ids))
	for _, id := range ids {
		p, ok := pos(id)
		if !ok {
			continue
		}
		out[id] = r.LightLevelAt(p, id, now)
	}
	return out
}

// Invalidate drops all memoized samples, used when lighting regions change.
func (r *LightingResolver) Invalidate() {
	r.cache = make(map[lightKey]LightSample)
	r.born = time.Time{}
}

func (r *LightingResolver) resolve(pos geom.Vec2) LightSample {
	if r.regions == nil {
		return LightSample{Level: r.ambient}
	}
	maxRank := 0
	for _, d := range r.regions.Darkness() {
		if d.Rank > maxRank && d.Shape.Contains(pos) {
			maxRank = d.Rank
		}
	}
	if maxRank > 0 {
		return LightSample{Level: LightDarkness, DarknessRank: maxRank, IsDarknessSource: true}
	}
	level := r.ambient
	for _, l := range r.regions.Lights() {
		if !l.Shape.Contains(pos) {
			continue
		}
		if !l.Dim {
			return LightSample{Level: LightBright}
		}
		if level == LightDarkness {
			level = LightDim
		}
	}
	return LightSample{Level: level}
}
