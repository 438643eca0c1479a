package vision

import (
	"log"

	"Sightline/internal/geom"
	"Sightline/internal/scene"
)

// SightPoint is one endpoint of a sightline: a position plus the vertical
// span the entity occupies there.
type SightPoint struct {
	Pos       geom.Vec2
	Elevation float64
	Height    float64
}

// Eye is the elevation sightlines are drawn from, the top of the span.
func (p SightPoint) Eye() float64 { return p.Elevation + p.Height }

// LOSAnalyzer answers line-of-sight and darkness-boundary queries against the
// host's walls and darkness regions.
type LOSAnalyzer struct {
	walls   scene.WallSource
	elev    scene.ElevationProvider // optional
	regions scene.RegionSource
}

func NewLOSAnalyzer(walls scene.WallSource, elev scene.ElevationProvider, regions scene.RegionSource) *LOSAnalyzer {
	return &LOSAnalyzer{walls: walls, elev: elev, regions: regions}
}

// HasLineOfSight reports whether the sightline between the two points clears
// every sight-blocking wall. A wall with elevation bounds blocks only when
// the sightline's interpolated elevation at the crossing falls inside them;
// a wall without bounds blocks at all elevations.
func (a *LOSAnalyzer) HasLineOfSight(from, to SightPoint) bool {
	if a == nil || a.walls == nil {
		return true
	}
	ray := geom.Segment{A: from.Pos, B: to.Pos}
	for _, w := range a.walls.Walls() {
		if !w.Blocking() {
			continue
		}
		t, hit := ray.Intersect(w.Seg)
		if !hit {
			continue
		}
		bounds := a.boundsFor(w)
		if bounds == nil {
			return false
		}
		sightElev := geom.Lerp(from.Eye(), to.Eye(), t)
		if sightElev >= bounds.Bottom && sightElev <= bounds.Top {
			return false
		}
	}
	return true
}

// BlockingWalls returns every sight-blocking wall the segment crosses at an
// elevation the wall covers, with the crossing parameter along the ray.
// The cover detector shares this elevation logic with plain LOS checks.
func (a *LOSAnalyzer) BlockingWalls(from, to SightPoint) []WallHit {
	if a == nil || a.walls == nil {
		return nil
	}
	ray := geom.Segment{A: from.Pos, B: to.Pos}
	var hits []WallHit
	for _, w := range a.walls.Walls() {
		if !w.Blocking() {
			continue
		}
		t, hit := ray.Intersect(w.Seg)
		if !hit {
			continue
		}
		if bounds := a.boundsFor(w); bounds != nil {
			sightElev := geom.Lerp(from.Eye(), to.Eye(), t)
			if sightElev < bounds.Bottom || sightElev > bounds.Top {
				continue
			}
		}
		hits = append(hits, WallHit{Wall: w, T: t})
	}
	return hits
}

type WallHit struct {
	Wall scene.Wall
	T    float64
}

// RankAt returns the highest darkness rank among regions containing the point.
func (a *LOSAnalyzer) RankAt(p geom.Vec2) int {
	if a == nil || a.regions == nil {
		return 0
	}
	rank := 0
	for _, d := range a.regions.Darkness() {
		if d.Rank > rank && d.Shape.Contains(p) {
			rank = d.Rank
		}
	}
	return rank
}

// DarknessRankAlongRay returns the maximum rank among darkness regions the
// ray actually intersects. Regions without precise geometry are tested by
// coarse point sampling along the ray.
func (a *LOSAnalyzer) DarknessRankAlongRay(from, to geom.Vec2) int {
	if a == nil || a.regions == nil {
		return 0
	}
	ray := geom.Segment{A: from, B: to}
	rank := 0
	for _, d := range a.regions.Darkness() {
		if d.Rank <= rank {
			continue
		}
		if d.Shape.Precise() {
			if d.Shape.IntersectsSegment(ray) {
				rank = d.Rank
			}
			continue
		}
		for i := 0; i <= RasterSamples; i++ {
			t := float64(i) / float64(RasterSamples)
			if d.Shape.Contains(ray.PointAt(t)) {
				rank = d.Rank
				break
			}
		}
	}
	return rank
}

// EffectiveDarknessRank resolves the rank governing whether the observer's
// vision reaches the target. When the endpoints sit on opposite sides of a
// darkness boundary, the most restrictive rank along the path wins; when
// they share a side, the rank at the target's position alone applies.
func (a *LOSAnalyzer) EffectiveDarknessRank(observerPos, targetPos geom.Vec2) int {
	obs := a.RankAt(observerPos)
	tgt := a.RankAt(targetPos)
	if (obs > 0) == (tgt > 0) {
		return tgt
	}
	rank := a.DarknessRankAlongRay(observerPos, targetPos)
	if obs > rank {
		rank = obs
	}
	if tgt > rank {
		rank = tgt
	}
	return rank
}

func (a *LOSAnalyzer) boundsFor(w scene.Wall) *scene.ElevationBounds {
	if w.Bounds != nil {
		return w.Bounds
	}
	if a.elev == nil {
		return nil
	}
	bounds, err := a.elev.BoundsFor(w.ID)
	if err != nil {
		// A failing height provider degrades to "unbounded, always blocks".
		log.Printf("elevation provider for wall %s: %v", w.ID, err)
		return nil
	}
	return bounds
}
