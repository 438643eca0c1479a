package vision

import (
	"testing"

	"Sightline/internal/geom"
	"Sightline/internal/scene"
)

type stubWalls []scene.Wall

func (s stubWalls) Walls() []scene.Wall { return s }

type stubRegions struct {
	lights   []scene.LightSource
	darkness []scene.DarknessSource
}

func (s *stubRegions) Lights() []scene.LightSource      { return s.lights }
func (s *stubRegions) Darkness() []scene.DarknessSource { return s.darkness }

func wall(id string, x1, y1, x2, y2 float64) scene.Wall {
	return scene.Wall{
		ID:          id,
		Seg:         geom.Segment{A: geom.Vec2{X: x1, Y: y1}, B: geom.Vec2{X: x2, Y: y2}},
		BlocksSight: true,
	}
}

func sight(x, y, elevation float64) SightPoint {
	return SightPoint{Pos: geom.Vec2{X: x, Y: y}, Elevation: elevation, Height: 5}
}

func TestLineOfSightBlockedByWall(t *testing.T) {
	walls := stubWalls{wall("w1", 50, -50, 50, 50)}
	a := NewLOSAnalyzer(walls, nil, nil)

	if a.HasLineOfSight(sight(0, 0, 0), sight(100, 0, 0)) {
		t.Fatalf("wall between the points must block")
	}
	if !a.HasLineOfSight(sight(0, 100, 0), sight(100, 100, 0)) {
		t.Fatalf("sightline clear of the wall must pass")
	}
}

func TestLineOfSightOpenDoor(t *testing.T) {
	door := wall("door", 50, -50, 50, 50)
	door.DoorOpen = true
	a := NewLOSAnalyzer(stubWalls{door}, nil, nil)

	if !a.HasLineOfSight(sight(0, 0, 0), sight(100, 0, 0)) {
		t.Fatalf("open door must not block")
	}
}

func TestLineOfSightElevationBounds(t *testing.T) {
	low := wall("ledge", 50, -50, 50, 50)
	low.Bounds = &scene.ElevationBounds{Bottom: 0, Top: 10}
	a := NewLOSAnalyzer(stubWalls{low}, nil, nil)

	// Ground-level eyes cross the wall inside its span.
	if a.HasLineOfSight(sight(0, 0, 0), sight(100, 0, 0)) {
		t.Fatalf("bounded wall must block at ground level")
	}
	// Both entities well above the wall's top see over it.
	if !a.HasLineOfSight(sight(0, 0, 15), sight(100, 0, 20)) {
		t.Fatalf("sightline above the bounds must pass")
	}
}

func TestLineOfSightUnboundedWallBlocksAllElevations(t *testing.T) {
	a := NewLOSAnalyzer(stubWalls{wall("w1", 50, -50, 50, 50)}, nil, nil)
	if a.HasLineOfSight(sight(0, 0, 500), sight(100, 0, 500)) {
		t.Fatalf("wall without bounds blocks at any elevation")
	}
}

func TestBlockingWallsReportsCrossings(t *testing.T) {
	walls := stubWalls{
		wall("near", 25, -50, 25, 50),
		wall("far", 75, -50, 75, 50),
		wall("aside", 50, 100, 50, 200),
	}
	a := NewLOSAnalyzer(walls, nil, nil)

	hits := a.BlockingWalls(sight(0, 0, 0), sight(100, 0, 0))
	if len(hits) != 2 {
		t.Fatalf("expected 2 crossings, got %d", len(hits))
	}
}

func darknessCircle(id string, cx, cy, r float64, rank int) scene.DarknessSource {
	return scene.DarknessSource{
		ID:    id,
		Shape: scene.Shape{Circle: &geom.Circle{Center: geom.Vec2{X: cx, Y: cy}, Radius: r}},
		Rank:  rank,
	}
}

func TestEffectiveDarknessRankSameSide(t *testing.T) {
	regions := &stubRegions{darkness: []scene.DarknessSource{darknessCircle("d", 50, 0, 10, 4)}}
	a := NewLOSAnalyzer(stubWalls{}, nil, regions)

	// Both endpoints outside: the blob between them does not apply; the rank
	// at the target alone governs.
	if rank := a.EffectiveDarknessRank(geom.Vec2{X: 0, Y: 0}, geom.Vec2{X: 100, Y: 0}); rank != 0 {
		t.Fatalf("same-side pair: got rank %d, want 0", rank)
	}
	// Both endpoints inside: target's rank.
	if rank := a.EffectiveDarknessRank(geom.Vec2{X: 45, Y: 0}, geom.Vec2{X: 55, Y: 0}); rank != 4 {
		t.Fatalf("both inside: got rank %d, want 4", rank)
	}
}

func TestEffectiveDarknessRankCrossBoundary(t *testing.T) {
	regions := &stubRegions{darkness: []scene.DarknessSource{darknessCircle("d", 100, 0, 20, 3)}}
	a := NewLOSAnalyzer(stubWalls{}, nil, regions)

	// Observer outside, target inside: the most restrictive rank along the
	// path wins.
	if rank := a.EffectiveDarknessRank(geom.Vec2{X: 0, Y: 0}, geom.Vec2{X: 100, Y: 0}); rank != 3 {
		t.Fatalf("cross-boundary: got rank %d, want 3", rank)
	}
	// Symmetric case: observer inside looking out.
	if rank := a.EffectiveDarknessRank(geom.Vec2{X: 100, Y: 0}, geom.Vec2{X: 0, Y: 0}); rank != 3 {
		t.Fatalf("inside looking out: got rank %d, want 3", rank)
	}
}

func TestDarknessRankAlongRayImpreciseShape(t *testing.T) {
	// No precise geometry: containment callback only, resolved by sampling.
	blob := scene.DarknessSource{
		ID: "fog",
		Shape: scene.Shape{ContainsFn: func(p geom.Vec2) bool {
			return p.X >= 40 && p.X <= 60
		}},
		Rank: 2,
	}
	regions := &stubRegions{darkness: []scene.DarknessSource{blob}}
	a := NewLOSAnalyzer(stubWalls{}, nil, regions)

	if rank := a.DarknessRankAlongRay(geom.Vec2{X: 0, Y: 0}, geom.Vec2{X: 100, Y: 0}); rank != 2 {
		t.Fatalf("sampled ray should find the band, got %d", rank)
	}
	if rank := a.DarknessRankAlongRay(geom.Vec2{X: 0, Y: 0}, geom.Vec2{X: 30, Y: 0}); rank != 0 {
		t.Fatalf("ray short of the band should miss, got %d", rank)
	}
}
