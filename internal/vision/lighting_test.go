package vision

import (
	"testing"
	"time"

	"Sightline/internal/geom"
	"Sightline/internal/scene"
)

func lightCircle(id string, cx, cy, r float64, dim bool) scene.LightSource {
	return scene.LightSource{
		ID:    id,
		Shape: scene.Shape{Circle: &geom.Circle{Center: geom.Vec2{X: cx, Y: cy}, Radius: r}},
		Dim:   dim,
	}
}

func TestLightingDarknessBeatsLight(t *testing.T) {
	regions := &stubRegions{
		lights:   []scene.LightSource{lightCircle("torch", 0, 0, 50, false)},
		darkness: []scene.DarknessSource{darknessCircle("dark", 0, 0, 50, 4)},
	}
	r := NewLightingResolver(regions, LightBright, time.Second)

	sample := r.LightLevelAt(geom.Vec2{X: 0, Y: 0}, "e", time.Now())
	if sample.Level != LightDarkness || sample.DarknessRank != 4 {
		t.Fatalf("overlapping darkness must win: %+v", sample)
	}
	if !sample.IsDarknessSource {
		t.Fatalf("sample should mark the darkness source")
	}
}

func TestLightingHighestRankWins(t *testing.T) {
	regions := &stubRegions{
		darkness: []scene.DarknessSource{
			darknessCircle("weak", 0, 0, 50, 1),
			darknessCircle("strong", 0, 0, 30, 3),
		},
	}
	r := NewLightingResolver(regions, LightBright, time.Second)

	sample := r.LightLevelAt(geom.Vec2{X: 0, Y: 0}, "e", time.Now())
	if sample.DarknessRank != 3 {
		t.Fatalf("expected rank 3, got %d", sample.DarknessRank)
	}
}

func TestLightingDimAgainstDarkAmbient(t *testing.T) {
	regions := &stubRegions{
		lights: []scene.LightSource{lightCircle("candle", 0, 0, 20, true)},
	}
	r := NewLightingResolver(regions, LightDarkness, time.Second)

	now := time.Now()
	if sample := r.LightLevelAt(geom.Vec2{X: 0, Y: 0}, "e", now); sample.Level != LightDim {
		t.Fatalf("inside the candle radius: got %v, want dim", sample.Level)
	}
	if sample := r.LightLevelAt(geom.Vec2{X: 100, Y: 0}, "e", now); sample.Level != LightDarkness {
		t.Fatalf("outside all lights: got %v, want ambient darkness", sample.Level)
	}
}

func TestLightingCacheInvalidate(t *testing.T) {
	regions := &stubRegions{
		darkness: []scene.DarknessSource{darknessCircle("dark", 0, 0, 50, 4)},
	}
	r := NewLightingResolver(regions, LightBright, time.Minute)
	now := time.Now()

	if sample := r.LightLevelAt(geom.Vec2{X: 0, Y: 0}, "e", now); sample.Level != LightDarkness {
		t.Fatalf("setup: expected darkness, got %v", sample.Level)
	}

	// The region goes away but the memoized sample survives until invalidated.
	regions.darkness = nil
	if sample := r.LightLevelAt(geom.Vec2{X: 0, Y: 0}, "e", now); sample.Level != LightDarkness {
		t.Fatalf("cached sample expected before invalidation, got %v", sample.Level)
	}
	r.Invalidate()
	if sample := r.LightLevelAt(geom.Vec2{X: 0, Y: 0}, "e", now); sample.Level != LightBright {
		t.Fatalf("after invalidation: got %v, want bright", sample.Level)
	}
}

func TestLightingCacheTTLReset(t *testing.T) {
	regions := &stubRegions{
		darkness: []scene.DarknessSource{darknessCircle("dark", 0, 0, 50, 2)},
	}
	r := NewLightingResolver(regions, LightBright, 100*time.Millisecond)
	now := time.Now()

	r.LightLevelAt(geom.Vec2{X: 0, Y: 0}, "e", now)
	regions.darkness = nil

	// Past the TTL the cache is rebuilt wholesale.
	later := now.Add(time.Second)
	if sample := r.LightLevelAt(geom.Vec2{X: 0, Y: 0}, "e", later); sample.Level != LightBright {
		t.Fatalf("stale cache must clear after the TTL, got %v", sample.Level)
	}
}
