package vision

import (
	"testing"
	"time"

	"Sightline/internal/scene"
)

type recordSink struct {
	calls [][]scene.EntityID
}

func (s *recordSink) Refresh(changed []scene.EntityID) {
	s.calls = append(s.calls, changed)
}

type orchFixture struct {
	world   *scene.World
	walls   stubWalls
	regions *stubRegions
	sink    *recordSink
	orch    *Orchestrator
	now     time.Time
}

func newOrchFixture(t *testing.T) *orchFixture {
	t.Helper()
	f := &orchFixture{
		world:   scene.NewWorld(),
		walls:   stubWalls{},
		regions: &stubRegions{},
		sink:    &recordSink{},
		now:     time.Now(),
	}
	cfg := DefaultConfig()
	cfg.DebounceDelay = 10 * time.Millisecond
	f.orch = NewOrchestrator(f.world, f.walls, nil, f.regions, f.sink, cfg)
	return f
}

func (f *orchFixture) addEntity(t *testing.T, id string, x, y float64) {
	t.Helper()
	if _, err := f.world.ApplyRecord(scene.EntityRecord{ID: id, X: x, Y: y}); err != nil {
		t.Fatalf("apply %s: %v", id, err)
	}
}

// pass enqueues the event and advances time past the debounce window.
func (f *orchFixture) pass(ev ChangeEvent) {
	f.orch.Enqueue(ev, f.now)
	f.now = f.now.Add(20 * time.Millisecond)
	f.orch.Tick(f.now)
}

func TestOrchestratorDebounce(t *testing.T) {
	f := newOrchFixture(t)
	f.addEntity(t, "a", 0, 0)
	f.addEntity(t, "b", 100, 0)

	f.orch.Enqueue(ChangeEvent{Kind: EventMove, Entity: "a"}, f.now)
	if f.orch.Phase() != PhaseCollecting {
		t.Fatalf("enqueue from idle must open the collecting window")
	}

	// Inside the window nothing runs.
	f.orch.Tick(f.now.Add(5 * time.Millisecond))
	if len(f.sink.calls) != 0 {
		t.Fatalf("pass ran before the debounce elapsed")
	}

	// A second event coalesces into the same window.
	f.orch.Enqueue(ChangeEvent{Kind: EventMove, Entity: "b"}, f.now.Add(5*time.Millisecond))

	f.orch.Tick(f.now.Add(20 * time.Millisecond))
	if len(f.sink.calls) != 1 {
		t.Fatalf("expected exactly one coalesced pass, got %d", len(f.sink.calls))
	}
	if f.orch.Phase() != PhaseIdle {
		t.Fatalf("pass must return to idle")
	}

	if _, ok := f.orch.PairState("a", "b"); !ok {
		t.Fatalf("pair a->b missing after the pass")
	}
	if _, ok := f.orch.PairState("b", "a"); !ok {
		t.Fatalf("pair b->a missing after the pass")
	}
}

func TestOrchestratorRefreshFiresEvenWhenNothingChanges(t *testing.T) {
	f := newOrchFixture(t)
	f.addEntity(t, "a", 0, 0)
	f.addEntity(t, "b", 100, 0)

	f.pass(ChangeEvent{Kind: EventSceneReady})
	f.pass(ChangeEvent{Kind: EventCondition, Entity: "a"})

	// Both passes notify, regardless of whether any discrete state moved.
	if len(f.sink.calls) != 2 {
		t.Fatalf("expected 2 refresh notifications, got %d", len(f.sink.calls))
	}
}

func TestOrchestratorLightingEventRecomputesScene(t *testing.T) {
	f := newOrchFixture(t)
	f.addEntity(t, "a", 0, 0)
	f.addEntity(t, "b", 100, 0)

	f.pass(ChangeEvent{Kind: EventSceneReady})
	st, _ := f.orch.PairState("a", "b")
	if st.Visibility != scene.Observed {
		t.Fatalf("setup: expected observed, got %v", st.Visibility)
	}

	// Darkness lands on the target; the lighting event invalidates the light
	// cache and recomputes scene-wide.
	f.regions.darkness = []scene.DarknessSource{darknessCircle("d", 100, 0, 30, 4)}
	f.pass(ChangeEvent{Kind: EventLighting})

	st, ok := f.orch.PairState("a", "b")
	if !ok || st.Visibility != scene.Hidden {
		t.Fatalf("after darkness: got %v ok=%v, want hidden", st.Visibility, ok)
	}
}

func TestOrchestratorRemovedEntityDropsPairs(t *testing.T) {
	f := newOrchFixture(t)
	f.addEntity(t, "a", 0, 0)
	f.addEntity(t, "b", 100, 0)

	f.pass(ChangeEvent{Kind: EventSceneReady})
	if _, ok := f.orch.PairState("a", "b"); !ok {
		t.Fatalf("setup: pair missing")
	}

	f.world.RemoveEntity("b")
	f.pass(ChangeEvent{Kind: EventRemoved, Entity: "b"})

	if _, ok := f.orch.PairState("a", "b"); ok {
		t.Fatalf("pairs involving a removed entity must be dropped")
	}
	if _, ok := f.orch.PairState("b", "a"); ok {
		t.Fatalf("reverse pair must be dropped too")
	}
}

func TestOrchestratorVisibilityOverrideApplied(t *testing.T) {
	f := newOrchFixture(t)
	f.addEntity(t, "a", 0, 0)
	f.addEntity(t, "b", 100, 0)

	f.world.Overrides("b").Set(&scene.Override{
		Observer:   "a",
		Kind:       scene.OverrideVisibility,
		Visibility: scene.Undetected,
		Source:     scene.SourceSneak,
	})
	f.pass(ChangeEvent{Kind: EventSceneReady})

	st, _ := f.orch.PairState("a", "b")
	if st.Visibility != scene.Undetected {
		t.Fatalf("pinned visibility must win: got %v", st.Visibility)
	}
	if st.OverrideStale {
		t.Fatalf("fresh override must not be stale")
	}
	// The reverse direction is unaffected.
	st, _ = f.orch.PairState("b", "a")
	if st.Visibility != scene.Observed {
		t.Fatalf("override is per ordered pair: got %v", st.Visibility)
	}
}

func TestOrchestratorOverrideGoesStaleOnMovement(t *testing.T) {
	f := newOrchFixture(t)
	f.addEntity(t, "a", 0, 0)
	f.addEntity(t, "b", 100, 0)

	f.world.Overrides("b").Set(&scene.Override{
		Observer:   "a",
		Kind:       scene.OverrideVisibility,
		Visibility: scene.Hidden,
	})
	f.pass(ChangeEvent{Kind: EventSceneReady})

	st, _ := f.orch.PairState("a", "b")
	if st.OverrideStale {
		t.Fatalf("setup: override fresh after first pass")
	}

	// The observer relocates far past the fingerprint grain; the override's
	// geometric assumptions no longer hold. It still applies, but flagged.
	f.world.Transform("a").Pos.X = 500
	f.pass(ChangeEvent{Kind: EventMove, Entity: "a"})

	st, _ = f.orch.PairState("a", "b")
	if st.Visibility != scene.Hidden {
		t.Fatalf("stale override still applies until cleared: got %v", st.Visibility)
	}
	if !st.OverrideStale {
		t.Fatalf("override must be flagged stale after the move")
	}
}

func TestOrchestratorRepinnedOverrideClearsStaleness(t *testing.T) {
	f := newOrchFixture(t)
	f.addEntity(t, "a", 0, 0)
	f.addEntity(t, "b", 100, 0)

	f.world.Overrides("b").Set(&scene.Override{
		Observer:   "a",
		Kind:       scene.OverrideVisibility,
		Visibility: scene.Hidden,
	})
	f.pass(ChangeEvent{Kind: EventSceneReady})

	f.world.Transform("a").Pos.X = 500
	f.pass(ChangeEvent{Kind: EventMove, Entity: "a"})
	st, _ := f.orch.PairState("a", "b")
	if !st.OverrideStale {
		t.Fatalf("setup: override must be stale after the move")
	}

	// The host re-pins under the new geometry. The replacement must start
	// fresh instead of inheriting the old snapshot's staleness.
	f.world.Overrides("b").Set(&scene.Override{
		Observer:   "a",
		Kind:       scene.OverrideVisibility,
		Visibility: scene.Hidden,
	})
	f.pass(ChangeEvent{Kind: EventCondition, Entity: "b"})

	st, _ = f.orch.PairState("a", "b")
	if st.Visibility != scene.Hidden {
		t.Fatalf("re-pinned override must apply: got %v", st.Visibility)
	}
	if st.OverrideStale {
		t.Fatalf("re-pinned override must not be flagged stale")
	}

	// And it goes stale again on its own terms if geometry drifts further.
	f.world.Transform("a").Pos.X = 1000
	f.pass(ChangeEvent{Kind: EventMove, Entity: "a"})
	st, _ = f.orch.PairState("a", "b")
	if !st.OverrideStale {
		t.Fatalf("replacement override must track its own fingerprints")
	}
}

func TestOrchestratorCoverOverrideApplied(t *testing.T) {
	f := newOrchFixture(t)
	f.addEntity(t, "a", 0, 0)
	f.addEntity(t, "b", 100, 0)

	f.world.Overrides("b").Set(&scene.Override{
		Observer: "a",
		Kind:     scene.OverrideCover,
		Cover:    scene.CoverGreater,
	})
	f.pass(ChangeEvent{Kind: EventSceneReady})

	st, _ := f.orch.PairState("a", "b")
	if st.Cover != scene.CoverGreater {
		t.Fatalf("pinned cover must win: got %v", st.Cover)
	}
	// The geometric detail is still reported for explanations.
	if st.CoverDetail.State != scene.CoverNone {
		t.Fatalf("geometry says none: got %v", st.CoverDetail.State)
	}
}

func TestOrchestratorPassIsIdempotent(t *testing.T) {
	f := newOrchFixture(t)
	f.addEntity(t, "a", 0, 0)
	f.addEntity(t, "b", 100, 0)
	f.regions.darkness = []scene.DarknessSource{darknessCircle("d", 100, 0, 30, 4)}

	f.pass(ChangeEvent{Kind: EventSceneReady})
	first, _ := f.orch.PairState("a", "b")

	f.pass(ChangeEvent{Kind: EventSceneReady})
	second, _ := f.orch.PairState("a", "b")

	if first.Visibility != second.Visibility || first.Cover != second.Cover || first.LOS != second.LOS {
		t.Fatalf("repeated pass diverged: %+v vs %+v", first, second)
	}
}

func TestOrchestratorInterestRadiusLimitsCandidates(t *testing.T) {
	f := newOrchFixture(t)
	f.addEntity(t, "a", 0, 0)
	f.addEntity(t, "b", 100, 0)
	f.addEntity(t, "remote", 50000, 50000)

	f.pass(ChangeEvent{Kind: EventMove, Entity: "a"})

	if _, ok := f.orch.PairState("a", "b"); !ok {
		t.Fatalf("nearby pair must be computed")
	}
	if _, ok := f.orch.PairState("a", "remote"); ok {
		t.Fatalf("entity outside the interest radius must not be computed")
	}
}

func TestOrchestratorReplaceWorld(t *testing.T) {
	f := newOrchFixture(t)
	f.addEntity(t, "a", 0, 0)
	f.addEntity(t, "b", 100, 0)
	f.pass(ChangeEvent{Kind: EventSceneReady})

	fresh := scene.NewWorld()
	if _, err := fresh.ApplyRecord(scene.EntityRecord{ID: "x", X: 0, Y: 0}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := fresh.ApplyRecord(scene.EntityRecord{ID: "y", X: 50, Y: 0}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	f.orch.ReplaceWorld(fresh)

	if _, ok := f.orch.PairState("a", "b"); ok {
		t.Fatalf("old scene's pairs must be gone")
	}
	f.pass(ChangeEvent{Kind: EventSceneReady})
	if _, ok := f.orch.PairState("x", "y"); !ok {
		t.Fatalf("new scene's pairs must be computed")
	}
}
