package vision

import (
	"time"

	"Sightline/internal/geom"
	"Sightline/internal/scene"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCollecting
	PhaseComputing
)

type EventKind int

const (
	EventMove EventKind = iota
	EventCondition
	EventLighting
	EventSceneReady
	EventRemoved
)

// ChangeEvent is one host-side mutation the orchestrator must react to.
type ChangeEvent struct {
	Kind   EventKind
	Entity scene.EntityID // empty for scene-wide events
}

// PairState is the computed relation for one ordered pair, readable by the
// host between passes as an idempotent snapshot.
type PairState struct {
	Visibility    scene.VisibilityState
	Cover         scene.CoverState
	LOS           bool
	OverrideStale bool
	CoverDetail   CoverResult
}

// Orchestrator is the sole entry point for change events. It coalesces them
// into debounced batch passes, drives every component, and owns all cache
// mutation. It runs on the host's single thread of control: Enqueue and Tick
// are called from the room loop, never concurrently.
type Orchestrator struct {
	cfg   Config
	world *scene.World
	sink  scene.RefreshSink

	idx      *SpatialIndex
	lighting *LightingResolver
	los      *LOSAnalyzer
	engine   *Engine
	cover    *CoverDetector
	caches   *CacheSet

	links []SpotterLink

	phase     Phase
	pending   map[scene.EntityID]struct{}
	sceneWide bool
	dueAt     time.Time
	queued    []ChangeEvent

	results map[PairKey]PairState
}

// NewOrchestrator wires the engine components at the composition root;
// nothing inside holds global state.
func NewOrchestrator(world *scene.World, walls scene.WallSource, elev scene.ElevationProvider,
	regions scene.RegionSource, sink scene.RefreshSink, cfg Config) *Orchestrator {

	cfg = SanitizeConfig(cfg)
	o := &Orchestrator{
		cfg:     cfg,
		world:   world,
		sink:    sink,
		idx:     NewSpatialIndex(cfg.GridCellSize),
		pending: make(map[scene.EntityID]struct{}),
		results: make(map[PairKey]PairState),
	}
	o.lighting = NewLightingResolver(regions, LightBright, cfg.LightCacheTTL)
	o.los = NewLOSAnalyzer(walls, elev, regions)
	o.engine = NewEngine(o.los, o.lighting, &o.cfg)
	o.cover = NewCoverDetector(o.los, &o.cfg)
	o.caches = NewCacheSet(&o.cfg)
	return o
}

func (o *Orchestrator) Phase() Phase { return o.phase }

// ReplaceWorld swaps in a fresh world on scene load, discarding every cache
// and computed pair from the previous scene.
func (o *Orchestrator) ReplaceWorld(w *scene.World) {
	o.world = w
	o.caches = NewCacheSet(&o.cfg)
	o.results = make(map[PairKey]PairState)
	o.pending = make(map[scene.EntityID]struct{})
	o.sceneWide = false
}

// SetSpotterLinks replaces the configured ally exclusions.
func (o *Orchestrator) SetSpotterLinks(links []SpotterLink) { o.links = links }

// PairState returns the last computed relation for the pair.
func (o *Orchestrator) PairState(observer, target scene.EntityID) (PairState, bool) {
	st, ok := o.results[PairKey{Observer: observer, Target: target}]
	return st, ok
}

// Caches exposes the cache set for snapshot reads; external code must never
// write into it.
func (o *Orchestrator) Caches() *CacheSet { return o.caches }

// Enqueue records a change event. Events never trigger recomputation
// directly; the debounce window coalesces bursts into one pass. Events that
// arrive mid-pass queue up and open a fresh collecting phase afterwards.
func (o *Orchestrator) Enqueue(ev ChangeEvent, now time.Time) {
	if o.phase == PhaseComputing {
		o.queued = append(o.queued, ev)
		return
	}
	if o.phase == PhaseIdle {
		o.phase = PhaseCollecting
		o.dueAt = now.Add(o.cfg.DebounceDelay)
	}
	o.record(ev)
}

func (o *Orchestrator) record(ev ChangeEvent) {
	switch ev.Kind {
	case EventSceneReady:
		o.sceneWide = true
	case EventLighting:
		o.lighting.Invalidate()
		o.sceneWide = true
	case EventRemoved:
		o.caches.DropEntity(ev.Entity)
		o.dropResults(ev.Entity)
	default:
		if ev.Entity != "" {
			o.pending[ev.Entity] = struct{}{}
		}
	}
}

// Tick advances the state machine. Called at the host's cadence; it prunes
// the caches and, when the debounce window has elapsed, runs one batch pass.
func (o *Orchestrator) Tick(now time.Time) {
	o.caches.PruneIfDue(now)
	if o.phase == PhaseCollecting && !now.Before(o.dueAt) {
		o.runPass(now)
	}
}

// runPass executes one atomic recomputation. All pair computations observe
// the entity views snapshotted here; a pass is never interrupted once
// started.
func (o *Orchestrator) runPass(now time.Time) {
	o.phase = PhaseComputing
	changed := o.pending
	sceneWide := o.sceneWide
	o.pending = make(map[scene.EntityID]struct{})
	o.sceneWide = false

	views := o.snapshotViews()
	ids := make([]scene.EntityID, 0, len(views))
	for id := range views {
		ids = append(ids, id)
	}
	o.idx.Build(ids, func(id scene.EntityID) (geom.Vec2, bool) {
		v, ok := views[id]
		return v.Pos, ok
	})

	candidates := o.candidateSet(views, changed, sceneWide)
	o.computePairs(views, candidates, now)

	// Unconditional refresh: condition-only changes can alter perception
	// without changing any cached discrete state.
	if o.sink != nil {
		changedList := make([]scene.EntityID, 0, len(changed))
		for id := range changed {
			changedList = append(changedList, id)
		}
		o.sink.Refresh(changedList)
	}

	o.phase = PhaseIdle
	if len(o.queued) > 0 {
		queued := o.queued
		o.queued = nil
		for _, ev := range queued {
			o.Enqueue(ev, now)
		}
	}
}

// snapshotViews copies every positioned entity into immutable views,
// applying the viewport filter when configured.
func (o *Orchestrator) snapshotViews() map[scene.EntityID]EntityView {
	views := make(map[scene.EntityID]EntityView)
	var clip *geom.Rect
	if vp := o.cfg.Viewport; vp != nil {
		r := geom.Rect{MinX: vp.MinX, MinY: vp.MinY, MaxX: vp.MaxX, MaxY: vp.MaxY}.Expanded(o.cfg.ViewportPadding)
		clip = &r
	}
	o.world.ForEach([]scene.ComponentKey{scene.CompTransform}, func(id scene.EntityID) {
		view, ok := NewEntityView(o.world, id)
		if !ok {
			return
		}
		if clip != nil && !clip.Contains(view.Pos) {
			return
		}
		views[id] = view
	})
	return views
}

// candidateSet narrows the pair set to entities near the changed ones; a
// scene-wide event takes everything in the snapshot.
func (o *Orchestrator) candidateSet(views map[scene.EntityID]EntityView, changed map[scene.EntityID]struct{}, sceneWide bool) []scene.EntityID {
	if sceneWide {
		out := make([]scene.EntityID, 0, len(views))
		for id := range views {
			out = append(out, id)
		}
		return out
	}
	set := make(map[scene.EntityID]struct{})
	for id := range changed {
		view, ok := views[id]
		if !ok {
			continue
		}
		set[id] = struct{}{}
		for _, near := range o.idx.QueryCircle(view.Pos, o.cfg.InterestRadius) {
			set[near] = struct{}{}
		}
	}
	out := make([]scene.EntityID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

func (o *Orchestrator) computePairs(views map[scene.EntityID]EntityView, candidates []scene.EntityID, now time.Time) {
	blockers := make([]EntityView, 0, len(views))
	for _, v := range views {
		blockers = append(blockers, v)
	}

	// First sub-pass: visibility and LOS for every ordered pair, so the
	// cover sub-pass can consult fresh visibility for its ignore filters.
	visByPair := make(map[PairKey]scene.VisibilityState)
	for _, obsID := range candidates {
		obs := views[obsID]
		obsFP := FingerprintOf(obs.Pos, obs.Elevation, o.cfg.FingerprintGrain)
		for _, tgtID := range candidates {
			if tgtID == obsID {
				continue
			}
			tgt := views[tgtID]
			tgtFP := FingerprintOf(tgt.Pos, tgt.Elevation, o.cfg.FingerprintGrain)
			key := PairKey{Observer: obsID, Target: tgtID}

			losVal, ok := o.caches.LOS.Get(key, obsFP, tgtFP, now)
			if !ok {
				losVal = o.los.HasLineOfSight(obs.SightPoint(), tgt.SightPoint())
				o.caches.LOS.Set(key, losVal, obsFP, tgtFP, now)
			}

			var prior *scene.VisibilityState
			if p, _, _, ok := o.caches.Visibility.Peek(key); ok {
				prior = &p
			}
			override := o.world.Overrides(tgtID).For(scene.OverrideVisibility, obsID, now)
			vis := o.engine.ComputeVisibility(PairInput{
				Observer: obs,
				Target:   tgt,
				Override: override,
				Prior:    prior,
				Now:      now,
			})
			o.caches.Visibility.Set(key, vis, obsFP, tgtFP, now)
			visByPair[key] = vis

			stale := o.trackOverride(key, override, obsFP, tgtFP, now)
			st := o.results[key]
			st.Visibility = vis
			st.LOS = losVal
			st.OverrideStale = stale
			o.results[key] = st
		}
	}

	for _, obsID := range candidates {
		obs := views[obsID]
		for _, tgtID := range candidates {
			if tgtID == obsID {
				continue
			}
			tgt := views[tgtID]
			key := PairKey{Observer: obsID, Target: tgtID}
			ctx := CoverContext{
				Attack:            AttackRanged,
				Blockers:          blockers,
				Links:             o.links,
				BlockerVisibility: o.blockerVisibilityFor(obsID, visByPair),
			}
			detail := o.cover.DetectCover(obs, tgt, ctx)
			state := detail.State
			if co := o.world.Overrides(tgtID).For(scene.OverrideCover, obsID, now); co != nil {
				state = co.Cover
			}
			st := o.results[key]
			st.Cover = state
			st.CoverDetail = detail
			o.results[key] = st
		}
	}
}

// trackOverride maintains the override-validity cache: when an override's
// stored fingerprints drift from the entities' current ones, its geometric
// assumptions no longer hold and it is flagged for review rather than
// silently trusted or discarded. A re-pinned override (the list slot now
// holds a different entry) reseeds the snapshot under the current
// fingerprints; staleness never carries over from a replaced override.
func (o *Orchestrator) trackOverride(key PairKey, override *scene.Override, obsFP, tgtFP Fingerprint, now time.Time) bool {
	if override == nil {
		o.caches.Overrides.Drop(key)
		return false
	}
	prev, prevObs, prevTgt, ok := o.caches.Overrides.Peek(key)
	if !ok || prev.Override != override {
		o.caches.Overrides.Set(key, OverrideSnapshot{Override: override}, obsFP, tgtFP, now)
		return false
	}
	return prevObs != obsFP || prevTgt != tgtFP
}

func (o *Orchestrator) blockerVisibilityFor(observer scene.EntityID, visByPair map[PairKey]scene.VisibilityState) map[scene.EntityID]scene.VisibilityState {
	out := make(map[scene.EntityID]scene.VisibilityState)
	for key, vis := range visByPair {
		if key.Observer == observer {
			out[key.Target] = vis
		}
	}
	return out
}

func (o *Orchestrator) dropResults(id scene.EntityID) {
	for key := range o.results {
		if key.Observer == id || key.Target == id {
			delete(o.results, key)
		}
	}
}
