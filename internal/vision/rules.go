package vision

import (
	"log"
	"math"
	"time"

	"Sightline/internal/geom"
	"Sightline/internal/scene"
)

// EntityView is an immutable snapshot of one entity taken at the start of a
// batch pass. Every pair computation in a pass works from the same views, so
// no computation observes another's mutations.
type EntityView struct {
	ID         scene.EntityID
	Pos        geom.Vec2
	Elevation  float64
	Size       scene.Footprint
	Conditions scene.ConditionSet
	Senses     scene.SenseProfile
	Alliance   scene.Alliance
	Traits     scene.Traits
}

func (v EntityView) Has(c scene.Condition) bool { return v.Conditions.Has(c) }

func (v EntityView) SightPoint() SightPoint {
	return SightPoint{Pos: v.Pos, Elevation: v.Elevation, Height: v.Size.Height()}
}

// NewEntityView snapshots the entity's components from the world.
func NewEntityView(w *scene.World, id scene.EntityID) (EntityView, bool) {
	tr := w.Transform(id)
	if tr == nil {
		return EntityView{}, false
	}
	view := EntityView{
		ID:        id,
		Pos:       tr.Pos,
		Elevation: tr.Elevation,
		Size:      scene.Footprint{Rank: 2},
	}
	if fp := w.FootprintData(id); fp != nil {
		view.Size = *fp
	}
	if conds := w.Conditions(id); conds != nil {
		view.Conditions = conds.Clone()
	} else {
		view.Conditions = scene.ConditionSet{}
	}
	if s := w.Senses(id); s != nil {
		view.Senses = *s
	} else {
		view.Senses = scene.SenseProfile{Vision: true}
	}
	if al := w.AllianceData(id); al != nil {
		view.Alliance = *al
	}
	if tr := w.TraitsData(id); tr != nil {
		view.Traits = *tr
	}
	return view, true
}

// PairInput is everything the rules engine needs to resolve one ordered pair.
type PairInput struct {
	Observer EntityView
	Target   EntityView
	Override *scene.Override // visibility override, if any
	Prior    *scene.VisibilityState
	Now      time.Time
}

// Engine resolves an observer's perception of a target by running a
// short-circuiting pipeline of checks. Each check either returns a terminal
// state or falls through to the next.
type Engine struct {
	los      *LOSAnalyzer
	lighting *LightingResolver
	cfg      *Config
}

func NewEngine(los *LOSAnalyzer, lighting *LightingResolver, cfg *Config) *Engine {
	return &Engine{los: los, lighting: lighting, cfg: cfg}
}

type pairCtx struct {
	in PairInput
	// floor is the worst "at least this obscured" level accumulated by
	// non-terminal checks (dazzled, elevation).
	floor scene.VisibilityState
}

type visCheck struct {
	name string
	fn   func(*Engine, *pairCtx) (scene.VisibilityState, bool)
}

// ComputeVisibility is total for well-formed input: it always returns one of
// the four states. A valid unexpired override short-circuits everything.
func (e *Engine) ComputeVisibility(in PairInput) scene.VisibilityState {
	if o := in.Override; o != nil && o.Kind == scene.OverrideVisibility && !o.Expired(in.Now) {
		return o.Visibility
	}
	ctx := &pairCtx{in: in}
	state := e.run(ctx, e.fullPipeline())
	return state.Worse(ctx.floor)
}

func (e *Engine) run(ctx *pairCtx, checks []visCheck) scene.VisibilityState {
	for _, c := range checks {
		if s, done := e.safeCheck(ctx, c); done {
			return s
		}
	}
	return scene.Observed
}

// safeCheck recovers a panicking check and treats it as "does not apply" so a
// single broken branch never aborts the whole pair.
func (e *Engine) safeCheck(ctx *pairCtx, c visCheck) (s scene.VisibilityState, done bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("visibility check %s for %s->%s: recovered: %v",
				c.name, ctx.in.Observer.ID, ctx.in.Target.ID, r)
			s, done = scene.Observed, false
		}
	}()
	return c.fn(e, ctx)
}

func (e *Engine) fullPipeline() []visCheck {
	head := []visCheck{
		{"blinded", (*Engine).checkBlinded},
		{"invisibility", (*Engine).checkInvisibility},
	}
	return append(head, e.baselinePipeline()...)
}

// baselinePipeline covers everything after the invisibility transform: the
// invisibility check computes "as if visible" from these same steps.
func (e *Engine) baselinePipeline() []visCheck {
	tail := []visCheck{
		{"dazzled", (*Engine).checkDazzled},
		{"light-level", (*Engine).checkVisionAtLight},
		{"line-of-sight", (*Engine).checkLineOfSight},
	}
	if e.cfg.ElevationBeforeBoundary {
		tail = append(tail,
			visCheck{"elevation", (*Engine).checkElevation},
			visCheck{"darkness-boundary", (*Engine).checkBoundary},
		)
	} else {
		tail = append(tail,
			visCheck{"darkness-boundary", (*Engine).checkBoundary},
			visCheck{"elevation", (*Engine).checkElevation},
		)
	}
	return tail
}

// nonVisualState resolves perception through non-visual senses alone.
func nonVisualState(s scene.SenseProfile) scene.VisibilityState {
	switch {
	case s.PreciseNonVisual:
		return scene.Observed
	case s.Imprecise:
		return scene.Hidden
	}
	return scene.Undetected
}

func (e *Engine) checkBlinded(ctx *pairCtx) (scene.VisibilityState, bool) {
	if !ctx.in.Observer.Has(scene.CondBlinded) {
		return scene.Observed, false
	}
	return nonVisualState(ctx.in.Observer.Senses), true
}

// checkInvisibility computes the baseline state as if the target were
// visible, then walks it down the invisibility ladder. A precise non-visual
// sense negates invisibility outright; an imprecise one caps it at hidden.
func (e *Engine) checkInvisibility(ctx *pairCtx) (scene.VisibilityState, bool) {
	if !ctx.in.Target.Has(scene.CondInvisible) {
		return scene.Observed, false
	}
	senses := ctx.in.Observer.Senses
	if senses.PreciseNonVisual {
		return scene.Observed, true
	}
	baseline := e.run(ctx, e.baselinePipeline()).Worse(ctx.floor)
	var state scene.VisibilityState
	switch baseline {
	case scene.Observed, scene.Concealed:
		state = scene.Hidden
	case scene.Hidden, scene.Undetected:
		state = scene.Undetected
	default:
		panic("unknown visibility state from baseline")
	}
	if senses.Imprecise && state > scene.Hidden {
		state = scene.Hidden
	}
	return state, true
}

// checkDazzled degrades vision to at-least-concealed unless a precise
// non-visual sense makes sight irrelevant. Not terminal: deeper failures
// (darkness, lost LOS) still apply.
func (e *Engine) checkDazzled(ctx *pairCtx) (scene.VisibilityState, bool) {
	if !ctx.in.Observer.Has(scene.CondDazzled) {
		return scene.Observed, false
	}
	if ctx.in.Observer.Senses.PreciseNonVisual {
		return scene.Observed, true
	}
	ctx.floor = ctx.floor.Worse(scene.Concealed)
	return scene.Observed, false
}

// visionDefeatedByRank reports whether a darkness rank is too strong for the
// observer's vision tier.
func visionDefeatedByRank(s scene.SenseProfile, rank int) bool {
	if rank <= 0 {
		return false
	}
	if !s.Vision {
		return true
	}
	switch s.Darkvision {
	case scene.GreaterDarkvision:
		return false
	case scene.Darkvision:
		return rank > GreaterDarkvisionThreshold
	}
	return true
}

// resolveInDarkness picks the state when darkness defeats the observer's
// vision. Darkness blocks sight, not awareness: the target stays hidden
// rather than undetected. The one exception is a target the observer never
// perceived in the first place: a prior undetected stays undetected.
func (e *Engine) resolveInDarkness(ctx *pairCtx) scene.VisibilityState {
	s := ctx.in.Observer.Senses
	switch {
	case s.PreciseNonVisual:
		return scene.Observed
	case s.Imprecise:
		return scene.Hidden
	}
	if ctx.in.Prior != nil && *ctx.in.Prior == scene.Undetected {
		return scene.Undetected
	}
	return scene.Hidden
}

func (e *Engine) checkVisionAtLight(ctx *pairCtx) (scene.VisibilityState, bool) {
	if !ctx.in.Observer.Senses.Vision {
		return nonVisualState(ctx.in.Observer.Senses), true
	}
	sample := e.lighting.LightLevelAt(ctx.in.Target.Pos, ctx.in.Target.ID, ctx.in.Now)
	if sample.Level != LightDarkness {
		if sample.Level == LightDim {
			ctx.floor = ctx.floor.Worse(scene.Concealed)
		}
		return scene.Observed, false
	}
	if visionDefeatedByRank(ctx.in.Observer.Senses, sample.DarknessRank) {
		return e.resolveInDarkness(ctx), true
	}
	return scene.Observed, false
}

func (e *Engine) checkLineOfSight(ctx *pairCtx) (scene.VisibilityState, bool) {
	if e.los.HasLineOfSight(ctx.in.Observer.SightPoint(), ctx.in.Target.SightPoint()) {
		return scene.Observed, false
	}
	return nonVisualState(ctx.in.Observer.Senses), true
}

// checkElevation forces at least concealed across large elevation gaps,
// regardless of lighting.
func (e *Engine) checkElevation(ctx *pairCtx) (scene.VisibilityState, bool) {
	diff := math.Abs(ctx.in.Observer.Elevation - ctx.in.Target.Elevation)
	if diff >= e.cfg.ElevationConcealDiff {
		ctx.floor = ctx.floor.Worse(scene.Concealed)
	}
	return scene.Observed, false
}

// checkBoundary applies the cross-boundary darkness analysis: the higher of
// the same-side and cross-boundary ranks decides whether the target is
// effectively in darkness from the observer's perspective.
func (e *Engine) checkBoundary(ctx *pairCtx) (scene.VisibilityState, bool) {
	rank := e.los.EffectiveDarknessRank(ctx.in.Observer.Pos, ctx.in.Target.Pos)
	if rank == 0 {
		return scene.Observed, false
	}
	if visionDefeatedByRank(ctx.in.Observer.Senses, rank) {
		return e.resolveInDarkness(ctx), true
	}
	return scene.Observed, false
}
