package vision

import (
	"Sightline/internal/geom"
	"Sightline/internal/scene"
)

// AttackKind qualifies which attacks a spotter link applies to.
type AttackKind string

const (
	AttackMelee  AttackKind = "melee"
	AttackRanged AttackKind = "ranged"
	AttackSpell  AttackKind = "spell"
)

// SpotterLink designates an ally pair: for qualifying attacks from Attacker,
// the named blocker is excluded from creature cover. The exclusion only
// applies when the blocker is actually found intersecting the attack line.
type SpotterLink struct {
	Attacker scene.EntityID
	Blocker  scene.EntityID
	Kinds    []AttackKind
}

func (l SpotterLink) qualifies(attacker scene.EntityID, kind AttackKind) bool {
	if l.Attacker != attacker {
		return false
	}
	if len(l.Kinds) == 0 {
		return true
	}
	for _, k := range l.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// CoverContext carries the pass-level inputs for one cover computation.
type CoverContext struct {
	Attack   AttackKind
	Blockers []EntityView
	Links    []SpotterLink
	// BlockerVisibility supplies the attacker's visibility of each candidate
	// blocker, for the ignore-undetected filter. Missing entries count as
	// observed.
	BlockerVisibility map[scene.EntityID]scene.VisibilityState
}

// CoverResult is the computed tier plus the bookkeeping the UI needs to
// explain it.
type CoverResult struct {
	State         scene.CoverState
	WallCover     scene.CoverState
	CreatureCover scene.CoverState
	Blockers      []scene.EntityID
	// Excluded records a spotter-link exclusion that lowered the result
	// below what geometry alone would give.
	Excluded    bool
	ExcludedBy  scene.EntityID
	FeatApplied bool
}

// CoverDetector derives cover from walls and intervening creatures, taking
// the higher of the two, then layers the rule exceptions on top.
type CoverDetector struct {
	los *LOSAnalyzer
	cfg *Config
}

func NewCoverDetector(los *LOSAnalyzer, cfg *Config) *CoverDetector {
	return &CoverDetector{los: los, cfg: cfg}
}

func (d *CoverDetector) DetectCover(attacker, target EntityView, ctx CoverContext) CoverResult {
	res := CoverResult{}
	res.WallCover = d.wallCover(attacker, target)
	d.creatureCover(attacker, target, ctx, &res)

	res.State = res.WallCover.Max(res.CreatureCover)

	// The target-side feat upgrades by exactly one step, never invents
	// cover, and is suppressed when a contributing blocker carries its own
	// independent cover ruling.
	if target.Traits.CoverFeat && res.State != scene.CoverNone && !d.blockerOverridePresent(ctx, res.Blockers) {
		res.State = res.State.Upgraded()
		res.FeatApplied = true
	}
	return res
}

// wallCover tests the attack line against sight-blocking walls with the same
// elevation logic as LOS, then grades the tier by how much of the target's
// token width is shadowed.
func (d *CoverDetector) wallCover(attacker, target EntityView) scene.CoverState {
	from := attacker.SightPoint()
	if len(d.los.BlockingWalls(from, target.SightPoint())) == 0 {
		return scene.CoverNone
	}

	// Sample across the target's width, perpendicular to the attack line.
	width := target.Size.Width()
	dir := target.Pos.Sub(attacker.Pos)
	length := dir.Len()
	if length < 1e-9 {
		return scene.CoverNone
	}
	perp := geom.Vec2{X: -dir.Y / length, Y: dir.X / length}

	const samples = 9
	blocked := 0
	for i := 0; i < samples; i++ {
		frac := float64(i)/float64(samples-1) - 0.5
		pt := target.Pos.Add(perp.Scale(frac * width))
		to := SightPoint{Pos: pt, Elevation: target.Elevation, Height: target.Size.Height()}
		if len(d.los.BlockingWalls(from, to)) > 0 {
			blocked++
		}
	}
	shadow := float64(blocked) / float64(samples)
	switch {
	case shadow >= d.cfg.GreaterCoverFrac:
		return scene.CoverGreater
	case shadow >= d.cfg.StandardCoverFrac:
		return scene.CoverStandard
	case blocked > 0:
		return scene.CoverLesser
	}
	// The center ray hit a wall even though no width sample did; the
	// intersection still qualifies.
	return scene.CoverLesser
}

func (d *CoverDetector) creatureCover(attacker, target EntityView, ctx CoverContext, res *CoverResult) {
	line := geom.Segment{A: attacker.Pos, B: target.Pos}
	standardCount := 0
	for _, b := range ctx.Blockers {
		if b.ID == attacker.ID || b.ID == target.ID {
			continue
		}
		if d.ignored(attacker, b, ctx) {
			continue
		}
		footprint := geom.Circle{Center: b.Pos, Radius: b.Size.Width() / 2}
		if !footprint.IntersectsSegment(line) {
			continue
		}
		if link, ok := d.spotterFor(attacker.ID, b.ID, ctx); ok {
			// Found intersecting, but a spotter link excludes it. Recorded
			// so the UI can explain the lower tier.
			res.Excluded = true
			res.ExcludedBy = link.Blocker
			continue
		}
		res.Blockers = append(res.Blockers, b.ID)
		tier := scene.CoverLesser
		if b.Size.Rank-target.Size.Rank >= CoverSizeRankGap {
			tier = scene.CoverStandard
		}
		if tier == scene.CoverStandard {
			standardCount++
		}
		res.CreatureCover = res.CreatureCover.Max(tier)
	}
	// Stacked large blockers top out at greater, never beyond.
	if standardCount >= 2 {
		res.CreatureCover = scene.CoverGreater
	}
}

func (d *CoverDetector) ignored(attacker EntityView, b EntityView, ctx CoverContext) bool {
	ig := d.cfg.IgnoreBlockers
	if ig.Dead && b.Has(scene.CondDead) {
		return true
	}
	if ig.Prone && b.Has(scene.CondProne) {
		return true
	}
	if ig.Allied && scene.Allied(attacker.Alliance, b.Alliance) {
		return true
	}
	if ig.Undetected {
		if vis, ok := ctx.BlockerVisibility[b.ID]; ok && vis == scene.Undetected {
			return true
		}
	}
	return false
}

func (d *CoverDetector) spotterFor(attacker, blocker scene.EntityID, ctx CoverContext) (SpotterLink, bool) {
	for _, link := range ctx.Links {
		if link.Blocker == blocker && link.qualifies(attacker, ctx.Attack) {
			return link, true
		}
	}
	return SpotterLink{}, false
}

func (d *CoverDetector) blockerOverridePresent(ctx CoverContext, contributing []scene.EntityID) bool {
	for _, id := range contributing {
		for _, b := range ctx.Blockers {
			if b.ID == id && b.Traits.CoverOverride {
				return true
			}
		}
	}
	return false
}
