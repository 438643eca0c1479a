package scene

import "Sightline/internal/geom"

type EntityID string

// Condition is a host-applied status affecting perception.
type Condition string

const (
	CondBlinded   Condition = "blinded"
	CondDazzled   Condition = "dazzled"
	CondInvisible Condition = "invisible"
	CondProne     Condition = "prone"
	CondDead      Condition = "dead"
)

type ConditionSet map[Condition]bool

func (cs ConditionSet) Has(c Condition) bool { return cs[c] }

func (cs ConditionSet) Clone() ConditionSet {
	out := make(ConditionSet, len(cs))
	for c, on := range cs {
		if on {
			out[c] = true
		}
	}
	return out
}

// DarkvisionTier is the strength of an entity's vision in magical darkness.
type DarkvisionTier int

const (
	NoDarkvision DarkvisionTier = iota
	Darkvision
	GreaterDarkvision
)

// SenseProfile describes what an entity can perceive with.
type SenseProfile struct {
	Vision           bool
	Darkvision       DarkvisionTier
	PreciseNonVisual bool // e.g. echolocation: pinpoints without sight
	Imprecise        bool // e.g. hearing, tremorsense: locates but cannot pinpoint
}

// Transform is an entity's position in the scene.
type Transform struct {
	Pos       geom.Vec2
	Elevation float64
}

// Footprint is the entity's size rank (0 = tiny through 5 = gargantuan).
// Token width and vertical span are derived from the rank.
type Footprint struct {
	Rank int
}

// Width returns the token footprint width in scene units.
func (f Footprint) Width() float64 {
	w := 25.0 + 25.0*float64(f.Rank)
	return w
}

// Height returns the vertical span occupied by the entity, used when testing
// walls with elevation bounds.
func (f Footprint) Height() float64 {
	return 5.0 + 5.0*float64(f.Rank)
}

// Alliance tags an entity's side; two entities are allied when their non-empty
// tags match.
type Alliance struct {
	Tag string
}

func Allied(a, b Alliance) bool {
	return a.Tag != "" && a.Tag == b.Tag
}

// Traits carries the cover-relevant rule flags an entity can have.
type Traits struct {
	// CoverFeat upgrades cover the entity benefits from by one step.
	CoverFeat bool
	// CoverOverride marks a blocker whose contribution is ruled independently;
	// it suppresses the target's CoverFeat upgrade to avoid double-counting.
	CoverOverride bool
}
