package scene

import (
	"errors"
	"fmt"

	"Sightline/internal/geom"
)

// ErrUnavailable marks a host lookup that returned nothing usable. Callers
// fall back to conservative defaults instead of propagating it upward.
var ErrUnavailable = errors.New("scene data unavailable")

// EntitySource enumerates the entities currently present in the host scene.
// Each call returns a read-only snapshot.
type EntitySource interface {
	Entities() []EntityRecord
}

// WallSource enumerates the host's sight-blocking segments.
type WallSource interface {
	Walls() []Wall
}

// ElevationProvider optionally supplies elevation bounds per wall. A nil
// result means the wall is unbounded and always blocks.
type ElevationProvider interface {
	BoundsFor(wallID string) (*ElevationBounds, error)
}

// RegionSource enumerates the active light and darkness regions.
type RegionSource interface {
	Lights() []LightSource
	Darkness() []DarknessSource
}

// OverrideStore persists pinned per-pair states. The core reads and validates
// entries; it never deletes a valid unexpired override on its own.
type OverrideStore interface {
	Load(target EntityID) ([]*Override, error)
	Save(target EntityID, o *Override) error
	Clear(target EntityID, kind OverrideKind, observer EntityID) error
}

// RefreshSink is notified after every batch pass so the host can refresh
// perception and rendering. Fire and forget.
type RefreshSink interface {
	Refresh(changed []EntityID)
}

// EntityRecord is the raw shape a host hands over. Optional fields are
// pointers; normalization fills defaults exactly once so the core never
// needs defensive nil-checks.
type EntityRecord struct {
	ID            string
	X, Y          float64
	Elevation     *float64
	SizeRank      *int
	Conditions    []string
	Senses        *SenseProfile
	Alliance      string
	CoverFeat     bool
	CoverOverride bool
}

// ApplyRecord normalizes rec and installs its components into the world,
// replacing any previous state for the entity.
func (w *World) ApplyRecord(rec EntityRecord) (EntityID, error) {
	if rec.ID == "" {
		return "", fmt.Errorf("entity record: %w: missing id", ErrUnavailable)
	}
	id := EntityID(rec.ID)

	elev := 0.0
	if rec.Elevation != nil {
		elev = *rec.Elevation
	}
	rank := 2 // medium
	if rec.SizeRank != nil {
		rank = *rec.SizeRank
		if rank < 0 {
			rank = 0
		}
		if rank > 5 {
			rank = 5
		}
	}
	senses := SenseProfile{Vision: true}
	if rec.Senses != nil {
		senses = *rec.Senses
	}
	conds := make(ConditionSet, len(rec.Conditions))
	for _, c := range rec.Conditions {
		conds[Condition(c)] = true
	}

	w.SetComponent(id, CompTransform, &Transform{Pos: geom.Vec2{X: rec.X, Y: rec.Y}, Elevation: elev})
	w.SetComponent(id, CompFootprint, &Footprint{Rank: rank})
	w.SetComponent(id, CompConditions, conds)
	w.SetComponent(id, CompSenses, &senses)
	w.SetComponent(id, CompAlliance, &Alliance{Tag: rec.Alliance})
	w.SetComponent(id, CompTraits, &Traits{CoverFeat: rec.CoverFeat, CoverOverride: rec.CoverOverride})
	return id, nil
}
