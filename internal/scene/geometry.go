package scene

import "Sightline/internal/geom"

// ElevationBounds limits the vertical span a wall blocks. A nil bounds on a
// wall means it blocks at every elevation.
type ElevationBounds struct {
	Bottom float64
	Top    float64
}

// Wall is a sight-blocking line segment owned by the host's scene data.
type Wall struct {
	ID          string
	Seg         geom.Segment
	BlocksSight bool
	DoorOpen    bool
	Bounds      *ElevationBounds
}

// Blocking reports whether the wall currently blocks sight at all.
func (w Wall) Blocking() bool {
	return w.BlocksSight && !w.DoorOpen
}

// Shape is a region's geometry. When precise geometry is available either
// Circle or Polygon is set; otherwise ContainsFn is the host's containment
// callback and ray tests fall back to coarse point sampling.
type Shape struct {
	Circle     *geom.Circle
	Polygon    geom.Polygon
	ContainsFn func(geom.Vec2) bool
}

func (s Shape) Precise() bool {
	return s.Circle != nil || len(s.Polygon) >= 3
}

func (s Shape) Contains(p geom.Vec2) bool {
	switch {
	case s.Circle != nil:
		return s.Circle.Contains(p)
	case len(s.Polygon) >= 3:
		return s.Polygon.Contains(p)
	case s.ContainsFn != nil:
		return s.ContainsFn(p)
	}
	return false
}

// IntersectsSegment reports whether the segment passes through the region.
// Only valid for precise shapes; callers sample via Contains otherwise.
func (s Shape) IntersectsSegment(seg geom.Segment) bool {
	switch {
	case s.Circle != nil:
		return s.Circle.IntersectsSegment(seg)
	case len(s.Polygon) >= 3:
		return s.Polygon.IntersectsSegment(seg)
	}
	return false
}

// LightSource is a region of bright or dim illumination.
type LightSource struct {
	ID    string
	Shape Shape
	Dim   bool // dim light instead of bright
}

// DarknessSource is a region of magical darkness with a severity rank.
// Rank 0 means none; MaxDarknessRank is the "greater darkness" tier.
type DarknessSource struct {
	ID    string
	Shape Shape
	Rank  int
}

const MaxDarknessRank = 4
