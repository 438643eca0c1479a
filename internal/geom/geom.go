package geom

import "math"

type Vec2 struct{ X, Y float64 }

func (a Vec2) Add(b Vec2) Vec2      { return Vec2{a.X + b.X, a.Y + b.Y} }
func (a Vec2) Sub(b Vec2) Vec2      { return Vec2{a.X - b.X, a.Y - b.Y} }
func (a Vec2) Dot(b Vec2) float64   { return a.X*b.X + a.Y*b.Y }
func (a Vec2) Cross(b Vec2) float64 { return a.X*b.Y - a.Y*b.X }
func (a Vec2) Len() float64         { return math.Hypot(a.X, a.Y) }
func (a Vec2) Scale(s float64) Vec2 { return Vec2{a.X * s, a.Y * s} }

func (a Vec2) Dist(b Vec2) float64 { return a.Sub(b).Len() }

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Lerp(a, b, t float64) float64 { return a + (b-a)*t }

// Segment is a directed line segment from A to B.
type Segment struct{ A, B Vec2 }

func (s Segment) Length() float64 { return s.A.Dist(s.B) }

// PointAt returns the point at parameter t in [0,1] along the segment.
func (s Segment) PointAt(t float64) Vec2 {
	return Vec2{Lerp(s.A.X, s.B.X, t), Lerp(s.A.Y, s.B.Y, t)}
}

// Intersect returns the parameter along s where it crosses o, if the two
// segments properly intersect. Collinear overlap is not reported.
func (s Segment) Intersect(o Segment) (float64, bool) {
	d1 := s.B.Sub(s.A)
	d2 := o.B.Sub(o.A)
	denom := d1.Cross(d2)
	if math.Abs(denom) < 1e-12 {
		return 0, false
	}
	diff := o.A.Sub(s.A)
	t := diff.Cross(d2) / denom
	u := diff.Cross(d1) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

// DistanceTo returns the shortest distance from p to the segment.
func (s Segment) DistanceTo(p Vec2) float64 {
	d := s.B.Sub(s.A)
	lenSq := d.Dot(d)
	if lenSq < 1e-12 {
		return s.A.Dist(p)
	}
	t := Clamp(p.Sub(s.A).Dot(d)/lenSq, 0, 1)
	return s.PointAt(t).Dist(p)
}

type Rect struct{ MinX, MinY, MaxX, MaxY float64 }

func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.MinX && p.X <= r.MaxX && p.Y >= r.MinY && p.Y <= r.MaxY
}

func (r Rect) Expanded(pad float64) Rect {
	return Rect{r.MinX - pad, r.MinY - pad, r.MaxX + pad, r.MaxY + pad}
}

func (r Rect) Empty() bool { return r.MaxX < r.MinX || r.MaxY < r.MinY }

type Circle struct {
	Center Vec2
	Radius float64
}

func (c Circle) Contains(p Vec2) bool {
	return c.Center.Dist(p) <= c.Radius
}

func (c Circle) IntersectsSegment(s Segment) bool {
	return s.DistanceTo(c.Center) <= c.Radius
}

// Polygon is a simple polygon given as an ordered vertex list.
type Polygon []Vec2

// Contains reports whether pt lies inside the polygon (ray casting).
func (poly Polygon) Contains(pt Vec2) bool {
	if len(poly) < 3 {
		return false
	}
	inside := false
	j := len(poly) - 1
	for i := 0; i < len(poly); i++ {
		a, b := poly[i], poly[j]
		if (a.Y > pt.Y) != (b.Y > pt.Y) {
			x := (b.X-a.X)*(pt.Y-a.Y)/(b.Y-a.Y) + a.X
			if pt.X < x {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

func (poly Polygon) IntersectsSegment(s Segment) bool {
	if len(poly) < 2 {
		return false
	}
	if poly.Contains(s.A) || poly.Contains(s.B) {
		return true
	}
	j := len(poly) - 1
	for i := 0; i < len(poly); i++ {
		edge := Segment{poly[j], poly[i]}
		if _, ok := s.Intersect(edge); ok {
			return true
		}
		j = i
	}
	return false
}
