package vision

import (
	"math"

	"Sightline/internal/geom"
	"Sightline/internal/scene"
)

type cellKey struct {
	X int
	Y int
}

// SpatialIndex buckets entities into a uniform grid so range queries touch
// only the cells overlapping the query region. Rebuilt from scratch each
// batch pass; a full rebuild is O(n) and cheap next to pair evaluation.
type SpatialIndex struct {
	cellSize    float64
	invCellSize float64
	cells       map[cellKey][]scene.EntityID
	positions   map[scene.EntityID]geom.Vec2
}

func NewSpatialIndex(cellSize float64) *SpatialIndex {
	if cellSize <= 0 {
		cellSize = DefaultGridCellSize
	}
	return &SpatialIndex{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cells:       make(map[cellKey][]scene.EntityID),
		positions:   make(map[scene.EntityID]geom.Vec2),
	}
}

// Build replaces the index contents with the given entities. The accessor
// resolves an entity's current position; entities it cannot resolve are
// skipped.
func (idx *SpatialIndex) Build(ids []scene.EntityID, pos func(scene.EntityID) (geom.Vec2, bool)) {
	idx.cells = make(map[cellKey][]scene.EntityID, len(idx.cells))
	idx.positions = make(map[scene.EntityID]geom.Vec2, len(ids))
	for _, id := range ids {
		p, ok := pos(id)
		if !ok {
			continue
		}
		key := idx.keyFor(p)
		idx.cells[key] = append(idx.cells[key], id)
		idx.positions[id] = p
	}
}

func (idx *SpatialIndex) Len() int { return len(idx.positions) }

// QueryRect returns the ids of entities inside the rectangle.
func (idx *SpatialIndex) QueryRect(r geom.Rect) []scene.EntityID {
	if r.Empty() || len(idx.positions) == 0 {
		return nil
	}
	minC := idx.keyFor(geom.Vec2{X: r.MinX, Y: r.MinY})
	maxC := idx.keyFor(geom.Vec2{X: r.MaxX, Y: r.MaxY})
	var out []scene.EntityID
	for cy := minC.Y; cy <= maxC.Y; cy++ {
		for cx := minC.X; cx <= maxC.X; cx++ {
			for _, id := range idx.cells[cellKey{cx, cy}] {
				if r.Contains(idx.positions[id]) {
					out = append(out, id)
				}
			}
		}
	}
	return out
}

// QueryCircle returns the ids of entities within radius of the center.
func (idx *SpatialIndex) QueryCircle(center geom.Vec2, radius float64) []scene.EntityID {
	if radius <= 0 || len(idx.positions) == 0 {
		return nil
	}
	bounds := geom.Rect{
		MinX: center.X - radius, MinY: center.Y - radius,
		MaxX: center.X + radius, MaxY: center.Y + radius,
	}
	minC := idx.keyFor(geom.Vec2{X: bounds.MinX, Y: bounds.MinY})
	maxC := idx.keyFor(geom.Vec2{X: bounds.MaxX, Y: bounds.MaxY})
	var out []scene.EntityID
	for cy := minC.Y; cy <= maxC.Y; cy++ {
		for cx := minC.X; cx <= maxC.X; cx++ {
			for _, id := range idx.cells[cellKey{cx, cy}] {
				if idx.positions[id].Dist(center) <= radius {
					out = append(out, id)
				}
			}
		}
	}
	return out
}

func (idx *SpatialIndex) keyFor(p geom.Vec2) cellKey {
	return cellKey{
		X: int(math.Floor(p.X * idx.invCellSize)),
		Y: int(math.Floor(p.Y * idx.invCellSize)),
	}
}
