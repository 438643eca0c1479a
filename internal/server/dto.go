package server

import (
	"Sightline/internal/geom"
	"Sightline/internal/protocol"
	"Sightline/internal/scene"
	"Sightline/internal/vision"
)

func recordFromDTO(e protocol.EntityDTO) scene.EntityRecord {
	rec := scene.EntityRecord{
		ID:            e.ID,
		X:             e.X,
		Y:             e.Y,
		Elevation:     e.Elevation,
		SizeRank:      e.Size,
		Conditions:    e.Conditions,
		Alliance:      e.Alliance,
		CoverFeat:     e.CoverFeat,
		CoverOverride: e.CoverOverride,
	}
	if e.Senses != nil {
		rec.Senses = &scene.SenseProfile{
			Vision:           e.Senses.Vision,
			Darkvision:       scene.DarkvisionTier(e.Senses.Darkvision),
			PreciseNonVisual: e.Senses.PreciseNonVisual,
			Imprecise:        e.Senses.Imprecise,
		}
	}
	return rec
}

func wallFromDTO(w protocol.WallDTO) scene.Wall {
	wall := scene.Wall{
		ID:          w.ID,
		Seg:         geom.Segment{A: geom.Vec2{X: w.X1, Y: w.Y1}, B: geom.Vec2{X: w.X2, Y: w.Y2}},
		BlocksSight: w.BlocksSight,
		DoorOpen:    w.DoorOpen,
	}
	if w.Bottom != nil && w.Top != nil {
		wall.Bounds = &scene.ElevationBounds{Bottom: *w.Bottom, Top: *w.Top}
	}
	return wall
}

func shapeFromDTO(r protocol.RegionDTO) scene.Shape {
	var shape scene.Shape
	if r.CX != nil && r.CY != nil && r.R != nil {
		shape.Circle = &geom.Circle{Center: geom.Vec2{X: *r.CX, Y: *r.CY}, Radius: *r.R}
	} else if len(r.Polygon) >= 3 {
		poly := make(geom.Polygon, len(r.Polygon))
		for i, p := range r.Polygon {
			poly[i] = geom.Vec2{X: p[0], Y: p[1]}
		}
		shape.Polygon = poly
	}
	return shape
}

func lightFromDTO(r protocol.RegionDTO) scene.LightSource {
	return scene.LightSource{ID: r.ID, Shape: shapeFromDTO(r), Dim: r.Dim}
}

func darknessFromDTO(r protocol.RegionDTO) scene.DarknessSource {
	rank := r.Rank
	if rank < 0 {
		rank = 0
	}
	if rank > scene.MaxDarknessRank {
		rank = scene.MaxDarknessRank
	}
	return scene.DarknessSource{ID: r.ID, Shape: shapeFromDTO(r), Rank: rank}
}

// buildPerception snapshots every computed pair into an outbound message.
// Caller holds the room lock.
func buildPerception(r *Room) protocol.PerceptionMsg {
	msg := protocol.PerceptionMsg{
		Type:            protocol.TypePerception,
		ProtocolVersion: protocol.Version,
	}
	ids := make([]scene.EntityID, 0, 64)
	r.World.ForEach([]scene.ComponentKey{scene.CompTransform}, func(id scene.EntityID) {
		ids = append(ids, id)
	})
	for _, obs := range ids {
		for _, tgt := range ids {
			if obs == tgt {
				continue
			}
			st, ok := r.Orch.PairState(obs, tgt)
			if !ok {
				continue
			}
			msg.Pairs = append(msg.Pairs, pairDTO(obs, tgt, st))
		}
	}
	return msg
}

func pairDTO(obs, tgt scene.EntityID, st vision.PairState) protocol.PairDTO {
	return protocol.PairDTO{
		Observer:      string(obs),
		Target:        string(tgt),
		Visibility:    st.Visibility.String(),
		Cover:         st.Cover.String(),
		LOS:           st.LOS,
		OverrideStale: st.OverrideStale,
	}
}
