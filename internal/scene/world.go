package scene

type ComponentKey string

const (
	CompTransform  ComponentKey = "transform"
	CompFootprint  ComponentKey = "footprint"
	CompConditions ComponentKey = "conditions"
	CompSenses     ComponentKey = "senses"
	CompAlliance   ComponentKey = "alliance"
	CompTraits     ComponentKey = "traits"
	CompOverrides  ComponentKey = "overrides"
)

// World stores per-entity component data keyed by component kind. Entities
// exist as long as at least one component references them; ids are assigned
// by the host.
type World struct {
	components map[ComponentKey]map[EntityID]any
}

func NewWorld() *World {
	return &World{components: make(map[ComponentKey]map[EntityID]any)}
}

func (w *World) SetComponent(id EntityID, key ComponentKey, value any) {
	store, ok := w.components[key]
	if !ok {
		store = make(map[EntityID]any)
		w.components[key] = store
	}
	store[id] = value
}

func (w *World) GetComponent(id EntityID, key ComponentKey) (any, bool) {
	if store, ok := w.components[key]; ok {
		val, ok := store[id]
		return val, ok
	}
	return nil, false
}

func (w *World) RemoveComponent(id EntityID, key ComponentKey) {
	if store, ok := w.components[key]; ok {
		delete(store, id)
	}
}

func (w *World) RemoveEntity(id EntityID) {
	for _, store := range w.components {
		delete(store, id)
	}
}

func (w *World) Exists(id EntityID) bool {
	for _, store := range w.components {
		if _, ok := store[id]; ok {
			return true
		}
	}
	return false
}

// ForEach calls fn for every entity carrying all required components.
func (w *World) ForEach(required []ComponentKey, fn func(EntityID)) {
	if len(required) == 0 {
		return
	}
	first := w.components[required[0]]
	if first == nil {
		return
	}
	for id := range first {
		match := true
		for _, key := range required[1:] {
			if store := w.components[key]; store == nil {
				match = false
				break
			} else if _, ok := store[id]; !ok {
				match = false
				break
			}
		}
		if match {
			fn(id)
		}
	}
}

func (w *World) Transform(id EntityID) *Transform {
	if v, ok := w.GetComponent(id, CompTransform); ok {
		if t, ok := v.(*Transform); ok {
			return t
		}
	}
	return nil
}

func (w *World) FootprintData(id EntityID) *Footprint {
	if v, ok := w.GetComponent(id, CompFootprint); ok {
		if t, ok := v.(*Footprint); ok {
			return t
		}
	}
	return nil
}

func (w *World) Conditions(id EntityID) ConditionSet {
	if v, ok := w.GetComponent(id, CompConditions); ok {
		if t, ok := v.(ConditionSet); ok {
			return t
		}
	}
	return nil
}

func (w *World) Senses(id EntityID) *SenseProfile {
	if v, ok := w.GetComponent(id, CompSenses); ok {
		if t, ok := v.(*SenseProfile); ok {
			return t
		}
	}
	return nil
}

func (w *World) AllianceData(id EntityID) *Alliance {
	if v, ok := w.GetComponent(id, CompAlliance); ok {
		if t, ok := v.(*Alliance); ok {
			return t
		}
	}
	return nil
}

func (w *World) TraitsData(id EntityID) *Traits {
	if v, ok := w.GetComponent(id, CompTraits); ok {
		if t, ok := v.(*Traits); ok {
			return t
		}
	}
	return nil
}

// Overrides returns the override list owned by the target entity, creating it
// on first use so action handlers can pin states without extra setup.
func (w *World) Overrides(id EntityID) *OverrideList {
	if v, ok := w.GetComponent(id, CompOverrides); ok {
		if t, ok := v.(*OverrideList); ok {
			return t
		}
	}
	list := &OverrideList{}
	w.SetComponent(id, CompOverrides, list)
	return list
}
