package scene

import "time"

type OverrideKind int

const (
	OverrideVisibility OverrideKind = iota
	OverrideCover
)

// OverrideSource tags where a pinned state came from, for UI explanations.
type OverrideSource string

const (
	SourceManual   OverrideSource = "manual"
	SourceSneak    OverrideSource = "sneak"
	SourcePointOut OverrideSource = "point-out"
)

// Override pins a visibility or cover value for one ordered (observer, target)
// pair until it expires or is explicitly cleared. The core consults overrides
// during recomputation but never silently mutates or deletes a valid one.
type Override struct {
	Observer   EntityID
	Kind       OverrideKind
	Visibility VisibilityState
	Cover      CoverState
	Source     OverrideSource
	ExpiresAt  time.Time // zero means no expiry
}

func (o *Override) Expired(now time.Time) bool {
	return !o.ExpiresAt.IsZero() && now.After(o.ExpiresAt)
}

// OverrideList holds the overrides owned by one target entity.
type OverrideList struct {
	Entries []*Override
}

// For returns the unexpired override of the given kind pinned by observer,
// or nil.
func (l *OverrideList) For(kind OverrideKind, observer EntityID, now time.Time) *Override {
	if l == nil {
		return nil
	}
	for _, o := range l.Entries {
		if o.Kind == kind && o.Observer == observer && !o.Expired(now) {
			return o
		}
	}
	return nil
}

// Set replaces any existing override for the same (kind, observer) slot.
func (l *OverrideList) Set(o *Override) {
	for i, cur := range l.Entries {
		if cur.Kind == o.Kind && cur.Observer == o.Observer {
			l.Entries[i] = o
			return
		}
	}
	l.Entries = append(l.Entries, o)
}

// Clear removes the override for (kind, observer); it reports whether one
// existed.
func (l *OverrideList) Clear(kind OverrideKind, observer EntityID) bool {
	for i, cur := range l.Entries {
		if cur.Kind == kind && cur.Observer == observer {
			l.Entries = append(l.Entries[:i], l.Entries[i+1:]...)
			return true
		}
	}
	return false
}

// DropExpired removes expired entries and returns how many were dropped.
func (l *OverrideList) DropExpired(now time.Time) int {
	kept := l.Entries[:0]
	dropped := 0
	for _, o := range l.Entries {
		if o.Expired(now) {
			dropped++
			continue
		}
		kept = append(kept, o)
	}
	l.Entries = kept
	return dropped
}
