package scene

import "fmt"

// VisibilityState orders how well an observer perceives a target, from fully
// seen to completely unnoticed.
type VisibilityState int

const (
	Observed VisibilityState = iota
	Concealed
	Hidden
	Undetected
)

func (v VisibilityState) String() string {
	switch v {
	case Observed:
		return "observed"
	case Concealed:
		return "concealed"
	case Hidden:
		return "hidden"
	case Undetected:
		return "undetected"
	}
	panic(fmt.Sprintf("unknown visibility state %d", int(v)))
}

// Worse returns the less-visible of the two states.
func (v VisibilityState) Worse(o VisibilityState) VisibilityState {
	if o > v {
		return o
	}
	return v
}

// ParseVisibility maps a wire name back to a state.
func ParseVisibility(s string) (VisibilityState, bool) {
	switch s {
	case "observed":
		return Observed, true
	case "concealed":
		return Concealed, true
	case "hidden":
		return Hidden, true
	case "undetected":
		return Undetected, true
	}
	return Observed, false
}

// CoverState orders how much physical blocking stands between attacker and
// target.
type CoverState int

const (
	CoverNone CoverState = iota
	CoverLesser
	CoverStandard
	CoverGreater
)

func (c CoverState) String() string {
	switch c {
	case CoverNone:
		return "none"
	case CoverLesser:
		return "lesser"
	case CoverStandard:
		return "standard"
	case CoverGreater:
		return "greater"
	}
	panic(fmt.Sprintf("unknown cover state %d", int(c)))
}

// ParseCover maps a wire name back to a state.
func ParseCover(s string) (CoverState, bool) {
	switch s {
	case "none":
		return CoverNone, true
	case "lesser":
		return CoverLesser, true
	case "standard":
		return CoverStandard, true
	case "greater":
		return CoverGreater, true
	}
	return CoverNone, false
}

func (c CoverState) Max(o CoverState) CoverState {
	if o > c {
		return o
	}
	return c
}

// Upgraded returns the next cover tier up, capped at greater. CoverNone is
// never upgraded: a feat can improve cover, not invent it.
func (c CoverState) Upgraded() CoverState {
	if c == CoverNone || c == CoverGreater {
		return c
	}
	return c + 1
}
