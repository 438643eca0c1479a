package vision

import "time"

// IgnoreFlags filter which creature blockers count toward cover.
type IgnoreFlags struct {
	Undetected bool
	Dead       bool
	Prone      bool
	Allied     bool
}

// Config carries every tunable the engine exposes. Hosts hand it in as a
// value; nothing here is read from files by the core.
type Config struct {
	GridCellSize   float64
	InterestRadius float64

	LightCacheTTL time.Duration
	DebounceDelay time.Duration
	PruneInterval time.Duration
	CacheCap      int

	StandardCoverFrac float64
	GreaterCoverFrac  float64
	IgnoreBlockers    IgnoreFlags

	ElevationConcealDiff float64
	FingerprintGrain     float64

	// ElevationBeforeBoundary picks the precedence between the elevation
	// concealment rule and cross-boundary darkness when both apply. The two
	// are not commutative; the default runs elevation first.
	ElevationBeforeBoundary bool

	// Viewport, when non-nil, restricts batch passes to entities inside the
	// padded rectangle. Purely a working-set optimization.
	Viewport        *Viewport
	ViewportPadding float64
}

type Viewport struct {
	MinX, MinY, MaxX, MaxY float64
}

func DefaultConfig() Config {
	return Config{
		GridCellSize:            DefaultGridCellSize,
		InterestRadius:          DefaultInterestRadius,
		LightCacheTTL:           DefaultLightCacheTTL,
		DebounceDelay:           DefaultDebounceDelay,
		PruneInterval:           DefaultPruneInterval,
		CacheCap:                DefaultCacheCap,
		StandardCoverFrac:       DefaultStandardCoverFrac,
		GreaterCoverFrac:        DefaultGreaterCoverFrac,
		ElevationConcealDiff:    DefaultElevationConcealDiff,
		FingerprintGrain:        DefaultFingerprintGrain,
		ElevationBeforeBoundary: true,
		ViewportPadding:         200.0,
	}
}

// SanitizeConfig clamps out-of-range values back to usable defaults.
func SanitizeConfig(c Config) Config {
	if c.GridCellSize <= 0 {
		c.GridCellSize = DefaultGridCellSize
	}
	if c.InterestRadius <= 0 {
		c.InterestRadius = DefaultInterestRadius
	}
	if c.LightCacheTTL <= 0 {
		c.LightCacheTTL = DefaultLightCacheTTL
	}
	if c.DebounceDelay <= 0 {
		c.DebounceDelay = DefaultDebounceDelay
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = DefaultPruneInterval
	}
	if c.CacheCap <= 0 {
		c.CacheCap = DefaultCacheCap
	}
	if c.StandardCoverFrac <= 0 || c.StandardCoverFrac > 1 {
		c.StandardCoverFrac = DefaultStandardCoverFrac
	}
	if c.GreaterCoverFrac <= c.StandardCoverFrac || c.GreaterCoverFrac > 1 {
		c.GreaterCoverFrac = DefaultGreaterCoverFrac
		if c.GreaterCoverFrac <= c.StandardCoverFrac {
			c.GreaterCoverFrac = c.StandardCoverFrac + 0.1
		}
	}
	if c.ElevationConcealDiff <= 0 {
		c.ElevationConcealDiff = DefaultElevationConcealDiff
	}
	if c.FingerprintGrain <= 0 {
		c.FingerprintGrain = DefaultFingerprintGrain
	}
	if c.ViewportPadding < 0 {
		c.ViewportPadding = 0
	}
	return c
}
