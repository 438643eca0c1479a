package vision

import "time"

const (
	DefaultGridCellSize         = 100.0 // spatial bucket width in scene units
	DefaultInterestRadius       = 1500.0
	DefaultLightCacheTTL        = 2 * time.Second
	DefaultDebounceDelay        = 50 * time.Millisecond
	DefaultPruneInterval        = 5 * time.Second
	DefaultCacheCap             = 4096
	DefaultStandardCoverFrac    = 0.5 // fraction of token width shadowed for standard
	DefaultGreaterCoverFrac     = 0.7
	DefaultElevationConcealDiff = 30.0 // elevation gap forcing at least concealed
	DefaultFingerprintGrain     = 5.0  // rounding bucket for position fingerprints

	// Darkness above this rank defeats ordinary darkvision; only the greater
	// tier sees through it.
	GreaterDarkvisionThreshold = 3

	// Creature blockers this many size ranks above the target grant standard
	// instead of lesser cover.
	CoverSizeRankGap = 3

	// Samples taken along a ray when a darkness region has no precise
	// geometry.
	RasterSamples = 16
)
