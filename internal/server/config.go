package server

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"Sightline/internal/vision"
)

// visionConfig is the YAML shape of the engine tunables. Pointer fields
// override the compiled defaults only when present in the file.
type visionConfig struct {
	GridCellSize   *float64 `yaml:"grid_cell_size"`
	InterestRadius *float64 `yaml:"interest_radius"`

	LightCacheTTLMs *float64 `yaml:"light_cache_ttl_ms"`
	DebounceMs      *float64 `yaml:"debounce_ms"`
	PruneIntervalMs *float64 `yaml:"prune_interval_ms"`
	CacheCap        *int     `yaml:"cache_cap"`

	StandardCoverFrac *float64 `yaml:"standard_cover_frac"`
	GreaterCoverFrac  *float64 `yaml:"greater_cover_frac"`

	ElevationConcealDiff    *float64 `yaml:"elevation_conceal_diff"`
	FingerprintGrain        *float64 `yaml:"fingerprint_grain"`
	ElevationBeforeBoundary *bool    `yaml:"elevation_before_boundary"`

	IgnoreUndetected *bool `yaml:"ignore_undetected_blockers"`
	IgnoreDead       *bool `yaml:"ignore_dead_blockers"`
	IgnoreProne      *bool `yaml:"ignore_prone_blockers"`
	IgnoreAllied     *bool `yaml:"ignore_allied_blockers"`
}

// ServerConfig is the top-level YAML file.
type ServerConfig struct {
	Addr       string        `yaml:"addr"`
	OverrideDB string        `yaml:"override_db"`
	JournalDir string        `yaml:"journal_dir"`
	Vision     *visionConfig `yaml:"vision"`
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr: ":8080",
	}
}

// LoadServerConfig reads the YAML file at path, falling back to defaults when
// the path is empty or the file is absent.
func LoadServerConfig(path string) (ServerConfig, error) {
	cfg := DefaultServerConfig()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %q: %w", path, err)
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	return cfg, nil
}

// VisionConfig merges the file overrides into the engine defaults.
func (c ServerConfig) VisionConfig() vision.Config {
	base := vision.DefaultConfig()
	v := c.Vision
	if v == nil {
		return base
	}
	if v.GridCellSize != nil {
		base.GridCellSize = *v.GridCellSize
	}
	if v.InterestRadius != nil {
		base.InterestRadius = *v.InterestRadius
	}
	if v.LightCacheTTLMs != nil {
		base.LightCacheTTL = time.Duration(*v.LightCacheTTLMs * float64(time.Millisecond))
	}
	if v.DebounceMs != nil {
		base.DebounceDelay = time.Duration(*v.DebounceMs * float64(time.Millisecond))
	}
	if v.PruneIntervalMs != nil {
		base.PruneInterval = time.Duration(*v.PruneIntervalMs * float64(time.Millisecond))
	}
	if v.CacheCap != nil {
		base.CacheCap = *v.CacheCap
	}
	if v.StandardCoverFrac != nil {
		base.StandardCoverFrac = *v.StandardCoverFrac
	}
	if v.GreaterCoverFrac != nil {
		base.GreaterCoverFrac = *v.GreaterCoverFrac
	}
	if v.ElevationConcealDiff != nil {
		base.ElevationConcealDiff = *v.ElevationConcealDiff
	}
	if v.FingerprintGrain != nil {
		base.FingerprintGrain = *v.FingerprintGrain
	}
	if v.ElevationBeforeBoundary != nil {
		base.ElevationBeforeBoundary = *v.ElevationBeforeBoundary
	}
	if v.IgnoreUndetected != nil {
		base.IgnoreBlockers.Undetected = *v.IgnoreUndetected
	}
	if v.IgnoreDead != nil {
		base.IgnoreBlockers.Dead = *v.IgnoreDead
	}
	if v.IgnoreProne != nil {
		base.IgnoreBlockers.Prone = *v.IgnoreProne
	}
	if v.IgnoreAllied != nil {
		base.IgnoreBlockers.Allied = *v.IgnoreAllied
	}
	return vision.SanitizeConfig(base)
}
