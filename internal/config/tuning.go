// Package config loads analysis tuning parameters from JSON. Fields are
// pointers so a partial file overrides only what it names; the Get* methods
// supply defaults for everything else.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Tuning is the root configuration for one analysis pipeline run.
type Tuning struct {
	// Peak detection params
	PeakHeight     *float64 `json:"peak_height,omitempty"`
	PeakDistance   *int     `json:"peak_distance,omitempty"`
	PeakProminence *float64 `json:"peak_prominence,omitempty"`
	PeakWidth      *float64 `json:"peak_width,omitempty"`

	// Matching params
	MatchTolerance *float64 `json:"match_tolerance,omitempty"`
	MatchStrategy  *string  `json:"match_strategy,omitempty"` // "phase-first" or "peak-first"

	// Series cleaning params
	AngleMin           *float64 `json:"angle_min,omitempty"`
	AngleMax           *float64 `json:"angle_max,omitempty"`
	IntensityThreshold *float64 `json:"intensity_threshold,omitempty"`
	SmoothWindow       *int     `json:"smooth_window,omitempty"`
}

// EmptyTuning returns a Tuning with all fields unset.
func EmptyTuning() *Tuning {
	return &Tuning{}
}

// LoadTuning loads a Tuning from a JSON file. The file must have a .json
// extension and be under 1MB. Fields omitted from the file keep their
// defaults, so partial configs are safe.
func LoadTuning(path string) (*Tuning, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuning()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *Tuning) Validate() error {
	if c.MatchTolerance != nil && *c.MatchTolerance <= 0 {
		return fmt.Errorf("match_tolerance must be positive, got %g", *c.MatchTolerance)
	}
	if c.MatchStrategy != nil {
		switch *c.MatchStrategy {
		case "phase-first", "peak-first":
		default:
			return fmt.Errorf("match_strategy must be phase-first or peak-first, got %q", *c.MatchStrategy)
		}
	}
	if c.PeakDistance != nil && *c.PeakDistance < 1 {
		return fmt.Errorf("peak_distance must be >= 1, got %d", *c.PeakDistance)
	}
	if c.SmoothWindow != nil && *c.SmoothWindow < 1 {
		return fmt.Errorf("smooth_window must be >= 1, got %d", *c.SmoothWindow)
	}
	if c.AngleMin != nil && c.AngleMax != nil && *c.AngleMin > *c.AngleMax {
		return fmt.Errorf("angle_min %g exceeds angle_max %g", *c.AngleMin, *c.AngleMax)
	}
	return nil
}

// GetPeakHeight returns the peak_height value or the default.
func (c *Tuning) GetPeakHeight() float64 {
	if c.PeakHeight == nil {
		return 100
	}
	return *c.PeakHeight
}

// GetPeakDistance returns the peak_distance value or the default.
func (c *Tuning) GetPeakDistance() int {
	if c.PeakDistance == nil {
		return 15
	}
	return *c.PeakDistance
}

// GetPeakProminence returns the peak_prominence value or the default.
func (c *Tuning) GetPeakProminence() float64 {
	if c.PeakProminence == nil {
		return 50
	}
	return *c.PeakProminence
}

// GetPeakWidth returns the peak_width value or the default.
func (c *Tuning) GetPeakWidth() float64 {
	if c.PeakWidth == nil {
		return 2
	}
	return *c.PeakWidth
}

// GetMatchTolerance returns the match_tolerance value or the default.
func (c *Tuning) GetMatchTolerance() float64 {
	if c.MatchTolerance == nil {
		return 0.2
	}
	return *c.MatchTolerance
}

// GetMatchStrategy returns the match_strategy value or the default.
func (c *Tuning) GetMatchStrategy() string {
	if c.MatchStrategy == nil {
		return "phase-first"
	}
	return *c.MatchStrategy
}

// GetAngleMin returns the angle_min value or the default.
func (c *Tuning) GetAngleMin() float64 {
	if c.AngleMin == nil {
		return 0
	}
	return *c.AngleMin
}

// GetAngleMax returns the angle_max value or the default.
func (c *Tuning) GetAngleMax() float64 {
	if c.AngleMax == nil {
		return 180
	}
	return *c.AngleMax
}

// GetIntensityThreshold returns the intensity_threshold value or the default.
func (c *Tuning) GetIntensityThreshold() float64 {
	if c.IntensityThreshold == nil {
		return 0
	}
	return *c.IntensityThreshold
}

// GetSmoothWindow returns the smooth_window value or the default.
func (c *Tuning) GetSmoothWindow() int {
	if c.SmoothWindow == nil {
		return 1
	}
	return *c.SmoothWindow
}
