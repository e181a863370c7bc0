// Package series builds canonical diffraction samples from raw two-column
// tables: validation, range filtering, deduplication, ordering and optional
// Savitzky-Golay smoothing of the intensity column.
package series

import (
	"fmt"
	"math"
	"sort"

	"github.com/Plutor-05/xrd-figure/internal/monitoring"
)

// MinSampleRows is the minimum number of valid rows a cleaned sample must
// retain. Shorter series carry too little signal for peak detection to be
// meaningful.
const MinSampleRows = 100

// Point is one (angle, intensity) observation. Angle is 2θ in degrees.
type Point struct {
	Angle     float64
	Intensity float64
}

// Sample is a cleaned diffraction series: angles strictly increasing, all
// intensities non-negative, at least MinSampleRows points. Construct one
// with Clean; treat it as read-only afterwards.
type Sample struct {
	points []Point
}

// InsufficientDataError reports a cleaned series shorter than MinSampleRows.
type InsufficientDataError struct {
	Rows int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %d valid rows after cleaning (minimum %d)", e.Rows, MinSampleRows)
}

// CleanConfig narrows and conditions the raw series before it becomes a
// Sample. The zero value applies no extra filtering and no smoothing.
type CleanConfig struct {
	AngleMin           float64 // inclusive lower bound, degrees
	AngleMax           float64 // inclusive upper bound, degrees; 0 means 180
	IntensityThreshold float64 // rows below this intensity are dropped
	SmoothWindow       int     // Savitzky-Golay window; <=1 disables smoothing
}

// Clean turns a raw table into a canonical Sample.
//
// Rows with NaN values, angles outside (0,180) or negative intensities are
// dropped unconditionally. If cfg is non-nil the angle-range and intensity
// filters apply next, then smoothing. The result is sorted by angle with
// exact-duplicate rows removed. Returns *InsufficientDataError when fewer
// than MinSampleRows rows survive.
func Clean(raw []Point, cfg *CleanConfig) (*Sample, error) {
	pts := make([]Point, 0, len(raw))
	for _, p := range raw {
		if math.IsNaN(p.Angle) || math.IsNaN(p.Intensity) {
			continue
		}
		if p.Angle <= 0 || p.Angle >= 180 || p.Intensity < 0 {
			continue
		}
		pts = append(pts, p)
	}

	if len(pts) < MinSampleRows {
		return nil, &InsufficientDataError{Rows: len(pts)}
	}

	if cfg != nil {
		angleMax := cfg.AngleMax
		if angleMax == 0 {
			angleMax = 180
		}
		kept := pts[:0]
		for _, p := range pts {
			if p.Angle < cfg.AngleMin || p.Angle > angleMax {
				continue
			}
			if p.Intensity < cfg.IntensityThreshold {
				continue
			}
			kept = append(kept, p)
		}
		pts = kept

		if cfg.SmoothWindow > 1 {
			window := cfg.SmoothWindow
			if window%2 == 0 {
				window++
			}
			if len(pts) > window {
				intensities := make([]float64, len(pts))
				for i, p := range pts {
					intensities[i] = p.Intensity
				}
				order := window - 1
				if order > 3 {
					order = 3
				}
				smoothed, err := SavitzkyGolay(intensities, window, order)
				if err != nil {
					// Smoothing is best-effort: keep the raw series.
					monitoring.Logf("series: smoothing failed, keeping raw intensities: %v", err)
				} else {
					for i := range pts {
						pts[i].Intensity = smoothed[i]
					}
				}
			}
		}
	}

	sort.Slice(pts, func(i, j int) bool {
		if pts[i].Angle != pts[j].Angle {
			return pts[i].Angle < pts[j].Angle
		}
		return pts[i].Intensity < pts[j].Intensity
	})

	// Remove duplicate rows. Equal angles with differing intensities keep the
	// first occurrence so the angle axis stays strictly increasing.
	dedup := pts[:0]
	for _, p := range pts {
		if len(dedup) > 0 && p.Angle == dedup[len(dedup)-1].Angle {
			continue
		}
		dedup = append(dedup, p)
	}
	pts = dedup

	if len(pts) < MinSampleRows {
		return nil, &InsufficientDataError{Rows: len(pts)}
	}

	out := make([]Point, len(pts))
	copy(out, pts)
	return &Sample{points: out}, nil
}

// Len returns the number of points in the sample.
func (s *Sample) Len() int { return len(s.points) }

// At returns the i-th point.
func (s *Sample) At(i int) Point { return s.points[i] }

// Points returns the underlying series. Callers must not modify it.
func (s *Sample) Points() []Point { return s.points }

// Angles returns a copy of the angle column.
func (s *Sample) Angles() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Angle
	}
	return out
}

// Intensities returns a copy of the intensity column.
func (s *Sample) Intensities() []float64 {
	out := make([]float64, len(s.points))
	for i, p := range s.points {
		out[i] = p.Intensity
	}
	return out
}

// AngleRange returns the first and last angle of the sample.
func (s *Sample) AngleRange() (min, max float64) {
	return s.points[0].Angle, s.points[len(s.points)-1].Angle
}
