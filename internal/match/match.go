// Package match assigns detected peaks to reference-catalog peaks within an
// angular tolerance and summarizes the outcome. Two assignment strategies
// share one tolerance/quality contract and are selected explicitly rather
// than inferred.
package match

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Plutor-05/xrd-figure/internal/peaks"
	"github.com/Plutor-05/xrd-figure/internal/refcat"
)

// ErrInvalidTolerance reports a non-positive angular tolerance.
var ErrInvalidTolerance = errors.New("match: tolerance must be positive")

// Strategy selects the assignment policy.
type Strategy int

const (
	// PhaseFirst iterates phases and their reference peaks in catalog
	// order; each reference peak claims the highest-intensity unused
	// detected peak within tolerance, and a detected peak can be claimed
	// at most once across all phases.
	PhaseFirst Strategy = iota
	// PeakFirst iterates detected peaks; each takes its smallest-delta
	// in-tolerance catalog entry (ties broken by higher catalog
	// intensity). Detected peaks with no candidate are reported as
	// unmatched rather than dropped.
	PeakFirst
)

func (s Strategy) String() string {
	switch s {
	case PeakFirst:
		return "peak-first"
	default:
		return "phase-first"
	}
}

// ParseStrategy maps a configuration string onto a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "phase-first", "":
		return PhaseFirst, nil
	case "peak-first":
		return PeakFirst, nil
	default:
		return 0, fmt.Errorf("match: unknown strategy %q", s)
	}
}

// Match pairs one detected peak with one reference peak. AngleDelta is at
// most the tolerance; Quality is 1 at exact overlap and falls linearly to 0
// at the tolerance boundary.
type Match struct {
	Detected   peaks.Peak
	Ref        refcat.Peak
	AngleDelta float64
	Quality    float64
}

// Result is one matching run. Matches holds every assignment; Unmatched
// holds the detected peaks no strategy could place (populated by PeakFirst;
// PhaseFirst, like the original analyzer it mirrors, reports matches only,
// and unmatched reference peaks are reported by neither strategy).
type Result struct {
	Strategy  Strategy
	Tolerance float64
	Matches   []Match
	Unmatched []peaks.Peak
}

// Run matches detected peaks against the catalog under the selected
// strategy. The catalog must be non-nil and tolerance strictly positive.
func Run(detected []peaks.Peak, cat *refcat.Catalog, tolerance float64, strategy Strategy) (*Result, error) {
	if tolerance <= 0 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidTolerance, tolerance)
	}
	if cat == nil || len(cat.Peaks) == 0 {
		return nil, refcat.ErrNoReferenceData
	}

	res := &Result{Strategy: strategy, Tolerance: tolerance}
	switch strategy {
	case PeakFirst:
		res.Matches, res.Unmatched = peakFirst(detected, cat, tolerance)
	default:
		res.Matches = phaseFirst(detected, cat, tolerance)
	}
	return res, nil
}

// peakFirst gives each detected peak its closest in-tolerance catalog entry.
func peakFirst(detected []peaks.Peak, cat *refcat.Catalog, tol float64) (matches []Match, unmatched []peaks.Peak) {
	for _, det := range detected {
		best := -1
		for i, ref := range cat.Peaks {
			delta := math.Abs(ref.Angle - det.Angle)
			if delta > tol {
				continue
			}
			if best < 0 || better(delta, ref.Intensity, math.Abs(cat.Peaks[best].Angle-det.Angle), cat.Peaks[best].Intensity) {
				best = i
			}
		}
		if best < 0 {
			unmatched = append(unmatched, det)
			continue
		}
		delta := math.Abs(cat.Peaks[best].Angle - det.Angle)
		matches = append(matches, Match{
			Detected:   det,
			Ref:        cat.Peaks[best],
			AngleDelta: delta,
			Quality:    1 - delta/tol,
		})
	}
	return matches, unmatched
}

// better orders peak-first candidates: smaller delta wins, equal deltas
// prefer the stronger catalog peak.
func better(delta, intensity, bestDelta, bestIntensity float64) bool {
	if delta != bestDelta {
		return delta < bestDelta
	}
	return intensity > bestIntensity
}

// phaseFirst walks phases in catalog order; each reference peak claims the
// strongest unused detected peak within tolerance. Detected peaks are
// scanned in descending intensity so intensity ties resolve to the earlier,
// stronger candidate deterministically.
func phaseFirst(detected []peaks.Peak, cat *refcat.Catalog, tol float64) []Match {
	order := make([]int, len(detected))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return detected[order[a]].Intensity > detected[order[b]].Intensity
	})

	used := make([]bool, len(detected))
	var matches []Match
	for _, phase := range cat.ByPhase() {
		for _, ref := range phase {
			best := -1
			for _, i := range order {
				if used[i] {
					continue
				}
				if math.Abs(detected[i].Angle-ref.Angle) > tol {
					continue
				}
				if best < 0 || detected[i].Intensity > detected[best].Intensity {
					best = i
				}
			}
			if best < 0 {
				continue
			}
			used[best] = true
			delta := math.Abs(detected[best].Angle - ref.Angle)
			matches = append(matches, Match{
				Detected:   detected[best],
				Ref:        ref,
				AngleDelta: delta,
				Quality:    1 - delta/tol,
			})
		}
	}
	return matches
}
