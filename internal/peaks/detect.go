// Package peaks finds local maxima in cleaned diffraction samples. The
// detector is a local-maximum search with minimum-separation, height,
// prominence and width gates, with the height and prominence thresholds
// adaptively relaxed toward the statistical profile of the signal so a fixed
// absolute threshold cannot silently return zero peaks on low-range data.
package peaks

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Plutor-05/xrd-figure/internal/monitoring"
	"github.com/Plutor-05/xrd-figure/internal/series"
)

// Params are the nominal detection thresholds. The effective height and
// prominence may be lower after adaptive clamping, never higher.
type Params struct {
	Height     float64 // minimum intensity
	Distance   int     // minimum sample separation between kept peaks
	Prominence float64 // minimum drop to surrounding terrain
	Width      float64 // minimum width, in samples, at half prominence

	// Adaptive clamp constants: height relaxes to
	// max(mean + HeightSigma*σ, HeightFraction*max) and prominence to
	// max(σ, ProminenceFraction*max). The defaults are the empirically
	// tuned values the pipeline has always used; they are tunables, not
	// derived quantities.
	HeightSigma        float64
	HeightFraction     float64
	ProminenceFraction float64
}

// DefaultParams returns the standard detection parameters.
func DefaultParams() Params {
	return Params{
		Height:             100,
		Distance:           15,
		Prominence:         50,
		Width:              2,
		HeightSigma:        2,
		HeightFraction:     0.05,
		ProminenceFraction: 0.02,
	}
}

// Peak is one detected local maximum.
type Peak struct {
	Angle     float64
	Intensity float64
	Index     int // position within the sample
}

// Effective returns the thresholds after adaptive clamping against the
// intensity column's statistics.
func (p Params) Effective(intensities []float64) (height, prominence float64) {
	height, prominence = p.Height, p.Prominence
	max := floats.Max(intensities)
	if max <= 0 {
		return height, prominence
	}
	mean, sigma := stat.MeanStdDev(intensities, nil)
	if adaptive := math.Max(mean+p.HeightSigma*sigma, p.HeightFraction*max); adaptive < height {
		height = adaptive
	}
	if adaptive := math.Max(sigma, p.ProminenceFraction*max); adaptive < prominence {
		prominence = adaptive
	}
	return height, prominence
}

// Detect returns every qualifying peak of the sample in index order. The
// result may be empty.
func Detect(s *series.Sample, p Params) []Peak {
	y := s.Intensities()
	if len(y) < 3 {
		return nil
	}

	height, prominence := p.Effective(y)
	monitoring.Logf("peaks: detecting with height=%.2f distance=%d prominence=%.2f width=%.2f",
		height, p.Distance, prominence, p.Width)

	idx := localMaxima(y)
	idx = filterHeight(y, idx, height)
	idx = filterDistance(y, idx, p.Distance)

	var out []Peak
	for _, i := range idx {
		prom, leftBase, rightBase := prominenceAt(y, i)
		if prom < prominence {
			continue
		}
		if widthAt(y, i, prom, leftBase, rightBase) < p.Width {
			continue
		}
		pt := s.At(i)
		out = append(out, Peak{Angle: pt.Angle, Intensity: pt.Intensity, Index: i})
	}
	return out
}

// localMaxima returns the indices of strict local maxima. Plateau points are
// not peaks.
func localMaxima(y []float64) []int {
	var idx []int
	for i := 1; i < len(y)-1; i++ {
		if y[i] > y[i-1] && y[i] > y[i+1] {
			idx = append(idx, i)
		}
	}
	return idx
}

func filterHeight(y []float64, idx []int, height float64) []int {
	kept := idx[:0]
	for _, i := range idx {
		if y[i] >= height {
			kept = append(kept, i)
		}
	}
	return kept
}

// filterDistance enforces the minimum separation: peaks are considered in
// descending intensity (ties keep the earlier index) and each kept peak
// suppresses any weaker peak within distance samples.
func filterDistance(y []float64, idx []int, distance int) []int {
	if distance <= 1 || len(idx) < 2 {
		return idx
	}
	order := make([]int, len(idx))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if y[idx[order[a]]] != y[idx[order[b]]] {
			return y[idx[order[a]]] > y[idx[order[b]]]
		}
		return idx[order[a]] < idx[order[b]]
	})

	suppressed := make([]bool, len(idx))
	for _, k := range order {
		if suppressed[k] {
			continue
		}
		for j := k - 1; j >= 0 && idx[k]-idx[j] < distance; j-- {
			suppressed[j] = true
		}
		for j := k + 1; j < len(idx) && idx[j]-idx[k] < distance; j++ {
			suppressed[j] = true
		}
	}

	kept := idx[:0]
	for k, i := range idx {
		if !suppressed[k] {
			kept = append(kept, i)
		}
	}
	return kept
}

// prominenceAt measures the drop from the peak to the higher of its two
// bases. A base is the minimum between the peak and the nearest strictly
// higher point on that side, capped at the signal bounds.
func prominenceAt(y []float64, peak int) (prom float64, leftBase, rightBase int) {
	leftMin := y[peak]
	leftBase = peak
	for i := peak - 1; i >= 0; i-- {
		if y[i] > y[peak] {
			break
		}
		if y[i] < leftMin {
			leftMin = y[i]
			leftBase = i
		}
	}

	rightMin := y[peak]
	rightBase = peak
	for i := peak + 1; i < len(y); i++ {
		if y[i] > y[peak] {
			break
		}
		if y[i] < rightMin {
			rightMin = y[i]
			rightBase = i
		}
	}

	return y[peak] - math.Max(leftMin, rightMin), leftBase, rightBase
}

// widthAt measures the peak's width in samples at half its prominence,
// interpolating the crossing positions between samples.
func widthAt(y []float64, peak int, prom float64, leftBase, rightBase int) float64 {
	h := y[peak] - prom/2

	left := float64(leftBase)
	for i := peak - 1; i >= leftBase; i-- {
		if y[i] <= h {
			left = float64(i)
			if y[i+1] != y[i] {
				left += (h - y[i]) / (y[i+1] - y[i])
			}
			break
		}
	}

	right := float64(rightBase)
	for i := peak + 1; i <= rightBase; i++ {
		if y[i] <= h {
			right = float64(i)
			if y[i-1] != y[i] {
				right -= (h - y[i]) / (y[i-1] - y[i])
			}
			break
		}
	}

	return right - left
}
