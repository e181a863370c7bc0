package series

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// SavitzkyGolay smooths y with a Savitzky-Golay filter of the given window
// length (odd, > order) and polynomial order. Interior points use the central
// convolution coefficients; the first and last half-window points evaluate
// the polynomial fitted to the leading/trailing window, so the output has the
// same length as the input.
func SavitzkyGolay(y []float64, window, order int) ([]float64, error) {
	if window%2 == 0 || window < 3 {
		return nil, fmt.Errorf("savgol: window must be odd and >= 3, got %d", window)
	}
	if order < 0 || order >= window {
		return nil, fmt.Errorf("savgol: order must be in [0, window), got %d", order)
	}
	if len(y) < window {
		return nil, fmt.Errorf("savgol: series length %d shorter than window %d", len(y), window)
	}

	half := window / 2
	m := order + 1

	// Vandermonde design matrix over offsets -half..half.
	a := mat.NewDense(window, m, nil)
	for i := 0; i < window; i++ {
		x := float64(i - half)
		v := 1.0
		for j := 0; j < m; j++ {
			a.Set(i, j, v)
			v *= x
		}
	}

	// B = (AᵀA)⁻¹Aᵀ maps a window of samples onto polynomial coefficients.
	var ata mat.Dense
	ata.Mul(a.T(), a)
	var ataInv mat.Dense
	if err := ataInv.Inverse(&ata); err != nil {
		return nil, fmt.Errorf("savgol: singular design matrix: %w", err)
	}
	var b mat.Dense
	b.Mul(&ataInv, a.T())

	out := make([]float64, len(y))

	// Central coefficients are the constant-term row of B: the fitted
	// polynomial evaluated at the window centre.
	center := b.RawRowView(0)
	for i := half; i < len(y)-half; i++ {
		var sum float64
		for k, c := range center {
			sum += c * y[i-half+k]
		}
		out[i] = sum
	}

	// Head and tail: fit the edge window once and evaluate the polynomial at
	// each covered offset.
	evalEdge := func(windowStart int, fill func(offset int, v float64)) {
		beta := make([]float64, m)
		for j := 0; j < m; j++ {
			var sum float64
			for k := 0; k < window; k++ {
				sum += b.At(j, k) * y[windowStart+k]
			}
			beta[j] = sum
		}
		for t := 0; t < half; t++ {
			x := float64(t - half)
			if windowStart != 0 {
				x = float64(t + 1)
			}
			v := 0.0
			pow := 1.0
			for j := 0; j < m; j++ {
				v += beta[j] * pow
				pow *= x
			}
			fill(t, v)
		}
	}
	evalEdge(0, func(t int, v float64) { out[t] = v })
	evalEdge(len(y)-window, func(t int, v float64) { out[len(y)-half+t] = v })

	return out, nil
}
