package calibration

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Quantile levels of the spline knots, by number of knots.
var knotLevels = map[int][]float64{
	3: {0.10, 0.5, 0.90},
	4: {0.05, 0.35, 0.65, 0.95},
	5: {0.05, 0.275, 0.5, 0.725, 0.95},
	6: {0.05, 0.23, 0.41, 0.59, 0.77, 0.95},
	7: {0.025, 0.1833, 0.3417, 0.5, 0.6583, 0.8167, 0.975},
}

// placeKnots returns up to k distinct knots at the standard quantiles
// of x.
func placeKnots(x []float64, k int) ([]float64, error) {

	levels, ok := knotLevels[k]
	if !ok {
		return nil, fmt.Errorf("calibration: unsupported number of knots %d", k)
	}

	sx := append([]float64(nil), x...)
	sort.Float64s(sx)

	var knots []float64
	for _, p := range levels {
		q := stat.Quantile(p, stat.Empirical, sx, nil)
		if len(knots) == 0 || q > knots[len(knots)-1] {
			knots = append(knots, q)
		}
	}

	return knots, nil
}

// rcs is a restricted (natural) cubic spline basis, linear beyond the
// boundary knots.  With fewer than three knots it is the identity.
type rcs struct {
	knots []float64
}

// dim returns the number of basis functions.
func (s rcs) dim() int {
	if len(s.knots) < 3 {
		return 1
	}
	return len(s.knots) - 1
}

func cube(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return x * x * x
}

// eval writes the basis functions at x into b.
func (s rcs) eval(x float64, b []float64) {

	b[0] = x
	k := len(s.knots)
	if k < 3 {
		return
	}

	t := s.knots
	tk, tk1 := t[k-1], t[k-2]
	scale := math.Pow(tk-t[0], 2)
	for j := 0; j < k-2; j++ {
		v := cube(x-t[j]) -
			cube(x-tk1)*(tk-t[j])/(tk-tk1) +
			cube(x-tk)*(tk1-t[j])/(tk-tk1)
		b[j+1] = v / scale
	}
}

// basis returns the basis functions evaluated at each x, as columns.
func (s rcs) basis(x []float64) [][]float64 {

	cols := make([][]float64, s.dim())
	for j := range cols {
		cols[j] = make([]float64, len(x))
	}

	b := make([]float64, s.dim())
	for i, v := range x {
		s.eval(v, b)
		for j := range cols {
			cols[j][i] = b[j]
		}
	}

	return cols
}
