package riskscore

import (
	"math"

	"github.com/montanaflynn/stats"
)

// Summary describes the score distribution of one group.
type Summary struct {
	Group  string  `json:"group"`
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	SD     float64 `json:"sd"`
	Median float64 `json:"median"`
}

// Describe summarizes a column in each group.  Statistics of an empty
// group are NaN, and the SD of a single value is NaN.
func Describe(groups []Group, col string) ([]Summary, error) {

	var res []Summary
	for _, g := range groups {
		v, err := g.Values(col)
		if err != nil {
			return nil, err
		}

		s := Summary{Group: g.Name, N: len(v), Mean: math.NaN(), SD: math.NaN(), Median: math.NaN()}
		if len(v) > 0 {
			s.Mean, _ = stats.Mean(v)
			s.Median, _ = stats.Median(v)
		}
		if len(v) > 1 {
			s.SD, _ = stats.StandardDeviationSample(v)
		}
		res = append(res, s)
	}

	return res, nil
}

// ScottBandwidth returns Scott's rule of thumb bandwidth for a Gaussian
// kernel density estimate.
func ScottBandwidth(v []float64) float64 {
	sd, err := stats.StandardDeviationSample(v)
	if err != nil {
		return math.NaN()
	}
	return sd * math.Pow(float64(len(v)), -0.2)
}

// KDE returns a Gaussian kernel density estimate of v at each grid
// point, using Scott's bandwidth.  A sample with fewer than two distinct
// values has no estimate and yields nil.
func KDE(v, grid []float64) []float64 {

	bw := ScottBandwidth(v)
	if !(bw > 0) {
		return nil
	}

	c := 1 / (float64(len(v)) * bw * math.Sqrt(2*math.Pi))
	dens := make([]float64, len(grid))
	for i, x := range grid {
		var s float64
		for _, y := range v {
			z := (x - y) / bw
			s += math.Exp(-z * z / 2)
		}
		dens[i] = c * s
	}

	return dens
}
