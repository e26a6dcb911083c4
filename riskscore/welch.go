package riskscore

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// WelchResult is the outcome of Welch's unequal variances t-test.
type WelchResult struct {
	T  float64
	DF float64
	P  float64
}

// WelchTest compares the means of two samples without assuming equal
// variances.  The p-value is two-sided.
func WelchTest(a, b []float64) (WelchResult, error) {

	if len(a) < 2 || len(b) < 2 {
		return WelchResult{}, fmt.Errorf("riskscore: Welch test needs at least two values per sample")
	}

	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	na, nb := float64(len(a)), float64(len(b))

	sa, sb := va/na, vb/nb
	se := math.Sqrt(sa + sb)
	if se == 0 {
		return WelchResult{}, fmt.Errorf("riskscore: Welch test with zero variance")
	}

	t := (ma - mb) / se
	df := (sa + sb) * (sa + sb) / (sa*sa/(na-1) + sb*sb/(nb-1))

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.CDF(-math.Abs(t))

	return WelchResult{T: t, DF: df, P: p}, nil
}

// Comparison is a pair of groups to compare.
type Comparison struct {
	A, B string
}

func (c Comparison) String() string {
	return c.A + " vs " + c.B
}

// DefaultComparisons returns the standard comparisons for a disease
// label.
func DefaultComparisons(label string) []Comparison {
	return []Comparison{
		{Controls, UveitisOnly},
		{DiseaseOnly(label), UveitisOnly},
		{UveitisOnly, Both(label)},
		{Both(label), DiseaseOnly(label)},
	}
}

// DefaultMultiplier is the Bonferroni multiplier for eight diseases with
// four comparisons each.
const DefaultMultiplier = 8 * 4

// ComparisonResult is a Welch test between two groups, with the p-value
// multiplied for multiple testing.  PAdjusted is not truncated at 1.
type ComparisonResult struct {
	Comparison
	WelchResult
	PAdjusted float64
}

// Compare runs a Welch test of the score column for each comparison.
func Compare(groups []Group, col string, comparisons []Comparison, multiplier float64) ([]ComparisonResult, error) {

	if multiplier < 1 {
		return nil, fmt.Errorf("riskscore: multiplier must be at least 1, got %v", multiplier)
	}

	var res []ComparisonResult
	for _, c := range comparisons {
		ga, err := findGroup(groups, c.A)
		if err != nil {
			return nil, err
		}
		gb, err := findGroup(groups, c.B)
		if err != nil {
			return nil, err
		}
		a, err := ga.Values(col)
		if err != nil {
			return nil, err
		}
		b, err := gb.Values(col)
		if err != nil {
			return nil, err
		}

		w, err := WelchTest(a, b)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c, err)
		}
		res = append(res, ComparisonResult{Comparison: c, WelchResult: w, PAdjusted: w.P * multiplier})
	}

	return res, nil
}

// FormatPValue formats a p-value for annotation, including the relation
// sign: "=1" above one, "<0.0001" below 0.0001, one significant digit
// below 0.001 and two otherwise.
func FormatPValue(p float64) string {
	switch {
	case p > 1:
		return "=1"
	case p < 0.0001:
		return "<0.0001"
	case p < 0.001:
		return fmt.Sprintf("=%.1g", p)
	default:
		return fmt.Sprintf("=%.2g", p)
	}
}

// Annotation returns one line per comparison with its formatted,
// adjusted p-value.
func Annotation(res []ComparisonResult) string {
	var lines []string
	for _, r := range res {
		lines = append(lines, fmt.Sprintf("%s: P%s", r.Comparison, FormatPValue(r.PAdjusted)))
	}
	return strings.Join(lines, "\n")
}
