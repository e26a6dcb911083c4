package selection

import (
	"strings"

	"gonum.org/v1/gonum/stat/combin"
)

// DefaultMandatory reports whether a covariate must always be retained:
// its name contains "age" or "sex", ignoring case.
func DefaultMandatory(name string) bool {
	lc := strings.ToLower(name)
	return strings.Contains(lc, "age") || strings.Contains(lc, "sex")
}

// partition splits the covariate names (all names other than the
// duration and event columns) into mandatory and candidate features.
// Both lists keep the order of names.
func partition(names []string, durationCol, eventCol string, mandatory func(string) bool) ([]string, []string) {

	var mand, feat []string
	for _, na := range names {
		switch {
		case na == durationCol || na == eventCol:
		case mandatory(na):
			mand = append(mand, na)
		default:
			feat = append(feat, na)
		}
	}

	return mand, feat
}

// join returns a new slice holding a followed by b.
func join(a, b []string) []string {
	c := make([]string, 0, len(a)+len(b))
	c = append(c, a...)
	return append(c, b...)
}

// without returns a new slice holding the elements of a other than x.
func without(a []string, x string) []string {
	var b []string
	for _, v := range a {
		if v != x {
			b = append(b, v)
		}
	}
	return b
}

// Subsets lazily enumerates the subsets of size r of a feature list, in
// lexicographic order of positions.  Dropping one feature from
// [a b c] yields [a b], [a c], [b c] in that order.
type Subsets struct {
	features []string
	r        int
	gen      *combin.CombinationGenerator
	idx      []int
}

// NewSubsets returns an enumerator of the size r subsets of features.
// It panics if r is negative or exceeds len(features).
func NewSubsets(features []string, r int) *Subsets {
	s := &Subsets{
		features: features,
		r:        r,
		idx:      make([]int, r),
	}
	s.Reset()
	return s
}

// Len returns the total number of subsets.
func (s *Subsets) Len() int {
	return combin.Binomial(len(s.features), s.r)
}

// Reset restarts the enumeration.
func (s *Subsets) Reset() {
	s.gen = combin.NewCombinationGenerator(len(s.features), s.r)
}

// Next advances to the next subset, returning false when all subsets
// have been produced.
func (s *Subsets) Next() bool {
	return s.gen.Next()
}

// Subset returns the current subset as a new slice.
func (s *Subsets) Subset() []string {
	s.gen.Combination(s.idx)
	sub := make([]string, s.r)
	for i, j := range s.idx {
		sub[i] = s.features[j]
	}
	return sub
}

// Dropped returns the features not in the current subset.
func (s *Subsets) Dropped() []string {
	s.gen.Combination(s.idx)
	var d []string
	j := 0
	for i, f := range s.features {
		if j < len(s.idx) && s.idx[j] == i {
			j++
			continue
		}
		d = append(d, f)
	}
	return d
}
