package duration

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/ploginovic/Uveitis-IMIDs/statmodel"
)

// Concordance calculates the survival concordance of Uno et al.
// (https://www.ncbi.nlm.nih.gov/pmc/articles/PMC3079915).  Higher
// scores are taken to indicate higher risk, i.e. earlier events.
type Concordance struct {

	// The risk scores that are being assessed
	score []float64

	// Event or censoring time
	time []float64

	// Event status
	status []float64

	// Number of pairs to check when using random sampling to
	// estimate the concordance
	npair int

	// Above this sample size the concordance is estimated by
	// sampling pairs
	maxExact int

	rng *rand.Rand

	// The survival function for the censoring distribution
	sf *SurvfuncRight
}

// NewConcordance creates a new Concordance value with the given parameters.
func NewConcordance(time, status, score []float64) *Concordance {

	c := &Concordance{
		time:     time,
		status:   status,
		score:    score,
		npair:    10000,
		maxExact: 2000,
		rng:      rand.New(rand.NewSource(1)),
	}

	return c
}

// NumPair sets the number of pairs of observations sampled at random
// to estimate the concordance.
func (c *Concordance) NumPair(npair int) *Concordance {
	c.npair = npair
	return c
}

// MaxExact sets the largest sample size for which all pairs are
// enumerated.
func (c *Concordance) MaxExact(n int) *Concordance {
	c.maxExact = n
	return c
}

// Seed sets the seed used when sampling pairs.
func (c *Concordance) Seed(seed int64) *Concordance {
	c.rng = rand.New(rand.NewSource(seed))
	return c
}

// Done signals that the Concordance value has been built and now can be fit.
func (c *Concordance) Done() (*Concordance, error) {

	n := len(c.time)
	if len(c.status) != n || len(c.score) != n {
		return nil, fmt.Errorf("Concordance: time, status, and score must have equal lengths")
	}
	if n < 2 {
		return nil, fmt.Errorf("Concordance: at least two observations are needed")
	}

	// Sort everything by time
	ii := make([]int, n)
	time1 := make([]float64, n)
	statusr := make([]float64, n)
	status1 := make([]float64, n)
	score1 := make([]float64, n)
	copy(time1, c.time)
	floats.Argsort(time1, ii)
	ncens := 0.0
	for i, j := range ii {
		// We want the survival function for censoring
		statusr[i] = 1 - c.status[j]
		status1[i] = c.status[j]
		score1[i] = c.score[j]
		ncens += statusr[i]
	}

	if ncens == 0 {
		// No censoring, create a censoring survival function
		// with P(T>t) = 1 for all t.
		c.sf = &SurvfuncRight{
			times:    []float64{0, math.Inf(1)},
			survProb: []float64{1, 1},
		}
	} else {
		da, err := statmodel.NewDataset([][]float64{time1, statusr}, []string{"time", "status"})
		if err != nil {
			return nil, err
		}
		c.sf, err = NewSurvfuncRight(da, "time", "status").Done()
		if err != nil {
			return nil, err
		}
	}

	c.time = time1
	c.status = status1
	c.score = score1

	return c, nil
}

// censProbBefore returns the censoring survival probability just
// before time t.
func (c *Concordance) censProbBefore(t float64) float64 {
	st := c.sf.Time()
	sp := c.sf.SurvProb()
	jj := sort.SearchFloat64s(st, t)
	if jj == 0 {
		return 1
	}
	return sp[jj-1]
}

// pair returns the weight of the comparable pair (j1, j2) and its
// concordant part; ties in the score count one half.
func (c *Concordance) pair(j1, j2 int) (float64, float64) {

	g := c.censProbBefore(c.time[j1])
	if g <= 0 {
		return 0, 0
	}
	w := 1 / (g * g)

	switch {
	case c.score[j1] > c.score[j2]:
		return w, w
	case c.score[j1] == c.score[j2]:
		return w, w / 2
	default:
		return w, 0
	}
}

// Concordance returns the concordance statistic, counting only pairs
// whose earlier time is an event before the truncation time.
func (c *Concordance) Concordance(trunc float64) (float64, error) {

	n := len(c.time)

	// Events strictly before the truncation point
	jt := sort.SearchFloat64s(c.time, trunc)
	if jt <= 0 {
		return 0, fmt.Errorf("Concordance: no observations below the truncation point %v", trunc)
	}

	var numer, denom float64

	if n <= c.maxExact {
		for j1 := 0; j1 < jt; j1++ {
			if c.status[j1] != 1 {
				continue
			}
			for j2 := j1 + 1; j2 < n; j2++ {
				if c.time[j1] < c.time[j2] {
					d, u := c.pair(j1, j2)
					denom += d
					numer += u
				}
			}
		}
	} else {
		// Check that comparable pairs exist before sampling.
		var ok bool
		for j1 := 0; j1 < jt && !ok; j1++ {
			ok = c.status[j1] == 1 && c.time[j1] < c.time[n-1]
		}
		if !ok {
			return 0, fmt.Errorf("Concordance: no comparable pairs")
		}

		for i := 0; i < c.npair; i++ {

			// Find a pair to compare
			var j1, j2 int
			for {
				j1 = c.rng.Intn(jt)
				j2 = c.rng.Intn(n)
				if j2 > j1 && c.time[j1] < c.time[j2] && c.status[j1] == 1 {
					break
				}
			}

			d, u := c.pair(j1, j2)
			denom += d
			numer += u
		}
	}

	if denom == 0 {
		return 0, fmt.Errorf("Concordance: no comparable pairs")
	}

	return numer / denom, nil
}
