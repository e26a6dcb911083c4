package duration

import (
	"fmt"
	"math"
	"sort"

	"github.com/ploginovic/Uveitis-IMIDs/statmodel"
)

// NumStrata returns the number of strata in the fitted data.
func (ph *PHReg) NumStrata() int {
	return len(ph.stratumix)
}

// stratumOf maps a stratum label to its position in the model, or -1 if
// the label did not occur in the fitted data.
func (ph *PHReg) stratumOf(label float64) int {
	if ph.stratapos == -1 {
		return 0
	}
	strata := ph.data[ph.stratapos]
	for s, ix := range ph.stratumix {
		if ix[1] > ix[0] && strata[ix[0]] == label {
			return s
		}
	}
	return -1
}

// cumHazAt evaluates a right-continuous cumulative hazard step function
// at time t.
func cumHazAt(times, cumhaz []float64, t float64) float64 {
	ii := sort.Search(len(times), func(i int) bool { return times[i] > t })
	if ii == 0 {
		return 0
	}
	return cumhaz[ii-1]
}

// LinearPredictor returns x'b (plus the offset, if the model has one)
// for every row of data.  The data must contain every covariate of the
// model; other columns are ignored.
func (rslt *PHResults) LinearPredictor(data *statmodel.Dataset) ([]float64, error) {

	ph := rslt.PHModel()
	lp := make([]float64, data.NumObs())

	for j, na := range rslt.Names() {
		x, ok := data.Column(na)
		if !ok {
			return nil, prepErr(na, "not found in prediction data")
		}
		b := rslt.Params()[j]
		for i, v := range x {
			lp[i] += b * v
		}
	}

	if ph.offsetpos != -1 {
		na := ph.varnames[ph.offsetpos]
		off, ok := data.Column(na)
		if !ok {
			return nil, prepErr(na, "offset not found in prediction data")
		}
		for i, v := range off {
			lp[i] += v
		}
	}

	for i, v := range lp {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, prepErr("", "non-finite linear predictor in row %d", i)
		}
	}

	return lp, nil
}

// PartialHazards returns exp(x'b) for every row of data.
func (rslt *PHResults) PartialHazards(data *statmodel.Dataset) ([]float64, error) {
	lp, err := rslt.LinearPredictor(data)
	if err != nil {
		return nil, err
	}
	for i := range lp {
		lp[i] = math.Exp(lp[i])
	}
	return lp, nil
}

// BaselineCumHazAt returns the Breslow baseline cumulative hazard of the
// given stratum evaluated at time t.
func (rslt *PHResults) BaselineCumHazAt(stratum int, t float64) float64 {
	ph := rslt.PHModel()
	ti, ch := ph.BaselineCumHaz(stratum, rslt.Params())
	return cumHazAt(ti, ch, t)
}

// PredictSurvival returns the model-based probability S(t0|x) of
// remaining event-free through time t0, for every row of data.  For a
// stratified model, data must also hold the strata variable, and every
// stratum label must occur in the fitted data.
func (rslt *PHResults) PredictSurvival(data *statmodel.Dataset, t0 float64) ([]float64, error) {

	if math.IsNaN(t0) || t0 < 0 {
		return nil, fmt.Errorf("PredictSurvival: invalid time horizon %v", t0)
	}

	ph := rslt.PHModel()

	lp, err := rslt.LinearPredictor(data)
	if err != nil {
		return nil, err
	}

	// Baseline cumulative hazard at t0, by stratum
	h0 := make([]float64, ph.NumStrata())
	for s := range h0 {
		h0[s] = rslt.BaselineCumHazAt(s, t0)
	}

	var strata []float64
	if ph.stratapos != -1 {
		na := ph.varnames[ph.stratapos]
		var ok bool
		strata, ok = data.Column(na)
		if !ok {
			return nil, prepErr(na, "strata not found in prediction data")
		}
	}

	sp := make([]float64, len(lp))
	for i := range lp {
		s := 0
		if strata != nil {
			s = ph.stratumOf(strata[i])
			if s == -1 {
				return nil, prepErr(ph.varnames[ph.stratapos], "unknown stratum %v in row %d", strata[i], i)
			}
		}
		sp[i] = math.Exp(-h0[s] * math.Exp(lp[i]))
	}

	return sp, nil
}

// Concordance returns Uno's concordance of the fitted linear predictor
// on the training data, without truncation.
func (rslt *PHResults) Concordance() (float64, error) {

	ph := rslt.PHModel()

	score, err := rslt.FittedValues(nil)
	if err != nil {
		return 0, err
	}

	c, err := NewConcordance(ph.data[ph.timepos], ph.data[ph.statuspos], score).Done()
	if err != nil {
		return 0, err
	}

	return c.Concordance(math.Inf(1))
}
