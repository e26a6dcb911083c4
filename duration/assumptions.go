package duration

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// PHTest holds the result of testing the proportional hazards
// assumption for one covariate.
type PHTest struct {

	// Variable is the covariate name.
	Variable string `json:"variable"`

	// Statistic is the 1 degree of freedom chi-square statistic.
	Statistic float64 `json:"statistic"`

	// PValue is the upper tail probability of Statistic.
	PValue float64 `json:"p_value"`
}

// Violated reports whether the test rejects proportional hazards at
// the given level.
func (pt PHTest) Violated(alpha float64) bool {
	return pt.PValue < alpha
}

// SchoenfeldResiduals returns the Schoenfeld residuals of the fitted
// model, one row per (non-skipped) event, along with the event times.
// Row i holds x_i minus the risk-weighted mean of x over the risk set
// at the time of event i.  Case weights are ignored.
func (rslt *PHResults) SchoenfeldResiduals() ([][]float64, []float64) {

	ph := rslt.PHModel()
	p := len(ph.xpos)

	lp := make([]float64, ph.NumObs())
	ph.linpred(rslt.Params(), lp)

	time := ph.data[ph.timepos]

	var resid [][]float64
	var etime []float64

	for s, ix := range ph.stratumix {

		if ix[1] == ix[0] {
			continue
		}

		mx := lp[ix[0]]
		for i := ix[0]; i < ix[1]; i++ {
			mx = math.Max(mx, lp[i])
		}

		rlp := 0.0
		rlpv := make([]float64, p)
		for k := range ph.etimes[s] {

			for _, i := range ph.enter[s][k] {
				e := math.Exp(lp[i] - mx)
				rlp += e
				for j, q := range ph.xpos {
					rlpv[j] += e * ph.data[q][i]
				}
			}

			for _, i := range ph.event[s][k] {
				r := make([]float64, p)
				for j, q := range ph.xpos {
					r[j] = ph.data[q][i] - rlpv[j]/rlp
				}
				resid = append(resid, r)
				etime = append(etime, time[i])
			}

			for _, i := range ph.exit[s][k] {
				e := math.Exp(lp[i] - mx)
				rlp -= e
				for j, q := range ph.xpos {
					rlpv[j] -= e * ph.data[q][i]
				}
			}
		}
	}

	return resid, etime
}

// rank returns the ranks of x, with ties receiving their average rank.
func rank(x []float64) []float64 {

	ii := make([]int, len(x))
	for i := range ii {
		ii[i] = i
	}
	xs := make([]float64, len(x))
	copy(xs, x)
	floats.Argsort(xs, ii)

	r := make([]float64, len(x))
	for i := 0; i < len(xs); {
		j := i
		for j+1 < len(xs) && xs[j+1] == xs[i] {
			j++
		}
		// Positions i..j are tied, ranks are 1-based.
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			r[ii[k]] = avg
		}
		i = j + 1
	}

	return r
}

// PHTests tests the proportional hazards assumption for each covariate
// by correlating the scaled Schoenfeld residuals with the rank of the
// event times.
func (rslt *PHResults) PHTests() ([]PHTest, error) {

	names := rslt.Names()
	if len(names) == 0 {
		return nil, nil
	}

	vcov := rslt.VCov()
	se := rslt.StdErr()
	if vcov == nil || se == nil {
		return nil, fmt.Errorf("PHTests: the covariance matrix is unavailable")
	}

	resid, etime := rslt.SchoenfeldResiduals()
	nd := float64(len(resid))
	if len(resid) < 2 {
		return nil, fmt.Errorf("PHTests: at least two events are needed, found %d", len(resid))
	}

	rk := rank(etime)
	mn := stat.Mean(rk, nil)
	var ss float64
	for i := range rk {
		rk[i] -= mn
		ss += rk[i] * rk[i]
	}
	if ss == 0 {
		return nil, fmt.Errorf("PHTests: all events occur at the same time")
	}

	p := len(names)
	chi2 := distuv.ChiSquared{K: 1}

	var tests []PHTest
	for j := 0; j < p; j++ {

		// Scaled residual for variable j is nd * (r V)_j.
		var num float64
		for i, r := range resid {
			var sr float64
			for k := 0; k < p; k++ {
				sr += r[k] * vcov[k*p+j]
			}
			num += rk[i] * nd * sr
		}

		st := num * num / (nd * se[j] * se[j] * ss)
		tests = append(tests, PHTest{
			Variable:  names[j],
			Statistic: st,
			PValue:    chi2.Survival(st),
		})
	}

	return tests, nil
}

// AssumptionReport summarizes the proportional hazards tests of a
// fitted model.
type AssumptionReport struct {

	// Threshold is the significance level used to flag violations.
	Threshold float64 `json:"threshold"`

	// Tests holds one test per covariate, in coefficient order.
	Tests []PHTest `json:"tests"`

	// Violations names the covariates whose p-value is below Threshold.
	Violations []string `json:"violations"`
}

// OK reports whether no covariate violates the assumption.
func (ar *AssumptionReport) OK() bool {
	return len(ar.Violations) == 0
}

// CheckAssumptions runs PHTests and flags covariates with p-values
// below threshold.
func (rslt *PHResults) CheckAssumptions(threshold float64) (*AssumptionReport, error) {

	if !(threshold > 0 && threshold < 1) {
		return nil, fmt.Errorf("CheckAssumptions: threshold must be in (0, 1), got %v", threshold)
	}

	tests, err := rslt.PHTests()
	if err != nil {
		return nil, err
	}

	ar := &AssumptionReport{
		Threshold: threshold,
		Tests:     tests,
	}
	for _, pt := range tests {
		if pt.Violated(threshold) {
			ar.Violations = append(ar.Violations, pt.Variable)
		}
	}

	return ar, nil
}
