// Package duration supports various methods for statistical analysis
// of duration data (survival analysis).
package duration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ploginovic/Uveitis-IMIDs/statmodel"
)

// PHParameter contains a parameter value for a proportional hazards
// regression model.
type PHParameter struct {
	coeff []float64
}

// GetCoeff returns the array of model coefficients from a parameter value.
func (p *PHParameter) GetCoeff() []float64 {
	return p.coeff
}

// SetCoeff sets the array of model coefficients for a parameter value.
func (p *PHParameter) SetCoeff(x []float64) {
	p.coeff = x
}

// Clone returns a deep copy of the parameter value.
func (p *PHParameter) Clone() statmodel.Parameter {
	q := make([]float64, len(p.coeff))
	copy(q, p.coeff)
	return &PHParameter{q}
}

// PHReg describes a proportional hazards regression model for right
// censored data.
type PHReg struct {

	// The names of the variables.  The order agrees with the order of 'data'.
	varnames []string

	// The data to which the model is fit.  These are private copies of
	// the columns used by the model.
	data [][]statmodel.Dtype

	// Starting values, optional
	start []float64

	// Position of the event variable
	statuspos int

	// Position of the time variable
	timepos int

	// Position of the entry time variable
	entrypos int

	// Position of an offset variable
	offsetpos int

	// Position of a case weight variable
	weightpos int

	// Position of a stratum variable
	stratapos int

	// Start and end position of the strata
	stratumix [][2]int

	// The sorted times at which events occur in each stratum
	etimes [][]float64

	// enter[i][j] are the row indices that enter the risk set at
	// the jth distinct time in stratum i
	enter [][][]int

	// event[i][j] are the row indices that have an event at
	// the jth distinct time in stratum i
	event [][][]int

	// exit[i][j] are the row indices that exit the risk set at
	// the jth distinct time in stratum i
	exit [][][]int

	// The sum of covariates with events in each stratum
	sumx [][]float64

	// L2 (ridge) weights for each variable
	l2wgt []float64

	// The ridge penalizer on the per-observation scale
	penalizer float64

	// The positions of the covariates in data
	xpos []int

	// If skip[i] is true, case i is skipped since it is censored before the first event.
	skip []bool

	// The number of cases that are skipped because they are censored before the first event
	skipEarlyCensor int

	// Optimization settings
	optsettings *optimize.Settings

	// Optimization method
	optmethod optimize.Method

	log *slog.Logger

	nslices [][]float64
}

// NumObs returns the number of observations in the data set.
func (ph *PHReg) NumObs() int {
	return len(ph.data[ph.timepos])
}

// NumParams returns the number of model parameters (regression coefficients).
func (ph *PHReg) NumParams() int {
	return len(ph.xpos)
}

// Dataset returns the data columns that are used to fit the model.
func (ph *PHReg) Dataset() [][]statmodel.Dtype {
	return ph.data
}

// Xpos return the positions of the covariates in the model's data.
func (ph *PHReg) Xpos() []int {
	return ph.xpos
}

// TimeVar returns the name of the event or censoring time variable.
func (ph *PHReg) TimeVar() string {
	return ph.varnames[ph.timepos]
}

// StatusVar returns the name of the event indicator variable.
func (ph *PHReg) StatusVar() string {
	return ph.varnames[ph.statuspos]
}

// XNames returns the names of the covariates, in coefficient order.
func (ph *PHReg) XNames() []string {
	var xna []string
	for _, k := range ph.xpos {
		xna = append(xna, ph.varnames[k])
	}
	return xna
}

// PHRegConfig defines configuration parameters for a proportional hazards regression.
type PHRegConfig struct {

	// A logger to which diagnostic information is written.  If nil,
	// nothing is logged.
	Log *slog.Logger

	// Start contains starting values for the regression parameter estimates
	Start []float64

	// WeightVar is the name of the variable for frequency-weighting the cases, if an empty
	// string, all weights are equal to 1.
	WeightVar string

	// OffsetVar is the name of a variable that defines an offset.
	OffsetVar string

	// StrataVar is the name of a variable that defines strata.
	StrataVar string

	// EntryVar is the name of a variable that defines entry (left truncation) times.
	EntryVar string

	// L2Penalty gives per-variable ridge weights, applied to the
	// unnormalized log-likelihood as w*b^2.
	L2Penalty map[string]float64

	// Penalizer is a ridge penalty applied uniformly to all
	// coefficients, on the per-observation scale: the objective
	// becomes -ll/n + Penalizer*||b||^2/2.
	Penalizer float64

	// OptMethod is the Gonum optimization used to fit the model.
	OptMethod optimize.Method

	// OptSettings configures the Gonum optimization routine.
	OptSettings *optimize.Settings
}

// DefaultPHRegConfig returns a default configuration struct for a proportional hazards regression.
func DefaultPHRegConfig() *PHRegConfig {

	return &PHRegConfig{
		OptMethod: &optimize.BFGS{
			Linesearcher: &optimize.MoreThuente{},
		},
	}
}

// NewPHReg returns a PHReg value that can be used to fit a
// proportional hazards regression model.  The columns used by the
// model are copied, so the dataset is never modified and may be shared
// by concurrently constructed models.
func NewPHReg(data *statmodel.Dataset, time, status string, predictors []string, config *PHRegConfig) (*PHReg, error) {

	if config == nil {
		config = DefaultPHRegConfig()
	}

	if config.Penalizer < 0 {
		return nil, prepErr("", "penalizer must be non-negative, got %v", config.Penalizer)
	}

	var varnames []string
	var cols [][]statmodel.Dtype
	seen := make(map[string]bool)

	add := func(vn string, required bool) (int, error) {
		if vn == "" {
			if required {
				return -1, prepErr("", "column name is empty")
			}
			return -1, nil
		}
		if seen[vn] {
			return -1, prepErr(vn, "column used more than once")
		}
		x, ok := data.Column(vn)
		if !ok {
			return -1, prepErr(vn, "not found in dataset")
		}
		for i, v := range x {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return -1, prepErr(vn, "non-finite value in row %d", i)
			}
		}
		seen[vn] = true
		y := make([]statmodel.Dtype, len(x))
		copy(y, x)
		varnames = append(varnames, vn)
		cols = append(cols, y)
		return len(cols) - 1, nil
	}

	timepos, err := add(time, true)
	if err != nil {
		return nil, err
	}
	statuspos, err := add(status, true)
	if err != nil {
		return nil, err
	}

	var xpos []int
	for _, xna := range predictors {
		xp, err := add(xna, true)
		if err != nil {
			return nil, err
		}
		xpos = append(xpos, xp)
	}

	weightpos, err := add(config.WeightVar, false)
	if err != nil {
		return nil, err
	}
	stratapos, err := add(config.StrataVar, false)
	if err != nil {
		return nil, err
	}
	offsetpos, err := add(config.OffsetVar, false)
	if err != nil {
		return nil, err
	}
	entrypos, err := add(config.EntryVar, false)
	if err != nil {
		return nil, err
	}

	if len(cols[timepos]) == 0 {
		return nil, prepErr("", "dataset has no rows")
	}

	if config.Start != nil && len(config.Start) != len(xpos) {
		return nil, prepErr("", "%d starting values for %d predictors", len(config.Start), len(xpos))
	}

	logger := config.Log
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ph := &PHReg{
		data:        cols,
		varnames:    varnames,
		timepos:     timepos,
		statuspos:   statuspos,
		xpos:        xpos,
		weightpos:   weightpos,
		offsetpos:   offsetpos,
		entrypos:    entrypos,
		stratapos:   stratapos,
		start:       config.Start,
		penalizer:   config.Penalizer,
		log:         logger,
		optsettings: config.OptSettings,
		optmethod:   config.OptMethod,
	}

	if err := ph.validate(); err != nil {
		return nil, err
	}

	nobs := float64(ph.NumObs())
	if len(config.L2Penalty) > 0 || config.Penalizer > 0 {
		ph.l2wgt = make([]float64, len(xpos))
		for j, k := range xpos {
			ph.l2wgt[j] = config.L2Penalty[varnames[k]] + nobs*config.Penalizer/2
		}
	}

	ph.init()

	return ph, nil
}

// validate checks the censoring and time conventions.
func (ph *PHReg) validate() error {

	time := ph.data[ph.timepos]
	status := ph.data[ph.statuspos]
	tname := ph.varnames[ph.timepos]
	sname := ph.varnames[ph.statuspos]

	for i := range time {
		if time[i] < 0 {
			return prepErr(tname, "times cannot be negative (row %d)", i)
		}
		switch status[i] {
		case 0:
		case 1:
			if time[i] <= 0 {
				return prepErr(tname, "observed event at non-positive time (row %d)", i)
			}
		default:
			return prepErr(sname, "status has values other than 0 and 1 (row %d)", i)
		}
	}

	if ph.entrypos != -1 {
		entry := ph.data[ph.entrypos]
		ename := ph.varnames[ph.entrypos]
		for i := range entry {
			if entry[i] < 0 {
				return prepErr(ename, "entry times may not be negative (row %d)", i)
			}
			if entry[i] > time[i] {
				return prepErr(ename, "entry time after event or censoring time (row %d)", i)
			}
		}
	}

	if ph.weightpos != -1 {
		for i, w := range ph.data[ph.weightpos] {
			if w < 0 {
				return prepErr(ph.varnames[ph.weightpos], "negative weight (row %d)", i)
			}
		}
	}

	return nil
}

func (ph *PHReg) init() {
	ph.sortByStratum()
	ph.setupTimes()
	ph.setupCovs()
}

func (a argsort) Len() int {
	return len(a.s)
}

func (a argsort) Swap(i, j int) {
	a.s[i], a.s[j] = a.s[j], a.s[i]
	a.inds[i], a.inds[j] = a.inds[j], a.inds[i]
}

func (a argsort) Less(i, j int) bool {
	return a.s[i] < a.s[j]
}

type argsort struct {
	s    []statmodel.Dtype
	inds []int
}

func (ph *PHReg) sortByStratum() {

	time := ph.data[ph.timepos]
	nobs := len(time)

	if ph.stratapos == -1 {
		ph.stratumix = [][2]int{{0, nobs}}
		return
	}

	// Sort a copy of the strata so that the permutation can be
	// applied to every column, including the strata column itself.
	strata := make([]statmodel.Dtype, nobs)
	copy(strata, ph.data[ph.stratapos])

	inds := make([]int, nobs)
	for i := range inds {
		inds[i] = i
	}
	sort.Stable(argsort{s: strata, inds: inds})

	for pos := range ph.data {
		x := ph.data[pos]
		y := make([]statmodel.Dtype, nobs)
		for i, j := range inds {
			y[i] = x[j]
		}
		ph.data[pos] = y
	}

	var i0 int
	for i := 0; i <= len(strata); i++ {
		if i == len(strata) || (i > 0 && strata[i-1] != strata[i]) {
			ph.stratumix = append(ph.stratumix, [2]int{i0, i})
			i0 = i
		}
	}
}

func (ph *PHReg) setupTimes() {

	ph.skipEarlyCensor = 0

	time := ph.data[ph.timepos]
	status := ph.data[ph.statuspos]
	nobs := len(time)

	// Track cases that are omitted since they are
	// censored before the first event in their stratum.
	ph.skip = make([]bool, nobs)

	// Get the sorted distinct times where events occur
	for _, ix := range ph.stratumix {

		var et []float64

		for i := ix[0]; i < ix[1]; i++ {
			if status[i] == 1 {
				et = append(et, float64(time[i]))
			}
		}

		if len(et) > 0 {
			sort.Float64s(et)

			// Deduplicate
			j := 0
			for i := 1; i < len(et); i++ {
				if et[i] != et[j] {
					j++
					et[j] = et[i]
				}
			}
			et = et[0 : j+1]
		}
		ph.etimes = append(ph.etimes, et)

		// Indices of cases that enter or exit the risk set,
		// or have an event at each time point.
		enter := make([][]int, len(et))
		exit := make([][]int, len(et))
		event := make([][]int, len(et))
		ph.enter = append(ph.enter, enter)
		ph.exit = append(ph.exit, exit)
		ph.event = append(ph.event, event)

		// No events in this stratum
		if len(et) == 0 {
			continue
		}

		// Risk set exit times
		for i := ix[0]; i < ix[1]; i++ {
			ii := sort.SearchFloat64s(et, float64(time[i]))
			switch {
			case ii == len(et):
				// Censored after last event, never exits
			case et[ii] == float64(time[i]):
				// Event or censored at an event time
				exit[ii] = append(exit[ii], i)
			case ii == 0:
				// Censored before first event, never enters
				ph.skip[i] = true
				ph.skipEarlyCensor++
			default:
				// Censored between event times
				exit[ii-1] = append(exit[ii-1], i)
			}
		}

		// Event times
		for i := ix[0]; i < ix[1]; i++ {
			if status[i] == 0 || ph.skip[i] {
				continue
			}
			ii := sort.SearchFloat64s(et, float64(time[i]))
			event[ii] = append(event[ii], i)
		}

		// Risk set entry times
		if ph.entrypos == -1 {
			// Everyone enters at time 0
			for i := ix[0]; i < ix[1]; i++ {
				if !ph.skip[i] {
					enter[0] = append(enter[0], i)
				}
			}
		} else {
			entry := ph.data[ph.entrypos]
			for i := ix[0]; i < ix[1]; i++ {
				if ph.skip[i] {
					continue
				}
				ii := sort.SearchFloat64s(et, float64(entry[i]))
				if ii < len(et) {
					// Enter on or between event times
					enter[ii] = append(enter[ii], i)
				}
			}
		}
	}
}

func (ph *PHReg) putNslice(x []float64) {
	ph.nslices = append(ph.nslices, x)
}

func (ph *PHReg) getNslice() []float64 {

	if len(ph.nslices) == 0 {
		return make([]float64, ph.NumObs())
	}
	q := len(ph.nslices) - 1
	x := ph.nslices[q]
	zero(x)
	ph.nslices = ph.nslices[0:q]

	return x
}

func (ph *PHReg) setupCovs() {

	ph.sumx = ph.sumx[0:0]
	status := ph.data[ph.statuspos]

	var wgt []statmodel.Dtype
	if ph.weightpos != -1 {
		wgt = ph.data[ph.weightpos]
	}

	// Get the sum of covariates in each stratum,
	// including only covariates for cases with the event
	for _, ix := range ph.stratumix {
		sumx := make([]float64, len(ph.xpos))
		for j, k := range ph.xpos {
			x := ph.data[k]
			for i := ix[0]; i < ix[1]; i++ {
				if !ph.skip[i] && status[i] == 1 {
					if wgt == nil {
						sumx[j] += float64(x[i])
					} else {
						sumx[j] += float64(wgt[i] * x[i])
					}
				}
			}
		}
		ph.sumx = append(ph.sumx, sumx)
	}
}

// LogLike returns the log-likelihood at the given parameter value,
// including the ridge penalty if one is configured.  The 'exact'
// parameter is ignored here.
func (ph *PHReg) LogLike(param statmodel.Parameter, exact bool) float64 {

	coeff := param.GetCoeff()

	ll := ph.breslowLogLike(coeff)

	// Account for L2 weights if present.
	if len(ph.l2wgt) > 0 {
		for j, x := range coeff {
			ll -= ph.l2wgt[j] * x * x
		}
	}

	return ll
}

// linpred fills lp with the linear predictor (including any offset).
func (ph *PHReg) linpred(params, lp []float64) {

	for j, k := range ph.xpos {
		x := ph.data[k]
		for i := range x {
			lp[i] += float64(x[i]) * params[j]
		}
	}

	if ph.offsetpos != -1 {
		for i, v := range ph.data[ph.offsetpos] {
			lp[i] += float64(v)
		}
	}
}

// breslowLogLike returns the log-likelihood value for the
// proportional hazards regression model at the given parameter
// values, using the Breslow method to resolve ties.
func (ph *PHReg) breslowLogLike(params []float64) float64 {

	var wgt []statmodel.Dtype
	if ph.weightpos != -1 {
		wgt = ph.data[ph.weightpos]
	}

	lp := ph.getNslice()
	elp := ph.getNslice()

	ph.linpred(params, lp)

	ql := float64(0)
	for s, ix := range ph.stratumix {

		if ix[1] == ix[0] {
			continue
		}

		// We can add any constant here due to invariance in
		// the partial likelihood.
		mx := floats.Max(lp[ix[0]:ix[1]])
		for i := ix[0]; i < ix[1]; i++ {
			lp[i] -= mx
			elp[i] = math.Exp(lp[i])
		}
		if wgt != nil {
			for i := ix[0]; i < ix[1]; i++ {
				lp[i] *= float64(wgt[i])
				elp[i] *= float64(wgt[i])
			}
		}

		rlp := float64(0)
		for k := 0; k < len(ph.etimes[s]); k++ {

			// Update for new entries
			for _, i := range ph.enter[s][k] {
				rlp += elp[i]
			}

			for _, i := range ph.event[s][k] {
				ql += lp[i]
			}

			if wgt != nil {
				var n float64
				for _, i := range ph.event[s][k] {
					n += float64(wgt[i])
				}
				ql -= n * math.Log(rlp)
			} else {
				ql -= float64(len(ph.event[s][k])) * math.Log(rlp)
			}

			// Update for new exits
			for _, i := range ph.exit[s][k] {
				rlp -= elp[i]
			}
		}
	}

	ph.putNslice(lp)
	ph.putNslice(elp)

	return ql
}

// BaselineCumHaz returns the Breslow (Nelson-Aalen type) estimator of
// the baseline cumulative hazard function for the given stratum.  The
// first returned slice holds the distinct event times, the second the
// cumulative hazard just after each of these times.
func (ph *PHReg) BaselineCumHaz(stratum int, params []float64) ([]float64, []float64) {

	h0 := make([]float64, len(ph.event[stratum]))

	var wgt []statmodel.Dtype
	if ph.weightpos != -1 {
		wgt = ph.data[ph.weightpos]
	}

	lp := make([]float64, ph.NumObs())
	ph.linpred(params, lp)

	w := func(i int) float64 {
		if wgt == nil {
			return math.Exp(lp[i])
		}
		return float64(wgt[i]) * math.Exp(lp[i])
	}

	elp := 0.0
	for k := range ph.etimes[stratum] {

		// Update for new entries
		for _, i := range ph.enter[stratum][k] {
			elp += w(i)
		}

		var d float64
		for _, i := range ph.event[stratum][k] {
			if wgt == nil {
				d++
			} else {
				d += float64(wgt[i])
			}
		}
		h0[k] = d / elp

		// Update for new exits
		for _, i := range ph.exit[stratum][k] {
			elp -= w(i)
		}
	}

	for i := 1; i < len(h0); i++ {
		h0[i] += h0[i-1]
	}

	return ph.etimes[stratum], h0
}

func zero(x []float64) {
	for i := range x {
		x[i] = 0
	}
}

// Score computes the score vector for the proportional hazards
// regression model at the given parameter setting.
func (ph *PHReg) Score(params statmodel.Parameter, score []float64) {

	coeff := params.GetCoeff()
	ph.breslowScore(coeff, score)

	// Account for L2 weights if present.
	if len(ph.l2wgt) > 0 {
		for j, x := range coeff {
			score[j] -= 2 * ph.l2wgt[j] * x
		}
	}
}

// breslowScore calculates the score vector for the proportional
// hazards regression model at the given parameter values, using the
// Breslow approach to resolving ties.
func (ph *PHReg) breslowScore(params, score []float64) {

	zero(score)

	var wgt []statmodel.Dtype
	if ph.weightpos != -1 {
		wgt = ph.data[ph.weightpos]
	}

	lp := ph.getNslice()
	ph.linpred(params, lp)

	for s, ix := range ph.stratumix {

		if ix[1] == ix[0] {
			continue
		}

		for j := 0; j < len(ph.xpos); j++ {
			score[j] += ph.sumx[s][j]
		}

		// We can add any constant here due to invariance in
		// the partial likelihood.
		mx := floats.Max(lp[ix[0]:ix[1]])
		for i := ix[0]; i < ix[1]; i++ {
			lp[i] = math.Exp(lp[i] - mx)
		}
		if wgt != nil {
			for i := ix[0]; i < ix[1]; i++ {
				lp[i] *= float64(wgt[i])
			}
		}

		rlp := float64(0)
		rlpv := make([]float64, len(ph.xpos))
		for q := range ph.etimes[s] {

			// Update for new entries
			for _, i := range ph.enter[s][q] {
				rlp += lp[i]
				for j, k := range ph.xpos {
					rlpv[j] += lp[i] * float64(ph.data[k][i])
				}
			}

			d := float64(len(ph.event[s][q]))
			if wgt != nil {
				d = 0
				for _, i := range ph.event[s][q] {
					d += float64(wgt[i])
				}
			}
			floats.AddScaledTo(score, score, -d/rlp, rlpv)

			// Update for new exits
			for _, i := range ph.exit[s][q] {
				rlp -= lp[i]
				for j, k := range ph.xpos {
					rlpv[j] -= lp[i] * float64(ph.data[k][i])
				}
			}
		}
	}

	ph.putNslice(lp)
}

// Hessian computes the Hessian matrix for the model evaluated at the
// given parameter setting.  The Hessian type parameter is not used
// here.
func (ph *PHReg) Hessian(params statmodel.Parameter, ht statmodel.HessType, hess []float64) {

	coeff := params.GetCoeff()
	ph.breslowHess(coeff, hess)

	// Account for L2 weights if present.
	p := len(coeff)
	if len(ph.l2wgt) > 0 {
		for j := 0; j < len(coeff); j++ {
			k := j*p + j
			hess[k] -= 2 * ph.l2wgt[j]
		}
	}
}

// breslowHess calculates the Hessian matrix for the proportional
// hazards regression model at the given parameter values.
func (ph *PHReg) breslowHess(params []float64, hess []float64) {

	zero(hess)

	var wgt []statmodel.Dtype
	if ph.weightpos != -1 {
		wgt = ph.data[ph.weightpos]
	}

	lp := make([]float64, ph.NumObs())
	ph.linpred(params, lp)

	p := len(ph.xpos)
	d1s := make([]float64, p)
	d2s := make([]float64, p*p)

	for s, ix := range ph.stratumix {

		if ix[1] == ix[0] {
			continue
		}

		// We can add any constant here due to invariance in
		// the partial likelihood.
		mx := floats.Max(lp[ix[0]:ix[1]])
		for i := ix[0]; i < ix[1]; i++ {
			lp[i] = math.Exp(lp[i] - mx)
		}
		if wgt != nil {
			for i := ix[0]; i < ix[1]; i++ {
				lp[i] *= float64(wgt[i])
			}
		}

		rlp := float64(0)

		zero(d1s)
		zero(d2s)

		for k := 0; k < len(ph.etimes[s]); k++ {

			// Update for new entries
			for _, i := range ph.enter[s][k] {

				rlp += lp[i]

				for j1, k1 := range ph.xpos {
					x1 := ph.data[k1]
					d1s[j1] += lp[i] * float64(x1[i])
					for j2 := 0; j2 <= j1; j2++ {
						k2 := ph.xpos[j2]
						x2 := ph.data[k2]
						u := lp[i] * float64(x1[i]*x2[i])
						d2s[j1*p+j2] += u
						if j2 != j1 {
							d2s[j2*p+j1] += u
						}
					}
				}
			}

			d := float64(len(ph.event[s][k]))
			if wgt != nil {
				d = 0
				for _, i := range ph.event[s][k] {
					d += float64(wgt[i])
				}
			}

			jj := 0
			for j1 := 0; j1 < p; j1++ {
				for j2 := 0; j2 < p; j2++ {
					hess[jj] -= d * d2s[j1*p+j2] / rlp
					hess[jj] += d * d1s[j1] * d1s[j2] / (rlp * rlp)
					jj++
				}
			}

			// Update for new exits
			for _, i := range ph.exit[s][k] {

				rlp -= lp[i]
				for j1, k1 := range ph.xpos {
					x1 := ph.data[k1]
					d1s[j1] -= lp[i] * float64(x1[i])
					for j2 := 0; j2 <= j1; j2++ {
						k2 := ph.xpos[j2]
						x2 := ph.data[k2]
						u := lp[i] * float64(x1[i]*x2[i])
						d2s[j1*p+j2] -= u
						if j2 != j1 {
							d2s[j2*p+j1] -= u
						}
					}
				}
			}
		}
	}
}

func negative(x []float64) {
	for i := 0; i < len(x); i++ {
		x[i] *= -1
	}
}

// logFailure writes information that can help diagnose optimization failures.
func (ph *PHReg) logFailure(optrslt *optimize.Result) {

	if !ph.log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	for j, x := range optrslt.X {
		ph.log.Debug("PHReg: current point",
			"variable", ph.varnames[ph.xpos[j]],
			"value", x,
			"gradient", optrslt.Gradient[j])
	}

	time := ph.data[ph.timepos]
	status := ph.data[ph.statuspos]

	for s, ix := range ph.stratumix {

		n := float64(ix[1] - ix[0])
		if n == 0 {
			continue
		}

		// Count the events per stratum
		var e, em float64
		for i := ix[0]; i < ix[1]; i++ {
			e += float64(status[i])
			em += float64(time[i])
		}

		ph.log.Debug("PHReg: stratum",
			"stratum", s+1,
			"size", n,
			"events", e,
			"event_rate", e/n,
			"mean_time", em/n)

		// Get the mean and standard deviation of covariates.
		for j, k := range ph.xpos {
			x := ph.data[k]
			var mn, sd float64
			for i := ix[0]; i < ix[1]; i++ {
				mn += float64(x[i])
			}
			mn /= n
			for i := ix[0]; i < ix[1]; i++ {
				u := float64(x[i]) - mn
				sd += u * u
			}
			sd = math.Sqrt(sd / n)
			ph.log.Debug("PHReg: covariate",
				"stratum", s+1,
				"variable", ph.varnames[ph.xpos[j]],
				"mean", mn,
				"sd", sd)
		}
	}
}

// nearStationary reports whether the unpenalized-scale gradient at x is
// small enough to accept a point where the line search gave up.
func (ph *PHReg) nearStationary(x []float64) bool {
	grad := make([]float64, len(x))
	ph.Score(&PHParameter{x}, grad)
	return floats.Norm(grad, math.Inf(1)) < 1e-3
}

// Fit fits the model to the data.
func (ph *PHReg) Fit() (*PHResults, error) {

	nvar := len(ph.xpos)
	xna := ph.XNames()

	// The null model has nothing to optimize.
	if nvar == 0 {
		ll := ph.breslowLogLike(nil)
		results := &PHResults{
			BaseResults: statmodel.NewBaseResults(ph, ll, []float64{}, xna, []float64{}),
			partialLL:   ll,
		}
		return results, nil
	}

	start := make([]float64, nvar)
	if ph.start != nil {
		copy(start, ph.start)
	}

	p := optimize.Problem{
		Func: func(x []float64) float64 {
			return -ph.LogLike(&PHParameter{x}, false)
		},
		Grad: func(grad, x []float64) {
			ph.Score(&PHParameter{x}, grad)
			negative(grad)
		},
	}

	settings := ph.optsettings
	if settings == nil {
		settings = &optimize.Settings{
			GradientThreshold: 1e-5,
		}
	}

	optrslt, err := optimize.Minimize(p, start, settings, ph.optmethod)
	if err != nil {
		if optrslt == nil || !ph.nearStationary(optrslt.X) {
			var status optimize.Status
			if optrslt != nil {
				status = optrslt.Status
				ph.logFailure(optrslt)
			}
			return nil, &ConvergenceError{Status: status, Err: err}
		}
		ph.log.Debug("PHReg: accepting point after optimizer error", "error", err)
	} else if err = optrslt.Status.Err(); err != nil {
		ph.logFailure(optrslt)
		return nil, &ConvergenceError{Status: optrslt.Status, Err: err}
	}

	if math.IsNaN(optrslt.F) || math.IsInf(optrslt.F, 0) {
		return nil, &ConvergenceError{Status: optrslt.Status}
	}

	param := make([]float64, len(optrslt.X))
	copy(param, optrslt.X)

	vcov, err := statmodel.GetVcov(ph, &PHParameter{param})
	if err != nil {
		ph.log.Warn("PHReg: no standard errors", "error", err, "variables", xna)
		vcov = nil
	}

	results := &PHResults{
		BaseResults: statmodel.NewBaseResults(ph, -optrslt.F, param, xna, vcov),
		partialLL:   ph.breslowLogLike(param),
	}

	return results, nil
}

// PHResults describes the results of a proportional hazards model.
type PHResults struct {
	statmodel.BaseResults

	// The partial log-likelihood without any penalty term
	partialLL float64
}

// PartialLogLike returns the unpenalized Breslow partial log-likelihood
// at the parameter estimates.
func (rslt *PHResults) PartialLogLike() float64 {
	return rslt.partialLL
}

// PartialAIC returns the Akaike information criterion computed from the
// partial log-likelihood: -2*ll + 2*k for k coefficients.
func (rslt *PHResults) PartialAIC() float64 {
	return -2*rslt.partialLL + 2*float64(len(rslt.Params()))
}

// PValueMap returns the Wald p-values keyed by covariate name.  The
// result is nil if the covariance matrix could not be computed.
func (rslt *PHResults) PValueMap() map[string]float64 {
	pv := rslt.PValues()
	if pv == nil {
		return nil
	}
	m := make(map[string]float64, len(pv))
	for j, na := range rslt.Names() {
		m[na] = pv[j]
	}
	return m
}

// HazardRatios returns exp(coefficient) for each covariate.
func (rslt *PHResults) HazardRatios() []float64 {
	var hr []float64
	for _, b := range rslt.Params() {
		hr = append(hr, math.Exp(b))
	}
	return hr
}

// ConfInt returns the lower and upper Wald confidence limits for the
// coefficients at the given level (e.g. 0.95).  Both are nil if there
// are no standard errors.
func (rslt *PHResults) ConfInt(level float64) ([]float64, []float64) {

	se := rslt.StdErr()
	if se == nil {
		return nil, nil
	}

	q := distuv.UnitNormal.Quantile(0.5 + level/2)
	var lcb, ucb []float64
	for j, b := range rslt.Params() {
		lcb = append(lcb, b-q*se[j])
		ucb = append(ucb, b+q*se[j])
	}
	return lcb, ucb
}

// PHModel returns the model that produced these results.
func (rslt *PHResults) PHModel() *PHReg {
	return rslt.Model().(*PHReg)
}

func (rslt *PHResults) summaryStats() (int, int, int, int) {

	ph := rslt.PHModel()
	data := ph.Dataset()

	status := data[ph.statuspos]

	var entry []statmodel.Dtype
	if ph.entrypos != -1 {
		entry = data[ph.entrypos]
	}

	var n, e, pe, ns int
	for _, ix := range ph.stratumix {
		n += ix[1] - ix[0]
		for i := ix[0]; i < ix[1]; i++ {
			e += int(status[i])
		}
		if entry != nil {
			for i := ix[0]; i < ix[1]; i++ {
				if entry[i] > 0 {
					pe++
				}
			}
		}
		ns++
	}

	return n, e, pe, ns
}

// PHSummary summarizes a fitted proportional hazards regression model.
type PHSummary struct {

	// The model
	ph *PHReg

	// The results structure
	results *PHResults

	// Messages that are appended to the table
	messages []string
}

// Summary displays a summary table of the model results.
func (rslt *PHResults) Summary() *PHSummary {

	return &PHSummary{
		ph:      rslt.PHModel(),
		results: rslt,
	}
}

// String returns a string representation of a summary table for the model.
func (phs *PHSummary) String() string {

	n, e, pe, ns := phs.results.summaryStats()

	ph := phs.ph
	sum := &statmodel.SummaryTable{
		Msg: phs.messages,
	}

	sum.Title = "Proportional hazards regression analysis"

	sum.Top = append(sum.Top, fmt.Sprintf("  Sample size: %10d", n))
	sum.Top = append(sum.Top, fmt.Sprintf("  Strata:      %10d", ns))
	sum.Top = append(sum.Top, fmt.Sprintf("  Events:      %10d", e))
	sum.Top = append(sum.Top, "  Ties:           Breslow")
	sum.Top = append(sum.Top, fmt.Sprintf("  Partial AIC: %10.2f", phs.results.PartialAIC()))
	sum.Top = append(sum.Top, fmt.Sprintf("  Penalizer:   %10g", ph.penalizer))

	fs := func(x interface{}, h string) []string {
		y := x.([]string)
		m := len(h)
		for i := range y {
			if len(y[i]) > m {
				m = len(y[i])
			}
		}
		var z []string
		for i := range y {
			c := fmt.Sprintf("%%-%ds", m)
			z = append(z, fmt.Sprintf(c, y[i]))
		}
		return z
	}

	fn := func(x interface{}, h string) []string {
		y := x.([]float64)
		var s []string
		for i := range y {
			s = append(s, fmt.Sprintf("%10.4f", y[i]))
		}
		return s
	}

	hr := phs.results.HazardRatios()

	if phs.results.StdErr() != nil {
		sum.ColNames = []string{"Variable   ", "Coefficient", "SE", "HR", "LCB", "UCB", "Z-score", "P-value"}
		sum.ColFmt = []statmodel.Fmter{fs, fn, fn, fn, fn, fn, fn, fn}

		// Create estimate and CI for the hazard ratio
		lcb, ucb := phs.results.ConfInt(0.95)
		for j := range lcb {
			lcb[j] = math.Exp(lcb[j])
			ucb[j] = math.Exp(ucb[j])
		}
		sum.Cols = []interface{}{phs.results.Names(), phs.results.Params(), phs.results.StdErr(), hr, lcb, ucb,
			phs.results.ZScores(), phs.results.PValues()}
	} else {
		sum.ColNames = []string{"Variable   ", "Coefficient", "HR"}
		sum.ColFmt = []statmodel.Fmter{fs, fn, fn}
		sum.Cols = []interface{}{phs.results.Names(), phs.results.Params(), hr}
		sum.Msg = append(sum.Msg, "Standard errors unavailable: the Hessian could not be inverted")
	}

	if pe > 0 {
		msg := fmt.Sprintf("%d observations have positive entry times", pe)
		sum.Msg = append(sum.Msg, msg)
	}

	if ph.skipEarlyCensor > 0 {
		msg := fmt.Sprintf("%d observations dropped for being censored before the first event", ph.skipEarlyCensor)
		sum.Msg = append(sum.Msg, msg)
	}

	return sum.String()
}
