// Package calibration assesses how well a fitted proportional hazards
// model predicts the probability of an event by a fixed time.
//
// The predicted probabilities are related to the observed outcomes by a
// flexible auxiliary Cox model, fit on a restricted cubic spline of the
// complementary log-log transformed predictions.  The smoothed observed
// probabilities from that model are compared with the predictions to
// give the ICI, E50 and E90 summaries of Austin et al.
// (https://doi.org/10.1002/sim.8570).
package calibration

import (
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"

	"github.com/ploginovic/Uveitis-IMIDs/duration"
	"github.com/ploginovic/Uveitis-IMIDs/statmodel"
)

// Config holds calibration settings.
type Config struct {

	// Knots is the number of spline knots, from 3 to 7.
	Knots int

	// Predicted probabilities are clipped to [ClipLow, ClipHigh].
	ClipLow  float64
	ClipHigh float64

	// The calibration curve is evaluated on GridSize points up to
	// AxisMax.
	AxisMax  float64
	GridSize int

	// Penalizer is the ridge penalty of the auxiliary model.
	Penalizer float64

	Log *slog.Logger
}

// DefaultConfig returns the default calibration settings.
func DefaultConfig() *Config {
	return &Config{
		Knots:     3,
		ClipLow:   1e-10,
		ClipHigh:  0.2 - 1e-10,
		AxisMax:   0.2,
		GridSize:  100,
		Penalizer: 1e-6,
	}
}

func (c *Config) validate() error {
	switch {
	case !(c.ClipLow > 0 && c.ClipLow < c.ClipHigh && c.ClipHigh < 1):
		return fmt.Errorf("calibration: invalid clip bounds [%v, %v]", c.ClipLow, c.ClipHigh)
	case !(c.AxisMax > 0 && c.AxisMax <= 1):
		return fmt.Errorf("calibration: invalid axis maximum %v", c.AxisMax)
	case c.GridSize < 2:
		return fmt.Errorf("calibration: grid size must be at least 2")
	case c.Penalizer < 0:
		return fmt.Errorf("calibration: penalizer must be non-negative")
	}
	return nil
}

// Result holds the calibration of a model at one time horizon.
type Result struct {

	// T0 is the time horizon.
	T0 float64

	// Predicted holds the clipped model predictions of P(T <= T0), and
	// Observed the smoothed observed probabilities, for each row.
	Predicted []float64
	Observed  []float64

	// ICI is the mean, E50 the median and E90 the 90th percentile of
	// the absolute differences between Observed and Predicted.
	ICI float64
	E50 float64
	E90 float64

	// The calibration curve.
	GridPredicted []float64
	GridObserved  []float64

	// Knots of the spline, on the complementary log-log scale.
	Knots []float64

	axisMax float64
}

// ccl is the complementary log-log transform.
func ccl(p float64) float64 {
	return math.Log(-math.Log(1 - p))
}

func clip(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// Calibrate compares the predictions of a fitted model with the observed
// outcomes in data at time t0.  The data must hold the covariates and
// outcome columns of the model; it may be the training data or an
// independent sample.
func Calibrate(rslt *duration.PHResults, data *statmodel.Dataset, t0 float64, cfg *Config) (*Result, error) {

	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	log := cfg.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if !(t0 > 0) {
		return nil, fmt.Errorf("calibration: time horizon must be positive, got %v", t0)
	}

	sp, err := rslt.PredictSurvival(data, t0)
	if err != nil {
		return nil, err
	}
	if len(sp) < 2 {
		return nil, fmt.Errorf("calibration: at least two observations are needed")
	}

	ph := rslt.PHModel()
	tvar, svar := ph.TimeVar(), ph.StatusVar()
	time, ok := data.Column(tvar)
	if !ok {
		return nil, &duration.DataPreparationError{Column: tvar, Reason: "not found in calibration data"}
	}
	status, ok := data.Column(svar)
	if !ok {
		return nil, &duration.DataPreparationError{Column: svar, Reason: "not found in calibration data"}
	}

	pred := make([]float64, len(sp))
	cc := make([]float64, len(sp))
	for i, s := range sp {
		pred[i] = clip(1-s, cfg.ClipLow, cfg.ClipHigh)
		cc[i] = ccl(pred[i])
	}

	knots, err := placeKnots(cc, cfg.Knots)
	if err != nil {
		return nil, err
	}
	spl := rcs{knots: knots}
	if len(knots) < cfg.Knots {
		log.Debug("calibration knots coincide", "requested", cfg.Knots, "distinct", len(knots))
	}

	aux, names, err := fitAux(spl, cc, time, status, tvar, svar, cfg)
	if err != nil {
		return nil, fmt.Errorf("calibration: auxiliary model: %w", err)
	}

	obs, err := smoothed(aux, spl, names, cc, t0)
	if err != nil {
		return nil, err
	}

	delta := make([]float64, len(obs))
	for i := range obs {
		delta[i] = math.Abs(obs[i] - pred[i])
	}

	res := &Result{
		T0:        t0,
		Predicted: pred,
		Observed:  obs,
		Knots:     knots,
		axisMax:   cfg.AxisMax,
	}

	if res.ICI, err = stats.Mean(delta); err != nil {
		return nil, err
	}
	if res.E50, err = stats.Median(delta); err != nil {
		return nil, err
	}
	if res.E90, err = stats.Percentile(delta, 90); err != nil {
		return nil, err
	}

	lo := clip(floats.Min(pred)-0.01, 0, cfg.AxisMax)
	res.GridPredicted = floats.Span(make([]float64, cfg.GridSize), lo, cfg.AxisMax)
	gc := make([]float64, cfg.GridSize)
	for i, p := range res.GridPredicted {
		gc[i] = ccl(clip(p, cfg.ClipLow, cfg.ClipHigh))
	}
	if res.GridObserved, err = smoothed(aux, spl, names, gc, t0); err != nil {
		return nil, err
	}

	log.Info("calibration", "t0", t0, "n", len(pred), "ICI", res.ICI, "E50", res.E50, "E90", res.E90)

	return res, nil
}

func basisNames(spl rcs) []string {
	names := []string{"ccl"}
	for j := 1; j < spl.dim(); j++ {
		names = append(names, fmt.Sprintf("ccl_s%d", j))
	}
	return names
}

// fitAux fits the auxiliary model of the outcome on the spline of the
// transformed predictions.
func fitAux(spl rcs, cc, time, status []float64, tvar, svar string, cfg *Config) (*duration.PHResults, []string, error) {

	names := basisNames(spl)
	cols := append([][]float64{time, status}, spl.basis(cc)...)
	da, err := statmodel.NewDataset(cols, append([]string{tvar, svar}, names...))
	if err != nil {
		return nil, nil, err
	}

	c := duration.DefaultPHRegConfig()
	c.Penalizer = cfg.Penalizer
	c.Log = cfg.Log

	ph, err := duration.NewPHReg(da, tvar, svar, names, c)
	if err != nil {
		return nil, nil, err
	}

	rslt, err := ph.Fit()
	if err != nil {
		return nil, nil, err
	}

	return rslt, names, nil
}

// smoothed returns the auxiliary model's probability of an event by t0
// at each transformed prediction.
func smoothed(aux *duration.PHResults, spl rcs, names []string, cc []float64, t0 float64) ([]float64, error) {

	da, err := statmodel.NewDataset(spl.basis(cc), names)
	if err != nil {
		return nil, err
	}

	sp, err := aux.PredictSurvival(da, t0)
	if err != nil {
		return nil, err
	}

	for i := range sp {
		sp[i] = 1 - sp[i]
	}

	return sp, nil
}
