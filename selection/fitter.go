package selection

import (
	"context"

	"gonum.org/v1/gonum/optimize"

	"github.com/ploginovic/Uveitis-IMIDs/duration"
	"github.com/ploginovic/Uveitis-IMIDs/statmodel"
)

// Model is a fitted proportional hazards model.
type Model interface {

	// PartialAIC is -2 times the partial log-likelihood plus twice the
	// number of coefficients.
	PartialAIC() float64

	// PValues maps covariate names to Wald p-values.  It may be nil or
	// incomplete if the fit was unstable.
	PValues() map[string]float64

	// Features lists the covariates, in fitting order.
	Features() []string
}

// Fitter fits proportional hazards models.  Fit may be called
// concurrently; implementations must not modify data.
type Fitter interface {
	Fit(ctx context.Context, data *statmodel.Dataset, durationCol, eventCol string, features []string, penalizer float64) (Model, error)
}

// PHFitter fits Cox models with duration.PHReg.
type PHFitter struct {

	// Config is copied for each fit; Start and Penalizer are
	// overridden.  If nil, duration.DefaultPHRegConfig is used.  A
	// Converger in Config.OptSettings is shared between fits, so set
	// one only if Workers is 1.
	Config *duration.PHRegConfig

	// NewMethod returns the optimizer for one fit.  If nil, BFGS with a
	// More-Thuente line search is used.
	NewMethod func() optimize.Method
}

// Fit implements Fitter.
func (f *PHFitter) Fit(ctx context.Context, data *statmodel.Dataset, durationCol, eventCol string, features []string, penalizer float64) (Model, error) {

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := duration.DefaultPHRegConfig()
	if f.Config != nil {
		cc := *f.Config
		c = &cc
	}
	c.Start = nil
	c.Penalizer = penalizer
	if f.NewMethod != nil {
		c.OptMethod = f.NewMethod()
	} else {
		c.OptMethod = &optimize.BFGS{Linesearcher: &optimize.MoreThuente{}}
	}

	ph, err := duration.NewPHReg(data, durationCol, eventCol, features, c)
	if err != nil {
		return nil, err
	}

	rslt, err := ph.Fit()
	if err != nil {
		return nil, err
	}

	return &PHModel{
		Results:  rslt,
		features: append([]string(nil), features...),
	}, nil
}

// PHModel is a Model backed by a fitted duration.PHReg.
type PHModel struct {
	Results  *duration.PHResults
	features []string
}

// PartialAIC implements Model.
func (m *PHModel) PartialAIC() float64 {
	return m.Results.PartialAIC()
}

// PValues implements Model.
func (m *PHModel) PValues() map[string]float64 {
	return m.Results.PValueMap()
}

// Features implements Model.
func (m *PHModel) Features() []string {
	return m.features
}
