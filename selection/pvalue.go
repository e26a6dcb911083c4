package selection

import (
	"context"
	"fmt"
	"math"

	"github.com/ploginovic/Uveitis-IMIDs/statmodel"
)

// EliminateByPValue performs backward elimination by Wald p-value.
//
// In each round the mandatory and remaining candidate features are fit
// with ridge penalty cfg.Penalizer.  The candidate with the largest
// p-value is removed if that p-value is at least cfg.SignificanceLevel;
// ties go to the candidate listed first.  Otherwise the search stops.
// The surviving features are then refit according to cfg.FinalRefit.
//
// A candidate without a finite p-value aborts the search with a
// *FitError wrapping a *FitInstabilityError.  The context is checked
// before each round.
func EliminateByPValue(ctx context.Context, fitter Fitter, data *statmodel.Dataset, durationCol, eventCol string, cfg *Config) (*Result, error) {

	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	mandatory, features := partition(data.Names(), durationCol, eventCol, cfg.mandatory())

	res := &Result{Mandatory: mandatory}

	all := join(mandatory, features)

	stopped := false
	for len(features) > 0 && !stopped {

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res.Rounds++
		round := res.Rounds
		cfg.report(Event{Kind: RoundStarted, Method: MethodPValue, Round: round, Features: features})

		model, err := fitter.Fit(ctx, data, durationCol, eventCol, all, cfg.Penalizer)
		res.Fits++
		if err == nil && model == nil {
			err = fmt.Errorf("fitter returned no model")
		}
		if err != nil {
			return nil, &FitError{Method: MethodPValue, Round: round, Features: all, Err: err}
		}

		worst, maxp, err := largestPValue(model.PValues(), features)
		if err != nil {
			return nil, &FitError{Method: MethodPValue, Round: round, Features: all, Err: err}
		}
		cfg.report(Event{Kind: SubsetFitted, Method: MethodPValue, Round: round, Features: all, Score: maxp})

		if maxp < cfg.SignificanceLevel {
			stopped = true
			continue
		}

		features = without(features, worst)
		all = without(all, worst)
		res.Removed = append(res.Removed, worst)
		cfg.report(Event{Kind: Removed, Method: MethodPValue, Round: round, Features: all, Score: maxp, Feature: worst})
	}

	penalizer := 0.0
	if cfg.FinalRefit == RefitPenalized {
		penalizer = cfg.Penalizer
	}

	final, err := fitter.Fit(ctx, data, durationCol, eventCol, all, penalizer)
	res.Fits++
	if err == nil && final == nil {
		err = fmt.Errorf("fitter returned no model")
	}
	if err != nil {
		return nil, &FitError{Method: MethodPValue, Round: res.Rounds + 1, Features: all, Err: err}
	}

	cfg.report(Event{Kind: Stopped, Method: MethodPValue, Round: res.Rounds, Features: all, Score: final.PartialAIC()})

	res.Features = all
	res.Model = final

	return res, nil
}

// largestPValue returns the candidate with the largest p-value, taking
// the first one listed on ties.
func largestPValue(pv map[string]float64, candidates []string) (string, float64, error) {

	worst := ""
	maxp := math.Inf(-1)
	for _, f := range candidates {
		p, ok := pv[f]
		if !ok || math.IsNaN(p) || p < 0 || p > 1 {
			return "", 0, &FitInstabilityError{Feature: f}
		}
		if p > maxp {
			worst = f
			maxp = p
		}
	}

	return worst, maxp, nil
}
