package selection

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ploginovic/Uveitis-IMIDs/statmodel"
)

type subsetFit struct {
	started bool
	subset  []string
	dropped []string
	model   Model
	err     error
}

// EliminateByAIC performs backward elimination by partial AIC.
//
// The full model is fit first.  In each round, every subset obtained by
// dropping one candidate is fit together with the mandatory features,
// and the subset with the lowest AIC becomes the new best model if its
// AIC plus cfg.AICMargin is below the current best AIC.  Otherwise the
// search stops.  The fits of a round run on up to cfg.Workers
// goroutines, and are reduced in enumeration order.
//
// The first failing fit of a round, in enumeration order, aborts the
// search with a *FitError.  The context is checked before each round.
func EliminateByAIC(ctx context.Context, fitter Fitter, data *statmodel.Dataset, durationCol, eventCol string, cfg *Config) (*Result, error) {

	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	mandatory, features := partition(data.Names(), durationCol, eventCol, cfg.mandatory())

	res := &Result{Mandatory: mandatory}

	all := join(features, mandatory)
	best, err := fitter.Fit(ctx, data, durationCol, eventCol, all, 0)
	res.Fits++
	if err == nil && best == nil {
		err = fmt.Errorf("fitter returned no model")
	}
	if err != nil {
		return nil, &FitError{Method: MethodAIC, Round: 0, Features: all, Err: err}
	}
	bestAIC := best.PartialAIC()
	if math.IsNaN(bestAIC) {
		return nil, &FitError{Method: MethodAIC, Round: 0, Features: all, Err: fmt.Errorf("partial AIC is NaN")}
	}
	bestFeatures := all

	cfg.report(Event{Kind: SubsetFitted, Method: MethodAIC, Round: 0, Features: all, Score: bestAIC})

	for len(features) > 0 {

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res.Rounds++
		round := res.Rounds
		cfg.report(Event{Kind: RoundStarted, Method: MethodAIC, Round: round, Features: features})

		fits := fitRound(ctx, fitter, data, durationCol, eventCol, features, mandatory, cfg.Workers)

		ibest := -1
		curAIC := math.Inf(1)
		for i, sf := range fits {
			if !sf.started {
				break
			}
			fs := join(sf.subset, mandatory)
			if sf.err == nil && sf.model == nil {
				sf.err = fmt.Errorf("fitter returned no model")
			}
			if sf.err != nil {
				return nil, &FitError{Method: MethodAIC, Round: round, Features: fs, Err: sf.err}
			}
			res.Fits++
			aic := sf.model.PartialAIC()
			if math.IsNaN(aic) {
				return nil, &FitError{Method: MethodAIC, Round: round, Features: fs, Err: fmt.Errorf("partial AIC is NaN")}
			}
			cfg.report(Event{Kind: SubsetFitted, Method: MethodAIC, Round: round, Features: fs, Score: aic})

			if aic < curAIC || (cfg.TieBreak == TieLast && aic == curAIC) {
				curAIC = aic
				ibest = i
			}
		}

		if ibest == -1 || !(curAIC+cfg.AICMargin < bestAIC) {
			cfg.report(Event{Kind: Stopped, Method: MethodAIC, Round: round, Features: bestFeatures, Score: curAIC})
			break
		}

		sf := fits[ibest]
		features = sf.subset
		bestFeatures = join(features, mandatory)
		bestAIC = curAIC
		best = sf.model
		res.Removed = append(res.Removed, sf.dropped...)

		var dropped string
		if len(sf.dropped) == 1 {
			dropped = sf.dropped[0]
		}
		cfg.report(Event{Kind: Accepted, Method: MethodAIC, Round: round, Features: bestFeatures, Score: bestAIC, Feature: dropped})

		if len(features) == 0 {
			cfg.report(Event{Kind: Stopped, Method: MethodAIC, Round: round, Features: bestFeatures, Score: bestAIC})
		}
	}

	if res.Rounds == 0 {
		cfg.report(Event{Kind: Stopped, Method: MethodAIC, Features: bestFeatures, Score: bestAIC})
	}

	res.Features = bestFeatures
	res.Model = best

	return res, nil
}

// fitRound fits every drop-one subset of features, each joined with the
// mandatory features.  The returned slice is in enumeration order.  Once
// a fit fails no further subsets are started, so every subset before a
// failed one has been fit.
func fitRound(ctx context.Context, fitter Fitter, data *statmodel.Dataset, durationCol, eventCol string,
	features, mandatory []string, workers int) []subsetFit {

	subsets := NewSubsets(features, len(features)-1)
	fits := make([]subsetFit, subsets.Len())

	var failed atomic.Bool
	var g errgroup.Group
	g.SetLimit(workers)

	for i := 0; subsets.Next(); i++ {

		if failed.Load() {
			break
		}

		fits[i].started = true
		fits[i].subset = subsets.Subset()
		fits[i].dropped = subsets.Dropped()
		fs := join(fits[i].subset, mandatory)

		i := i
		g.Go(func() error {
			m, err := fitter.Fit(ctx, data, durationCol, eventCol, fs, 0)
			if err != nil {
				fits[i].err = err
				failed.Store(true)
				return nil
			}
			fits[i].model = m
			return nil
		})
	}

	// Errors are recorded per subset.
	_ = g.Wait()

	return fits
}
