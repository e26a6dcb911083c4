package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ploginovic/Uveitis-IMIDs/duration"
	"github.com/ploginovic/Uveitis-IMIDs/pipeline"
	"github.com/ploginovic/Uveitis-IMIDs/selection"
)

func runSelect(cmd *cobra.Command, args []string) error {

	f, ps, err := app.cohortFrame()
	if err != nil {
		return err
	}

	engine, err := app.cfg.Selection.Engine()
	if err != nil {
		return err
	}
	engine.Reporter = selection.Reporters(selection.LogReporter(app.log), app.metrics.Reporter())

	pc := duration.DefaultPHRegConfig()
	pc.Log = app.log
	fitter := app.metrics.InstrumentFitter(&selection.PHFitter{Config: pc})

	sel, err := pipeline.PrepareAndSave(cmd.Context(), f, pipeline.SelectSpec{
		Name:                app.modelName(ps),
		Prepare:             ps,
		Selection:           engine,
		OutputDir:           app.outputPath("finalised_models"),
		AssumptionThreshold: app.cfg.Selection.AssumptionThreshold,
		Log:                 app.log,
	}, fitter, time.Now())
	if err != nil {
		return err
	}

	sm := sel.Saved
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Run %s\n", sm.RunID)
	fmt.Fprintf(w, "Features: %s\n", strings.Join(sm.Features, ", "))
	fmt.Fprintf(w, "Removed:  %s\n", strings.Join(sm.Removed, ", "))
	fmt.Fprintf(w, "Partial AIC: %.2f\n", sm.PartialAIC)
	if pm, ok := sel.AIC.Model.(*selection.PHModel); ok {
		fmt.Fprintln(w, pm.Results.Summary().String())
	}
	if sm.Assumptions != nil && !sm.Assumptions.OK() {
		fmt.Fprintf(w, "Proportional hazards violated at %v: %s\n",
			sm.Assumptions.Threshold, strings.Join(sm.Assumptions.Violations, ", "))
	}
	fmt.Fprintf(w, "Saved %s\n", sm.Path)

	return nil
}

func runFit(cmd *cobra.Command, args []string) error {

	f, ps, err := app.cohortFrame()
	if err != nil {
		return err
	}

	res, err := pipeline.FitAndSummarize(f, pipeline.FitSpec{
		Prepare:     ps,
		DummyColumn: app.cfg.Cohort.Dummies,
		SaveSummary: true,
		OutputDir:   app.outputPath("cph_summaries"),
		Log:         app.log,
	}, time.Now())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, res.Results.Summary().String())
	if c, err := res.Results.Concordance(); err == nil {
		fmt.Fprintf(w, "Concordance: %.3f\n", c)
	}
	fmt.Fprintf(w, "Saved %s\n", res.SummaryPath)

	return nil
}
