package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ploginovic/Uveitis-IMIDs/calibration"
	"github.com/ploginovic/Uveitis-IMIDs/pipeline"
)

func runCalibrate(cmd *cobra.Command, args []string) error {

	sm, err := pipeline.LoadModel(modelPath)
	if err != nil {
		return err
	}

	f, ps, err := app.cohortFrame()
	if err != nil {
		return err
	}
	data, err := sm.Dataset(f, ps)
	if err != nil {
		return err
	}

	rslt, err := sm.Refit(data, nil)
	if err != nil {
		return err
	}
	app.log.Info("refitted saved model", "model", sm.Path, "run_id", sm.RunID, "n", data.NumObs())

	hz := horizons
	if len(hz) == 0 {
		hz = app.cfg.Calibration.Horizons
	}
	cc := app.cfg.Calibration.Engine()
	cc.Log = app.log

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%-8s %8s %8s %8s\n", "horizon", "ICI", "E50", "E90")
	for _, t0 := range hz {
		res, err := calibration.Calibrate(rslt, data, t0, cc)
		if err != nil {
			return fmt.Errorf("calibration at %v years: %w", t0, err)
		}

		h := strconv.FormatFloat(t0, 'f', -1, 64)
		fname := app.outputPath("calibration", fmt.Sprintf("%s_calibration_%sy.png", sm.Name, h))
		if err := mkdirFor(fname); err != nil {
			return err
		}
		if err := res.Save(fname, sm.Event, 6, 6); err != nil {
			return err
		}
		fmt.Fprintf(w, "%-8s %8.4f %8.4f %8.4f\n", h, res.ICI, res.E50, res.E90)
	}

	return nil
}
