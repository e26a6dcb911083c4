package main

import (
	"github.com/spf13/cobra"
)

var (
	configPath  string
	envFile     string
	logLevel    string
	logFormat   string
	metricsFile string

	modelPath string
	horizons  []float64
	groupCol  string

	rootCmd = &cobra.Command{
		Use:   "survsel",
		Short: "Survival model selection and reporting for disease cohorts",
		Long: `survsel prepares a disease cohort, selects Cox model covariates by
backward elimination, and reports on the selected models.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.flush()
		},
	}

	selectCmd = &cobra.Command{
		Use:   "select",
		Short: "Select covariates by p-value and AIC elimination and save the final model",
		RunE:  runSelect, // cmd_select.go
	}

	fitCmd = &cobra.Command{
		Use:   "fit",
		Short: "Fit a Cox model on all cohort covariates and export its summary",
		RunE:  runFit, // cmd_select.go
	}

	calibrateCmd = &cobra.Command{
		Use:   "calibrate",
		Short: "Refit a saved model and plot its calibration at fixed horizons",
		RunE:  runCalibrate, // cmd_calibrate.go
	}

	grsCmd = &cobra.Command{
		Use:   "grs",
		Short: "Compare the risk score between disease and uveitis subgroups",
		RunE:  runGRS, // cmd_grs.go
	}

	kmCmd = &cobra.Command{
		Use:   "km",
		Short: "Plot Kaplan-Meier curves of the cohort outcome",
		RunE:  runKM, // cmd_grs.go
	}
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML configuration file")
	pf.StringVar(&envFile, "env-file", "", "file of SURVSEL_* variables (default .env)")
	pf.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&logFormat, "log-format", "", "text or json")
	pf.StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file at exit")

	calibrateCmd.Flags().StringVar(&modelPath, "model", "", "saved model from the select command")
	calibrateCmd.Flags().Float64SliceVar(&horizons, "horizon", nil, "time horizons in years (default from config)")
	_ = calibrateCmd.MarkFlagRequired("model")

	kmCmd.Flags().StringVar(&groupCol, "group", "", "column defining the curves")

	rootCmd.AddCommand(selectCmd, fitCmd, calibrateCmd, grsCmd, kmCmd)
}
