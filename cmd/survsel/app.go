package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ploginovic/Uveitis-IMIDs/cohort"
	"github.com/ploginovic/Uveitis-IMIDs/internal/config"
	"github.com/ploginovic/Uveitis-IMIDs/internal/metrics"
)

// state is shared by the commands once setup has run.
type state struct {
	cfg     config.Config
	log     *slog.Logger
	reg     *prometheus.Registry
	metrics *metrics.Elimination
}

var app state

func setup(cmd *cobra.Command, args []string) error {

	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}

	fl := cmd.Flags()
	if fl.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if fl.Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if fl.Changed("metrics-file") {
		cfg.MetricsFile = metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}

	app.cfg = cfg
	app.log = slog.New(h).With("command", cmd.Name())
	app.reg = prometheus.NewRegistry()
	app.metrics = metrics.New(app.reg)

	return nil
}

func (s *state) flush() error {
	if s.cfg.MetricsFile == "" || s.reg == nil {
		return nil
	}
	if err := metrics.WriteTextfile(s.reg, s.cfg.MetricsFile); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	s.log.Debug("wrote metrics", "path", s.cfg.MetricsFile)
	return nil
}

// cohortFrame reads the configured cohort file.
func (s *state) cohortFrame() (*cohort.Frame, cohort.PrepareSpec, error) {

	c := s.cfg.Cohort
	ps, err := c.PrepareSpec()
	if err != nil {
		return nil, ps, err
	}
	f, err := s.readCohort()
	return f, ps, err
}

func (s *state) readCohort() (*cohort.Frame, error) {

	c := s.cfg.Cohort
	if c.Path == "" {
		return nil, fmt.Errorf("no cohort file configured")
	}

	var f *cohort.Frame
	var err error
	if c.Sheet != "" {
		f, err = cohort.ReadXLSX(c.Path, c.Sheet)
	} else {
		f, err = cohort.ReadFile(c.Path)
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("read cohort", "path", c.Path, "rows", f.NumRows(), "columns", len(f.Names()))

	return f, nil
}

// modelName is the stem of output file names.
func (s *state) modelName(ps cohort.PrepareSpec) string {
	if s.cfg.Cohort.Disease != "" {
		return cohort.DiseaseName(s.cfg.Cohort.Disease)
	}
	return ps.Event
}

func (s *state) outputPath(sub ...string) string {
	return filepath.Join(append([]string{s.cfg.OutputDir}, sub...)...)
}
