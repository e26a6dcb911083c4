// Package config loads the settings of the survsel command from a YAML
// file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/ploginovic/Uveitis-IMIDs/calibration"
	"github.com/ploginovic/Uveitis-IMIDs/cohort"
	"github.com/ploginovic/Uveitis-IMIDs/riskscore"
	"github.com/ploginovic/Uveitis-IMIDs/selection"
)

// Config is the complete command configuration.
type Config struct {
	Cohort      CohortConfig      `yaml:"cohort"`
	Selection   SelectionConfig   `yaml:"selection"`
	Calibration CalibrationConfig `yaml:"calibration"`
	RiskScore   RiskScoreConfig   `yaml:"riskscore"`

	// OutputDir receives summaries, saved models and plots.
	OutputDir string `yaml:"output_dir"`

	// LogLevel is debug, info, warn or error; LogFormat is text or json.
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// MetricsFile, if set, receives Prometheus metrics at exit.
	MetricsFile string `yaml:"metrics_file"`
}

// CohortConfig locates the cohort and its analysis columns.  Empty
// column names are derived from Disease.
type CohortConfig struct {
	Path       string   `yaml:"path"`
	Sheet      string   `yaml:"sheet"`
	Disease    string   `yaml:"disease"`
	Score      string   `yaml:"score"`
	Event      string   `yaml:"event"`
	Duration   string   `yaml:"duration"`
	Age        string   `yaml:"age"`
	Extra      []string `yaml:"extra"`
	IncludeCol string   `yaml:"include_col"`
	ExcludeCol string   `yaml:"exclude_col"`
	Dummies    string   `yaml:"dummies"`
}

// SelectionConfig holds the elimination settings.
type SelectionConfig struct {
	SignificanceLevel   float64 `yaml:"significance_level"`
	Penalizer           float64 `yaml:"penalizer"`
	AICMargin           float64 `yaml:"aic_margin"`
	Workers             int     `yaml:"workers"`
	TieBreak            string  `yaml:"tie_break"`
	FinalRefit          string  `yaml:"final_refit"`
	AssumptionThreshold float64 `yaml:"assumption_threshold"`
}

// CalibrationConfig holds the calibration settings.
type CalibrationConfig struct {
	Horizons []float64 `yaml:"horizons"`
	Knots    int       `yaml:"knots"`
	AxisMax  float64   `yaml:"axis_max"`
}

// RiskScoreConfig holds the risk score comparison settings.
type RiskScoreConfig struct {
	UveitisCol string  `yaml:"uveitis_col"`
	Multiplier float64 `yaml:"multiplier"`
	XMax       float64 `yaml:"xmax"`
}

// Default returns the default configuration.
func Default() Config {
	sel := selection.DefaultConfig()
	cal := calibration.DefaultConfig()
	return Config{
		Cohort: CohortConfig{
			Age:        "age_uve_years",
			Extra:      []string{"Sex_Female"},
			IncludeCol: "uve_any",
		},
		Selection: SelectionConfig{
			SignificanceLevel:   sel.SignificanceLevel,
			Penalizer:           sel.Penalizer,
			AICMargin:           sel.AICMargin,
			Workers:             sel.Workers,
			TieBreak:            "first",
			FinalRefit:          "unpenalized",
			AssumptionThreshold: 0.05,
		},
		Calibration: CalibrationConfig{
			Horizons: []float64{5, 10, 20},
			Knots:    cal.Knots,
			AxisMax:  cal.AxisMax,
		},
		RiskScore: RiskScoreConfig{
			UveitisCol: "uve_any",
			Multiplier: riskscore.DefaultMultiplier,
			XMax:       8,
		},
		OutputDir: "output",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load returns the default configuration, overridden by the YAML file at
// path (if not empty) and then by SURVSEL_* environment variables.
// Variables are also read from envFile, or from .env in the working
// directory if envFile is empty; they do not replace variables already
// set in the environment.
func Load(path, envFile string) (Config, error) {

	cfg := Default()

	if err := loadEnv(envFile); err != nil {
		return cfg, err
	}

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	if err := fromEnv(&cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func loadEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("config: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: .env: %w", err)
	}
	return nil
}

func fromEnv(cfg *Config) error {

	if v := os.Getenv("SURVSEL_OUTPUT_DIR"); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv("SURVSEL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SURVSEL_METRICS_FILE"); v != "" {
		cfg.MetricsFile = v
	}
	if v := os.Getenv("SURVSEL_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: SURVSEL_WORKERS: %w", err)
		}
		cfg.Selection.Workers = n
	}

	return nil
}

// Validate checks the settings.
func (c Config) Validate() error {

	s := c.Selection
	switch {
	case !(s.SignificanceLevel > 0 && s.SignificanceLevel < 1):
		return fmt.Errorf("config: significance_level must be in (0, 1), got %v", s.SignificanceLevel)
	case !(s.Penalizer >= 0):
		return fmt.Errorf("config: penalizer must be non-negative, got %v", s.Penalizer)
	case !(s.AICMargin >= 0):
		return fmt.Errorf("config: aic_margin must be non-negative, got %v", s.AICMargin)
	case s.Workers < 1:
		return fmt.Errorf("config: workers must be at least 1, got %d", s.Workers)
	case !(s.AssumptionThreshold > 0 && s.AssumptionThreshold < 1):
		return fmt.Errorf("config: assumption_threshold must be in (0, 1), got %v", s.AssumptionThreshold)
	}

	if _, err := c.Selection.Engine(); err != nil {
		return err
	}

	for _, h := range c.Calibration.Horizons {
		if !(h > 0) {
			return fmt.Errorf("config: calibration horizons must be positive, got %v", h)
		}
	}

	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("config: log_format must be text or json, got '%s'", c.LogFormat)
	}

	return nil
}

// Engine returns the elimination settings.
func (s SelectionConfig) Engine() (*selection.Config, error) {

	cfg := selection.DefaultConfig()
	cfg.SignificanceLevel = s.SignificanceLevel
	cfg.Penalizer = s.Penalizer
	cfg.AICMargin = s.AICMargin
	cfg.Workers = s.Workers

	switch strings.ToLower(s.TieBreak) {
	case "", "first":
		cfg.TieBreak = selection.TieFirst
	case "last":
		cfg.TieBreak = selection.TieLast
	default:
		return nil, fmt.Errorf("config: tie_break must be first or last, got '%s'", s.TieBreak)
	}

	switch strings.ToLower(s.FinalRefit) {
	case "", "unpenalized":
		cfg.FinalRefit = selection.RefitUnpenalized
	case "penalized":
		cfg.FinalRefit = selection.RefitPenalized
	default:
		return nil, fmt.Errorf("config: final_refit must be unpenalized or penalized, got '%s'", s.FinalRefit)
	}

	return cfg, nil
}

// Engine returns the calibration settings.
func (c CalibrationConfig) Engine() *calibration.Config {
	cfg := calibration.DefaultConfig()
	if c.Knots != 0 {
		cfg.Knots = c.Knots
	}
	if c.AxisMax != 0 {
		cfg.AxisMax = c.AxisMax
		cfg.ClipHigh = c.AxisMax - 1e-10
	}
	return cfg
}

// PrepareSpec returns the cohort specification.  Outcome columns that
// are not set are derived from the disease name.
func (c CohortConfig) PrepareSpec() (cohort.PrepareSpec, error) {

	if c.Disease == "" && (c.Event == "" || c.Duration == "") {
		return cohort.PrepareSpec{}, fmt.Errorf("config: cohort needs a disease, or event and duration columns")
	}
	if c.Score == "" {
		return cohort.PrepareSpec{}, fmt.Errorf("config: cohort score column is not set")
	}

	ps := cohort.DefaultPrepareSpec(c.Disease, c.Score)
	if c.Event != "" {
		ps.Event = c.Event
	}
	if c.Duration != "" {
		ps.Duration = c.Duration
	}
	if c.Age != "" {
		ps.Age = c.Age
	}
	ps.Extra = c.Extra
	ps.IncludeCol = c.IncludeCol
	if c.ExcludeCol != "" {
		ps.ExcludeCol = c.ExcludeCol
	} else if c.Disease == "" {
		ps.ExcludeCol = ""
	}

	return ps, nil
}

// ParseLevel parses a log level name.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: log_level: %w", err)
	}
	return l, nil
}
