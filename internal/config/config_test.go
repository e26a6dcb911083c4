package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ploginovic/Uveitis-IMIDs/selection"
)

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {

	cfg := Default()
	require.NoError(t, cfg.Validate())

	eng, err := cfg.Selection.Engine()
	require.NoError(t, err)
	assert.Equal(t, 0.05, eng.SignificanceLevel)
	assert.Equal(t, 0.002, eng.Penalizer)
	assert.Equal(t, 2.0, eng.AICMargin)
	assert.Equal(t, selection.TieFirst, eng.TieBreak)
	assert.Equal(t, selection.RefitUnpenalized, eng.FinalRefit)
	assert.Equal(t, 32.0, cfg.RiskScore.Multiplier)
}

func TestLoadYAML(t *testing.T) {

	path := writeFile(t, "survsel.yaml", `
cohort:
  path: cohort.csv
  disease: MS_any
  score: grs_ms
selection:
  significance_level: 0.1
  workers: 4
  tie_break: last
  final_refit: penalized
calibration:
  horizons: [5, 10]
log_format: json
`)

	cfg, err := Load(path, writeFile(t, "empty.env", ""))
	require.NoError(t, err)
	assert.Equal(t, "cohort.csv", cfg.Cohort.Path)
	assert.Equal(t, 4, cfg.Selection.Workers)
	assert.Equal(t, []float64{5, 10}, cfg.Calibration.Horizons)
	assert.Equal(t, "json", cfg.LogFormat)

	// Unset values keep their defaults.
	assert.Equal(t, 0.002, cfg.Selection.Penalizer)
	assert.Equal(t, "age_uve_years", cfg.Cohort.Age)

	eng, err := cfg.Selection.Engine()
	require.NoError(t, err)
	assert.Equal(t, 0.1, eng.SignificanceLevel)
	assert.Equal(t, selection.TieLast, eng.TieBreak)
	assert.Equal(t, selection.RefitPenalized, eng.FinalRefit)

	ps, err := cfg.Cohort.PrepareSpec()
	require.NoError(t, err)
	assert.Equal(t, "first_uve_MS", ps.Event)
	assert.Equal(t, "uve_to_MS_years", ps.Duration)
	assert.Equal(t, "first_MS", ps.ExcludeCol)
	assert.Equal(t, "grs_ms", ps.Score)
}

func TestEnvOverrides(t *testing.T) {

	t.Setenv("SURVSEL_WORKERS", "3")
	t.Setenv("SURVSEL_OUTPUT_DIR", "/tmp/out")

	envFile := writeFile(t, "test.env", "SURVSEL_LOG_LEVEL=debug\nSURVSEL_WORKERS=7\n")
	t.Cleanup(func() { os.Unsetenv("SURVSEL_LOG_LEVEL") })

	cfg, err := Load("", envFile)
	require.NoError(t, err)

	// The environment takes precedence over the .env file.
	assert.Equal(t, 3, cfg.Selection.Workers)
	assert.Equal(t, "/tmp/out", cfg.OutputDir)
	assert.Equal(t, "debug", cfg.LogLevel)

	t.Setenv("SURVSEL_WORKERS", "many")
	_, err = Load("", envFile)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {

	for _, mod := range []func(*Config){
		func(c *Config) { c.Selection.SignificanceLevel = 1 },
		func(c *Config) { c.Selection.Penalizer = -0.1 },
		func(c *Config) { c.Selection.AICMargin = -1 },
		func(c *Config) { c.Selection.Workers = 0 },
		func(c *Config) { c.Selection.AssumptionThreshold = 0 },
		func(c *Config) { c.Selection.TieBreak = "random" },
		func(c *Config) { c.Selection.FinalRefit = "sometimes" },
		func(c *Config) { c.Calibration.Horizons = []float64{5, 0} },
		func(c *Config) { c.LogLevel = "loud" },
		func(c *Config) { c.LogFormat = "xml" },
	} {
		cfg := Default()
		mod(&cfg)
		assert.Error(t, cfg.Validate())
	}

	_, err := Load(writeFile(t, "bad.yaml", "selection: [1, 2"), writeFile(t, "empty.env", ""))
	assert.Error(t, err)
	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"), writeFile(t, "empty.env", ""))
	assert.Error(t, err)
}

func TestPrepareSpec(t *testing.T) {

	_, err := CohortConfig{Score: "grs"}.PrepareSpec()
	assert.Error(t, err)
	_, err = CohortConfig{Disease: "MS_any"}.PrepareSpec()
	assert.Error(t, err)

	ps, err := CohortConfig{Score: "grs", Event: "ev", Duration: "dur", Age: "age"}.PrepareSpec()
	require.NoError(t, err)
	assert.Equal(t, "ev", ps.Event)
	assert.Equal(t, "", ps.ExcludeCol)
	assert.Equal(t, "", ps.IncludeCol)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)
	_, err = ParseLevel("")
	assert.Error(t, err)
}

func TestCalibrationEngine(t *testing.T) {
	cfg := CalibrationConfig{Knots: 4, AxisMax: 0.5}.Engine()
	assert.Equal(t, 4, cfg.Knots)
	assert.Equal(t, 0.5, cfg.AxisMax)
	assert.InDelta(t, 0.5, cfg.ClipHigh, 1e-9)
}
