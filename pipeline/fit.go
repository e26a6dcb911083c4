// Package pipeline runs the analyses of a disease cohort end to end:
// fitting and exporting a Cox model, and preparing, selecting, checking
// and saving a final model.
package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ploginovic/Uveitis-IMIDs/cohort"
	"github.com/ploginovic/Uveitis-IMIDs/duration"
	"github.com/ploginovic/Uveitis-IMIDs/statmodel"
)

// FitSpec describes a single Cox model fit.
type FitSpec struct {

	// Prepare selects the cohort rows and columns.
	Prepare cohort.PrepareSpec

	// DummyColumn, if set, is replaced by indicators for all but its
	// most frequent level; levels without events are dropped.
	DummyColumn string

	// Name is the stem of the summary file name.  If empty it is
	// derived from the outcome and covariates.
	Name string

	// SaveSummary writes the coefficient table to OutputDir.
	SaveSummary bool
	OutputDir   string

	Log *slog.Logger
}

// FitResult is a fitted model with its data.
type FitResult struct {
	Results *duration.PHResults
	Data    *statmodel.Dataset

	// SummaryPath is the spreadsheet written, if any.
	SummaryPath string
}

func logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return l
}

// summaryName returns "<outcome>_<number of covariates>_<age type>".
func summaryName(ps cohort.PrepareSpec) string {
	age := ps.Age
	if age == "age_uve_years" {
		age = "cont"
	}
	return fmt.Sprintf("%s_%d_%s", ps.Event, len(ps.Columns())-2, age)
}

// FitAndSummarize prepares the cohort, fits a Cox model of the outcome
// on all remaining columns, and optionally saves a summary spreadsheet.
func FitAndSummarize(f *cohort.Frame, spec FitSpec, now time.Time) (*FitResult, error) {

	log := logger(spec.Log)
	ps := spec.Prepare

	g, err := cohort.Prepare(f, ps)
	if err != nil {
		return nil, err
	}

	if spec.DummyColumn != "" {
		if g, err = cohort.Dummies(g, spec.DummyColumn, cohort.DummyOptions{EventCol: ps.Event}); err != nil {
			return nil, err
		}
	}

	data, err := g.Dataset()
	if err != nil {
		return nil, err
	}

	var covs []string
	for _, na := range data.Names() {
		if na != ps.Event && na != ps.Duration {
			covs = append(covs, na)
		}
	}

	c := duration.DefaultPHRegConfig()
	c.Log = spec.Log
	ph, err := duration.NewPHReg(data, ps.Duration, ps.Event, covs, c)
	if err != nil {
		return nil, err
	}
	rslt, err := ph.Fit()
	if err != nil {
		return nil, err
	}
	log.Info("fitted Cox model", "outcome", ps.Event, "n", data.NumObs(), "covariates", covs)

	res := &FitResult{Results: rslt, Data: data}

	if spec.SaveSummary {
		name := spec.Name
		if name == "" {
			name = summaryName(ps)
		}
		res.SummaryPath, err = SaveSummary(rslt, name, spec.OutputDir, now)
		if err != nil {
			return nil, err
		}
		log.Info("saved Cox model summary", "path", res.SummaryPath)
	}

	return res, nil
}

// SummaryHeader lists the columns of a saved summary.
var SummaryHeader = []string{
	"covariate", "coef", "exp(coef)", "se(coef)",
	"coef lower 95%", "coef upper 95%", "exp(coef) lower 95%", "exp(coef) upper 95%",
	"z", "p",
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}

// SummaryRows returns the coefficient table of a fitted model, one row
// per covariate, with the columns of SummaryHeader after the name.
// Values that are unavailable are NaN.
func SummaryRows(rslt *duration.PHResults) [][]float64 {

	params := rslt.Params()
	se := rslt.StdErr()
	z := rslt.ZScores()
	p := rslt.PValues()
	lcb, ucb := rslt.ConfInt(0.95)

	get := func(x []float64, j int) float64 {
		if x == nil {
			return math.NaN()
		}
		return x[j]
	}

	rows := make([][]float64, len(params))
	for j, b := range params {
		rows[j] = []float64{
			b, math.Exp(b), get(se, j),
			get(lcb, j), get(ucb, j), math.Exp(get(lcb, j)), math.Exp(get(ucb, j)),
			get(z, j), get(p, j),
		}
	}

	return rows
}

// SaveSummary writes the coefficient table of a fitted model, rounded to
// four decimals, to "<name>_CPH_summary_<DDMMYYYY>.xlsx" in dir.  The
// directory is created if needed.
func SaveSummary(rslt *duration.PHResults, name, dir string, now time.Time) (string, error) {

	if dir == "" {
		dir = "cph_summaries"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_CPH_summary_%s.xlsx", name, now.Format("02012006")))

	wb := excelize.NewFile()
	defer wb.Close()
	sheet := wb.GetSheetName(0)

	for c, h := range SummaryHeader {
		cell, _ := excelize.CoordinatesToCellName(c+1, 1)
		if err := wb.SetCellValue(sheet, cell, h); err != nil {
			return "", err
		}
	}

	for r, row := range SummaryRows(rslt) {
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := wb.SetCellValue(sheet, cell, rslt.Names()[r]); err != nil {
			return "", err
		}
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+2, r+2)
			var val interface{} = round4(v)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				val = ""
			}
			if err := wb.SetCellValue(sheet, cell, val); err != nil {
				return "", err
			}
		}
	}

	if err := wb.SaveAs(path); err != nil {
		return "", err
	}

	return path, nil
}
