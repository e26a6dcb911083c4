package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ploginovic/Uveitis-IMIDs/cohort"
	"github.com/ploginovic/Uveitis-IMIDs/duration"
	"github.com/ploginovic/Uveitis-IMIDs/selection"
	"github.com/ploginovic/Uveitis-IMIDs/statmodel"
)

// SelectSpec describes a model selection run.
type SelectSpec struct {

	// Name is the stem of the saved model file.  If empty, the event
	// column is used.
	Name string

	Prepare cohort.PrepareSpec

	// Selection configures both eliminations.  If nil,
	// selection.DefaultConfig is used.
	Selection *selection.Config

	// OutputDir receives the saved model.  If empty, "finalised_models"
	// is used.
	OutputDir string

	// AssumptionThreshold flags proportional hazards violations.  Zero
	// means 0.05.  The check only runs for Cox models.
	AssumptionThreshold float64

	Log *slog.Logger
}

// Coefficient is one row of a saved model.
type Coefficient struct {
	Name   string  `json:"name"`
	Coef   float64 `json:"coef"`
	StdErr float64 `json:"se"`
	PValue float64 `json:"p"`
}

// SavedModel is the persisted outcome of a selection run.
type SavedModel struct {
	RunID       uuid.UUID                  `json:"run_id"`
	Name        string                     `json:"name"`
	Created     time.Time                  `json:"created"`
	Duration    string                     `json:"duration"`
	Event       string                     `json:"event"`
	Features    []string                   `json:"features"`
	Removed     []string                   `json:"removed"`
	Coef        []Coefficient              `json:"coefficients,omitempty"`
	PartialAIC  float64                    `json:"partial_aic"`
	Assumptions *duration.AssumptionReport `json:"assumptions,omitempty"`

	// Path is where the model was saved or loaded from.
	Path string `json:"-"`
}

// Selection is the result of PrepareAndSave.
type Selection struct {
	PValue *selection.Result
	AIC    *selection.Result
	Saved  *SavedModel
	Data   *statmodel.Dataset
}

// PrepareAndSave prepares the cohort, eliminates features by p-value and
// then by partial AIC among the survivors, checks the proportional
// hazards assumption of the final model, and saves it as JSON to
// "<name>_finalised_model_<YYYY-MM-DD>.json".
func PrepareAndSave(ctx context.Context, f *cohort.Frame, spec SelectSpec, fitter selection.Fitter, now time.Time) (*Selection, error) {

	log := logger(spec.Log)
	ps := spec.Prepare
	cfg := spec.Selection
	if cfg == nil {
		cfg = selection.DefaultConfig()
	}

	g, err := prepare(f, ps)
	if err != nil {
		return nil, err
	}
	data, err := g.Dataset()
	if err != nil {
		return nil, err
	}

	pres, err := selection.EliminateByPValue(ctx, fitter, data, ps.Duration, ps.Event, cfg)
	if err != nil {
		return nil, fmt.Errorf("p-value elimination: %w", err)
	}
	log.Info("p-value elimination done", "features", pres.Features, "removed", pres.Removed)

	sub, err := data.Select(append([]string{ps.Duration, ps.Event}, pres.Features...)...)
	if err != nil {
		return nil, err
	}
	ares, err := selection.EliminateByAIC(ctx, fitter, sub, ps.Duration, ps.Event, cfg)
	if err != nil {
		return nil, fmt.Errorf("AIC elimination: %w", err)
	}
	log.Info("AIC elimination done", "features", ares.Features, "removed", ares.Removed)

	name := spec.Name
	if name == "" {
		name = ps.Event
	}
	sm := &SavedModel{
		RunID:      uuid.New(),
		Name:       name,
		Created:    now,
		Duration:   ps.Duration,
		Event:      ps.Event,
		Features:   ares.Features,
		Removed:    append(append([]string(nil), pres.Removed...), ares.Removed...),
		PartialAIC: ares.Model.PartialAIC(),
	}

	if pm, ok := ares.Model.(*selection.PHModel); ok {
		sm.Coef = coefficients(pm.Results)

		th := spec.AssumptionThreshold
		if th == 0 {
			th = 0.05
		}
		if len(ares.Features) > 0 {
			sm.Assumptions, err = pm.Results.CheckAssumptions(th)
			if err != nil {
				return nil, err
			}
			if !sm.Assumptions.OK() {
				log.Warn("proportional hazards assumption violated", "covariates", sm.Assumptions.Violations)
			}
		}
	}

	dir := spec.OutputDir
	if dir == "" {
		dir = "finalised_models"
	}
	if err := sm.save(dir); err != nil {
		return nil, err
	}
	log.Info("saved model", "path", sm.Path, "run_id", sm.RunID)

	return &Selection{PValue: pres, AIC: ares, Saved: sm, Data: data}, nil
}

// prepare selects the cohort and expands its categorical covariates.
func prepare(f *cohort.Frame, ps cohort.PrepareSpec) (*cohort.Frame, error) {
	g, err := cohort.Prepare(f, ps)
	if err != nil {
		return nil, err
	}
	return cohort.AutoDummies(g, ps.Event, ps.Duration, ps.Age)
}

func coefficients(rslt *duration.PHResults) []Coefficient {
	se := rslt.StdErr()
	pv := rslt.PValues()
	var co []Coefficient
	for j, na := range rslt.Names() {
		c := Coefficient{Name: na, Coef: rslt.Params()[j]}
		if se != nil {
			c.StdErr = se[j]
			c.PValue = pv[j]
		}
		co = append(co, c)
	}
	return co
}

func (sm *SavedModel) save(dir string) error {

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	b, err := json.MarshalIndent(sm, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_finalised_model_%s.json", sm.Name, sm.Created.Format("2006-01-02")))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return err
	}
	sm.Path = path

	return nil
}

// LoadModel reads a model saved by PrepareAndSave.
func LoadModel(path string) (*SavedModel, error) {

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	sm := new(SavedModel)
	if err := json.Unmarshal(b, sm); err != nil {
		return nil, fmt.Errorf("LoadModel %s: %w", path, err)
	}
	if sm.Duration == "" || sm.Event == "" {
		return nil, fmt.Errorf("LoadModel %s: missing outcome columns", path)
	}
	sm.Path = path

	return sm, nil
}

// Columns returns the outcome columns followed by the features.
func (sm *SavedModel) Columns() []string {
	return append([]string{sm.Duration, sm.Event}, sm.Features...)
}

// Dataset prepares a cohort as PrepareAndSave does and returns the
// outcome and feature columns of the saved model.
func (sm *SavedModel) Dataset(f *cohort.Frame, ps cohort.PrepareSpec) (*statmodel.Dataset, error) {

	if ps.Event != sm.Event || ps.Duration != sm.Duration {
		return nil, fmt.Errorf("model %s has outcome (%s, %s), cohort has (%s, %s)",
			sm.Name, sm.Duration, sm.Event, ps.Duration, ps.Event)
	}

	g, err := prepare(f, ps)
	if err != nil {
		return nil, err
	}

	return g.Dataset(sm.Columns()...)
}

// Refit fits the saved features to data with an unpenalized Cox model.
// Config may be nil.
func (sm *SavedModel) Refit(data *statmodel.Dataset, config *duration.PHRegConfig) (*duration.PHResults, error) {

	c := duration.DefaultPHRegConfig()
	if config != nil {
		cc := *config
		c = &cc
	}
	c.Penalizer = 0

	ph, err := duration.NewPHReg(data, sm.Duration, sm.Event, sm.Features, c)
	if err != nil {
		return nil, err
	}

	return ph.Fit()
}
