package selection

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ploginovic/Uveitis-IMIDs/statmodel"
)

// key identifies a feature set independently of order.
func key(features []string) string {
	f := append([]string(nil), features...)
	sort.Strings(f)
	return strings.Join(f, ",")
}

type fakeModel struct {
	aic      float64
	pv       map[string]float64
	features []string
}

func (m *fakeModel) PartialAIC() float64         { return m.aic }
func (m *fakeModel) PValues() map[string]float64 { return m.pv }
func (m *fakeModel) Features() []string          { return m.features }

type fitCall struct {
	features  []string
	penalizer float64
}

// scriptedFitter returns canned AIC values and p-values keyed by
// feature set.  Unscripted AIC values default to 1000.
type scriptedFitter struct {
	aic     map[string]float64
	pvalues func(features []string) map[string]float64
	fail    map[string]error

	// failUnpenalized fails only fits without a penalty.
	failUnpenalized map[string]error

	mu    sync.Mutex
	calls []fitCall
}

func (f *scriptedFitter) Fit(ctx context.Context, data *statmodel.Dataset, durationCol, eventCol string, features []string, penalizer float64) (Model, error) {

	f.mu.Lock()
	f.calls = append(f.calls, fitCall{append([]string(nil), features...), penalizer})
	f.mu.Unlock()

	k := key(features)
	if err, ok := f.fail[k]; ok {
		return nil, err
	}
	if err, ok := f.failUnpenalized[k]; ok && penalizer == 0 {
		return nil, err
	}

	aic, ok := f.aic[k]
	if !ok {
		aic = 1000
	}

	var pv map[string]float64
	if f.pvalues != nil {
		pv = f.pvalues(features)
	}

	return &fakeModel{aic: aic, pv: pv, features: features}, nil
}

func (f *scriptedFitter) numCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// emptyData returns a dataset with the given column names and one row.
func emptyData(names ...string) *statmodel.Dataset {
	cols := make([][]float64, len(names))
	for j := range cols {
		cols[j] = []float64{1}
	}
	ds, err := statmodel.NewDataset(cols, names)
	if err != nil {
		panic(err)
	}
	return ds
}

// pvalueTable returns a p-value function that looks up fixed values.
func pvalueTable(tab map[string]float64) func([]string) map[string]float64 {
	return func(features []string) map[string]float64 {
		pv := make(map[string]float64)
		for _, f := range features {
			if p, ok := tab[f]; ok {
				pv[f] = p
			}
		}
		return pv
	}
}

type recorder struct {
	events []Event
}

func (r *recorder) report(ev Event) {
	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []EventKind {
	var k []EventKind
	for _, ev := range r.events {
		k = append(k, ev.Kind)
	}
	return k
}
