package cohort

import (
	"fmt"
	"strings"
)

// PrepareSpec describes the analysis cohort of one disease.
type PrepareSpec struct {

	// Score is the risk score column.
	Score string

	// Event and Duration are the outcome columns.
	Event    string
	Duration string

	// Age is the age column.
	Age string

	// Extra lists further covariates.
	Extra []string

	// Rows are kept if IncludeCol is 1 (when set) and ExcludeCol is not
	// 1 (when set).
	IncludeCol string
	ExcludeCol string
}

// DiseaseName strips the "_any" suffix from a disease indicator name.
func DiseaseName(disease string) string {
	return strings.TrimSuffix(disease, "_any")
}

// DefaultPrepareSpec returns the standard cohort for a disease: patients
// with uveitis who did not have the disease before their uveitis, with
// the time from uveitis to the disease as the outcome.
func DefaultPrepareSpec(disease, score string) PrepareSpec {
	d := DiseaseName(disease)
	return PrepareSpec{
		Score:      score,
		Event:      "first_uve_" + d,
		Duration:   "uve_to_" + d + "_years",
		Age:        "age_uve_years",
		Extra:      []string{"Sex_Female"},
		IncludeCol: "uve_any",
		ExcludeCol: "first_" + d,
	}
}

// Columns returns the columns of the prepared cohort, in order.
func (ps PrepareSpec) Columns() []string {
	cols := []string{ps.Score, ps.Event, ps.Duration, ps.Age}
	return append(cols, ps.Extra...)
}

// Prepare filters the rows of a cohort and projects it to the columns
// of ps.
func Prepare(f *Frame, ps PrepareSpec) (*Frame, error) {

	for _, na := range []string{ps.Score, ps.Event, ps.Duration, ps.Age} {
		if na == "" {
			return nil, fmt.Errorf("cohort: incomplete cohort specification %+v", ps)
		}
	}

	var incl, excl []float64
	var err error
	if ps.IncludeCol != "" {
		if incl, err = f.Numeric(ps.IncludeCol); err != nil {
			return nil, err
		}
	}
	if ps.ExcludeCol != "" {
		if excl, err = f.Numeric(ps.ExcludeCol); err != nil {
			return nil, err
		}
	}

	rows := f.Filter(func(i int) bool {
		if incl != nil && incl[i] != 1 {
			return false
		}
		if excl != nil && excl[i] == 1 {
			return false
		}
		return true
	})

	return rows.Select(ps.Columns()...)
}
