// Package riskscore compares the distribution of a genetic risk score
// across diagnostic subgroups of a cohort.
package riskscore

import (
	"fmt"
	"math"

	"github.com/ploginovic/Uveitis-IMIDs/cohort"
)

// Group is a named subset of a cohort.
type Group struct {
	Name  string
	Frame *cohort.Frame
}

// Values returns the non-missing numeric values of a column in the
// group.
func (g Group) Values(col string) ([]float64, error) {

	x, err := g.Frame.Numeric(col)
	if err != nil {
		return nil, err
	}

	var v []float64
	for _, y := range x {
		if !math.IsNaN(y) {
			v = append(v, y)
		}
	}

	return v, nil
}

// Names of the groups without the disease.
const (
	Controls    = "Controls"
	UveitisOnly = "Uve"
)

// DiseaseOnly returns the name of the group with the disease but no
// uveitis.
func DiseaseOnly(label string) string {
	return label + " only"
}

// Both returns the name of the group with the disease and uveitis.
func Both(label string) string {
	return label + "-Uve"
}

// DefineGroups splits a cohort by disease and uveitis status into
// Controls (neither), "<label> only", "Uve" (uveitis only) and
// "<label>-Uve" (both), in that order.  A status counts as present only
// if it is 1.
func DefineGroups(f *cohort.Frame, diseaseCol, uveitisCol, label string) ([]Group, error) {

	dis, err := f.Numeric(diseaseCol)
	if err != nil {
		return nil, err
	}
	uve, err := f.Numeric(uveitisCol)
	if err != nil {
		return nil, err
	}

	sel := func(d, u bool) *cohort.Frame {
		return f.Filter(func(i int) bool {
			return (dis[i] == 1) == d && (uve[i] == 1) == u
		})
	}

	return []Group{
		{Controls, sel(false, false)},
		{DiseaseOnly(label), sel(true, false)},
		{UveitisOnly, sel(false, true)},
		{Both(label), sel(true, true)},
	}, nil
}

// findGroup returns the named group.
func findGroup(groups []Group, name string) (Group, error) {
	for _, g := range groups {
		if g.Name == name {
			return g, nil
		}
	}
	return Group{}, fmt.Errorf("riskscore: unknown group '%s'", name)
}
