package cohort

import (
	"fmt"
	"sort"
	"strconv"
)

// DummyOptions controls indicator encoding of a categorical column.
type DummyOptions struct {

	// Reference is the level without an indicator.  If empty, the most
	// frequent level is used, ties going to the first level in sort
	// order.
	Reference string

	// EventCol, if set, names an event indicator; levels that never
	// occur together with an event are dropped as well.
	EventCol string
}

// levels returns the distinct non-blank cells of col.  Levels are sorted
// numerically if they are all numbers, and lexically otherwise.
func levels(col []string) []string {

	seen := make(map[string]bool)
	var lev []string
	numeric := true
	for _, s := range col {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		lev = append(lev, s)
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			numeric = false
		}
	}

	if numeric {
		sort.Slice(lev, func(i, j int) bool {
			x, _ := strconv.ParseFloat(lev[i], 64)
			y, _ := strconv.ParseFloat(lev[j], 64)
			return x < y
		})
	} else {
		sort.Strings(lev)
	}

	return lev
}

func mostFrequent(col []string, lev []string) string {

	count := make(map[string]int)
	for _, s := range col {
		count[s]++
	}

	var best string
	nbest := -1
	for _, l := range lev {
		if count[l] > nbest {
			best = l
			nbest = count[l]
		}
	}

	return best
}

// Dummies replaces a categorical column by indicator columns named
// col_level, appended after the other columns.  Blank cells have all
// indicators zero.
func Dummies(f *Frame, col string, opts DummyOptions) (*Frame, error) {

	cells, ok := f.Column(col)
	if !ok {
		return nil, fmt.Errorf("cohort: dummy column '%s' not found", col)
	}

	lev := levels(cells)
	if len(lev) == 0 {
		return nil, fmt.Errorf("cohort: dummy column '%s' has no values", col)
	}

	ref := opts.Reference
	if ref == "" {
		ref = mostFrequent(cells, lev)
	}

	drop := map[string]bool{ref: true}
	if opts.EventCol != "" {
		ev, err := f.Numeric(opts.EventCol)
		if err != nil {
			return nil, err
		}
		hasEvent := make(map[string]bool)
		for i, s := range cells {
			if ev[i] == 1 {
				hasEvent[s] = true
			}
		}
		for _, l := range lev {
			if !hasEvent[l] {
				drop[l] = true
			}
		}
	}

	var names []string
	var cols [][]string
	for _, l := range lev {
		if drop[l] {
			continue
		}
		ind := make([]string, len(cells))
		for i, s := range cells {
			if s == l {
				ind[i] = "1"
			} else {
				ind[i] = "0"
			}
		}
		names = append(names, col+"_"+l)
		cols = append(cols, ind)
	}

	return f.Drop(col).With(names, cols)
}

// isInteger reports whether every cell is an integer literal.
func isInteger(col []string) bool {
	for _, s := range col {
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			return false
		}
	}
	return len(col) > 0
}

func isBinary(col []string) bool {
	for _, s := range col {
		if s != "0" && s != "1" {
			return false
		}
	}
	return true
}

// AutoDummies encodes the categorical columns of a frame.  Columns with
// blank or non-numeric cells get indicators for each level except the
// most frequent one.  Integer columns that are not 0/1 coded get
// indicators for each level except 0.  Excluded columns are left alone.
func AutoDummies(f *Frame, exclude ...string) (*Frame, error) {

	skip := make(map[string]bool)
	for _, na := range exclude {
		skip[na] = true
	}

	r := f
	for _, na := range f.Names() {
		if skip[na] {
			continue
		}
		cells, _ := f.Column(na)

		var err error
		switch {
		case !f.IsNumeric(na):
			r, err = Dummies(r, na, DummyOptions{})
		case isInteger(cells) && !isBinary(cells):
			r, err = Dummies(r, na, DummyOptions{Reference: "0"})
		}
		if err != nil {
			return nil, err
		}
	}

	return r, nil
}
