package statmodel

import (
	"fmt"
)

// Dataset is a collection of named numeric columns of equal length.  A
// Dataset is never modified after construction; Select and Drop return
// new values.
type Dataset struct {
	names []string
	data  [][]Dtype
	pos   map[string]int
}

// NewDataset returns a Dataset holding the given columns.  The column
// slices are retained, not copied, so callers must not modify them
// afterward.
func NewDataset(data [][]Dtype, names []string) (*Dataset, error) {

	if len(data) != len(names) {
		return nil, fmt.Errorf("NewDataset: %d columns but %d names", len(data), len(names))
	}

	pos := make(map[string]int, len(names))
	for j, na := range names {
		if _, ok := pos[na]; ok {
			return nil, fmt.Errorf("NewDataset: duplicate column name '%s'", na)
		}
		pos[na] = j
		if len(data[j]) != len(data[0]) {
			return nil, fmt.Errorf("NewDataset: column '%s' has length %d, expected %d",
				na, len(data[j]), len(data[0]))
		}
	}

	return &Dataset{
		names: names,
		data:  data,
		pos:   pos,
	}, nil
}

// Names returns the column names, in column order.
func (ds *Dataset) Names() []string {
	return ds.names
}

// Data returns the columns.
func (ds *Dataset) Data() [][]Dtype {
	return ds.data
}

// NumObs returns the number of rows.
func (ds *Dataset) NumObs() int {
	if len(ds.data) == 0 {
		return 0
	}
	return len(ds.data[0])
}

// Has reports whether the dataset contains a column with the given name.
func (ds *Dataset) Has(name string) bool {
	_, ok := ds.pos[name]
	return ok
}

// Column returns the column with the given name.
func (ds *Dataset) Column(name string) ([]Dtype, bool) {
	j, ok := ds.pos[name]
	if !ok {
		return nil, false
	}
	return ds.data[j], true
}

// Select returns a dataset containing only the named columns, in the
// given order.  Row alignment is preserved.
func (ds *Dataset) Select(names ...string) (*Dataset, error) {

	data := make([][]Dtype, len(names))
	for j, na := range names {
		k, ok := ds.pos[na]
		if !ok {
			return nil, fmt.Errorf("Select: column '%s' not found", na)
		}
		data[j] = ds.data[k]
	}

	cp := make([]string, len(names))
	copy(cp, names)

	return NewDataset(data, cp)
}

// Drop returns a dataset without the named columns.  Names that are not
// present are ignored.
func (ds *Dataset) Drop(names ...string) *Dataset {

	skip := make(map[string]bool, len(names))
	for _, na := range names {
		skip[na] = true
	}

	var keep []string
	for _, na := range ds.names {
		if !skip[na] {
			keep = append(keep, na)
		}
	}

	// All names come from ds, so Select cannot fail.
	r, _ := ds.Select(keep...)
	return r
}
