// Package cohort loads tabular patient cohorts and prepares them for
// survival modeling.
//
// A Frame holds raw string cells, as read from a CSV or XLSX file.
// Numeric views, row filters, column projections and indicator (dummy)
// encodings are derived from it, and Dataset converts a fully numeric
// projection into a statmodel.Dataset for model fitting.
package cohort

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ploginovic/Uveitis-IMIDs/duration"
	"github.com/ploginovic/Uveitis-IMIDs/statmodel"
)

// Frame is an ordered collection of named columns of raw cells.  Frames
// are not modified after construction.
type Frame struct {
	names []string
	cols  [][]string
	pos   map[string]int
}

// NewFrame returns a frame holding the given columns, which must all
// have the same length.  Column names are trimmed of surrounding space.
func NewFrame(names []string, cols [][]string) (*Frame, error) {

	if len(names) != len(cols) {
		return nil, fmt.Errorf("cohort: %d names but %d columns", len(names), len(cols))
	}

	f := &Frame{
		names: make([]string, len(names)),
		cols:  cols,
		pos:   make(map[string]int, len(names)),
	}
	for j, na := range names {
		na = strings.TrimSpace(na)
		if na == "" {
			return nil, fmt.Errorf("cohort: column %d has no name", j+1)
		}
		if _, ok := f.pos[na]; ok {
			return nil, fmt.Errorf("cohort: duplicate column '%s'", na)
		}
		if len(cols[j]) != len(cols[0]) {
			return nil, fmt.Errorf("cohort: column '%s' has %d rows, expected %d", na, len(cols[j]), len(cols[0]))
		}
		f.names[j] = na
		f.pos[na] = j
	}

	return f, nil
}

// fromRows builds a frame from a header row followed by data rows.
// Short rows are padded with blank cells.
func fromRows(rows [][]string) (*Frame, error) {

	if len(rows) < 2 {
		return nil, fmt.Errorf("cohort: need a header row and at least one data row")
	}

	header := rows[0]
	cols := make([][]string, len(header))
	for _, row := range rows[1:] {
		for j := range header {
			var cell string
			if j < len(row) {
				cell = strings.TrimSpace(row[j])
			}
			cols[j] = append(cols[j], cell)
		}
	}

	return NewFrame(header, cols)
}

// ReadCSV reads a comma separated cohort with a header row.
func ReadCSV(r io.Reader) (*Frame, error) {

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("cohort: reading CSV: %w", err)
	}

	return fromRows(rows)
}

// ReadXLSX reads a worksheet of an Excel workbook.  If sheet is empty
// the first worksheet is used.
func ReadXLSX(path, sheet string) (*Frame, error) {

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("cohort: opening workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("cohort: workbook %s has no sheets", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("cohort: reading sheet %s: %w", sheet, err)
	}

	return fromRows(rows)
}

// ReadFile reads a cohort from a .csv or .xlsx file.
func ReadFile(path string) (*Frame, error) {

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		fid, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer fid.Close()
		return ReadCSV(fid)
	case ".xlsx":
		return ReadXLSX(path, "")
	default:
		return nil, fmt.Errorf("cohort: unsupported file type '%s'", filepath.Ext(path))
	}
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	return f.names
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int {
	if len(f.cols) == 0 {
		return 0
	}
	return len(f.cols[0])
}

// Has reports whether the frame has the named column.
func (f *Frame) Has(name string) bool {
	_, ok := f.pos[name]
	return ok
}

// Column returns the raw cells of a column.
func (f *Frame) Column(name string) ([]string, bool) {
	j, ok := f.pos[name]
	if !ok {
		return nil, false
	}
	return f.cols[j], true
}

func parseCell(s string) (float64, bool) {
	if s == "" {
		return math.NaN(), false
	}
	switch strings.ToLower(s) {
	case "true":
		return 1, true
	case "false":
		return 0, true
	}
	x, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(x) {
		return math.NaN(), false
	}
	return x, true
}

// Numeric returns a column as numbers.  Blank and unparseable cells are
// NaN; "true" and "false" are 1 and 0.
func (f *Frame) Numeric(name string) ([]float64, error) {

	col, ok := f.Column(name)
	if !ok {
		return nil, &duration.DataPreparationError{Column: name, Reason: "not found"}
	}

	x := make([]float64, len(col))
	for i, s := range col {
		x[i], _ = parseCell(s)
	}

	return x, nil
}

// IsNumeric reports whether every cell of the column is a number.
func (f *Frame) IsNumeric(name string) bool {
	col, ok := f.Column(name)
	if !ok {
		return false
	}
	for _, s := range col {
		if _, ok := parseCell(s); !ok {
			return false
		}
	}
	return true
}

// Filter returns the rows for which keep returns true.
func (f *Frame) Filter(keep func(row int) bool) *Frame {

	var ix []int
	for i := 0; i < f.NumRows(); i++ {
		if keep(i) {
			ix = append(ix, i)
		}
	}

	cols := make([][]string, len(f.cols))
	for j, col := range f.cols {
		cols[j] = make([]string, len(ix))
		for k, i := range ix {
			cols[j][k] = col[i]
		}
	}

	return &Frame{names: f.names, cols: cols, pos: f.pos}
}

// Where returns the rows whose numeric value in col satisfies pred.
// Blank cells are passed to pred as NaN.
func (f *Frame) Where(col string, pred func(float64) bool) (*Frame, error) {

	x, err := f.Numeric(col)
	if err != nil {
		return nil, err
	}

	return f.Filter(func(i int) bool { return pred(x[i]) }), nil
}

// Select returns the named columns, in the given order.
func (f *Frame) Select(names ...string) (*Frame, error) {

	cols := make([][]string, len(names))
	for j, na := range names {
		col, ok := f.Column(na)
		if !ok {
			return nil, &duration.DataPreparationError{Column: na, Reason: "not found"}
		}
		cols[j] = col
	}

	return NewFrame(append([]string(nil), names...), cols)
}

// Drop returns the frame without the named columns.
func (f *Frame) Drop(names ...string) *Frame {

	skip := make(map[string]bool)
	for _, na := range names {
		skip[na] = true
	}

	var keep []string
	for _, na := range f.names {
		if !skip[na] {
			keep = append(keep, na)
		}
	}

	r, _ := f.Select(keep...)
	return r
}

// With returns the frame with additional columns appended.
func (f *Frame) With(names []string, cols [][]string) (*Frame, error) {
	return NewFrame(append(append([]string(nil), f.names...), names...),
		append(append([][]string(nil), f.cols...), cols...))
}

// Dataset converts the named columns (all columns if none are named) to
// a numeric dataset.  A blank or non-numeric cell is an error.
func (f *Frame) Dataset(names ...string) (*statmodel.Dataset, error) {

	if len(names) == 0 {
		names = f.names
	}

	data := make([][]float64, len(names))
	for j, na := range names {
		col, ok := f.Column(na)
		if !ok {
			return nil, &duration.DataPreparationError{Column: na, Reason: "not found"}
		}
		data[j] = make([]float64, len(col))
		for i, s := range col {
			x, ok := parseCell(s)
			if !ok {
				if s == "" {
					return nil, &duration.DataPreparationError{Column: na, Reason: fmt.Sprintf("missing value in row %d", i+1)}
				}
				return nil, &duration.DataPreparationError{Column: na, Reason: fmt.Sprintf("non-numeric value '%s' in row %d", s, i+1)}
			}
			data[j][i] = x
		}
	}

	return statmodel.NewDataset(data, append([]string(nil), names...))
}
