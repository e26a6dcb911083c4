package cohort

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/ploginovic/Uveitis-IMIDs/duration"
)

const sample = `grs, first_uve_MS ,uve_to_MS_years,age_uve_years,Sex_Female,uve_any,first_MS,smoking
0.5,1,2.5,40,1,1,0,never
1.5,0,10,35,0,1,0,current
-0.2,0,7,50,1,1,1,never
0.9,1,1.0,28,0,0,0,
2.1,0,4,61,1,1,,former
0.0,1,3,45,0,1,0,never
`

func sampleFrame(t *testing.T) *Frame {
	f, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)
	return f
}

func TestReadCSV(t *testing.T) {

	f := sampleFrame(t)
	assert.Equal(t, 6, f.NumRows())
	assert.Equal(t, "first_uve_MS", f.Names()[1])
	assert.True(t, f.Has("smoking"))

	x, err := f.Numeric("uve_to_MS_years")
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5, 10, 7, 1, 4, 3}, x)

	x, err = f.Numeric("first_MS")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(x[4]))

	assert.True(t, f.IsNumeric("grs"))
	assert.False(t, f.IsNumeric("first_MS"))
	assert.False(t, f.IsNumeric("smoking"))
	assert.False(t, f.IsNumeric("nothere"))

	_, err = ReadCSV(strings.NewReader("a,b\n"))
	assert.Error(t, err)
	_, err = ReadCSV(strings.NewReader("a,a\n1,2\n"))
	assert.Error(t, err)
}

func TestReadXLSX(t *testing.T) {

	path := filepath.Join(t.TempDir(), "cohort.xlsx")
	wb := excelize.NewFile()
	rows := [][]interface{}{
		{"time", "status", "group"},
		{1.5, 1, "a"},
		{2, 0, "b"},
	}
	for r, row := range rows {
		for c, v := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, wb.SetCellValue("Sheet1", cell, v))
		}
	}
	require.NoError(t, wb.SaveAs(path))

	f, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"time", "status", "group"}, f.Names())
	assert.Equal(t, 2, f.NumRows())

	ds, err := f.Dataset("time", "status")
	require.NoError(t, err)
	tm, _ := ds.Column("time")
	assert.Equal(t, []float64{1.5, 2}, tm)

	_, err = ReadXLSX(path, "NoSuchSheet")
	assert.Error(t, err)
	_, err = ReadFile(filepath.Join(t.TempDir(), "cohort.parquet"))
	assert.Error(t, err)
}

func TestFilterSelect(t *testing.T) {

	f := sampleFrame(t)

	g, err := f.Where("age_uve_years", func(x float64) bool { return x >= 40 })
	require.NoError(t, err)
	assert.Equal(t, 4, g.NumRows())
	col, _ := g.Column("grs")
	assert.Equal(t, []string{"0.5", "-0.2", "2.1", "0.0"}, col)

	// The original frame is unchanged.
	assert.Equal(t, 6, f.NumRows())

	s, err := f.Select("smoking", "grs")
	require.NoError(t, err)
	assert.Equal(t, []string{"smoking", "grs"}, s.Names())

	_, err = f.Select("grs", "nothere")
	var dpe *duration.DataPreparationError
	require.True(t, errors.As(err, &dpe))
	assert.Equal(t, "nothere", dpe.Column)

	assert.Equal(t, 7, len(f.Drop("smoking", "nothere").Names()))
}

func TestDataset(t *testing.T) {

	f := sampleFrame(t)

	ds, err := f.Dataset("grs", "age_uve_years")
	require.NoError(t, err)
	assert.Equal(t, 6, ds.NumObs())

	var dpe *duration.DataPreparationError
	_, err = f.Dataset("first_MS")
	require.True(t, errors.As(err, &dpe))
	assert.Contains(t, dpe.Reason, "missing value in row 5")

	_, err = f.Dataset("smoking")
	require.True(t, errors.As(err, &dpe))
	assert.Equal(t, "smoking", dpe.Column)

	_, err = f.Dataset()
	assert.Error(t, err)
}

func TestDummies(t *testing.T) {

	f := sampleFrame(t)

	// "never" is the most frequent level.
	g, err := Dummies(f, "smoking", DummyOptions{})
	require.NoError(t, err)
	names := g.Names()
	assert.Equal(t, []string{"smoking_current", "smoking_former"}, names[len(names)-2:])
	assert.False(t, g.Has("smoking"))
	col, _ := g.Column("smoking_former")
	assert.Equal(t, []string{"0", "0", "0", "0", "1", "0"}, col)

	// A blank cell has no indicator set.
	col, _ = g.Column("smoking_current")
	assert.Equal(t, "0", col[3])

	g, err = Dummies(f, "smoking", DummyOptions{Reference: "current"})
	require.NoError(t, err)
	assert.True(t, g.Has("smoking_never"))
	assert.False(t, g.Has("smoking_current"))

	// Neither "current" nor "former" occurs with an event.
	g, err = Dummies(f, "smoking", DummyOptions{EventCol: "first_uve_MS"})
	require.NoError(t, err)
	for _, na := range g.Names() {
		assert.False(t, strings.HasPrefix(na, "smoking"), na)
	}

	_, err = Dummies(f, "nothere", DummyOptions{})
	assert.Error(t, err)
}

func TestAutoDummies(t *testing.T) {

	f, err := ReadCSV(strings.NewReader("time,status,stage,x,sex,grp\n" +
		"1,1,0,0.5,0,a\n" +
		"2,0,2,1.5,1,b\n" +
		"3,1,1,2.5,1,a\n" +
		"4,0,2,0.1,0,\n"))
	require.NoError(t, err)

	g, err := AutoDummies(f, "time", "status")
	require.NoError(t, err)
	assert.Equal(t, []string{"time", "status", "x", "sex", "stage_1", "stage_2", "grp_b"}, g.Names())

	ds, err := g.Dataset()
	require.NoError(t, err)
	s2, _ := ds.Column("stage_2")
	assert.Equal(t, []float64{0, 1, 0, 1}, s2)
}

func TestPrepare(t *testing.T) {

	f := sampleFrame(t)
	ps := DefaultPrepareSpec("MS_any", "grs")
	assert.Equal(t, "first_uve_MS", ps.Event)
	assert.Equal(t, "uve_to_MS_years", ps.Duration)
	assert.Equal(t, "first_MS", ps.ExcludeCol)

	g, err := Prepare(f, ps)
	require.NoError(t, err)
	assert.Equal(t, []string{"grs", "first_uve_MS", "uve_to_MS_years", "age_uve_years", "Sex_Female"}, g.Names())

	// Row 3 had MS first, row 4 had no uveitis.
	assert.Equal(t, 4, g.NumRows())
	col, _ := g.Column("grs")
	assert.Equal(t, []string{"0.5", "1.5", "2.1", "0.0"}, col)

	ps.Extra = []string{"nothere"}
	_, err = Prepare(f, ps)
	assert.Error(t, err)

	_, err = Prepare(f, PrepareSpec{Score: "grs"})
	assert.Error(t, err)
}

func TestDiseaseName(t *testing.T) {
	assert.Equal(t, "MS", DiseaseName("MS_any"))
	assert.Equal(t, "Crohns", DiseaseName("Crohns"))
	assert.Equal(t, "any_MS", DiseaseName("any_MS"))
}
