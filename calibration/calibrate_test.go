package calibration

import (
	"errors"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ploginovic/Uveitis-IMIDs/duration"
	"github.com/ploginovic/Uveitis-IMIDs/statmodel"
)

func simCohort(n int, seed int64) *statmodel.Dataset {

	rng := rand.New(rand.NewSource(seed))
	time := make([]float64, n)
	status := make([]float64, n)
	x := make([]float64, n)
	for i := range x {
		x[i] = rng.NormFloat64()
		t := rng.ExpFloat64() / (0.02 * math.Exp(0.8*x[i]))
		c := 10 * rng.Float64()
		if c < t {
			time[i] = c
		} else {
			time[i] = t
			status[i] = 1
		}
	}

	ds, err := statmodel.NewDataset([][]float64{time, status, x}, []string{"time", "status", "x"})
	if err != nil {
		panic(err)
	}
	return ds
}

func fitCohort(t *testing.T, ds *statmodel.Dataset) *duration.PHResults {
	ph, err := duration.NewPHReg(ds, "time", "status", []string{"x"}, nil)
	require.NoError(t, err)
	rslt, err := ph.Fit()
	require.NoError(t, err)
	return rslt
}

func TestKnots(t *testing.T) {

	x := make([]float64, 101)
	for i := range x {
		x[i] = float64(100 - i)
	}
	knots, err := placeKnots(x, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 50, 90}, knots)

	// Ties collapse knots.
	knots, err = placeKnots([]float64{1, 1, 1, 1, 2}, 4)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2}, knots)
	assert.Equal(t, 1, rcs{knots: knots}.dim())

	_, err = placeKnots(x, 2)
	assert.Error(t, err)
}

func TestSplineLinearTails(t *testing.T) {

	s := rcs{knots: []float64{0, 1, 3, 4}}
	require.Equal(t, 3, s.dim())

	b := make([]float64, 3)
	val := func(x float64) []float64 {
		s.eval(x, b)
		return append([]float64(nil), b...)
	}

	// Below the first knot only the linear term is non-zero.
	assert.Equal(t, []float64{-1, 0, 0}, val(-1))

	// Beyond the last knot every basis function is linear.
	v1, v2, v3 := val(5), val(6), val(7)
	for j := 0; j < 3; j++ {
		assert.InDelta(t, 0, v1[j]-2*v2[j]+v3[j], 1e-9)
	}

	cols := s.basis([]float64{-1, 5})
	assert.Equal(t, 3, len(cols))
	assert.Equal(t, v1[1], cols[1][1])
}

func TestCalibrate(t *testing.T) {

	ds := simCohort(800, 3719)
	rslt := fitCohort(t, ds)

	res, err := Calibrate(rslt, ds, 2, nil)
	require.NoError(t, err)

	assert.Len(t, res.Predicted, 800)
	assert.Len(t, res.Observed, 800)
	assert.Len(t, res.GridPredicted, 100)
	assert.Len(t, res.GridObserved, 100)
	assert.Len(t, res.Knots, 3)
	assert.InDelta(t, 0.2, res.GridPredicted[99], 1e-12)

	for _, p := range res.Predicted {
		assert.True(t, p >= 1e-10 && p <= 0.2)
	}
	for _, p := range res.GridObserved {
		assert.True(t, p >= 0 && p <= 1)
	}

	// A correctly specified model is well calibrated in sample.
	assert.Less(t, res.ICI, 0.04)
	assert.LessOrEqual(t, res.E50, res.E90)
	assert.Greater(t, res.E90, 0.0)

	fname := filepath.Join(t.TempDir(), "calibration.png")
	require.NoError(t, res.Save(fname, "MS", 4, 4))
	info, err := os.Stat(fname)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestCalibrateErrors(t *testing.T) {

	ds := simCohort(200, 11)
	rslt := fitCohort(t, ds)

	_, err := Calibrate(rslt, ds, 0, nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.ClipHigh = 2
	_, err = Calibrate(rslt, ds, 2, cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Knots = 9
	_, err = Calibrate(rslt, ds, 2, cfg)
	assert.Error(t, err)

	// Covariates alone allow prediction, but not calibration.
	_, err = Calibrate(rslt, ds.Drop("time"), 2, nil)
	var dpe *duration.DataPreparationError
	require.True(t, errors.As(err, &dpe))
	assert.Equal(t, "time", dpe.Column)
}
