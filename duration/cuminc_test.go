package duration

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

func TestCI1(t *testing.T) {

	var time []float64
	var status []float64
	n := 20

	for i := 0; i < n; i++ {
		time = append(time, 10+float64(i/2))
		status = append(status, float64(i%2))
	}

	data := mustDataset([][]float64{time, status}, []string{"Time", "Status"})
	ci, err := NewCumincRight(data, "Time", "Status").Done()
	if err != nil {
		t.Fatal(err)
	}

	// Check times
	for i := 0; i < 10; i++ {
		if ci.Time()[i] != float64(10+i) {
			t.Fail()
		}
	}

	// From Python Statsmodels
	pr := []float64{0.05, 0.10277778, 0.15885417, 0.21893601, 0.28402468,
		0.35562221, 0.43616943, 0.53014119, 0.6476059, 0.82380295}
	se := []float64{0.04873397, 0.06891433, 0.08439262, 0.09743198, 0.10890472,
		0.11924923, 0.12870257, 0.13733875, 0.14476983, 0.14409121}

	if !floats.EqualApprox(ci.Prob(1), pr, 1e-6) || !floats.EqualApprox(ci.ProbSE(1), se, 1e-6) {
		t.Fail()
	}

	// Without competing events the cumulative incidence is one minus
	// the Kaplan-Meier estimate.
	sf, err := NewSurvfuncRight(data, "Time", "Status").Done()
	if err != nil {
		t.Fatal(err)
	}
	for _, t0 := range []float64{9, 10, 12.5, 19, 30} {
		p, _ := ci.ProbAt(1, t0)
		if math.Abs(p-(1-sf.SurvProbAt(t0))) > 1e-12 {
			t.Errorf("t=%v: %v != 1 - %v", t0, p, sf.SurvProbAt(t0))
		}
	}
}

func TestCI2(t *testing.T) {

	times := []float64{1, 1, 2, 4, 4, 4, 6, 6, 7, 8, 9, 9, 9, 1, 2, 2, 4, 4}
	stats := []float64{1, 1, 1, 2, 2, 2, 3, 3, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0}

	data := mustDataset([][]float64{times, stats}, []string{"Time", "Status"})
	ci, err := NewCumincRight(data, "Time", "Status").Done()
	if err != nil {
		t.Fatal(err)
	}

	if !floats.Equal(ci.Time(), []float64{1, 2, 4, 6, 7}) {
		t.Fail()
	}
	if ci.NumCauses() != 3 {
		t.Fail()
	}

	// From Python Statsmodels
	pr := [][]float64{
		{0.11111111, 0.17037037, 0.17037037, 0.17037037, 0.17037037},
		{0., 0., 0.20740741, 0.20740741, 0.20740741},
		{0., 0., 0., 0.17777778, 0.26666667},
	}
	se := [][]float64{
		{0.07407407, 0.08976251, 0.08976251, 0.08976251, 0.08976251},
		{0., 0., 0.10610391, 0.10610391, 0.10610391},
		{0., 0., 0., 0.11196147, 0.12787781},
	}

	for j := range pr {
		if !floats.EqualApprox(ci.Prob(j+1), pr[j], 1e-6) {
			t.Errorf("cause %d: probabilities %v", j+1, ci.Prob(j+1))
		}
		if !floats.EqualApprox(ci.ProbSE(j+1), se[j], 1e-6) {
			t.Errorf("cause %d: standard errors %v", j+1, ci.ProbSE(j+1))
		}
	}

	p, s := ci.ProbAt(2, 5)
	if math.Abs(p-0.20740741) > 1e-6 || math.Abs(s-0.10610391) > 1e-6 {
		t.Fail()
	}
	if p, s := ci.ProbAt(3, 0.5); p != 0 || s != 0 {
		t.Fail()
	}
	if p, _ := ci.ProbAt(4, 10); p != 0 {
		t.Fail()
	}
}

func TestCI3(t *testing.T) {

	var time []float64
	var status []float64

	for i := 0; i < 20; i++ {
		time = append(time, 10+float64(i/2))
		status = append(status, float64(i%3))
	}

	data := mustDataset([][]float64{time, status}, []string{"Time", "Status"})
	ci, err := NewCumincRight(data, "Time", "Status").Done()
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 10; i++ {
		if ci.Time()[i] != float64(10+i) {
			t.Fail()
		}
	}

	// From Python Statsmodels
	pr := [][]float64{
		{0.05, 0.05, 0.10607639, 0.16215278, 0.16215278, 0.22897714, 0.2958015, 0.2958015, 0.3932537, 0.4907059},
		{0., 0.05277778, 0.10885417, 0.10885417, 0.16960359, 0.23642795, 0.23642795, 0.31438971, 0.41184191, 0.41184191},
	}
	se := [][]float64{
		{0.04873397, 0.04873397, 0.07114208, 0.08597339, 0.08597339, 0.10174694, 0.11255895, 0.11255895, 0.13106522, 0.13753272},
		{0., 0.05136219, 0.07274191, 0.07274191, 0.08957865, 0.10420542, 0.10420542, 0.11863944, 0.13371982, 0.13371982},
	}

	for j := range pr {
		if !floats.EqualApprox(ci.Prob(j+1), pr[j], 1e-6) || !floats.EqualApprox(ci.ProbSE(j+1), se[j], 1e-6) {
			t.Errorf("cause %d", j+1)
		}
	}
}

func TestCIErrors(t *testing.T) {

	for _, c := range []struct {
		time, status []float64
	}{
		{[]float64{1, 2}, []float64{0, 0}},
		{[]float64{1, 2}, []float64{1, 0.5}},
		{[]float64{1, -2}, []float64{1, 0}},
		{[]float64{1, 2}, []float64{-1, 1}},
	} {
		data := mustDataset([][]float64{c.time, c.status}, []string{"Time", "Status"})
		if _, err := NewCumincRight(data, "Time", "Status").Done(); err == nil {
			t.Errorf("expected error for %v", c)
		}
	}

	data := mustDataset([][]float64{{1, 2}, {1, 1}}, []string{"Time", "Status"})
	if _, err := NewCumincRight(data, "Time", "Event").Done(); err == nil {
		t.Fail()
	}
}
