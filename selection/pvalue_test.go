package selection

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPValueElimination(t *testing.T) {

	fitter := &scriptedFitter{
		aic:     map[string]float64{key([]string{"age", "a"}): 77},
		pvalues: pvalueTable(map[string]float64{"a": 0.01, "b": 0.5, "c": 0.2, "age": 0.9}),
	}
	rec := &recorder{}
	cfg := DefaultConfig()
	cfg.Reporter = rec.report

	res, err := EliminateByPValue(context.Background(), fitter, emptyData("age", "a", "b", "c", "time", "event"), "time", "event", cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"age", "a"}, res.Features)
	assert.Equal(t, []string{"b", "c"}, res.Removed)
	assert.Equal(t, []string{"age"}, res.Mandatory)
	assert.Equal(t, 3, res.Rounds)
	assert.Equal(t, 4, res.Fits)
	assert.Equal(t, 77.0, res.Model.PartialAIC())

	var pen []float64
	for _, c := range fitter.calls {
		pen = append(pen, c.penalizer)
	}
	assert.Equal(t, []float64{0.002, 0.002, 0.002, 0}, pen)
	assert.Equal(t, []string{"age", "a", "b", "c"}, fitter.calls[0].features)
	assert.Equal(t, []string{"age", "a", "c"}, fitter.calls[1].features)

	assert.Equal(t, []EventKind{
		RoundStarted, SubsetFitted, Removed,
		RoundStarted, SubsetFitted, Removed,
		RoundStarted, SubsetFitted,
		Stopped,
	}, rec.kinds())
	assert.Equal(t, "b", rec.events[2].Feature)
	assert.Equal(t, 0.5, rec.events[2].Score)
	assert.Equal(t, 77.0, rec.events[8].Score)
}

func TestPValueBoundary(t *testing.T) {

	// A p-value equal to the level is removed.
	fitter := &scriptedFitter{pvalues: pvalueTable(map[string]float64{"a": 0.05, "b": 0.049})}
	res, err := EliminateByPValue(context.Background(), fitter, emptyData("a", "b", "time", "event"), "time", "event", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Removed)
	assert.Equal(t, []string{"b"}, res.Features)
}

func TestPValueTies(t *testing.T) {

	fitter := &scriptedFitter{pvalues: pvalueTable(map[string]float64{"a": 0.5, "b": 0.5, "c": 0.001})}
	res, err := EliminateByPValue(context.Background(), fitter, emptyData("sex", "a", "b", "c", "time", "event"), "time", "event", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, res.Removed)
	assert.Equal(t, []string{"sex", "c"}, res.Features)
}

func TestPValueRefitPolicy(t *testing.T) {

	fitter := &scriptedFitter{pvalues: pvalueTable(map[string]float64{"a": 0.9})}
	cfg := DefaultConfig()
	cfg.Penalizer = 0.1
	cfg.FinalRefit = RefitPenalized

	res, err := EliminateByPValue(context.Background(), fitter, emptyData("a", "time", "event"), "time", "event", cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Features)
	require.Len(t, fitter.calls, 2)
	assert.Equal(t, 0.1, fitter.calls[0].penalizer)
	assert.Equal(t, 0.1, fitter.calls[1].penalizer)
	assert.Empty(t, fitter.calls[1].features)
}

func TestPValueInstability(t *testing.T) {

	data := emptyData("age", "a", "b", "c", "time", "event")

	for _, tab := range []map[string]float64{
		{"a": 0.3, "b": 0.2},
		{"a": 0.3, "b": 0.2, "c": math.NaN()},
		{"a": 0.3, "b": 0.2, "c": 1.5},
	} {
		fitter := &scriptedFitter{pvalues: pvalueTable(tab)}
		res, err := EliminateByPValue(context.Background(), fitter, data, "time", "event", nil)
		assert.Nil(t, res)

		var fie *FitInstabilityError
		require.True(t, errors.As(err, &fie))
		assert.Equal(t, "c", fie.Feature)

		var fe *FitError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, MethodPValue, fe.Method)
		assert.Equal(t, 1, fe.Round)
		assert.Equal(t, 1, fitter.numCalls())
	}

	// A missing p-value for a mandatory feature does not matter.
	fitter := &scriptedFitter{pvalues: pvalueTable(map[string]float64{"a": 0.01, "b": 0.01, "c": 0.01})}
	_, err := EliminateByPValue(context.Background(), fitter, data, "time", "event", nil)
	assert.NoError(t, err)
}

func TestPValueFinalFitError(t *testing.T) {

	boom := errors.New("no convergence")
	fitter := &scriptedFitter{
		pvalues:         pvalueTable(map[string]float64{"a": 0.01, "b": 0.7}),
		failUnpenalized: map[string]error{key([]string{"a"}): boom},
	}
	_, err := EliminateByPValue(context.Background(), fitter, emptyData("a", "b", "time", "event"), "time", "event", nil)
	assert.ErrorIs(t, err, boom)

	// Intermediate fits are penalized, so only the final fit fails.
	var fe *FitError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 3, fe.Round)
}

func TestPValueNoCandidates(t *testing.T) {

	fitter := &scriptedFitter{}
	res, err := EliminateByPValue(context.Background(), fitter, emptyData("age", "sex", "time", "event"), "time", "event", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Rounds)
	require.Len(t, fitter.calls, 1)
	assert.Equal(t, 0.0, fitter.calls[0].penalizer)
	assert.Equal(t, []string{"age", "sex"}, res.Features)
}

func TestPValueIdempotent(t *testing.T) {

	data := emptyData("age", "a", "b", "c", "time", "event")
	fitter := &scriptedFitter{pvalues: pvalueTable(map[string]float64{"a": 0.01, "b": 0.5, "c": 0.2, "age": 0.9})}

	r1, err := EliminateByPValue(context.Background(), fitter, data, "time", "event", nil)
	require.NoError(t, err)
	r2, err := EliminateByPValue(context.Background(), fitter, data, "time", "event", nil)
	require.NoError(t, err)
	assert.Equal(t, r1.Features, r2.Features)
	assert.Equal(t, r1.Removed, r2.Removed)
	assert.Equal(t, []string{"age", "a", "b", "c", "time", "event"}, data.Names())

	// The mandatory rule is applied on every call.
	cfg := DefaultConfig()
	cfg.Mandatory = func(na string) bool { return na == "b" }
	r3, err := EliminateByPValue(context.Background(), fitter, data, "time", "event", cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, r3.Mandatory)
	assert.Equal(t, []string{"age", "c"}, r3.Removed)
	assert.Equal(t, []string{"b", "a"}, r3.Features)
}

func TestPValueCancel(t *testing.T) {

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fitter := &scriptedFitter{}
	_, err := EliminateByPValue(ctx, fitter, emptyData("a", "time", "event"), "time", "event", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fitter.numCalls())
}

func TestLogReporter(t *testing.T) {

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	fitter := &scriptedFitter{pvalues: pvalueTable(map[string]float64{"a": 0.01, "b": 0.5})}
	cfg := DefaultConfig()
	cfg.Reporter = Reporters(nil, LogReporter(log))

	_, err := EliminateByPValue(context.Background(), fitter, emptyData("a", "b", "time", "event"), "time", "event", cfg)
	require.NoError(t, err)

	var msgs []string
	var removed map[string]any
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		msgs = append(msgs, rec["msg"].(string))
		if rec["msg"] == "elimination removed" {
			removed = rec
		}
	}

	// Debug events are filtered out.
	assert.Equal(t, []string{"elimination removed", "elimination stopped"}, msgs)
	require.NotNil(t, removed)
	assert.Equal(t, "b", removed["feature"])
	assert.Equal(t, "pvalue", removed["method"])
	assert.Equal(t, 1.0, removed["round"])
}
