// Package metrics exports Prometheus metrics of feature elimination
// runs.  A command line run writes them to a node exporter textfile when
// it finishes.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ploginovic/Uveitis-IMIDs/selection"
	"github.com/ploginovic/Uveitis-IMIDs/statmodel"
)

const namespace = "survsel"

// Elimination holds the metrics of elimination runs, labeled by method.
type Elimination struct {
	Rounds   *prometheus.CounterVec
	Fits     *prometheus.CounterVec
	Removed  *prometheus.CounterVec
	Score    *prometheus.GaugeVec
	Features *prometheus.GaugeVec

	// FitSeconds and FitErrors are recorded by InstrumentFitter.
	FitSeconds prometheus.Histogram
	FitErrors  prometheus.Counter
}

// New creates the elimination metrics and registers them with reg.
func New(reg prometheus.Registerer) *Elimination {

	f := promauto.With(reg)

	return &Elimination{
		Rounds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "elimination",
			Name:      "rounds_total",
			Help:      "Elimination rounds started",
		}, []string{"method"}),
		Fits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "elimination",
			Name:      "fits_total",
			Help:      "Models fit during elimination",
		}, []string{"method"}),
		Removed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "elimination",
			Name:      "removed_total",
			Help:      "Features removed by elimination",
		}, []string{"method"}),
		Score: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "elimination",
			Name:      "final_score",
			Help:      "Partial AIC of the final model",
		}, []string{"method"}),
		Features: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "elimination",
			Name:      "final_features",
			Help:      "Number of features in the final model",
		}, []string{"method"}),
		FitSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fit",
			Name:      "duration_seconds",
			Help:      "Time to fit one proportional hazards model",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
		}),
		FitErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fit",
			Name:      "errors_total",
			Help:      "Failed model fits",
		}),
	}
}

// Reporter returns a selection.Reporter that records events.
func (m *Elimination) Reporter() selection.Reporter {
	return func(ev selection.Event) {
		method := string(ev.Method)
		switch ev.Kind {
		case selection.RoundStarted:
			m.Rounds.WithLabelValues(method).Inc()
		case selection.SubsetFitted:
			m.Fits.WithLabelValues(method).Inc()
		case selection.Removed:
			m.Removed.WithLabelValues(method).Inc()
		case selection.Accepted:
			if ev.Feature != "" {
				m.Removed.WithLabelValues(method).Inc()
			}
		case selection.Stopped:
			m.Score.WithLabelValues(method).Set(ev.Score)
			m.Features.WithLabelValues(method).Set(float64(len(ev.Features)))
		}
	}
}

type instrumented struct {
	fitter selection.Fitter
	m      *Elimination
}

// InstrumentFitter wraps a fitter to record fit durations and failures.
func (m *Elimination) InstrumentFitter(f selection.Fitter) selection.Fitter {
	return &instrumented{fitter: f, m: m}
}

func (in *instrumented) Fit(ctx context.Context, data *statmodel.Dataset, durationCol, eventCol string, features []string, penalizer float64) (selection.Model, error) {

	start := time.Now()
	model, err := in.fitter.Fit(ctx, data, durationCol, eventCol, features, penalizer)
	in.m.FitSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		in.m.FitErrors.Inc()
	}

	return model, err
}

// WriteTextfile writes the metrics gathered by g to a file in the text
// exposition format.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	return prometheus.WriteToTextfile(path, g)
}
