package selection

import (
	"context"
	"log/slog"
)

// Method identifies an elimination procedure.
type Method string

// The elimination procedures.
const (
	MethodAIC    Method = "aic"
	MethodPValue Method = "pvalue"
)

// EventKind is the type of a progress event.
type EventKind int

// The kinds of progress events.
const (
	// RoundStarted opens a round; Features holds the current candidates.
	RoundStarted EventKind = iota

	// SubsetFitted reports one fit; Score is its partial AIC, or the
	// largest candidate p-value.
	SubsetFitted

	// Accepted reports an accepted AIC reduction; Features is the new
	// best feature list.
	Accepted

	// Removed reports a feature removed by its p-value.
	Removed

	// Stopped reports that the search ended; Features is the result.
	Stopped
)

func (k EventKind) String() string {
	switch k {
	case RoundStarted:
		return "round_started"
	case SubsetFitted:
		return "subset_fitted"
	case Accepted:
		return "accepted"
	case Removed:
		return "removed"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Event describes the progress of an elimination.
type Event struct {
	Kind   EventKind
	Method Method

	// Round is 1-based; the initial full fit of EliminateByAIC is round 0.
	Round int

	Features []string
	Score    float64

	// Feature is the removed feature, for Removed and Accepted events.
	Feature string
}

// Reporter receives elimination events.
type Reporter func(Event)

// Reporters combines several reporters into one.  Nil reporters are
// skipped.
func Reporters(rs ...Reporter) Reporter {
	return func(ev Event) {
		for _, r := range rs {
			if r != nil {
				r(ev)
			}
		}
	}
}

// LogReporter writes events to a structured logger.  Individual fits are
// logged at debug level, everything else at info level.
func LogReporter(log *slog.Logger) Reporter {
	return func(ev Event) {
		level := slog.LevelInfo
		if ev.Kind == SubsetFitted || ev.Kind == RoundStarted {
			level = slog.LevelDebug
		}
		attrs := []slog.Attr{
			slog.String("method", string(ev.Method)),
			slog.Int("round", ev.Round),
			slog.Any("features", ev.Features),
		}
		switch ev.Kind {
		case SubsetFitted, Accepted, Stopped:
			attrs = append(attrs, slog.Float64("score", ev.Score))
		}
		if ev.Feature != "" {
			attrs = append(attrs, slog.String("feature", ev.Feature))
		}
		log.LogAttrs(context.Background(), level, "elimination "+ev.Kind.String(), attrs...)
	}
}
