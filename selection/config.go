package selection

import (
	"fmt"
)

// TieBreak selects among subsets with equal partial AIC in one round.
type TieBreak int

const (
	// TieFirst keeps the first subset in enumeration order.
	TieFirst TieBreak = iota

	// TieLast keeps the last subset in enumeration order.
	TieLast
)

// RefitPolicy controls the penalty of the final fit in EliminateByPValue.
type RefitPolicy int

const (
	// RefitUnpenalized refits the surviving features without a penalty.
	RefitUnpenalized RefitPolicy = iota

	// RefitPenalized refits the surviving features with the search penalty.
	RefitPenalized
)

// Config holds the settings of the elimination procedures.
type Config struct {

	// SignificanceLevel is the p-value at or above which a candidate is
	// removed by EliminateByPValue.
	SignificanceLevel float64

	// Penalizer is the ridge penalty of the intermediate fits in
	// EliminateByPValue.
	Penalizer float64

	// AICMargin is the improvement in partial AIC required to accept a
	// reduction in EliminateByAIC.
	AICMargin float64

	// Workers bounds the number of concurrent fits in one round of
	// EliminateByAIC.
	Workers int

	// TieBreak resolves equal AIC values within a round.
	TieBreak TieBreak

	// FinalRefit is the penalty policy of the final EliminateByPValue fit.
	FinalRefit RefitPolicy

	// Mandatory reports whether a covariate is protected from removal.
	// If nil, DefaultMandatory is used.
	Mandatory func(string) bool

	// Reporter receives progress events, if not nil.  It is always
	// called from the goroutine running the elimination.
	Reporter Reporter
}

// DefaultConfig returns the default elimination settings.
func DefaultConfig() *Config {
	return &Config{
		SignificanceLevel: 0.05,
		Penalizer:         0.002,
		AICMargin:         2,
		Workers:           1,
		TieBreak:          TieFirst,
		FinalRefit:        RefitUnpenalized,
		Mandatory:         DefaultMandatory,
	}
}

func (c *Config) validate() error {

	switch {
	case !(c.SignificanceLevel > 0 && c.SignificanceLevel <= 1):
		return fmt.Errorf("selection: significance level must be in (0, 1], got %v", c.SignificanceLevel)
	case !(c.Penalizer >= 0):
		return fmt.Errorf("selection: penalizer must be non-negative, got %v", c.Penalizer)
	case !(c.AICMargin >= 0):
		return fmt.Errorf("selection: AIC margin must be non-negative, got %v", c.AICMargin)
	case c.Workers < 1:
		return fmt.Errorf("selection: workers must be at least 1, got %d", c.Workers)
	case c.TieBreak != TieFirst && c.TieBreak != TieLast:
		return fmt.Errorf("selection: unknown tie-break %d", c.TieBreak)
	case c.FinalRefit != RefitUnpenalized && c.FinalRefit != RefitPenalized:
		return fmt.Errorf("selection: unknown refit policy %d", c.FinalRefit)
	}

	return nil
}

func (c *Config) mandatory() func(string) bool {
	if c.Mandatory == nil {
		return DefaultMandatory
	}
	return c.Mandatory
}

func (c *Config) report(ev Event) {
	if c.Reporter != nil {
		c.Reporter(ev)
	}
}
