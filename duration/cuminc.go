package duration

import (
	"fmt"
	"math"
	"sort"

	"github.com/ploginovic/Uveitis-IMIDs/statmodel"
)

// CumincRight estimates the cumulative incidence functions of
// competing events from right censored data (Aalen-Johansen).
type CumincRight struct {

	// The data used to perform the estimation.
	data *statmodel.Dataset

	// The name of the variable containing the event or censoring
	// time.
	timeVar string

	// The name of a variable containing the status indicator,
	// which is 1, 2, ... for the event types, and 0 for a
	// censored outcome.
	statusVar string

	// The name of a variable containing case weights, optional.
	weightVar string

	// The name of a variable containing entry times, optional.
	entryVar string

	// Times at which events of any type occur, sorted.
	times []float64

	// Number of events of each type at each time in times.
	nEvents [][]float64

	// Number of events of any type at each time in times.
	nEventsAll []float64

	// Risk set size just before each time in times.
	nRisk []float64

	// The all-cause survival function.
	survAll []float64

	// probs[k] is the cumulative incidence of events with status k+1.
	probs [][]float64

	probsSE [][]float64

	events    []map[float64]float64
	eventsall map[float64]float64
	total     map[float64]float64
	entry     map[float64]float64
}

// NewCumincRight creates a CumincRight value that can be used to estimate
// the cumulative incidence function from the given data.
func NewCumincRight(data *statmodel.Dataset, timevar, statusvar string) *CumincRight {
	return &CumincRight{
		data:      data,
		timeVar:   timevar,
		statusVar: statusvar,
	}
}

// Weight specifies a variable that provides case weights.
func (ci *CumincRight) Weight(weightvar string) *CumincRight {
	ci.weightVar = weightvar
	return ci
}

// Entry specifies a variable that provides entry times.
func (ci *CumincRight) Entry(entryvar string) *CumincRight {
	ci.entryVar = entryvar
	return ci
}

// Time returns the times at which events of any type occur.
func (ci *CumincRight) Time() []float64 {
	return ci.times
}

// NumRisk returns the risk set size at each event time.
func (ci *CumincRight) NumRisk() []float64 {
	return ci.nRisk
}

// NumCauses returns the number of event types.
func (ci *CumincRight) NumCauses() int {
	return len(ci.probs)
}

// Prob returns the cumulative incidence of events with status
// cause (1, 2, ...) at each event time.
func (ci *CumincRight) Prob(cause int) []float64 {
	return ci.probs[cause-1]
}

// ProbSE returns the standard errors of Prob(cause).
func (ci *CumincRight) ProbSE(cause int) []float64 {
	return ci.probsSE[cause-1]
}

// ProbAt returns the cumulative incidence of a cause at time t, and its
// standard error.  Both are zero for a cause that never occurs.
func (ci *CumincRight) ProbAt(cause int, t float64) (float64, float64) {
	if cause < 1 || cause > len(ci.probs) {
		return 0, 0
	}
	ii := sort.Search(len(ci.times), func(i int) bool { return ci.times[i] > t })
	if ii == 0 {
		return 0, 0
	}
	return ci.probs[cause-1][ii-1], ci.probsSE[cause-1][ii-1]
}

func (ci *CumincRight) column(na string, required bool) ([]float64, error) {
	if na == "" {
		if required {
			return nil, fmt.Errorf("CumincRight: time and status variables are required")
		}
		return nil, nil
	}
	x, ok := ci.data.Column(na)
	if !ok {
		return nil, fmt.Errorf("CumincRight: variable '%s' not found", na)
	}
	return x, nil
}

func (ci *CumincRight) scanData() error {

	ci.eventsall = make(map[float64]float64)
	ci.total = make(map[float64]float64)
	ci.entry = make(map[float64]float64)

	time, err := ci.column(ci.timeVar, true)
	if err != nil {
		return err
	}
	status, err := ci.column(ci.statusVar, true)
	if err != nil {
		return err
	}
	weight, err := ci.column(ci.weightVar, false)
	if err != nil {
		return err
	}
	entry, err := ci.column(ci.entryVar, false)
	if err != nil {
		return err
	}

	if len(time) == 0 {
		return fmt.Errorf("CumincRight: no observations")
	}

	for i, t := range time {

		if math.IsNaN(t) || t < 0 {
			return fmt.Errorf("CumincRight: invalid time %v in row %d", t, i)
		}

		w := float64(1)
		if weight != nil {
			w = weight[i]
		}

		k := int(status[i])
		if float64(k) != status[i] || k < 0 {
			return fmt.Errorf("CumincRight: status %v in row %d is not a non-negative integer", status[i], i)
		}

		// Make room for an event type we have not yet seen
		for k > len(ci.events) {
			ci.events = append(ci.events, make(map[float64]float64))
		}

		if k > 0 {
			ci.events[k-1][t] += w
			ci.eventsall[t] += w
		}
		ci.total[t] += w

		if entry != nil {
			if entry[i] >= t {
				return fmt.Errorf("CumincRight: entry time in row %d is not before the event/censoring time", i)
			}
			ci.entry[entry[i]] += w
		}
	}

	if len(ci.eventsall) == 0 {
		return fmt.Errorf("CumincRight: no events")
	}

	return nil
}

func (ci *CumincRight) eventstats() {

	// Get the sorted times (event or censoring)
	ci.times = make([]float64, 0, len(ci.total))
	for t := range ci.total {
		ci.times = append(ci.times, t)
	}
	sort.Float64s(ci.times)

	// Get the weighted event count and risk set size at each time
	// point (in same order as times).
	ci.nEventsAll = make([]float64, len(ci.times))
	ci.nRisk = make([]float64, len(ci.times))
	for i, t := range ci.times {
		ci.nEventsAll[i] = ci.eventsall[t]
		ci.nRisk[i] = ci.total[t]
	}
	rollback(ci.nRisk)

	// Adjust for entry times
	if ci.entryVar != "" {
		entry := make([]float64, len(ci.times))
		for t, w := range ci.entry {
			ii := sort.SearchFloat64s(ci.times, t)
			if ii == len(ci.times) || t < ci.times[ii] {
				ii--
			}
			if ii >= 0 {
				entry[ii] += w
			}
		}
		rollback(entry)
		for i := range ci.nRisk {
			ci.nRisk[i] -= entry[i]
		}
	}
}

// compress removes times where no events occurred.
func (ci *CumincRight) compress() {

	var ix []int
	for i := range ci.times {
		if ci.nEventsAll[i] > 0 {
			ix = append(ix, i)
		}
	}

	for i, j := range ix {
		ci.times[i] = ci.times[j]
		ci.nEventsAll[i] = ci.nEventsAll[j]
		ci.nRisk[i] = ci.nRisk[j]
	}
	ci.times = ci.times[0:len(ix)]
	ci.nEventsAll = ci.nEventsAll[0:len(ix)]
	ci.nRisk = ci.nRisk[0:len(ix)]
}

func (ci *CumincRight) fitall() {

	ci.survAll = make([]float64, len(ci.times))

	x := float64(1)
	for i := range ci.times {
		x *= 1 - ci.nEventsAll[i]/ci.nRisk[i]
		ci.survAll[i] = x
	}
}

func (ci *CumincRight) fit() {

	for _, ev := range ci.events {

		// The number of events of this cause at each time.
		evr := make([]float64, len(ci.times))
		for t, n := range ev {
			evr[sort.SearchFloat64s(ci.times, t)] += n
		}

		cir := make([]float64, len(ci.times))
		x := float64(0)
		for i, y := range evr {
			v := y / ci.nRisk[i]
			if i > 0 {
				v *= ci.survAll[i-1]
			}
			x += v
			cir[i] = x
		}

		ci.probs = append(ci.probs, cir)
		ci.nEvents = append(ci.nEvents, evr)
	}
}

// fitse computes delta method standard errors.
func (ci *CumincRight) fitse() {

	for k := range ci.probs {

		var x1, x2, x3, x4, x5, x6 float64
		se := make([]float64, len(ci.times))

		for i := range ci.times {

			q := ci.probs[k][i]
			da := ci.nEventsAll[i]
			d := ci.nEvents[k][i]
			n := ci.nRisk[i]
			s := float64(1)
			if i > 0 {
				s = ci.survAll[i-1]
			}
			s /= n

			ra := da / (n * (n - da))
			x1 += ra
			x2 += q * ra
			x3 += q * q * ra

			ra = (n - d) * d / n
			x4 += s * s * ra

			ra = s * d / n
			x5 += ra
			x6 += q * ra

			v := q*q*x1 - 2*q*x2 + x3 + x4 - 2*q*x5 + 2*x6
			se[i] = math.Sqrt(math.Max(v, 0))
		}

		ci.probsSE = append(ci.probsSE, se)
	}
}

// Done completes construction and computes all results.
func (ci *CumincRight) Done() (*CumincRight, error) {
	if err := ci.scanData(); err != nil {
		return nil, err
	}
	ci.eventstats()
	ci.compress()
	ci.fitall()
	ci.fit()
	ci.fitse()
	return ci, nil
}
