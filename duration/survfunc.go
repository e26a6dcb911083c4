package duration

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/ploginovic/Uveitis-IMIDs/statmodel"
)

// SurvfuncRight uses the method of Kaplan and Meier to estimate the
// survival distribution based on (possibly) right censored data.
// WeightVar and EntryVar are optional.
type SurvfuncRight struct {

	// The data used to perform the estimation.
	data *statmodel.Dataset

	// The name of the variable containing the minimum of the
	// event time and entry time.
	timeVar string

	// The name of a variable containing the status indicator,
	// which is 1 if the event occurred at the time given by
	// TimeVar, and 0 otherwise.  If empty, all cases are events.
	statusVar string

	// The name of a variable containing case weights, optional.
	weightVar string

	// The name of a variable containing entry times, optional.
	entryVar string

	// Times at which events occur, sorted.
	times []float64

	// Number of events at each time in Times.
	nEvents []float64

	// Number of people at risk just before each time in times
	nRisk []float64

	// The estimated survival function evaluated at each time in Times
	survProb []float64

	// The standard errors for the estimates in SurvProb.
	survProbSE []float64

	events map[float64]float64
	total  map[float64]float64
	entry  map[float64]float64
}

// NewSurvfuncRight creates a new value for fitting a survival function.
func NewSurvfuncRight(data *statmodel.Dataset, timevar, statusvar string) *SurvfuncRight {

	return &SurvfuncRight{
		data:      data,
		timeVar:   timevar,
		statusVar: statusvar,
	}
}

// Weight specifies the name of a case weight variable.
func (sf *SurvfuncRight) Weight(weight string) *SurvfuncRight {
	sf.weightVar = weight
	return sf
}

// Entry specifies the name of an entry time variable.
func (sf *SurvfuncRight) Entry(entry string) *SurvfuncRight {
	sf.entryVar = entry
	return sf
}

// Time returns the times at which the survival function changes.
func (sf *SurvfuncRight) Time() []float64 {
	return sf.times
}

// NumRisk returns the number of people at risk at each time point
// where the survival function changes.
func (sf *SurvfuncRight) NumRisk() []float64 {
	return sf.nRisk
}

// NumEvents returns the (weighted) number of events at each time point
// where the survival function changes.
func (sf *SurvfuncRight) NumEvents() []float64 {
	return sf.nEvents
}

// SurvProb returns the estimated survival probabilities at the points
// where the survival function changes.
func (sf *SurvfuncRight) SurvProb() []float64 {
	return sf.survProb
}

// SurvProbSE returns the standard errors of the estimated survival
// probabilities at the points where the survival function changes.
func (sf *SurvfuncRight) SurvProbSE() []float64 {
	return sf.survProbSE
}

// SurvProbAt evaluates the right-continuous step function at time t.
func (sf *SurvfuncRight) SurvProbAt(t float64) float64 {
	ii := sort.Search(len(sf.times), func(i int) bool { return sf.times[i] > t })
	if ii == 0 {
		return 1
	}
	return sf.survProb[ii-1]
}

func (sf *SurvfuncRight) column(na string, required bool) ([]float64, error) {
	if na == "" {
		if required {
			return nil, fmt.Errorf("SurvfuncRight: time variable not specified")
		}
		return nil, nil
	}
	x, ok := sf.data.Column(na)
	if !ok {
		return nil, fmt.Errorf("SurvfuncRight: variable '%s' not found", na)
	}
	return x, nil
}

func (sf *SurvfuncRight) scanData() error {

	sf.events = make(map[float64]float64)
	sf.total = make(map[float64]float64)
	sf.entry = make(map[float64]float64)

	time, err := sf.column(sf.timeVar, true)
	if err != nil {
		return err
	}
	status, err := sf.column(sf.statusVar, false)
	if err != nil {
		return err
	}
	weight, err := sf.column(sf.weightVar, false)
	if err != nil {
		return err
	}
	entry, err := sf.column(sf.entryVar, false)
	if err != nil {
		return err
	}

	if len(time) == 0 {
		return fmt.Errorf("SurvfuncRight: no observations")
	}

	for i, t := range time {

		if math.IsNaN(t) || t < 0 {
			return fmt.Errorf("SurvfuncRight: invalid time %v in row %d", t, i)
		}

		w := float64(1)
		if weight != nil {
			w = weight[i]
		}

		if status == nil || status[i] == 1 {
			sf.events[t] += w
		}
		sf.total[t] += w

		if entry != nil {
			if entry[i] >= t {
				return fmt.Errorf("SurvfuncRight: entry time in row %d is not before the event/censoring time", i)
			}
			sf.entry[entry[i]] += w
		}
	}

	return nil
}

func rollback(x []float64) {
	var z float64
	for i := len(x) - 1; i >= 0; i-- {
		z += x[i]
		x[i] = z
	}
}

func (sf *SurvfuncRight) eventstats() {

	// Get the sorted distinct times (event or censoring)
	sf.times = make([]float64, 0, len(sf.total))
	for t := range sf.total {
		sf.times = append(sf.times, t)
	}
	sort.Float64s(sf.times)

	// Get the weighted event count and risk set size at each time
	// point (in same order as Times).
	sf.nEvents = make([]float64, len(sf.times))
	sf.nRisk = make([]float64, len(sf.times))
	for i, t := range sf.times {
		sf.nEvents[i] = sf.events[t]
		sf.nRisk[i] = sf.total[t]
	}
	rollback(sf.nRisk)

	// Adjust for entry times
	if sf.entryVar != "" {
		entry := make([]float64, len(sf.times))
		for t, w := range sf.entry {
			ii := sort.SearchFloat64s(sf.times, t)
			if ii == len(sf.times) || t < sf.times[ii] {
				ii--
			}
			if ii >= 0 {
				entry[ii] += w
			}
		}
		rollback(entry)
		for i := 0; i < len(sf.nRisk); i++ {
			sf.nRisk[i] -= entry[i]
		}
	}
}

// compress removes times where no events occurred.
func (sf *SurvfuncRight) compress() {

	var ix []int
	for i := 0; i < len(sf.times); i++ {
		// Only retain events, except for the last point,
		// which is retained even if there are no events.
		if sf.nEvents[i] > 0 || i == len(sf.times)-1 {
			ix = append(ix, i)
		}
	}

	if len(ix) < len(sf.times) {
		for i, j := range ix {
			sf.times[i] = sf.times[j]
			sf.nEvents[i] = sf.nEvents[j]
			sf.nRisk[i] = sf.nRisk[j]
		}
		sf.times = sf.times[0:len(ix)]
		sf.nEvents = sf.nEvents[0:len(ix)]
		sf.nRisk = sf.nRisk[0:len(ix)]
	}
}

func (sf *SurvfuncRight) fit() {

	sf.survProb = make([]float64, len(sf.times))
	x := float64(1)
	for i := range sf.times {
		x *= 1 - sf.nEvents[i]/sf.nRisk[i]
		sf.survProb[i] = x
	}

	sf.survProbSE = make([]float64, len(sf.times))
	x = 0
	if sf.weightVar == "" {
		for i := range sf.times {
			d := sf.nEvents[i]
			n := sf.nRisk[i]
			x += d / (n * (n - d))
			sf.survProbSE[i] = math.Sqrt(x) * sf.survProb[i]
		}
	} else {
		for i := range sf.times {
			d := sf.nEvents[i]
			n := sf.nRisk[i]
			x += d / (n * n)
			sf.survProbSE[i] = math.Sqrt(x)
		}
	}
}

// Done indicates that the survival function has been configured and
// fits it.
func (sf *SurvfuncRight) Done() (*SurvfuncRight, error) {
	if err := sf.scanData(); err != nil {
		return nil, err
	}
	sf.eventstats()
	sf.compress()
	sf.fit()
	return sf, nil
}

// SurvfuncRightPlotter is used to plot a survival function.
type SurvfuncRightPlotter struct {
	plt *plot.Plot

	labels []string

	lines []*plotter.Line

	width  vg.Length
	height vg.Length
}

// NewSurvfuncRightPlotter returns a default SurvfuncRightPlotter.
func NewSurvfuncRightPlotter() *SurvfuncRightPlotter {

	return &SurvfuncRightPlotter{
		plt:    plot.New(),
		width:  4,
		height: 4,
	}
}

// Width sets the width of the survival function plot, in inches.
func (sp *SurvfuncRightPlotter) Width(w float64) *SurvfuncRightPlotter {
	sp.width = vg.Length(w)
	return sp
}

// Height sets the height of the survival function plot, in inches.
func (sp *SurvfuncRightPlotter) Height(h float64) *SurvfuncRightPlotter {
	sp.height = vg.Length(h)
	return sp
}

// Title sets the plot title.
func (sp *SurvfuncRightPlotter) Title(title string) *SurvfuncRightPlotter {
	sp.plt.Title.Text = title
	return sp
}

// steps returns the vertices of the survival step function.
func steps(ti, pr []float64) plotter.XYs {

	pts := make(plotter.XYs, 2*len(ti)+1)

	j := 0
	pts[j].X = 0
	pts[j].Y = 1
	j++

	for i := range ti {
		pts[j].X = ti[i]
		pts[j].Y = pts[j-1].Y
		j++
		pts[j].X = ti[i]
		pts[j].Y = pr[i]
		j++
	}

	return pts
}

// Add plots a given survival function to the plot.
func (sp *SurvfuncRightPlotter) Add(sf *SurvfuncRight, label string) error {

	line, err := plotter.NewLine(steps(sf.Time(), sf.SurvProb()))
	if err != nil {
		return err
	}
	line.Color = plotutil.Color(len(sp.lines))
	sp.lines = append(sp.lines, line)
	sp.labels = append(sp.labels, label)

	return nil
}

// Plot constructs the plot.
func (sp *SurvfuncRightPlotter) Plot() *SurvfuncRightPlotter {

	sp.plt.Y.Min = 0
	sp.plt.Y.Max = 1

	sp.plt.X.Label.Text = "Time"
	sp.plt.Y.Label.Text = "Proportion event-free"

	for i := range sp.lines {
		sp.plt.Add(sp.lines[i])
		if len(sp.lines) > 1 {
			sp.plt.Legend.Add(sp.labels[i], sp.lines[i])
		}
	}

	sp.plt.Legend.Top = false
	sp.plt.Legend.Left = true

	return sp
}

// GetPlotStruct returns the plotting structure for this plot.
func (sp *SurvfuncRightPlotter) GetPlotStruct() *plot.Plot {
	return sp.plt
}

// Save writes the plot to the given file.  The format is taken from the
// file extension.
func (sp *SurvfuncRightPlotter) Save(fname string) error {
	return sp.plt.Save(sp.width*vg.Inch, sp.height*vg.Inch, fname)
}
