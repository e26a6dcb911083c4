package riskscore

import (
	"fmt"
	"image/color"
	"math"
	"strconv"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/ploginovic/Uveitis-IMIDs/cohort"
)

// withCommas formats n with thousands separators.
func withCommas(n int) string {
	if n < 0 {
		return "-" + withCommas(-n)
	}
	s := strconv.Itoa(n)
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	return s
}

// groupValues returns the score values of every group, and their
// overall range.
func groupValues(groups []Group, col string) ([][]float64, float64, float64, error) {

	lo, hi := math.Inf(1), math.Inf(-1)
	vals := make([][]float64, len(groups))
	for i, g := range groups {
		v, err := g.Values(col)
		if err != nil {
			return nil, 0, 0, err
		}
		vals[i] = v
		if len(v) > 0 {
			lo = math.Min(lo, floats.Min(v))
			hi = math.Max(hi, floats.Max(v))
		}
	}
	if lo > hi {
		return nil, 0, 0, fmt.Errorf("riskscore: no values of '%s' in any group", col)
	}

	return vals, lo, hi, nil
}

// PlotDistributions draws the kernel density of the score in each
// group.  If xmax is finite the x axis ends there.  If res is not empty
// the comparisons are annotated in the lower left corner.
func PlotDistributions(groups []Group, col, title string, xmax float64, res []ComparisonResult) (*plot.Plot, error) {

	vals, lo, hi, err := groupValues(groups, col)
	if err != nil {
		return nil, err
	}
	pad := 0.1 * (hi - lo)
	grid := floats.Span(make([]float64, 200), lo-pad, hi+pad)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = col
	p.Y.Label.Text = "Density"

	for i, g := range groups {
		dens := KDE(vals[i], grid)
		if dens == nil {
			continue
		}
		pts := make(plotter.XYs, len(grid))
		for j := range grid {
			pts[j].X, pts[j].Y = grid[j], dens[j]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, err
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s, n=%s", g.Name, withCommas(len(vals[i]))), line)
	}
	p.Legend.Top = true

	if !math.IsInf(xmax, 0) && !math.IsNaN(xmax) {
		p.X.Max = xmax
	}

	if len(res) > 0 {
		lab, err := plotter.NewLabels(plotter.XYLabels{
			XYs:    plotter.XYs{{X: grid[0], Y: 0}},
			Labels: []string{Annotation(res)},
		})
		if err != nil {
			return nil, err
		}
		lab.Offset = vg.Point{X: vg.Points(4), Y: vg.Points(4)}
		p.Add(lab)
	}

	return p, nil
}

// ViolinOrder returns the display order of the groups in a violin plot.
func ViolinOrder(label string) []string {
	return []string{Controls, UveitisOnly, Both(label), DiseaseOnly(label)}
}

// PlotViolin draws a violin of the score in each group, in the given
// order, with a bar at the median.  Groups with fewer than two distinct
// values are left empty.
func PlotViolin(groups []Group, col, title string, order []string) (*plot.Plot, error) {

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Group"
	p.Y.Label.Text = col

	for k, name := range order {
		g, err := findGroup(groups, name)
		if err != nil {
			return nil, err
		}
		v, err := g.Values(col)
		if err != nil {
			return nil, err
		}
		bw := ScottBandwidth(v)
		if !(bw > 0) {
			continue
		}

		grid := floats.Span(make([]float64, 100), floats.Min(v)-3*bw, floats.Max(v)+3*bw)
		dens := KDE(v, grid)
		scale := 0.4 / floats.Max(dens)

		ring := make(plotter.XYs, 0, 2*len(grid))
		for j := range grid {
			ring = append(ring, plotter.XY{X: float64(k) - scale*dens[j], Y: grid[j]})
		}
		for j := len(grid) - 1; j >= 0; j-- {
			ring = append(ring, plotter.XY{X: float64(k) + scale*dens[j], Y: grid[j]})
		}
		poly, err := plotter.NewPolygon(ring)
		if err != nil {
			return nil, err
		}
		c := color.NRGBAModel.Convert(plotutil.Color(k)).(color.NRGBA)
		c.A = 160
		poly.Color = c
		p.Add(poly)

		med, err := stats.Median(v)
		if err != nil {
			return nil, err
		}
		bar, err := plotter.NewLine(plotter.XYs{{X: float64(k) - 0.1, Y: med}, {X: float64(k) + 0.1, Y: med}})
		if err != nil {
			return nil, err
		}
		bar.Width = vg.Points(2)
		p.Add(bar)
	}

	p.NominalX(order...)

	return p, nil
}

// PairSpec describes a scatter plot of two risk scores.
type PairSpec struct {

	// Score1 and Score2 are the scores on the x and y axes.
	Score1, Score2 string

	// Disease1 and Disease2 are indicator columns for the two diseases.
	Disease1, Disease2 string

	// Filter restricts the cohort to rows with the given values.
	Filter map[string]float64

	// Alpha of the points without either disease, and of the cases.
	AlphaOther, AlphaCases float64
}

// PlotPair draws two risk scores against each other for the cases of
// each disease and the remaining rows.  It also compares the cases of
// each disease with the remaining rows by Welch tests, on Score1 for
// Disease1 and on Score2 for Disease2.
func PlotPair(f *cohort.Frame, ps PairSpec) (*plot.Plot, []ComparisonResult, error) {

	for col, val := range ps.Filter {
		var err error
		f, err = f.Where(col, func(x float64) bool { return x == val })
		if err != nil {
			return nil, nil, err
		}
	}

	d1, err := f.Numeric(ps.Disease1)
	if err != nil {
		return nil, nil, err
	}
	d2, err := f.Numeric(ps.Disease2)
	if err != nil {
		return nil, nil, err
	}

	l1, l2 := cohort.DiseaseName(ps.Disease1), cohort.DiseaseName(ps.Disease2)
	groups := []Group{
		{"Other", f.Filter(func(i int) bool { return d1[i] != 1 && d2[i] != 1 })},
		{l2, f.Filter(func(i int) bool { return d2[i] == 1 })},
		{l1, f.Filter(func(i int) bool { return d1[i] == 1 })},
	}

	p := plot.New()
	p.Title.Text = "Scatter Plot of Genetic Risk Scores"
	p.X.Label.Text = ps.Score1
	p.Y.Label.Text = ps.Score2
	p.Add(plotter.NewGrid())

	colors := []color.NRGBA{{R: 0, G: 128, B: 0}, {R: 255, G: 165, B: 0}, {R: 0, G: 0, B: 255}}
	alphas := []float64{ps.AlphaOther, ps.AlphaCases, ps.AlphaCases}
	for i, g := range groups {
		x, err := g.Frame.Numeric(ps.Score1)
		if err != nil {
			return nil, nil, err
		}
		y, err := g.Frame.Numeric(ps.Score2)
		if err != nil {
			return nil, nil, err
		}
		var pts plotter.XYs
		for j := range x {
			if !math.IsNaN(x[j]) && !math.IsNaN(y[j]) {
				pts = append(pts, plotter.XY{X: x[j], Y: y[j]})
			}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, nil, err
		}
		c := colors[i]
		c.A = uint8(255 * clamp01(alphas[i]))
		sc.GlyphStyle.Color = c
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(2)
		p.Add(sc)
		p.Legend.Add(fmt.Sprintf("%s (n=%d)", g.Name, g.Frame.NumRows()), sc)
	}

	var res []ComparisonResult
	for _, c := range []struct {
		group Group
		col   string
	}{{groups[2], ps.Score1}, {groups[1], ps.Score2}} {
		a, err := c.group.Values(c.col)
		if err != nil {
			return nil, nil, err
		}
		b, err := groups[0].Values(c.col)
		if err != nil {
			return nil, nil, err
		}
		w, err := WelchTest(a, b)
		if err != nil {
			return nil, nil, fmt.Errorf("%s vs Other on %s: %w", c.group.Name, c.col, err)
		}
		res = append(res, ComparisonResult{
			Comparison:  Comparison{A: c.group.Name, B: "Other"},
			WelchResult: w,
			PAdjusted:   w.P,
		})
	}

	return p, res, nil
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
