package calibration

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Plot draws the calibration curve against the line of perfect
// calibration, over a histogram of the predictions.  The histogram is
// scaled so that its tallest bar reaches half of the axis.  Event names
// the outcome in the axis label.
func (res *Result) Plot(event string) (*plot.Plot, error) {

	p := plot.New()

	axis := res.axisMax
	if axis == 0 {
		axis = 1
	}
	p.X.Min, p.X.Max = 0, axis
	p.Y.Min, p.Y.Max = 0, axis
	p.X.Label.Text = fmt.Sprintf("Predicted probability of t ≤ %g %s", res.T0, event)
	p.Y.Label.Text = fmt.Sprintf("Observed probability of %s at t ≤ %g", event, res.T0)

	bins := int(math.Ceil(math.Sqrt(float64(len(res.Predicted)))))
	hist, err := plotter.NewHist(plotter.Values(res.Predicted), bins)
	if err != nil {
		return nil, err
	}
	var top float64
	for _, b := range hist.Bins {
		top = math.Max(top, b.Weight)
	}
	for i := range hist.Bins {
		hist.Bins[i].Weight *= axis / (2 * top)
	}
	hist.FillColor = color.RGBA{R: 31, G: 119, B: 180, A: 77}
	hist.LineStyle.Width = 0
	p.Add(hist)

	ref, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: axis, Y: axis}})
	if err != nil {
		return nil, err
	}
	ref.Color = color.Black
	ref.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(ref)

	pts := make(plotter.XYs, len(res.GridPredicted))
	for i := range pts {
		pts[i].X = res.GridPredicted[i]
		pts[i].Y = res.GridObserved[i]
	}
	curve, err := plotter.NewLine(pts)
	if err != nil {
		return nil, err
	}
	curve.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	curve.Width = vg.Points(1.5)
	p.Add(curve)

	p.Legend.Add("Calibration curve", curve)
	p.Legend.Top = true
	p.Legend.Left = true

	return p, nil
}

// Save writes the calibration plot to a file, in the format given by
// the file extension.  Width and height are in inches.
func (res *Result) Save(fname, event string, width, height float64) error {

	p, err := res.Plot(event)
	if err != nil {
		return err
	}

	return p.Save(vg.Length(width)*vg.Inch, vg.Length(height)*vg.Inch, fname)
}
