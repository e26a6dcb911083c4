package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/ploginovic/Uveitis-IMIDs/cohort"
	"github.com/ploginovic/Uveitis-IMIDs/duration"
	"github.com/ploginovic/Uveitis-IMIDs/riskscore"
)

func mkdirFor(fname string) error {
	return os.MkdirAll(filepath.Dir(fname), 0o755)
}

func runGRS(cmd *cobra.Command, args []string) error {

	c := app.cfg.Cohort
	if c.Disease == "" || c.Score == "" {
		return fmt.Errorf("the grs command needs cohort.disease and cohort.score")
	}
	f, err := app.readCohort()
	if err != nil {
		return err
	}

	label := cohort.DiseaseName(c.Disease)
	rc := app.cfg.RiskScore
	groups, err := riskscore.DefineGroups(f, c.Disease, rc.UveitisCol, label)
	if err != nil {
		return err
	}

	res, err := riskscore.Compare(groups, c.Score, riskscore.DefaultComparisons(label), rc.Multiplier)
	if err != nil {
		return err
	}
	desc, err := riskscore.Describe(groups, c.Score)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "group\tn\tmean\tsd\tmedian")
	for _, s := range desc {
		fmt.Fprintf(tw, "%s\t%d\t%.3f\t%.3f\t%.3f\n", s.Group, s.N, s.Mean, s.SD, s.Median)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "comparison\tt\tdf\tadjusted p")
	for _, r := range res {
		fmt.Fprintf(tw, "%s\t%.3f\t%.1f\tp%s\n", r.Comparison, r.T, r.DF, riskscore.FormatPValue(r.PAdjusted))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	title := fmt.Sprintf("%s in %s and uveitis", c.Score, label)

	dp, err := riskscore.PlotDistributions(groups, c.Score, title, rc.XMax, res)
	if err != nil {
		return err
	}
	fname := app.outputPath("grs", fmt.Sprintf("%s_%s_kde.png", label, c.Score))
	if err := mkdirFor(fname); err != nil {
		return err
	}
	if err := dp.Save(8*vg.Inch, 5*vg.Inch, fname); err != nil {
		return err
	}

	vp, err := riskscore.PlotViolin(groups, c.Score, title, riskscore.ViolinOrder(label))
	if err != nil {
		return err
	}
	fname = app.outputPath("grs", fmt.Sprintf("%s_%s_violin.png", label, c.Score))
	if err := vp.Save(8*vg.Inch, 5*vg.Inch, fname); err != nil {
		return err
	}
	app.log.Info("saved risk score plots", "dir", filepath.Dir(fname))

	return nil
}

func runKM(cmd *cobra.Command, args []string) error {

	f, ps, err := app.cohortFrame()
	if err != nil {
		return err
	}
	if groupCol != "" && !slices.Contains(ps.Columns(), groupCol) {
		ps.Extra = append(slices.Clone(ps.Extra), groupCol)
	}
	g, err := cohort.Prepare(f, ps)
	if err != nil {
		return err
	}

	levels := []string{""}
	var cells []string
	if groupCol != "" {
		cells, _ = g.Column(groupCol)
		seen := make(map[string]bool)
		levels = levels[:0]
		for _, s := range cells {
			if s != "" && !seen[s] {
				seen[s] = true
				levels = append(levels, s)
			}
		}
		sort.Strings(levels)
	}

	plt := duration.NewSurvfuncRightPlotter().Width(6).Height(5).Title(ps.Event)
	w := cmd.OutOrStdout()
	for _, lev := range levels {
		sub := g
		label := "All"
		if groupCol != "" {
			sub = g.Filter(func(i int) bool { return cells[i] == lev })
			label = groupCol + "=" + lev
		}
		data, err := sub.Dataset(ps.Duration, ps.Event)
		if err != nil {
			return err
		}
		sf, err := duration.NewSurvfuncRight(data, ps.Duration, ps.Event).Done()
		if err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}
		if err := plt.Add(sf, label); err != nil {
			return err
		}
		ci, err := duration.NewCumincRight(data, ps.Duration, ps.Event).Done()
		if err != nil {
			return fmt.Errorf("%s: %w", label, err)
		}

		fmt.Fprintf(w, "%s: n=%d", label, data.NumObs())
		for _, t0 := range app.cfg.Calibration.Horizons {
			p, se := ci.ProbAt(1, t0)
			fmt.Fprintf(w, "  S(%g)=%.3f CI(%g)=%.3f (%.3f)", t0, sf.SurvProbAt(t0), t0, p, se)
		}
		fmt.Fprintln(w)
	}

	fname := app.outputPath("km", ps.Event+"_km.png")
	if groupCol != "" {
		fname = app.outputPath("km", fmt.Sprintf("%s_by_%s_km.png", ps.Event, groupCol))
	}
	if err := mkdirFor(fname); err != nil {
		return err
	}
	if err := plt.Plot().Save(fname); err != nil {
		return err
	}
	app.log.Info("saved Kaplan-Meier plot", "path", fname)

	return nil
}
