package main

import (
	"fmt"
	"io"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/irfndi/mmm-collinearity/internal/models"
)

func formatMetric(m models.Metric) string {
	v := m.Float()
	if math.IsInf(v, 1) {
		return "inf"
	}
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n%s\n", title, strings.Repeat("=", len(title)))
}

func printSummary(w io.Writer, ds *models.MarketingDataset, s *models.DatasetSummary) {
	label := ds.Scenario
	if label == "" {
		label = "custom"
	}
	section(w, "Dataset")
	fmt.Fprintf(w, "scenario=%s rows=%d channels=%d fingerprint=%s\n", label, s.Rows, len(s.Channels), s.Fingerprint)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "column\tmean\tstd\tmin\tmax\tshare")
	for _, c := range s.Channels {
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.1f%%\n", c.Name, c.Mean, c.StdDev, c.Min, c.Max, 100*s.SpendShare[c.Name])
	}
	o := s.Outcome
	fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t-\n", o.Name, o.Mean, o.StdDev, o.Min, o.Max)
	_ = tw.Flush()

	if n := len(s.MovingAverage); n > 0 {
		fmt.Fprintf(w, "%s %d-period moving average: first=%.0f last=%.0f\n", o.Name, s.Window, s.MovingAverage[0], s.MovingAverage[n-1])
	}
}

func printDiagnostics(w io.Writer, r *models.DiagnosticResult) {
	section(w, "Collinearity diagnostics")

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "channel\tvif\tseverity")
	for _, d := range r.ChannelDiagnostics {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Channel, formatMetric(d.VIF), d.Severity)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "max VIF: %s  condition number: %s\n", formatMetric(r.MaxVIF), formatMetric(r.ConditionNumber))
	if len(r.ProblematicPairs) == 0 {
		fmt.Fprintf(w, "no pairs with |r| > %.2f\n", r.Threshold)
	}
	for _, p := range r.ProblematicPairs {
		fmt.Fprintf(w, "  %s ~ %s: r=%.3f\n", p.ChannelA, p.ChannelB, p.Correlation)
	}
	fmt.Fprintln(w, r.Recommendation)
}

func printBootstrap(w io.Writer, r *models.BootstrapResult) {
	section(w, fmt.Sprintf("Bootstrap stability (%s, %d samples)", r.Method.Label(), r.Iterations))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "channel\tmean\tstd\tmin\tmax\tcv%\tstability\tsign flips")
	for _, d := range r.Distributions {
		s := d.Summary
		cv := fmt.Sprintf("%.1f", s.CV)
		if s.ZeroMean {
			cv = "n/a"
		}
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.3f\t%.3f\t%s\t%s\t%v\n", d.Channel, s.Mean, s.StdDev, s.Min, s.Max, cv, s.Stability, d.SignFlips())
	}
	_ = tw.Flush()
}

func printComparison(w io.Writer, r *models.ComparisonResult) {
	section(w, fmt.Sprintf("Method comparison (train=%d, test=%d)", r.TrainRows, r.TestRows))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := append([]string{"method", "train R2", "test R2", "gap", "non-zero"}, r.Channels...)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, rec := range r.Records {
		cells := []string{
			rec.Label,
			fmt.Sprintf("%.3f", rec.TrainR2),
			fmt.Sprintf("%.3f", rec.TestR2),
			fmt.Sprintf("%.3f", rec.OverfitGap),
			fmt.Sprintf("%d", rec.NonZero),
		}
		for _, ch := range r.Channels {
			cells = append(cells, fmt.Sprintf("%.3f", rec.Coefficients[ch]))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	_ = tw.Flush()

	if best, ok := r.Best(); ok {
		fmt.Fprintf(w, "best test R2: %s (%.3f)\n", best.Label, best.TestR2)
	}
	if pcr, ok := r.Record(models.MethodPCR); ok && len(pcr.ExplainedVariance) > 0 {
		total := pcr.TotalExplainedVariance()
		parts := make([]string, len(pcr.ExplainedVariance))
		for i, v := range pcr.ExplainedVariance {
			parts[i] = fmt.Sprintf("PC%d %.1f%%", i+1, 100*v)
		}
		fmt.Fprintf(w, "PCA variance explained: %.1f%% (%s)\n", 100*total, strings.Join(parts, ", "))
		if total < models.LowExplainedVariance {
			fmt.Fprintf(w, "warning: kept components explain less than %.0f%% of channel variance\n", 100*models.LowExplainedVariance)
		}
	}
}

func printSimulation(w io.Writer, r *models.PairSimulation) {
	section(w, fmt.Sprintf("Two-channel simulation (rho=%.2f, n=%d)", r.Params.Correlation, r.Params.SampleSize))
	fmt.Fprintf(w, "sample correlation: %.3f (%s)\n", r.SampleCorrelation, r.CorrelationLevel)
	fmt.Fprintf(w, "theoretical VIF: %s\n", formatMetric(r.TheoreticalVIF))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "coefficient\ttrue\testimated\terror%")
	fmt.Fprintf(tw, "A\t%.3f\t%.3f\t%.1f\n", r.Params.TrueCoef1, r.EstimatedCoef1, r.Coef1ErrorPct)
	fmt.Fprintf(tw, "B\t%.3f\t%.3f\t%.1f\n", r.Params.TrueCoef2, r.EstimatedCoef2, r.Coef2ErrorPct)
	_ = tw.Flush()
	fmt.Fprintf(w, "R2: %.3f  residual std: %.3f\n", r.RSquared, r.Residuals.StdDev)
}
