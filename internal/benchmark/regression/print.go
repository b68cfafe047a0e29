package regression

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/benchtrail/benchtrail/internal/benchmark"
)

// PrintResult writes a verdict table for the run.
func PrintResult(w io.Writer, group string, r *Result) {
	separator := strings.Repeat("=", 96)
	fmt.Fprintf(w, "\n%s\n", separator)
	fmt.Fprintf(w, "REGRESSION CHECK: %s (%s, baseline: %s)\n", group, r.Metric, r.Selector)
	fmt.Fprintf(w, "%s\n\n", separator)

	fmt.Fprintf(w, "%-48s | %-12s | %-12s | %-8s | %s\n", "Case", "Baseline", "Current", "Factor", "Verdict")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 96))
	for _, v := range r.Verdicts {
		printVerdictRow(w, r.Metric, v)
	}
	fmt.Fprintf(w, "\n")

	if len(r.Review) > 0 {
		fmt.Fprintf(w, "NEEDS REVIEW (unknown comparison direction):\n")
		for _, item := range r.Review {
			fmt.Fprintf(w, "  ? %s (unit %q)\n", item.Name, item.Unit)
		}
		fmt.Fprintf(w, "\n")
	}

	if len(r.Ignored) > 0 {
		fmt.Fprintf(w, "IGNORED BY POLICY: %s\n\n", strings.Join(r.Ignored, ", "))
	}

	fmt.Fprintf(w, "SUMMARY:\n")
	fmt.Fprintf(w, "  Regressed:             %d\n", r.Count(Regressed))
	fmt.Fprintf(w, "  Improved:              %d\n", r.Count(Improved))
	fmt.Fprintf(w, "  OK:                    %d\n", r.Count(OK))
	fmt.Fprintf(w, "  Insufficient baseline: %d\n", r.Count(InsufficientBaseline))
	fmt.Fprintf(w, "  Unparseable:           %d\n", r.Count(SkippedUnparseable))
	fmt.Fprintf(w, "%s\n\n", separator)
}

func printVerdictRow(w io.Writer, metric Metric, v Verdict) {
	baseline := "-"
	if v.Baseline != nil {
		baseline = FormatValue(metric, v.Baseline.Value)
	}
	current := "-"
	if v.Kind != SkippedUnparseable {
		current = FormatValue(metric, v.Current)
	}
	factor := "-"
	if v.Kind == OK || v.Kind == Regressed || v.Kind == Improved {
		factor = FormatFactor(v.Factor)
	}

	label := DescribeVerdict(v)
	if v.LowConfidence {
		label += " (low confidence)"
	}

	fmt.Fprintf(w, "%-48s | %-12s | %-12s | %-8s | %s\n",
		truncate(v.Name, 48), baseline, current, factor, label)
}

// DescribeVerdict renders a verdict kind with its factor, e.g.
// "regressed x2.50".
func DescribeVerdict(v Verdict) string {
	switch v.Kind {
	case Regressed:
		s := "regressed " + FormatFactor(v.Factor)
		if v.Fails {
			s += " ✗"
		}
		return s
	case Improved:
		return "improved " + FormatFactor(v.Factor) + " ✓"
	case SkippedUnparseable:
		return fmt.Sprintf("skipped: %v", v.Err)
	default:
		return v.Kind.String()
	}
}

// FormatValue formats a metric value for display.
func FormatValue(metric Metric, value float64) string {
	if metric == MetricMeanLatency {
		return benchmark.FormatSeconds(value)
	}
	return benchmark.FormatRate(value)
}

// FormatFactor formats a ratio as "x2.50".
func FormatFactor(f float64) string {
	if math.IsInf(f, 1) {
		return "x∞"
	}
	return fmt.Sprintf("x%.2f", f)
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	r := []rune(s)
	return "…" + string(r[len(r)-n+1:])
}
