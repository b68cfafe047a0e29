// Package report renders benchmark history and verdicts for people: a
// markdown job summary, a CSV export for external analysis, and ASCII trend
// bars for terminals.
package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/benchtrail/benchtrail/internal/benchmark"
	"github.com/benchtrail/benchtrail/internal/benchmark/regression"
)

// Summary is what WriteSummary reports on.
type Summary struct {
	Group  string
	Run    benchmark.Run
	Result *regression.Result

	// DryRun marks summaries produced without writing history.
	DryRun bool
}

// WriteSummary writes a markdown job summary with a verdict table, the
// review list and low-confidence notes.
func WriteSummary(w io.Writer, s Summary) error {
	var b strings.Builder
	r := s.Result

	fmt.Fprintf(&b, "## Benchmark results: %s\n\n", s.Group)
	fmt.Fprintf(&b, "**Commit:** %s", commitRef(s.Run.Commit))
	if s.Run.Commit.Message != "" {
		fmt.Fprintf(&b, " %s", firstLine(s.Run.Commit.Message))
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "**Baseline:** %s, comparing %s\n\n", r.Selector, r.Metric)
	if s.DryRun {
		b.WriteString("_Dry run: history was not modified._\n\n")
	}

	switch {
	case r.ShouldFail:
		fmt.Fprintf(&b, "> [!CAUTION]\n> %d case(s) regressed past the failure threshold.\n\n", countFailing(r))
	case r.HasRegression:
		fmt.Fprintf(&b, "> [!WARNING]\n> %d case(s) regressed.\n\n", r.Count(regression.Regressed))
	default:
		b.WriteString("No regressions detected.\n\n")
	}

	if len(r.Verdicts) > 0 {
		b.WriteString("| Case | Baseline | Current | Factor | Verdict |\n")
		b.WriteString("|---|---:|---:|---:|---|\n")
		for _, v := range r.Verdicts {
			baseline, current, factor := "-", "-", "-"
			if v.Baseline != nil {
				baseline = regression.FormatValue(r.Metric, v.Baseline.Value)
			}
			if v.Kind != regression.SkippedUnparseable {
				current = regression.FormatValue(r.Metric, v.Current)
			}
			if v.Kind == regression.OK || v.Kind == regression.Regressed || v.Kind == regression.Improved {
				factor = regression.FormatFactor(v.Factor)
			}
			label := regression.DescribeVerdict(v)
			if v.LowConfidence {
				label += " †"
			}
			fmt.Fprintf(&b, "| `%s` | %s | %s | %s | %s |\n",
				escapeCell(v.Name), baseline, current, factor, escapeCell(label))
		}
		b.WriteString("\n")
	}

	if lowConfidence(r) {
		b.WriteString("† No variance was reported for this case or its baseline, so the comparison is low confidence.\n\n")
	}

	if len(r.Review) > 0 {
		b.WriteString("### Needs review\n\n")
		b.WriteString("These cases use a unit whose better direction is unknown and were not compared:\n\n")
		for _, item := range r.Review {
			fmt.Fprintf(&b, "- `%s` (unit `%s`)\n", item.Name, item.Unit)
		}
		b.WriteString("\n")
	}

	if len(r.Ignored) > 0 {
		fmt.Fprintf(&b, "Ignored by policy: %s\n\n", strings.Join(r.Ignored, ", "))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// AppendSummaryFile appends a summary to path, which is typically
// $GITHUB_STEP_SUMMARY. An empty path is a no-op.
func AppendSummaryFile(path string, s Summary) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open summary file: %w", err)
	}
	if err := WriteSummary(f, s); err != nil {
		f.Close()
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return f.Close()
}

func countFailing(r *regression.Result) int {
	n := 0
	for _, v := range r.Verdicts {
		if v.Fails {
			n++
		}
	}
	return n
}

func lowConfidence(r *regression.Result) bool {
	for _, v := range r.Verdicts {
		if v.LowConfidence {
			return true
		}
	}
	return false
}

func commitRef(c benchmark.Commit) string {
	id := c.ID
	if len(id) > 7 {
		id = id[:7]
	}
	if c.URL == "" {
		return "`" + id + "`"
	}
	return fmt.Sprintf("[`%s`](%s)", id, c.URL)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
