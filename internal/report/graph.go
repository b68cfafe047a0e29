package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/benchtrail/benchtrail/internal/benchmark"
	"github.com/benchtrail/benchtrail/internal/benchmark/regression"
)

// GraphWidth is the length of the longest bar.
const GraphWidth = 50

type point struct {
	commit string
	value  float64
}

// WriteGraph prints one block of horizontal bars per case covering the last
// n runs (all runs when n <= 0). Bars are scaled to the case's largest value
// in the window. Cases that cannot be normalized in a run are left out of
// that run's row.
func WriteGraph(w io.Writer, group string, runs []benchmark.Run, metric regression.Metric, n int) {
	if n > 0 && len(runs) > n {
		runs = runs[len(runs)-n:]
	}

	var order []string
	series := make(map[string][]point)
	for _, run := range runs {
		for _, res := range benchmark.NormalizeRun(run) {
			if res.Err != nil {
				continue
			}
			name := res.Case.Name
			if _, ok := series[name]; !ok {
				order = append(order, name)
			}
			series[name] = append(series[name], point{
				commit: shortCommit(run.Commit.ID),
				value:  metric.Value(res.Normalized),
			})
		}
	}

	fmt.Fprintf(w, "\n=== TREND: %s (%s, last %d run(s)) ===\n", group, metric, len(runs))
	if len(order) == 0 {
		fmt.Fprintf(w, "(no comparable cases)\n")
		return
	}

	for _, name := range order {
		points := series[name]
		fmt.Fprintf(w, "\n%s\n", name)
		fmt.Fprintf(w, "%s\n", strings.Repeat("-", 70))

		maxValue := 0.0
		for _, p := range points {
			if p.value > maxValue {
				maxValue = p.value
			}
		}
		for _, p := range points {
			bar := 0
			if maxValue > 0 {
				bar = int(p.value / maxValue * GraphWidth)
			}
			fmt.Fprintf(w, "  %-7s %s %s\n", p.commit, strings.Repeat("█", bar), regression.FormatValue(metric, p.value))
		}
	}
}

func shortCommit(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	return id
}
