package regression

import "github.com/benchtrail/benchtrail/internal/benchmark"

// Baseline is the reference value a new case is compared against.
type Baseline struct {
	// Value is in the units of the selected metric.
	Value float64

	// Commit is the id of the most recent run that contributed.
	Commit string

	// Runs is how many prior runs were averaged.
	Runs int

	// HasVariance is false when any contributing case lacked a stddev.
	HasVariance bool
}

// BaselineSelector picks the baseline for one case from prior history.
// History is ordered oldest first and never includes the run under test.
type BaselineSelector interface {
	Select(history []benchmark.Run, name string, metric Metric) (Baseline, bool)
	String() string
}

// PreviousRun uses the most recent prior run that has a parseable case with
// the same name.
type PreviousRun struct{}

func (PreviousRun) Select(history []benchmark.Run, name string, metric Metric) (Baseline, bool) {
	return windowMean(history, name, metric, 1)
}

func (PreviousRun) String() string { return "previous run" }

// WindowMean averages the last N prior runs that have a parseable case with
// the same name. Fewer than N matching runs still produce a baseline.
type WindowMean struct {
	N int
}

func (w WindowMean) Select(history []benchmark.Run, name string, metric Metric) (Baseline, bool) {
	n := w.N
	if n < 1 {
		n = 1
	}
	return windowMean(history, name, metric, n)
}

func (w WindowMean) String() string { return "mean of last runs" }

// SelectorForWindow returns PreviousRun for a window of one and WindowMean
// otherwise.
func SelectorForWindow(n int) BaselineSelector {
	if n <= 1 {
		return PreviousRun{}
	}
	return WindowMean{N: n}
}

func windowMean(history []benchmark.Run, name string, metric Metric, n int) (Baseline, bool) {
	var (
		sum float64
		b   = Baseline{HasVariance: true}
	)
	for i := len(history) - 1; i >= 0 && b.Runs < n; i-- {
		c, ok := history[i].Case(name)
		if !ok {
			continue
		}
		norm, err := benchmark.Normalize(c)
		if err != nil {
			continue
		}
		if b.Runs == 0 {
			b.Commit = history[i].Commit.ID
		}
		if norm.StddevSeconds == nil {
			b.HasVariance = false
		}
		sum += metric.Value(norm)
		b.Runs++
	}
	if b.Runs == 0 {
		return Baseline{}, false
	}
	b.Value = sum / float64(b.Runs)
	return b, true
}
