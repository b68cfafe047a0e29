// Package regression decides, case by case, whether a newly appended run is
// slower than its history.
//
// Evaluation of each case goes through three stages: baseline selection
// (pluggable via BaselineSelector), comparison in the direction implied by the
// case unit, and a verdict. The detector is pure; failing a build or posting
// alerts is left to the caller.
package regression

import (
	"fmt"
	"math"

	"github.com/benchtrail/benchtrail/internal/benchmark"
)

// DefaultAlertThreshold flags a case once it is twice as slow as baseline.
const DefaultAlertThreshold = 2.0

// Kind enumerates verdict outcomes.
type Kind int

const (
	OK Kind = iota
	Regressed
	Improved
	InsufficientBaseline
	SkippedUnparseable
)

func (k Kind) String() string {
	switch k {
	case OK:
		return "ok"
	case Regressed:
		return "regressed"
	case Improved:
		return "improved"
	case InsufficientBaseline:
		return "insufficient-baseline"
	case SkippedUnparseable:
		return "skipped-unparseable"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Verdict is the outcome for one case of the run under test.
type Verdict struct {
	Name string
	Unit string
	Kind Kind

	// Factor is how many times worse the case got (Regressed, OK) or how
	// many times better (Improved). Always >= 0; 1 means unchanged.
	Factor float64

	// Current is the new value in metric units.
	Current float64

	// Baseline is nil for InsufficientBaseline and SkippedUnparseable.
	Baseline *Baseline

	// LowConfidence is set when the new case or its baseline carried no
	// variance information.
	LowConfidence bool

	// Threshold is the alert threshold applied to this case.
	Threshold float64

	// Fails is set for regressions at or beyond the fail threshold.
	Fails bool

	// Err holds the parse failure behind SkippedUnparseable.
	Err error
}

// ReviewItem is a case excluded from verdicts because its direction could
// not be determined.
type ReviewItem struct {
	Name string
	Unit string
	Err  error
}

// Result is the detector output for a whole run.
type Result struct {
	// Verdicts follow the run's case order.
	Verdicts []Verdict

	// Review lists cases that need a human to classify their unit.
	Review []ReviewItem

	// Ignored lists cases excluded by policy overrides.
	Ignored []string

	Metric   Metric
	Selector string

	HasRegression bool
	ShouldFail    bool
}

// Count returns how many verdicts have the given kind.
func (r *Result) Count(k Kind) int {
	n := 0
	for _, v := range r.Verdicts {
		if v.Kind == k {
			n++
		}
	}
	return n
}

// Regressions returns only the regressed verdicts.
func (r *Result) Regressions() []Verdict {
	var out []Verdict
	for _, v := range r.Verdicts {
		if v.Kind == Regressed {
			out = append(out, v)
		}
	}
	return out
}

// Detector evaluates runs against their history under a Policy.
type Detector struct {
	policy Policy
}

// NewDetector validates the policy and fills in defaults.
func NewDetector(policy Policy) (*Detector, error) {
	p, err := policy.withDefaults()
	if err != nil {
		return nil, err
	}
	return &Detector{policy: p}, nil
}

// Policy returns the effective policy after defaults.
func (d *Detector) Policy() Policy {
	return d.policy
}

// Detect compares every case of run against history. History must be
// ordered oldest first and must not contain run itself.
func (d *Detector) Detect(history []benchmark.Run, run benchmark.Run) Result {
	result := Result{
		Metric:   d.policy.Metric,
		Selector: d.policy.Baseline.String(),
	}

	for _, c := range run.Benches {
		override := d.policy.Overrides[c.Name]
		if override.Ignore {
			result.Ignored = append(result.Ignored, c.Name)
			continue
		}

		dir, err := DirectionFor(c.Name, c.Unit, d.policy.Metric)
		if err != nil {
			result.Review = append(result.Review, ReviewItem{Name: c.Name, Unit: c.Unit, Err: err})
			continue
		}

		v := d.evaluate(history, c, dir, override)
		if v.Kind == Regressed {
			result.HasRegression = true
			if v.Fails {
				result.ShouldFail = true
			}
		}
		result.Verdicts = append(result.Verdicts, v)
	}

	return result
}

func (d *Detector) evaluate(history []benchmark.Run, c benchmark.Case, dir Direction, override CaseOverride) Verdict {
	alert, fail := d.policy.thresholdsFor(override)
	v := Verdict{Name: c.Name, Unit: c.Unit, Threshold: alert}

	norm, err := benchmark.Normalize(c)
	if err != nil {
		v.Kind = SkippedUnparseable
		v.Err = err
		return v
	}
	v.Current = d.policy.Metric.Value(norm)

	base, ok := d.policy.Baseline.Select(history, c.Name, d.policy.Metric)
	if !ok {
		v.Kind = InsufficientBaseline
		return v
	}
	v.Baseline = &base
	v.LowConfidence = norm.StddevSeconds == nil || !base.HasVariance

	worse, better := compare(base.Value, v.Current, dir)
	switch {
	case worse >= alert:
		v.Kind = Regressed
		v.Factor = worse
		v.Fails = worse >= fail
	case better >= alert:
		v.Kind = Improved
		v.Factor = better
	default:
		v.Kind = OK
		v.Factor = worse
	}
	return v
}

// compare returns how many times worse and how many times better current is
// relative to baseline. Zero values map to +Inf on the side they favour.
func compare(baseline, current float64, dir Direction) (worse, better float64) {
	if dir == SmallerIsBetter {
		baseline, current = current, baseline
	}
	// From here a bigger current is better.
	switch {
	case baseline == 0 && current == 0:
		return 1, 1
	case current == 0:
		return math.Inf(1), 0
	case baseline == 0:
		return 0, math.Inf(1)
	default:
		return baseline / current, current / baseline
	}
}
