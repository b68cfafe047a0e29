package regression

import (
	"errors"
	"fmt"
	"strings"

	"github.com/benchtrail/benchtrail/internal/benchmark"
)

var (
	// ErrAmbiguousDirection is matched by AmbiguousDirectionError.
	ErrAmbiguousDirection = errors.New("ambiguous comparison direction")

	// ErrInvalidPolicy is returned for thresholds or metrics that cannot
	// produce meaningful verdicts.
	ErrInvalidPolicy = errors.New("invalid regression policy")
)

// AmbiguousDirectionError reports a case whose unit does not say whether a
// larger value is better or worse. Such cases are never given a verdict.
type AmbiguousDirectionError struct {
	Case string
	Unit string
}

func (e *AmbiguousDirectionError) Error() string {
	return fmt.Sprintf("case %q: cannot tell whether bigger is better for unit %q", e.Case, e.Unit)
}

func (e *AmbiguousDirectionError) Is(target error) bool { return target == ErrAmbiguousDirection }

// Metric selects which normalized quantity is compared.
type Metric int

const (
	// MetricThroughput compares operations per second.
	MetricThroughput Metric = iota
	// MetricMeanLatency compares mean seconds per operation.
	MetricMeanLatency
)

func (m Metric) String() string {
	switch m {
	case MetricThroughput:
		return "throughput"
	case MetricMeanLatency:
		return "mean"
	default:
		return fmt.Sprintf("metric(%d)", int(m))
	}
}

// ParseMetric accepts "throughput" (or "value") and "mean" (or "latency").
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "throughput", "value":
		return MetricThroughput, nil
	case "mean", "latency":
		return MetricMeanLatency, nil
	default:
		return 0, fmt.Errorf("%w: unknown metric %q", ErrInvalidPolicy, s)
	}
}

// Value extracts the metric from a normalized case.
func (m Metric) Value(n benchmark.NormalizedCase) float64 {
	if m == MetricMeanLatency {
		return n.MeanSeconds
	}
	return n.ValuePerSecond
}

// Direction says which way a metric improves.
type Direction int

const (
	BiggerIsBetter Direction = iota
	SmallerIsBetter
)

func (d Direction) String() string {
	if d == SmallerIsBetter {
		return "smaller is better"
	}
	return "bigger is better"
}

// unitDirections covers the units harnesses are known to emit. Rates improve
// upward, per-operation costs improve downward.
var unitDirections = map[string]Direction{
	"iter/sec":  BiggerIsBetter,
	"ops/sec":   BiggerIsBetter,
	"ops/s":     BiggerIsBetter,
	"op/s":      BiggerIsBetter,
	"it/s":      BiggerIsBetter,
	"req/s":     BiggerIsBetter,
	"MB/s":      BiggerIsBetter,
	"ns/op":     SmallerIsBetter,
	"B/op":      SmallerIsBetter,
	"allocs/op": SmallerIsBetter,
	"ns":        SmallerIsBetter,
	"us":        SmallerIsBetter,
	"µs":        SmallerIsBetter,
	"ms":        SmallerIsBetter,
	"s":         SmallerIsBetter,
	"nsec":      SmallerIsBetter,
	"usec":      SmallerIsBetter,
	"msec":      SmallerIsBetter,
	"sec":       SmallerIsBetter,
}

// DirectionFor resolves the comparison direction for a case. The unit must be
// recognized even when comparing mean latency; an unknown unit fails closed.
func DirectionFor(name, unit string, metric Metric) (Direction, error) {
	d, ok := unitDirections[strings.TrimSpace(unit)]
	if !ok {
		return 0, &AmbiguousDirectionError{Case: name, Unit: unit}
	}
	if metric == MetricMeanLatency {
		return SmallerIsBetter, nil
	}
	return d, nil
}
