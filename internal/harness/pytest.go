package harness

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/benchtrail/benchtrail/internal/benchmark"
)

// pytestReport is the subset of pytest-benchmark's JSON report we read.
type pytestReport struct {
	Benchmarks []pytestBenchmark `json:"benchmarks"`
}

type pytestBenchmark struct {
	Name     string      `json:"name"`
	Fullname string      `json:"fullname"`
	Stats    pytestStats `json:"stats"`
}

type pytestStats struct {
	Mean   float64  `json:"mean"`
	Stddev *float64 `json:"stddev"`
	Rounds uint64   `json:"rounds"`
	Ops    float64  `json:"ops"`
}

// ParsePytest reads a pytest-benchmark --benchmark-json report. Each
// benchmark becomes a case named by its fullname, valued in iter/sec.
func ParsePytest(r io.Reader) ([]benchmark.Case, error) {
	var report pytestReport
	if err := json.NewDecoder(r).Decode(&report); err != nil {
		return nil, &ParseError{Tool: ToolPytest, Err: err}
	}

	cases := make([]benchmark.Case, 0, len(report.Benchmarks))
	for i, b := range report.Benchmarks {
		name := b.Fullname
		if name == "" {
			name = b.Name
		}
		if name == "" {
			return nil, &ParseError{Tool: ToolPytest, Err: fmt.Errorf("benchmarks[%d] has no name", i)}
		}

		ops := b.Stats.Ops
		if ops == 0 && b.Stats.Mean > 0 {
			// Reports before pytest-benchmark 3.1 carry no ops field.
			ops = 1 / b.Stats.Mean
		}

		c := benchmark.Case{
			Name:  name,
			Value: ops,
			Unit:  benchmark.UnitIterPerSec,
			Extra: benchmark.FormatExtra(b.Stats.Mean, b.Stats.Rounds),
		}
		if b.Stats.Stddev != nil {
			c.Range = benchmark.FormatRange(*b.Stats.Stddev)
		}
		cases = append(cases, c)
	}
	return cases, nil
}
