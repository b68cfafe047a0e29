package harness

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"golang.org/x/tools/benchmark/parse"

	"github.com/benchtrail/benchtrail/internal/benchmark"
)

// goSamples accumulates repeated results (go test -count=N) for one name.
type goSamples struct {
	name   string
	nsOps  []float64
	rounds uint64
}

// ParseGoBench reads go test -bench output. Lines that are not benchmark
// results are skipped. Repeated results for the same benchmark are merged:
// the value is the mean throughput, rounds is the total iteration count,
// and the sample standard deviation across repetitions becomes the range.
// A single sample carries no range.
func ParseGoBench(r io.Reader) ([]benchmark.Case, error) {
	var (
		order []*goSamples
		byKey = map[string]*goSamples{}
		pkg   string
		pkgs  = map[string]bool{}
	)

	type result struct {
		pkg string
		b   *parse.Benchmark
	}
	var results []result

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if p, ok := strings.CutPrefix(line, "pkg:"); ok {
			pkg = strings.TrimSpace(p)
			pkgs[pkg] = true
			continue
		}
		b, err := parse.ParseLine(line)
		if err != nil || b.Measured&parse.NsPerOp == 0 {
			continue
		}
		results = append(results, result{pkg: pkg, b: b})
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Tool: ToolGoBench, Err: err}
	}

	for _, res := range results {
		name := res.b.Name
		// Disambiguate only when several packages ran.
		if len(pkgs) > 1 && res.pkg != "" {
			name = fmt.Sprintf("%s (%s)", name, res.pkg)
		}
		s, ok := byKey[name]
		if !ok {
			s = &goSamples{name: name}
			byKey[name] = s
			order = append(order, s)
		}
		s.nsOps = append(s.nsOps, res.b.NsPerOp)
		s.rounds += uint64(res.b.N)
	}

	cases := make([]benchmark.Case, 0, len(order))
	for _, s := range order {
		mean := meanOf(s.nsOps)
		if mean <= 0 {
			return nil, &ParseError{Tool: ToolGoBench, Err: fmt.Errorf("%s: non-positive ns/op", s.name)}
		}
		c := benchmark.Case{
			Name:  s.name,
			Value: 1e9 / mean,
			Unit:  benchmark.UnitIterPerSec,
			Extra: benchmark.FormatExtra(mean/1e9, s.rounds),
		}
		if len(s.nsOps) > 1 {
			c.Range = benchmark.FormatRange(stddevOf(s.nsOps, mean) / 1e9)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func meanOf(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddevOf is the sample standard deviation.
func stddevOf(xs []float64, mean float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	ss := 0.0
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
