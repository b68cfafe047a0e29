// Package harness converts benchmark tool output into measurement cases.
//
// Supported tools:
//   - pytest: pytest-benchmark's --benchmark-json report
//   - gobench: the text output of go test -bench
//   - json: a ready-made case list [{name, value, unit, range, extra}]
//
// pytest and gobench cases are emitted in throughput form (iter/sec) with
// stddev range text and two-line mean/rounds extra text, so the normalizer
// and detector can treat them uniformly.
package harness

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/benchtrail/benchtrail/internal/benchmark"
)

// Tool names.
const (
	ToolPytest  = "pytest"
	ToolGoBench = "gobench"
	ToolJSON    = "json"
)

var (
	// ErrUnknownTool is returned for a tool name with no parser.
	ErrUnknownTool = errors.New("unknown benchmark tool")

	// ErrMalformedOutput matches every ParseError.
	ErrMalformedOutput = errors.New("malformed benchmark output")

	// ErrNoBenchmarks is returned when the output holds no results.
	ErrNoBenchmarks = errors.New("no benchmark results found")
)

// ParseError reports tool output that could not be read.
type ParseError struct {
	Tool string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s output: %v", e.Tool, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrMalformedOutput }

// Parser reads one tool's output.
type Parser func(r io.Reader) ([]benchmark.Case, error)

var parsers = map[string]Parser{
	ToolPytest:  ParsePytest,
	ToolGoBench: ParseGoBench,
	ToolJSON:    ParseJSON,
}

// Tools lists the supported tool names.
func Tools() []string {
	names := make([]string, 0, len(parsers))
	for name := range parsers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse reads tool output from r.
func Parse(tool string, r io.Reader) ([]benchmark.Case, error) {
	p, ok := parsers[tool]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: %v)", ErrUnknownTool, tool, Tools())
	}
	cases, err := p(r)
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, &ParseError{Tool: tool, Err: ErrNoBenchmarks}
	}
	return cases, nil
}

// ParseFile reads tool output from the file at path.
func ParseFile(tool, path string) ([]benchmark.Case, error) {
	// #nosec G304 - path is supplied by the operator
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(tool, f)
}
