package benchmark

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// UnitIterPerSec is the only throughput unit with a direct conversion.
const UnitIterPerSec = "iter/sec"

// NormalizedCase is the numeric view of a Case used for comparison.
// It is always recomputed from the stored text and never persisted.
type NormalizedCase struct {
	Name string

	// ValuePerSecond is the throughput in operations per second.
	ValuePerSecond float64

	// StddevSeconds is nil when the harness reported no variance.
	StddevSeconds *float64

	// MeanSeconds is the mean time per operation.
	MeanSeconds float64

	SampleRounds uint64
}

// CaseResult pairs a stored case with its normalization outcome.
type CaseResult struct {
	Case       Case
	Normalized NormalizedCase
	Err        error
}

var (
	meanLine   = regexp.MustCompile(`^mean:\s*(\S+)\s+(\S+)$`)
	roundsLine = regexp.MustCompile(`^rounds:\s*(\S+)$`)
	rangeLine  = regexp.MustCompile(`^stddev:\s*(\S+)$`)
)

// timeUnitExponent maps a mean unit token to its power of ten in seconds.
var timeUnitExponent = map[string]int{
	"nsec": -9,
	"usec": -6,
	"msec": -3,
	"sec":  0,
}

// Normalize converts a stored case into its canonical numeric form.
// It is a pure function of the case text.
func Normalize(c Case) (NormalizedCase, error) {
	n := NormalizedCase{Name: c.Name}

	switch strings.TrimSpace(c.Unit) {
	case UnitIterPerSec:
		n.ValuePerSecond = c.Value
	default:
		return n, &UnsupportedUnitError{Unit: c.Unit}
	}

	mean, rounds, err := ParseExtra(c.Extra)
	if err != nil {
		return n, err
	}
	n.MeanSeconds = mean
	n.SampleRounds = rounds

	stddev, err := ParseRange(c.Range)
	if err != nil {
		return n, err
	}
	n.StddevSeconds = stddev

	return n, nil
}

// NormalizeRun normalizes every case of a run. A failure in one case is
// recorded on that case's result and does not affect the others.
func NormalizeRun(run Run) []CaseResult {
	results := make([]CaseResult, len(run.Benches))
	for i, c := range run.Benches {
		n, err := Normalize(c)
		results[i] = CaseResult{Case: c, Normalized: n, Err: err}
	}
	return results
}

// ParseExtra parses the two-line extra grammar:
//
//	mean: <float> <nsec|usec|msec|sec>
//	rounds: <int>
//
// and returns the mean in seconds along with the round count.
func ParseExtra(text string) (meanSeconds float64, rounds uint64, err error) {
	lines := strings.Split(text, "\n")
	if len(lines) != 2 {
		return 0, 0, &MalformedExtraError{Text: text}
	}

	m := meanLine.FindStringSubmatch(strings.TrimSpace(lines[0]))
	if m == nil {
		return 0, 0, &MalformedExtraError{Line: 1, Text: lines[0]}
	}
	exp, ok := timeUnitExponent[strings.ToLower(m[2])]
	if !ok {
		return 0, 0, &MalformedExtraError{Line: 1, Text: lines[0]}
	}
	meanSeconds, ok = scaleDecimal(m[1], exp)
	if !ok {
		return 0, 0, &MalformedExtraError{Line: 1, Text: lines[0]}
	}

	r := roundsLine.FindStringSubmatch(strings.TrimSpace(lines[1]))
	if r == nil {
		return 0, 0, &MalformedExtraError{Line: 2, Text: lines[1]}
	}
	rounds, perr := strconv.ParseUint(r[1], 10, 64)
	if perr != nil {
		return 0, 0, &MalformedExtraError{Line: 2, Text: lines[1]}
	}

	return meanSeconds, rounds, nil
}

// ParseRange extracts the stddev from "stddev: <float>". Empty text means no
// variance information and yields nil.
func ParseRange(text string) (*float64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}
	m := rangeLine.FindStringSubmatch(trimmed)
	if m == nil {
		return nil, &MalformedRangeError{Text: text}
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil, &MalformedRangeError{Text: text}
	}
	return &v, nil
}

// scaleDecimal multiplies the decimal literal s by 10^exp. Plain decimals are
// rescaled in their textual form so the result is the correctly rounded
// float64 of the exact decimal product; 191.29 at -9 gives exactly 191.29e-9.
func scaleDecimal(s string, exp int) (float64, bool) {
	var v float64
	var err error
	if exp == 0 || strings.ContainsAny(s, "eE") {
		v, err = strconv.ParseFloat(s, 64)
		if err == nil {
			v *= math.Pow10(exp)
		}
	} else {
		v, err = strconv.ParseFloat(s+"e"+strconv.Itoa(exp), 64)
	}
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}
