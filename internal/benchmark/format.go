package benchmark

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatNumber renders f the way JavaScript's Number#toString does, which is
// how harness adapters upstream of the artifact wrote range and extra text.
func FormatNumber(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	abs := math.Abs(f)
	if abs == 0 || (abs >= 1e-6 && abs < 1e21) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	s := strconv.FormatFloat(f, 'e', -1, 64)
	// e-07 -> e-7, e+21 stays e+21
	if i := strings.IndexByte(s, 'e'); i >= 0 && len(s)-i >= 4 && s[i+2] == '0' {
		s = s[:i+2] + s[i+3:]
	}
	return s
}

// HumanizeSeconds picks the largest mean unit that keeps the magnitude at or
// above one: nsec below 1µs, usec below 1ms, msec below 1s, else sec.
func HumanizeSeconds(seconds float64) (float64, string) {
	switch {
	case seconds < 1e-6:
		return seconds * 1e9, "nsec"
	case seconds < 1e-3:
		return seconds * 1e6, "usec"
	case seconds < 1:
		return seconds * 1e3, "msec"
	default:
		return seconds, "sec"
	}
}

// FormatExtra renders the two-line extra text ParseExtra accepts.
func FormatExtra(meanSeconds float64, rounds uint64) string {
	v, unit := HumanizeSeconds(meanSeconds)
	return fmt.Sprintf("mean: %s %s\nrounds: %d", FormatNumber(v), unit, rounds)
}

// FormatRange renders the stddev range text ParseRange accepts.
func FormatRange(stddevSeconds float64) string {
	return "stddev: " + FormatNumber(stddevSeconds)
}

// FormatSeconds formats a duration in seconds into a human-readable string.
func FormatSeconds(s float64) string {
	if s < 1e-6 {
		return fmt.Sprintf("%.2fns", s*1e9)
	}
	if s < 1e-3 {
		return fmt.Sprintf("%.2fµs", s*1e6)
	}
	if s < 1 {
		return fmt.Sprintf("%.2fms", s*1e3)
	}
	return fmt.Sprintf("%.2fs", s)
}

// FormatRate formats an operations-per-second figure with an SI suffix.
func FormatRate(perSecond float64) string {
	const unit = 1000
	if perSecond < unit {
		return fmt.Sprintf("%.2f/s", perSecond)
	}
	div, exp := float64(unit), 0
	for n := perSecond / unit; n >= unit && exp < 3; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f%c/s", perSecond/div, "kMGT"[exp])
}
