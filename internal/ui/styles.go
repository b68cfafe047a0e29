// Package ui holds the terminal styling and interaction helpers used by the
// bt command.
package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/benchtrail/benchtrail/internal/benchmark/regression"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFF")).
			Background(lipgloss.Color("#7D56F4")).
			Bold(true).
			Padding(0, 1)

	PassStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)
	WarnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
	FailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
	MutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
	AccentStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("86"))
)

// Verdict renders a verdict label in the color of its outcome.
func Verdict(v regression.Verdict) string {
	label := regression.DescribeVerdict(v)
	switch v.Kind {
	case regression.Regressed:
		if v.Fails {
			return FailStyle.Render(label)
		}
		return WarnStyle.Render(label)
	case regression.Improved:
		return PassStyle.Render(label)
	case regression.OK:
		return label
	default:
		return MutedStyle.Render(label)
	}
}

// Headline renders the one-line outcome for a result.
func Headline(r *regression.Result) string {
	switch {
	case r.ShouldFail:
		return FailStyle.Render("✗ regression past failure threshold")
	case r.HasRegression:
		return WarnStyle.Render("! regression detected")
	default:
		return PassStyle.Render("✓ no regressions")
	}
}
