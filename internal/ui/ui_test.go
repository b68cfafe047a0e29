package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/benchtrail/benchtrail/internal/benchmark/regression"
)

func TestVerdictColors(t *testing.T) {
	lipgloss.SetColorProfile(termenv.ANSI256)
	defer lipgloss.SetColorProfile(termenv.Ascii)

	tests := []struct {
		name  string
		v     regression.Verdict
		color string
	}{
		{"failing regression", regression.Verdict{Kind: regression.Regressed, Factor: 3, Fails: true}, "196"},
		{"alert only", regression.Verdict{Kind: regression.Regressed, Factor: 2}, "214"},
		{"improved", regression.Verdict{Kind: regression.Improved, Factor: 2}, "46"},
		{"no baseline", regression.Verdict{Kind: regression.InsufficientBaseline}, "245"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Verdict(tt.v)
			if !strings.Contains(got, tt.color) {
				t.Errorf("Verdict() = %q, want color %s", got, tt.color)
			}
		})
	}
}

func TestHeadlinePlain(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)

	if got := Headline(&regression.Result{HasRegression: true, ShouldFail: true}); got != "✗ regression past failure threshold" {
		t.Errorf("Headline() = %q", got)
	}
	if got := Headline(&regression.Result{}); got != "✓ no regressions" {
		t.Errorf("Headline() = %q", got)
	}
}

func TestNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	if IsTerminal(&buf) {
		t.Fatal("a buffer is not a terminal")
	}
	got, err := RenderMarkdown(&buf, "# Title\n")
	if err != nil {
		t.Fatalf("RenderMarkdown() error = %v", err)
	}
	if got != "# Title\n" {
		t.Errorf("RenderMarkdown() = %q, want unchanged markdown", got)
	}
}
