package ui

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// ErrNotInteractive is returned by Confirm when there is no terminal to ask.
var ErrNotInteractive = errors.New("confirmation needed but stdin is not a terminal")

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Setup picks a color profile for out. Colors are disabled when out is not
// a terminal or NO_COLOR is set.
func Setup(out io.Writer) {
	if !IsTerminal(out) || termenv.EnvNoColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	lipgloss.SetColorProfile(termenv.NewOutput(out).EnvColorProfile())
}

// Confirm asks a yes/no question on the terminal. Without a terminal it
// returns ErrNotInteractive so callers can require an explicit flag.
func Confirm(title, description string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, ErrNotInteractive
	}
	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Yes").
			Negative("No").
			Value(&ok),
	))
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("confirmation aborted: %w", err)
	}
	return ok, nil
}

// RenderMarkdown renders markdown for display on out. Non-terminal output
// gets the markdown unchanged.
func RenderMarkdown(out io.Writer, markdown string) (string, error) {
	if !IsTerminal(out) {
		return markdown, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create markdown renderer: %w", err)
	}
	return r.Render(markdown)
}
