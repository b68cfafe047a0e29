// Package notify delivers regression alerts to people.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/benchtrail/benchtrail/internal/benchmark"
	"github.com/benchtrail/benchtrail/internal/benchmark/regression"
)

// Alert is one detection outcome worth telling someone about.
type Alert struct {
	Group  string
	Commit benchmark.Commit
	Result *regression.Result

	// ReportURL optionally links the published dashboard.
	ReportURL string
}

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// Title is the one-line headline for an alert.
func (a Alert) Title() string {
	n := len(a.Result.Regressions())
	if n == 0 {
		return fmt.Sprintf("No performance regressions in %q for commit %s", a.Group, shortID(a.Commit.ID))
	}
	return fmt.Sprintf("Possible performance regression in %q for commit %s: %d case(s) over threshold",
		a.Group, shortID(a.Commit.ID), n)
}

// Lines describes each regressed case, worst first in run order.
func (a Alert) Lines() []string {
	var lines []string
	for _, v := range a.Result.Regressions() {
		line := fmt.Sprintf("%s: %s worse (threshold %s)",
			v.Name, regression.FormatFactor(v.Factor), regression.FormatFactor(v.Threshold))
		if v.Fails {
			line += ", fails the build"
		}
		if v.LowConfidence {
			line += ", low confidence"
		}
		lines = append(lines, line)
	}
	return lines
}

// LogNotifier writes alerts to a logger.
type LogNotifier struct {
	Logger *log.Logger
}

// NewLogNotifier returns a notifier logging to stderr when logger is nil.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.New(os.Stderr, "[notify] ", log.LstdFlags)
	}
	return &LogNotifier{Logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, alert Alert) error {
	l.Logger.Print(alert.Title())
	for _, line := range alert.Lines() {
		l.Logger.Print("  " + line)
	}
	return nil
}

// Multi fans an alert out to several notifiers. Every notifier is tried;
// failures are joined.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func shortID(id string) string {
	if len(id) > 7 {
		return id[:7]
	}
	return id
}

func bulletList(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString("• ")
		b.WriteString(l)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}
