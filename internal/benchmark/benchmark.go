// Package benchmark holds the measurement model for continuous benchmark
// history: commits, runs, and the timed cases a harness reports for them.
//
// A Run is what one CI job contributes to a benchmark group. Its cases keep
// the harness's raw text (value, unit, range, extra) exactly as emitted; the
// numeric view used for comparison is derived on demand by Normalize and is
// never persisted.
package benchmark

import (
	"fmt"
	"math"
)

// Author identifies a commit author or committer.
type Author struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
}

// Commit is the immutable identity of the source revision a run measured.
// Field order matches the persisted artifact.
type Commit struct {
	Author    Author `json:"author"`
	Committer Author `json:"committer"`
	ID        string `json:"id"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	TreeID    string `json:"tree_id"`
	URL       string `json:"url"`

	// Distinct is only present when the commit came from a push event
	// payload.
	Distinct *bool `json:"distinct,omitempty"`
}

// Case is a single named timed measurement within a run.
type Case struct {
	// Name is a hierarchical identifier such as suite::Class::test[param].
	Name string `json:"name"`

	// Value is the raw measured value in Unit.
	Value float64 `json:"value"`

	// Unit is the harness unit string, e.g. "iter/sec".
	Unit string `json:"unit"`

	// Range is free-form variance text, typically "stddev: <float>".
	Range string `json:"range,omitempty"`

	// Extra is free-form detail text, typically
	// "mean: <float> <unit>\nrounds: <int>".
	Extra string `json:"extra,omitempty"`
}

// Run is one CI execution's full set of case results tagged to a commit.
type Run struct {
	Commit Commit `json:"commit"`

	// Date is the run timestamp in Unix epoch milliseconds.
	Date int64 `json:"date"`

	// Tool names the harness that produced the cases, e.g. "pytest".
	Tool string `json:"tool"`

	// Benches is ordered by harness emission order.
	Benches []Case `json:"benches"`
}

// NewRun builds a validated Run from harness cases and commit metadata.
// The cases slice is copied; the caller keeps ownership of its argument.
func NewRun(commit Commit, date int64, tool string, cases []Case) (*Run, error) {
	run := &Run{
		Commit:  cloneCommit(commit),
		Date:    date,
		Tool:    tool,
		Benches: make([]Case, len(cases)),
	}
	copy(run.Benches, cases)
	if err := run.Validate(); err != nil {
		return nil, err
	}
	return run, nil
}

// Validate checks the invariants every stored run must hold.
func (r *Run) Validate() error {
	if r.Commit.ID == "" {
		return &ValidationError{Field: "commit.id", Reason: "must not be empty"}
	}
	if r.Tool == "" {
		return &ValidationError{Field: "tool", Reason: "must not be empty"}
	}
	if r.Date < 0 {
		return &ValidationError{Field: "date", Reason: fmt.Sprintf("must not be negative, got %d", r.Date)}
	}

	seen := make(map[string]struct{}, len(r.Benches))
	for i, c := range r.Benches {
		field := fmt.Sprintf("benches[%d]", i)
		if c.Name == "" {
			return &ValidationError{Field: field + ".name", Reason: "must not be empty"}
		}
		if _, dup := seen[c.Name]; dup {
			return &ValidationError{Field: field + ".name", Reason: fmt.Sprintf("duplicate case name %q", c.Name)}
		}
		seen[c.Name] = struct{}{}

		if c.Unit == "" {
			return &ValidationError{Field: field + ".unit", Reason: fmt.Sprintf("case %q has no unit", c.Name)}
		}
		if math.IsNaN(c.Value) || math.IsInf(c.Value, 0) {
			return &ValidationError{Field: field + ".value", Reason: fmt.Sprintf("case %q has non-finite value", c.Name)}
		}
		if c.Value < 0 {
			return &ValidationError{Field: field + ".value", Reason: fmt.Sprintf("case %q has negative value %v", c.Name, c.Value)}
		}
	}
	return nil
}

// Case returns the case with the given name, if the run contains one.
func (r *Run) Case(name string) (Case, bool) {
	for _, c := range r.Benches {
		if c.Name == name {
			return c, true
		}
	}
	return Case{}, false
}

// Clone returns a deep copy of the run.
func (r Run) Clone() Run {
	r.Commit = cloneCommit(r.Commit)
	if r.Benches != nil {
		benches := make([]Case, len(r.Benches))
		copy(benches, r.Benches)
		r.Benches = benches
	}
	return r
}

// CloneRuns deep-copies a run sequence.
func CloneRuns(runs []Run) []Run {
	if runs == nil {
		return nil
	}
	out := make([]Run, len(runs))
	for i, r := range runs {
		out[i] = r.Clone()
	}
	return out
}

func cloneCommit(c Commit) Commit {
	if c.Distinct != nil {
		d := *c.Distinct
		c.Distinct = &d
	}
	return c
}
