package benchmark

import (
	"errors"
	"math"
	"testing"
)

func testCommit() Commit {
	return Commit{
		Author:    Author{Name: "Ada", Email: "ada@example.com", Username: "ada"},
		Committer: Author{Name: "Ada", Email: "ada@example.com", Username: "ada"},
		ID:        "4b1c2a9",
		Message:   "speed up dot product",
		Timestamp: "2024-03-01T10:00:00Z",
		TreeID:    "9f8e7d",
		URL:       "https://github.com/example/numlib/commit/4b1c2a9",
	}
}

func TestNewRun_Valid(t *testing.T) {
	cases := []Case{
		{Name: "tests/bench.py::test_dot[64]", Value: 5227.6, Unit: UnitIterPerSec},
		{Name: "tests/bench.py::test_dot[128]", Value: 0, Unit: UnitIterPerSec},
	}

	run, err := NewRun(testCommit(), 1709287200000, "pytest", cases)
	if err != nil {
		t.Fatalf("NewRun() failed: %v", err)
	}
	if len(run.Benches) != 2 {
		t.Fatalf("len(Benches) = %d, want 2", len(run.Benches))
	}

	// The run must not alias the caller's slice.
	cases[0].Name = "mutated"
	if run.Benches[0].Name != "tests/bench.py::test_dot[64]" {
		t.Errorf("run aliases caller slice: %q", run.Benches[0].Name)
	}
}

func TestNewRun_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Commit, tool *string, cases *[]Case)
		field  string
	}{
		{
			name:   "empty commit id",
			mutate: func(c *Commit, _ *string, _ *[]Case) { c.ID = "" },
			field:  "commit.id",
		},
		{
			name:   "empty tool",
			mutate: func(_ *Commit, tool *string, _ *[]Case) { *tool = "" },
			field:  "tool",
		},
		{
			name: "duplicate case name",
			mutate: func(_ *Commit, _ *string, cs *[]Case) {
				*cs = append(*cs, Case{Name: "a", Value: 2, Unit: UnitIterPerSec})
			},
			field: "benches[1].name",
		},
		{
			name:   "negative value",
			mutate: func(_ *Commit, _ *string, cs *[]Case) { (*cs)[0].Value = -1 },
			field:  "benches[0].value",
		},
		{
			name:   "NaN value",
			mutate: func(_ *Commit, _ *string, cs *[]Case) { (*cs)[0].Value = math.NaN() },
			field:  "benches[0].value",
		},
		{
			name:   "infinite value",
			mutate: func(_ *Commit, _ *string, cs *[]Case) { (*cs)[0].Value = math.Inf(1) },
			field:  "benches[0].value",
		},
		{
			name:   "empty case name",
			mutate: func(_ *Commit, _ *string, cs *[]Case) { (*cs)[0].Name = "" },
			field:  "benches[0].name",
		},
		{
			name:   "empty unit",
			mutate: func(_ *Commit, _ *string, cs *[]Case) { (*cs)[0].Unit = "" },
			field:  "benches[0].unit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commit := testCommit()
			tool := "pytest"
			cases := []Case{{Name: "a", Value: 1, Unit: UnitIterPerSec}}
			tt.mutate(&commit, &tool, &cases)

			_, err := NewRun(commit, 1, tool, cases)
			if err == nil {
				t.Fatal("NewRun() succeeded, want error")
			}
			if !errors.Is(err, ErrInvalidRun) {
				t.Errorf("error %v does not match ErrInvalidRun", err)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error %T is not *ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestRunClone(t *testing.T) {
	distinct := true
	commit := testCommit()
	commit.Distinct = &distinct

	run, err := NewRun(commit, 10, "pytest", []Case{{Name: "a", Value: 1, Unit: UnitIterPerSec}})
	if err != nil {
		t.Fatalf("NewRun() failed: %v", err)
	}

	clone := run.Clone()
	clone.Benches[0].Value = 99
	*clone.Commit.Distinct = false

	if run.Benches[0].Value != 1 {
		t.Errorf("clone shares benches with original")
	}
	if !*run.Commit.Distinct {
		t.Errorf("clone shares distinct flag with original")
	}
}

func TestRunCase(t *testing.T) {
	run := Run{Benches: []Case{{Name: "a", Value: 1}, {Name: "b", Value: 2}}}

	if c, ok := run.Case("b"); !ok || c.Value != 2 {
		t.Errorf("Case(b) = %+v, %v", c, ok)
	}
	if _, ok := run.Case("missing"); ok {
		t.Errorf("Case(missing) found a case")
	}
}
