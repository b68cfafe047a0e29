package benchmark

import (
	"errors"
	"testing"
)

func TestNormalize_PytestCase(t *testing.T) {
	c := Case{
		Name:  "tests/test_bench.py::test_norm[float64]",
		Value: 5227607.4,
		Unit:  "iter/sec",
		Range: "stddev: 1.2345e-8",
		Extra: "mean: 191.29 nsec\nrounds: 54307",
	}

	n, err := Normalize(c)
	if err != nil {
		t.Fatalf("Normalize() failed: %v", err)
	}
	if n.ValuePerSecond != 5227607.4 {
		t.Errorf("ValuePerSecond = %v, want 5227607.4", n.ValuePerSecond)
	}
	if n.MeanSeconds != 191.29e-9 {
		t.Errorf("MeanSeconds = %v, want %v", n.MeanSeconds, 191.29e-9)
	}
	if n.SampleRounds != 54307 {
		t.Errorf("SampleRounds = %d, want 54307", n.SampleRounds)
	}
	if n.StddevSeconds == nil || *n.StddevSeconds != 1.2345e-8 {
		t.Errorf("StddevSeconds = %v, want 1.2345e-8", n.StddevSeconds)
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	c := Case{Name: "x", Value: 10, Unit: "iter/sec", Extra: "mean: 100 msec\nrounds: 7"}

	first, err := Normalize(c)
	if err != nil {
		t.Fatalf("Normalize() failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Normalize(c)
		if err != nil {
			t.Fatalf("Normalize() failed: %v", err)
		}
		if again != first {
			t.Fatalf("Normalize() not deterministic: %+v vs %+v", again, first)
		}
	}
}

func TestNormalize_MissingRange(t *testing.T) {
	n, err := Normalize(Case{Name: "x", Value: 1, Unit: "iter/sec", Extra: "mean: 1 sec\nrounds: 1"})
	if err != nil {
		t.Fatalf("Normalize() failed: %v", err)
	}
	if n.StddevSeconds != nil {
		t.Errorf("StddevSeconds = %v, want nil for absent range", *n.StddevSeconds)
	}
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name    string
		c       Case
		wantErr error
	}{
		{
			name:    "ops per second is not accepted",
			c:       Case{Name: "x", Value: 1, Unit: "ops/sec", Extra: "mean: 1 sec\nrounds: 1"},
			wantErr: ErrUnsupportedUnit,
		},
		{
			name:    "empty unit",
			c:       Case{Name: "x", Value: 1, Extra: "mean: 1 sec\nrounds: 1"},
			wantErr: ErrUnsupportedUnit,
		},
		{
			name:    "missing extra",
			c:       Case{Name: "x", Value: 1, Unit: "iter/sec"},
			wantErr: ErrMalformedExtra,
		},
		{
			name:    "garbled range",
			c:       Case{Name: "x", Value: 1, Unit: "iter/sec", Range: "± 3%", Extra: "mean: 1 sec\nrounds: 1"},
			wantErr: ErrMalformedRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.c)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Normalize() error = %v, want %v", err, tt.wantErr)
			}
			if !IsCaseError(err) {
				t.Errorf("IsCaseError(%v) = false", err)
			}
		})
	}
}

func TestParseExtra(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantMean   float64
		wantRounds uint64
		wantLine   int
		wantErr    bool
	}{
		{name: "nsec", text: "mean: 191.29 nsec\nrounds: 54307", wantMean: 191.29e-9, wantRounds: 54307},
		{name: "usec", text: "mean: 12.5 usec\nrounds: 100", wantMean: 12.5e-6, wantRounds: 100},
		{name: "msec", text: "mean: 3.75 msec\nrounds: 5", wantMean: 3.75e-3, wantRounds: 5},
		{name: "sec", text: "mean: 2 sec\nrounds: 1", wantMean: 2, wantRounds: 1},
		{name: "upper case unit", text: "mean: 191.29 NSEC\nrounds: 3", wantMean: 191.29e-9, wantRounds: 3},
		{name: "exponent literal", text: "mean: 1.5e0 sec\nrounds: 3", wantMean: 1.5, wantRounds: 3},
		{name: "surrounding whitespace", text: "  mean: 4 msec  \n rounds: 9 ", wantMean: 4e-3, wantRounds: 9},
		{name: "one line", text: "mean: 4 msec", wantErr: true, wantLine: 0},
		{name: "three lines", text: "mean: 4 msec\nrounds: 9\nextra", wantErr: true, wantLine: 0},
		{name: "unknown unit", text: "mean: 4 min\nrounds: 9", wantErr: true, wantLine: 1},
		{name: "missing unit", text: "mean: 4\nrounds: 9", wantErr: true, wantLine: 1},
		{name: "not a number", text: "mean: fast nsec\nrounds: 9", wantErr: true, wantLine: 1},
		{name: "negative mean", text: "mean: -4 nsec\nrounds: 9", wantErr: true, wantLine: 1},
		{name: "fractional rounds", text: "mean: 4 nsec\nrounds: 9.5", wantErr: true, wantLine: 2},
		{name: "wrong label", text: "mean: 4 nsec\niterations: 9", wantErr: true, wantLine: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mean, rounds, err := ParseExtra(tt.text)
			if tt.wantErr {
				var merr *MalformedExtraError
				if !errors.As(err, &merr) {
					t.Fatalf("ParseExtra() error = %v, want *MalformedExtraError", err)
				}
				if merr.Line != tt.wantLine {
					t.Errorf("Line = %d, want %d", merr.Line, tt.wantLine)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseExtra() failed: %v", err)
			}
			if mean != tt.wantMean {
				t.Errorf("mean = %v, want %v", mean, tt.wantMean)
			}
			if rounds != tt.wantRounds {
				t.Errorf("rounds = %d, want %d", rounds, tt.wantRounds)
			}
		})
	}
}

func TestNormalizeRun_IsolatesFailures(t *testing.T) {
	run := Run{
		Benches: []Case{
			{Name: "good", Value: 10, Unit: "iter/sec", Extra: "mean: 100 msec\nrounds: 3"},
			{Name: "bad", Value: 10, Unit: "iter/sec", Extra: "garbage"},
			{Name: "also-good", Value: 20, Unit: "iter/sec", Extra: "mean: 50 msec\nrounds: 3"},
		},
	}

	results := NormalizeRun(run)
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if results[0].Err != nil || results[2].Err != nil {
		t.Errorf("good cases failed: %v, %v", results[0].Err, results[2].Err)
	}
	if !errors.Is(results[1].Err, ErrMalformedExtra) {
		t.Errorf("bad case error = %v, want ErrMalformedExtra", results[1].Err)
	}
	if results[2].Normalized.ValuePerSecond != 20 {
		t.Errorf("case after failure not normalized: %+v", results[2].Normalized)
	}
}
