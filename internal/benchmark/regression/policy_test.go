package regression

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePolicy(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadPolicyFile_TOML(t *testing.T) {
	path := writePolicy(t, "policy.toml", `
alert_threshold = 1.5
fail_threshold = 3.0
metric = "mean"
baseline_window = 5

[cases."tests/bench.py::test_io"]
ignore = true

[cases."tests/bench.py::test_alloc"]
alert_threshold = 4.0
`)

	pf, err := LoadPolicyFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1.5, pf.AlertThreshold)
	assert.Equal(t, 3.0, pf.FailThreshold)
	assert.True(t, pf.Cases["tests/bench.py::test_io"].Ignore)
	assert.Equal(t, 4.0, pf.Cases["tests/bench.py::test_alloc"].AlertThreshold)

	p, err := pf.Apply(Policy{})
	require.NoError(t, err)
	assert.Equal(t, MetricMeanLatency, p.Metric)
	assert.Equal(t, WindowMean{N: 5}, p.Baseline)

	_, err = NewDetector(p)
	require.NoError(t, err)
}

func TestLoadPolicyFile_YAML(t *testing.T) {
	path := writePolicy(t, "policy.yaml", `
alert_threshold: 2.5
cases:
  slow_case:
    fail_threshold: 10
`)

	pf, err := LoadPolicyFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2.5, pf.AlertThreshold)
	assert.Equal(t, 10.0, pf.Cases["slow_case"].FailThreshold)
}

func TestLoadPolicyFile_EmptyYAML(t *testing.T) {
	pf, err := LoadPolicyFile(writePolicy(t, "policy.yml", ""))
	require.NoError(t, err)
	assert.Zero(t, pf.AlertThreshold)
}

func TestLoadPolicyFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown toml key", "p.toml", "alert_treshold = 2\n"},
		{"unknown yaml key", "p.yaml", "alert_treshold: 2\n"},
		{"bad extension", "p.json", "{}"},
		{"bad toml", "p.toml", "alert_threshold = = 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPolicyFile(writePolicy(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestPolicyFileApply_BadMetric(t *testing.T) {
	pf := &PolicyFile{Metric: "median"}
	_, err := pf.Apply(Policy{})
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}

func TestSelectorForWindow(t *testing.T) {
	assert.Equal(t, PreviousRun{}, SelectorForWindow(0))
	assert.Equal(t, PreviousRun{}, SelectorForWindow(1))
	assert.Equal(t, WindowMean{N: 4}, SelectorForWindow(4))
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("Mean")
	require.NoError(t, err)
	assert.Equal(t, MetricMeanLatency, m)

	m, err = ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, MetricThroughput, m)

	_, err = ParseMetric("p99")
	assert.ErrorIs(t, err, ErrInvalidPolicy)
}
