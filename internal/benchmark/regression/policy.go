package regression

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Policy configures how verdicts are reached.
type Policy struct {
	// AlertThreshold is the worsening factor at which a case is Regressed.
	// Must be greater than 1. Zero means DefaultAlertThreshold.
	AlertThreshold float64

	// FailThreshold is the factor at which a regression should fail the
	// build. Zero means AlertThreshold. Must not be below AlertThreshold.
	FailThreshold float64

	Metric Metric

	// Baseline defaults to PreviousRun.
	Baseline BaselineSelector

	// Overrides are keyed by case name.
	Overrides map[string]CaseOverride
}

// CaseOverride adjusts the policy for a single case.
type CaseOverride struct {
	AlertThreshold float64 `toml:"alert_threshold" yaml:"alert_threshold"`
	FailThreshold  float64 `toml:"fail_threshold" yaml:"fail_threshold"`
	Ignore         bool    `toml:"ignore" yaml:"ignore"`
}

func (p Policy) withDefaults() (Policy, error) {
	if p.AlertThreshold == 0 {
		p.AlertThreshold = DefaultAlertThreshold
	}
	if p.FailThreshold == 0 {
		p.FailThreshold = p.AlertThreshold
	}
	if p.Baseline == nil {
		p.Baseline = PreviousRun{}
	}
	if err := checkThresholds("policy", p.AlertThreshold, p.FailThreshold); err != nil {
		return p, err
	}
	if p.Metric != MetricThroughput && p.Metric != MetricMeanLatency {
		return p, fmt.Errorf("%w: unknown metric %d", ErrInvalidPolicy, int(p.Metric))
	}
	for name, o := range p.Overrides {
		alert, fail := p.thresholdsFor(o)
		if err := checkThresholds(fmt.Sprintf("case %q", name), alert, fail); err != nil {
			return p, err
		}
	}
	return p, nil
}

func checkThresholds(scope string, alert, fail float64) error {
	if !(alert > 1) {
		return fmt.Errorf("%w: %s alert threshold %v must be greater than 1", ErrInvalidPolicy, scope, alert)
	}
	if fail < alert {
		return fmt.Errorf("%w: %s fail threshold %v is below alert threshold %v", ErrInvalidPolicy, scope, fail, alert)
	}
	return nil
}

// thresholdsFor resolves the alert and fail thresholds for one case. An
// override that only raises the alert threshold also raises the fail
// threshold when it would otherwise sit below it.
func (p Policy) thresholdsFor(o CaseOverride) (alert, fail float64) {
	alert, fail = p.AlertThreshold, p.FailThreshold
	if o.AlertThreshold != 0 {
		alert = o.AlertThreshold
	}
	if o.FailThreshold != 0 {
		fail = o.FailThreshold
	} else if fail < alert {
		fail = alert
	}
	return alert, fail
}

// PolicyFile is the on-disk form of a policy. Unset thresholds leave the
// configured values untouched.
type PolicyFile struct {
	AlertThreshold float64                 `toml:"alert_threshold" yaml:"alert_threshold"`
	FailThreshold  float64                 `toml:"fail_threshold" yaml:"fail_threshold"`
	Metric         string                  `toml:"metric" yaml:"metric"`
	BaselineWindow int                     `toml:"baseline_window" yaml:"baseline_window"`
	Cases          map[string]CaseOverride `toml:"cases" yaml:"cases"`
}

// LoadPolicyFile reads a TOML (.toml) or YAML (.yaml, .yml) policy file.
func LoadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var pf PolicyFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.Decode(string(data), &pf)
		if err != nil {
			return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%w: unknown key %q in %s", ErrInvalidPolicy, undecoded[0].String(), path)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&pf); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: policy file %s must be .toml, .yaml or .yml", ErrInvalidPolicy, path)
	}
	return &pf, nil
}

// Apply layers the file over p. Case overrides in the file replace those of
// the same name in p.
func (pf *PolicyFile) Apply(p Policy) (Policy, error) {
	if pf.AlertThreshold != 0 {
		p.AlertThreshold = pf.AlertThreshold
	}
	if pf.FailThreshold != 0 {
		p.FailThreshold = pf.FailThreshold
	}
	if pf.Metric != "" {
		m, err := ParseMetric(pf.Metric)
		if err != nil {
			return p, err
		}
		p.Metric = m
	}
	if pf.BaselineWindow != 0 {
		p.Baseline = SelectorForWindow(pf.BaselineWindow)
	}
	if len(pf.Cases) > 0 {
		merged := make(map[string]CaseOverride, len(p.Overrides)+len(pf.Cases))
		for k, v := range p.Overrides {
			merged[k] = v
		}
		for k, v := range pf.Cases {
			merged[k] = v
		}
		p.Overrides = merged
	}
	return p, nil
}
