// Package config loads benchtrail settings from flags, BT_* environment
// variables, a .env file and an optional benchtrail.yaml or benchtrail.toml.
//
// Precedence follows viper: explicit flag, then environment, then config
// file, then defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/benchtrail/benchtrail/internal/benchmark/regression"
)

// EnvPrefix is prepended to every environment override, e.g.
// BT_STORE_BACKEND for store.backend.
const EnvPrefix = "BT"

// Store backends.
const (
	BackendFile     = "file"
	BackendGit      = "git"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// ErrInvalidConfig is matched by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// StoreConfig selects and tunes the history medium.
type StoreConfig struct {
	Backend    string
	Path       string
	DSN        string
	Document   string
	Timeout    time.Duration
	MaxRetries int
}

// GitConfig locates the artifact for the git backend.
type GitConfig struct {
	Repo   string
	Branch string
	File   string
	Remote string
}

// SlackConfig configures the Slack webhook notifier.
type SlackConfig struct {
	WebhookURL string
	Channel    string
}

// Config is the resolved configuration.
type Config struct {
	Store StoreConfig
	Git   GitConfig

	RepoURL string

	AlertThreshold   float64
	FailThreshold    float64
	FailOnRegression bool
	MaxHistoryRuns   int
	BaselineWindow   int
	Metric           string
	PolicyFile       string

	Slack        SlackConfig
	NotifyAlways bool

	MetricsTextfile string
	LogFile         string
	SummaryFile     string

	// Used is the config file that was read, if any.
	Used string
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.path", "dev/bench/data.js")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.document", "default")
	v.SetDefault("store.timeout", 30*time.Second)
	v.SetDefault("store.max_retries", 5)

	v.SetDefault("git.repo", ".")
	v.SetDefault("git.branch", "gh-pages")
	v.SetDefault("git.file", "dev/bench/data.js")
	v.SetDefault("git.remote", "")

	v.SetDefault("repo_url", "")
	v.SetDefault("alert_threshold", regression.DefaultAlertThreshold)
	v.SetDefault("fail_threshold", 0.0)
	v.SetDefault("fail_on_regression", false)
	v.SetDefault("max_history_runs", 0)
	v.SetDefault("baseline.window", 1)
	v.SetDefault("metric", "throughput")
	v.SetDefault("policy_file", "")

	v.SetDefault("notify.slack.webhook_url", "")
	v.SetDefault("notify.slack.channel", "")
	v.SetDefault("notify.always", false)

	v.SetDefault("metrics.textfile", "")
	v.SetDefault("log.file", "")
	v.SetDefault("summary_file", os.Getenv("GITHUB_STEP_SUMMARY"))
}

// Load reads configuration into v. When cfgFile is empty, benchtrail.* is
// searched for in the working directory and $XDG_CONFIG_HOME/benchtrail; a
// missing file is not an error. A .env file in the working directory is
// loaded first without overriding variables already set.
func Load(v *viper.Viper, cfgFile string) (*Config, error) {
	// .env is optional.
	_ = godotenv.Load()

	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("benchtrail")
		v.AddConfigPath(".")
		if dir := configHome(); dir != "" {
			v.AddConfigPath(filepath.Join(dir, "benchtrail"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := FromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromViper resolves the typed configuration from v.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Store: StoreConfig{
			Backend:    strings.ToLower(v.GetString("store.backend")),
			Path:       v.GetString("store.path"),
			DSN:        v.GetString("store.dsn"),
			Document:   v.GetString("store.document"),
			Timeout:    v.GetDuration("store.timeout"),
			MaxRetries: v.GetInt("store.max_retries"),
		},
		Git: GitConfig{
			Repo:   v.GetString("git.repo"),
			Branch: v.GetString("git.branch"),
			File:   v.GetString("git.file"),
			Remote: v.GetString("git.remote"),
		},
		RepoURL:          v.GetString("repo_url"),
		AlertThreshold:   v.GetFloat64("alert_threshold"),
		FailThreshold:    v.GetFloat64("fail_threshold"),
		FailOnRegression: v.GetBool("fail_on_regression"),
		MaxHistoryRuns:   v.GetInt("max_history_runs"),
		BaselineWindow:   v.GetInt("baseline.window"),
		Metric:           v.GetString("metric"),
		PolicyFile:       v.GetString("policy_file"),
		Slack: SlackConfig{
			WebhookURL: v.GetString("notify.slack.webhook_url"),
			Channel:    v.GetString("notify.slack.channel"),
		},
		NotifyAlways:    v.GetBool("notify.always"),
		MetricsTextfile: v.GetString("metrics.textfile"),
		LogFile:         v.GetString("log.file"),
		SummaryFile:     v.GetString("summary_file"),
		Used:            v.ConfigFileUsed(),
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendFile:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for the file backend", ErrInvalidConfig)
		}
	case BackendSQLite, BackendPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn is required for the %s backend", ErrInvalidConfig, c.Store.Backend)
		}
	case BackendGit:
		if c.Git.Branch == "" || c.Git.File == "" {
			return fmt.Errorf("%w: git.branch and git.file are required for the git backend", ErrInvalidConfig)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: unknown store.backend %q", ErrInvalidConfig, c.Store.Backend)
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("%w: store.timeout must be positive", ErrInvalidConfig)
	}
	if c.Store.MaxRetries < 1 {
		return fmt.Errorf("%w: store.max_retries must be at least 1", ErrInvalidConfig)
	}
	if c.MaxHistoryRuns < 0 {
		return fmt.Errorf("%w: max_history_runs must not be negative", ErrInvalidConfig)
	}
	if c.BaselineWindow < 1 {
		return fmt.Errorf("%w: baseline.window must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// Policy builds the detector policy, layering the policy file when set.
func (c *Config) Policy() (regression.Policy, error) {
	metric, err := regression.ParseMetric(c.Metric)
	if err != nil {
		return regression.Policy{}, err
	}
	p := regression.Policy{
		AlertThreshold: c.AlertThreshold,
		FailThreshold:  c.FailThreshold,
		Metric:         metric,
		Baseline:       regression.SelectorForWindow(c.BaselineWindow),
	}
	if c.PolicyFile == "" {
		return p, nil
	}
	pf, err := regression.LoadPolicyFile(c.PolicyFile)
	if err != nil {
		return p, err
	}
	return pf.Apply(p)
}

func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config")
	}
	return ""
}
