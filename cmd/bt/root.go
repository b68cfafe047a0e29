package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/benchtrail/benchtrail/internal/config"
	"github.com/benchtrail/benchtrail/internal/ui"
)

var exit = os.Exit

var (
	v       = viper.New()
	cfg     *config.Config
	cfgFile string

	// logOut receives every component logger; --log-file swaps it for a
	// rotating file.
	logOut   io.Writer = os.Stderr
	logFlags           = log.LstdFlags
)

var rootCmd = &cobra.Command{
	Use:   "bt",
	Short: "Benchmark history store and regression detector",
	Long: `bt keeps an append-only history of benchmark runs per group, compares each
new run against its baseline, and fails CI when performance regresses.

History is published as a data.js artifact (window.BENCHMARK_DATA = {...})
that can live in a file, on a git branch, or in a SQLite or Postgres table.

Exit codes:
  0  success
  1  regression past the failure threshold (with fail_on_regression)
  2  bad input, out-of-order run, corrupt history, or other failure
  3  concurrent appends exhausted retries, or the store timed out; retry the job

Configuration is read from flags, BT_* environment variables, .env, and
benchtrail.yaml or benchtrail.toml in the working directory.`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute runs the command tree and exits with the mapped exit code.
func Execute() {
	err := rootCmd.Execute()
	if err != nil && !errors.Is(err, errRegression) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	exit(exitCode(err))
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "record", Title: "Recording results:"},
		&cobra.Group{ID: "inspect", Title: "Inspecting history:"},
		&cobra.Group{ID: "maint", Title: "Maintenance:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ./benchtrail.yaml or ./benchtrail.toml)")
	flags.BoolP("verbose", "v", false, "Include source locations in log output")
	flags.String("backend", "", "History backend: file, git, sqlite, postgres, memory")
	flags.String("path", "", "History file for the file backend")
	flags.String("dsn", "", "Database path (sqlite) or connection string (postgres)")
	flags.String("repo-url", "", "Repository URL written to the artifact")
	flags.String("log-file", "", "Write logs to a rotating file instead of stderr")

	_ = v.BindPFlag("verbose", flags.Lookup("verbose"))
	_ = v.BindPFlag("store.backend", flags.Lookup("backend"))
	_ = v.BindPFlag("store.path", flags.Lookup("path"))
	_ = v.BindPFlag("store.dsn", flags.Lookup("dsn"))
	_ = v.BindPFlag("repo_url", flags.Lookup("repo-url"))
	_ = v.BindPFlag("log.file", flags.Lookup("log-file"))
}

func setup(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	cfg = loaded

	if v.GetBool("verbose") {
		logFlags |= log.Lshortfile
	}
	if cfg.LogFile != "" {
		logOut = &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
	}
	ui.Setup(cmd.OutOrStdout())

	if cfg.Used != "" {
		newLogger("[config] ").Printf("Using config file: %s", cfg.Used)
	}
	return nil
}

func newLogger(prefix string) *log.Logger {
	return log.New(logOut, prefix, logFlags)
}
