package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/benchtrail/benchtrail/internal/dashboard"
	"github.com/benchtrail/benchtrail/internal/telemetry"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "inspect",
	Short:   "Serve the history over HTTP",
	Long: `Serve the artifact and a JSON API for the configured history:

  GET /data.js              the published artifact
  GET /api/groups           group names and run counts
  GET /api/groups/{name}    runs of one group
  GET /metrics              Prometheus metrics
  GET /health               liveness
  /ws                       live run and verdict events

Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		host, _ := cmd.Flags().GetString("host")
		port, _ := cmd.Flags().GetInt("port")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		metrics := telemetry.NewMetrics()
		store, err := openStore(ctx, metrics)
		if err != nil {
			return err
		}
		defer store.Close()

		server := dashboard.NewServer(dashboard.Config{
			Host:    host,
			Port:    port,
			Store:   store,
			Metrics: metrics.Handler(),
			Logger:  newLogger("[dashboard] "),
		})
		if err := server.Start(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s\n", store.Medium(), server.GetAddr())

		<-ctx.Done()
		return server.Stop()
	},
}

func init() {
	serveCmd.Flags().String("host", "127.0.0.1", "Address to bind")
	serveCmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	rootCmd.AddCommand(serveCmd)
}
