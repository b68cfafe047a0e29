package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/benchtrail/benchtrail/internal/publish"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "inspect",
	Short:   "Write the published artifact",
	Long: `Write the whole history as the published data.js artifact, or as plain JSON
with --json. The output is what a dashboard page loads.

Examples:
  bt export -o site/dev/bench/data.js
  bt export --json | jq '.entries | keys'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		asJSON, _ := cmd.Flags().GetBool("json")
		output, _ := cmd.Flags().GetString("output")

		store, err := openStore(ctx, nil)
		if err != nil {
			return err
		}
		defer store.Close()

		doc, _, err := store.Snapshot(ctx)
		if err != nil {
			return err
		}
		if cfg.RepoURL != "" && doc.RepoURL == "" {
			doc.RepoURL = cfg.RepoURL
		}

		var data []byte
		if asJSON {
			data, err = publish.EncodeJSON(doc)
		} else {
			data, err = publish.Encode(doc)
		}
		if err != nil {
			return fmt.Errorf("failed to encode history: %w", err)
		}

		if output == "" || output == "-" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(output, data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
		newLogger("[export] ").Printf("Wrote %d group(s) to %s", len(doc.Groups), output)
		return nil
	},
}

func init() {
	exportCmd.Flags().Bool("json", false, "Write plain JSON instead of data.js")
	exportCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	rootCmd.AddCommand(exportCmd)
}
