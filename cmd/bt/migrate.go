package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/benchtrail/benchtrail/internal/config"
	"github.com/benchtrail/benchtrail/internal/history"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: "maint",
	Short:   "Copy the history to another backend",
	Long: `Copy the artifact from the configured backend to another one. The source
must decode cleanly; corrupt history is never copied. An existing
destination is left alone unless --overwrite is given.

Examples:
  bt migrate --to-backend sqlite --to-dsn bench.db
  bt migrate --backend git --to-backend file --to-path data.js --dry-run`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		overwrite, _ := cmd.Flags().GetBool("overwrite")

		dstStore := config.StoreConfig{
			Document:   cfg.Store.Document,
			Timeout:    cfg.Store.Timeout,
			MaxRetries: cfg.Store.MaxRetries,
		}
		dstStore.Backend, _ = cmd.Flags().GetString("to-backend")
		dstStore.Path, _ = cmd.Flags().GetString("to-path")
		dstStore.DSN, _ = cmd.Flags().GetString("to-dsn")
		if doc, _ := cmd.Flags().GetString("to-document"); doc != "" {
			dstStore.Document = doc
		}
		dstGit := cfg.Git
		if s, _ := cmd.Flags().GetString("to-git-branch"); s != "" {
			dstGit.Branch = s
		}
		if s, _ := cmd.Flags().GetString("to-git-file"); s != "" {
			dstGit.File = s
		}

		dstCfg := *cfg
		dstCfg.Store, dstCfg.Git = dstStore, dstGit
		if err := dstCfg.Validate(); err != nil {
			return fmt.Errorf("destination: %w", err)
		}
		if dstStore.Backend == cfg.Store.Backend && dstStore.Path == cfg.Store.Path &&
			dstStore.DSN == cfg.Store.DSN && dstStore.Document == cfg.Store.Document && dstGit == cfg.Git {
			return fmt.Errorf("source and destination are the same")
		}

		src, err := openMedium(ctx, cfg.Store, cfg.Git)
		if err != nil {
			return err
		}
		defer src.Close()
		dst, err := openMedium(ctx, dstStore, dstGit)
		if err != nil {
			return err
		}
		defer dst.Close()

		result, err := history.Migrate(ctx, src, dst, history.MigrateOptions{
			DryRun:    dryRun,
			Overwrite: overwrite,
			RepoURL:   cfg.RepoURL,
		})
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if dryRun {
			fmt.Fprintf(w, "Would copy %d group(s), %d run(s) (%d bytes) from %s to %s.\n",
				result.Groups, result.Runs, result.Bytes, src, dst)
			return nil
		}
		fmt.Fprintf(w, "Copied %d group(s), %d run(s) (%d bytes) from %s to %s.\n",
			result.Groups, result.Runs, result.Bytes, src, dst)
		return nil
	},
}

func init() {
	migrateCmd.Flags().String("to-backend", "", "Destination backend: file, git, sqlite, postgres")
	migrateCmd.Flags().String("to-path", "", "Destination file (file backend)")
	migrateCmd.Flags().String("to-dsn", "", "Destination database (sqlite, postgres)")
	migrateCmd.Flags().String("to-document", "", "Destination document name (sqlite, postgres)")
	migrateCmd.Flags().String("to-git-branch", "", "Destination branch (git backend)")
	migrateCmd.Flags().String("to-git-file", "", "Destination file on the branch (git backend)")
	migrateCmd.Flags().Bool("dry-run", false, "Validate the source without writing")
	migrateCmd.Flags().Bool("overwrite", false, "Replace existing destination history")
	_ = migrateCmd.MarkFlagRequired("to-backend")
	rootCmd.AddCommand(migrateCmd)
}
