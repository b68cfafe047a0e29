package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var groupsCmd = &cobra.Command{
	Use:     "groups",
	GroupID: "inspect",
	Short:   "List benchmark groups in the history",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx, nil)
		if err != nil {
			return err
		}
		defer store.Close()

		doc, _, err := store.Snapshot(ctx)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		names := doc.Names()
		if len(names) == 0 {
			fmt.Fprintf(w, "No benchmark groups in %s.\n", store.Medium())
			return nil
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "GROUP\tRUNS\tLATEST")
		for _, name := range names {
			runs := doc.Runs(name)
			latest := "-"
			if n := len(runs); n > 0 {
				last := runs[n-1]
				latest = fmt.Sprintf("%s %s", shortID(last.Commit.ID),
					time.UnixMilli(last.Date).UTC().Format(time.DateTime))
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\n", name, len(runs), latest)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(groupsCmd)
}
