// cmd/history.go
package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/glimpse/internal/observability"
)

func newHistoryCmd(f *factories) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Lists recent runs stored in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := configFrom(ctx)
			if err != nil {
				return err
			}
			url := cfg.Database().URL
			if url == "" {
				return errors.New("run history needs database.url (or GLIMPSE_DATABASE_URL) to be set")
			}

			s, closeFn, err := f.openStore(ctx, url, observability.GetLogger())
			if err != nil {
				return err
			}
			defer closeFn()

			runs, err := s.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTARTED\tSTATUS\tITERATIONS\tELAPSED\tTASK")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.Iterations,
					r.Elapsed.Round(time.Millisecond), r.Task)
			}
			return w.Flush()
		},
	}
	historyCmd.Flags().IntVarP(&limit, "limit", "l", 20, "number of runs to show")
	return historyCmd
}
