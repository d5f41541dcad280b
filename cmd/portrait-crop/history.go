package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent batch runs from the run-history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			if s == nil {
				return errors.New("no database configured (use --db or POSTGRES_* variables)")
			}
			defer s.Close(cmd.Context())

			runs, err := s.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tSTARTED\tINPUT\tOUTPUT\tTOTAL\tCROPPED\tNO FACE\tFAILED\tSTATE")
			fmt.Fprintln(w, "--\t-------\t-----\t------\t-----\t-------\t-------\t------\t-----")
			for _, r := range runs {
				state := "done"
				switch {
				case r.FinishedAt == nil:
					state = "running"
				case r.Totals.Cancelled:
					state = "cancelled"
				case r.DryRun:
					state = "dry-run"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
					r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.InputRoot, r.OutputRoot,
					r.Totals.Total, r.Totals.Cropped, r.Totals.NoFace, r.Totals.Failed, state)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}
