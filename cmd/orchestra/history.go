package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd(g *globalFlags) *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List runs recorded in the history database, newest first.

With --run the invocations of a single run are shown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}

			store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()

			if runID != "" {
				rec, err := store.Get(cmd.Context(), runID)
				if err != nil {
					return fmt.Errorf("run %s: %w", runID, err)
				}
				printRecord(out, rec, true)
				return nil
			}

			recs, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(out, "No runs recorded. Run 'orchestra run' to start.")
				return nil
			}

			total, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}

			for _, rec := range recs {
				printRecord(out, rec, false)
			}
			fmt.Fprintf(out, "\n%d of %d runs\n", len(recs), total)

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs (0 = all)")
	cmd.Flags().StringVar(&runID, "run", "", "show the invocations of one run")

	return cmd
}
