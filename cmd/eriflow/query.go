package main

import (
	"github.com/spf13/cobra"

	"github.com/hazyhaar/eriflow/idgen"
	"github.com/hazyhaar/eriflow/report"
	"github.com/hazyhaar/eriflow/store"
)

func (a *app) resultsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "results [batch-id]",
		Short: "List journaled batches, or the outcomes of one batch.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if len(args) == 0 {
				bs, err := st.Batches(cmd.Context(), limit)
				if err != nil {
					return err
				}
				report.Batches(cmd.OutOrStdout(), bs)
				return nil
			}
			id, err := idgen.Parse(args[0])
			if err != nil {
				return err
			}
			es, err := st.Outcomes(cmd.Context(), id)
			if err != nil {
				return err
			}
			report.Outcomes(cmd.OutOrStdout(), es)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of batches")
	return cmd
}

func (a *app) lookupCmd() *cobra.Command {
	var (
		statistic string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "lookup <eri-code>",
		Short: "Show journaled results for a job code, newest first.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			es, err := st.Lookup(cmd.Context(), store.Query{Code: args[0], Statistic: statistic, Limit: limit})
			if err != nil {
				return err
			}
			report.Outcomes(cmd.OutOrStdout(), es)
			return nil
		},
	}
	cmd.Flags().StringVarP(&statistic, "statistic", "s", "", "statistic token, e.g. \"Mean\" or \"75th Percentile\"")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum rows")
	return cmd
}
