package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chemtrace/sds-cli/internal/export"
	"github.com/chemtrace/sds-cli/internal/model"
	"github.com/chemtrace/sds-cli/internal/store"
)

var (
	exportOutcome string
	exportProfile string
	exportLimit   int
)

var exportCmd = &cobra.Command{
	Use:   "export <out.xlsx>",
	Short: "Write a spreadsheet report of stored extraction records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		recs, err := st.ListRecords(ctx, store.RecordFilter{
			Outcome: exportOutcome,
			Profile: exportProfile,
			Limit:   exportLimit,
		})
		if err != nil {
			return err
		}

		if err := export.WriteXLSX(recs, model.DefaultFieldRegistry(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d records written to %s\n", len(recs), args[0])
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOutcome, "outcome", "", "filter by outcome")
	exportCmd.Flags().StringVar(&exportProfile, "profile", "", "filter by profile")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 1000, "maximum records to export")
	rootCmd.AddCommand(exportCmd)
}
