package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/eriflow/sheets"
	"github.com/hazyhaar/eriflow/sink"
)

func (a *app) sheetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "Sync CSV tables with the configured Google spreadsheet.",
	}

	client := func(cmd *cobra.Command) (*sheets.Client, error) {
		return sheets.New(cmd.Context(), sheets.Config{
			SpreadsheetID:   a.cfg.Sheets.SpreadsheetID,
			Range:           a.cfg.Sheets.Range,
			CredentialsFile: a.cfg.Sheets.CredentialsFile,
			Logger:          a.logger,
		})
	}

	push := &cobra.Command{
		Use:   "push <file.csv>",
		Short: "Replace the sheet range with a CSV file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			header, rows, err := sink.ReadLog(args[0])
			if err != nil {
				return err
			}
			c, err := client(cmd)
			if err != nil {
				return err
			}
			return c.Replace(cmd.Context(), append([][]string{header}, rows...))
		},
	}

	pull := &cobra.Command{
		Use:   "pull <file.csv>",
		Short: "Write the sheet range to a CSV file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client(cmd)
			if err != nil {
				return err
			}
			values, err := c.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			if len(values) == 0 {
				return fmt.Errorf("sheet range %s is empty", a.cfg.Sheets.Range)
			}
			if err := sink.WriteTable(args[0], values[0], values[1:]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d rows written to %s\n", len(values)-1, args[0])
			return nil
		},
	}

	var startRow int
	column := &cobra.Command{
		Use:   "column <file.csv> <header>",
		Short: "Write one column of a CSV file into the same column of the sheet.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			header, rows, err := sink.ReadLog(args[0])
			if err != nil {
				return err
			}
			c, err := client(cmd)
			if err != nil {
				return err
			}
			return c.UpdateColumn(cmd.Context(), header, rows, args[1], startRow)
		},
	}
	column.Flags().IntVar(&startRow, "start-row", 2, "first sheet row to write (1-based)")

	cmd.AddCommand(push, pull, column)
	return cmd
}
