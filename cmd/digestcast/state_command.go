package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"digestcast/internal/ledger"
)

func newStateCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the committed window and recently processed messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ledger.Open(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Ledger: %s (%s)\n", store.Driver(), ledgerLocation(cfg.State.Driver, cfg.StatePath()))
			fmt.Fprintf(out, "Processed messages: %d\n", stats.Processed)
			if stats.HasCommit {
				fmt.Fprintf(out, "Last window end: %s (%s)\n", stats.LastCommit.Local().Format(time.RFC3339), humanize.Time(stats.LastCommit))
			} else {
				fmt.Fprintf(out, "Last window end: none (next run looks back %s)\n", cfg.Lookback())
			}

			if limit <= 0 {
				return nil
			}
			records, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				return nil
			}
			rows := make([][]string, len(records))
			for i, rec := range records {
				rows[i] = []string{strconv.Itoa(i + 1), rec.MessageID, rec.ProcessedAt.Local().Format("2006-01-02 15:04")}
			}
			fmt.Fprintln(out, renderTable([]string{"#", "Message", "Processed"}, rows, []columnAlignment{alignRight}))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "recent", "n", 10, "Number of recent messages to list")
	return cmd
}

func ledgerLocation(driver, sqlitePath string) string {
	if driver == "postgres" {
		return "state.dsn"
	}
	return sqlitePath
}
