package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"digestcast/internal/pipeline"
)

func newSourcesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List registered newsletter senders in chapter order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			registry, err := pipeline.BuildRegistry(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, registry.Len())
			for i, entry := range registry.Entries() {
				rows = append(rows, []string{strconv.Itoa(i + 1), registry.DisplayName(entry.Address), entry.Address})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"#", "Name", "Sender"}, rows, []columnAlignment{alignRight}))
			return nil
		},
	}
}
