package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"digestcast/internal/mailbox"
)

func newAuthCommand(ctx *commandContext) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize mailbox access",
	}
	authCmd.AddCommand(&cobra.Command{
		Use:   "gmail",
		Short: "Run the Gmail OAuth consent flow and cache the token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			oauthCfg, err := mailbox.LoadOAuthConfig(cfg.Mailbox.Gmail.CredentialsPath)
			if err != nil {
				return fmt.Errorf("%w (download the OAuth client JSON from the Google Cloud console)", err)
			}
			return mailbox.Authorize(cmd.Context(), oauthCfg, cfg.Mailbox.Gmail.TokenPath, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	})
	return authCmd
}
