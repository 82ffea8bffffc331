package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func newAuthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorise Drive access and store the token for later runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			a, err := newAuthenticator(cfg, slog.Default())
			if err != nil {
				return err
			}
			tok, err := a.Token(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token stored in %s (expires %s).\n", cfg.OAuth.TokenFile, tok.Expiry.Format("2006-01-02 15:04"))
			return nil
		},
	}
}
