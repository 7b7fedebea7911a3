package main

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/console/internal/auth"
	"github.com/smallbiznis/console/internal/config"
	"github.com/spf13/cobra"
)

func newTokenCommand() *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an admin user (development only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cfg.IsProduction() {
				return fmt.Errorf("token issuing is disabled in production")
			}

			id, err := snowflake.ParseString(userID)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid --user-id %q", userID)
			}

			tokens, err := auth.NewTokens(cfg)
			if err != nil {
				return err
			}
			token, err := tokens.Issue(id, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "Admin user id the token acts for")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}
