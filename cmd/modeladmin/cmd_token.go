package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"modeladmin/internal/auth"
	"modeladmin/internal/config"
)

// tokenCmd mints a bearer token signed with auth.jwt_secret.
func tokenCmd() *cobra.Command {
	var (
		roles []string
		ttl   = auth.DefaultTokenTTL
	)

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Mint a bearer token for the API",
		Args:  cobra.ExactArgs(1),
		Example: `  modeladmin token alice
  modeladmin token ops --role admin --ttl 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not set")
			}

			token, err := auth.GenerateAccessToken(args[0], roles, cfg.Auth.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&roles, "role", nil, "Role to grant (repeatable)")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "Token lifetime")
	return cmd
}
