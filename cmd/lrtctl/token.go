package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"landrace-threat/internal/auth"
	"landrace-threat/internal/config"
)

func tokenCommand() *cobra.Command {
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Manage JWT signing keys and tokens",
	}

	tokenCmd.AddCommand(keygenCommand(), issueCommand())

	return tokenCmd
}

func keygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new ES256 private key for JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := auth.GeneratePrivateKeyPEM()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(key)
			return err
		},
	}
}

func issueCommand() *cobra.Command {
	var (
		userID string
		email  string
		name   string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if cfg.JWT.Secret == "" {
				return fmt.Errorf("JWT_SECRET is not set; a token signed with an ephemeral key is useless")
			}
			if ttl <= 0 {
				ttl = cfg.JWT.Expiration
			}

			token, err := auth.NewService(&cfg.JWT).GenerateTokenWithExpiration(userID, email, name, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "user id (token subject)")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: JWT_EXPIRATION)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
