package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/garrettallen/cardboards/internal/services"
)

// NewTokenCommand issues a bearer token for the HTTP API
func NewTokenCommand() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd)
			if cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}

			token, err := services.NewTokenService(cfg.JWTSecret, ttl).IssueToken(subject)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token.AccessToken)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
