package cmd

import (
	"fmt"
	"time"

	"matchmaker/core/config"
	"matchmaker/core/middleware/auth"

	"github.com/spf13/cobra"
)

var tokenTTL time.Duration

// tokenCmd issues a bearer token for local testing of the API and gateway.
var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a bearer token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		token, err := auth.NewVerifier(cfg.Auth).Issue(args[0], tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	RootCmd.AddCommand(tokenCmd)
}
