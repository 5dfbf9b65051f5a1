package cmd

import (
	"context"
	"fmt"

	"matchmaker/feature/accounts"
	"matchmaker/feature/matching/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	userCategory string
	userName     string
	userCredits  int64
	grantReason  string
)

// userCmd manages the user directory and credit balances.
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users and credits",
}

var userAddCmd = &cobra.Command{
	Use:   "add <user-id>",
	Short: "Register a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, ok := models.ParseCategory(userCategory)
		if !ok {
			return fmt.Errorf("invalid category %q", userCategory)
		}
		ctx := context.Background()
		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		user := &accounts.User{ID: args[0], Category: category.String(), DisplayName: userName, Active: true}
		if err := a.directory.Create(ctx, user); err != nil {
			return err
		}
		if userCredits > 0 {
			if _, err := a.ledger.Grant(ctx, user.ID, userCredits, "initial"); err != nil {
				return err
			}
		}
		a.logger.Info("User created", zap.String("user", user.ID), zap.String("category", user.Category), zap.Int64("credits", userCredits))
		return nil
	},
}

var userGrantCmd = &cobra.Command{
	Use:   "grant <user-id> <amount>",
	Short: "Grant credits to a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var amount int64
		if _, err := fmt.Sscan(args[1], &amount); err != nil || amount <= 0 {
			return fmt.Errorf("invalid amount %q", args[1])
		}
		ctx := context.Background()
		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		balance, err := a.ledger.Grant(ctx, args[0], amount, grantReason)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s balance: %d\n", args[0], balance)
		return nil
	},
}

func init() {
	userAddCmd.Flags().StringVar(&userCategory, "category", "", "User category (1 or 2)")
	userAddCmd.Flags().StringVar(&userName, "name", "", "Display name")
	userAddCmd.Flags().Int64Var(&userCredits, "credits", 0, "Initial credit balance")
	_ = userAddCmd.MarkFlagRequired("category")
	userGrantCmd.Flags().StringVar(&grantReason, "reason", "manual_grant", "Ledger reason")

	userCmd.AddCommand(userAddCmd, userGrantCmd)
	RootCmd.AddCommand(userCmd)
}
