package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// pairCmd runs a single batch pairing pass outside the server.
var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Run one batch pairing pass",
	Long:  `Pairs the oldest waiting users of both categories index by index and prints the result.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		res := a.engine.RunBatchPairing(ctx)
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		if res.Error != "" {
			return fmt.Errorf("batch pairing failed: %s", res.Error)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(pairCmd)
}
