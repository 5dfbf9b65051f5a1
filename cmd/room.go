package cmd

import (
	"context"
	"errors"
	"fmt"

	"matchmaker/feature/rooms"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// roomCmd manages rooms created by pairings.
var roomCmd = &cobra.Command{
	Use:   "room",
	Short: "Manage pairing rooms",
}

// roomCloseCmd closes an open room so neither user reports it in their match status.
var roomCloseCmd = &cobra.Command{
	Use:   "close <room-id>",
	Short: "Close an open room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := loadApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.rooms.Close(ctx, args[0]); err != nil {
			if errors.Is(err, rooms.ErrRoomNotFound) {
				return fmt.Errorf("no open room %s", args[0])
			}
			return err
		}
		a.logger.Info("Room closed", zap.String("room", args[0]))
		return nil
	},
}

func init() {
	roomCmd.AddCommand(roomCloseCmd)
	RootCmd.AddCommand(roomCmd)
}
