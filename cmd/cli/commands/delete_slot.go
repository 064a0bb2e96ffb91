package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/services"
)

// DeleteSlotCmd creates the deleteSlot command
func DeleteSlotCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deleteSlot <slot_id>",
		Short: "Delete an allocated time slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("deleteSlot command", zap.String("slot_id", args[0]))

			if err := services.DeleteAllocation(app.Ctx, app.Database, app.Database, app.Locker, app.Clock, app.Logger, args[0]); err != nil {
				return err
			}

			fmt.Printf("\n✓ Deleted slot %s\n\n", args[0])
			return nil
		},
	}
}
