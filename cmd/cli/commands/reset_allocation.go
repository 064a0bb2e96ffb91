package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/services"
	"github.com/jakechorley/tilavaraus-allocation/pkg/db"
)

// ResetAllocationCmd creates the resetAllocation command
func ResetAllocationCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resetAllocation <round|application> <id>",
		Short: "Delete every slot of a round or application and clear option flags",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, id := args[0], args[1]
			app.Logger.Debug("resetAllocation command", zap.String("scope", scope), zap.String("id", id))

			var (
				result *db.ResetResult
				err    error
			)
			switch scope {
			case "round":
				result, err = services.ResetRoundAllocation(app.Ctx, app.Database, app.Database, app.Locker, app.Clock, app.Logger, id)
			case "application":
				result, err = services.ResetApplicationAllocation(app.Ctx, app.Database, app.Database, app.Locker, app.Clock, app.Logger, id)
			default:
				return fmt.Errorf("scope must be round or application, got %q", scope)
			}
			if err != nil {
				return err
			}

			fmt.Printf("\n✓ Reset %s %s: %d slots deleted, %d options cleared\n\n", scope, id, result.DeletedSlots, result.ResetOptions)
			return nil
		},
	}
}
