package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/services"
)

// MarkHandledCmd creates the markHandled command
func MarkHandledCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "markHandled <round_id>",
		Short: "End allocation for a round",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("markHandled command", zap.String("round_id", args[0]))

			if err := services.SetRoundHandled(app.Ctx, app.Database, app.Clock, app.Logger, args[0]); err != nil {
				return err
			}

			fmt.Printf("\n✓ Round %s handled. Run createReservations to book the allocated slots.\n\n", args[0])
			return nil
		},
	}
}

// MarkResultsSentCmd creates the markResultsSent command
func MarkResultsSentCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "markResultsSent <round_id>",
		Short: "Record that allocation results were sent to applicants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("markResultsSent command", zap.String("round_id", args[0]))

			if err := services.SetResultsSent(app.Ctx, app.Database, app.Clock, app.Logger, args[0]); err != nil {
				return err
			}

			fmt.Printf("\n✓ Round %s results sent\n\n", args[0])
			return nil
		},
	}
}
