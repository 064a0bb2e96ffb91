package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/services"
)

// RejectOptionCmd creates the rejectOption command
func RejectOptionCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rejectOption <option_id>",
		Short: "Reject a reservation unit option so the allocator skips it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			restore, _ := cmd.Flags().GetBool("restore")
			app.Logger.Debug("rejectOption command", zap.String("option_id", args[0]), zap.Bool("restore", restore))

			if err := services.SetOptionRejected(app.Ctx, app.Database, app.Clock, app.Logger, args[0], !restore); err != nil {
				return err
			}

			if restore {
				fmt.Printf("\n✓ Option %s restored\n\n", args[0])
			} else {
				fmt.Printf("\n✓ Option %s rejected\n\n", args[0])
			}
			return nil
		},
	}

	cmd.Flags().Bool("restore", false, "Clear the rejected flag instead")

	return cmd
}

// LockOptionCmd creates the lockOption command
func LockOptionCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lockOption <option_id>",
		Short: "Lock a reservation unit option so nothing more is allocated to it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			unlock, _ := cmd.Flags().GetBool("unlock")
			app.Logger.Debug("lockOption command", zap.String("option_id", args[0]), zap.Bool("unlock", unlock))

			if err := services.SetOptionLocked(app.Ctx, app.Database, app.Clock, app.Logger, args[0], !unlock); err != nil {
				return err
			}

			if unlock {
				fmt.Printf("\n✓ Option %s unlocked\n\n", args[0])
			} else {
				fmt.Printf("\n✓ Option %s locked\n\n", args[0])
			}
			return nil
		},
	}

	cmd.Flags().Bool("unlock", false, "Clear the locked flag instead")

	return cmd
}

// RejectSectionCmd creates the rejectSection command
func RejectSectionCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rejectSection <section_id>",
		Short: "Reject every reservation unit option of a section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			restore, _ := cmd.Flags().GetBool("restore")
			app.Logger.Debug("rejectSection command", zap.String("section_id", args[0]), zap.Bool("restore", restore))

			var (
				count int
				err   error
			)
			if restore {
				count, err = services.RestoreAllSectionOptions(app.Ctx, app.Database, app.Clock, app.Logger, args[0])
			} else {
				count, err = services.RejectAllSectionOptions(app.Ctx, app.Database, app.Clock, app.Logger, args[0])
			}
			if err != nil {
				return err
			}

			action := "rejected"
			if restore {
				action = "restored"
			}
			fmt.Printf("\n✓ %d options of section %s %s\n\n", count, args[0], action)
			return nil
		},
	}

	cmd.Flags().Bool("restore", false, "Restore every option instead")

	return cmd
}
