package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/services"
)

// AllocateRoundCmd creates the allocateRound command
func AllocateRoundCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocateRound <round_id>",
		Short: "Allocate every open section of a round greedily",
		Long:  "Run the greedy allocator over every section of the round that still has weekly quota and usable options",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			app.Logger.Debug("allocateRound command",
				zap.String("round_id", args[0]),
				zap.Bool("dry_run", dryRun))

			result, err := services.AllocateRound(app.Ctx, app.Database, app.Database, app.Locker, app.Clock, app.Logger, args[0], dryRun)
			if err != nil {
				return fmt.Errorf("allocation failed: %w", err)
			}
			outcome := result.Outcome

			fmt.Printf("\n🎯 Round Allocation Results\n\n")
			fmt.Printf("Round ID:  %s\n", args[0])
			switch {
			case dryRun:
				fmt.Printf("Mode:      🧪 DRY RUN (not saved)\n")
			case result.Persisted:
				fmt.Printf("Status:    ✅ SUCCESS (saved to database)\n")
			default:
				fmt.Printf("Status:    ❌ FAILED (not saved)\n")
			}
			fmt.Println()

			if len(outcome.ValidationErrors) > 0 {
				fmt.Printf("⚠️  Validation Errors (%d):\n", len(outcome.ValidationErrors))
				for _, verr := range outcome.ValidationErrors {
					fmt.Printf("  • Section %s - %s: %s\n", verr.SectionID, verr.ConstraintName, verr.Description)
				}
				fmt.Println()
			}

			fmt.Printf("📅 New Slots (%d):\n\n", len(outcome.NewSlots))
			fmt.Printf("%s%-14s  %-28s  %-14s%s\n", colorBold, "Section", "Slot", "Option", colorReset)
			for _, slot := range outcome.NewSlots {
				fmt.Printf("%-14s  %-28s  %-14s\n", slot.SectionID, formatSlot(slot), slot.OptionID)
			}
			fmt.Println()

			if len(outcome.UnsatisfiedSections) > 0 {
				fmt.Printf("%sUnsatisfied sections (%d):%s\n", colorYellow, len(outcome.UnsatisfiedSections), colorReset)
				for _, section := range outcome.UnsatisfiedSections {
					fmt.Printf("  • %s (%s): %d of %d per week\n",
						section.Section.Name, section.Section.ID,
						len(section.Allocations), section.Section.AppliedReservationsPerWeek)
				}
				fmt.Println()
			}

			return nil
		},
	}

	cmd.Flags().Bool("dry-run", false, "Run without saving to database")

	return cmd
}
