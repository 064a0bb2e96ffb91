package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/model"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/services"
)

// AllocateSlotCmd creates the allocateSlot command
func AllocateSlotCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocateSlot <option_id> <day> <begin> <end>",
		Short: "Allocate a weekly time slot to a reservation unit option",
		Long: `Allocate a weekly time slot, e.g. "allocateSlot opt-1 MONDAY 10:00 12:00".
--force bypasses day suitability, duration bounds and suitable time ranges. Overlaps,
quota and option flags are always enforced.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")

			day, begin, end, err := parseSlotArgs(args[1], args[2], args[3])
			if err != nil {
				return err
			}

			app.Logger.Debug("allocateSlot command",
				zap.String("option_id", args[0]),
				zap.Stringer("day", day),
				zap.Bool("force", force))

			slot, err := services.AllocateSlot(app.Ctx, app.Database, app.Database, app.Locker, app.Clock, app.Logger,
				services.AllocateSlotRequest{
					OptionID:     args[0],
					DayOfTheWeek: day,
					BeginTime:    begin,
					EndTime:      end,
					Force:        force,
				})
			if err != nil {
				var verr *model.ValidationError
				if errors.As(err, &verr) {
					return errors.New(describeError(verr))
				}
				return err
			}

			fmt.Printf("\n✅ Allocated %s (%s)\n\n", formatSlot(*slot), slot.ID)
			return nil
		},
	}

	cmd.Flags().Bool("force", false, "Bypass soft constraints")

	return cmd
}
