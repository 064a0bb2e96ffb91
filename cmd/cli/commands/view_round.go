package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/services"
)

// ViewRoundCmd creates the viewRound command
func ViewRoundCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "viewRound <round_id>",
		Short: "Show a round with application, section and time range statuses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("viewRound command", zap.String("round_id", args[0]))

			view, err := services.ViewRound(app.Ctx, app.Database, app.Clock, app.Logger, args[0])
			if err != nil {
				return err
			}

			printRoundView(view)
			return nil
		},
	}
}

func printRoundView(view *services.RoundView) {
	fmt.Printf("\n%s%s%s (%s)\n", colorBold, view.Round.Name, colorReset, view.Round.ID)
	fmt.Printf("Status:             %s\n", view.Status)
	fmt.Printf("Application period: %s to %s\n",
		view.Round.ApplicationPeriodBegin.Format("2006-01-02"), view.Round.ApplicationPeriodEnd.Format("2006-01-02"))
	fmt.Printf("Reservation period: %s to %s\n\n",
		view.Round.ReservationPeriodBegin.Format("2006-01-02"), view.Round.ReservationPeriodEnd.Format("2006-01-02"))

	for _, app := range view.Applications {
		fmt.Printf("%s%s%s [%s] %s\n", colorBold, app.Application.ApplicantName, colorReset, app.Status, app.Application.ID)

		for _, section := range app.Sections {
			fmt.Printf("  %s%-14s%s %s (%s) %d/%d per week\n",
				sectionStatusColor(section.Status), section.Status, colorReset,
				section.Section.Name, section.Section.ID,
				len(section.Allocations), section.Section.AppliedReservationsPerWeek)

			for _, r := range section.Ranges {
				mark := " "
				if r.Fulfilled {
					mark = "✓"
				}
				fmt.Printf("      %s %-9s %s %s\n", mark, r.Range.DayOfTheWeek, r.Range.Range(), r.Range.Priority)
			}
			for _, o := range section.Options {
				flags := ""
				if o.Rejected {
					flags += " rejected"
				}
				if o.Locked {
					flags += " locked"
				}
				fmt.Printf("      option %d: %s (%s)%s\n", o.PreferredOrder, o.ReservationUnitID, o.ID, flags)
			}
			for _, slot := range section.Allocations {
				fmt.Printf("      slot %s (%s)\n", formatSlot(slot), slot.ID)
			}
			if section.Confirmed+section.Denied > 0 {
				fmt.Printf("      reservations: %d confirmed, %d denied\n", section.Confirmed, section.Denied)
			}
		}
		fmt.Println()
	}
}
