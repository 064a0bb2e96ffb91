package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/services"
)

// CreateReservationsCmd creates the createReservations command
func CreateReservationsCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "createReservations <round_id>",
		Short: "Create recurring reservations for every allocated slot of a handled round",
		Long: `Create one recurring reservation per allocated slot. Occurrences that clash with a
confirmed reservation or fall outside opening hours are stored as denied.
The command can be rerun safely; slots that already have a series are skipped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("createReservations command", zap.String("round_id", args[0]))

			result, err := services.MaterializeRound(app.Ctx, app.Database, app.Materializer(), app.Publisher, app.Clock, app.Logger, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("\n📅 Recurring Reservations\n\n")
			fmt.Printf("Created:              %d\n", result.Created)
			fmt.Printf("Already created:      %d\n", result.AlreadyMaterialized)
			fmt.Printf("Cancelled (skipped):  %d\n", result.Cancelled)
			fmt.Printf("Occurrences:          %s%d confirmed%s, %s%d denied%s\n",
				colorGreen, result.Confirmed, colorReset, colorRed, result.Denied, colorReset)

			if result.CollaboratorErrors > 0 {
				fmt.Printf("%s⚠️  %d occurrences denied because an availability check failed%s\n",
					colorYellow, result.CollaboratorErrors, colorReset)
			}
			if result.Skipped > 0 {
				fmt.Printf("%s⚠️  %d slots skipped due to missing data (see log)%s\n", colorYellow, result.Skipped, colorReset)
			}
			if result.PublishFailures > 0 {
				fmt.Printf("%s⚠️  %d SeriesCreated events could not be published%s\n", colorYellow, result.PublishFailures, colorReset)
			}
			if result.Failed > 0 {
				fmt.Println()
				return fmt.Errorf("%d slots failed, run the command again to retry them", result.Failed)
			}

			fmt.Println()
			return nil
		},
	}
}
