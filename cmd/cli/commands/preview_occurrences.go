package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/pkg/core/services"
)

// PreviewOccurrencesCmd creates the previewOccurrences command
func PreviewOccurrencesCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "previewOccurrences <section_id>",
		Short: "List the dates each suitable time range of a section would produce",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Debug("previewOccurrences command", zap.String("section_id", args[0]))

			previews, err := services.PreviewOccurrences(app.Ctx, app.Database, app.Clock, app.Logger, args[0])
			if err != nil {
				return err
			}

			for _, preview := range previews {
				fmt.Printf("\n%s%s %s (%s)%s, %d occurrences\n", colorBold,
					preview.Range.DayOfTheWeek, preview.Range.Range(), preview.Range.Priority, colorReset, len(preview.Occurrences))
				for _, o := range preview.Occurrences {
					fmt.Printf("  %s - %s\n", o.Begin.Format("Mon 2006-01-02 15:04"), o.End.Format("15:04"))
				}
			}
			fmt.Println()

			return nil
		},
	}
}
