package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// MigrateCmd creates the migrate command
func MigrateCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app.Logger.Info("Running database migrations")

			applied, err := app.Database.RunMigrations(app.Ctx, app.Logger)
			if err != nil {
				return err
			}

			for _, name := range applied {
				fmt.Printf("  ✓ %s\n", name)
			}
			fmt.Printf("\n✓ Database schema is up to date (%d migration(s) applied)\n\n", len(applied))
			return nil
		},
	}
}
