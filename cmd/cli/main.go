package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/cmd/cli/commands"
	"github.com/jakechorley/tilavaraus-allocation/internal/config"
	"github.com/jakechorley/tilavaraus-allocation/pkg/clients/sheetsclient"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/openinghours"
	"github.com/jakechorley/tilavaraus-allocation/pkg/events"
	"github.com/jakechorley/tilavaraus-allocation/pkg/lock"
	"github.com/jakechorley/tilavaraus-allocation/pkg/postgres"
	"github.com/jakechorley/tilavaraus-allocation/pkg/utils/clock"
	"github.com/jakechorley/tilavaraus-allocation/pkg/utils/logging"
)

var (
	env     string
	verbose bool
	app     = &commands.AppContext{}
	closers []func()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Seasonal allocation of recurring reservations",
		Long: `A CLI tool for allocating weekly time slots of an application round to reservation units
and turning the allocations into recurring reservations.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			shutdown()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logs on the console")
	rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(commands.ViewRoundCmd(app))
	rootCmd.AddCommand(commands.AllocateSlotCmd(app))
	rootCmd.AddCommand(commands.AllocateRoundCmd(app))
	rootCmd.AddCommand(commands.DeleteSlotCmd(app))
	rootCmd.AddCommand(commands.RejectOptionCmd(app))
	rootCmd.AddCommand(commands.LockOptionCmd(app))
	rootCmd.AddCommand(commands.RejectSectionCmd(app))
	rootCmd.AddCommand(commands.ResetAllocationCmd(app))
	rootCmd.AddCommand(commands.MarkHandledCmd(app))
	rootCmd.AddCommand(commands.MarkResultsSentCmd(app))
	rootCmd.AddCommand(commands.CreateReservationsCmd(app))
	rootCmd.AddCommand(commands.PreviewOccurrencesCmd(app))
	rootCmd.AddCommand(commands.MigrateCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd(app))

	if err := rootCmd.Execute(); err != nil {
		shutdown()
		os.Exit(1)
	}
}

// initApp sets up logger, config, database, locks, events and opening hours
func initApp() error {
	var err error
	app.Env = env
	app.Ctx = context.Background()

	app.Logger, err = logging.InitLogger(env, verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger.Info("Starting application", zap.String("environment", env))

	// Load configuration
	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Clock = clock.System(app.Cfg.Location())
	app.Logger.Debug("Configuration loaded successfully", zap.String("time_zone", app.Cfg.TimeZone))

	// Connect to database
	app.Logger.Info("Connecting to database")
	app.Database, err = postgres.NewDB(app.Ctx, app.Cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	closers = append(closers, app.Database.Close)

	// Allocation locks
	if app.Cfg.Redis != nil {
		app.Logger.Info("Using Redis allocation locks")
		client, err := lock.NewRedisClient(app.Ctx, app.Cfg.Redis.URL, app.Cfg.Redis.Password)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		closers = append(closers, func() { client.Close() })
		app.Locker = lock.NewRedis(client, lock.RedisOptions{
			Prefix: app.Cfg.Redis.LockPrefix,
			TTL:    app.Cfg.Redis.LockTTL,
			Wait:   app.Cfg.Redis.LockWait,
		}, app.Logger)
	} else {
		app.Logger.Debug("Using process-local allocation locks")
		app.Locker = lock.NewLocal()
	}

	// Domain events
	if app.Cfg.AMQPURL != "" {
		app.Logger.Info("Connecting to message broker")
		publisher, err := events.DialAMQP(app.Cfg.AMQPURL, app.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to message broker: %w", err)
		}
		closers = append(closers, func() { publisher.Close() })
		app.Publisher = publisher
	} else {
		app.Publisher = events.Nop{Logger: app.Logger}
	}

	// Opening hours
	app.Hours, err = openingHoursOracle()
	if err != nil {
		return err
	}

	app.Logger.Debug("Application initialized")
	return nil
}

func openingHoursOracle() (openinghours.Oracle, error) {
	var base openinghours.Oracle
	if app.Cfg.UsesSheets() {
		app.Logger.Info("Reading opening hours from Google Sheets", zap.String("spreadsheet_id", app.Cfg.OpeningHours.SheetID))
		oauthCfg, err := config.LoadOAuthClientWithEnv(env)
		if err != nil {
			return nil, fmt.Errorf("failed to load OAuth client config: %w", err)
		}
		client, err := sheetsclient.NewClient(app.Ctx, oauthCfg, env, app.Logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create sheets client: %w", err)
		}
		sheet := sheetsclient.NewOpeningHoursSheet(client, app.Cfg.OpeningHours.SheetID, app.Cfg.OpeningHours.SheetTab)
		base = openinghours.NewSourceOracle(sheet, app.Cfg.Location())
	} else {
		hours, err := app.Cfg.StaticOpeningHours()
		if err != nil {
			return nil, err
		}
		schedule, err := openinghours.NewWeeklySchedule(app.Cfg.Location(), hours)
		if err != nil {
			return nil, fmt.Errorf("failed to build opening hours: %w", err)
		}
		base = schedule
	}

	closures, err := app.Cfg.ClosureRules()
	if err != nil {
		return nil, err
	}
	return openinghours.WithClosures(base, app.Cfg.Location(), closures...), nil
}

func shutdown() {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	closers = nil
	if app.Logger != nil {
		app.Logger.Sync()
	}
}
