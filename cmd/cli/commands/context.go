package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/jakechorley/tilavaraus-allocation/internal/config"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/openinghours"
	"github.com/jakechorley/tilavaraus-allocation/pkg/core/recurrence"
	"github.com/jakechorley/tilavaraus-allocation/pkg/events"
	"github.com/jakechorley/tilavaraus-allocation/pkg/lock"
	"github.com/jakechorley/tilavaraus-allocation/pkg/postgres"
	"github.com/jakechorley/tilavaraus-allocation/pkg/utils/clock"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Env       string
	Cfg       *config.Config
	Database  *postgres.DB
	Locker    lock.Locker
	Publisher events.Publisher
	Hours     openinghours.Oracle
	Clock     clock.Clock
	Logger    *zap.Logger
	Ctx       context.Context
}

// Materializer builds the series materializer from the shared dependencies
func (app *AppContext) Materializer() *recurrence.Materializer {
	return recurrence.NewMaterializer(app.Database, app.Database, app.Locker, app.Hours, app.Clock, app.Logger)
}
