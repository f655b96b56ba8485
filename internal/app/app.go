package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scribo/internal/common"
	"github.com/ternarybob/scribo/internal/handlers"
	"github.com/ternarybob/scribo/internal/interfaces"
	"github.com/ternarybob/scribo/internal/jobs/delegate"
	"github.com/ternarybob/scribo/internal/jobs/orchestrator"
	"github.com/ternarybob/scribo/internal/services/events"
	"github.com/ternarybob/scribo/internal/services/fetch"
	"github.com/ternarybob/scribo/internal/services/locator"
	"github.com/ternarybob/scribo/internal/services/summarizer"
	badgerstore "github.com/ternarybob/scribo/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	DB         *badgerstore.BadgerDB
	JobStorage interfaces.JobStorage

	EventService interfaces.EventService
	Fetcher      interfaces.Fetcher
	Locator      interfaces.PDFLocator
	Orchestrator *orchestrator.Service
	Delegate     interfaces.ExecutionDelegate

	// HTTP handlers
	APIHandler *handlers.APIHandler
	JobHandler *handlers.JobHandler
	WSHandler  *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	db, err := badgerstore.NewBadgerDB(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.DB = db
	app.JobStorage = badgerstore.NewJobStorage(db, logger)

	app.EventService = events.NewService(logger)

	app.Fetcher = fetch.NewClient(&cfg.HTTP, logger)
	app.Locator = locator.NewService(app.Fetcher, logger)

	app.Orchestrator = orchestrator.NewService(app.JobStorage, app.EventService, logger)
	app.Delegate = delegate.NewService(
		app.Locator,
		app.Fetcher,
		summarizer.NewFactory(&cfg.Summarizer, logger),
		app.Orchestrator,
		logger,
	)
	app.Orchestrator.SetDelegate(app.Delegate)

	app.APIHandler = handlers.NewAPIHandler()
	app.JobHandler = handlers.NewJobHandler(app.Orchestrator, cfg, logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, logger)

	return app, nil
}

// Resume re-attaches a job that was running when the previous process
// stopped. Called once after startup.
func (a *App) Resume(ctx context.Context) error {
	return a.Orchestrator.ResumeOnStartup(ctx)
}

// Close shuts down application components in reverse dependency order
func (a *App) Close() error {
	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}
	a.Logger.Info().Msg("Application closed")
	return nil
}
