// Package agent initializes and runs the on-device sync agent. It opens
// the local record store, wires both transport drivers into the sync
// orchestrator and drives periodic sync attempts until shutdown.
package agent

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/wearsync/internal/agent/config"
	"github.com/dmitrijs2005/wearsync/internal/agent/identity"
	"github.com/dmitrijs2005/wearsync/internal/agent/repositories/records"
	"github.com/dmitrijs2005/wearsync/internal/agent/services"
	"github.com/dmitrijs2005/wearsync/internal/agent/transport/fallback"
	"github.com/dmitrijs2005/wearsync/internal/agent/transport/primary"
	"github.com/dmitrijs2005/wearsync/internal/logging"

	_ "modernc.org/sqlite"
)

type App struct {
	config *config.Config
	logger logging.Logger
}

func NewApp(c *config.Config, logger logging.Logger) *App {
	return &App{config: c, logger: logger}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting agent", "endpoint", app.config.Endpoint, "dsn", app.config.DatabaseDSN)

	app.initSignalHandler(cancelFunc)

	db, err := records.Open(ctx, app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	primaryDriver := primary.NewDriver(app.config.Endpoint, app.config.PrimaryTimeout, app.logger)
	fallbackDriver := fallback.NewDriver(fallback.NewDisabledLink(), app.config.MaxUnitSize, app.logger)

	svc, err := services.NewSyncService(
		records.NewSQLiteRepository(db),
		identity.NewFileStore(app.config.SettingsPath),
		primaryDriver,
		fallbackDriver,
		services.Options{
			PollInterval:    app.config.PollInterval,
			FallbackTimeout: app.config.FallbackTimeout,
		},
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("sync service init error: %w", err)
	}
	defer svc.Shutdown()

	ticker := time.NewTicker(app.config.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			app.logger.Info(ctx, "shutting down")
			return nil
		case <-ticker.C:
			if ok := svc.Sync(ctx); !ok {
				st := svc.State()
				app.logger.Warn(ctx, "sync attempt failed", "error", st.LastError, "pending", st.PendingCount)
			}
		}
	}
}
