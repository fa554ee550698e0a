// Package server initializes and runs the companion-side sync endpoint.
// It connects storage, wires the HTTP API and handles graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/wearsync/internal/logging"
	"github.com/dmitrijs2005/wearsync/internal/server/config"
	"github.com/dmitrijs2005/wearsync/internal/server/httpapi"
	"github.com/dmitrijs2005/wearsync/internal/server/repositories/records"
)

const shutdownGrace = 5 * time.Second

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

	app.logger.Info(ctx, "starting server", "addr", app.config.EndpointAddr)

	app.initSignalHandler(cancelFunc)

	db, err := records.Open(ctx, app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	handler := httpapi.NewHandler(records.NewPostgresRepository(db), app.config.Version, app.logger)

	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: handler.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
