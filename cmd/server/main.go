package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/wearsync/internal/logging"
	"github.com/dmitrijs2005/wearsync/internal/server"
	"github.com/dmitrijs2005/wearsync/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	app := server.NewApp(cfg, logger)

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}

}
