package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/wearsync/internal/agent"
	"github.com/dmitrijs2005/wearsync/internal/agent/config"
	"github.com/dmitrijs2005/wearsync/internal/logging"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	app := agent.NewApp(cfg, logger)

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}

}
