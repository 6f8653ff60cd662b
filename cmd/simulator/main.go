package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sethvargo/go-envconfig"

	"github.com/dmitrijs2005/atmadmin/internal/buildinfo"
	"github.com/dmitrijs2005/atmadmin/internal/logging"
	"github.com/dmitrijs2005/atmadmin/internal/simulator"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := simulator.LoadConfig(ctx, envconfig.OsLookuper())
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(logging.Options{Format: cfg.LogFormat, Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	if err := simulator.New(cfg, logger).Run(ctx); err != nil {
		log.Fatalf("simulator: %v", err)
	}
}
