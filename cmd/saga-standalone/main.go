package main

import (
	"context"
	"flag"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/app"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/config"
)

func main() {
	if err := run(); err != nil {
		stdlog.Fatalf("Application failed: %v", err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.ParseConfig(config.StandaloneServiceName, flag.CommandLine, os.Args[1:])
	if err != nil {
		return err
	}

	application, err := app.NewApplication(ctx, cfg, app.RoleStandalone)
	if err != nil {
		return err
	}
	defer application.Shutdown(context.Background())

	return application.Run(ctx)
}
