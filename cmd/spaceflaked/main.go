package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pbinitiative/spaceflake/internal/config"
	"github.com/pbinitiative/spaceflake/internal/generator"
	"github.com/pbinitiative/spaceflake/internal/log"
	"github.com/pbinitiative/spaceflake/internal/otel"
	"github.com/pbinitiative/spaceflake/internal/profile"
	"github.com/pbinitiative/spaceflake/internal/rest"
)

func main() {
	profile.InitProfile()
	log.Init()
	defer log.Sync()

	appContext, ctxCancel := context.WithCancel(context.Background())

	conf := config.InitConfig()

	openTelemetry, err := otel.SetupOtel(conf.Tracing)
	if err != nil {
		log.Error("Failed to set up OTEL: %s", err)
		os.Exit(1)
	}

	gen, err := generator.NewService(conf.Generator, log.Component("spaceflake"))
	if err != nil {
		log.Error("Failed to start generator: %s", err)
		os.Exit(1)
	}

	// Start the public API
	svr := rest.NewServer(gen, conf)
	if svr.Start() == nil {
		os.Exit(1)
	}

	appStop := make(chan os.Signal, 2)
	signal.Notify(appStop, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	handleSigterm(appStop, appContext)

	ctxCancel()
	// cleanup
	svr.Stop(context.Background())
	openTelemetry.Stop(context.Background())
}

func handleSigterm(appStop chan os.Signal, ctx context.Context) {
	sig := <-appStop
	log.Infof(ctx, "Received %s. Shutting down", sig.String())
}
