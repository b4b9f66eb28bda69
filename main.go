package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/integrii/flaggy"
	"go.uber.org/zap"

	"github.com/spectrumx/svi/core/app"
	"github.com/spectrumx/svi/core/cfg"
	"github.com/spectrumx/svi/ui/web"
)

var version = "unknown"

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	configuration, err := cfg.Load()
	if err != nil {
		logger.Warn("cannot load configuration, using defaults", zap.Error(err))
		configuration = cfg.Static()
	}

	flaggy.SetName("svi")
	flaggy.SetDescription("spectrum visualization server, ingesting capture rows and serving waterfall frames")
	flaggy.SetVersion(version)
	flaggy.String(&configuration.ListenAddress, "l", "listen", "listen address of the web server")
	flaggy.String(&configuration.BackendURL, "b", "backend", "base URL of the spectrogram job backend")
	flaggy.Bool(&configuration.Testmode, "t", "testmode", "feed synthetic samples instead of captures")
	flaggy.Int(&configuration.FramesPerSec, "r", "rate", "frames rendered per second")
	flaggy.Int(&configuration.HistoryDepth, "d", "depth", "number of rows kept in the waterfall history")
	flaggy.Parse()

	controller := app.New(configuration, logger)
	controller.Startup()

	server := web.NewServer(controller, configuration.ListenAddress, logger)
	server.Start()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Warn("web server shutdown failed", zap.Error(err))
	}
	controller.Shutdown()
}
