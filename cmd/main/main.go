package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"candle-aggregator/src/config"
	datasource "candle-aggregator/src/data_source"
	"candle-aggregator/src/grpc_control"
	"candle-aggregator/src/helpers"
	"candle-aggregator/src/logger"
	"candle-aggregator/src/server"
	"candle-aggregator/src/utils"

	"golang.org/x/sync/errgroup"
)

// -----------------------------------------------------------------------------

func main() {
	// 1. Parse command line flags
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	// 2. Load config
	conf, err := config.NewConfig(*configPath)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	// 3. Setup Logger
	appLogger := logger.NewLogger(conf.LogLevel, conf.Name)
	defer appLogger.Sync()

	if limit := helpers.ApplyMemoryLimit(); limit > 0 {
		appLogger.Info("Memory limit set to %d MB", limit/(1024*1024))
	}

	if err := run(conf, appLogger); err != nil {
		appLogger.Critical("Aggregator stopped: %v", err)
	}
	appLogger.Info("Shutdown complete.")
}

// -----------------------------------------------------------------------------

func run(conf *config.Config, appLogger *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Storage
	store, err := setupDatabase(ctx, conf.MConfig, appLogger)
	if err != nil {
		return err
	}
	defer store.Close()

	history := utils.NewCandleHistory(conf.Server.HistorySize)
	sink := setupCandleSink(conf.MConfig, store, history, appLogger)
	defer sink.Close()

	// 5. Engine and fan-out
	hub := server.NewHub(appLogger.Named("hub"))
	engine, err := setupEngine(conf.MConfig, sink, hub, appLogger)
	if err != nil {
		return err
	}

	// 6. Bootstrap from the last stored candles
	if err := performInitialLoad(ctx, store, engine, conf.MConfig, appLogger); err != nil {
		return err
	}

	// 7. Provider and servers
	source, err := datasource.NewTickSource(conf.MConfig, appLogger)
	if err != nil {
		return err
	}
	srv := server.NewAPIServer(conf.MConfig, hub, engine, history, appLogger.Named("server"))
	control := grpc_control.NewControlService(appLogger.Named("grpc"))

	g, gctx := errgroup.WithContext(ctx)
	startServers(gctx, g, srv, control, conf.MConfig)
	runDataLoop(gctx, g, source, engine, appLogger)
	startRetention(gctx, g, store, conf.MConfig, appLogger)

	control.SetServing(true)
	appLogger.Info("Aggregator running (%d symbols, timeranges %v)", len(conf.Params.Symbols), conf.Timeranges)

	return g.Wait()
}
