package main

import (
	"context"
	"time"

	"candle-aggregator/src/aggregation"
	"candle-aggregator/src/interfaces"
	"candle-aggregator/src/logger"
	"candle-aggregator/src/models"

	"golang.org/x/sync/errgroup"
)

const (
	tickBuffer      = 1024
	retentionPeriod = time.Hour
)

// -----------------------------------------------------------------------------

// runDataLoop connects the provider stream to the engine. A fatal engine
// error cancels ctx, which stops the source.
func runDataLoop(ctx context.Context, g *errgroup.Group, source interfaces.ITickSource, engine *aggregation.Engine, appLogger *logger.Logger) {
	ticks := make(chan models.MTick, tickBuffer)

	appLogger.Info("Starting %s stream...", source.Name())
	g.Go(func() error {
		return source.Run(ctx, ticks)
	})
	g.Go(func() error {
		return engine.Run(ctx, ticks)
	})
}

// -----------------------------------------------------------------------------

// startRetention prunes candles older than storage.retention_days every hour
func startRetention(ctx context.Context, g *errgroup.Group, store interfaces.ICandleStore, config *models.MConfig, appLogger *logger.Logger) {
	days := config.Storage.RetentionDays
	if days <= 0 {
		return
	}

	prune := func() {
		cutoff := time.Now().UTC().AddDate(0, 0, -days).UnixMilli()
		removed, err := store.Prune(ctx, cutoff)
		if err != nil {
			appLogger.Warning("Retention cleanup failed: %v", err)
			return
		}
		appLogger.Info("Retention cleanup removed %d candles older than %d days", removed, days)
	}

	g.Go(func() error {
		ticker := time.NewTicker(retentionPeriod)
		defer ticker.Stop()

		prune()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				prune()
			}
		}
	})
}
