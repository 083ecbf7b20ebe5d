package main

import (
	"context"

	"candle-aggregator/src/aggregation"
	"candle-aggregator/src/helpers"
	"candle-aggregator/src/interfaces"
	"candle-aggregator/src/logger"
	"candle-aggregator/src/models"
)

// -----------------------------------------------------------------------------

// performInitialLoad seeds the engine with the newest stored candle of every
// (symbol, timerange) so a restart continues the open windows
func performInitialLoad(ctx context.Context, store interfaces.ICandleStore, engine *aggregation.Engine, config *models.MConfig, appLogger *logger.Logger) error {
	appLogger.Info("Loading last candles for %d symbols...", len(config.Params.Symbols))

	rows, err := store.LoadLast(ctx, config.Params.Symbols)
	if err != nil {
		return helpers.NewDatabaseError("bootstrap", err)
	}

	applied := engine.Seed(rows)
	appLogger.Info("Bootstrap complete: %d of %d stored candles applied", applied, len(rows))
	return nil
}
