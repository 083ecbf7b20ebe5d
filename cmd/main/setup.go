package main

import (
	"context"

	"candle-aggregator/src/aggregation"
	"candle-aggregator/src/interfaces"
	"candle-aggregator/src/logger"
	"candle-aggregator/src/models"
	"candle-aggregator/src/storage"
	"candle-aggregator/src/timerange"
	"candle-aggregator/src/utils"
)

// -----------------------------------------------------------------------------

// setupDatabase opens the configured store and creates the schema
func setupDatabase(ctx context.Context, config *models.MConfig, appLogger *logger.Logger) (interfaces.ICandleStore, error) {
	store, err := storage.NewCandleStore(config, appLogger)
	if err != nil {
		return nil, err
	}
	if err := store.Initialize(ctx); err != nil {
		appLogger.Error("Failed to initialize %s storage: %v", config.Storage.DBType, err)
		return nil, err
	}
	return store, nil
}

// -----------------------------------------------------------------------------

// setupCandleSink puts the in-memory history and the optional Kafka publisher
// behind the durable store
func setupCandleSink(config *models.MConfig, store interfaces.ICandleStore, history *utils.CandleHistory, appLogger *logger.Logger) *storage.CandleSink {
	publishers := []interfaces.ICandlePublisher{history}
	if config.Kafka.Enabled {
		appLogger.Info("Publishing closed candles to kafka topic %s (%v)", config.Kafka.Topic, config.Kafka.Brokers)
		publishers = append(publishers, storage.NewKafkaPublisher(config.Kafka, appLogger.Named("kafka")))
	}
	return storage.NewCandleSink(store, appLogger.Named("sink"), publishers...)
}

// -----------------------------------------------------------------------------

// setupEngine builds the timerange catalog and the aggregation engine
func setupEngine(config *models.MConfig, writer interfaces.ICandleWriter, broadcaster interfaces.IBroadcaster, appLogger *logger.Logger) (*aggregation.Engine, error) {
	catalog, err := timerange.NewCatalog(config.Timeranges, config.Aggregation.CloseOffsetMs)
	if err != nil {
		return nil, err
	}

	return aggregation.NewEngine(
		catalog,
		config.Params.Symbols,
		writer,
		broadcaster,
		appLogger.Named("engine"),
		aggregation.Options{ContinuityGapMs: config.Aggregation.ContinuityGapMs},
	)
}
