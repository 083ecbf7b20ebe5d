package storage

import (
	"context"
	"fmt"
	"strings"

	"candle-aggregator/src/helpers"
	"candle-aggregator/src/interfaces"
	"candle-aggregator/src/logger"
	"candle-aggregator/src/models"
)

// -----------------------------------------------------------------------------

// NewCandleStore returns the durable store selected by storage.db_type
func NewCandleStore(cfg *models.MConfig, log *logger.Logger) (interfaces.ICandleStore, error) {
	switch strings.ToLower(cfg.Storage.DBType) {
	case "postgres", "postgresql":
		return NewPostgresDB(cfg, log.Named("postgres")), nil
	case "sqlite":
		return NewSQLiteDB(cfg, log.Named("sqlite")), nil
	default:
		return nil, helpers.NewConfigurationError(fmt.Sprintf("unsupported db_type %q", cfg.Storage.DBType), nil)
	}
}

// -----------------------------------------------------------------------------

// CandleSink writes every closed candle to the primary store, then to the
// secondary publishers. Only primary failures reach the caller.
type CandleSink struct {
	primary     interfaces.ICandleWriter
	secondaries []interfaces.ICandlePublisher
	Logger      *logger.Logger
}

func NewCandleSink(primary interfaces.ICandleWriter, log *logger.Logger, secondaries ...interfaces.ICandlePublisher) *CandleSink {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &CandleSink{primary: primary, secondaries: secondaries, Logger: log}
}

// -----------------------------------------------------------------------------

func (s *CandleSink) WriteCandle(ctx context.Context, candle models.MCandle) error {
	if err := s.primary.WriteCandle(ctx, candle); err != nil {
		return err
	}

	for _, pub := range s.secondaries {
		if err := pub.WriteCandle(ctx, candle); err != nil {
			s.Logger.Warning("Secondary publish failed for %s %s@%d: %v", candle.Symbol, candle.Timerange, candle.OpenTime, err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// Close closes the secondary publishers; the primary store is owned by the caller
func (s *CandleSink) Close() error {
	var firstErr error
	for _, pub := range s.secondaries {
		if err := pub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
