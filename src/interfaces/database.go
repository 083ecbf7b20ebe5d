package interfaces

import (
	"context"

	"candle-aggregator/src/models"
)

// -----------------------------------------------------------------------------
// ICandleWriter receives every closed candle.
// -----------------------------------------------------------------------------

type ICandleWriter interface {

	// -----------------------------------------------------------------------------

	// WriteCandle upserts a candle keyed by (symbol, timerange, open_time).
	WriteCandle(ctx context.Context, candle models.MCandle) error
}

// -----------------------------------------------------------------------------
// ICandleStore defines the contract for durable candle storage.
// -----------------------------------------------------------------------------

type ICandleStore interface {
	ICandleWriter

	// -----------------------------------------------------------------------------

	// Initialize opens the connection and creates the schema if missing.
	Initialize(ctx context.Context) error

	// -----------------------------------------------------------------------------

	// LoadLast returns the newest stored candle per (symbol, timerange) for the given symbols.
	LoadLast(ctx context.Context, symbols []string) (map[models.MCandleKey]models.MCandle, error)

	// -----------------------------------------------------------------------------

	// Prune deletes candles whose close_time is older than cutoffMs and
	// returns the number of removed rows.
	Prune(ctx context.Context, cutoffMs int64) (int64, error)

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}

// -----------------------------------------------------------------------------
// ICandlePublisher forwards closed candles to a secondary consumer.
// -----------------------------------------------------------------------------

type ICandlePublisher interface {
	ICandleWriter

	// Close flushes pending messages and releases the connection
	Close() error
}
