package interfaces

import "candle-aggregator/src/models"

// -----------------------------------------------------------------------------
// ICandleView exposes read-only copies of the live aggregation state.
// -----------------------------------------------------------------------------

type ICandleView interface {

	// Snapshot returns the live candles of one symbol in catalog order
	Snapshot(symbol string) ([]models.MCandle, error)

	// SnapshotAll returns the live candles of every symbol
	SnapshotAll() map[string][]models.MCandle

	// Stats returns the engine counters
	Stats() models.MEngineStats
}

// -----------------------------------------------------------------------------
// ICandleHistory serves recently closed candles of one series.
// -----------------------------------------------------------------------------

type ICandleHistory interface {

	// Latest returns up to n closed candles, oldest first; n <= 0 means all
	Latest(symbol, timerange string, n int) []models.MCandle
}
