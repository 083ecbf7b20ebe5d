package utils

import (
	"context"
	"sync"

	"candle-aggregator/src/models"
)

const DefaultHistorySize = 500

// -----------------------------------------------------------------------------

// CandleHistory keeps the most recent closed candles of every
// (symbol, timerange) series in memory.
type CandleHistory struct {
	mu      sync.RWMutex
	size    int
	buffers map[models.MCandleKey]*RingBuffer[models.MCandle]
}

// -----------------------------------------------------------------------------

func NewCandleHistory(size int) *CandleHistory {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &CandleHistory{
		size:    size,
		buffers: make(map[models.MCandleKey]*RingBuffer[models.MCandle]),
	}
}

// -----------------------------------------------------------------------------

// Add records a closed candle
func (h *CandleHistory) Add(candle models.MCandle) {
	key := candle.Key()

	h.mu.Lock()
	defer h.mu.Unlock()

	rb, ok := h.buffers[key]
	if !ok {
		rb = NewRingBuffer[models.MCandle](h.size)
		h.buffers[key] = rb
	}
	rb.Append(candle.Copy())
}

// WriteCandle lets the history sit behind the durable store as a secondary writer
func (h *CandleHistory) WriteCandle(_ context.Context, candle models.MCandle) error {
	h.Add(candle)
	return nil
}

// Close is a no-op
func (h *CandleHistory) Close() error {
	return nil
}

// -----------------------------------------------------------------------------

// Latest returns up to n newest closed candles of a series, oldest first.
// n <= 0 returns the whole retained history.
func (h *CandleHistory) Latest(symbol, timerange string, n int) []models.MCandle {
	h.mu.RLock()
	defer h.mu.RUnlock()

	rb, ok := h.buffers[models.MCandleKey{Symbol: symbol, Timerange: timerange}]
	if !ok {
		return []models.MCandle{}
	}
	if n <= 0 {
		return rb.GetAll()
	}
	return rb.GetLatest(n)
}

// SeriesCount returns the number of tracked series
func (h *CandleHistory) SeriesCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.buffers)
}
