package main

import (
	"context"
	"sync"
	"testing"

	"candle-aggregator/src/logger"
	"candle-aggregator/src/models"
	"candle-aggregator/src/server"
	"candle-aggregator/src/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const t0 int64 = 1_699_999_800_000

func pipelineConfig() *models.MConfig {
	return &models.MConfig{
		Name:        "candles-test",
		Params:      models.MParamsConfig{Symbols: []string{"BTCUSDT"}},
		Timeranges:  []string{"1m", "5m"},
		Aggregation: models.MAggregationConfig{CloseOffsetMs: 1000, ContinuityGapMs: 10000},
		Storage:     models.MStorageConfig{DBType: "sqlite", DBPath: ":memory:", MaxRetries: 1},
		Server:      models.MServerConfig{SendBuffer: 8, HistorySize: 10},
	}
}

func btcTick(openTime int64, open, price, volume float64) models.MTick {
	return models.MTick{
		Symbol:      "BTCUSDT",
		OpenTime:    openTime,
		CloseTime:   openTime + 59_999,
		Open:        open,
		High:        price + 1,
		Low:         price - 1,
		Price:       price,
		Volume:      volume,
		QuoteVolume: volume * price,
	}
}

type capturedFrames struct {
	mu     sync.Mutex
	frames []models.MCandle
}

func (c *capturedFrames) Broadcast(message models.MCandleMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, message.Value)
}

func TestPipeline_ClosedCandlesReachStoreAndHistory(t *testing.T) {
	ctx := context.Background()
	cfg := pipelineConfig()
	log := logger.NewNopLogger()

	store, err := setupDatabase(ctx, cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	history := utils.NewCandleHistory(cfg.Server.HistorySize)
	sink := setupCandleSink(cfg, store, history, log)
	hub := server.NewHub(log)

	engine, err := setupEngine(cfg, sink, hub, log)
	require.NoError(t, err)
	require.NoError(t, performInitialLoad(ctx, store, engine, cfg, log))

	_, err = engine.Ingest(ctx, btcTick(t0, 100, 100, 5))
	require.NoError(t, err)
	_, err = engine.Ingest(ctx, btcTick(t0+61_000, 90, 90, 3))
	require.NoError(t, err)

	closed := history.Latest("BTCUSDT", "1m", 0)
	require.Len(t, closed, 1)
	assert.Equal(t, t0, closed[0].OpenTime)
	require.NotNil(t, closed[0].Close)
	assert.Equal(t, 90.0, *closed[0].Close)
	assert.Empty(t, history.Latest("BTCUSDT", "5m", 0))

	last, err := store.LoadLast(ctx, cfg.Params.Symbols)
	require.NoError(t, err)
	row, ok := last[models.MCandleKey{Symbol: "BTCUSDT", Timerange: "1m"}]
	require.True(t, ok)
	assert.Equal(t, t0, row.OpenTime)
	assert.Equal(t, 5.0, row.Volume)
}

func TestPipeline_BootstrapSeedsFromStore(t *testing.T) {
	ctx := context.Background()
	cfg := pipelineConfig()
	log := logger.NewNopLogger()

	store, err := setupDatabase(ctx, cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.WriteCandle(ctx, models.MCandle{
		Symbol: "BTCUSDT", Timerange: "1m", OpenTime: t0, CloseTime: t0 + 59_000,
		Open: 100, High: 101, Low: 99, Price: 100, Volume: 5, QuoteVolume: 500,
	}))

	engine, err := setupEngine(cfg, store, server.NewHub(log), log)
	require.NoError(t, err)
	require.NoError(t, performInitialLoad(ctx, store, engine, cfg, log))

	// Same base window: cumulative 9 after a seeded 5 adds 4
	_, err = engine.Ingest(ctx, btcTick(t0, 100, 102, 9))
	require.NoError(t, err)

	candles, err := engine.Snapshot("BTCUSDT")
	require.NoError(t, err)
	for _, c := range candles {
		if c.Timerange == "1m" {
			assert.Equal(t, t0, c.OpenTime)
			assert.Equal(t, 9.0, c.Volume)
			assert.Equal(t, 103.0, c.High)
		}
	}
}

func TestPipeline_RestartKeepsStoredClose(t *testing.T) {
	ctx := context.Background()
	cfg := pipelineConfig()
	log := logger.NewNopLogger()
	key := models.MCandleKey{Symbol: "BTCUSDT", Timerange: "1m"}

	store, err := setupDatabase(ctx, cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	first, err := setupEngine(cfg, store, server.NewHub(log), log)
	require.NoError(t, err)
	_, err = first.Ingest(ctx, btcTick(t0, 100, 100, 5))
	require.NoError(t, err)
	_, err = first.Ingest(ctx, btcTick(t0+60_000, 90, 90, 3))
	require.NoError(t, err)

	// Restart on the same store, first tick arrives well past the gap
	frames := &capturedFrames{}
	second, err := setupEngine(cfg, store, frames, log)
	require.NoError(t, err)
	require.NoError(t, performInitialLoad(ctx, store, second, cfg, log))

	events, err := second.Ingest(ctx, btcTick(t0+12*60_000, 95, 95, 1))
	require.NoError(t, err)
	for _, ev := range events {
		assert.Equal(t, models.EventLive, ev.Kind)
	}
	for _, frame := range frames.frames {
		if frame.Timerange == "1m" {
			assert.NotEqual(t, t0, frame.OpenTime, "stored 1m candle sent again")
		}
	}

	last, err := store.LoadLast(ctx, cfg.Params.Symbols)
	require.NoError(t, err)
	row, ok := last[key]
	require.True(t, ok)
	assert.Equal(t, t0, row.OpenTime)
	require.NotNil(t, row.Close)
	assert.Equal(t, 90.0, *row.Close)
}
