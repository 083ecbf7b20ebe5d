package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"candle-aggregator/src/helpers"
	"candle-aggregator/src/logger"
	"candle-aggregator/src/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemoryDB(t *testing.T) *SQLiteDB {
	t.Helper()
	cfg := &models.MConfig{Storage: models.MStorageConfig{DBType: "sqlite", DBPath: ":memory:"}}
	db := NewSQLiteDB(cfg, logger.NewNopLogger())
	require.NoError(t, db.Initialize(context.Background()))
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(v float64) *float64 { return &v }

func candle(symbol, tr string, openTime int64, closePrice *float64) models.MCandle {
	return models.MCandle{
		Symbol:      symbol,
		Timerange:   tr,
		OpenTime:    openTime,
		CloseTime:   openTime + 59_000,
		Open:        100,
		High:        105,
		Low:         95,
		Price:       101,
		Close:       closePrice,
		Volume:      10,
		QuoteVolume: 1000,
	}
}

func TestSQLiteDB_WriteAndLoadLast(t *testing.T) {
	db := newMemoryDB(t)
	ctx := context.Background()

	rows := []models.MCandle{
		candle("BTCUSDT", "1m", 60_000, ptr(101)),
		candle("BTCUSDT", "1m", 120_000, nil),
		candle("BTCUSDT", "5m", 0, ptr(99)),
		candle("ETHUSDT", "1m", 60_000, ptr(2000)),
		candle("DOGEUSDT", "1m", 180_000, ptr(0.1)),
	}
	for _, c := range rows {
		require.NoError(t, db.WriteCandle(ctx, c))
	}

	last, err := db.LoadLast(ctx, []string{"BTCUSDT", "ETHUSDT"})
	require.NoError(t, err)
	require.Len(t, last, 3)

	btc1m := last[models.MCandleKey{Symbol: "BTCUSDT", Timerange: "1m"}]
	assert.Equal(t, int64(120_000), btc1m.OpenTime)
	assert.Nil(t, btc1m.Close)

	eth := last[models.MCandleKey{Symbol: "ETHUSDT", Timerange: "1m"}]
	require.NotNil(t, eth.Close)
	assert.Equal(t, 2000.0, *eth.Close)

	_, ok := last[models.MCandleKey{Symbol: "DOGEUSDT", Timerange: "1m"}]
	assert.False(t, ok, "unrequested symbols are not loaded")
}

func TestSQLiteDB_UpsertKeepsOpen(t *testing.T) {
	db := newMemoryDB(t)
	ctx := context.Background()

	first := candle("BTCUSDT", "1m", 60_000, nil)
	require.NoError(t, db.WriteCandle(ctx, first))

	second := first
	second.Open = 1
	second.Price = 1
	second.High = 110
	second.Low = 90
	second.Close = ptr(107)
	second.Volume = 25
	second.QuoteVolume = 2600
	require.NoError(t, db.WriteCandle(ctx, second))

	last, err := db.LoadLast(ctx, []string{"BTCUSDT"})
	require.NoError(t, err)

	got := last[first.Key()]
	assert.Equal(t, 100.0, got.Open, "open is immutable")
	assert.Equal(t, 101.0, got.Price, "price is not part of the update set")
	assert.Equal(t, 110.0, got.High)
	assert.Equal(t, 90.0, got.Low)
	require.NotNil(t, got.Close)
	assert.Equal(t, 107.0, *got.Close)
	assert.Equal(t, 25.0, got.Volume)
	assert.Equal(t, 2600.0, got.QuoteVolume)
}

func TestSQLiteDB_LoadLastEmpty(t *testing.T) {
	db := newMemoryDB(t)

	last, err := db.LoadLast(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, last)

	last, err = db.LoadLast(context.Background(), []string{"BTCUSDT"})
	require.NoError(t, err)
	assert.Empty(t, last)
}

func TestSQLiteDB_Prune(t *testing.T) {
	db := newMemoryDB(t)
	ctx := context.Background()

	require.NoError(t, db.WriteCandle(ctx, candle("BTCUSDT", "1m", 60_000, ptr(1))))
	require.NoError(t, db.WriteCandle(ctx, candle("BTCUSDT", "1m", 120_000, ptr(1))))

	removed, err := db.Prune(ctx, 120_000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	last, err := db.LoadLast(ctx, []string{"BTCUSDT"})
	require.NoError(t, err)
	assert.Equal(t, int64(120_000), last[models.MCandleKey{Symbol: "BTCUSDT", Timerange: "1m"}].OpenTime)
}

func TestSQLiteDB_ReopenKeepsRows(t *testing.T) {
	path := t.TempDir() + "/candles.db"
	cfg := &models.MConfig{Storage: models.MStorageConfig{DBType: "sqlite", DBPath: path}}
	ctx := context.Background()

	db := NewSQLiteDB(cfg, logger.NewNopLogger())
	require.NoError(t, db.Initialize(ctx))
	require.NoError(t, db.WriteCandle(ctx, candle("BTCUSDT", "1m", 60_000, ptr(1))))
	require.NoError(t, db.Close())

	reopened := NewSQLiteDB(cfg, logger.NewNopLogger())
	require.NoError(t, reopened.Initialize(ctx))
	defer reopened.Close()

	last, err := reopened.LoadLast(ctx, []string{"BTCUSDT"})
	require.NoError(t, err)
	assert.Len(t, last, 1)
}

// -----------------------------------------------------------------------------

type fakeKafkaWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeKafkaWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeKafkaWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaPublisher_WriteCandle(t *testing.T) {
	fake := &fakeKafkaWriter{}
	pub := &KafkaPublisher{writer: fake, topic: "candles", Logger: logger.NewNopLogger()}

	c := candle("BTCUSDT", "1m", 60_000, ptr(101))
	require.NoError(t, pub.WriteCandle(context.Background(), c))
	require.Len(t, fake.messages, 1)

	msg := fake.messages[0]
	assert.Equal(t, "BTCUSDT|1m", string(msg.Key))

	var decoded models.MCandle
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, c, decoded)

	require.NoError(t, pub.Close())
	assert.True(t, fake.closed)

	fake.err = errors.New("broker down")
	assert.ErrorIs(t, pub.WriteCandle(context.Background(), c), fake.err)
}

// -----------------------------------------------------------------------------

type recordingWriter struct {
	written []models.MCandle
	err     error
}

func (r *recordingWriter) WriteCandle(_ context.Context, c models.MCandle) error {
	if r.err != nil {
		return r.err
	}
	r.written = append(r.written, c)
	return nil
}

func TestCandleSink(t *testing.T) {
	c := candle("BTCUSDT", "1m", 60_000, ptr(101))

	t.Run("writes primary then secondaries", func(t *testing.T) {
		primary := &recordingWriter{}
		fake := &fakeKafkaWriter{}
		sink := NewCandleSink(primary, nil, &KafkaPublisher{writer: fake, topic: "candles"})

		require.NoError(t, sink.WriteCandle(context.Background(), c))
		assert.Len(t, primary.written, 1)
		assert.Len(t, fake.messages, 1)

		require.NoError(t, sink.Close())
		assert.True(t, fake.closed)
	})

	t.Run("secondary failure is absorbed", func(t *testing.T) {
		primary := &recordingWriter{}
		sink := NewCandleSink(primary, nil, &KafkaPublisher{writer: &fakeKafkaWriter{err: errors.New("down")}, topic: "candles"})

		assert.NoError(t, sink.WriteCandle(context.Background(), c))
		assert.Len(t, primary.written, 1)
	})

	t.Run("primary failure propagates and skips secondaries", func(t *testing.T) {
		primary := &recordingWriter{err: errors.New("disk full")}
		fake := &fakeKafkaWriter{}
		sink := NewCandleSink(primary, nil, &KafkaPublisher{writer: fake, topic: "candles"})

		assert.ErrorIs(t, sink.WriteCandle(context.Background(), c), primary.err)
		assert.Empty(t, fake.messages)
	})
}

func TestNewCandleStore(t *testing.T) {
	testCases := []struct {
		dbType  string
		want    any
		wantErr bool
	}{
		{dbType: "postgres", want: &PostgresDB{}},
		{dbType: "PostgreSQL", want: &PostgresDB{}},
		{dbType: "sqlite", want: &SQLiteDB{}},
		{dbType: "mysql", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.dbType, func(t *testing.T) {
			cfg := &models.MConfig{Storage: models.MStorageConfig{DBType: tc.dbType}}
			store, err := NewCandleStore(cfg, logger.NewNopLogger())
			if tc.wantErr {
				var cfgErr *helpers.ConfigurationError
				assert.ErrorAs(t, err, &cfgErr)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tc.want, store)
		})
	}
}

func TestPostgresDB_DefaultSchema(t *testing.T) {
	db := NewPostgresDB(&models.MConfig{}, logger.NewNopLogger())
	assert.Equal(t, "public", db.Schema)
	assert.Equal(t, `"public"."candles"`, db.table())
}
