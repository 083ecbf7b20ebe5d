package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"candle-aggregator/src/helpers"
	"candle-aggregator/src/logger"
	"candle-aggregator/src/models"

	"github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresDB(cfg *models.MConfig, log *logger.Logger) *PostgresDB {
	schema := cfg.Storage.Schema
	if schema == "" {
		schema = "public"
	}
	return &PostgresDB{
		Config: cfg,
		Schema: schema,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) table() string {
	return fmt.Sprintf(`%s."candles"`, pq.QuoteIdentifier(d.Schema))
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Initialize(ctx context.Context) error {
	db, err := sql.Open("postgres", d.Config.Storage.DBConnectionString)
	if err != nil {
		return helpers.NewDatabaseError("open postgres", err)
	}

	err = helpers.RetryWithBackoff(ctx, "postgres ping", d.Config.Storage.MaxRetries, time.Second, d.Logger, func() error {
		return db.PingContext(ctx)
	})
	if err != nil {
		db.Close()
		return helpers.NewDatabaseError("connect postgres", err)
	}
	d.DB = db

	if _, err := d.DB.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, pq.QuoteIdentifier(d.Schema))); err != nil {
		return helpers.NewDatabaseError("create schema "+d.Schema, err)
	}

	if err := d.createTables(ctx); err != nil {
		return err
	}

	d.Logger.Info("PostgresDB initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

// createTables never drops: bootstrap reads the rows of the previous run
func (d *PostgresDB) createTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			symbol TEXT NOT NULL,
			timerange TEXT NOT NULL,
			open_time BIGINT NOT NULL,
			close_time BIGINT NOT NULL,
			open DOUBLE PRECISION NOT NULL,
			high DOUBLE PRECISION NOT NULL,
			low DOUBLE PRECISION NOT NULL,
			close DOUBLE PRECISION,
			price DOUBLE PRECISION NOT NULL,
			volume DOUBLE PRECISION NOT NULL,
			quote_volume DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (symbol, timerange, open_time)
		);
	`, d.table())
	if _, err := d.DB.ExecContext(ctx, query); err != nil {
		return helpers.NewDatabaseError("create candles table", err)
	}

	index := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS candles_close_time_idx ON %s (close_time)`, d.table())
	if _, err := d.DB.ExecContext(ctx, index); err != nil {
		return helpers.NewDatabaseError("create close_time index", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

// WriteCandle upserts; open and open_time are immutable once stored
func (d *PostgresDB) WriteCandle(ctx context.Context, candle models.MCandle) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (symbol, timerange, open_time) DO UPDATE SET
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			quote_volume = EXCLUDED.quote_volume
	`, d.table(), candleColumns)

	if _, err := d.DB.ExecContext(ctx, query, candleArgs(candle)...); err != nil {
		return fmt.Errorf("upsert candle %s %s@%d: %w", candle.Symbol, candle.Timerange, candle.OpenTime, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) LoadLast(ctx context.Context, symbols []string) (map[models.MCandleKey]models.MCandle, error) {
	if len(symbols) == 0 {
		return map[models.MCandleKey]models.MCandle{}, nil
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT ON (symbol, timerange) %s
		FROM %s
		WHERE symbol = ANY($1)
		ORDER BY symbol, timerange, open_time DESC
	`, candleColumns, d.table())

	rows, err := d.DB.QueryContext(ctx, query, pq.Array(symbols))
	if err != nil {
		return nil, helpers.NewDatabaseError("load last candles", err)
	}
	return scanCandles(rows)
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Prune(ctx context.Context, cutoffMs int64) (int64, error) {
	res, err := d.DB.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE close_time < $1`, d.table()), cutoffMs)
	if err != nil {
		return 0, helpers.NewDatabaseError("prune candles", err)
	}
	return res.RowsAffected()
}

// -----------------------------------------------------------------------------

func (d *PostgresDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
