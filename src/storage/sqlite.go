package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"candle-aggregator/src/helpers"
	"candle-aggregator/src/logger"
	"candle-aggregator/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type SQLiteDB struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteDB(cfg *models.MConfig, log *logger.Logger) *SQLiteDB {
	return &SQLiteDB{
		Config: cfg,
		Logger: log,
	}
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Initialize(ctx context.Context) error {
	db, err := sql.Open("sqlite", d.Config.Storage.DBPath)
	if err != nil {
		return helpers.NewDatabaseError("open sqlite", err)
	}

	// one writer; also keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return helpers.NewDatabaseError("connect sqlite", err)
	}
	d.DB = db

	// PRAGMA optimizations
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	if err := d.createTables(ctx); err != nil {
		return err
	}

	d.Logger.Info("SQLiteDB initialized successfully (%s)", d.Config.Storage.DBPath)
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) createTables(ctx context.Context) error {
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS candles (
			symbol TEXT NOT NULL,
			timerange TEXT NOT NULL,
			open_time INTEGER NOT NULL,
			close_time INTEGER NOT NULL,
			open REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL,
			price REAL NOT NULL,
			volume REAL NOT NULL,
			quote_volume REAL NOT NULL,
			PRIMARY KEY (symbol, timerange, open_time)
		);
	`
	if _, err := d.DB.ExecContext(ctx, query); err != nil {
		return helpers.NewDatabaseError("create candles table", err)
	}

	index := `CREATE INDEX IF NOT EXISTS candles_close_time_idx ON candles (close_time)`
	if _, err := d.DB.ExecContext(ctx, index); err != nil {
		return helpers.NewDatabaseError("create close_time index", err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) WriteCandle(ctx context.Context, candle models.MCandle) error {
	query := `
		INSERT INTO candles (` + candleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (symbol, timerange, open_time) DO UPDATE SET
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			quote_volume = excluded.quote_volume
	`
	if _, err := d.DB.ExecContext(ctx, query, candleArgs(candle)...); err != nil {
		return fmt.Errorf("upsert candle %s %s@%d: %w", candle.Symbol, candle.Timerange, candle.OpenTime, err)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) LoadLast(ctx context.Context, symbols []string) (map[models.MCandleKey]models.MCandle, error) {
	if len(symbols) == 0 {
		return map[models.MCandleKey]models.MCandle{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(symbols)), ", ")
	args := make([]any, len(symbols))
	for i, s := range symbols {
		args[i] = s
	}

	cols := "c." + strings.ReplaceAll(candleColumns, ", ", ", c.")
	query := fmt.Sprintf(`
		SELECT %s
		FROM candles c
		JOIN (
			SELECT symbol, timerange, MAX(open_time) AS open_time
			FROM candles
			WHERE symbol IN (%s)
			GROUP BY symbol, timerange
		) latest
		ON c.symbol = latest.symbol AND c.timerange = latest.timerange AND c.open_time = latest.open_time
	`, cols, placeholders)

	rows, err := d.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, helpers.NewDatabaseError("load last candles", err)
	}
	return scanCandles(rows)
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Prune(ctx context.Context, cutoffMs int64) (int64, error) {
	res, err := d.DB.ExecContext(ctx, `DELETE FROM candles WHERE close_time < ?`, cutoffMs)
	if err != nil {
		return 0, helpers.NewDatabaseError("prune candles", err)
	}
	return res.RowsAffected()
}

// -----------------------------------------------------------------------------

func (d *SQLiteDB) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
