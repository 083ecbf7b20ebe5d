package storage

import (
	"database/sql"
	"fmt"

	"candle-aggregator/src/models"
)

const candleColumns = "symbol, timerange, open_time, close_time, open, high, low, close, price, volume, quote_volume"

// -----------------------------------------------------------------------------

// candleArgs returns the insert arguments in candleColumns order.
// A nil Close is stored as NULL.
func candleArgs(c models.MCandle) []any {
	var closePrice sql.NullFloat64
	if c.Close != nil {
		closePrice = sql.NullFloat64{Float64: *c.Close, Valid: true}
	}
	return []any{
		c.Symbol, c.Timerange, c.OpenTime, c.CloseTime,
		c.Open, c.High, c.Low, closePrice, c.Price,
		c.Volume, c.QuoteVolume,
	}
}

// -----------------------------------------------------------------------------

func scanCandles(rows *sql.Rows) (map[models.MCandleKey]models.MCandle, error) {
	defer rows.Close()

	out := make(map[models.MCandleKey]models.MCandle)
	for rows.Next() {
		var (
			c          models.MCandle
			closePrice sql.NullFloat64
		)
		if err := rows.Scan(
			&c.Symbol, &c.Timerange, &c.OpenTime, &c.CloseTime,
			&c.Open, &c.High, &c.Low, &closePrice, &c.Price,
			&c.Volume, &c.QuoteVolume,
		); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		if closePrice.Valid {
			v := closePrice.Float64
			c.Close = &v
		}
		out[c.Key()] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candles: %w", err)
	}
	return out, nil
}
