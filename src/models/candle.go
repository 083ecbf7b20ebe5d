package models

// -----------------------------------------------------------------------------

// MCandle is the OHLCV aggregate of one symbol over one timerange window.
// Close stays nil while the window is open; Price carries the latest trade.
type MCandle struct {
	Symbol      string   `json:"symbol"`
	Timerange   string   `json:"timerange"`
	OpenTime    int64    `json:"open_time"`
	CloseTime   int64    `json:"close_time"`
	Open        float64  `json:"open"`
	High        float64  `json:"high"`
	Low         float64  `json:"low"`
	Price       float64  `json:"price"`
	Close       *float64 `json:"close"`
	Volume      float64  `json:"volume"`
	QuoteVolume float64  `json:"quote_volume"`
}

// -----------------------------------------------------------------------------

// IsInitialized reports whether the candle has been opened at least once.
// OpenTime zero is the "never initialized" sentinel.
func (c *MCandle) IsInitialized() bool {
	return c.OpenTime != 0
}

// Contains reports whether ts falls in [OpenTime, CloseTime).
func (c *MCandle) Contains(ts int64) bool {
	return c.OpenTime <= ts && ts < c.CloseTime
}

// Copy returns a detached copy, including the Close pointer.
func (c MCandle) Copy() MCandle {
	if c.Close != nil {
		v := *c.Close
		c.Close = &v
	}
	return c
}

// -----------------------------------------------------------------------------

// MCandleKey identifies the candle slot of a symbol for one timerange.
type MCandleKey struct {
	Symbol    string
	Timerange string
}

// Key returns the slot key of the candle.
func (c *MCandle) Key() MCandleKey {
	return MCandleKey{Symbol: c.Symbol, Timerange: c.Timerange}
}
