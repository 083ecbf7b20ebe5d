package models

// MTick is one canonical price update from the upstream provider.
// Volume and QuoteVolume are cumulative within the provider's own interval.
type MTick struct {
	Symbol      string  `json:"symbol"`
	OpenTime    int64   `json:"open_time"`
	CloseTime   int64   `json:"close_time"`
	Open        float64 `json:"open"`
	Price       float64 `json:"price"`
	High        float64 `json:"high"`
	Low         float64 `json:"low"`
	Volume      float64 `json:"volume"`
	QuoteVolume float64 `json:"quote_volume"`
}
