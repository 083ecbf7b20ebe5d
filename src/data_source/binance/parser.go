package binance

import (
	"fmt"
	"strconv"
	"strings"

	"candle-aggregator/src/helpers"
	"candle-aggregator/src/models"

	"github.com/tidwall/gjson"
)

const DefaultStreamURL = "wss://stream.binance.com:9443/stream"

// -----------------------------------------------------------------------------

// BuildStreamURL returns the combined-stream URL subscribing every symbol to
// streamType, e.g. <base>?streams=btcusdt@kline_1m/ethusdt@kline_1m
func BuildStreamURL(baseURL string, symbols []string, streamType string) (string, error) {
	if baseURL == "" {
		baseURL = DefaultStreamURL
	}
	if streamType == "" {
		return "", fmt.Errorf("stream type is required")
	}
	if len(symbols) == 0 {
		return "", fmt.Errorf("at least one symbol is required")
	}

	streams := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if symbol == "" {
			return "", fmt.Errorf("empty symbol in stream list")
		}
		streams = append(streams, strings.ToLower(symbol)+"@"+streamType)
	}

	return baseURL + "?streams=" + strings.Join(streams, "/"), nil
}

// -----------------------------------------------------------------------------

// ParseMessage turns a combined-stream kline frame into a tick.
// Prices and volumes arrive as decimal strings; numbers are accepted too.
// Any missing or invalid field yields ErrMalformedMessage.
func ParseMessage(raw []byte) (models.MTick, error) {
	if !gjson.ValidBytes(raw) {
		return models.MTick{}, fmt.Errorf("%w: invalid json", helpers.ErrMalformedMessage)
	}

	k := gjson.GetBytes(raw, "data.k")
	if !k.IsObject() {
		return models.MTick{}, fmt.Errorf("%w: no kline payload", helpers.ErrMalformedMessage)
	}

	symbol := k.Get("s")
	if !symbol.Exists() {
		return models.MTick{}, fmt.Errorf("%w: missing field s", helpers.ErrMalformedMessage)
	}

	tick := models.MTick{Symbol: symbol.String()}

	var err error
	if tick.OpenTime, err = intField(k, "t"); err != nil {
		return models.MTick{}, err
	}
	if tick.CloseTime, err = intField(k, "T"); err != nil {
		return models.MTick{}, err
	}

	floats := []struct {
		key string
		dst *float64
	}{
		{"o", &tick.Open},
		{"c", &tick.Price},
		{"h", &tick.High},
		{"l", &tick.Low},
		{"v", &tick.Volume},
		{"q", &tick.QuoteVolume},
	}
	for _, f := range floats {
		if *f.dst, err = floatField(k, f.key); err != nil {
			return models.MTick{}, err
		}
	}

	return tick, nil
}

// -----------------------------------------------------------------------------

func intField(obj gjson.Result, key string) (int64, error) {
	v := obj.Get(key)
	if v.Type != gjson.Number {
		return 0, fmt.Errorf("%w: field %s is not a number", helpers.ErrMalformedMessage, key)
	}
	return v.Int(), nil
}

func floatField(obj gjson.Result, key string) (float64, error) {
	v := obj.Get(key)
	switch v.Type {
	case gjson.Number:
		return v.Float(), nil
	case gjson.String:
		f, err := strconv.ParseFloat(v.Str, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: field %s: %v", helpers.ErrMalformedMessage, key, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: missing field %s", helpers.ErrMalformedMessage, key)
	}
}
