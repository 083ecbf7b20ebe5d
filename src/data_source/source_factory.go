package datasource

import (
	"fmt"
	"strings"
	"time"

	"candle-aggregator/src/data_source/binance"
	"candle-aggregator/src/helpers"
	"candle-aggregator/src/interfaces"
	"candle-aggregator/src/logger"
	"candle-aggregator/src/models"
)

// -----------------------------------------------------------------------------

// NewTickSource builds the upstream adapter named by stream.provider
func NewTickSource(cfg *models.MConfig, log *logger.Logger) (interfaces.ITickSource, error) {
	stream := cfg.Stream

	switch strings.ToLower(stream.Provider) {
	case "binance":
		url, err := binance.BuildStreamURL(stream.URL, cfg.Params.Symbols, stream.Type)
		if err != nil {
			return nil, helpers.NewConfigurationError("binance stream url", err)
		}
		return binance.NewSource(
			url,
			time.Duration(stream.ReconnectDelaySeconds)*time.Second,
			time.Duration(stream.MaxReconnectDelaySeconds)*time.Second,
			log.Named("binance"),
		), nil

	default:
		return nil, helpers.NewConfigurationError(fmt.Sprintf("unsupported provider %q", stream.Provider), nil)
	}
}
