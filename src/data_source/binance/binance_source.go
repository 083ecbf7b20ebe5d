package binance

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"candle-aggregator/src/helpers"
	"candle-aggregator/src/logger"
	"candle-aggregator/src/models"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	readTimeout      = 5 * time.Minute
	pongWait         = 5 * time.Second
)

// -----------------------------------------------------------------------------

// Source streams kline frames from the Binance combined stream and converts
// them to ticks. It owns reconnects.
type Source struct {
	url               string
	reconnectDelay    time.Duration
	maxReconnectDelay time.Duration
	dialer            *websocket.Dialer
	logger            *logger.Logger

	malformed atomic.Uint64
}

// -----------------------------------------------------------------------------

func NewSource(url string, reconnectDelay, maxReconnectDelay time.Duration, log *logger.Logger) *Source {
	if reconnectDelay <= 0 {
		reconnectDelay = time.Second
	}
	if maxReconnectDelay < reconnectDelay {
		maxReconnectDelay = reconnectDelay
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Source{
		url:               url,
		reconnectDelay:    reconnectDelay,
		maxReconnectDelay: maxReconnectDelay,
		dialer:            &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		logger:            log,
	}
}

// -----------------------------------------------------------------------------

func (s *Source) Name() string {
	return "Binance"
}

// Malformed returns the number of discarded frames
func (s *Source) Malformed() uint64 {
	return s.malformed.Load()
}

// -----------------------------------------------------------------------------

// Run streams ticks into out until ctx is done, reconnecting with exponential
// backoff. out is closed on return.
func (s *Source) Run(ctx context.Context, out chan<- models.MTick) error {
	defer close(out)

	delay := s.reconnectDelay
	for {
		connected, err := s.stream(ctx, out)
		if ctx.Err() != nil {
			s.logger.Info("Stream stopped")
			return nil
		}
		if connected {
			delay = s.reconnectDelay
		}

		s.logger.Warning("Stream interrupted: %v. Reconnecting in %v", err, delay)
		if !helpers.SleepWithContext(ctx, delay) {
			s.logger.Info("Stream stopped")
			return nil
		}
		delay = helpers.NextDelay(delay, s.maxReconnectDelay)
	}
}

// -----------------------------------------------------------------------------

// stream runs one connection until it fails. connected reports whether the
// handshake succeeded.
func (s *Source) stream(ctx context.Context, out chan<- models.MTick) (connected bool, err error) {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return false, helpers.NewProviderError("dial "+s.Name(), err)
	}
	s.logger.Info("Connected to %s", s.url)

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
			conn.Close()
		}
	}()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return true, helpers.NewProviderError("read "+s.Name(), err)
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		tick, err := ParseMessage(raw)
		if err != nil {
			s.malformed.Add(1)
			s.logger.Debug("Discarding frame: %v", err)
			continue
		}

		select {
		case out <- tick:
		case <-ctx.Done():
			return true, fmt.Errorf("stream cancelled: %w", ctx.Err())
		}
	}
}
