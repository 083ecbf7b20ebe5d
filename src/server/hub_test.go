package server

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"candle-aggregator/src/helpers"
	"candle-aggregator/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
	closed   int
}

func (f *fakeSink) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeSink) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
}

func testMessage() models.MCandleMessage {
	return models.NewCandleMessage(models.MCandle{
		Symbol:    "BTCUSDT",
		Timerange: "1m",
		OpenTime:  1_700_000_040_000,
		CloseTime: 1_700_000_099_000,
		Open:      100,
		High:      101,
		Low:       99,
		Price:     100.5,
		Volume:    3,
	})
}

func TestHub_BroadcastSerializesOnce(t *testing.T) {
	hub := NewHub(nil)
	a, b := &fakeSink{}, &fakeSink{}
	hub.Register(a)
	hub.Register(b)

	hub.Broadcast(testMessage())

	require.Len(t, a.payloads, 1)
	require.Len(t, b.payloads, 1)
	assert.Same(t, &a.payloads[0][0], &b.payloads[0][0], "every sink gets the same buffer")

	var frame map[string]any
	require.NoError(t, json.Unmarshal(a.payloads[0], &frame))
	assert.Equal(t, "candle", frame["type"])

	value := frame["value"].(map[string]any)
	assert.Equal(t, "BTCUSDT", value["symbol"])
	assert.Contains(t, value, "close")
	assert.Nil(t, value["close"])
}

func TestHub_FailingSinkIsIsolated(t *testing.T) {
	testCases := []struct {
		name string
		err  error
	}{
		{name: "backpressure", err: helpers.ErrSinkBackpressure},
		{name: "closed", err: helpers.ErrSinkClosed},
		{name: "transport", err: errors.New("broken pipe")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			hub := NewHub(nil)
			good1, bad, good2 := &fakeSink{}, &fakeSink{err: tc.err}, &fakeSink{}
			hub.Register(good1)
			hub.Register(bad)
			hub.Register(good2)

			hub.Broadcast(testMessage())
			hub.Broadcast(testMessage())

			assert.Len(t, good1.payloads, 2)
			assert.Len(t, good2.payloads, 2)
			assert.Equal(t, 1, bad.closed)
			assert.Equal(t, 2, hub.Count())
		})
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(nil)
	sink := &fakeSink{}

	handle := hub.Register(sink)
	assert.NotEmpty(t, handle)
	assert.Equal(t, 1, hub.Count())

	assert.True(t, hub.Unregister(handle))
	assert.False(t, hub.Unregister(handle), "second unregister is a no-op")
	assert.False(t, hub.Unregister("unknown"))
	assert.Equal(t, 0, hub.Count())
	assert.Equal(t, 1, sink.closed)

	hub.Broadcast(testMessage())
	assert.Empty(t, sink.payloads)
}

func TestHub_SameSinkTwice(t *testing.T) {
	hub := NewHub(nil)
	sink := &fakeSink{}

	h1 := hub.Register(sink)
	h2 := hub.Register(sink)
	assert.NotEqual(t, h1, h2)

	hub.Broadcast(testMessage())
	assert.Len(t, sink.payloads, 2)
}

func TestHub_ConcurrentRegistration(t *testing.T) {
	hub := NewHub(nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			handle := hub.Register(&fakeSink{})
			hub.Unregister(handle)
		}()
		go func() {
			defer wg.Done()
			hub.Broadcast(testMessage())
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, hub.Count())
}

func TestHub_CloseAll(t *testing.T) {
	hub := NewHub(nil)
	sinks := []*fakeSink{{}, {}, {}}
	for _, s := range sinks {
		hub.Register(s)
	}

	hub.CloseAll()

	assert.Equal(t, 0, hub.Count())
	for _, s := range sinks {
		assert.Equal(t, 1, s.closed)
	}
}

func TestClient_SendQueue(t *testing.T) {
	client := newClient(NewHub(nil), nil, 1, nil)

	require.NoError(t, client.Send([]byte("a")))
	assert.ErrorIs(t, client.Send([]byte("b")), helpers.ErrSinkBackpressure)

	client.Close()
	client.Close()
	assert.ErrorIs(t, client.Send([]byte("c")), helpers.ErrSinkClosed)

	queued, ok := <-client.send
	assert.True(t, ok)
	assert.Equal(t, []byte("a"), queued)
	_, ok = <-client.send
	assert.False(t, ok)
}
