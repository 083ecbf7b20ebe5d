package utils

import (
	"testing"

	"candle-aggregator/src/models"

	"github.com/stretchr/testify/assert"
)

func TestRingBuffer(t *testing.T) {
	testCases := []struct {
		name       string
		capacity   int
		appended   []int
		latestN    int
		wantLatest []int
		wantAll    []int
		wantFull   bool
	}{
		{name: "empty", capacity: 3, latestN: 2, wantLatest: []int{}, wantAll: []int{}},
		{name: "partial", capacity: 3, appended: []int{1, 2}, latestN: 5, wantLatest: []int{1, 2}, wantAll: []int{1, 2}},
		{name: "exactly full", capacity: 3, appended: []int{1, 2, 3}, latestN: 2, wantLatest: []int{2, 3}, wantAll: []int{1, 2, 3}, wantFull: true},
		{name: "wrapped", capacity: 3, appended: []int{1, 2, 3, 4, 5}, latestN: 3, wantLatest: []int{3, 4, 5}, wantAll: []int{3, 4, 5}, wantFull: true},
		{name: "zero capacity", capacity: 0, appended: []int{1, 2}, latestN: 1, wantLatest: []int{2}, wantAll: []int{2}, wantFull: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rb := NewRingBuffer[int](tc.capacity)
			for _, v := range tc.appended {
				rb.Append(v)
			}

			assert.Equal(t, tc.wantLatest, rb.GetLatest(tc.latestN))
			assert.Equal(t, tc.wantAll, rb.GetAll())
			assert.Equal(t, tc.wantFull, rb.IsFull())
			assert.Equal(t, len(tc.wantAll), rb.Size())
		})
	}
}

func TestRingBuffer_Clear(t *testing.T) {
	rb := NewRingBuffer[string](2)
	rb.Append("a")
	rb.Append("b")
	rb.Clear()

	assert.Equal(t, 0, rb.Size())
	assert.Equal(t, 2, rb.Capacity())
	assert.Empty(t, rb.GetAll())

	rb.Append("c")
	assert.Equal(t, []string{"c"}, rb.GetAll())
}

func TestCandleHistory(t *testing.T) {
	h := NewCandleHistory(2)

	for i := int64(1); i <= 3; i++ {
		h.Add(models.MCandle{Symbol: "BTCUSDT", Timerange: "1m", OpenTime: i * 60_000})
	}
	h.Add(models.MCandle{Symbol: "BTCUSDT", Timerange: "5m", OpenTime: 300_000})

	got := h.Latest("BTCUSDT", "1m", 0)
	if assert.Len(t, got, 2) {
		assert.Equal(t, int64(120_000), got[0].OpenTime)
		assert.Equal(t, int64(180_000), got[1].OpenTime)
	}

	assert.Len(t, h.Latest("BTCUSDT", "1m", 1), 1)
	assert.Empty(t, h.Latest("ETHUSDT", "1m", 10))
	assert.Equal(t, 2, h.SeriesCount())
}
