package models

// -----------------------------------------------------------------------------

// EventKind distinguishes live updates from closed candles inside the process.
// The distinction never reaches the wire.
type EventKind int

const (
	EventLive EventKind = iota
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventClosed:
		return "closed"
	default:
		return "live"
	}
}

// -----------------------------------------------------------------------------

// MCandleEvent is one output of the aggregation engine.
type MCandleEvent struct {
	Kind   EventKind
	Candle MCandle
}

// -----------------------------------------------------------------------------

// Wire message types
const (
	MessageTypeCandle = "candle"
	MessageTypeInfo   = "info"
)

// MCandleMessage is the server-push frame sent to every subscriber.
type MCandleMessage struct {
	Type  string  `json:"type"`
	Value MCandle `json:"value"`
}

// NewCandleMessage wraps a candle in the push frame.
func NewCandleMessage(c MCandle) MCandleMessage {
	return MCandleMessage{Type: MessageTypeCandle, Value: c}
}

// MInfoMessage is the informational reply sent before closing a client
// that tried to talk to the server.
type MInfoMessage struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// -----------------------------------------------------------------------------

// MEngineStats is a point-in-time view of the engine counters.
type MEngineStats struct {
	TicksIngested    uint64 `json:"ticks_ingested"`
	EmptySymbolDrops uint64 `json:"empty_symbol_drops"`
	Rollovers        uint64 `json:"rollovers"`
	ContinuityGaps   uint64 `json:"continuity_gaps"`
	CandlesPersisted uint64 `json:"candles_persisted"`
	SeedRowsIgnored  uint64 `json:"seed_rows_ignored"`
}
