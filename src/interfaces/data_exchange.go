package interfaces

import "candle-aggregator/src/models"

// -----------------------------------------------------------------------------
// IBroadcaster pushes candle frames to every connected subscriber.
// -----------------------------------------------------------------------------

type IBroadcaster interface {
	// Broadcast serializes the message once and delivers it to all sinks.
	// Per-sink failures never propagate to the caller.
	Broadcast(message models.MCandleMessage)
}

// -----------------------------------------------------------------------------
// IDataExchanger is a long-running server surface.
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	IBroadcaster

	// -----------------------------------------------------------------------------
	// Start the server; blocks until it stops
	Start() error

	// -----------------------------------------------------------------------------
	// Stop the server gracefully
	Stop() error
}
