package server

import (
	"encoding/json"
	"sync"

	"candle-aggregator/src/logger"
	"candle-aggregator/src/models"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Sink
// -----------------------------------------------------------------------------

// Sink is one downstream subscriber. Send must not block; a sink that cannot
// accept a frame returns an error and is dropped by the hub.
type Sink interface {
	Send(payload []byte) error
	Close()
}

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// Hub keeps the registry of connected sinks and fans out candle frames.
// The registry lock is held for the whole fan-out loop.
type Hub struct {
	logger *logger.Logger

	mu    sync.Mutex
	sinks map[string]Sink
}

// NewHub creates an empty hub
func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Hub{
		logger: log,
		sinks:  make(map[string]Sink),
	}
}

// -----------------------------------------------------------------------------

// Register adds a sink and returns the handle used to remove it
func (h *Hub) Register(sink Sink) string {
	handle := uuid.NewString()

	h.mu.Lock()
	h.sinks[handle] = sink
	count := len(h.sinks)
	h.mu.Unlock()

	h.logger.Info("Client %s registered (%d connected)", handle, count)
	return handle
}

// -----------------------------------------------------------------------------

// Unregister removes the sink behind handle. Unknown handles are ignored.
// It reports whether a sink was removed.
func (h *Hub) Unregister(handle string) bool {
	h.mu.Lock()
	sink, ok := h.sinks[handle]
	if ok {
		delete(h.sinks, handle)
	}
	count := len(h.sinks)
	h.mu.Unlock()

	if !ok {
		return false
	}
	sink.Close()
	h.logger.Info("Client %s unregistered (%d connected)", handle, count)
	return true
}

// -----------------------------------------------------------------------------

// Broadcast serializes message once and hands the bytes to every sink.
// Failing sinks are removed after the loop; failures never reach the caller.
func (h *Hub) Broadcast(message models.MCandleMessage) {
	payload, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to serialize %s frame: %v", message.Type, err)
		return
	}
	h.BroadcastRaw(payload)
}

// BroadcastRaw delivers an already serialized frame
func (h *Hub) BroadcastRaw(payload []byte) {
	var failed map[string]Sink

	h.mu.Lock()
	for handle, sink := range h.sinks {
		if err := sink.Send(payload); err != nil {
			if failed == nil {
				failed = make(map[string]Sink)
			}
			failed[handle] = sink
			h.logger.Info("Dropping client %s: %v", handle, err)
		}
	}
	for handle := range failed {
		delete(h.sinks, handle)
	}
	h.mu.Unlock()

	for _, sink := range failed {
		sink.Close()
	}
}

// -----------------------------------------------------------------------------

// Count returns the number of registered sinks
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sinks)
}

// -----------------------------------------------------------------------------

// CloseAll removes and closes every sink
func (h *Hub) CloseAll() {
	h.mu.Lock()
	sinks := h.sinks
	h.sinks = make(map[string]Sink)
	h.mu.Unlock()

	for _, sink := range sinks {
		sink.Close()
	}
}
