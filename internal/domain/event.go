package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of lifecycle event being published.
type EventType string

const (
	EventSessionConnecting   EventType = "session.connecting"
	EventSessionReady        EventType = "session.ready"
	EventSessionResumed      EventType = "session.resumed"
	EventSessionReconnecting EventType = "session.reconnecting"
	EventSessionInvalidated  EventType = "session.invalidated"
	EventSessionDisconnected EventType = "session.disconnected"
	EventSessionFailed       EventType = "session.failed"
	EventFrameDropped        EventType = "session.frame_dropped"

	// Control API client events.
	EventClientConnected    EventType = "control.client.connected"
	EventClientDisconnected EventType = "control.client.disconnected"
)

// Event is the envelope published on the event bus.
// SessionID carries the session fingerprint, never the token.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for lifecycle events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}
