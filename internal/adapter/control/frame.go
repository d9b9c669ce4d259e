package control

import "encoding/json"

// FrameType identifies the kind of frame sent over the control socket.
type FrameType string

const (
	FrameTypeRequest  FrameType = "request"
	FrameTypeResponse FrameType = "response"
	FrameTypeEvent    FrameType = "event"
)

// Event frame methods.
const (
	EventMethodDispatch  = "dispatch"  // a gateway event for a session the client owns
	EventMethodLifecycle = "lifecycle" // a session lifecycle change
)

// Frame is the envelope exchanged between client and server.
type Frame struct {
	Type    FrameType       `json:"type"`
	ID      uint64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// DispatchPayload is the payload of a "dispatch" event frame.
type DispatchPayload struct {
	Session  string          `json:"session"`
	Event    string          `json:"event"`
	Sequence *uint64         `json:"sequence,omitempty"`
	Data     json.RawMessage `json:"data"`
}
