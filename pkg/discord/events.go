package discord

import "encoding/json"

// Frame is the inbound gateway envelope.
type Frame struct {
	Op Opcode          `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *uint64         `json:"s,omitempty"`
	T  *string         `json:"t,omitempty"`
}

// Event is a decoded gateway frame. Control events are consumed by the
// session state machine; Dispatch events are forwarded untouched.
type Event interface {
	isEvent()
}

// Hello opens every connection and sets the heartbeat cadence.
type Hello struct {
	HeartbeatInterval uint64 `json:"heartbeat_interval"`
}

// Ready completes an Identify.
type Ready struct {
	V                int                `json:"v"`
	User             User               `json:"user"`
	Guilds           []json.RawMessage  `json:"guilds"`
	SessionID        string             `json:"session_id"`
	ResumeGatewayURL string             `json:"resume_gateway_url"`
	Shard            []uint64           `json:"shard,omitempty"`
	Application      PartialApplication `json:"application"`
	SessionType      *string            `json:"session_type,omitempty"`
	Presences        []PresenceUpdate   `json:"presences,omitempty"`
	PrivateChannels  []json.RawMessage  `json:"private_channels,omitempty"`
}

// Resumed completes a Resume; all missed events have been replayed.
type Resumed struct{}

// Reconnect asks the client to reconnect and resume.
type Reconnect struct{}

// InvalidSession reports that the last Identify or Resume was rejected.
type InvalidSession struct {
	Resumable bool
}

// HeartbeatRequest asks for an immediate heartbeat.
type HeartbeatRequest struct{}

// HeartbeatAck acknowledges the last heartbeat.
type HeartbeatAck struct{}

// Dispatch is a domain event. Data holds a pointer to the shape registered
// for Name.
type Dispatch struct {
	Name EventName
	Data any
}

func (*Hello) isEvent()           {}
func (*Ready) isEvent()           {}
func (Resumed) isEvent()          {}
func (Reconnect) isEvent()        {}
func (InvalidSession) isEvent()   {}
func (HeartbeatRequest) isEvent() {}
func (HeartbeatAck) isEvent()     {}
func (*Dispatch) isEvent()        {}

// IsControl reports whether ev is handled by the session itself rather
// than forwarded.
func IsControl(ev Event) bool {
	_, dispatch := ev.(*Dispatch)
	return !dispatch
}
