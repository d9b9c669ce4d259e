package discord

import (
	"encoding/json"
	"fmt"
	"runtime"

	"botgate/internal/domain"
)

// Identify defaults applied when the corresponding field is unset.
const (
	DefaultLargeThreshold = 50
	DefaultBrowser        = "botgate"
)

// OutboundEvent is a control message sent to the gateway.
type OutboundEvent interface {
	Opcode() Opcode
}

// ConsumerSendable reports whether op may be sent by a session's owner.
// Identify, Resume and Heartbeat are reserved for the session itself.
func ConsumerSendable(op Opcode) bool {
	switch op {
	case OpPresenceUpdate, OpVoiceStateUpdate, OpRequestGuildMembers:
		return true
	}
	return false
}

type IdentifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

// DefaultIdentifyProperties describes this client.
func DefaultIdentifyProperties() IdentifyProperties {
	return IdentifyProperties{OS: runtime.GOOS, Browser: DefaultBrowser, Device: DefaultBrowser}
}

type Identify struct {
	Token              string             `json:"token"`
	Properties         IdentifyProperties `json:"properties"`
	Compress           bool               `json:"compress"`
	LargeThreshold     int                `json:"large_threshold"`
	Shard              [2]int             `json:"shard"`
	Presence           *UpdatePresence    `json:"presence,omitempty"`
	GuildSubscriptions *bool              `json:"guild_subscriptions,omitempty"`
	Intents            uint64             `json:"intents"`
}

// NewIdentify returns an Identify for a single-shard session.
func NewIdentify(token string, intents uint64) *Identify {
	return &Identify{
		Token:          token,
		Properties:     DefaultIdentifyProperties(),
		LargeThreshold: DefaultLargeThreshold,
		Shard:          [2]int{0, 1},
		Intents:        intents,
	}
}

type Resume struct {
	Token     string  `json:"token"`
	SessionID string  `json:"session_id"`
	Seq       *uint64 `json:"seq"`
}

// Heartbeat carries the last sequence number received, or null.
type Heartbeat struct {
	Seq *uint64
}

func (h Heartbeat) MarshalJSON() ([]byte, error) {
	if h.Seq == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*h.Seq)
}

type UpdatePresence struct {
	Since      *uint64          `json:"since"`
	Activities []PresenceStatus `json:"activities"`
	Status     string           `json:"status"`
	AFK        bool             `json:"afk"`
}

// PresenceStatus is an activity a bot may set on itself.
type PresenceStatus struct {
	Name  string  `json:"name"`
	Type  uint32  `json:"type"`
	URL   *string `json:"url,omitempty"`
	State *string `json:"state,omitempty"`
}

type UpdateVoiceState struct {
	GuildID   string  `json:"guild_id"`
	ChannelID *string `json:"channel_id"`
	SelfMute  bool    `json:"self_mute"`
	SelfDeaf  bool    `json:"self_deaf"`
}

type RequestGuildMembers struct {
	GuildID   string   `json:"guild_id"`
	Query     *string  `json:"query,omitempty"`
	Limit     uint64   `json:"limit"`
	Presences *bool    `json:"presences,omitempty"`
	UserIDs   []string `json:"user_ids,omitempty"`
	Nonce     *string  `json:"nonce,omitempty"`
}

func (*Identify) Opcode() Opcode            { return OpIdentify }
func (*Resume) Opcode() Opcode              { return OpResume }
func (Heartbeat) Opcode() Opcode            { return OpHeartbeat }
func (*UpdatePresence) Opcode() Opcode      { return OpPresenceUpdate }
func (*UpdateVoiceState) Opcode() Opcode    { return OpVoiceStateUpdate }
func (*RequestGuildMembers) Opcode() Opcode { return OpRequestGuildMembers }

type outboundFrame struct {
	Op Opcode        `json:"op"`
	D  OutboundEvent `json:"d"`
}

// Encode renders ev as {"op":N,"d":...}.
func Encode(ev OutboundEvent) ([]byte, error) {
	if ev == nil {
		return nil, fmt.Errorf("encode: nil event")
	}
	return json.Marshal(outboundFrame{Op: ev.Opcode(), D: ev})
}

// DecodeOutbound parses a consumer-supplied send. Only consumer-sendable
// opcodes are accepted.
func DecodeOutbound(raw []byte) (OutboundEvent, error) {
	var f struct {
		Op Opcode          `json:"op"`
		D  json.RawMessage `json:"d"`
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, domain.NewSubSystemError("outbound", "discord.DecodeOutbound", domain.ErrInvalidInput, err.Error())
	}
	if !ConsumerSendable(f.Op) {
		return nil, domain.NewSubSystemError("outbound", "discord.DecodeOutbound", domain.ErrInvalidInput,
			fmt.Sprintf("opcode %s is not consumer-sendable", f.Op))
	}

	var (
		ev  OutboundEvent
		err error
	)
	switch f.Op {
	case OpPresenceUpdate:
		ev, err = decodeShape[UpdatePresence](f.D)
	case OpVoiceStateUpdate:
		ev, err = decodeShape[UpdateVoiceState](f.D)
	case OpRequestGuildMembers:
		ev, err = decodeShape[RequestGuildMembers](f.D)
	}
	if err != nil {
		return nil, domain.NewSubSystemError("outbound", "discord.DecodeOutbound", domain.ErrInvalidInput, err.Error())
	}
	return ev, nil
}
