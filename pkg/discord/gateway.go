// Package discord implements the Discord Gateway v9 wire protocol: the
// inbound frame decoder, the outbound control encoders and the payload
// shapes of every dispatched event.
package discord

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

const (
	// GatewayVersion is the protocol version appended to every gateway URL.
	GatewayVersion = "9"
	// GatewayEncoding is the only frame encoding supported.
	GatewayEncoding = "json"
	// DefaultGatewayURL is used when no endpoint can be resolved.
	DefaultGatewayURL = "wss://gateway.discord.gg"
)

const protocolQuery = "?v=" + GatewayVersion + "&encoding=" + GatewayEncoding

// EndpointGatewayBot is the REST endpoint returning the recommended gateway URL.
var EndpointGatewayBot = discordgo.EndpointGatewayBot

// Opcode tags the kind of a gateway frame.
type Opcode int

const (
	OpDispatch            Opcode = 0
	OpHeartbeat           Opcode = 1
	OpIdentify            Opcode = 2
	OpPresenceUpdate      Opcode = 3
	OpVoiceStateUpdate    Opcode = 4
	OpResume              Opcode = 6
	OpReconnect           Opcode = 7
	OpRequestGuildMembers Opcode = 8
	OpInvalidSession      Opcode = 9
	OpHello               Opcode = 10
	OpHeartbeatAck        Opcode = 11
)

var opcodeNames = map[Opcode]string{
	OpDispatch:            "dispatch",
	OpHeartbeat:           "heartbeat",
	OpIdentify:            "identify",
	OpPresenceUpdate:      "presence_update",
	OpVoiceStateUpdate:    "voice_state_update",
	OpResume:              "resume",
	OpReconnect:           "reconnect",
	OpRequestGuildMembers: "request_guild_members",
	OpInvalidSession:      "invalid_session",
	OpHello:               "hello",
	OpHeartbeatAck:        "heartbeat_ack",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// WithProtocolParams returns rawURL with the version and encoding query
// parameters set, replacing any query the URL already carries.
func WithProtocolParams(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		base := strings.TrimRight(strings.SplitN(rawURL, "?", 2)[0], "/")
		return base + "/" + protocolQuery
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.RawQuery = protocolQuery[1:]
	return u.String()
}
