package discord

import (
	"encoding/json"
	"errors"
	"fmt"

	"botgate/internal/domain"
)

// DecodeError reports why a frame could not be decoded. Kind is one of the
// domain frame sentinels and matches with errors.Is.
type DecodeError struct {
	Kind  error
	Op    Opcode
	Event EventName
	Raw   []byte
	Err   error
}

func (e *DecodeError) Error() string {
	msg := e.Kind.Error()
	if e.Event != "" {
		msg += " (" + string(e.Event) + ")"
	} else if e.Kind != domain.ErrMalformedFrame {
		msg += " (" + e.Op.String() + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

type decodeFunc func(json.RawMessage) (any, error)

// shape registers T as the payload shape of a dispatch event.
func shape[T any]() decodeFunc {
	return func(raw json.RawMessage) (any, error) {
		return decodeShape[T](raw)
	}
}

// dispatchTable is the single registration point for domain events.
var dispatchTable = map[EventName]decodeFunc{
	EventApplicationCommandPermissionsUpdate: shape[ApplicationCommandPermissionsUpdate](),
	EventAutoModerationRuleCreate:            shape[AutoModerationRule](),
	EventAutoModerationRuleUpdate:            shape[AutoModerationRule](),
	EventAutoModerationRuleDelete:            shape[AutoModerationRule](),
	EventAutoModerationActionExecution:       shape[AutoModerationActionExecution](),
	EventChannelCreate:                       shape[Channel](),
	EventChannelUpdate:                       shape[Channel](),
	EventChannelDelete:                       shape[Channel](),
	EventChannelPinsUpdate:                   shape[ChannelPinsUpdate](),
	EventThreadCreate:                        shape[Channel](),
	EventThreadUpdate:                        shape[Channel](),
	EventThreadDelete:                        shape[ThreadDelete](),
	EventThreadListSync:                      shape[ThreadListSync](),
	EventThreadMemberUpdate:                  shape[ThreadMember](),
	EventThreadMembersUpdate:                 shape[ThreadMembersUpdate](),
	EventEntitlementCreate:                   shape[Entitlement](),
	EventEntitlementUpdate:                   shape[Entitlement](),
	EventEntitlementDelete:                   shape[Entitlement](),
	EventGuildCreate:                         decodeGuildCreate,
	EventGuildUpdate:                         shape[Guild](),
	EventGuildDelete:                         shape[GuildDelete](),
	EventGuildAuditLogEntryCreate:            shape[AuditLogEntry](),
	EventGuildBanAdd:                         shape[GuildBan](),
	EventGuildBanRemove:                      shape[GuildBan](),
	EventGuildEmojisUpdate:                   shape[GuildEmojisUpdate](),
	EventGuildStickersUpdate:                 shape[GuildStickersUpdate](),
	EventGuildIntegrationsUpdate:             shape[GuildIntegrationsUpdate](),
	EventGuildMemberAdd:                      shape[GuildMemberAdd](),
	EventGuildMemberRemove:                   shape[GuildMemberRemove](),
	EventGuildMemberUpdate:                   shape[GuildMemberUpdate](),
	EventGuildMembersChunk:                   shape[GuildMembersChunk](),
	EventGuildRoleCreate:                     shape[GuildRole](),
	EventGuildRoleUpdate:                     shape[GuildRole](),
	EventGuildRoleDelete:                     shape[GuildRoleDelete](),
	EventGuildScheduledEventCreate:           shape[GuildScheduledEvent](),
	EventGuildScheduledEventUpdate:           shape[GuildScheduledEvent](),
	EventGuildScheduledEventDelete:           shape[GuildScheduledEvent](),
	EventGuildScheduledEventUserAdd:          shape[GuildScheduledEventUser](),
	EventGuildScheduledEventUserRemove:       shape[GuildScheduledEventUser](),
	EventIntegrationCreate:                   shape[Integration](),
	EventIntegrationUpdate:                   shape[Integration](),
	EventIntegrationDelete:                   shape[IntegrationDelete](),
	EventInteractionCreate:                   shape[Interaction](),
	EventInviteCreate:                        shape[InviteCreate](),
	EventInviteDelete:                        shape[InviteDelete](),
	EventMessageCreate:                       shape[Message](),
	EventMessageUpdate:                       shape[Message](),
	EventMessageDelete:                       shape[MessageDelete](),
	EventMessageDeleteBulk:                   shape[MessageDeleteBulk](),
	EventMessageReactionAdd:                  shape[MessageReactionAdd](),
	EventMessageReactionRemove:               shape[MessageReactionRemove](),
	EventMessageReactionRemoveAll:            shape[MessageReactionRemoveAll](),
	EventMessageReactionRemoveEmoji:          shape[MessageReactionRemoveEmoji](),
	EventPresenceUpdate:                      shape[PresenceUpdate](),
	EventStageInstanceCreate:                 shape[StageInstance](),
	EventStageInstanceUpdate:                 shape[StageInstance](),
	EventStageInstanceDelete:                 shape[StageInstance](),
	EventTypingStart:                         shape[TypingStart](),
	EventUserUpdate:                          shape[User](),
	EventVoiceStateUpdate:                    shape[VoiceState](),
	EventVoiceServerUpdate:                   shape[VoiceServerUpdate](),
	EventWebhooksUpdate:                      shape[WebhooksUpdate](),
}

// decodeGuildCreate tries the full guild first; a stub payload that also
// coerces into Guild must still come out as a Guild when it matches.
func decodeGuildCreate(raw json.RawMessage) (any, error) {
	guild, guildErr := decodeShape[Guild](raw)
	if guildErr == nil {
		return &GuildCreate{Guild: guild}, nil
	}
	stub, stubErr := decodeShape[UnavailableGuild](raw)
	if stubErr == nil {
		return &GuildCreate{Unavailable: stub}, nil
	}
	return nil, fmt.Errorf("neither guild nor unavailable guild: %w", errors.Join(guildErr, stubErr))
}

// Decode parses one inbound frame. The sequence number is returned whenever
// the frame carries one, including alongside a decode error for a dispatch
// payload, so that callers can keep sequence bookkeeping exact.
func Decode(raw []byte) (Event, *uint64, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, nil, &DecodeError{Kind: domain.ErrMalformedFrame, Raw: raw, Err: err}
	}

	switch f.Op {
	case OpHeartbeat:
		return HeartbeatRequest{}, f.S, nil
	case OpReconnect:
		return Reconnect{}, f.S, nil
	case OpHeartbeatAck:
		return HeartbeatAck{}, f.S, nil
	case OpInvalidSession:
		var resumable bool
		if err := json.Unmarshal(f.D, &resumable); err != nil {
			return nil, f.S, controlError(f.Op, "", raw, err)
		}
		return InvalidSession{Resumable: resumable}, f.S, nil
	case OpHello:
		hello, err := decodeShape[Hello](f.D)
		if err != nil {
			return nil, f.S, controlError(f.Op, "", raw, err)
		}
		return hello, f.S, nil
	case OpDispatch:
		return decodeDispatch(f, raw)
	default:
		return nil, f.S, &DecodeError{
			Kind: domain.ErrMalformedFrame,
			Op:   f.Op,
			Raw:  raw,
			Err:  fmt.Errorf("unexpected inbound opcode %d", int(f.Op)),
		}
	}
}

func decodeDispatch(f Frame, raw []byte) (Event, *uint64, error) {
	if f.T == nil {
		return nil, f.S, &DecodeError{Kind: domain.ErrMalformedFrame, Op: f.Op, Raw: raw,
			Err: fmt.Errorf("dispatch frame without event type")}
	}
	name, _ := ParseEventName(*f.T)

	switch name {
	case EventReady:
		ready, err := decodeShape[Ready](f.D)
		if err != nil {
			return nil, f.S, controlError(f.Op, name, raw, err)
		}
		return ready, f.S, nil
	case EventResumed:
		return Resumed{}, f.S, nil
	}

	decode, ok := dispatchTable[name]
	if !ok {
		return nil, f.S, &DecodeError{Kind: domain.ErrUnrecognizedEvent, Op: f.Op, Event: name}
	}
	data, err := decode(f.D)
	if err != nil {
		return nil, f.S, &DecodeError{Kind: domain.ErrEventDecode, Op: f.Op, Event: name, Raw: raw, Err: err}
	}
	return &Dispatch{Name: name, Data: data}, f.S, nil
}

func controlError(op Opcode, name EventName, raw []byte, err error) *DecodeError {
	return &DecodeError{Kind: domain.ErrFatalControlDecode, Op: op, Event: name, Raw: raw, Err: err}
}
