package discord

import "strings"

// EventName is the upper-snake-case dispatch tag carried in a frame's t field.
type EventName string

const (
	EventReady   EventName = "READY"
	EventResumed EventName = "RESUMED"

	EventApplicationCommandPermissionsUpdate EventName = "APPLICATION_COMMAND_PERMISSIONS_UPDATE"
	EventAutoModerationRuleCreate            EventName = "AUTO_MODERATION_RULE_CREATE"
	EventAutoModerationRuleUpdate            EventName = "AUTO_MODERATION_RULE_UPDATE"
	EventAutoModerationRuleDelete            EventName = "AUTO_MODERATION_RULE_DELETE"
	EventAutoModerationActionExecution       EventName = "AUTO_MODERATION_ACTION_EXECUTION"
	EventChannelCreate                       EventName = "CHANNEL_CREATE"
	EventChannelUpdate                       EventName = "CHANNEL_UPDATE"
	EventChannelDelete                       EventName = "CHANNEL_DELETE"
	EventChannelPinsUpdate                   EventName = "CHANNEL_PINS_UPDATE"
	EventThreadCreate                        EventName = "THREAD_CREATE"
	EventThreadUpdate                        EventName = "THREAD_UPDATE"
	EventThreadDelete                        EventName = "THREAD_DELETE"
	EventThreadListSync                      EventName = "THREAD_LIST_SYNC"
	EventThreadMemberUpdate                  EventName = "THREAD_MEMBER_UPDATE"
	EventThreadMembersUpdate                 EventName = "THREAD_MEMBERS_UPDATE"
	EventEntitlementCreate                   EventName = "ENTITLEMENT_CREATE"
	EventEntitlementUpdate                   EventName = "ENTITLEMENT_UPDATE"
	EventEntitlementDelete                   EventName = "ENTITLEMENT_DELETE"
	EventGuildCreate                         EventName = "GUILD_CREATE"
	EventGuildUpdate                         EventName = "GUILD_UPDATE"
	EventGuildDelete                         EventName = "GUILD_DELETE"
	EventGuildAuditLogEntryCreate            EventName = "GUILD_AUDIT_LOG_ENTRY_CREATE"
	EventGuildBanAdd                         EventName = "GUILD_BAN_ADD"
	EventGuildBanRemove                      EventName = "GUILD_BAN_REMOVE"
	EventGuildEmojisUpdate                   EventName = "GUILD_EMOJIS_UPDATE"
	EventGuildStickersUpdate                 EventName = "GUILD_STICKERS_UPDATE"
	EventGuildIntegrationsUpdate             EventName = "GUILD_INTEGRATIONS_UPDATE"
	EventGuildMemberAdd                      EventName = "GUILD_MEMBER_ADD"
	EventGuildMemberRemove                   EventName = "GUILD_MEMBER_REMOVE"
	EventGuildMemberUpdate                   EventName = "GUILD_MEMBER_UPDATE"
	EventGuildMembersChunk                   EventName = "GUILD_MEMBERS_CHUNK"
	EventGuildRoleCreate                     EventName = "GUILD_ROLE_CREATE"
	EventGuildRoleUpdate                     EventName = "GUILD_ROLE_UPDATE"
	EventGuildRoleDelete                     EventName = "GUILD_ROLE_DELETE"
	EventGuildScheduledEventCreate           EventName = "GUILD_SCHEDULED_EVENT_CREATE"
	EventGuildScheduledEventUpdate           EventName = "GUILD_SCHEDULED_EVENT_UPDATE"
	EventGuildScheduledEventDelete           EventName = "GUILD_SCHEDULED_EVENT_DELETE"
	EventGuildScheduledEventUserAdd          EventName = "GUILD_SCHEDULED_EVENT_USER_ADD"
	EventGuildScheduledEventUserRemove       EventName = "GUILD_SCHEDULED_EVENT_USER_REMOVE"
	EventIntegrationCreate                   EventName = "INTEGRATION_CREATE"
	EventIntegrationUpdate                   EventName = "INTEGRATION_UPDATE"
	EventIntegrationDelete                   EventName = "INTEGRATION_DELETE"
	EventInteractionCreate                   EventName = "INTERACTION_CREATE"
	EventInviteCreate                        EventName = "INVITE_CREATE"
	EventInviteDelete                        EventName = "INVITE_DELETE"
	EventMessageCreate                       EventName = "MESSAGE_CREATE"
	EventMessageUpdate                       EventName = "MESSAGE_UPDATE"
	EventMessageDelete                       EventName = "MESSAGE_DELETE"
	EventMessageDeleteBulk                   EventName = "MESSAGE_DELETE_BULK"
	EventMessageReactionAdd                  EventName = "MESSAGE_REACTION_ADD"
	EventMessageReactionRemove               EventName = "MESSAGE_REACTION_REMOVE"
	EventMessageReactionRemoveAll            EventName = "MESSAGE_REACTION_REMOVE_ALL"
	EventMessageReactionRemoveEmoji          EventName = "MESSAGE_REACTION_REMOVE_EMOJI"
	EventPresenceUpdate                      EventName = "PRESENCE_UPDATE"
	EventStageInstanceCreate                 EventName = "STAGE_INSTANCE_CREATE"
	EventStageInstanceUpdate                 EventName = "STAGE_INSTANCE_UPDATE"
	EventStageInstanceDelete                 EventName = "STAGE_INSTANCE_DELETE"
	EventTypingStart                         EventName = "TYPING_START"
	EventUserUpdate                          EventName = "USER_UPDATE"
	EventVoiceStateUpdate                    EventName = "VOICE_STATE_UPDATE"
	EventVoiceServerUpdate                   EventName = "VOICE_SERVER_UPDATE"
	EventWebhooksUpdate                      EventName = "WEBHOOKS_UPDATE"
)

// ParseEventName normalises a dispatch tag. The second result reports
// whether the tag is a known dispatch event.
func ParseEventName(tag string) (EventName, bool) {
	name := EventName(strings.ToUpper(strings.TrimSpace(tag)))
	if name == EventReady || name == EventResumed {
		return name, true
	}
	_, ok := dispatchTable[name]
	return name, ok
}

// EventNames returns every domain event name with a registered decoder.
func EventNames() []EventName {
	names := make([]EventName, 0, len(dispatchTable))
	for name := range dispatchTable {
		names = append(names, name)
	}
	return names
}
