package discord

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

var intentNames = map[string]discordgo.Intent{
	"guilds":                        discordgo.IntentGuilds,
	"guild_members":                 discordgo.IntentGuildMembers,
	"guild_moderation":              discordgo.IntentGuildModeration,
	"guild_emojis":                  discordgo.IntentGuildEmojis,
	"guild_integrations":            discordgo.IntentGuildIntegrations,
	"guild_webhooks":                discordgo.IntentGuildWebhooks,
	"guild_invites":                 discordgo.IntentGuildInvites,
	"guild_voice_states":            discordgo.IntentGuildVoiceStates,
	"guild_presences":               discordgo.IntentGuildPresences,
	"guild_messages":                discordgo.IntentGuildMessages,
	"guild_message_reactions":       discordgo.IntentGuildMessageReactions,
	"guild_message_typing":          discordgo.IntentGuildMessageTyping,
	"direct_messages":               discordgo.IntentDirectMessages,
	"direct_message_reactions":      discordgo.IntentDirectMessageReactions,
	"direct_message_typing":         discordgo.IntentDirectMessageTyping,
	"message_content":               discordgo.IntentMessageContent,
	"guild_scheduled_events":        discordgo.IntentGuildScheduledEvents,
	"auto_moderation_configuration": discordgo.IntentAutoModerationConfiguration,
	"auto_moderation_execution":     discordgo.IntentAutoModerationExecution,
	"all_without_privileged":        discordgo.IntentsAllWithoutPrivileged,
	"all":                           discordgo.IntentsAll,
}

// ParseIntents folds intent names (e.g. "guild_messages") or decimal
// bitmasks into one capability bitmask.
func ParseIntents(names []string) (uint64, error) {
	var mask uint64
	for _, raw := range names {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if intent, ok := intentNames[name]; ok {
			mask |= uint64(intent)
			continue
		}
		n, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("unknown intent %q", raw)
		}
		mask |= n
	}
	return mask, nil
}
