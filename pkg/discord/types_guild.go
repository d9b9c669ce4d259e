package discord

import "encoding/json"

// Guild is the fully populated guild object. GUILD_CREATE adds the
// joined_at through guild_scheduled_events fields.
type Guild struct {
	ID                          string                `json:"id"`
	Name                        string                `json:"name"`
	Icon                        *string               `json:"icon,omitempty"`
	IconHash                    *string               `json:"icon_hash,omitempty"`
	Splash                      *string               `json:"splash,omitempty"`
	DiscoverySplash             *string               `json:"discovery_splash,omitempty"`
	Owner                       *bool                 `json:"owner,omitempty"`
	OwnerID                     string                `json:"owner_id"`
	Permissions                 *string               `json:"permissions,omitempty"`
	Region                      *string               `json:"region,omitempty"`
	AFKChannelID                *string               `json:"afk_channel_id,omitempty"`
	AFKTimeout                  uint64                `json:"afk_timeout"`
	WidgetEnabled               *bool                 `json:"widget_enabled,omitempty"`
	WidgetChannelID             *string               `json:"widget_channel_id,omitempty"`
	VerificationLevel           uint32                `json:"verification_level"`
	DefaultMessageNotifications uint32                `json:"default_message_notifications"`
	ExplicitContentFilter       uint32                `json:"explicit_content_filter"`
	Roles                       []Role                `json:"roles"`
	Emojis                      []Emoji               `json:"emojis"`
	Features                    []string              `json:"features"`
	MFALevel                    uint32                `json:"mfa_level"`
	ApplicationID               *string               `json:"application_id,omitempty"`
	SystemChannelID             *string               `json:"system_channel_id,omitempty"`
	SystemChannelFlags          uint32                `json:"system_channel_flags"`
	RulesChannelID              *string               `json:"rules_channel_id,omitempty"`
	MaxPresences                *uint64               `json:"max_presences,omitempty"`
	MaxMembers                  *uint64               `json:"max_members,omitempty"`
	VanityURLCode               *string               `json:"vanity_url_code,omitempty"`
	Description                 *string               `json:"description,omitempty"`
	Banner                      *string               `json:"banner,omitempty"`
	PremiumTier                 uint32                `json:"premium_tier"`
	PremiumSubscriptionCount    *uint64               `json:"premium_subscription_count,omitempty"`
	PreferredLocale             string                `json:"preferred_locale"`
	PublicUpdatesChannelID      *string               `json:"public_updates_channel_id,omitempty"`
	MaxVideoChannelUsers        *uint64               `json:"max_video_channel_users,omitempty"`
	ApproximateMemberCount      *uint64               `json:"approximate_member_count,omitempty"`
	ApproximatePresenceCount    *uint64               `json:"approximate_presence_count,omitempty"`
	WelcomeScreen               *WelcomeScreen        `json:"welcome_screen,omitempty"`
	NSFWLevel                   uint32                `json:"nsfw_level"`
	Stickers                    []Sticker             `json:"stickers,omitempty"`
	PremiumProgressBarEnabled   *bool                 `json:"premium_progress_bar_enabled,omitempty"`
	JoinedAt                    *string               `json:"joined_at,omitempty"`
	Large                       *bool                 `json:"large,omitempty"`
	Unavailable                 *bool                 `json:"unavailable,omitempty"`
	MemberCount                 *uint64               `json:"member_count,omitempty"`
	VoiceStates                 []VoiceState          `json:"voice_states,omitempty"`
	Members                     []GuildMember         `json:"members,omitempty"`
	Channels                    []Channel             `json:"channels,omitempty"`
	Threads                     []Channel             `json:"threads,omitempty"`
	Presences                   []PresenceUpdate      `json:"presences,omitempty"`
	StageInstances              []StageInstance       `json:"stage_instances,omitempty"`
	GuildScheduledEvents        []GuildScheduledEvent `json:"guild_scheduled_events,omitempty"`
}

// UnavailableGuild is the stub sent for guilds in an outage or not yet
// loaded after READY.
type UnavailableGuild struct {
	ID          string `json:"id"`
	Unavailable bool   `json:"unavailable"`
}

// GuildCreate carries at most one of Guild and Unavailable.
type GuildCreate struct {
	Guild       *Guild            `json:"guild,omitempty"`
	Unavailable *UnavailableGuild `json:"unavailable,omitempty"`
}

// MarshalJSON emits whichever shape is populated, so the wire form of a
// GuildCreate is the payload it was decoded from.
func (g GuildCreate) MarshalJSON() ([]byte, error) {
	switch {
	case g.Guild != nil:
		return json.Marshal(g.Guild)
	case g.Unavailable != nil:
		return json.Marshal(g.Unavailable)
	default:
		return []byte("null"), nil
	}
}

// GuildDelete omits unavailable when the bot was removed from the guild.
type GuildDelete struct {
	ID          string `json:"id"`
	Unavailable *bool  `json:"unavailable,omitempty"`
}

type WelcomeScreen struct {
	Description     *string                `json:"description,omitempty"`
	WelcomeChannels []WelcomeScreenChannel `json:"welcome_channels"`
}

type WelcomeScreenChannel struct {
	ChannelID   string  `json:"channel_id"`
	Description string  `json:"description"`
	EmojiID     *string `json:"emoji_id,omitempty"`
	EmojiName   *string `json:"emoji_name,omitempty"`
}

type GuildBan struct {
	GuildID string `json:"guild_id"`
	User    User   `json:"user"`
}

type GuildEmojisUpdate struct {
	GuildID string  `json:"guild_id"`
	Emojis  []Emoji `json:"emojis"`
}

type GuildStickersUpdate struct {
	GuildID  string    `json:"guild_id"`
	Stickers []Sticker `json:"stickers"`
}

type GuildIntegrationsUpdate struct {
	GuildID string `json:"guild_id"`
}

// GuildMemberAdd is a GuildMember with its guild id.
type GuildMemberAdd struct {
	GuildID                    string   `json:"guild_id"`
	User                       User     `json:"user"`
	Nick                       *string  `json:"nick,omitempty"`
	Avatar                     *string  `json:"avatar,omitempty"`
	Roles                      []string `json:"roles"`
	JoinedAt                   string   `json:"joined_at"`
	PremiumSince               *string  `json:"premium_since,omitempty"`
	Deaf                       bool     `json:"deaf"`
	Mute                       bool     `json:"mute"`
	Flags                      *uint64  `json:"flags,omitempty"`
	Pending                    *bool    `json:"pending,omitempty"`
	CommunicationDisabledUntil *string  `json:"communication_disabled_until,omitempty"`
}

type GuildMemberRemove struct {
	GuildID string `json:"guild_id"`
	User    User   `json:"user"`
}

type GuildMemberUpdate struct {
	GuildID                    string   `json:"guild_id"`
	Roles                      []string `json:"roles"`
	User                       User     `json:"user"`
	Nick                       *string  `json:"nick,omitempty"`
	Avatar                     *string  `json:"avatar,omitempty"`
	JoinedAt                   *string  `json:"joined_at"`
	PremiumSince               *string  `json:"premium_since,omitempty"`
	Deaf                       *bool    `json:"deaf,omitempty"`
	Mute                       *bool    `json:"mute,omitempty"`
	Pending                    *bool    `json:"pending,omitempty"`
	CommunicationDisabledUntil *string  `json:"communication_disabled_until,omitempty"`
	Flags                      *uint64  `json:"flags,omitempty"`
}

type GuildMembersChunk struct {
	GuildID    string           `json:"guild_id"`
	Members    []GuildMember    `json:"members"`
	ChunkIndex uint64           `json:"chunk_index"`
	ChunkCount uint64           `json:"chunk_count"`
	NotFound   []string         `json:"not_found,omitempty"`
	Presences  []PresenceUpdate `json:"presences,omitempty"`
	Nonce      *string          `json:"nonce,omitempty"`
}

type GuildRole struct {
	GuildID string `json:"guild_id"`
	Role    Role   `json:"role"`
}

type GuildRoleDelete struct {
	GuildID string `json:"guild_id"`
	RoleID  string `json:"role_id"`
}

type GuildScheduledEvent struct {
	ID                 string          `json:"id"`
	GuildID            string          `json:"guild_id"`
	ChannelID          *string         `json:"channel_id,omitempty"`
	CreatorID          *string         `json:"creator_id,omitempty"`
	Name               string          `json:"name"`
	Description        *string         `json:"description,omitempty"`
	ScheduledStartTime string          `json:"scheduled_start_time"`
	ScheduledEndTime   *string         `json:"scheduled_end_time,omitempty"`
	PrivacyLevel       uint32          `json:"privacy_level"`
	Status             uint32          `json:"status"`
	EntityType         uint32          `json:"entity_type"`
	EntityID           *string         `json:"entity_id,omitempty"`
	EntityMetadata     *EntityMetadata `json:"entity_metadata,omitempty"`
	Creator            *User           `json:"creator,omitempty"`
	UserCount          *uint64         `json:"user_count,omitempty"`
	Image              *string         `json:"image,omitempty"`
}

type EntityMetadata struct {
	Location *string `json:"location,omitempty"`
}

type GuildScheduledEventUser struct {
	GuildScheduledEventID string `json:"guild_scheduled_event_id"`
	UserID                string `json:"user_id"`
	GuildID               string `json:"guild_id"`
}

// AuditLogEntry carries changes whose values are of any JSON type.
type AuditLogEntry struct {
	GuildID    *string                 `json:"guild_id,omitempty"`
	ID         string                  `json:"id"`
	TargetID   *string                 `json:"target_id,omitempty"`
	Changes    []AuditLogChange        `json:"changes,omitempty"`
	UserID     *string                 `json:"user_id,omitempty"`
	ActionType uint32                  `json:"action_type"`
	Options    *OptionalAuditEntryInfo `json:"options,omitempty"`
	Reason     *string                 `json:"reason,omitempty"`
}

type AuditLogChange struct {
	Key      string          `json:"key"`
	NewValue json.RawMessage `json:"new_value,omitempty"`
	OldValue json.RawMessage `json:"old_value,omitempty"`
}

type OptionalAuditEntryInfo struct {
	ApplicationID    *string `json:"application_id,omitempty"`
	ChannelID        *string `json:"channel_id,omitempty"`
	Count            *string `json:"count,omitempty"`
	DeleteMemberDays *string `json:"delete_member_days,omitempty"`
	ID               *string `json:"id,omitempty"`
	MembersRemoved   *string `json:"members_removed,omitempty"`
	MessageID        *string `json:"message_id,omitempty"`
	RoleName         *string `json:"role_name,omitempty"`
	Type             *string `json:"type,omitempty"`
}

type Integration struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Type              string       `json:"type"`
	Enabled           bool         `json:"enabled"`
	Syncing           *bool        `json:"syncing,omitempty"`
	RoleID            *string      `json:"role_id,omitempty"`
	EnableEmoticons   *bool        `json:"enable_emoticons,omitempty"`
	ExpireBehavior    *uint32      `json:"expire_behavior,omitempty"`
	ExpireGracePeriod *uint64      `json:"expire_grace_period,omitempty"`
	User              *User        `json:"user,omitempty"`
	Account           Account      `json:"account"`
	SyncedAt          *string      `json:"synced_at,omitempty"`
	SubscriberCount   *uint64      `json:"subscriber_count,omitempty"`
	Revoked           *bool        `json:"revoked,omitempty"`
	Application       *Application `json:"application,omitempty"`
	Scopes            []string     `json:"scopes,omitempty"`
	GuildID           *string      `json:"guild_id,omitempty"`
}

type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type IntegrationDelete struct {
	ID            string  `json:"id"`
	GuildID       string  `json:"guild_id"`
	ApplicationID *string `json:"application_id,omitempty"`
}

type Entitlement struct {
	ID            string  `json:"id"`
	SKUID         string  `json:"sku_id"`
	ApplicationID string  `json:"application_id"`
	UserID        *string `json:"user_id,omitempty"`
	Type          uint32  `json:"type"`
	Deleted       bool    `json:"deleted"`
	StartsAt      *string `json:"starts_at,omitempty"`
	EndsAt        *string `json:"ends_at,omitempty"`
	GuildID       *string `json:"guild_id,omitempty"`
	Consumed      *bool   `json:"consumed,omitempty"`
}

type ApplicationCommandPermissionsUpdate struct {
	ID            string                          `json:"id"`
	ApplicationID string                          `json:"application_id"`
	GuildID       string                          `json:"guild_id"`
	Permissions   []ApplicationCommandPermissions `json:"permissions"`
}

type ApplicationCommandPermissions struct {
	ID         string `json:"id"`
	Type       uint32 `json:"type"`
	Permission bool   `json:"permission"`
}

// AutoModerationRule is sent for rule create, update and delete.
type AutoModerationRule struct {
	ID              string                 `json:"id"`
	GuildID         string                 `json:"guild_id"`
	Name            string                 `json:"name"`
	CreatorID       *string                `json:"creator_id,omitempty"`
	EventType       uint32                 `json:"event_type"`
	TriggerType     uint32                 `json:"trigger_type"`
	TriggerMetadata json.RawMessage        `json:"trigger_metadata,omitempty"`
	Actions         []AutoModerationAction `json:"actions"`
	Enabled         bool                   `json:"enabled"`
	ExemptRoles     []string               `json:"exempt_roles,omitempty"`
	ExemptChannels  []string               `json:"exempt_channels,omitempty"`
}

type AutoModerationAction struct {
	Type     uint32          `json:"type"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
}

type AutoModerationActionExecution struct {
	GuildID              string               `json:"guild_id"`
	Action               AutoModerationAction `json:"action"`
	RuleID               string               `json:"rule_id"`
	RuleTriggerType      uint32               `json:"rule_trigger_type"`
	UserID               string               `json:"user_id"`
	ChannelID            *string              `json:"channel_id,omitempty"`
	MessageID            *string              `json:"message_id,omitempty"`
	AlertSystemMessageID *string              `json:"alert_system_message_id,omitempty"`
	Content              *string              `json:"content,omitempty"`
	MatchedKeyword       *string              `json:"matched_keyword,omitempty"`
	MatchedContent       *string              `json:"matched_content,omitempty"`
}
