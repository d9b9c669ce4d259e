package discord

// Channel is a guild channel, DM or thread.
type Channel struct {
	ID                         string                `json:"id"`
	Type                       uint32                `json:"type"`
	GuildID                    *string               `json:"guild_id,omitempty"`
	Position                   *int64                `json:"position,omitempty"`
	PermissionOverwrites       []PermissionOverwrite `json:"permission_overwrites,omitempty"`
	Name                       *string               `json:"name,omitempty"`
	Topic                      *string               `json:"topic,omitempty"`
	NSFW                       *bool                 `json:"nsfw,omitempty"`
	LastMessageID              *string               `json:"last_message_id,omitempty"`
	Bitrate                    *uint64               `json:"bitrate,omitempty"`
	UserLimit                  *uint64               `json:"user_limit,omitempty"`
	RateLimitPerUser           *uint64               `json:"rate_limit_per_user,omitempty"`
	Recipients                 []User                `json:"recipients,omitempty"`
	Icon                       *string               `json:"icon,omitempty"`
	OwnerID                    *string               `json:"owner_id,omitempty"`
	ApplicationID              *string               `json:"application_id,omitempty"`
	ParentID                   *string               `json:"parent_id,omitempty"`
	LastPinTimestamp           *string               `json:"last_pin_timestamp,omitempty"`
	RTCRegion                  *string               `json:"rtc_region,omitempty"`
	VideoQualityMode           *uint32               `json:"video_quality_mode,omitempty"`
	MessageCount               *uint64               `json:"message_count,omitempty"`
	MemberCount                *uint64               `json:"member_count,omitempty"`
	ThreadMetadata             *ThreadMetadata       `json:"thread_metadata,omitempty"`
	Member                     *ThreadMember         `json:"member,omitempty"`
	DefaultAutoArchiveDuration *uint64               `json:"default_auto_archive_duration,omitempty"`
	Permissions                *string               `json:"permissions,omitempty"`
	Flags                      *uint64               `json:"flags,omitempty"`
}

// PermissionOverwrite allow and deny are bitsets serialized as strings.
type PermissionOverwrite struct {
	ID    string `json:"id"`
	Type  uint32 `json:"type"`
	Allow string `json:"allow"`
	Deny  string `json:"deny"`
}

type ThreadMetadata struct {
	Archived            bool    `json:"archived"`
	AutoArchiveDuration uint64  `json:"auto_archive_duration"`
	ArchiveTimestamp    string  `json:"archive_timestamp"`
	Locked              bool    `json:"locked"`
	Invitable           *bool   `json:"invitable,omitempty"`
	CreateTimestamp     *string `json:"create_timestamp,omitempty"`
}

// ThreadMember omits id and user_id inside GUILD_CREATE.
type ThreadMember struct {
	ID            *string      `json:"id,omitempty"`
	UserID        *string      `json:"user_id,omitempty"`
	JoinTimestamp string       `json:"join_timestamp"`
	Flags         uint64       `json:"flags"`
	Member        *GuildMember `json:"member,omitempty"`
	GuildID       *string      `json:"guild_id,omitempty"`
}

type ChannelPinsUpdate struct {
	GuildID          *string `json:"guild_id,omitempty"`
	ChannelID        string  `json:"channel_id"`
	LastPinTimestamp *string `json:"last_pin_timestamp,omitempty"`
}

type ThreadDelete struct {
	ID       string  `json:"id"`
	GuildID  *string `json:"guild_id,omitempty"`
	ParentID *string `json:"parent_id,omitempty"`
	Type     uint32  `json:"type"`
}

type ThreadListSync struct {
	GuildID    string         `json:"guild_id"`
	ChannelIDs []string       `json:"channel_ids,omitempty"`
	Threads    []Channel      `json:"threads"`
	Members    []ThreadMember `json:"members"`
}

type ThreadMembersUpdate struct {
	ID               string         `json:"id"`
	GuildID          string         `json:"guild_id"`
	MemberCount      uint64         `json:"member_count"`
	AddedMembers     []ThreadMember `json:"added_members,omitempty"`
	RemovedMemberIDs []string       `json:"removed_member_ids,omitempty"`
}

type StageInstance struct {
	ID                    string  `json:"id"`
	GuildID               string  `json:"guild_id"`
	ChannelID             string  `json:"channel_id"`
	Topic                 string  `json:"topic"`
	PrivacyLevel          uint32  `json:"privacy_level"`
	DiscoverableDisabled  *bool   `json:"discoverable_disabled,omitempty"`
	GuildScheduledEventID *string `json:"guild_scheduled_event_id,omitempty"`
}

type InviteCreate struct {
	ChannelID         string       `json:"channel_id"`
	Code              string       `json:"code"`
	CreatedAt         string       `json:"created_at"`
	GuildID           *string      `json:"guild_id,omitempty"`
	Inviter           *User        `json:"inviter,omitempty"`
	MaxAge            uint64       `json:"max_age"`
	MaxUses           uint64       `json:"max_uses"`
	TargetType        *uint32      `json:"target_type,omitempty"`
	TargetUser        *User        `json:"target_user,omitempty"`
	TargetApplication *Application `json:"target_application,omitempty"`
	Temporary         bool         `json:"temporary"`
	Uses              uint64       `json:"uses"`
}

type InviteDelete struct {
	ChannelID string  `json:"channel_id"`
	GuildID   *string `json:"guild_id,omitempty"`
	Code      string  `json:"code"`
}

type TypingStart struct {
	ChannelID string       `json:"channel_id"`
	GuildID   *string      `json:"guild_id,omitempty"`
	UserID    string       `json:"user_id"`
	Timestamp uint64       `json:"timestamp"`
	Member    *GuildMember `json:"member,omitempty"`
}

type VoiceServerUpdate struct {
	Token    string  `json:"token"`
	GuildID  string  `json:"guild_id"`
	Endpoint *string `json:"endpoint"`
}

type WebhooksUpdate struct {
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
}
