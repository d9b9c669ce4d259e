package discord

import "encoding/json"

// Message is sent for MESSAGE_CREATE and MESSAGE_UPDATE.
type Message struct {
	ID                   string                `json:"id"`
	ChannelID            string                `json:"channel_id"`
	Author               *User                 `json:"author,omitempty"`
	Content              *string               `json:"content,omitempty"`
	Timestamp            *string               `json:"timestamp,omitempty"`
	EditedTimestamp      *string               `json:"edited_timestamp,omitempty"`
	TTS                  *bool                 `json:"tts,omitempty"`
	MentionEveryone      *bool                 `json:"mention_everyone,omitempty"`
	Mentions             []User                `json:"mentions,omitempty"`
	MentionRoles         []string              `json:"mention_roles"`
	MentionChannels      []ChannelMention      `json:"mention_channels,omitempty"`
	Attachments          []Attachment          `json:"attachments"`
	Embeds               []Embed               `json:"embeds"`
	Reactions            []Reaction            `json:"reactions,omitempty"`
	Nonce                json.RawMessage       `json:"nonce,omitempty"`
	Pinned               *bool                 `json:"pinned,omitempty"`
	WebhookID            *string               `json:"webhook_id,omitempty"`
	Type                 *uint32               `json:"type,omitempty"`
	Activity             *MessageActivity      `json:"activity,omitempty"`
	Application          *Application          `json:"application,omitempty"`
	ApplicationID        *string               `json:"application_id,omitempty"`
	MessageReference     *MessageReference     `json:"message_reference,omitempty"`
	Flags                *uint64               `json:"flags,omitempty"`
	ReferencedMessage    *Message              `json:"referenced_message,omitempty"`
	Interaction          *MessageInteraction   `json:"interaction,omitempty"`
	Thread               *Channel              `json:"thread,omitempty"`
	Components           []json.RawMessage     `json:"components,omitempty"`
	StickerItems         []StickerItem         `json:"sticker_items,omitempty"`
	Position             *uint64               `json:"position,omitempty"`
	RoleSubscriptionData *RoleSubscriptionData `json:"role_subscription_data,omitempty"`
	GuildID              *string               `json:"guild_id,omitempty"`
	Member               *GuildMember          `json:"member,omitempty"`
}

type ChannelMention struct {
	ID      string `json:"id"`
	GuildID string `json:"guild_id"`
	Type    uint32 `json:"type"`
	Name    string `json:"name"`
}

type Attachment struct {
	ID           string   `json:"id"`
	Filename     string   `json:"filename"`
	Description  *string  `json:"description,omitempty"`
	ContentType  *string  `json:"content_type,omitempty"`
	Size         uint64   `json:"size"`
	URL          string   `json:"url"`
	ProxyURL     string   `json:"proxy_url"`
	Height       *uint64  `json:"height,omitempty"`
	Width        *uint64  `json:"width,omitempty"`
	Ephemeral    *bool    `json:"ephemeral,omitempty"`
	DurationSecs *float64 `json:"duration_secs,omitempty"`
	Waveform     *string  `json:"waveform,omitempty"`
	Flags        *uint64  `json:"flags,omitempty"`
}

type MessageActivity struct {
	Type    uint32  `json:"type"`
	PartyID *string `json:"party_id,omitempty"`
}

type MessageReference struct {
	Type            *uint32 `json:"type,omitempty"`
	MessageID       *string `json:"message_id,omitempty"`
	ChannelID       *string `json:"channel_id,omitempty"`
	GuildID         *string `json:"guild_id,omitempty"`
	FailIfNotExists *bool   `json:"fail_if_not_exists,omitempty"`
}

// MessageInteraction is the interaction stub attached to a message.
type MessageInteraction struct {
	ID     string       `json:"id"`
	Type   uint32       `json:"type"`
	Name   string       `json:"name"`
	User   User         `json:"user"`
	Member *GuildMember `json:"member,omitempty"`
}

type Reaction struct {
	Count        uint64                `json:"count"`
	CountDetails *ReactionCountDetails `json:"count_details,omitempty"`
	Me           bool                  `json:"me"`
	MeBurst      *bool                 `json:"me_burst,omitempty"`
	Emoji        Emoji                 `json:"emoji"`
	BurstColors  []string              `json:"burst_colors,omitempty"`
}

type ReactionCountDetails struct {
	Burst  uint64 `json:"burst"`
	Normal uint64 `json:"normal"`
}

type Embed struct {
	Title       *string        `json:"title,omitempty"`
	Type        *string        `json:"type,omitempty"`
	Description *string        `json:"description,omitempty"`
	URL         *string        `json:"url,omitempty"`
	Timestamp   *string        `json:"timestamp,omitempty"`
	Color       *uint32        `json:"color,omitempty"`
	Footer      *EmbedFooter   `json:"footer,omitempty"`
	Image       *EmbedMedia    `json:"image,omitempty"`
	Thumbnail   *EmbedMedia    `json:"thumbnail,omitempty"`
	Video       *EmbedMedia    `json:"video,omitempty"`
	Provider    *EmbedProvider `json:"provider,omitempty"`
	Author      *EmbedAuthor   `json:"author,omitempty"`
	Fields      []EmbedField   `json:"fields,omitempty"`
}

type EmbedFooter struct {
	Text         string  `json:"text"`
	IconURL      *string `json:"icon_url,omitempty"`
	ProxyIconURL *string `json:"proxy_icon_url,omitempty"`
}

// EmbedMedia covers image, thumbnail and video; only images and
// thumbnails require a url, which the gateway always sends for them.
type EmbedMedia struct {
	URL      *string `json:"url,omitempty"`
	ProxyURL *string `json:"proxy_url,omitempty"`
	Height   *uint64 `json:"height,omitempty"`
	Width    *uint64 `json:"width,omitempty"`
}

type EmbedProvider struct {
	Name *string `json:"name,omitempty"`
	URL  *string `json:"url,omitempty"`
}

type EmbedAuthor struct {
	Name         string  `json:"name"`
	URL          *string `json:"url,omitempty"`
	IconURL      *string `json:"icon_url,omitempty"`
	ProxyIconURL *string `json:"proxy_icon_url,omitempty"`
}

type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline *bool  `json:"inline,omitempty"`
}

type RoleSubscriptionData struct {
	RoleSubscriptionListingID string `json:"role_subscription_listing_id"`
	TierName                  string `json:"tier_name"`
	TotalMonthsSubscribed     uint64 `json:"total_months_subscribed"`
	IsRenewal                 bool   `json:"is_renewal"`
}

type MessageDelete struct {
	ID        string  `json:"id"`
	ChannelID string  `json:"channel_id"`
	GuildID   *string `json:"guild_id,omitempty"`
}

type MessageDeleteBulk struct {
	IDs       []string `json:"ids"`
	ChannelID string   `json:"channel_id"`
	GuildID   *string  `json:"guild_id,omitempty"`
}

type MessageReactionAdd struct {
	UserID          string       `json:"user_id"`
	ChannelID       string       `json:"channel_id"`
	MessageID       string       `json:"message_id"`
	GuildID         *string      `json:"guild_id,omitempty"`
	Member          *GuildMember `json:"member,omitempty"`
	Emoji           Emoji        `json:"emoji"`
	MessageAuthorID *string      `json:"message_author_id,omitempty"`
	Burst           *bool        `json:"burst,omitempty"`
	Type            *uint32      `json:"type,omitempty"`
}

type MessageReactionRemove struct {
	UserID    string  `json:"user_id"`
	ChannelID string  `json:"channel_id"`
	MessageID string  `json:"message_id"`
	GuildID   *string `json:"guild_id,omitempty"`
	Emoji     Emoji   `json:"emoji"`
	Burst     *bool   `json:"burst,omitempty"`
	Type      *uint32 `json:"type,omitempty"`
}

type MessageReactionRemoveAll struct {
	ChannelID string  `json:"channel_id"`
	MessageID string  `json:"message_id"`
	GuildID   *string `json:"guild_id,omitempty"`
}

type MessageReactionRemoveEmoji struct {
	ChannelID string  `json:"channel_id"`
	GuildID   *string `json:"guild_id,omitempty"`
	MessageID string  `json:"message_id"`
	Emoji     Emoji   `json:"emoji"`
}

// Interaction is sent for INTERACTION_CREATE.
type Interaction struct {
	ID             string           `json:"id"`
	ApplicationID  string           `json:"application_id"`
	Type           uint32           `json:"type"`
	Data           *InteractionData `json:"data,omitempty"`
	GuildID        *string          `json:"guild_id,omitempty"`
	ChannelID      *string          `json:"channel_id,omitempty"`
	Member         *GuildMember     `json:"member,omitempty"`
	User           *User            `json:"user,omitempty"`
	Token          string           `json:"token"`
	Version        uint32           `json:"version"`
	Message        *Message         `json:"message,omitempty"`
	AppPermissions *string          `json:"app_permissions,omitempty"`
	Locale         *string          `json:"locale,omitempty"`
	GuildLocale    *string          `json:"guild_locale,omitempty"`
	Entitlements   []Entitlement    `json:"entitlements,omitempty"`
}

type InteractionData struct {
	ID       *string             `json:"id,omitempty"`
	Name     *string             `json:"name,omitempty"`
	Type     *uint32             `json:"type,omitempty"`
	Resolved *ResolvedData       `json:"resolved,omitempty"`
	Options  []InteractionOption `json:"options,omitempty"`
	GuildID  *string             `json:"guild_id,omitempty"`
	TargetID *string             `json:"target_id,omitempty"`
	CustomID *string             `json:"custom_id,omitempty"`
	Values   []string            `json:"values,omitempty"`
}

type InteractionOption struct {
	Name    string              `json:"name"`
	Type    uint32              `json:"type"`
	Value   json.RawMessage     `json:"value,omitempty"`
	Options []InteractionOption `json:"options,omitempty"`
	Focused *bool               `json:"focused,omitempty"`
}

type ResolvedData struct {
	Users       map[string]User        `json:"users,omitempty"`
	Members     map[string]GuildMember `json:"members,omitempty"`
	Roles       map[string]Role        `json:"roles,omitempty"`
	Channels    map[string]Channel     `json:"channels,omitempty"`
	Messages    map[string]Message     `json:"messages,omitempty"`
	Attachments map[string]Attachment  `json:"attachments,omitempty"`
}
