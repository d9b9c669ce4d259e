package discord

import "encoding/json"

// Payload shapes follow the Gateway v9 object reference. A field without
// omitempty is required: decoding a payload that lacks it fails.

// User is a Discord user account.
type User struct {
	ID            string  `json:"id"`
	Username      string  `json:"username"`
	Discriminator *string `json:"discriminator,omitempty"`
	GlobalName    *string `json:"global_name,omitempty"`
	Avatar        *string `json:"avatar,omitempty"`
	Bot           *bool   `json:"bot,omitempty"`
	System        *bool   `json:"system,omitempty"`
	MFAEnabled    *bool   `json:"mfa_enabled,omitempty"`
	Banner        *string `json:"banner,omitempty"`
	AccentColor   *uint32 `json:"accent_color,omitempty"`
	Locale        *string `json:"locale,omitempty"`
	Verified      *bool   `json:"verified,omitempty"`
	Email         *string `json:"email,omitempty"`
	Flags         *uint64 `json:"flags,omitempty"`
	PremiumType   *uint32 `json:"premium_type,omitempty"`
	PublicFlags   *uint64 `json:"public_flags,omitempty"`
}

// PartialUser is the user stub carried by presence updates, where only
// the id is guaranteed.
type PartialUser struct {
	ID         string  `json:"id"`
	Username   *string `json:"username,omitempty"`
	GlobalName *string `json:"global_name,omitempty"`
	Avatar     *string `json:"avatar,omitempty"`
	Bot        *bool   `json:"bot,omitempty"`
}

// PartialApplication is the application stub sent with READY.
type PartialApplication struct {
	ID    string  `json:"id"`
	Flags *uint64 `json:"flags,omitempty"`
}

type Application struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Icon                *string  `json:"icon,omitempty"`
	Description         *string  `json:"description,omitempty"`
	RPCOrigins          []string `json:"rpc_origins,omitempty"`
	BotPublic           *bool    `json:"bot_public,omitempty"`
	BotRequireCodeGrant *bool    `json:"bot_require_code_grant,omitempty"`
	TermsOfServiceURL   *string  `json:"terms_of_service_url,omitempty"`
	PrivacyPolicyURL    *string  `json:"privacy_policy_url,omitempty"`
	Owner               *User    `json:"owner,omitempty"`
	VerifyKey           *string  `json:"verify_key,omitempty"`
	Team                *Team    `json:"team,omitempty"`
	GuildID             *string  `json:"guild_id,omitempty"`
	PrimarySKUID        *string  `json:"primary_sku_id,omitempty"`
	Slug                *string  `json:"slug,omitempty"`
	CoverImage          *string  `json:"cover_image,omitempty"`
	Flags               *uint64  `json:"flags,omitempty"`
}

type Team struct {
	ID          string       `json:"id"`
	Icon        *string      `json:"icon,omitempty"`
	Members     []TeamMember `json:"members"`
	Name        *string      `json:"name,omitempty"`
	OwnerUserID string       `json:"owner_user_id"`
}

type TeamMember struct {
	MembershipState uint32   `json:"membership_state"`
	Permissions     []string `json:"permissions,omitempty"`
	TeamID          string   `json:"team_id"`
	User            User     `json:"user"`
	Role            *string  `json:"role,omitempty"`
}

// GuildMember is a user's membership in a guild. Partial members attached
// to messages and interactions omit the user.
type GuildMember struct {
	User                       *User    `json:"user,omitempty"`
	Nick                       *string  `json:"nick,omitempty"`
	Avatar                     *string  `json:"avatar,omitempty"`
	Roles                      []string `json:"roles"`
	JoinedAt                   *string  `json:"joined_at"`
	PremiumSince               *string  `json:"premium_since,omitempty"`
	Deaf                       *bool    `json:"deaf,omitempty"`
	Mute                       *bool    `json:"mute,omitempty"`
	Flags                      *uint64  `json:"flags,omitempty"`
	Pending                    *bool    `json:"pending,omitempty"`
	Permissions                *string  `json:"permissions,omitempty"`
	GuildID                    *string  `json:"guild_id,omitempty"`
	CommunicationDisabledUntil *string  `json:"communication_disabled_until,omitempty"`
}

type Role struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Color        uint32    `json:"color"`
	Hoist        bool      `json:"hoist"`
	Icon         *string   `json:"icon,omitempty"`
	UnicodeEmoji *string   `json:"unicode_emoji,omitempty"`
	Position     int64     `json:"position"`
	Permissions  string    `json:"permissions"`
	Managed      bool      `json:"managed"`
	Mentionable  bool      `json:"mentionable"`
	Tags         *RoleTags `json:"tags,omitempty"`
	Flags        *uint64   `json:"flags,omitempty"`
}

// RoleTags uses presence-as-true flags: premium_subscriber and friends are
// sent as null when set, so they stay raw.
type RoleTags struct {
	BotID                 *string         `json:"bot_id,omitempty"`
	IntegrationID         *string         `json:"integration_id,omitempty"`
	SubscriptionListingID *string         `json:"subscription_listing_id,omitempty"`
	PremiumSubscriber     json.RawMessage `json:"premium_subscriber,omitempty"`
	AvailableForPurchase  json.RawMessage `json:"available_for_purchase,omitempty"`
	GuildConnections      json.RawMessage `json:"guild_connections,omitempty"`
}

type Emoji struct {
	ID            *string  `json:"id"`
	Name          *string  `json:"name"`
	Roles         []string `json:"roles,omitempty"`
	User          *User    `json:"user,omitempty"`
	RequireColons *bool    `json:"require_colons,omitempty"`
	Managed       *bool    `json:"managed,omitempty"`
	Animated      *bool    `json:"animated,omitempty"`
	Available     *bool    `json:"available,omitempty"`
}

type Sticker struct {
	ID          string  `json:"id"`
	PackID      *string `json:"pack_id,omitempty"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Tags        *string `json:"tags,omitempty"`
	Type        *uint32 `json:"type,omitempty"`
	FormatType  uint32  `json:"format_type"`
	Available   *bool   `json:"available,omitempty"`
	GuildID     *string `json:"guild_id,omitempty"`
	User        *User   `json:"user,omitempty"`
	SortValue   *int64  `json:"sort_value,omitempty"`
}

type StickerItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	FormatType uint32 `json:"format_type"`
}

// PresenceUpdate is a user's presence in one guild.
type PresenceUpdate struct {
	User         PartialUser  `json:"user"`
	GuildID      *string      `json:"guild_id,omitempty"`
	Status       string       `json:"status"`
	Activities   []Activity   `json:"activities,omitempty"`
	ClientStatus ClientStatus `json:"client_status"`
}

type ClientStatus struct {
	Desktop *string `json:"desktop,omitempty"`
	Mobile  *string `json:"mobile,omitempty"`
	Web     *string `json:"web,omitempty"`
}

type Activity struct {
	Name          string              `json:"name"`
	Type          uint32              `json:"type"`
	URL           *string             `json:"url,omitempty"`
	CreatedAt     *uint64             `json:"created_at,omitempty"`
	Timestamps    *ActivityTimestamps `json:"timestamps,omitempty"`
	ApplicationID *string             `json:"application_id,omitempty"`
	Details       *string             `json:"details,omitempty"`
	State         *string             `json:"state,omitempty"`
	Emoji         *ActivityEmoji      `json:"emoji,omitempty"`
	Party         *ActivityParty      `json:"party,omitempty"`
	Assets        *ActivityAssets     `json:"assets,omitempty"`
	Secrets       *ActivitySecrets    `json:"secrets,omitempty"`
	Instance      *bool               `json:"instance,omitempty"`
	Flags         *uint64             `json:"flags,omitempty"`
}

type ActivityTimestamps struct {
	Start *uint64 `json:"start,omitempty"`
	End   *uint64 `json:"end,omitempty"`
}

type ActivityEmoji struct {
	Name     string  `json:"name"`
	ID       *string `json:"id,omitempty"`
	Animated *bool   `json:"animated,omitempty"`
}

type ActivityParty struct {
	ID   *string  `json:"id,omitempty"`
	Size []uint64 `json:"size,omitempty"`
}

type ActivityAssets struct {
	LargeImage *string `json:"large_image,omitempty"`
	LargeText  *string `json:"large_text,omitempty"`
	SmallImage *string `json:"small_image,omitempty"`
	SmallText  *string `json:"small_text,omitempty"`
}

type ActivitySecrets struct {
	Join     *string `json:"join,omitempty"`
	Spectate *string `json:"spectate,omitempty"`
	Match    *string `json:"match,omitempty"`
}

type VoiceState struct {
	GuildID                 *string      `json:"guild_id,omitempty"`
	ChannelID               *string      `json:"channel_id"`
	UserID                  string       `json:"user_id"`
	Member                  *GuildMember `json:"member,omitempty"`
	SessionID               string       `json:"session_id"`
	Deaf                    bool         `json:"deaf"`
	Mute                    bool         `json:"mute"`
	SelfDeaf                bool         `json:"self_deaf"`
	SelfMute                bool         `json:"self_mute"`
	SelfStream              *bool        `json:"self_stream,omitempty"`
	SelfVideo               bool         `json:"self_video"`
	Suppress                bool         `json:"suppress"`
	RequestToSpeakTimestamp *string      `json:"request_to_speak_timestamp,omitempty"`
}
