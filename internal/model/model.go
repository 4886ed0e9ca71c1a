// Package model holds the entity shapes the core operates on.
package model

import "time"

// ChatType enumerates the three chat flavors.
type ChatType string

const (
	ChatDirect  ChatType = "direct"
	ChatGroup   ChatType = "group"
	ChatChannel ChatType = "channel"
)

// MemberRole enumerates membership roles.
type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

func (r MemberRole) IsManager() bool {
	return r == RoleOwner || r == RoleAdmin
}

// MessageType enumerates the kinds of message content.
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageFile   MessageType = "file"
	MessageVoice  MessageType = "voice"
	MessageSticker MessageType = "sticker"
)

// Visibility controls how a user's last-seen information is shared.
type Visibility string

const (
	VisibilityEveryone   Visibility = "everyone"
	VisibilityApproxOnly Visibility = "approx_only"
	VisibilityNobody     Visibility = "nobody"
)

// User mirrors the users table.
type User struct {
	ID           int64
	Username     string
	DisplayName  *string
	AvatarFileID *int64
	PasswordHash string
	IsAdmin      bool
	IsBlocked    bool
	IsActive     bool
	LastActivity *time.Time
	CreatedAt    time.Time
}

// Chat mirrors the chats table.
type Chat struct {
	ID           int64
	Type         ChatType
	Name         *string
	Title        *string
	Description  *string
	PublicName   *string
	OwnerID      int64
	AvatarFileID *int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Membership mirrors the chat_members table.
type Membership struct {
	ChatID   int64
	UserID   int64
	Role     MemberRole
	JoinedAt time.Time
}

// Message mirrors the messages table.
type Message struct {
	ID                     int64
	ChatID                 int64
	SenderID               int64
	Content                *string
	MessageType            MessageType
	CreatedAt              time.Time
	UpdatedAt              *time.Time
	IsEdited               bool
	IsDeleted              bool
	ReplyToMessageID       *int64
	ForwardedFromChatID    *int64
	ForwardedFromMessageID *int64
	ForwardedFromUserID    *int64
	ForwardedFromDisplay   *string
	FileID                 *int64
	StickerID              *int64
	DurationSeconds        *int
}

// ObjectRef names an object-storage location; it is resolved to a pre-signed
// URL only at serialization time, never persisted as a URL.
type ObjectRef struct {
	Bucket string
	Key    string
}

// EnrichedMessage decorates Message with joined display data, produced only
// by the read path (C8); never persisted.
type EnrichedMessage struct {
	Message
	SenderUsername    string
	SenderDisplayName *string
	SenderAvatar      *ObjectRef
	StickerImage      *ObjectRef
	Attachment        *ObjectRef
	ReplyPreview      *ReplyPreview
}

// ReplyPreview is the small summary of the message being replied to.
type ReplyPreview struct {
	MessageID  int64
	Content    *string
	Type       MessageType
	SenderName string
}

// Reaction mirrors the reactions table.
type Reaction struct {
	MessageID int64
	UserID    int64
	Emoji     string
	CreatedAt time.Time
}

// ReactionSummary is the per-emoji aggregate returned by reactions_by_message_ids.
type ReactionSummary struct {
	MessageID int64
	Emoji     string
	Count     int
	Me        bool
}

// PinnedMessage mirrors the pinned_messages table.
type PinnedMessage struct {
	ChatID    int64
	MessageID int64
	PinnedBy  int64
	PinnedAt  time.Time
	UnpinnedAt *time.Time
}

// ReadCursor mirrors the read_cursors table.
type ReadCursor struct {
	UserID        int64
	ChatID        int64
	LastReadMsgID int64
	ReadAt        time.Time
}

// PerUserChatState mirrors per-user chat flags orthogonal to membership.
type PerUserChatState struct {
	UserID       int64
	ChatID       int64
	Favorite     bool
	MutedUntil   *time.Time
	Archived     bool
	PinnedInList bool
}

// Invite mirrors the invites table.
type Invite struct {
	Token     string
	ChatID    int64
	CreatedBy int64
	CreatedAt time.Time
	RevokedAt *time.Time
}

// UserSettings mirrors the user_settings table.
type UserSettings struct {
	UserID               int64
	Theme                string
	NotificationsEnabled bool
	Language             string
	ReadReceiptsEnabled  bool
	LastSeenVisibility   Visibility
}

// DefaultUserSettings returns the settings row created alongside a new user.
func DefaultUserSettings(userID int64) UserSettings {
	return UserSettings{
		UserID:               userID,
		Theme:                "system",
		NotificationsEnabled: true,
		Language:             "en",
		ReadReceiptsEnabled:  true,
		LastSeenVisibility:   VisibilityEveryone,
	}
}

// File mirrors a stored-object row (not object storage itself).
type File struct {
	ID          int64
	OwnerID     int64
	ObjectKey   string
	Bucket      string
	ContentType string
	SizeBytes   int64
	CreatedAt   time.Time
}

// Sticker mirrors the stickers table.
type Sticker struct {
	ID        int64
	PackName  string
	ObjectKey string
	Bucket    string
}
