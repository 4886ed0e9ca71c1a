package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/shopmindai/chatcore/internal/model"
	"github.com/shopmindai/chatcore/internal/store"
)

// userView omits password_hash; the only view of a User ever serialized.
func userView(u *model.User) gin.H {
	return gin.H{
		"id":            u.ID,
		"username":      u.Username,
		"display_name":  u.DisplayName,
		"is_admin":      u.IsAdmin,
		"is_blocked":    u.IsBlocked,
		"is_active":     u.IsActive,
		"last_activity": formatTimePtr(u.LastActivity),
	}
}

func chatView(c *model.Chat) gin.H {
	return gin.H{
		"id":             c.ID,
		"type":           c.Type,
		"name":           c.Name,
		"title":          c.Title,
		"description":    c.Description,
		"public_name":    c.PublicName,
		"owner_id":       c.OwnerID,
		"avatar_file_id": c.AvatarFileID,
		"created_at":     c.CreatedAt.Format(time.RFC3339),
		"updated_at":     c.UpdatedAt.Format(time.RFC3339),
	}
}

// chatViewWithRole folds the caller's own membership role into the chat
// payload; role is "" when the caller has no membership row, which
// serializes as an omitted my_role rather than an empty string.
func chatViewWithRole(c *model.Chat, role model.MemberRole) gin.H {
	v := chatView(c)
	if role != "" {
		v["my_role"] = role
	}
	return v
}

func (h *Handlers) messageView(m *model.Message) gin.H {
	return gin.H{
		"id":                  m.ID,
		"chat_id":             m.ChatID,
		"sender_id":           m.SenderID,
		"content":             m.Content,
		"message_type":        m.MessageType,
		"created_at":          m.CreatedAt.Format(time.RFC3339),
		"updated_at":          formatTimePtr(m.UpdatedAt),
		"is_edited":           m.IsEdited,
		"is_deleted":          m.IsDeleted,
		"reply_to_message_id": m.ReplyToMessageID,
		"file_id":             m.FileID,
		"sticker_id":          m.StickerID,
		"duration_seconds":    m.DurationSeconds,
	}
}

// enrichedMessageView attaches the presigned URLs the teacher's domain file
// joins (sender avatar, sticker image, attachment) only at serialization
// time — the database rows themselves never store a URL.
func (h *Handlers) enrichedMessageView(m *model.EnrichedMessage) gin.H {
	v := h.messageView(&m.Message)
	v["sender"] = gin.H{
		"username":     m.SenderUsername,
		"display_name": m.SenderDisplayName,
		"avatar_url":   h.objectRefURL(m.SenderAvatar),
	}
	if m.StickerImage != nil {
		v["sticker_image_url"] = h.objectRefURL(m.StickerImage)
	}
	if m.Attachment != nil {
		v["attachment_url"] = h.objectRefURL(m.Attachment)
	}
	if m.ReplyPreview != nil {
		v["reply_preview"] = gin.H{
			"message_id":  m.ReplyPreview.MessageID,
			"content":     m.ReplyPreview.Content,
			"type":        m.ReplyPreview.Type,
			"sender_name": m.ReplyPreview.SenderName,
		}
	}
	return v
}

func (h *Handlers) objectRefURL(ref *model.ObjectRef) string {
	if ref == nil {
		return ""
	}
	return h.presignFile(ref.Bucket, ref.Key)
}

func chatMemberView(m store.ChatMember) gin.H {
	return gin.H{
		"user_id":      m.UserID,
		"username":     m.Username,
		"display_name": m.DisplayName,
		"role":         m.Role,
	}
}

func inviteView(inv *model.Invite) gin.H {
	return gin.H{
		"token":      inv.Token,
		"chat_id":    inv.ChatID,
		"created_by": inv.CreatedBy,
		"created_at": inv.CreatedAt.Format(time.RFC3339),
		"revoked_at": formatTimePtr(inv.RevokedAt),
	}
}

func settingsView(s *model.UserSettings) gin.H {
	return gin.H{
		"theme":                  s.Theme,
		"notifications_enabled":  s.NotificationsEnabled,
		"language":               s.Language,
		"read_receipts_enabled":  s.ReadReceiptsEnabled,
		"last_seen_visibility":   s.LastSeenVisibility,
	}
}

func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}
