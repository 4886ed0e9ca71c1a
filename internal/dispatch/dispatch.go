// Package dispatch implements Mutation Dispatch (C7): every writing
// endpoint follows the same authorize/persist/publish shape, grounded on
// chat_handler.go's handler methods and chat_repository.go's
// publishEvent-after-write pattern.
package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shopmindai/chatcore/internal/authz"
	"github.com/shopmindai/chatcore/internal/events"
	"github.com/shopmindai/chatcore/internal/model"
	"github.com/shopmindai/chatcore/internal/realtime"
	"github.com/shopmindai/chatcore/internal/store"
)

// ErrForbidden is returned when an authorize step denies the caller;
// httpapi maps it to 403.
var ErrForbidden = errors.New("dispatch: forbidden")

// Handlers wires C1 (store), C2 (broker, via Registry), C3 (authz), and the
// supplemental Kafka audit trail together for every write operation.
type Handlers struct {
	Store    *store.Store
	Authz    *authz.Oracle
	Registry *realtime.Registry
	Events   *events.Publisher
	Log      *logrus.Entry
}

func New(st *store.Store, az *authz.Oracle, reg *realtime.Registry, ev *events.Publisher, log *logrus.Entry) *Handlers {
	return &Handlers{Store: st, Authz: az, Registry: reg, Events: ev, Log: log.WithField("component", "dispatch")}
}

func rfc3339(t time.Time) string { return t.Format(time.RFC3339) }

// PostMessage authorizes can_post, persists the row, touches the chat's
// updated_at, and publishes the "message" envelope.
func (h *Handlers) PostMessage(ctx context.Context, chatID, senderID int64, content *string, mtype model.MessageType, fileID, stickerID *int64, duration *int, replyTo *int64) (*model.Message, error) {
	chat, err := h.Store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	ok, err := h.Authz.CanPost(ctx, chat, senderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	id, createdAt, err := h.Store.InsertMessage(ctx, chatID, senderID, content, mtype, fileID, stickerID, duration, replyTo)
	if err != nil {
		return nil, err
	}
	if err := h.Store.TouchChatUpdatedAt(ctx, chatID); err != nil {
		h.Log.WithError(err).Warn("touch chat updated_at failed")
	}
	if err := h.Store.AdvanceReadCursor(ctx, senderID, chatID, id); err != nil {
		h.Log.WithError(err).Warn("advance sender read cursor failed")
	}

	msg := &model.Message{
		ID: id, ChatID: chatID, SenderID: senderID, Content: content, MessageType: mtype,
		CreatedAt: createdAt, ReplyToMessageID: replyTo, FileID: fileID, StickerID: stickerID, DurationSeconds: duration,
	}

	h.Registry.PublishChat(ctx, chatID, realtime.MessageCreated(id, chatID, senderID, content, string(mtype), rfc3339(createdAt), replyTo))
	h.Events.Publish(ctx, "message.created", msg)
	return msg, nil
}

// ForwardMessages fetches the originals with one IN-query, inserts one row
// per original carrying forwarded_from_* provenance, and publishes one
// "message" envelope per created row.
func (h *Handlers) ForwardMessages(ctx context.Context, targetChatID, forwarderID int64, fromChatID int64, messageIDs []int64, forwarderDisplay string) ([]*model.Message, error) {
	chat, err := h.Store.GetChat(ctx, targetChatID)
	if err != nil {
		return nil, err
	}
	ok, err := h.Authz.CanPost(ctx, chat, forwarderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrForbidden
	}

	originals, err := h.Store.GetMessagesByIDs(ctx, messageIDs)
	if err != nil {
		return nil, err
	}

	out := make([]*model.Message, 0, len(originals))
	for _, orig := range originals {
		id, createdAt, err := h.Store.InsertForwardedMessage(ctx, targetChatID, forwarderID, orig, forwarderDisplay)
		if err != nil {
			return nil, err
		}
		fwd := &model.Message{
			ID: id, ChatID: targetChatID, SenderID: forwarderID, Content: orig.Content, MessageType: orig.MessageType,
			CreatedAt: createdAt, FileID: orig.FileID, StickerID: orig.StickerID, DurationSeconds: orig.DurationSeconds,
			ForwardedFromChatID: &fromChatID, ForwardedFromMessageID: &orig.ID, ForwardedFromUserID: &orig.SenderID,
			ForwardedFromDisplay: &forwarderDisplay,
		}
		out = append(out, fwd)
		if err := h.Store.AdvanceReadCursor(ctx, forwarderID, targetChatID, id); err != nil {
			h.Log.WithError(err).Warn("advance sender read cursor failed")
		}
		h.Registry.PublishChat(ctx, targetChatID, realtime.MessageCreated(id, targetChatID, forwarderID, orig.Content, string(orig.MessageType), rfc3339(createdAt), nil))
	}
	if err := h.Store.TouchChatUpdatedAt(ctx, targetChatID); err != nil {
		h.Log.WithError(err).Warn("touch chat updated_at failed")
	}
	return out, nil
}

// EditMessage authorizes can_edit (a pure predicate, no store call), then
// persists and publishes "message_updated".
func (h *Handlers) EditMessage(ctx context.Context, messageID, userID int64, content string) (*model.Message, error) {
	msg, err := h.Store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if !h.Authz.CanEdit(msg, userID) {
		return nil, ErrForbidden
	}
	if err := h.Store.EditMessage(ctx, messageID, content); err != nil {
		return nil, err
	}

	now := time.Now()
	msg.Content = &content
	msg.IsEdited = true
	msg.UpdatedAt = &now

	h.Registry.PublishChat(ctx, msg.ChatID, realtime.MessageUpdated(messageID, content, rfc3339(now)))
	h.Events.Publish(ctx, "message.updated", msg)
	return msg, nil
}

// DeleteMessage dispatches to the for-everyone or for-me deletion path; the
// former requires can_delete_for_everyone and publishes "message_deleted",
// the latter is a private per-user tombstone with no broadcast.
func (h *Handlers) DeleteMessage(ctx context.Context, messageID, userID int64, forEveryone bool) error {
	msg, err := h.Store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}

	if !forEveryone {
		return h.Store.DeleteMessageForUser(ctx, userID, messageID)
	}

	ok, err := h.Authz.CanDeleteForEveryone(ctx, msg, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	if err := h.Store.DeleteMessageForEveryone(ctx, messageID); err != nil {
		return err
	}
	h.Registry.PublishChat(ctx, msg.ChatID, realtime.MessageDeleted(messageID, userID))
	h.Events.Publish(ctx, "message.deleted", map[string]int64{"message_id": messageID, "deleted_by": userID})
	return nil
}

// PinMessage authorizes can_pin, unpins any current pin, persists the new
// one, and publishes "message_pinned" with the enriched message attached.
func (h *Handlers) PinMessage(ctx context.Context, chatID, messageID, pinnedBy int64, enriched *model.EnrichedMessage) error {
	chat, err := h.Store.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	ok, err := h.Authz.CanPin(ctx, chat, pinnedBy)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	if err := h.Store.PinMessage(ctx, chatID, messageID, pinnedBy); err != nil {
		return err
	}
	h.Registry.PublishChat(ctx, chatID, realtime.MessagePinned(messageID, pinnedBy, enriched))
	return nil
}

func (h *Handlers) UnpinMessage(ctx context.Context, chatID, messageID, userID int64) error {
	chat, err := h.Store.GetChat(ctx, chatID)
	if err != nil {
		return err
	}
	ok, err := h.Authz.CanPin(ctx, chat, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	if err := h.Store.UnpinMessage(ctx, chatID); err != nil {
		return err
	}
	h.Registry.PublishChat(ctx, chatID, realtime.MessageUnpinned(messageID))
	return nil
}

// ToggleReaction requires only membership (reacting does not need post
// rights in a channel), persists the add-or-remove, and publishes
// "reaction" with the resulting action.
func (h *Handlers) ToggleReaction(ctx context.Context, chatID, messageID, userID int64, emoji string) (added bool, err error) {
	ok, err := h.Authz.IsMember(ctx, chatID, userID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrForbidden
	}
	added, err = h.Store.ToggleReaction(ctx, messageID, userID, emoji)
	if err != nil {
		return false, err
	}
	action := "removed"
	if added {
		action = "added"
	}
	h.Registry.PublishChat(ctx, chatID, realtime.ReactionEvent(messageID, userID, emoji, action))
	return added, nil
}

// MarkRead advances the caller's read cursor and, only if the caller has
// read_receipts_enabled, publishes "read_receipt".
func (h *Handlers) MarkRead(ctx context.Context, chatID, userID, lastReadMsgID int64) error {
	ok, err := h.Authz.IsMember(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	if err := h.Store.AdvanceReadCursor(ctx, userID, chatID, lastReadMsgID); err != nil {
		return err
	}

	settings, err := h.Store.GetUserSettings(ctx, userID)
	if err != nil {
		h.Log.WithError(err).Warn("load settings for read receipt failed")
		return nil
	}
	if settings.ReadReceiptsEnabled {
		h.Registry.PublishChat(ctx, chatID, realtime.ReadReceipt(userID, lastReadMsgID))
	}
	return nil
}

// JoinInvite validates the invite, adds the joiner as a member, and
// publishes "chat_member_joined" to the chat plus "chat_created" to the
// joiner (so their own client learns of the new chat without polling).
func (h *Handlers) JoinInvite(ctx context.Context, token string, joinerID int64) (*model.Chat, error) {
	invite, err := h.Store.GetInvite(ctx, token)
	if err != nil {
		return nil, err
	}
	if invite.RevokedAt != nil {
		return nil, store.ErrConflict // httpapi maps invite-specific gone status from this sentinel's caller context
	}
	if err := h.Store.AddMember(ctx, invite.ChatID, joinerID, model.RoleMember); err != nil {
		return nil, err
	}
	chat, err := h.Store.GetChat(ctx, invite.ChatID)
	if err != nil {
		return nil, err
	}

	h.Registry.PublishChat(ctx, invite.ChatID, realtime.ChatMemberJoined(invite.ChatID, joinerID))
	h.Registry.PublishUser(ctx, joinerID, realtime.ChatCreated(chat))
	return chat, nil
}

// CreateChat authorizes nothing beyond authentication (any user may create
// a chat they own) and does not broadcast; there is no audience yet.
func (h *Handlers) CreateChat(ctx context.Context, c model.Chat, memberIDs []int64) (*model.Chat, error) {
	return h.Store.CreateChat(ctx, c, memberIDs)
}

// UpdateChat authorizes can_manage_chat, persists, and publishes
// "chat_updated" with the fields that changed.
func (h *Handlers) UpdateChat(ctx context.Context, chatID, userID int64, name, title, description *string) error {
	ok, err := h.Authz.CanManageChat(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	if err := h.Store.UpdateChat(ctx, chatID, name, title, description); err != nil {
		return err
	}
	changed := map[string]interface{}{}
	if name != nil {
		changed["name"] = *name
	}
	if title != nil {
		changed["title"] = *title
	}
	if description != nil {
		changed["description"] = *description
	}
	h.Registry.PublishChat(ctx, chatID, realtime.ChatUpdated(chatID, changed))
	return nil
}

// SetChatAvatar persists the avatar file reference and publishes the same
// "chat_updated" envelope PATCH chat uses, carrying the changed field.
func (h *Handlers) SetChatAvatar(ctx context.Context, chatID, userID, fileID int64) error {
	ok, err := h.Authz.CanManageChat(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	if err := h.Store.UpdateChatAvatar(ctx, chatID, fileID); err != nil {
		return err
	}
	h.Registry.PublishChat(ctx, chatID, realtime.ChatUpdated(chatID, map[string]interface{}{"avatar_file_id": fileID}))
	return nil
}

func (h *Handlers) DeleteChat(ctx context.Context, chatID, userID int64) error {
	ok, err := h.Authz.CanManageChat(ctx, chatID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	if err := h.Store.DeleteChat(ctx, chatID); err != nil {
		return err
	}
	h.Registry.PublishChat(ctx, chatID, realtime.ChatDeleted(chatID, userID))
	return nil
}

// PromoteMember and DemoteMember both require can_manage_chat on the
// caller; neither broadcasts a dedicated event, matching spec.md's
// exhaustive event table (role changes are discovered on next membership
// read, not pushed).
func (h *Handlers) PromoteMember(ctx context.Context, chatID, callerID, targetID int64) error {
	return h.setMemberRole(ctx, chatID, callerID, targetID, model.RoleAdmin)
}

func (h *Handlers) DemoteMember(ctx context.Context, chatID, callerID, targetID int64) error {
	return h.setMemberRole(ctx, chatID, callerID, targetID, model.RoleMember)
}

func (h *Handlers) setMemberRole(ctx context.Context, chatID, callerID, targetID int64, role model.MemberRole) error {
	ok, err := h.Authz.CanManageChat(ctx, chatID, callerID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return h.Store.SetMemberRole(ctx, chatID, targetID, role)
}

// LeaveChat removes the caller's own membership; no authorization beyond
// being a member is needed, and no broadcast is defined for it.
func (h *Handlers) LeaveChat(ctx context.Context, chatID, userID int64) error {
	return h.Store.RemoveMember(ctx, chatID, userID)
}

// SetFavorite, SetMuted, SetArchived toggle per-user chat state; these are
// private to the caller and never broadcast.
func (h *Handlers) SetFavorite(ctx context.Context, userID, chatID int64, favorite bool) error {
	return h.Store.SetFavorite(ctx, userID, chatID, favorite)
}

func (h *Handlers) SetMuted(ctx context.Context, userID, chatID int64, until *time.Time) error {
	return h.Store.SetMutedUntil(ctx, userID, chatID, until)
}

func (h *Handlers) SetArchived(ctx context.Context, userID, chatID int64, archived bool) error {
	return h.Store.SetArchived(ctx, userID, chatID, archived)
}

func (h *Handlers) SetPinnedInList(ctx context.Context, userID, chatID int64, pinned bool) error {
	return h.Store.SetPinnedInList(ctx, userID, chatID, pinned)
}
