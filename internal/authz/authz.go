// Package authz implements the Authorization Oracle (C3): pure predicates
// over store lookups. Every predicate treats a store error as "unknown",
// which callers must treat as deny.
package authz

import (
	"context"
	"errors"
	"time"

	"github.com/shopmindai/chatcore/internal/model"
	"github.com/shopmindai/chatcore/internal/store"
)

// Oracle answers membership and role predicates against the store.
type Oracle struct {
	store *store.Store
}

func New(s *store.Store) *Oracle {
	return &Oracle{store: s}
}

// IsMember reports whether user has any role in chat.
func (o *Oracle) IsMember(ctx context.Context, chatID, userID int64) (bool, error) {
	_, err := o.store.Membership(ctx, chatID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RoleIn returns the caller's role, or "" if they are not a member.
func (o *Oracle) RoleIn(ctx context.Context, chatID, userID int64) (model.MemberRole, error) {
	role, err := o.store.Membership(ctx, chatID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return role, nil
}

// CanPost is true for direct/group members; for channel-typed chats only
// owner/admin roles may post.
func (o *Oracle) CanPost(ctx context.Context, chat *model.Chat, userID int64) (bool, error) {
	role, err := o.store.Membership(ctx, chat.ID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if chat.Type == model.ChatChannel {
		return role.IsManager(), nil
	}
	return true, nil
}

// CanPin requires membership; in a channel, only owner/admin may pin.
func (o *Oracle) CanPin(ctx context.Context, chat *model.Chat, userID int64) (bool, error) {
	return o.CanPost(ctx, chat, userID)
}

// CanManageChat is true for owner/admin roles.
func (o *Oracle) CanManageChat(ctx context.Context, chatID, userID int64) (bool, error) {
	role, err := o.store.Membership(ctx, chatID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return role.IsManager(), nil
}

// CanInvite requires manage rights and excludes direct chats, which have a
// fixed two-member roster.
func (o *Oracle) CanInvite(ctx context.Context, chat *model.Chat, userID int64) (bool, error) {
	if chat.Type == model.ChatDirect {
		return false, nil
	}
	return o.CanManageChat(ctx, chat.ID, userID)
}

// deleteForEveryoneWindow is the 48h policy spec's open question #1
// resolves explicitly: admins are bound by it too, absent a separate
// force_delete flag (which this design does not add).
const deleteForEveryoneWindow = 48 * time.Hour

// CanDeleteForEveryone is true if the caller is the sender within the 48h
// window, or has a manager role in the chat within the same window.
func (o *Oracle) CanDeleteForEveryone(ctx context.Context, msg *model.Message, userID int64) (bool, error) {
	if time.Since(msg.CreatedAt) > deleteForEveryoneWindow {
		return false, nil
	}
	if msg.SenderID == userID {
		return true, nil
	}
	role, err := o.store.Membership(ctx, msg.ChatID, userID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return role.IsManager(), nil
}

// CanEdit is true only for the original sender, on a text message that has
// not been deleted.
func (o *Oracle) CanEdit(msg *model.Message, userID int64) bool {
	return msg.SenderID == userID && msg.MessageType == model.MessageText && !msg.IsDeleted
}
