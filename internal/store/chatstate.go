package store

import (
	"context"
	"database/sql"
	"time"
)

var (
	qGetChatState = register("getChatState", `
		SELECT favorite, muted_until, archived, pinned_in_list FROM per_user_chat_state
		WHERE user_id = $1 AND chat_id = $2`)

	qUpsertChatState = register("upsertChatState", `
		INSERT INTO per_user_chat_state (user_id, chat_id, favorite, muted_until, archived, pinned_in_list)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, chat_id) DO UPDATE SET
			favorite = EXCLUDED.favorite,
			muted_until = EXCLUDED.muted_until,
			archived = EXCLUDED.archived,
			pinned_in_list = EXCLUDED.pinned_in_list`)
)

type chatStateRow struct {
	favorite     bool
	mutedUntil   sql.NullTime
	archived     bool
	pinnedInList bool
}

func (s *Store) getChatStateRow(ctx context.Context, userID, chatID int64) chatStateRow {
	var r chatStateRow
	_ = s.stmt(qGetChatState).QueryRowContext(ctx, userID, chatID).Scan(&r.favorite, &r.mutedUntil, &r.archived, &r.pinnedInList)
	return r
}

func (s *Store) putChatStateRow(ctx context.Context, userID, chatID int64, r chatStateRow) error {
	_, err := s.stmt(qUpsertChatState).ExecContext(ctx, userID, chatID, r.favorite, r.mutedUntil, r.archived, r.pinnedInList)
	if err != nil {
		return fatal("putChatStateRow", err)
	}
	return nil
}

// SetFavorite, SetArchived, SetPinnedInList, and SetMutedUntil each read-
// modify-write the single per-user-chat-state row; call volume here is one
// toggle per user action, so the extra round trip is not a concern.
func (s *Store) SetFavorite(ctx context.Context, userID, chatID int64, favorite bool) error {
	r := s.getChatStateRow(ctx, userID, chatID)
	r.favorite = favorite
	return s.putChatStateRow(ctx, userID, chatID, r)
}

func (s *Store) SetArchived(ctx context.Context, userID, chatID int64, archived bool) error {
	r := s.getChatStateRow(ctx, userID, chatID)
	r.archived = archived
	return s.putChatStateRow(ctx, userID, chatID, r)
}

func (s *Store) SetPinnedInList(ctx context.Context, userID, chatID int64, pinned bool) error {
	r := s.getChatStateRow(ctx, userID, chatID)
	r.pinnedInList = pinned
	return s.putChatStateRow(ctx, userID, chatID, r)
}

// SetMutedUntil sets or clears (nil) the mute expiry for (user, chat).
func (s *Store) SetMutedUntil(ctx context.Context, userID, chatID int64, until *time.Time) error {
	r := s.getChatStateRow(ctx, userID, chatID)
	if until == nil {
		r.mutedUntil = sql.NullTime{}
	} else {
		r.mutedUntil = sql.NullTime{Time: *until, Valid: true}
	}
	return s.putChatStateRow(ctx, userID, chatID, r)
}
