package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/shopmindai/chatcore/internal/model"
)

var (
	qInsertReaction = register("insertReaction", `
		INSERT INTO reactions (message_id, user_id, emoji) VALUES ($1, $2, $3)
		ON CONFLICT DO NOTHING`)

	qDeleteReaction = register("deleteReaction", `
		DELETE FROM reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3`)

	qReactionExists = register("reactionExists", `
		SELECT 1 FROM reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3`)

	qReactionsByMessageIDs = register("reactionsByMessageIDs", `
		SELECT message_id, emoji, COUNT(*) AS cnt, bool_or(user_id = $2) AS me
		FROM reactions
		WHERE message_id = ANY($1)
		GROUP BY message_id, emoji`)
)

// ToggleReaction is an involution: applying it twice with the same
// (message, user, emoji) returns to the original state. Returns the action
// taken so the caller can build the correct publish envelope.
func (s *Store) ToggleReaction(ctx context.Context, messageID, userID int64, emoji string) (added bool, err error) {
	var exists int
	scanErr := s.stmt(qReactionExists).QueryRowContext(ctx, messageID, userID, emoji).Scan(&exists)
	switch {
	case errors.Is(scanErr, sql.ErrNoRows):
		if _, err := s.stmt(qInsertReaction).ExecContext(ctx, messageID, userID, emoji); err != nil {
			if isForeignKeyViolation(err) {
				return false, ErrForeignKey
			}
			return false, fatal("ToggleReaction:insert", err)
		}
		return true, nil
	case scanErr != nil:
		return false, fatal("ToggleReaction:check", scanErr)
	default:
		if _, err := s.stmt(qDeleteReaction).ExecContext(ctx, messageID, userID, emoji); err != nil {
			return false, fatal("ToggleReaction:delete", err)
		}
		return false, nil
	}
}

// ReactionsByMessageIDs groups reactions by (message_id, emoji), flagging
// whether viewer is among the reactors for each group.
func (s *Store) ReactionsByMessageIDs(ctx context.Context, viewer int64, messageIDs []int64) ([]model.ReactionSummary, error) {
	rows, err := s.stmt(qReactionsByMessageIDs).QueryContext(ctx, pq.Array(messageIDs), viewer)
	if err != nil {
		return nil, fatal("ReactionsByMessageIDs", err)
	}
	defer rows.Close()
	var out []model.ReactionSummary
	for rows.Next() {
		var r model.ReactionSummary
		if err := rows.Scan(&r.MessageID, &r.Emoji, &r.Count, &r.Me); err != nil {
			return nil, fatal("ReactionsByMessageIDs:scan", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
