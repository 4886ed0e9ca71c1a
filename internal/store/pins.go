package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopmindai/chatcore/internal/model"
)

var (
	qUnpinActive = register("unpinActive", `
		UPDATE pinned_messages SET unpinned_at = now() WHERE chat_id = $1 AND unpinned_at IS NULL`)

	qInsertPin = register("insertPin", `
		INSERT INTO pinned_messages (chat_id, message_id, pinned_by) VALUES ($1, $2, $3)`)

	qGetActivePin = register("getActivePin", `
		SELECT chat_id, message_id, pinned_by, pinned_at, unpinned_at
		FROM pinned_messages WHERE chat_id = $1 AND unpinned_at IS NULL`)
)

// PinMessage enforces "at most one active pin per chat" by unpinning any
// existing active pin before inserting the new one, in one transaction.
func (s *Store) PinMessage(ctx context.Context, chatID, messageID, pinnedBy int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fatal("PinMessage", err)
	}
	defer tx.Rollback()

	if _, err := tx.StmtContext(ctx, s.stmt(qUnpinActive)).ExecContext(ctx, chatID); err != nil {
		return fatal("PinMessage:unpin", err)
	}
	if _, err := tx.StmtContext(ctx, s.stmt(qInsertPin)).ExecContext(ctx, chatID, messageID, pinnedBy); err != nil {
		if isForeignKeyViolation(err) {
			return ErrForeignKey
		}
		return fatal("PinMessage:insert", err)
	}
	return fatal("PinMessage:commit", tx.Commit())
}

func (s *Store) UnpinMessage(ctx context.Context, chatID int64) error {
	_, err := s.stmt(qUnpinActive).ExecContext(ctx, chatID)
	if err != nil {
		return fatal("UnpinMessage", err)
	}
	return nil
}

func (s *Store) GetActivePinnedMessage(ctx context.Context, chatID int64) (*model.PinnedMessage, error) {
	var p model.PinnedMessage
	err := s.stmt(qGetActivePin).QueryRowContext(ctx, chatID).Scan(&p.ChatID, &p.MessageID, &p.PinnedBy, &p.PinnedAt, &p.UnpinnedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fatal("GetActivePinnedMessage", err)
	}
	return &p, nil
}
