package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopmindai/chatcore/internal/model"
)

var (
	qInsertInvite = register("insertInvite", `
		INSERT INTO invites (token, chat_id, created_by) VALUES ($1, $2, $3)
		RETURNING created_at`)

	qGetInvite = register("getInvite", `
		SELECT token, chat_id, created_by, created_at, revoked_at FROM invites WHERE token = $1`)

	qListInvitesForChat = register("listInvitesForChat", `
		SELECT token, chat_id, created_by, created_at, revoked_at FROM invites
		WHERE chat_id = $1 ORDER BY created_at DESC`)

	qRevokeInvite = register("revokeInvite", `
		UPDATE invites SET revoked_at = now() WHERE token = $1 AND revoked_at IS NULL`)
)

func (s *Store) CreateInvite(ctx context.Context, token string, chatID, createdBy int64) (*model.Invite, error) {
	inv := &model.Invite{Token: token, ChatID: chatID, CreatedBy: createdBy}
	err := s.stmt(qInsertInvite).QueryRowContext(ctx, token, chatID, createdBy).Scan(&inv.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		if isForeignKeyViolation(err) {
			return nil, ErrForeignKey
		}
		return nil, fatal("CreateInvite", err)
	}
	return inv, nil
}

func (s *Store) GetInvite(ctx context.Context, token string) (*model.Invite, error) {
	var inv model.Invite
	err := s.stmt(qGetInvite).QueryRowContext(ctx, token).Scan(&inv.Token, &inv.ChatID, &inv.CreatedBy, &inv.CreatedAt, &inv.RevokedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fatal("GetInvite", err)
	}
	return &inv, nil
}

func (s *Store) ListInvitesForChat(ctx context.Context, chatID int64) ([]*model.Invite, error) {
	rows, err := s.stmt(qListInvitesForChat).QueryContext(ctx, chatID)
	if err != nil {
		return nil, fatal("ListInvitesForChat", err)
	}
	defer rows.Close()
	var out []*model.Invite
	for rows.Next() {
		var inv model.Invite
		if err := rows.Scan(&inv.Token, &inv.ChatID, &inv.CreatedBy, &inv.CreatedAt, &inv.RevokedAt); err != nil {
			return nil, fatal("ListInvitesForChat:scan", err)
		}
		out = append(out, &inv)
	}
	return out, rows.Err()
}

// RevokeInvite is a one-way lifecycle transition: active to revoked. A
// second call is a no-op (rows affected 0), not an error.
func (s *Store) RevokeInvite(ctx context.Context, token string) error {
	_, err := s.stmt(qRevokeInvite).ExecContext(ctx, token)
	if err != nil {
		return fatal("RevokeInvite", err)
	}
	return nil
}
