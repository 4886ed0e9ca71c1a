package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopmindai/chatcore/internal/model"
)

var (
	qInsertChat = register("insertChat", `
		INSERT INTO chats (type, name, title, description, public_name, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`)

	qInsertMembership = register("insertMembership", `
		INSERT INTO chat_members (chat_id, user_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (chat_id, user_id) DO NOTHING`)

	qGetChat = register("getChat", `
		SELECT id, type, name, title, description, public_name, owner_id, avatar_file_id, created_at, updated_at
		FROM chats WHERE id = $1`)

	qGetChatByPublicName = register("getChatByPublicName", `
		SELECT id, type, name, title, description, public_name, owner_id, avatar_file_id, created_at, updated_at
		FROM chats WHERE public_name = $1`)

	qListChatsForUser = register("listChatsForUser", `
		SELECT c.id, c.type, c.name, c.title, c.description, c.public_name, c.owner_id, c.avatar_file_id, c.created_at, c.updated_at
		FROM chats c JOIN chat_members cm ON cm.chat_id = c.id
		WHERE cm.user_id = $1
		ORDER BY c.updated_at DESC`)

	qUpdateChat = register("updateChat", `
		UPDATE chats SET
			name = COALESCE($2, name), title = COALESCE($3, title),
			description = COALESCE($4, description), updated_at = now()
		WHERE id = $1`)

	qTouchChatUpdatedAt = register("touchChatUpdatedAt", `
		UPDATE chats SET updated_at = now() WHERE id = $1`)

	qUpdateChatAvatar = register("updateChatAvatar", `
		UPDATE chats SET avatar_file_id = $2, updated_at = now() WHERE id = $1`)

	qDeleteChat = register("deleteChat", `DELETE FROM chats WHERE id = $1`)

	qMembership = register("membership", `
		SELECT role FROM chat_members WHERE chat_id = $1 AND user_id = $2`)

	qChatsForUser = register("chatsForUser", `
		SELECT chat_id FROM chat_members WHERE user_id = $1`)

	qChatMembers = register("chatMembers", `
		SELECT u.id, u.username, u.display_name, cm.role
		FROM chat_members cm JOIN users u ON u.id = cm.user_id
		WHERE cm.chat_id = $1`)

	qSetMemberRole = register("setMemberRole", `
		UPDATE chat_members SET role = $3 WHERE chat_id = $1 AND user_id = $2`)

	qRemoveMember = register("removeMember", `
		DELETE FROM chat_members WHERE chat_id = $1 AND user_id = $2`)

	qMemberCount = register("memberCount", `
		SELECT COUNT(*) FROM chat_members WHERE chat_id = $1`)

	qAddMember = register("addMember", `
		INSERT INTO chat_members (chat_id, user_id, role) VALUES ($1, $2, $3)
		ON CONFLICT (chat_id, user_id) DO NOTHING`)
)

// ChatMember is a joined membership row used by read endpoints.
type ChatMember struct {
	UserID      int64
	Username    string
	DisplayName *string
	Role        model.MemberRole
}

// CreateChat inserts the chat row and every membership row (creator as
// owner, the rest as member) inside a single transaction.
func (s *Store) CreateChat(ctx context.Context, c model.Chat, memberIDs []int64) (*model.Chat, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fatal("CreateChat", err)
	}
	defer tx.Rollback()

	row := tx.StmtContext(ctx, s.stmt(qInsertChat)).QueryRowContext(ctx,
		string(c.Type), c.Name, c.Title, c.Description, c.PublicName, c.OwnerID)
	if err := row.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fatal("CreateChat", err)
	}

	for _, uid := range append([]int64{c.OwnerID}, memberIDs...) {
		role := model.RoleMember
		if uid == c.OwnerID {
			role = model.RoleOwner
		}
		if _, err := tx.StmtContext(ctx, s.stmt(qInsertMembership)).ExecContext(ctx, c.ID, uid, string(role)); err != nil {
			return nil, fatal("CreateChat:member", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fatal("CreateChat:commit", err)
	}
	return &c, nil
}

func (s *Store) GetChat(ctx context.Context, id int64) (*model.Chat, error) {
	return scanChat(s.stmt(qGetChat).QueryRowContext(ctx, id))
}

func (s *Store) GetChatByPublicName(ctx context.Context, publicName string) (*model.Chat, error) {
	return scanChat(s.stmt(qGetChatByPublicName).QueryRowContext(ctx, publicName))
}

func (s *Store) ListChatsForUser(ctx context.Context, userID int64) ([]*model.Chat, error) {
	rows, err := s.stmt(qListChatsForUser).QueryContext(ctx, userID)
	if err != nil {
		return nil, fatal("ListChatsForUser", err)
	}
	defer rows.Close()
	var out []*model.Chat
	for rows.Next() {
		var c model.Chat
		if err := rows.Scan(&c.ID, &c.Type, &c.Name, &c.Title, &c.Description, &c.PublicName, &c.OwnerID, &c.AvatarFileID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fatal("ListChatsForUser:scan", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *Store) ChatMembers(ctx context.Context, chatID int64) ([]ChatMember, error) {
	rows, err := s.stmt(qChatMembers).QueryContext(ctx, chatID)
	if err != nil {
		return nil, fatal("ChatMembers", err)
	}
	defer rows.Close()
	var out []ChatMember
	for rows.Next() {
		var m ChatMember
		if err := rows.Scan(&m.UserID, &m.Username, &m.DisplayName, &m.Role); err != nil {
			return nil, fatal("ChatMembers:scan", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) UpdateChat(ctx context.Context, id int64, name, title, description *string) error {
	_, err := s.stmt(qUpdateChat).ExecContext(ctx, id, name, title, description)
	if err != nil {
		return fatal("UpdateChat", err)
	}
	return nil
}

// TouchChatUpdatedAt is invoked fire-and-forget after a message insert.
func (s *Store) TouchChatUpdatedAt(ctx context.Context, chatID int64) error {
	_, err := s.stmt(qTouchChatUpdatedAt).ExecContext(ctx, chatID)
	if err != nil {
		return fatal("TouchChatUpdatedAt", err)
	}
	return nil
}

// UpdateChatAvatar points the chat at an uploaded file row and bumps
// updated_at so sidebar ordering reflects the change.
func (s *Store) UpdateChatAvatar(ctx context.Context, chatID, fileID int64) error {
	_, err := s.stmt(qUpdateChatAvatar).ExecContext(ctx, chatID, fileID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrForeignKey
		}
		return fatal("UpdateChatAvatar", err)
	}
	return nil
}

func (s *Store) DeleteChat(ctx context.Context, id int64) error {
	_, err := s.stmt(qDeleteChat).ExecContext(ctx, id)
	if err != nil {
		return fatal("DeleteChat", err)
	}
	return nil
}

// Membership returns the caller's role in chat, or ErrNotFound if absent.
func (s *Store) Membership(ctx context.Context, chatID, userID int64) (model.MemberRole, error) {
	var role string
	err := s.stmt(qMembership).QueryRowContext(ctx, chatID, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fatal("Membership", err)
	}
	return model.MemberRole(role), nil
}

// ChatsForUser returns every chat id the user belongs to; used by presence
// fan-out to find which chats must carry a viewer-filtered presence update.
func (s *Store) ChatsForUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := s.stmt(qChatsForUser).QueryContext(ctx, userID)
	if err != nil {
		return nil, fatal("ChatsForUser", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fatal("ChatsForUser:scan", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) SetMemberRole(ctx context.Context, chatID, userID int64, role model.MemberRole) error {
	res, err := s.stmt(qSetMemberRole).ExecContext(ctx, chatID, userID, string(role))
	if err != nil {
		return fatal("SetMemberRole", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) RemoveMember(ctx context.Context, chatID, userID int64) error {
	_, err := s.stmt(qRemoveMember).ExecContext(ctx, chatID, userID)
	if err != nil {
		return fatal("RemoveMember", err)
	}
	return nil
}

// AddMember inserts a single membership row, used by invite acceptance;
// joining an already-joined chat is a harmless no-op.
func (s *Store) AddMember(ctx context.Context, chatID, userID int64, role model.MemberRole) error {
	_, err := s.stmt(qAddMember).ExecContext(ctx, chatID, userID, string(role))
	if err != nil {
		return fatal("AddMember", err)
	}
	return nil
}

func (s *Store) MemberCount(ctx context.Context, chatID int64) (int, error) {
	var n int
	err := s.stmt(qMemberCount).QueryRowContext(ctx, chatID).Scan(&n)
	if err != nil {
		return 0, fatal("MemberCount", err)
	}
	return n, nil
}

func scanChat(row rowScanner) (*model.Chat, error) {
	var c model.Chat
	err := row.Scan(&c.ID, &c.Type, &c.Name, &c.Title, &c.Description, &c.PublicName, &c.OwnerID, &c.AvatarFileID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fatal("scanChat", err)
	}
	return &c, nil
}
