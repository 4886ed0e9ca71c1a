package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/shopmindai/chatcore/internal/model"
)

var (
	qInsertUser = register("insertUser", `
		INSERT INTO users (username, display_name, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`)

	qGetUserByID = register("getUserByID", `
		SELECT id, username, display_name, avatar_file_id, password_hash, is_admin, is_blocked, is_active, last_activity, created_at
		FROM users WHERE id = $1`)

	qGetUserByUsername = register("getUserByUsername", `
		SELECT id, username, display_name, avatar_file_id, password_hash, is_admin, is_blocked, is_active, last_activity, created_at
		FROM users WHERE username = $1`)

	qSearchUsers = register("searchUsers", `
		SELECT id, username, display_name, avatar_file_id, password_hash, is_admin, is_blocked, is_active, last_activity, created_at
		FROM users WHERE username ILIKE '%' || $1 || '%' OR COALESCE(display_name,'') ILIKE '%' || $1 || '%'
		ORDER BY username LIMIT $2`)

	qUpdateUserProfile = register("updateUserProfile", `
		UPDATE users SET display_name = COALESCE($2, display_name), username = COALESCE($3, username)
		WHERE id = $1`)

	qUpdateUserAvatar = register("updateUserAvatar", `
		UPDATE users SET avatar_file_id = $2 WHERE id = $1`)

	qTouchUserLastActivity = register("touchUserLastActivity", `
		UPDATE users SET last_activity = now() WHERE id = $1`)

	qInsertUserSettings = register("insertUserSettings", `
		INSERT INTO user_settings (user_id, theme, notifications_enabled, language, read_receipts_enabled, last_seen_visibility)
		VALUES ($1, $2, $3, $4, $5, $6)`)

	qGetUserSettings = register("getUserSettings", `
		SELECT user_id, theme, notifications_enabled, language, read_receipts_enabled, last_seen_visibility
		FROM user_settings WHERE user_id = $1`)

	qUpdateUserSettings = register("updateUserSettings", `
		UPDATE user_settings SET theme = $2, notifications_enabled = $3, language = $4,
			read_receipts_enabled = $5, last_seen_visibility = $6
		WHERE user_id = $1`)
)

// CreateUser inserts a new user row along with its default settings, in one
// transaction. Unique-violation on username maps to ErrConflict.
func (s *Store) CreateUser(ctx context.Context, username string, displayName *string, passwordHash string) (*model.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fatal("CreateUser", err)
	}
	defer tx.Rollback()

	var id int64
	var createdAt sql.NullTime
	row := tx.StmtContext(ctx, s.stmt(qInsertUser)).QueryRowContext(ctx, username, displayName, passwordHash)
	if err := row.Scan(&id, &createdAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fatal("CreateUser", err)
	}

	defaults := model.DefaultUserSettings(id)
	if _, err := tx.StmtContext(ctx, s.stmt(qInsertUserSettings)).ExecContext(ctx, id,
		defaults.Theme, defaults.NotificationsEnabled, defaults.Language,
		defaults.ReadReceiptsEnabled, string(defaults.LastSeenVisibility)); err != nil {
		return nil, fatal("CreateUser:settings", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fatal("CreateUser:commit", err)
	}

	return &model.User{
		ID: id, Username: username, DisplayName: displayName, PasswordHash: passwordHash,
		IsActive: true, CreatedAt: createdAt.Time,
	}, nil
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return scanUser(s.stmt(qGetUserByID).QueryRowContext(ctx, id))
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return scanUser(s.stmt(qGetUserByUsername).QueryRowContext(ctx, username))
}

func (s *Store) SearchUsers(ctx context.Context, q string, limit int) ([]*model.User, error) {
	rows, err := s.stmt(qSearchUsers).QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fatal("SearchUsers", err)
	}
	defer rows.Close()
	var out []*model.User
	for rows.Next() {
		u, err := scanUserRows(rows)
		if err != nil {
			return nil, fatal("SearchUsers:scan", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) UpdateUserProfile(ctx context.Context, id int64, displayName, username *string) error {
	_, err := s.stmt(qUpdateUserProfile).ExecContext(ctx, id, displayName, username)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fatal("UpdateUserProfile", err)
	}
	return nil
}

func (s *Store) UpdateUserAvatar(ctx context.Context, id, fileID int64) error {
	_, err := s.stmt(qUpdateUserAvatar).ExecContext(ctx, id, fileID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrForeignKey
		}
		return fatal("UpdateUserAvatar", err)
	}
	return nil
}

// TouchUserLastActivity is idempotent; always overwrites with now(). Callers
// invoke it fire-and-forget and log failures rather than surfacing them.
func (s *Store) TouchUserLastActivity(ctx context.Context, userID int64) error {
	_, err := s.stmt(qTouchUserLastActivity).ExecContext(ctx, userID)
	if err != nil {
		return fatal("TouchUserLastActivity", err)
	}
	return nil
}

func (s *Store) GetUserSettings(ctx context.Context, userID int64) (*model.UserSettings, error) {
	var st model.UserSettings
	var vis string
	row := s.stmt(qGetUserSettings).QueryRowContext(ctx, userID)
	err := row.Scan(&st.UserID, &st.Theme, &st.NotificationsEnabled, &st.Language, &st.ReadReceiptsEnabled, &vis)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fatal("GetUserSettings", err)
	}
	st.LastSeenVisibility = model.Visibility(vis)
	return &st, nil
}

func (s *Store) UpdateUserSettings(ctx context.Context, st model.UserSettings) error {
	_, err := s.stmt(qUpdateUserSettings).ExecContext(ctx, st.UserID, st.Theme,
		st.NotificationsEnabled, st.Language, st.ReadReceiptsEnabled, string(st.LastSeenVisibility))
	if err != nil {
		return fatal("UpdateUserSettings", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.AvatarFileID, &u.PasswordHash, &u.IsAdmin, &u.IsBlocked, &u.IsActive, &u.LastActivity, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fatal("scanUser", err)
	}
	return &u, nil
}

func scanUserRows(rows *sql.Rows) (*model.User, error) {
	var u model.User
	err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.AvatarFileID, &u.PasswordHash, &u.IsAdmin, &u.IsBlocked, &u.IsActive, &u.LastActivity, &u.CreatedAt)
	return &u, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23503"
	}
	return false
}
