package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/shopmindai/chatcore/internal/model"
)

const enrichedSelect = `
	SELECT m.id, m.chat_id, m.sender_id, m.content, m.message_type, m.created_at, m.updated_at,
	       m.is_edited, m.is_deleted, m.reply_to_message_id,
	       m.forwarded_from_chat_id, m.forwarded_from_message_id, m.forwarded_from_user_id, m.forwarded_from_display_name,
	       m.file_id, m.sticker_id, m.duration_seconds,
	       u.username, u.display_name,
	       uf.bucket, uf.object_key,
	       sf.bucket, sf.object_key,
	       af.bucket, af.object_key,
	       rm.id, rm.content, rm.message_type, ru.username
	FROM messages m
	JOIN users u ON u.id = m.sender_id
	LEFT JOIN files uf ON uf.id = u.avatar_file_id
	LEFT JOIN stickers sf ON sf.id = m.sticker_id
	LEFT JOIN files af ON af.id = m.file_id
	LEFT JOIN messages rm ON rm.id = m.reply_to_message_id
	LEFT JOIN users ru ON ru.id = rm.sender_id
	WHERE m.chat_id = $1
	  AND m.is_deleted = false
	  AND NOT EXISTS (SELECT 1 FROM deleted_for_user d WHERE d.user_id = $2 AND d.message_id = m.id)`

var (
	qInsertMessage = register("insertMessage", `
		INSERT INTO messages (chat_id, sender_id, content, message_type, file_id, sticker_id, duration_seconds, reply_to_message_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`)

	qInsertForwardedMessage = register("insertForwardedMessage", `
		INSERT INTO messages (chat_id, sender_id, content, message_type, file_id, sticker_id, duration_seconds,
			forwarded_from_chat_id, forwarded_from_message_id, forwarded_from_user_id, forwarded_from_display_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`)

	qGetMessage = register("getMessage", `
		SELECT id, chat_id, sender_id, content, message_type, created_at, updated_at, is_edited, is_deleted,
		       reply_to_message_id, forwarded_from_chat_id, forwarded_from_message_id, forwarded_from_user_id,
		       forwarded_from_display_name, file_id, sticker_id, duration_seconds
		FROM messages WHERE id = $1`)

	qGetMessagesByIDs = register("getMessagesByIDs", `
		SELECT id, chat_id, sender_id, content, message_type, created_at, updated_at, is_edited, is_deleted,
		       reply_to_message_id, forwarded_from_chat_id, forwarded_from_message_id, forwarded_from_user_id,
		       forwarded_from_display_name, file_id, sticker_id, duration_seconds
		FROM messages WHERE id = ANY($1)`)

	qEnrichedAfter = register("enrichedAfter", enrichedSelect+`
		  AND m.id > $3
		ORDER BY m.id ASC LIMIT $4`)

	qEnrichedBefore = register("enrichedBefore", enrichedSelect+`
		  AND m.id < $3
		ORDER BY m.id DESC LIMIT $4`)

	qEnrichedDefault = register("enrichedDefault", enrichedSelect+`
		ORDER BY m.id DESC LIMIT $3`)

	qSearchMessages = register("searchMessages", `
		SELECT m.id, m.chat_id, m.sender_id, m.content, m.message_type, m.created_at, m.updated_at,
		       m.is_edited, m.is_deleted, m.reply_to_message_id
		FROM messages m
		WHERE m.chat_id = $1
		  AND m.is_deleted = false
		  AND m.message_type = 'text'
		  AND m.content ILIKE '%' || $2 || '%'
		  AND NOT EXISTS (SELECT 1 FROM deleted_for_user d WHERE d.user_id = $3 AND d.message_id = m.id)
		  AND ($4::bigint IS NULL OR m.id < $4)
		ORDER BY m.id DESC LIMIT $5`)

	qEditMessage = register("editMessage", `
		UPDATE messages SET content = $2, is_edited = true, updated_at = now()
		WHERE id = $1`)

	qMarkDeletedForEveryone = register("markDeletedForEveryone", `
		UPDATE messages SET is_deleted = true, updated_at = now() WHERE id = $1`)

	qInsertDeletedForUser = register("insertDeletedForUser", `
		INSERT INTO deleted_for_user (user_id, message_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`)

	qAdvanceReadCursor = register("advanceReadCursor", `
		INSERT INTO read_cursors (user_id, chat_id, last_read_msg_id, read_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (user_id, chat_id) DO UPDATE
			SET last_read_msg_id = GREATEST(read_cursors.last_read_msg_id, EXCLUDED.last_read_msg_id),
			    read_at = now()`)

	qGetReadCursor = register("getReadCursor", `
		SELECT last_read_msg_id, read_at FROM read_cursors WHERE user_id = $1 AND chat_id = $2`)
)

// InsertMessage is an atomic single-row insert returning the server-generated
// id and timestamp. The caller is responsible for the fire-and-forget
// touch_chat_updated_at / advance_read_cursor follow-ups.
func (s *Store) InsertMessage(ctx context.Context, chatID, senderID int64, content *string, mtype model.MessageType, fileID, stickerID *int64, duration *int, replyTo *int64) (int64, time.Time, error) {
	var id int64
	var createdAt time.Time
	err := s.stmt(qInsertMessage).QueryRowContext(ctx, chatID, senderID, content, string(mtype), fileID, stickerID, duration, replyTo).Scan(&id, &createdAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, time.Time{}, ErrForeignKey
		}
		return 0, time.Time{}, fatal("InsertMessage", err)
	}
	return id, createdAt, nil
}

// InsertForwardedMessage inserts a single forwarded copy of an original
// message, carrying forwarded_from_* attribution.
func (s *Store) InsertForwardedMessage(ctx context.Context, chatID, senderID int64, orig *model.Message, forwardedFromDisplay string) (int64, time.Time, error) {
	var id int64
	var createdAt time.Time
	err := s.stmt(qInsertForwardedMessage).QueryRowContext(ctx, chatID, senderID, orig.Content, string(orig.MessageType),
		orig.FileID, orig.StickerID, orig.DurationSeconds,
		orig.ChatID, orig.ID, orig.SenderID, forwardedFromDisplay).Scan(&id, &createdAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return 0, time.Time{}, ErrForeignKey
		}
		return 0, time.Time{}, fatal("InsertForwardedMessage", err)
	}
	return id, createdAt, nil
}

func (s *Store) GetMessage(ctx context.Context, id int64) (*model.Message, error) {
	return scanMessage(s.stmt(qGetMessage).QueryRowContext(ctx, id))
}

// GetMessagesByIDs is the single IN-query forward() uses to fetch originals.
func (s *Store) GetMessagesByIDs(ctx context.Context, ids []int64) ([]*model.Message, error) {
	rows, err := s.stmt(qGetMessagesByIDs).QueryContext(ctx, pq.Array(ids))
	if err != nil {
		return nil, fatal("GetMessagesByIDs", err)
	}
	defer rows.Close()
	var out []*model.Message
	for rows.Next() {
		m, err := scanMessageRow(rows)
		if err != nil {
			return nil, fatal("GetMessagesByIDs:scan", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Cursor selects which edge of enriched_messages to query.
type Cursor struct {
	After  *int64
	Before *int64
}

// EnrichedMessages implements the paging protocol of the read endpoint:
// after_id ascending, before/default descending-then-reversed.
func (s *Store) EnrichedMessages(ctx context.Context, chatID, viewer int64, cur Cursor, limit int) ([]*model.EnrichedMessage, error) {
	var rows *sql.Rows
	var err error
	switch {
	case cur.After != nil:
		rows, err = s.stmt(qEnrichedAfter).QueryContext(ctx, chatID, viewer, *cur.After, limit)
	case cur.Before != nil:
		rows, err = s.stmt(qEnrichedBefore).QueryContext(ctx, chatID, viewer, *cur.Before, limit)
	default:
		rows, err = s.stmt(qEnrichedDefault).QueryContext(ctx, chatID, viewer, limit)
	}
	if err != nil {
		return nil, fatal("EnrichedMessages", err)
	}
	defer rows.Close()

	out, err := scanEnrichedRows(rows)
	if err != nil {
		return nil, fatal("EnrichedMessages:scan", err)
	}
	if cur.After == nil {
		reverseEnriched(out)
	}
	return out, nil
}

func (s *Store) SearchMessages(ctx context.Context, chatID, viewer int64, q string, beforeID *int64, limit int) ([]*model.Message, error) {
	rows, err := s.stmt(qSearchMessages).QueryContext(ctx, chatID, q, viewer, beforeID, limit)
	if err != nil {
		return nil, fatal("SearchMessages", err)
	}
	defer rows.Close()
	var out []*model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.MessageType, &m.CreatedAt, &m.UpdatedAt, &m.IsEdited, &m.IsDeleted, &m.ReplyToMessageID); err != nil {
			return nil, fatal("SearchMessages:scan", err)
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *Store) EditMessage(ctx context.Context, id int64, content string) error {
	_, err := s.stmt(qEditMessage).ExecContext(ctx, id, content)
	if err != nil {
		return fatal("EditMessage", err)
	}
	return nil
}

func (s *Store) DeleteMessageForEveryone(ctx context.Context, id int64) error {
	_, err := s.stmt(qMarkDeletedForEveryone).ExecContext(ctx, id)
	if err != nil {
		return fatal("DeleteMessageForEveryone", err)
	}
	return nil
}

func (s *Store) DeleteMessageForUser(ctx context.Context, userID, messageID int64) error {
	_, err := s.stmt(qInsertDeletedForUser).ExecContext(ctx, userID, messageID)
	if err != nil {
		return fatal("DeleteMessageForUser", err)
	}
	return nil
}

// AdvanceReadCursor takes the max of current and new; non-decreasing by
// construction via GREATEST in the upsert.
func (s *Store) AdvanceReadCursor(ctx context.Context, userID, chatID, msgID int64) error {
	_, err := s.stmt(qAdvanceReadCursor).ExecContext(ctx, userID, chatID, msgID)
	if err != nil {
		return fatal("AdvanceReadCursor", err)
	}
	return nil
}

func (s *Store) GetReadCursor(ctx context.Context, userID, chatID int64) (*model.ReadCursor, error) {
	var rc model.ReadCursor
	rc.UserID, rc.ChatID = userID, chatID
	err := s.stmt(qGetReadCursor).QueryRowContext(ctx, userID, chatID).Scan(&rc.LastReadMsgID, &rc.ReadAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.ReadCursor{UserID: userID, ChatID: chatID}, nil
	}
	if err != nil {
		return nil, fatal("GetReadCursor", err)
	}
	return &rc, nil
}

func scanMessage(row rowScanner) (*model.Message, error) {
	var m model.Message
	err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.MessageType, &m.CreatedAt, &m.UpdatedAt, &m.IsEdited, &m.IsDeleted,
		&m.ReplyToMessageID, &m.ForwardedFromChatID, &m.ForwardedFromMessageID, &m.ForwardedFromUserID, &m.ForwardedFromDisplay,
		&m.FileID, &m.StickerID, &m.DurationSeconds)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fatal("scanMessage", err)
	}
	return &m, nil
}

func scanMessageRow(rows *sql.Rows) (*model.Message, error) {
	var m model.Message
	err := rows.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.Content, &m.MessageType, &m.CreatedAt, &m.UpdatedAt, &m.IsEdited, &m.IsDeleted,
		&m.ReplyToMessageID, &m.ForwardedFromChatID, &m.ForwardedFromMessageID, &m.ForwardedFromUserID, &m.ForwardedFromDisplay,
		&m.FileID, &m.StickerID, &m.DurationSeconds)
	return &m, err
}

func scanEnrichedRows(rows *sql.Rows) ([]*model.EnrichedMessage, error) {
	var out []*model.EnrichedMessage
	for rows.Next() {
		var e model.EnrichedMessage
		var senderAvatarBucket, senderAvatarKey sql.NullString
		var stickerBucket, stickerKey sql.NullString
		var attachBucket, attachKey sql.NullString
		var replyID sql.NullInt64
		var replyContent sql.NullString
		var replyType sql.NullString
		var replySender sql.NullString

		if err := rows.Scan(
			&e.ID, &e.ChatID, &e.SenderID, &e.Content, &e.MessageType, &e.CreatedAt, &e.UpdatedAt, &e.IsEdited, &e.IsDeleted,
			&e.ReplyToMessageID, &e.ForwardedFromChatID, &e.ForwardedFromMessageID, &e.ForwardedFromUserID, &e.ForwardedFromDisplay,
			&e.FileID, &e.StickerID, &e.DurationSeconds,
			&e.SenderUsername, &e.SenderDisplayName,
			&senderAvatarBucket, &senderAvatarKey,
			&stickerBucket, &stickerKey,
			&attachBucket, &attachKey,
			&replyID, &replyContent, &replyType, &replySender,
		); err != nil {
			return nil, err
		}

		if senderAvatarKey.Valid {
			e.SenderAvatar = &model.ObjectRef{Bucket: senderAvatarBucket.String, Key: senderAvatarKey.String}
		}
		if stickerKey.Valid {
			e.StickerImage = &model.ObjectRef{Bucket: stickerBucket.String, Key: stickerKey.String}
		}
		if attachKey.Valid {
			e.Attachment = &model.ObjectRef{Bucket: attachBucket.String, Key: attachKey.String}
		}
		if replyID.Valid {
			var content *string
			if replyContent.Valid {
				content = &replyContent.String
			}
			e.ReplyPreview = &model.ReplyPreview{
				MessageID:  replyID.Int64,
				Content:    content,
				Type:       model.MessageType(replyType.String),
				SenderName: replySender.String,
			}
		}
		out = append(out, &e)
	}
	return out, nil
}

func reverseEnriched(s []*model.EnrichedMessage) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
