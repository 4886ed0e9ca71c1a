package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shopmindai/chatcore/internal/model"
)

var (
	qInsertFile = register("insertFile", `
		INSERT INTO files (owner_id, object_key, bucket, content_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`)

	qGetFile = register("getFile", `
		SELECT id, owner_id, object_key, bucket, content_type, size_bytes, created_at FROM files WHERE id = $1`)

	qGetSticker = register("getSticker", `
		SELECT id, pack_name, object_key, bucket FROM stickers WHERE id = $1`)

	qListStickers = register("listStickers", `
		SELECT id, pack_name, object_key, bucket FROM stickers ORDER BY pack_name, id`)
)

func (s *Store) InsertFile(ctx context.Context, f model.File) (*model.File, error) {
	err := s.stmt(qInsertFile).QueryRowContext(ctx, f.OwnerID, f.ObjectKey, f.Bucket, f.ContentType, f.SizeBytes).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return nil, fatal("InsertFile", err)
	}
	return &f, nil
}

func (s *Store) GetFile(ctx context.Context, id int64) (*model.File, error) {
	var f model.File
	err := s.stmt(qGetFile).QueryRowContext(ctx, id).Scan(&f.ID, &f.OwnerID, &f.ObjectKey, &f.Bucket, &f.ContentType, &f.SizeBytes, &f.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fatal("GetFile", err)
	}
	return &f, nil
}

func (s *Store) GetSticker(ctx context.Context, id int64) (*model.Sticker, error) {
	var st model.Sticker
	err := s.stmt(qGetSticker).QueryRowContext(ctx, id).Scan(&st.ID, &st.PackName, &st.ObjectKey, &st.Bucket)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fatal("GetSticker", err)
	}
	return &st, nil
}

func (s *Store) ListStickers(ctx context.Context) ([]*model.Sticker, error) {
	rows, err := s.stmt(qListStickers).QueryContext(ctx)
	if err != nil {
		return nil, fatal("ListStickers", err)
	}
	defer rows.Close()
	var out []*model.Sticker
	for rows.Next() {
		var st model.Sticker
		if err := rows.Scan(&st.ID, &st.PackName, &st.ObjectKey, &st.Bucket); err != nil {
			return nil, fatal("ListStickers:scan", err)
		}
		out = append(out, &st)
	}
	return out, rows.Err()
}
