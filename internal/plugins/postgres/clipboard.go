package postgres

import (
	"context"
	"database/sql"

	"github.com/riyakasaudhan20/sync-clip/internal/core/domain"
)

type ClipboardRepo struct {
	db *sql.DB
}

func NewClipboardRepository(db *sql.DB) *ClipboardRepo {
	return &ClipboardRepo{db: db}
}

// Save inserts the item and keeps only the user's most recent keep items.
// Run it inside TxManager.WithTx so both statements commit together.
func (r *ClipboardRepo) Save(ctx context.Context, item *domain.ClipboardItem, keep int) error {
	if item.UserID == "" {
		return domain.ErrInvalidUserID
	}
	exec := GetExecutor(ctx, r.db)
	insert := `INSERT INTO clipboard_items
        (id, user_id, device_id, encrypted_content, iv, content_hash, content_type,
         content_size, image_format, image_width, image_height, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := exec.ExecContext(ctx, insert,
		item.ID,
		item.UserID,
		nullString(item.DeviceID),
		item.EncryptedContent,
		item.IV,
		item.ContentHash,
		item.ContentType,
		item.ContentSize,
		nullString(item.ImageFormat),
		nullInt(item.ImageWidth),
		nullInt(item.ImageHeight),
		item.CreatedAt,
	); err != nil {
		return err
	}
	if keep <= 0 {
		return nil
	}
	prune := `DELETE FROM clipboard_items
        WHERE user_id = $1 AND id NOT IN (
            SELECT id FROM clipboard_items WHERE user_id = $1
            ORDER BY created_at DESC LIMIT $2)`
	_, err := exec.ExecContext(ctx, prune, item.UserID, keep)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n != 0}
}
