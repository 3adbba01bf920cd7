package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SavePhoto stores image bytes under key, replacing any previous photo.
func SavePhoto(ctx context.Context, db *sql.DB, key string, data []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO photos (key, data, mime) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET data = excluded.data, mime = excluded.mime`,
		key, data, mime,
	)
	if err != nil {
		return fmt.Errorf("saving photo: %w", err)
	}
	return nil
}

// GetPhoto returns a photo's bytes and MIME type. data is nil if there is no
// photo under key.
func GetPhoto(ctx context.Context, db *sql.DB, key string) ([]byte, string, error) {
	var data []byte
	var mime string
	err := db.QueryRowContext(ctx,
		`SELECT data, mime FROM photos WHERE key = ?`, key,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting photo: %w", err)
	}
	return data, mime, nil
}

// DeletePhoto removes the photo under key.
func DeletePhoto(ctx context.Context, db *sql.DB, key string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM photos WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting photo: %w", err)
	}
	return nil
}
