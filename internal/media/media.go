// Package media stores found item photos and hands out the URLs they are
// served from.
package media

import (
	"context"
	"database/sql"
	"net/url"
	"strings"

	"github.com/erazemk/najdeno/internal/store"
)

// Store keeps photo bytes.
type Store interface {
	// Put stores a photo under key and returns its public URL.
	Put(ctx context.Context, key string, data []byte, mime string) (string, error)
	// Get returns a photo and its MIME type; data is nil when there is none.
	Get(ctx context.Context, key string) ([]byte, string, error)
	// Delete removes a photo. Deleting a missing photo is not an error.
	Delete(ctx context.Context, key string) error
}

// RoutePrefix is where the API serves photos kept in SQLite.
const RoutePrefix = "/api/media/"

// SQLite keeps photos as blobs next to the rest of the data.
type SQLite struct {
	db      *sql.DB
	baseURL string
}

// NewSQLite creates a store whose URLs are rooted at baseURL, the server's
// public address.
func NewSQLite(db *sql.DB, baseURL string) *SQLite {
	return &SQLite{db: db, baseURL: strings.TrimRight(baseURL, "/")}
}

// Put implements Store.
func (s *SQLite) Put(ctx context.Context, key string, data []byte, mime string) (string, error) {
	if err := store.SavePhoto(ctx, s.db, key, data, mime); err != nil {
		return "", err
	}
	return s.baseURL + RoutePrefix + url.PathEscape(key), nil
}

// Get implements Store.
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, string, error) {
	return store.GetPhoto(ctx, s.db, key)
}

// Delete implements Store.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	return store.DeletePhoto(ctx, s.db, key)
}

// KeyFor is the photo key of a found item.
func KeyFor(itemID string) string {
	return "found-" + itemID + ".jpg"
}
