package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/najdeno/internal/remote"
)

// MaxTransactionAttempts bounds the compare-and-swap retry loop.
const MaxTransactionAttempts = 25

// unavailable marks a driver failure as a store outage.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, remote.ErrUnavailable, err)
}

// GetDocument returns the raw JSON stored at collection/key, or nil if absent.
func GetDocument(ctx context.Context, db *sql.DB, collection, key string) (json.RawMessage, error) {
	var data string
	err := db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND key = ?`, collection, key,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("getting document", err)
	}
	return json.RawMessage(data), nil
}

// ListDocuments returns every document in a collection keyed by document key.
func ListDocuments(ctx context.Context, db *sql.DB, collection string) (map[string]json.RawMessage, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT key, data FROM documents WHERE collection = ? ORDER BY key`, collection,
	)
	if err != nil {
		return nil, unavailable("listing documents", err)
	}
	defer rows.Close()

	docs := make(map[string]json.RawMessage)
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return nil, unavailable("scanning document", err)
		}
		docs[key] = json.RawMessage(data)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("listing documents", err)
	}
	return docs, nil
}

// PutDocument replaces the document at collection/key.
func PutDocument(ctx context.Context, db *sql.DB, collection, key string, data []byte) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO documents (collection, key, data, version, updated_at) VALUES (?, ?, ?, 1, ?)
		 ON CONFLICT (collection, key) DO UPDATE
		 SET data = excluded.data, version = documents.version + 1, updated_at = excluded.updated_at`,
		collection, key, string(data), time.Now().UTC(),
	)
	if err != nil {
		return unavailable("putting document", err)
	}
	return nil
}

// MergeDocument merges top-level fields into the document at collection/key,
// creating it if needed. A nil value removes the field.
func MergeDocument(ctx context.Context, db *sql.DB, collection, key string, fields map[string]any) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("beginning transaction", err)
	}
	defer tx.Rollback()

	doc := make(map[string]any)
	var data string
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = ? AND key = ?`, collection, key,
	).Scan(&data)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return unavailable("reading document", err)
	default:
		if err := json.Unmarshal([]byte(data), &doc); err != nil || doc == nil {
			// A scalar is replaced by the merged object.
			doc = make(map[string]any)
		}
	}

	for k, v := range fields {
		if v == nil {
			delete(doc, k)
			continue
		}
		doc[k] = v
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding document: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (collection, key, data, version, updated_at) VALUES (?, ?, ?, 1, ?)
		 ON CONFLICT (collection, key) DO UPDATE
		 SET data = excluded.data, version = documents.version + 1, updated_at = excluded.updated_at`,
		collection, key, string(merged), time.Now().UTC(),
	)
	if err != nil {
		return unavailable("merging document", err)
	}

	if err := tx.Commit(); err != nil {
		return unavailable("committing merge", err)
	}
	return nil
}

// DeleteDocument removes the document at collection/key.
func DeleteDocument(ctx context.Context, db *sql.DB, collection, key string) error {
	_, err := db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND key = ?`, collection, key,
	)
	if err != nil {
		return unavailable("deleting document", err)
	}
	return nil
}

// casDocument writes data only if the document is still at version, or, for
// version 0, still absent. It reports whether the write happened.
func casDocument(ctx context.Context, db *sql.DB, collection, key string, version int64, data []byte) (bool, error) {
	var res sql.Result
	var err error
	now := time.Now().UTC()

	if version == 0 {
		res, err = db.ExecContext(ctx,
			`INSERT OR IGNORE INTO documents (collection, key, data, version, updated_at) VALUES (?, ?, ?, 1, ?)`,
			collection, key, string(data), now,
		)
	} else {
		res, err = db.ExecContext(ctx,
			`UPDATE documents SET data = ?, version = version + 1, updated_at = ?
			 WHERE collection = ? AND key = ? AND version = ?`,
			string(data), now, collection, key, version,
		)
	}
	if err != nil {
		return false, unavailable("writing document", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("checking write", err)
	}
	return n == 1, nil
}

// readVersioned returns the document and its version; version 0 means absent.
func readVersioned(ctx context.Context, db *sql.DB, collection, key string) (string, int64, error) {
	var data string
	var version int64
	err := db.QueryRowContext(ctx,
		`SELECT data, version FROM documents WHERE collection = ? AND key = ?`, collection, key,
	).Scan(&data, &version)
	if err == sql.ErrNoRows {
		return "", 0, nil
	}
	if err != nil {
		return "", 0, unavailable("reading document", err)
	}
	return data, version, nil
}

// Documents is the SQLite implementation of remote.Store.
type Documents struct {
	DB *sql.DB
}

// NewDocuments returns a store backed by db.
func NewDocuments(db *sql.DB) *Documents {
	return &Documents{DB: db}
}

// Get implements remote.Store.
func (d *Documents) Get(ctx context.Context, path string, v any) (bool, error) {
	collection, key, err := remote.Split(path)
	if err != nil {
		return false, err
	}
	data, err := GetDocument(ctx, d.DB, collection, key)
	if err != nil || data == nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", path, err)
	}
	return true, nil
}

// List implements remote.Store.
func (d *Documents) List(ctx context.Context, collection string) (remote.Snapshot, error) {
	docs, err := ListDocuments(ctx, d.DB, collection)
	if err != nil {
		return remote.Snapshot{}, err
	}
	return remote.Snapshot{Collection: collection, Children: docs}, nil
}

// Set implements remote.Store.
func (d *Documents) Set(ctx context.Context, path string, v any) error {
	collection, key, err := remote.Split(path)
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return PutDocument(ctx, d.DB, collection, key, data)
}

// Update implements remote.Store.
func (d *Documents) Update(ctx context.Context, path string, fields map[string]any) error {
	collection, key, err := remote.Split(path)
	if err != nil {
		return err
	}
	return MergeDocument(ctx, d.DB, collection, key, fields)
}

// Push implements remote.Store. Keys are version 7 UUIDs, so they sort in
// creation order.
func (d *Documents) Push(ctx context.Context, collection string, v any) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating key: %w", err)
	}
	key := id.String()
	if err := d.Set(ctx, remote.Join(collection, key), v); err != nil {
		return "", err
	}
	return key, nil
}

// Delete implements remote.Store.
func (d *Documents) Delete(ctx context.Context, path string) error {
	collection, key, err := remote.Split(path)
	if err != nil {
		return err
	}
	return DeleteDocument(ctx, d.DB, collection, key)
}

// Transaction implements remote.Store as an optimistic compare-and-swap on the
// document version, retried up to MaxTransactionAttempts times.
func (d *Documents) Transaction(ctx context.Context, path string, fn remote.TransactionFunc) (remote.TransactionResult, error) {
	collection, key, err := remote.Split(path)
	if err != nil {
		return remote.TransactionResult{}, err
	}

	for attempt := 0; attempt < MaxTransactionAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return remote.TransactionResult{}, err
		}

		data, version, err := readVersioned(ctx, d.DB, collection, key)
		if err != nil {
			return remote.TransactionResult{}, err
		}

		var current any
		if version > 0 {
			if err := json.Unmarshal([]byte(data), &current); err != nil {
				current = data
			}
		}

		next, err := fn(current)
		if err != nil {
			return remote.TransactionResult{}, err
		}
		encoded, err := json.Marshal(next)
		if err != nil {
			return remote.TransactionResult{}, fmt.Errorf("encoding %s: %w", path, err)
		}

		ok, err := casDocument(ctx, d.DB, collection, key, version, encoded)
		if err != nil {
			return remote.TransactionResult{}, err
		}
		if ok {
			return remote.TransactionResult{Committed: true, Value: next}, nil
		}

		// Lost the race; back off a little before re-reading.
		time.Sleep(time.Duration(rand.IntN(attempt+2)) * time.Millisecond)
	}

	return remote.TransactionResult{Committed: false}, nil
}
