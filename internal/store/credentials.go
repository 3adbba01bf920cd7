package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrDuplicate is returned when a credential already exists for an email.
var ErrDuplicate = errors.New("credential already exists")

// CreateCredential stores a password hash for email. Emails compare
// case-insensitively.
func CreateCredential(ctx context.Context, db *sql.DB, email, passwordHash string) error {
	res, err := db.ExecContext(ctx,
		`INSERT OR IGNORE INTO credentials (email, password_hash) VALUES (?, ?)`,
		email, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("creating credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("creating credential: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

// GetPasswordHash returns the password hash for email, or "" if there is no
// credential.
func GetPasswordHash(ctx context.Context, db *sql.DB, email string) (string, error) {
	var hash string
	err := db.QueryRowContext(ctx,
		`SELECT password_hash FROM credentials WHERE email = ?`, email,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting credential: %w", err)
	}
	return hash, nil
}

// UpdatePasswordHash replaces the password hash for email. It reports
// whether a credential was updated.
func UpdatePasswordHash(ctx context.Context, db *sql.DB, email, passwordHash string) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE credentials SET password_hash = ?, updated_at = ? WHERE email = ?`,
		passwordHash, time.Now().UTC(), email,
	)
	if err != nil {
		return false, fmt.Errorf("updating credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating credential: %w", err)
	}
	return n > 0, nil
}

// UpdateCredentialEmail moves a credential to a new email address.
func UpdateCredentialEmail(ctx context.Context, db *sql.DB, oldEmail, newEmail string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE credentials SET email = ?, updated_at = ? WHERE email = ?`,
		newEmail, time.Now().UTC(), oldEmail,
	)
	if err != nil {
		return fmt.Errorf("updating credential email: %w", err)
	}
	return nil
}

// DeleteCredential removes the credential for email.
func DeleteCredential(ctx context.Context, db *sql.DB, email string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM credentials WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	return nil
}
