// Package firebase implements the data store and identity provider on top of
// Firebase Realtime Database and Firebase Authentication.
package firebase

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// Config holds the Firebase project settings.
type Config struct {
	CredentialsPath string
	DatabaseURL     string
	APIKey          string
}

// NewApp initializes the Firebase Admin SDK.
func NewApp(ctx context.Context, cfg Config) (*firebase.App, error) {
	if cfg.CredentialsPath == "" {
		return nil, fmt.Errorf("FIREBASE_CREDENTIALS_PATH is required")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("FIREBASE_DATABASE_URL is required")
	}

	opt := option.WithCredentialsFile(cfg.CredentialsPath)
	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: cfg.DatabaseURL}, opt)
	if err != nil {
		return nil, fmt.Errorf("initializing Firebase app: %w", err)
	}
	return app, nil
}
