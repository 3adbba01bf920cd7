package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/erazemk/najdeno/internal/config"
	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/firebase"
	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/mail"
	"github.com/erazemk/najdeno/internal/media"
	"github.com/erazemk/najdeno/internal/remote"
	"github.com/erazemk/najdeno/internal/service"
	"github.com/erazemk/najdeno/internal/store"
)

// backend is everything the commands run against.
type backend struct {
	db       *sql.DB
	hub      *remote.Hub
	identity identity.Provider
	media    media.Store
	svc      *service.Service
	redis    *redis.Client
}

func (b *backend) Close() {
	if b.redis != nil {
		b.redis.Close()
	}
	b.db.Close()
}

// openBackend opens the SQLite database and connects the data store,
// identity provider and photo store the configuration selects.
func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.EnsureSchema(database); err != nil {
		database.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	slog.Info("database ready", "path", cfg.DBPath)

	b := &backend{db: database}
	if err := b.connect(ctx, cfg); err != nil {
		b.Close()
		return nil, err
	}

	b.svc = service.New(service.Config{
		Store:    b.hub,
		Identity: b.identity,
		Media:    b.media,
	})
	return b, nil
}

func (b *backend) connect(ctx context.Context, cfg *config.Config) error {
	var records remote.Store

	switch cfg.Backend {
	case config.BackendFirebase:
		app, err := firebase.NewApp(ctx, firebase.Config{
			CredentialsPath: cfg.Firebase.CredentialsPath,
			DatabaseURL:     cfg.Firebase.DatabaseURL,
			APIKey:          cfg.Firebase.APIKey,
		})
		if err != nil {
			return err
		}
		dbClient, err := app.Database(ctx)
		if err != nil {
			return fmt.Errorf("connecting to Realtime Database: %w", err)
		}
		authClient, err := app.Auth(ctx)
		if err != nil {
			return fmt.Errorf("connecting to Firebase Authentication: %w", err)
		}
		records = firebase.NewStore(dbClient)
		b.identity = firebase.NewAuth(authClient, cfg.Firebase.APIKey, "")
		slog.Info("using firebase backend", "database", cfg.Firebase.DatabaseURL)

	default:
		var mailer mail.Mailer = &mail.LogMailer{}
		if cfg.MailWebhook != "" {
			mailer = mail.NewWebhookMailer(cfg.MailWebhook)
		}
		local, err := identity.NewLocal(ctx, b.db, identity.LocalConfig{
			LoginRate: rate.Every(time.Minute / time.Duration(cfg.LoginRate)),
			PublicURL: cfg.PublicURL,
			Mailer:    mailer,
		})
		if err != nil {
			return fmt.Errorf("setting up identity provider: %w", err)
		}
		records = store.NewDocuments(b.db)
		b.identity = local
		slog.Info("using sqlite backend")
	}

	switch cfg.Media.Store {
	case config.MediaMinIO:
		m, err := media.NewMinIO(ctx, media.MinIOConfig{
			Endpoint:  cfg.Media.Endpoint,
			AccessKey: cfg.Media.AccessKey,
			SecretKey: cfg.Media.SecretKey,
			Bucket:    cfg.Media.Bucket,
			UseSSL:    cfg.Media.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("connecting to MinIO: %w", err)
		}
		b.media = m
	default:
		b.media = media.NewSQLite(b.db, cfg.PublicURL)
	}

	b.hub = remote.NewHub(records)

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parsing REDIS_URL: %w", err)
		}
		b.redis = redis.NewClient(opts)
		if err := b.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connecting to Redis: %w", err)
		}
		b.hub.SetBus(remote.NewRedisBus(b.redis))
		slog.Info("sharing live updates through redis", "addr", opts.Addr)
	}
	return nil
}

// listen relays change notifications from other instances until ctx ends.
func (b *backend) listen(ctx context.Context) {
	if b.redis == nil {
		return
	}
	go func() {
		if err := remote.NewRedisBus(b.redis).Listen(ctx, b.hub); err != nil {
			slog.Error("change listener stopped", "error", err)
		}
	}()
}
