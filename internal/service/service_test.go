package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erazemk/najdeno/internal/audit"
	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/mail"
	"github.com/erazemk/najdeno/internal/media"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/remote"
	"github.com/erazemk/najdeno/internal/store"
)

var fixedNow = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

var admin = audit.Actor{Name: "Ana Admin", Email: "admin@example.com", Role: model.RoleAdmin}

type env struct {
	svc    *Service
	store  remote.Store
	ids    identity.Provider
	mailer *mail.LogMailer
}

func newEnv(t *testing.T) *env {
	t.Helper()
	sqlDB := db.NewTestDB(t)
	mailer := &mail.LogMailer{}
	provider, err := identity.NewLocal(context.Background(), sqlDB, identity.LocalConfig{
		PublicURL: "https://najdeno.example.com",
		Mailer:    mailer,
		Now:       func() time.Time { return fixedNow },
	})
	require.NoError(t, err)

	docs := store.NewDocuments(sqlDB)
	return &env{
		svc: New(Config{
			Store:    docs,
			Identity: provider,
			Media:    media.NewSQLite(sqlDB, "https://najdeno.example.com"),
			Now:      func() time.Time { return fixedNow },
		}),
		store:  docs,
		ids:    provider,
		mailer: mailer,
	}
}

func (e *env) logs(t *testing.T) []model.ActionLogEntry {
	t.Helper()
	entries, err := audit.List(context.Background(), e.store)
	require.NoError(t, err)
	return entries
}

func (e *env) count(t *testing.T, collection string) int {
	t.Helper()
	snap, err := e.store.List(context.Background(), collection)
	require.NoError(t, err)
	return snap.Len()
}

// uncommitted is a store whose counter transactions never commit.
type uncommitted struct {
	remote.Store
}

func (uncommitted) Transaction(context.Context, string, remote.TransactionFunc) (remote.TransactionResult, error) {
	return remote.TransactionResult{Committed: false}, nil
}

func validLost() *model.LostReport {
	return &model.LostReport{
		Item:     "Backpack",
		Date:     "2026-03-10",
		Time:     "14:00",
		Location: "Library",
		First:    "Ana",
		Last:     "Cruz",
		Phone:    "+639171234567",
		Email:    "ana@example.com",
	}
}

func validFound() *model.FoundItem {
	return &model.FoundItem{
		Name:              "Black Umbrella",
		Description:       "Folding umbrella with a wooden handle",
		Location:          "Main Lobby",
		DateFound:         "2026-03-09",
		TimeFound:         "09:15",
		Brand:             "Totes",
		PrimaryColor:      "Black",
		ReporterFirstName: "Ben",
		ReporterLastName:  "Reyes",
		ReporterPhone:     "+63 917 123 4567",
		ReporterEmail:     "ben@example.com",
	}
}

func validAccount() *model.Account {
	return &model.Account{
		Name:     "Carla Diaz",
		Email:    "carla@example.com",
		Birthday: "1990-05-01",
		Role:     model.RoleUser,
		Status:   model.AccountActive,
	}
}
