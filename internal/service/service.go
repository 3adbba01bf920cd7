// Package service implements the record collections and the workflows that
// mediate writes to them. Every mutating operation takes the acting user
// explicitly and appends one action log entry after its write.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/erazemk/najdeno/internal/audit"
	"github.com/erazemk/najdeno/internal/claim"
	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/media"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/remote"
	"github.com/erazemk/najdeno/internal/validate"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// RuleError is a request rejected by a business rule, with the message to
// show.
type RuleError = claim.RuleError

// AuthError is a refused sign-in.
type AuthError struct {
	Msg string
}

func (e *AuthError) Error() string { return e.Msg }

// ForbiddenError is returned when the actor lacks the role an operation needs.
type ForbiddenError struct {
	Msg string
}

func (e *ForbiddenError) Error() string { return e.Msg }

func rule(msg string) error {
	return &RuleError{Msg: msg}
}

// Config wires a Service to its backends.
type Config struct {
	Store    remote.Store
	Identity identity.Provider
	Media    media.Store
	Now      func() time.Time
}

// Service is the application core.
type Service struct {
	store    remote.Store
	identity identity.Provider
	media    media.Store
	audit    *audit.Logger
	validate *validate.Validator
	now      func() time.Time
}

// New creates a Service.
func New(cfg Config) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:    cfg.Store,
		identity: cfg.Identity,
		media:    cfg.Media,
		audit:    audit.NewLogger(cfg.Store, now),
		validate: validate.New(now),
		now:      now,
	}
}

// ActorFor is the audit identity of a signed-in account.
func ActorFor(a *model.Account) audit.Actor {
	return audit.Actor{Name: a.Name, Email: a.Email, Role: a.Role}
}

// System is the actor recorded for work the server does on its own.
var System = audit.Actor{Name: "System", Role: "System"}

// record appends an action log entry. The write it describes has already
// happened, so a failure is logged rather than returned.
func (s *Service) record(ctx context.Context, actor audit.Actor, action, item, details string) {
	if _, err := s.audit.Record(ctx, actor, action, item, details); err != nil {
		slog.Error("failed to record action", "action", action, "item", item, "error", err)
	}
}

// get loads one record, reporting ErrNotFound when it is absent.
func (s *Service) get(ctx context.Context, collection, id string, v any) error {
	if strings.TrimSpace(id) == "" || strings.Contains(id, "/") {
		return ErrNotFound
	}
	ok, err := s.store.Get(ctx, remote.Join(collection, id), v)
	if err != nil {
		return fmt.Errorf("reading %s/%s: %w", collection, id, err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// joinErrors merges validation messages with a rule violation so all of them
// are reported together.
func joinErrors(validation error, violation error) error {
	var msgs validate.Errors
	if validation != nil {
		if !errors.As(validation, &msgs) {
			return validation
		}
	}
	if violation != nil {
		msgs = append(msgs, violation.Error())
	}
	if len(msgs) == 0 {
		return nil
	}
	return msgs
}

func contains(s, lowerQuery string) bool {
	return strings.Contains(strings.ToLower(s), lowerQuery)
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}
