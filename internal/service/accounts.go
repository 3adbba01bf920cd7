package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/erazemk/najdeno/internal/audit"
	"github.com/erazemk/najdeno/internal/identity"
	"github.com/erazemk/najdeno/internal/ids"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/remote"
	"github.com/erazemk/najdeno/internal/validate"
)

// TempPasswordLength is the length of generated one-time passwords.
const TempPasswordLength = 12

// Account rule messages.
const (
	msgAdminOnlyAdd  = "Only administrators can add users."
	msgAdminOnlyEdit = "Only administrators can edit users."
	msgDuplicate     = "A user with this email already exists."
	msgLastAdmin     = "Cannot remove or suspend the last administrator. Add another admin first."
	msgNoAccount     = "No account found with this email"
	msgSuspended     = "Your account has been suspended. Please contact administrator."
	msgInactive      = "Your account is not active. Please contact administrator."
)

// NewAccount is a created account with the one-time password it was given.
type NewAccount struct {
	Account           *model.Account `json:"account"`
	TemporaryPassword string         `json:"temporaryPassword"`
}

// Accounts decodes a user snapshot in key order.
func Accounts(snap remote.Snapshot) []model.Account {
	accounts := make([]model.Account, 0, snap.Len())
	remote.Each(snap, func(key string, a model.Account) {
		if a.ID == "" {
			a.ID = key
		}
		accounts = append(accounts, a)
	})
	return accounts
}

func (s *Service) accounts(ctx context.Context) ([]model.Account, error) {
	snap, err := s.store.List(ctx, remote.Users)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	return Accounts(snap), nil
}

// findByEmail looks an account up by email, ignoring case. It returns nil
// when there is none.
func findByEmail(accounts []model.Account, email string) *model.Account {
	email = strings.TrimSpace(email)
	for i := range accounts {
		if strings.EqualFold(strings.TrimSpace(accounts[i].Email), email) {
			return &accounts[i]
		}
	}
	return nil
}

func activeAdmins(accounts []model.Account) int {
	n := 0
	for i := range accounts {
		if accounts[i].IsActiveAdmin() {
			n++
		}
	}
	return n
}

// ListAccounts returns every account ordered by ID.
func (s *Service) ListAccounts(ctx context.Context) ([]model.Account, error) {
	accounts, err := s.accounts(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

// GetAccount returns one account by ID.
func (s *Service) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	if err := s.get(ctx, remote.Users, id, &a); err != nil {
		return nil, err
	}
	if a.ID == "" {
		a.ID = id
	}
	return &a, nil
}

// GetAccountByEmail returns the account registered under email.
func (s *Service) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	accounts, err := s.accounts(ctx)
	if err != nil {
		return nil, err
	}
	a := findByEmail(accounts, email)
	if a == nil {
		return nil, ErrNotFound
	}
	return a, nil
}

// CreateAccount provisions a staff account. The credential gets a random
// one-time password and the new user is mailed a link to choose their own;
// until they do, passwordChanged stays false.
func (s *Service) CreateAccount(ctx context.Context, actor audit.Actor, a *model.Account) (*NewAccount, error) {
	if !model.RoleAtLeast(actor.Role, model.RoleAdmin) {
		return nil, &ForbiddenError{Msg: msgAdminOnlyAdd}
	}

	acc := model.Account{
		Name:        strings.TrimSpace(a.Name),
		Email:       strings.TrimSpace(a.Email),
		Birthday:    strings.TrimSpace(a.Birthday),
		Role:        strings.TrimSpace(a.Role),
		Status:      strings.TrimSpace(a.Status),
		ProfileLink: strings.TrimSpace(a.ProfileLink),
	}
	if acc.Role == "" {
		acc.Role = model.RoleUser
	}
	if acc.Status == "" {
		acc.Status = model.AccountActive
	}
	if err := s.validate.Account(&acc); err != nil {
		return nil, err
	}

	accounts, err := s.accounts(ctx)
	if err != nil {
		return nil, err
	}
	if findByEmail(accounts, acc.Email) != nil {
		return nil, rule(msgDuplicate)
	}

	password, err := identity.GeneratePassword(TempPasswordLength)
	if err != nil {
		return nil, fmt.Errorf("generating password: %w", err)
	}
	if err := s.identity.CreateCredential(ctx, acc.Email, password); err != nil {
		return nil, err
	}

	id, err := ids.Reserve(ctx, s.store, ids.Users)
	if err != nil {
		s.dropCredential(ctx, acc.Email)
		return nil, err
	}

	acc.ID = id
	acc.ProfileInitials = model.Initials(acc.Name)
	acc.PasswordChanged = false
	acc.CreatedAt = s.now().UTC()
	if err := s.store.Set(ctx, remote.Join(remote.Users, id), acc); err != nil {
		s.dropCredential(ctx, acc.Email)
		return nil, fmt.Errorf("creating account: %w", err)
	}

	if err := s.identity.SendPasswordReset(ctx, acc.Email); err != nil {
		slog.Error("failed to send account invite", "email", acc.Email, "error", err)
	}

	s.record(ctx, actor, "Added user", acc.Name,
		fmt.Sprintf("Email: %s, Role: %s, Status: %s", acc.Email, acc.Role, acc.Status))
	slog.Info("account created", "user", actor.Email, "id", id, "email", acc.Email)
	return &NewAccount{Account: &acc, TemporaryPassword: password}, nil
}

// dropCredential undoes CreateCredential after a later step failed.
func (s *Service) dropCredential(ctx context.Context, email string) {
	if err := s.identity.DeleteCredential(ctx, email); err != nil {
		slog.Error("failed to remove orphaned credential", "email", email, "error", err)
	}
}

// UpdateAccount saves an admin's edit of an account. The last active admin
// can't be demoted or suspended, and a changed birthday forces a new password
// change.
func (s *Service) UpdateAccount(ctx context.Context, actor audit.Actor, id string, edited *model.Account) (*model.Account, error) {
	if !model.RoleAtLeast(actor.Role, model.RoleAdmin) {
		return nil, &ForbiddenError{Msg: msgAdminOnlyEdit}
	}
	current, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	acc := *current
	acc.Name = strings.TrimSpace(edited.Name)
	acc.Email = strings.TrimSpace(edited.Email)
	acc.Birthday = strings.TrimSpace(edited.Birthday)
	acc.Role = strings.TrimSpace(edited.Role)
	acc.Status = strings.TrimSpace(edited.Status)
	acc.ProfileLink = strings.TrimSpace(edited.ProfileLink)
	if acc.Role == "" {
		acc.Role = current.Role
	}
	if acc.Status == "" {
		acc.Status = current.Status
	}
	if err := s.validate.Account(&acc); err != nil {
		return nil, err
	}

	accounts, err := s.accounts(ctx)
	if err != nil {
		return nil, err
	}
	emailChanged := !strings.EqualFold(acc.Email, current.Email)
	if emailChanged {
		if other := findByEmail(accounts, acc.Email); other != nil && other.ID != current.ID {
			return nil, rule(msgDuplicate)
		}
	}
	if current.IsActiveAdmin() && !acc.IsActiveAdmin() && activeAdmins(accounts) <= 1 {
		return nil, rule(msgLastAdmin)
	}

	if acc.Birthday != current.Birthday {
		now := s.now().UTC()
		acc.PasswordChanged = false
		acc.BirthdayUpdatedAt = &now
	}
	acc.ProfileInitials = model.Initials(acc.Name)

	if acc.Email != current.Email {
		if err := s.identity.UpdateEmail(ctx, current.Email, acc.Email); err != nil {
			return nil, err
		}
	}
	if err := s.store.Set(ctx, remote.Join(remote.Users, id), acc); err != nil {
		return nil, fmt.Errorf("updating account: %w", err)
	}

	s.record(ctx, actor, "Edited user", acc.Name,
		fmt.Sprintf("Email: %s, Role: %s, Status: %s", acc.Email, acc.Role, acc.Status))
	slog.Info("account updated", "user", actor.Email, "id", id, "status", acc.Status)
	return &acc, nil
}

// EnsureAdmin creates the first administrator when no active admin exists.
// It returns the one-time password, or "" when nothing was created or the
// identity provider already knew the address.
func (s *Service) EnsureAdmin(ctx context.Context, email, name string) (string, error) {
	accounts, err := s.accounts(ctx)
	if err != nil {
		return "", err
	}
	if activeAdmins(accounts) > 0 {
		return "", nil
	}
	if existing := findByEmail(accounts, email); existing != nil {
		err := s.store.Update(ctx, remote.Join(remote.Users, existing.ID), map[string]any{
			"role":   model.RoleAdmin,
			"status": model.AccountActive,
		})
		if err != nil {
			return "", fmt.Errorf("promoting %s: %w", email, err)
		}
		s.record(ctx, System, "Edited user", existing.Name, "Restored as the only active administrator")
		slog.Info("restored administrator", "email", email)
		return "", nil
	}

	if strings.TrimSpace(name) == "" {
		name = "Administrator"
	}
	password, err := identity.GeneratePassword(16)
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	err = s.identity.CreateCredential(ctx, email, password)
	switch {
	case errors.Is(err, identity.ErrEmailInUse):
		password = ""
	case err != nil:
		return "", fmt.Errorf("creating admin credential: %w", err)
	}

	id, err := ids.Reserve(ctx, s.store, ids.Users)
	if err != nil {
		return "", err
	}
	acc := model.Account{
		ID:              id,
		Name:            name,
		Email:           email,
		Role:            model.RoleAdmin,
		Status:          model.AccountActive,
		ProfileInitials: model.Initials(name),
		CreatedAt:       s.now().UTC(),
	}
	if err := s.store.Set(ctx, remote.Join(remote.Users, id), acc); err != nil {
		return "", fmt.Errorf("creating admin account: %w", err)
	}

	s.record(ctx, System, "Added user", acc.Name,
		fmt.Sprintf("Email: %s, Role: %s, Status: %s", acc.Email, acc.Role, acc.Status))
	slog.Info("created default administrator", "email", email, "id", id)
	return password, nil
}

// SignIn checks the account's status and then the password.
func (s *Service) SignIn(ctx context.Context, email, password string) (*identity.Session, *model.Account, error) {
	acc, err := s.GetAccountByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, nil, &AuthError{Msg: msgNoAccount}
	}
	if err != nil {
		return nil, nil, err
	}
	if err := CheckActive(acc); err != nil {
		return nil, nil, err
	}

	session, err := s.identity.SignIn(ctx, acc.Email, password)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("signed in", "user", acc.Email)
	return session, acc, nil
}

// CheckActive rejects accounts that may not hold a session.
func CheckActive(acc *model.Account) error {
	switch acc.Status {
	case model.AccountActive:
		return nil
	case model.AccountSuspended:
		return &AuthError{Msg: msgSuspended}
	default:
		return &AuthError{Msg: msgInactive}
	}
}

// SignOut ends a session.
func (s *Service) SignOut(ctx context.Context, session *identity.Session) error {
	return s.identity.SignOut(ctx, session)
}

// ChangePassword replaces the signed-in user's password after confirming the
// current one.
func (s *Service) ChangePassword(ctx context.Context, acc *model.Account, session *identity.Session, p validate.PasswordChange) error {
	if err := s.validate.Password(&p); err != nil {
		return err
	}
	if err := s.identity.Reauthenticate(ctx, session, p.Current); err != nil {
		return err
	}
	if err := s.identity.UpdatePassword(ctx, session, p.New); err != nil {
		return err
	}
	if err := s.markPasswordChanged(ctx, acc.ID); err != nil {
		return err
	}

	s.record(ctx, ActorFor(acc), "Changed password", acc.Name, "")
	slog.Info("password changed", "user", acc.Email)
	return nil
}

func (s *Service) markPasswordChanged(ctx context.Context, id string) error {
	err := s.store.Update(ctx, remote.Join(remote.Users, id), map[string]any{
		"passwordChanged":    true,
		"lastPasswordChange": s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("updating account %s: %w", id, err)
	}
	return nil
}

// RequestPasswordReset mails a reset link. Unknown addresses get the same
// answer as known ones.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return validate.Errors{"Email is required."}
	}
	return s.identity.SendPasswordReset(ctx, email)
}

// ResetPassword sets a new password with a mailed reset code.
func (s *Service) ResetPassword(ctx context.Context, p validate.PasswordReset) error {
	if err := s.validate.Reset(&p); err != nil {
		return err
	}
	email, err := s.identity.ConfirmPasswordReset(ctx, p.Code, p.New)
	if err != nil {
		return err
	}

	acc, err := s.GetAccountByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		slog.Warn("password reset for email without account", "email", email)
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.markPasswordChanged(ctx, acc.ID); err != nil {
		return err
	}
	s.record(ctx, ActorFor(acc), "Reset password", acc.Name, "")
	slog.Info("password reset", "user", acc.Email)
	return nil
}

// ProfileUpdate is a user's edit of their own account.
type ProfileUpdate struct {
	Email       string `json:"email"`
	ProfileLink string `json:"profileLink"`
}

// UpdateProfile changes the signed-in user's email and profile link. A new
// email is moved at the identity provider first.
func (s *Service) UpdateProfile(ctx context.Context, acc *model.Account, p ProfileUpdate) (*model.Account, error) {
	updated := *acc
	updated.Email = strings.TrimSpace(p.Email)
	updated.ProfileLink = strings.TrimSpace(p.ProfileLink)
	if err := s.validate.Profile(updated.Email, updated.ProfileLink); err != nil {
		return nil, err
	}

	if !strings.EqualFold(updated.Email, acc.Email) {
		accounts, err := s.accounts(ctx)
		if err != nil {
			return nil, err
		}
		if other := findByEmail(accounts, updated.Email); other != nil && other.ID != acc.ID {
			return nil, rule(msgDuplicate)
		}
	}
	if updated.Email != acc.Email {
		if err := s.identity.UpdateEmail(ctx, acc.Email, updated.Email); err != nil {
			return nil, err
		}
	}

	err := s.store.Update(ctx, remote.Join(remote.Users, acc.ID), map[string]any{
		"email":       updated.Email,
		"profileLink": updated.ProfileLink,
	})
	if err != nil {
		return nil, fmt.Errorf("updating profile: %w", err)
	}

	s.record(ctx, ActorFor(&updated), "Updated profile", updated.Name,
		fmt.Sprintf("Email: %s, Profile Link: %s", updated.Email, orNone(updated.ProfileLink)))
	slog.Info("profile updated", "user", updated.Email)
	return &updated, nil
}
