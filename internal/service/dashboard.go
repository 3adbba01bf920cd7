package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/erazemk/najdeno/internal/audit"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/remote"
)

// Dashboard holds the admin overview counters.
type Dashboard struct {
	TotalFound  int `json:"totalFound"`
	Claimed     int `json:"claimed"`
	TotalLost   int `json:"totalLost"`
	TotalUsers  int `json:"totalUsers"`
	TotalAdmins int `json:"totalAdmins"`
}

// Dashboard counts records across the collections.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	var d Dashboard

	found, err := s.store.List(ctx, remote.FoundItems)
	if err != nil {
		return nil, fmt.Errorf("counting found items: %w", err)
	}
	d.TotalFound = found.Len()
	remote.Each(found, func(_ string, f model.FoundItem) {
		if f.Status == model.FoundClaimed {
			d.Claimed++
		}
	})

	lost, err := s.store.List(ctx, remote.LostItems)
	if err != nil {
		return nil, fmt.Errorf("counting lost reports: %w", err)
	}
	d.TotalLost = lost.Len()

	users, err := s.store.List(ctx, remote.Users)
	if err != nil {
		return nil, fmt.Errorf("counting accounts: %w", err)
	}
	d.TotalUsers = users.Len()
	remote.Each(users, func(_ string, a model.Account) {
		if strings.EqualFold(a.Role, model.RoleAdmin) {
			d.TotalAdmins++
		}
	})

	return &d, nil
}

// ActionLogs returns the action log newest first, filtered by query.
func (s *Service) ActionLogs(ctx context.Context, query string) ([]model.ActionLogEntry, error) {
	entries, err := audit.List(ctx, s.store)
	if err != nil {
		return nil, err
	}
	return audit.Filter(entries, query), nil
}
