package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/erazemk/najdeno/internal/audit"
	"github.com/erazemk/najdeno/internal/claim"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/remote"
	"github.com/erazemk/najdeno/internal/validate"
)

// transition applies a claim workflow patch to a found item as one update and
// returns the item as stored afterwards.
func (s *Service) transition(ctx context.Context, id string, patch map[string]any) (*model.FoundItem, error) {
	if err := s.store.Update(ctx, remote.Join(remote.FoundItems, id), patch); err != nil {
		return nil, fmt.Errorf("updating found item %s: %w", id, err)
	}
	return s.GetFoundItem(ctx, id)
}

// ValidateClaim records how a claimant proved ownership and moves the item to
// Validated.
func (s *Service) ValidateClaim(ctx context.Context, actor audit.Actor, id string, in validate.ValidationInput) (*model.FoundItem, error) {
	if err := s.validate.Validation(&in); err != nil {
		return nil, err
	}
	item, err := s.GetFoundItem(ctx, id)
	if err != nil {
		return nil, err
	}
	patch, err := claim.Validate(item, in.Method, in.Notes, s.now())
	if err != nil {
		return nil, err
	}

	updated, err := s.transition(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "Validated claim", item.Name,
		fmt.Sprintf("Method: %s, Notes: %s", in.Method, orNone(in.Notes)))
	slog.Info("claim validated", "user", actor.Email, "id", id, "method", in.Method)
	return updated, nil
}

// ClaimItem hands an item over to its owner.
func (s *Service) ClaimItem(ctx context.Context, actor audit.Actor, id string, in validate.ClaimInput) (*model.FoundItem, error) {
	if err := s.validate.Claim(&in); err != nil {
		return nil, err
	}
	item, err := s.GetFoundItem(ctx, id)
	if err != nil {
		return nil, err
	}
	patch, err := claim.Claim(item, in.OwnerName, in.OwnerContact, in.OwnerEmail, s.now())
	if err != nil {
		return nil, err
	}

	updated, err := s.transition(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "Marked as claimed", item.Name,
		fmt.Sprintf("Claimed by: %s, Contact: %s", in.OwnerName, in.OwnerContact))
	slog.Info("item claimed", "user", actor.Email, "id", id)
	return updated, nil
}

// RevertClaim returns a claimed item to Unclaimed, clearing the claim.
func (s *Service) RevertClaim(ctx context.Context, actor audit.Actor, id string) (*model.FoundItem, error) {
	item, err := s.GetFoundItem(ctx, id)
	if err != nil {
		return nil, err
	}
	patch, err := claim.Revert(item)
	if err != nil {
		return nil, err
	}

	updated, err := s.transition(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.record(ctx, actor, "Reverted claim", item.Name, "Previously claimed by: "+item.OwnerName)
	slog.Info("claim reverted", "user", actor.Email, "id", id)
	return updated, nil
}

// ClaimHistory lists claimed items, most recently claimed first. query
// matches the item name, ID, claimer or location.
func (s *Service) ClaimHistory(ctx context.Context, query string) ([]model.FoundItem, error) {
	items, err := s.foundItems(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.FoundItem, 0)
	for _, it := range items {
		if it.Status != model.FoundClaimed || strings.TrimSpace(it.OwnerName) == "" {
			continue
		}
		if q != "" && !contains(it.Name, q) && !contains(it.ID, q) &&
			!contains(it.OwnerName, q) && !contains(it.Location, q) {
			continue
		}
		out = append(out, it)
	}

	// Dates are YYYY-MM-DD, so they sort as strings.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DateClaimed > out[j].DateClaimed
	})
	return out, nil
}
