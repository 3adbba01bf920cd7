package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/erazemk/najdeno/internal/audit"
	"github.com/erazemk/najdeno/internal/claim"
	"github.com/erazemk/najdeno/internal/ids"
	"github.com/erazemk/najdeno/internal/imaging"
	"github.com/erazemk/najdeno/internal/media"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/remote"
	"github.com/erazemk/najdeno/internal/validate"
)

func trimFound(f *model.FoundItem) {
	for _, p := range []*string{
		&f.Name, &f.Description, &f.Image, &f.Location, &f.DateFound, &f.TimeFound,
		&f.Brand, &f.PrimaryColor, &f.SecondaryColor, &f.AdditionalInfo,
		&f.ReporterFirstName, &f.ReporterLastName, &f.ReporterPhone, &f.ReporterEmail,
		&f.Status, &f.OwnerName, &f.OwnerContact, &f.OwnerEmail,
	} {
		*p = strings.TrimSpace(*p)
	}
}

// CreateFoundItem validates and stores a new found item. Items can't start
// out Claimed; that status is only reachable through ClaimItem.
func (s *Service) CreateFoundItem(ctx context.Context, actor audit.Actor, f *model.FoundItem) (*model.FoundItem, error) {
	item := *f
	trimFound(&item)
	if item.Status == "" {
		item.Status = model.FoundUnclaimed
	}

	if err := joinErrors(s.validate.FoundItem(&item), claim.CheckCreate(&item)); err != nil {
		return nil, err
	}

	// Claim details only come from the claim workflow.
	item.OwnerName, item.OwnerContact, item.OwnerEmail, item.DateClaimed = "", "", "", ""
	item.Validation = nil
	item.SubmittedAt = s.now().UTC()

	id, err := ids.Reserve(ctx, s.store, ids.FoundItems)
	if err != nil {
		return nil, err
	}
	item.ID = id

	if err := s.store.Set(ctx, remote.Join(remote.FoundItems, id), item); err != nil {
		return nil, fmt.Errorf("creating found item: %w", err)
	}

	s.record(ctx, actor, "Added found item", item.Name,
		fmt.Sprintf("Location: %s, Status: %s", item.Location, item.Status))
	slog.Info("found item created", "user", actor.Email, "id", id)
	return &item, nil
}

// UpdateFoundItem saves an edited found item. The status may stay as it is or
// go back to Unclaimed, and an Unclaimed item must not carry claimer details.
func (s *Service) UpdateFoundItem(ctx context.Context, actor audit.Actor, id string, edited *model.FoundItem) (*model.FoundItem, error) {
	current, err := s.GetFoundItem(ctx, id)
	if err != nil {
		return nil, err
	}

	item := *edited
	trimFound(&item)
	if item.Status == "" {
		item.Status = current.Status
	}
	if err := s.validate.FoundItem(&item); err != nil {
		return nil, err
	}
	if err := claim.CheckEdit(current, &item); err != nil {
		return nil, err
	}

	// Fields owned by the workflows are carried over.
	item.ID = current.ID
	item.SubmittedAt = current.SubmittedAt
	item.LostItemID = current.LostItemID
	item.Validation = current.Validation
	item.DateClaimed = current.DateClaimed
	if item.Status == model.FoundUnclaimed {
		item.Validation = nil
		item.DateClaimed = ""
	}

	changed := changedFields(current, &item)
	if len(changed) == 0 {
		return current, nil
	}

	if err := s.store.Set(ctx, remote.Join(remote.FoundItems, id), item); err != nil {
		return nil, fmt.Errorf("updating found item: %w", err)
	}

	s.record(ctx, actor, "Edited found item", item.Name, "Updated: "+strings.Join(changed, ", "))
	slog.Info("found item updated", "user", actor.Email, "id", id, "fields", changed)
	return &item, nil
}

// changedFields lists the editable fields that differ, by their stored name.
func changedFields(a, b *model.FoundItem) []string {
	pairs := []struct {
		name string
		a, b string
	}{
		{"name", a.Name, b.Name},
		{"description", a.Description, b.Description},
		{"image", a.Image, b.Image},
		{"location", a.Location, b.Location},
		{"dateFound", a.DateFound, b.DateFound},
		{"timeFound", a.TimeFound, b.TimeFound},
		{"brand", a.Brand, b.Brand},
		{"primaryColor", a.PrimaryColor, b.PrimaryColor},
		{"secondaryColor", a.SecondaryColor, b.SecondaryColor},
		{"additionalInfo", a.AdditionalInfo, b.AdditionalInfo},
		{"reporterFirstName", a.ReporterFirstName, b.ReporterFirstName},
		{"reporterLastName", a.ReporterLastName, b.ReporterLastName},
		{"reporterPhone", a.ReporterPhone, b.ReporterPhone},
		{"reporterEmail", a.ReporterEmail, b.ReporterEmail},
		{"status", a.Status, b.Status},
		{"ownerName", a.OwnerName, b.OwnerName},
		{"ownerContact", a.OwnerContact, b.OwnerContact},
		{"ownerEmail", a.OwnerEmail, b.OwnerEmail},
	}
	var out []string
	for _, p := range pairs {
		if p.a != p.b {
			out = append(out, p.name)
		}
	}
	return out
}

// DeleteFoundItem removes a found item and its stored photo.
func (s *Service) DeleteFoundItem(ctx context.Context, actor audit.Actor, id string) error {
	item, err := s.GetFoundItem(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, remote.Join(remote.FoundItems, id)); err != nil {
		return fmt.Errorf("deleting found item: %w", err)
	}
	if s.media != nil {
		if err := s.media.Delete(ctx, media.KeyFor(id)); err != nil {
			slog.Error("failed to delete photo", "id", id, "error", err)
		}
	}

	s.record(ctx, actor, "Deleted found item", item.Name, "Location: "+item.Location)
	slog.Info("found item deleted", "user", actor.Email, "id", id)
	return nil
}

// GetFoundItem returns one found item.
func (s *Service) GetFoundItem(ctx context.Context, id string) (*model.FoundItem, error) {
	var f model.FoundItem
	if err := s.get(ctx, remote.FoundItems, id, &f); err != nil {
		return nil, err
	}
	storedFound(id, &f)
	return &f, nil
}

// storedFound fills in what older records left out.
func storedFound(key string, f *model.FoundItem) {
	if f.ID == "" {
		f.ID = key
	}
	if f.Status == "" {
		f.Status = model.FoundUnclaimed
	}
}

// FoundItems decodes a found item snapshot, newest first.
func FoundItems(snap remote.Snapshot) []model.FoundItem {
	items := make([]model.FoundItem, 0, snap.Len())
	remote.Each(snap, func(key string, f model.FoundItem) {
		storedFound(key, &f)
		items = append(items, f)
	})
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].SubmittedAt.Equal(items[j].SubmittedAt) {
			return items[i].SubmittedAt.After(items[j].SubmittedAt)
		}
		return items[i].ID > items[j].ID
	})
	return items
}

func (s *Service) foundItems(ctx context.Context) ([]model.FoundItem, error) {
	snap, err := s.store.List(ctx, remote.FoundItems)
	if err != nil {
		return nil, fmt.Errorf("listing found items: %w", err)
	}
	return FoundItems(snap), nil
}

// ListFoundItems returns found items matching query, optionally restricted to
// one status ("" or "all" for every status).
func (s *Service) ListFoundItems(ctx context.Context, query, status string) ([]model.FoundItem, error) {
	items, err := s.foundItems(ctx)
	if err != nil {
		return nil, err
	}
	if status != "" && status != FilterAll {
		kept := items[:0]
		for _, it := range items {
			if it.Status == status {
				kept = append(kept, it)
			}
		}
		items = kept
	}
	return Search(items, query), nil
}

// PublicFoundItems is the public view: everything not yet claimed.
func (s *Service) PublicFoundItems(ctx context.Context, query string) ([]model.FoundItem, error) {
	items, err := s.foundItems(ctx)
	if err != nil {
		return nil, err
	}
	return Search(Unclaimed(items), query), nil
}

// Unclaimed drops Claimed items.
func Unclaimed(items []model.FoundItem) []model.FoundItem {
	out := make([]model.FoundItem, 0, len(items))
	for _, it := range items {
		if it.Status != model.FoundClaimed {
			out = append(out, it)
		}
	}
	return out
}

// Search filters items by a query of whitespace separated tokens, all of
// which must match. A "field:value" token matches one field; any other token
// may appear anywhere in the item.
func Search(items []model.FoundItem, query string) []model.FoundItem {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return items
	}

	out := make([]model.FoundItem, 0, len(items))
	for i := range items {
		if matchesAll(&items[i], tokens) {
			out = append(out, items[i])
		}
	}
	return out
}

func matchesAll(it *model.FoundItem, tokens []string) bool {
	index := searchIndex(it)
	for _, tok := range tokens {
		field, value, ok := strings.Cut(tok, ":")
		if ok && field != "" && value != "" {
			if !matchesField(it, field, value) {
				return false
			}
			continue
		}
		if !strings.Contains(index, tok) {
			return false
		}
	}
	return true
}

func searchIndex(it *model.FoundItem) string {
	parts := []string{
		it.ID, it.Name, it.Description, it.Location, it.Brand,
		it.PrimaryColor, it.SecondaryColor, it.AdditionalInfo,
		it.DateFound, it.TimeFound, it.ReporterName(),
		it.ReporterPhone, it.ReporterEmail, it.Status,
		it.OwnerName, it.OwnerContact,
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func matchesField(it *model.FoundItem, field, v string) bool {
	switch field {
	case "status":
		return contains(it.Status, v)
	case "brand":
		return contains(it.Brand, v)
	case "color":
		return contains(it.PrimaryColor, v) || contains(it.SecondaryColor, v)
	case "location":
		return contains(it.Location, v)
	case "name":
		return contains(it.Name, v)
	case "desc", "description":
		return contains(it.Description, v) || contains(it.AdditionalInfo, v)
	case "reporter":
		return contains(it.ReporterName(), v)
	case "phone":
		return contains(it.ReporterPhone, v) || contains(it.OwnerContact, v)
	case "email":
		return contains(it.ReporterEmail, v)
	case "owner":
		return contains(it.OwnerName, v)
	case "id":
		return contains(it.ID, v)
	case "date":
		return contains(it.DateFound, v)
	case "time":
		return contains(it.TimeFound, v)
	default:
		// Not a field name; "09:15" is a plain search term.
		return strings.Contains(searchIndex(it), field+":"+v)
	}
}

// SetFoundItemPhoto processes an uploaded photo, stores it and points the
// item's image at it.
func (s *Service) SetFoundItemPhoto(ctx context.Context, actor audit.Actor, id string, r io.Reader) (string, error) {
	item, err := s.GetFoundItem(ctx, id)
	if err != nil {
		return "", err
	}
	if s.media == nil {
		return "", errors.New("photo storage is not configured")
	}

	photo, err := imaging.Process(r, imaging.MaxDimension)
	if errors.Is(err, imaging.ErrUnsupported) || errors.Is(err, imaging.ErrTooLarge) {
		return "", validate.Errors{err.Error()}
	}
	if err != nil {
		return "", validate.Errors{"The image could not be read."}
	}

	url, err := s.media.Put(ctx, media.KeyFor(id), photo.Data, photo.MIME)
	if err != nil {
		return "", fmt.Errorf("storing photo: %w", err)
	}
	if err := s.store.Update(ctx, remote.Join(remote.FoundItems, id), map[string]any{"image": url}); err != nil {
		return "", fmt.Errorf("updating found item image: %w", err)
	}

	s.record(ctx, actor, "Updated found item photo", item.Name,
		fmt.Sprintf("Size: %dx%d", photo.Width, photo.Height))
	slog.Info("found item photo set", "user", actor.Email, "id", id, "bytes", len(photo.Data))
	return url, nil
}
