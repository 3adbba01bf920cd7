package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/erazemk/najdeno/internal/audit"
	"github.com/erazemk/najdeno/internal/ids"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/remote"
)

// Lost report status filters.
const (
	FilterAll      = "all"
	FilterFound    = "found"
	FilterNotFound = "notFound"
)

// SubmitLostReport validates and stores a public lost item report and
// returns its new ID. No record is written when an ID can't be reserved.
func (s *Service) SubmitLostReport(ctx context.Context, r *model.LostReport) (string, error) {
	if err := s.validate.LostReport(r); err != nil {
		return "", err
	}

	report := model.LostReport{
		Item:        strings.TrimSpace(r.Item),
		Date:        strings.TrimSpace(r.Date),
		Time:        strings.TrimSpace(r.Time),
		Location:    strings.TrimSpace(r.Location),
		Brand:       strings.TrimSpace(r.Brand),
		Primary:     strings.TrimSpace(r.Primary),
		Secondary:   strings.TrimSpace(r.Secondary),
		Additional:  strings.TrimSpace(r.Additional),
		ImageURL:    strings.TrimSpace(r.ImageURL),
		First:       strings.TrimSpace(r.First),
		Last:        strings.TrimSpace(r.Last),
		Phone:       strings.ReplaceAll(strings.TrimSpace(r.Phone), " ", ""),
		Email:       strings.TrimSpace(r.Email),
		Status:      model.LostPending,
		SubmittedAt: s.now().UTC(),
	}

	id, err := ids.Reserve(ctx, s.store, ids.LostItems)
	if err != nil {
		return "", err
	}
	report.ID = id

	if err := s.store.Set(ctx, remote.Join(remote.LostItems, id), report); err != nil {
		return "", fmt.Errorf("creating lost report: %w", err)
	}

	s.record(ctx, audit.Public, "Submitted lost item report", report.Item,
		fmt.Sprintf("Location: %s, Reported by: %s", report.Location, report.ReporterName()))
	slog.Info("lost report submitted", "id", id)
	return id, nil
}

// LostReports decodes a lost report snapshot in key order.
func LostReports(snap remote.Snapshot) []model.LostReport {
	reports := make([]model.LostReport, 0, snap.Len())
	remote.Each(snap, func(key string, r model.LostReport) {
		if r.ID == "" {
			r.ID = key
		}
		if r.Status == "" {
			r.Status = model.LostPending
		}
		reports = append(reports, r)
	})
	return reports
}

func (s *Service) lostReports(ctx context.Context) ([]model.LostReport, error) {
	snap, err := s.store.List(ctx, remote.LostItems)
	if err != nil {
		return nil, fmt.Errorf("listing lost reports: %w", err)
	}
	return LostReports(snap), nil
}

// ListLostReports returns reports newest first. query matches the item name
// or the reporter's name; status is one of the Filter constants.
func (s *Service) ListLostReports(ctx context.Context, query, status string) ([]model.LostReport, error) {
	reports, err := s.lostReports(ctx)
	if err != nil {
		return nil, err
	}

	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]model.LostReport, 0, len(reports))
	for _, r := range reports {
		switch status {
		case FilterFound:
			if r.Status != model.LostFound {
				continue
			}
		case FilterNotFound:
			if r.Status == model.LostFound {
				continue
			}
		}
		if q != "" && !contains(r.Item, q) && !contains(r.ReporterName(), q) {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].SubmittedAt.Equal(out[j].SubmittedAt) {
			return out[i].SubmittedAt.After(out[j].SubmittedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// GetLostReport returns one report.
func (s *Service) GetLostReport(ctx context.Context, id string) (*model.LostReport, error) {
	var r model.LostReport
	if err := s.get(ctx, remote.LostItems, id, &r); err != nil {
		return nil, err
	}
	if r.ID == "" {
		r.ID = id
	}
	return &r, nil
}

// DeleteLostReport removes a report.
func (s *Service) DeleteLostReport(ctx context.Context, actor audit.Actor, id string) error {
	r, err := s.GetLostReport(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, remote.Join(remote.LostItems, id)); err != nil {
		return fmt.Errorf("deleting lost report: %w", err)
	}

	s.record(ctx, actor, "Deleted lost report", r.Item, "Report ID: "+id)
	slog.Info("lost report deleted", "user", actor.Email, "id", id)
	return nil
}

// MarkLostReportFound creates an Unclaimed found item linked to the report
// and marks the report Found. The two writes are independent; if the second
// fails the found item stays and the report can be marked again by hand.
func (s *Service) MarkLostReportFound(ctx context.Context, actor audit.Actor, id string) (*model.FoundItem, error) {
	r, err := s.GetLostReport(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == model.LostFound {
		return nil, rule("This report is already marked as found.")
	}

	now := s.now()
	item := model.FoundItem{
		Name:              r.Item,
		Description:       lostDescription(r),
		Image:             r.ImageURL,
		Location:          r.Location,
		DateFound:         now.Format(model.DateLayout),
		TimeFound:         now.Format("15:04"),
		Brand:             r.Brand,
		PrimaryColor:      r.Primary,
		SecondaryColor:    r.Secondary,
		AdditionalInfo:    r.Additional,
		ReporterFirstName: r.First,
		ReporterLastName:  r.Last,
		ReporterPhone:     r.Phone,
		ReporterEmail:     r.Email,
		Status:            model.FoundUnclaimed,
		LostItemID:        id,
		SubmittedAt:       now.UTC(),
	}

	foundID, err := ids.Reserve(ctx, s.store, ids.FoundItems)
	if err != nil {
		return nil, err
	}
	item.ID = foundID

	if err := s.store.Set(ctx, remote.Join(remote.FoundItems, foundID), item); err != nil {
		return nil, fmt.Errorf("creating found item: %w", err)
	}
	err = s.store.Update(ctx, remote.Join(remote.LostItems, id), map[string]any{"status": model.LostFound})
	if err != nil {
		return nil, fmt.Errorf("marking lost report %s found: %w", id, err)
	}

	s.record(ctx, actor, "Marked lost item as found", r.Item,
		fmt.Sprintf("Lost report: %s, Found item: %s, Location: %s", id, foundID, r.Location))
	slog.Info("lost report marked found", "user", actor.Email, "id", id, "found", foundID)
	return &item, nil
}

// lostDescription summarizes a report for the found item it becomes.
func lostDescription(r *model.LostReport) string {
	if d := strings.TrimSpace(r.Additional); d != "" {
		return d
	}
	var parts []string
	for _, p := range []string{r.Brand, r.Primary, r.Secondary} {
		if p = strings.TrimSpace(p); p != "" && p != "N/A" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return r.Item
	}
	return strings.Join(parts, " ")
}
