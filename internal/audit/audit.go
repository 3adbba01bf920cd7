// Package audit appends action log entries and turns the log into reports.
package audit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/remote"
)

// TimeLayout is how timestamps appear in reports and exports.
const TimeLayout = "2006-01-02 15:04:05"

// Actor identifies who performed an action.
type Actor struct {
	Name  string
	Email string
	Role  string
}

// Public is the actor recorded for unauthenticated submissions.
var Public = Actor{Name: "Public", Role: "Guest"}

// Logger appends entries to the action log collection.
type Logger struct {
	store remote.Store
	now   func() time.Time
}

// NewLogger creates a Logger writing to store.
func NewLogger(store remote.Store, now func() time.Time) *Logger {
	if now == nil {
		now = time.Now
	}
	return &Logger{store: store, now: now}
}

// Record appends one entry and returns its key.
func (l *Logger) Record(ctx context.Context, actor Actor, action, item, details string) (string, error) {
	entry := model.ActionLogEntry{
		Timestamp: l.now().UTC(),
		Action:    action,
		Item:      item,
		Details:   details,
		User:      actor.Name,
		UserEmail: actor.Email,
		UserRole:  actor.Role,
	}
	key, err := l.store.Push(ctx, remote.ActionLogs, entry)
	if err != nil {
		return "", fmt.Errorf("recording %q: %w", action, err)
	}
	return key, nil
}

// List reads the whole action log, newest first.
func List(ctx context.Context, store remote.Store) ([]model.ActionLogEntry, error) {
	snap, err := store.List(ctx, remote.ActionLogs)
	if err != nil {
		return nil, fmt.Errorf("listing action logs: %w", err)
	}
	return FromSnapshot(snap), nil
}

// FromSnapshot decodes an action log snapshot, newest first.
func FromSnapshot(snap remote.Snapshot) []model.ActionLogEntry {
	entries := make([]model.ActionLogEntry, 0, snap.Len())
	remote.Each(snap, func(key string, e model.ActionLogEntry) {
		e.Key = key
		entries = append(entries, e)
	})
	Sort(entries)
	return entries
}

// Sort orders entries newest first. Entries with equal timestamps keep
// reverse key order, which is reverse insertion order for pushed keys.
func Sort(entries []model.ActionLogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.After(b.Timestamp)
		}
		return a.Key > b.Key
	})
}

// Filter returns the entries where any field contains query, ignoring case.
// An empty query matches everything.
func Filter(entries []model.ActionLogEntry, query string) []model.ActionLogEntry {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return entries
	}

	out := make([]model.ActionLogEntry, 0)
	for _, e := range entries {
		fields := []string{
			e.Timestamp.Format(TimeLayout),
			e.User,
			e.UserEmail,
			e.UserRole,
			e.Action,
			e.Item,
			e.Details,
		}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), q) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Header is the column order of every export.
var Header = []string{
	"Timestamp",
	"Performed By",
	"User Email",
	"User Role",
	"Action Performed",
	"Affected Item",
	"Details",
}

func row(e model.ActionLogEntry) []string {
	return []string{
		e.Timestamp.Format(TimeLayout),
		e.User,
		e.UserEmail,
		e.UserRole,
		e.Action,
		e.Item,
		e.Details,
	}
}
