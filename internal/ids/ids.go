// Package ids mints human-readable sequential identifiers (Lost001,
// User002, ...) from counters kept in the data store.
package ids

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/erazemk/najdeno/internal/remote"
)

// Kind names a counter.
type Kind string

// Counter kinds.
const (
	LostItems  Kind = remote.LostItems
	Users      Kind = remote.Users
	FoundItems Kind = remote.FoundItems
)

// ErrNotCommitted is returned when the counter transaction gave up.
var ErrNotCommitted = errors.New("counter transaction not committed")

type kindInfo struct {
	prefix string
	label  string
}

var kinds = map[Kind]kindInfo{
	LostItems:  {prefix: "Lost", label: "Lost Item"},
	Users:      {prefix: "User", label: "User"},
	FoundItems: {prefix: "Found", label: "Found Item"},
}

// ReserveError is returned when a new ID could not be reserved. The dependent
// record must not be created.
type ReserveError struct {
	Kind Kind
	Err  error
}

func (e *ReserveError) Error() string {
	return fmt.Sprintf("Unable to reserve a new %s ID. Please try again.", kinds[e.Kind].label)
}

func (e *ReserveError) Unwrap() error { return e.Err }

// Next computes the counter value that follows current. Absent, non-numeric,
// NaN and negative values count as 0; fractions are dropped.
func Next(current any) float64 {
	n, ok := current.(float64)
	if !ok || math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return 1
	}
	return math.Floor(n) + 1
}

// Format renders a counter value as a kind's identifier, zero-padded to at
// least three digits.
func Format(kind Kind, n int64) string {
	return fmt.Sprintf("%s%03d", kinds[kind].prefix, n)
}

// Reserve atomically increments kind's counter and returns the formatted
// identifier for the new value.
func Reserve(ctx context.Context, store remote.Store, kind Kind) (string, error) {
	if _, ok := kinds[kind]; !ok {
		return "", fmt.Errorf("unknown id kind %q", kind)
	}

	res, err := store.Transaction(ctx, remote.Join(remote.Counters, string(kind)), func(current any) (any, error) {
		return Next(current), nil
	})
	if err != nil {
		return "", &ReserveError{Kind: kind, Err: err}
	}
	if !res.Committed {
		return "", &ReserveError{Kind: kind, Err: ErrNotCommitted}
	}

	n, ok := res.Value.(float64)
	if !ok {
		return "", &ReserveError{Kind: kind, Err: fmt.Errorf("unexpected counter value %v", res.Value)}
	}
	return Format(kind, int64(n)), nil
}
