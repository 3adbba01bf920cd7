// Package remote defines the path-addressed document store every record
// collection lives in, plus change subscriptions on top of it.
//
// Paths have exactly two segments, "collection/key". Values are anything
// that encodes to JSON; absent fields decode to their zero value.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Collections.
const (
	Users      = "users"
	LostItems  = "lostItems"
	FoundItems = "foundItems"
	ActionLogs = "actionLogs"
	Counters   = "counters"
)

// Store errors. Backends wrap their own failures with one of these so callers
// can map them to retry guidance without knowing the backend.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnavailable      = errors.New("data store unavailable")
)

// TransactionFunc receives the current value at a path (nil when absent,
// JSON numbers as float64) and returns the value to commit. Returning an
// error aborts the transaction. The function may run more than once.
type TransactionFunc func(current any) (any, error)

// TransactionResult reports whether a transaction committed and the value it
// committed.
type TransactionResult struct {
	Committed bool
	Value     any
}

// Store is the capability set the application needs from a data store.
type Store interface {
	// Get decodes the value at path into v. It reports false when the path
	// holds no value.
	Get(ctx context.Context, path string, v any) (bool, error)
	// List reads every child of a collection once.
	List(ctx context.Context, collection string) (Snapshot, error)
	// Set replaces the value at path.
	Set(ctx context.Context, path string, v any) error
	// Update merges fields into the value at path. A nil field value removes
	// that field.
	Update(ctx context.Context, path string, fields map[string]any) error
	// Push stores v under a newly generated key and returns the key.
	Push(ctx context.Context, collection string, v any) (string, error)
	// Delete removes the value at path. Deleting an absent path is not an error.
	Delete(ctx context.Context, path string) error
	// Transaction atomically replaces the value at path with fn's result.
	// Concurrent transactions on one path never both commit against the same
	// current value. Committed is false when the store gave up retrying.
	Transaction(ctx context.Context, path string, fn TransactionFunc) (TransactionResult, error)
}

// Join builds a path from a collection and key.
func Join(collection, key string) string {
	return collection + "/" + key
}

// Split breaks a path into its collection and key.
func Split(path string) (collection, key string, err error) {
	collection, key, ok := strings.Cut(path, "/")
	if !ok || collection == "" || key == "" || strings.Contains(key, "/") {
		return "", "", fmt.Errorf("invalid path %q", path)
	}
	return collection, key, nil
}

// Message converts a store failure into retry guidance for end users.
func Message(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "You do not have permission to perform this action."
	case errors.Is(err, ErrUnavailable):
		return "The service is temporarily unavailable. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
