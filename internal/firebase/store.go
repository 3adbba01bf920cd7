package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"firebase.google.com/go/v4/db"
	"firebase.google.com/go/v4/errorutils"

	"github.com/erazemk/najdeno/internal/remote"
)

// retriesExhausted is the SDK's error text when a transaction keeps losing
// to concurrent writers.
const retriesExhausted = "transaction aborted after failed retries"

// Store implements remote.Store over a Realtime Database.
type Store struct {
	client *db.Client
}

// NewStore wraps a Realtime Database client.
func NewStore(client *db.Client) *Store {
	return &Store{client: client}
}

// wrap classifies an SDK failure.
func wrap(op, path string, err error) error {
	if errorutils.IsPermissionDenied(err) || errorutils.IsUnauthenticated(err) {
		return fmt.Errorf("%s %s: %w: %w", op, path, remote.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%s %s: %w: %w", op, path, remote.ErrUnavailable, err)
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// Get implements remote.Store.
func (s *Store) Get(ctx context.Context, path string, v any) (bool, error) {
	if _, _, err := remote.Split(path); err != nil {
		return false, err
	}
	var raw json.RawMessage
	if err := s.client.NewRef(path).Get(ctx, &raw); err != nil {
		return false, wrap("reading", path, err)
	}
	if isNull(raw) {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", path, err)
	}
	return true, nil
}

// List implements remote.Store.
func (s *Store) List(ctx context.Context, collection string) (remote.Snapshot, error) {
	var raw json.RawMessage
	if err := s.client.NewRef(collection).Get(ctx, &raw); err != nil {
		return remote.Snapshot{}, wrap("listing", collection, err)
	}

	children := make(map[string]json.RawMessage)
	if !isNull(raw) {
		if err := json.Unmarshal(raw, &children); err != nil {
			return remote.Snapshot{}, fmt.Errorf("decoding %s: %w", collection, err)
		}
	}
	return remote.Snapshot{Collection: collection, Children: children}, nil
}

// Set implements remote.Store.
func (s *Store) Set(ctx context.Context, path string, v any) error {
	if _, _, err := remote.Split(path); err != nil {
		return err
	}
	if err := s.client.NewRef(path).Set(ctx, v); err != nil {
		return wrap("writing", path, err)
	}
	return nil
}

// Update implements remote.Store.
func (s *Store) Update(ctx context.Context, path string, fields map[string]any) error {
	if _, _, err := remote.Split(path); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}
	if err := s.client.NewRef(path).Update(ctx, fields); err != nil {
		return wrap("updating", path, err)
	}
	return nil
}

// Push implements remote.Store.
func (s *Store) Push(ctx context.Context, collection string, v any) (string, error) {
	ref, err := s.client.NewRef(collection).Push(ctx, v)
	if err != nil {
		return "", wrap("pushing to", collection, err)
	}
	return ref.Key, nil
}

// Delete implements remote.Store.
func (s *Store) Delete(ctx context.Context, path string) error {
	if _, _, err := remote.Split(path); err != nil {
		return err
	}
	if err := s.client.NewRef(path).Delete(ctx); err != nil {
		return wrap("deleting", path, err)
	}
	return nil
}

// Transaction implements remote.Store with the SDK's optimistic retry.
func (s *Store) Transaction(ctx context.Context, path string, fn remote.TransactionFunc) (remote.TransactionResult, error) {
	if _, _, err := remote.Split(path); err != nil {
		return remote.TransactionResult{}, err
	}

	var fnErr error
	var last any
	err := s.client.NewRef(path).Transaction(ctx, func(tn db.TransactionNode) (interface{}, error) {
		var current any
		if err := tn.Unmarshal(&current); err != nil {
			return nil, err
		}
		next, err := fn(current)
		if err != nil {
			fnErr = err
			return nil, err
		}
		last = next
		return next, nil
	})
	switch {
	case fnErr != nil:
		return remote.TransactionResult{}, fnErr
	case err != nil && err.Error() == retriesExhausted:
		return remote.TransactionResult{Committed: false}, nil
	case err != nil:
		return remote.TransactionResult{}, wrap("running transaction on", path, err)
	}

	// Report the value the way a read would return it.
	value, err := normalize(last)
	if err != nil {
		return remote.TransactionResult{}, fmt.Errorf("encoding %s: %w", path, err)
	}
	return remote.TransactionResult{Committed: true, Value: value}, nil
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
