package store

import (
	"context"
	"testing"

	"github.com/erazemk/najdeno/internal/db"
)

func TestGetSecret_GeneratesAndPersists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	secret1, err := GetSecret(ctx, database, SessionSecret)
	if err != nil {
		t.Fatal(err)
	}
	if len(secret1) != 64 { // 32 bytes = 64 hex chars
		t.Fatalf("expected 64 hex chars, got %d", len(secret1))
	}

	// Second call should return the same secret.
	secret2, err := GetSecret(ctx, database, SessionSecret)
	if err != nil {
		t.Fatal(err)
	}
	if secret1 != secret2 {
		t.Fatalf("expected same secret, got %q and %q", secret1, secret2)
	}

	// A different name gets its own secret.
	reset, err := GetSecret(ctx, database, ResetSecret)
	if err != nil {
		t.Fatal(err)
	}
	if reset == secret1 {
		t.Fatal("expected distinct secrets per name")
	}
}
