package orders

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

// Runs against a real database when GLAZE_TEST_DATABASE_URL is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("GLAZE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("GLAZE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	defer store.Close()

	id := uuid.NewString()
	key := "checkout:" + id
	email := id + "@glaze.test"
	o := sampleOrder(id, email, time.Now().UTC().Truncate(time.Second))

	created, err := store.CreateOnce(ctx, key, o)
	if err != nil || !created {
		t.Fatalf("CreateOnce: created=%v err=%v", created, err)
	}
	created, err = store.CreateOnce(ctx, key, sampleOrder(uuid.NewString(), email, time.Now()))
	if err != nil || created {
		t.Fatalf("duplicate key: created=%v err=%v", created, err)
	}

	mine, err := store.ListByCustomer(ctx, email)
	if err != nil || len(mine) != 1 {
		t.Fatalf("ListByCustomer: %d %v", len(mine), err)
	}
	if _, err := SetStatus(ctx, store, id, StatusProcessing); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if err := store.UpdateStatus(ctx, id, StatusPending, StatusShipped); err != ErrStatusMismatch {
		t.Fatalf("expected ErrStatusMismatch, got %v", err)
	}
}
