package checkpoint

import (
	"context"
	"errors"
	"testing"

	"github.com/openlegis/govharvest/pkg/pagination"
)

func TestMemoryStore_SaveLoadClear(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Load(ctx, "congress_bills"); !errors.Is(err, ErrNoCheckpoint) {
		t.Errorf("Load() on empty store error = %v, want ErrNoCheckpoint", err)
	}

	saved := pagination.Cursor{
		Style:    pagination.StyleOffset,
		Offset:   500,
		PageSize: 250,
		HasMore:  true,
	}
	if err := store.Save(ctx, "congress_bills", saved); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx, "congress_bills")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != saved {
		t.Errorf("Load() = %+v, want %+v", got, saved)
	}

	// Each source has its own slot.
	if _, err := store.Load(ctx, "govinfo_BILLS"); !errors.Is(err, ErrNoCheckpoint) {
		t.Errorf("Load() of unrelated source error = %v, want ErrNoCheckpoint", err)
	}

	if err := store.Clear(ctx, "congress_bills"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if _, err := store.Load(ctx, "congress_bills"); !errors.Is(err, ErrNoCheckpoint) {
		t.Errorf("Load() after Clear error = %v, want ErrNoCheckpoint", err)
	}
}

func TestMemoryStore_CompletedCursorRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	done := pagination.Cursor{
		Style:    pagination.StyleToken,
		Token:    "",
		PageSize: 100,
		HasMore:  false,
	}
	if err := store.Save(ctx, "src", done); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx, "src")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.HasMore {
		t.Error("completed cursor lost its terminal flag")
	}
}

func TestNewRedisStore_RequiresClient(t *testing.T) {
	if _, err := NewRedisStore(nil); err == nil {
		t.Error("NewRedisStore(nil) should fail")
	}
}
