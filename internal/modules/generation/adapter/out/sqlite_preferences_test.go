package out_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"deckhand/internal/modules/generation/adapter/out"
	apperrors "deckhand/internal/platform/errors"
	"deckhand/internal/platform/sqlite"
)

func openPrefs(t *testing.T) *out.SQLitePreferences {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "deckhand.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	prefs, err := out.NewSQLitePreferences(db)
	if err != nil {
		t.Fatalf("new preferences: %v", err)
	}
	return prefs
}

func TestPreferencesRoundTrip(t *testing.T) {
	t.Parallel()

	prefs := openPrefs(t)
	ctx := context.Background()

	if err := prefs.Set(ctx, "source_type", "pdf"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := prefs.Get(ctx, "source_type")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "pdf" {
		t.Fatalf("value = %q, want pdf", got)
	}
}

func TestPreferencesMissingKeyIsNotFound(t *testing.T) {
	t.Parallel()

	_, err := openPrefs(t).Get(context.Background(), "never_set")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPreferencesSetOverwrites(t *testing.T) {
	t.Parallel()

	prefs := openPrefs(t)
	ctx := context.Background()

	if err := prefs.Set(ctx, "review_sort", "recent"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := prefs.Set(ctx, "review_sort", "slide"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := prefs.Get(ctx, "review_sort")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "slide" {
		t.Fatalf("value = %q, want slide", got)
	}
}
