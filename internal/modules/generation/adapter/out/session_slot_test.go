package out_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	genadapter "deckhand/internal/modules/generation/adapter/out"
	apperrors "deckhand/internal/platform/errors"
)

func TestFileSessionSlotRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "state", "active_generation.json")
	slot := genadapter.NewFileSessionSlot(path)

	if _, err := slot.Load(context.Background()); !errors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("missing slot must read as no active session, got %v", err)
	}
	if err := slot.Save(context.Background(), "sess-42"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := slot.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "sess-42" {
		t.Fatalf("expected sess-42, got %q", got)
	}
	if err := slot.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := slot.Load(context.Background()); !errors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("cleared slot must read as no active session, got %v", err)
	}
	if err := slot.Clear(context.Background()); err != nil {
		t.Fatalf("clearing an empty slot must be a no-op, got %v", err)
	}
}

func TestFileSessionSlotRejectsEmptyID(t *testing.T) {
	t.Parallel()
	slot := genadapter.NewFileSessionSlot(filepath.Join(t.TempDir(), "slot.json"))
	if err := slot.Save(context.Background(), ""); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("empty session id must be rejected, got %v", err)
	}
}

func TestFileSessionSlotTreatsBlankRecordAsEmpty(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "slot.json")
	if err := os.WriteFile(path, []byte(`{"session_id": ""}`), 0o644); err != nil {
		t.Fatalf("write slot file: %v", err)
	}
	slot := genadapter.NewFileSessionSlot(path)
	if _, err := slot.Load(context.Background()); !errors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("blank record must read as no active session, got %v", err)
	}
}

func TestFileSessionSlotSurfacesCorruption(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "slot.json")
	if err := os.WriteFile(path, []byte(`{"session_id": `), 0o644); err != nil {
		t.Fatalf("write slot file: %v", err)
	}
	slot := genadapter.NewFileSessionSlot(path)
	if _, err := slot.Load(context.Background()); err == nil || errors.Is(err, apperrors.ErrNoActiveSession) {
		t.Fatalf("corrupt slot must surface a real error, got %v", err)
	}
}
