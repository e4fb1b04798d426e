package out

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	genout "deckhand/internal/modules/generation/port/out"
	apperrors "deckhand/internal/platform/errors"
)

// FileSessionSlot persists the live session id so a restart can pick
// the run back up. The slot holds at most one session.
type FileSessionSlot struct {
	path string
}

func NewFileSessionSlot(path string) genout.SessionSlot {
	return &FileSessionSlot{path: path}
}

type slotRecord struct {
	SessionID string    `json:"session_id"`
	SavedAt   time.Time `json:"saved_at"`
}

func (s *FileSessionSlot) Save(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session id: %w", apperrors.ErrInvalidInput)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create session slot dir: %w", err)
	}
	payload, err := json.MarshalIndent(slotRecord{SessionID: sessionID, SavedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session slot: %w", err)
	}
	if err := os.WriteFile(s.path, payload, 0o644); err != nil {
		return fmt.Errorf("write session slot: %w", err)
	}
	return nil
}

func (s *FileSessionSlot) Load(_ context.Context) (string, error) {
	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.ErrNoActiveSession
		}
		return "", fmt.Errorf("read session slot: %w", err)
	}
	var record slotRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return "", fmt.Errorf("decode session slot: %w", err)
	}
	if record.SessionID == "" {
		return "", apperrors.ErrNoActiveSession
	}
	return record.SessionID, nil
}

func (s *FileSessionSlot) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("clear session slot: %w", err)
	}
	return nil
}
