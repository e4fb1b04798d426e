package out

import (
	"context"

	gendto "deckhand/internal/modules/generation/dto"
	"deckhand/internal/modules/review/domain"
)

// DraftStore is the backend's card persistence: the live draft list
// plus the archived per-session snapshots. Cards are addressed by
// position; the single-item endpoints exist so edits never race a
// concurrent full-list overwrite.
type DraftStore interface {
	Drafts(ctx context.Context, sessionID string) ([]gendto.CardView, error)
	UpdateDraft(ctx context.Context, index int, card gendto.CardView, sessionID string) error
	DeleteDraft(ctx context.Context, index int, sessionID string) error

	SessionCards(ctx context.Context, sessionID string) ([]gendto.CardView, error)
	UpdateSessionCards(ctx context.Context, sessionID string, cards []gendto.CardView) error
	DeleteSessionCard(ctx context.Context, sessionID string, index int) error
}

// AnkiGateway mutates notes that already exist in Anki.
type AnkiGateway interface {
	DeleteNotes(ctx context.Context, noteIDs []int64) error
	UpdateNoteFields(ctx context.Context, noteID int64, fields map[string]string) error
}

type SyncStream interface {
	Events() <-chan domain.SyncEvent
	Err() error
	Close() error
}

// SyncStreamer opens the push of the current drafts, or of an archived
// session's cards, to Anki.
type SyncStreamer interface {
	SyncDrafts(ctx context.Context, sessionID string) (SyncStream, error)
	SyncSession(ctx context.Context, sessionID string) (SyncStream, error)
}

// Preferences persists sticky review settings such as the sort order.
type Preferences interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
