package in

import (
	"context"

	gendto "deckhand/internal/modules/generation/dto"
	"deckhand/internal/modules/review/dto"
)

// Usecase drives the post-generation review workflow: editing and
// deleting drafts, pushing them to Anki, and shaping the list for
// display. Edits go to the engine's card list first and to the backend
// after; a backend failure is surfaced but never rolls the local copy
// back.
type Usecase interface {
	Edit(ctx context.Context, index int) error
	SetBuffer(card gendto.CardView) error
	Commit(ctx context.Context) error
	CancelEdit(ctx context.Context) error

	Delete(ctx context.Context, index int) error
	DeleteFromAnki(ctx context.Context, index int) error

	Sync(ctx context.Context) error

	SetSortMode(ctx context.Context, mode string) error
	SetQuery(query string)

	// Cards returns the deck name and unfiltered card set: the one under
	// review, or an archived session's when sessionID names another.
	// Archived sets come back without a deck name.
	Cards(ctx context.Context, sessionID string) (string, []gendto.CardView, error)

	Snapshot() dto.Snapshot
	Close()
}
