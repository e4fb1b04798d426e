package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	gendto "deckhand/internal/modules/generation/dto"
	reviewout "deckhand/internal/modules/review/port/out"
	apperrors "deckhand/internal/platform/errors"
)

// Engine is the slice of the generation module the review workflow
// drives: the authoritative card list and its mutators.
type Engine interface {
	Snapshot() gendto.Snapshot
	UpdateCard(ctx context.Context, index int, card gendto.CardView) error
	RemoveCard(ctx context.Context, index int) error
	ReplaceCards(ctx context.Context, cards []gendto.CardView) error
}

// Manager applies edits and deletions. The engine's list is written
// first and stays the source of truth; the draft store and Anki are
// brought along afterwards, and a failure there is surfaced but never
// rolls the local change back.
type Manager struct {
	engine Engine
	drafts reviewout.DraftStore
	anki   reviewout.AnkiGateway
	store  *Store
	logger *zap.Logger
}

func NewManager(engine Engine, drafts reviewout.DraftStore, anki reviewout.AnkiGateway, store *Store, logger *zap.Logger) *Manager {
	return &Manager{engine: engine, drafts: drafts, anki: anki, store: store, logger: logger}
}

func (m *Manager) Edit(ctx context.Context, index int) error {
	snap := m.engine.Snapshot()
	if index < 0 || index >= len(snap.Cards) {
		return fmt.Errorf("card %d: %w", index, apperrors.ErrNotFound)
	}
	m.store.BeginEdit(index, snap.Cards[index])
	return nil
}

func (m *Manager) SetBuffer(card gendto.CardView) error {
	if !m.store.SetBuffer(card) {
		return fmt.Errorf("no edit in progress: %w", apperrors.ErrInvalidInput)
	}
	return nil
}

func (m *Manager) CancelEdit() {
	m.store.EndEdit()
}

// Commit writes the buffer to the engine, then to the draft store, and
// to Anki when the card is already linked to a note. The two outward
// writes are both attempted even if the first fails.
func (m *Manager) Commit(ctx context.Context) error {
	index, card, ok := m.store.TakeEdit()
	if !ok {
		return nil
	}
	if err := m.engine.UpdateCard(ctx, index, card); err != nil {
		return err
	}

	snap := m.engine.Snapshot()
	var errs []error
	if err := m.persistCard(ctx, snap, index, card); err != nil {
		m.logger.Warn("persist card edit", zap.Int("index", index), zap.Error(err))
		errs = append(errs, err)
	}
	if card.Synced() {
		if err := m.anki.UpdateNoteFields(ctx, card.AnkiNoteID, noteFields(card)); err != nil {
			m.logger.Warn("update anki note", zap.Int64("note_id", card.AnkiNoteID), zap.Error(err))
			errs = append(errs, fmt.Errorf("update anki note %d: %w", card.AnkiNoteID, err))
		}
	}
	return errors.Join(errs...)
}

// Delete removes the card locally and then from the draft store. The
// backend deletion addresses the slot the card held before removal.
func (m *Manager) Delete(ctx context.Context, index int) error {
	snap := m.engine.Snapshot()
	if index < 0 || index >= len(snap.Cards) {
		return fmt.Errorf("card %d: %w", index, apperrors.ErrNotFound)
	}
	if err := m.engine.RemoveCard(ctx, index); err != nil {
		return err
	}

	var err error
	if snap.Historical {
		err = m.drafts.DeleteSessionCard(ctx, snap.SessionID, index)
	} else {
		err = m.drafts.DeleteDraft(ctx, index, snap.SessionID)
	}
	if err != nil {
		m.logger.Warn("delete draft", zap.Int("index", index), zap.Error(err))
		return fmt.Errorf("delete draft %d: %w", index, err)
	}
	return nil
}

// DeleteFromAnki removes the note in Anki and clears the card's link,
// keeping the draft. Here the external write goes first: the link is
// only stripped once Anki has confirmed the note is gone.
func (m *Manager) DeleteFromAnki(ctx context.Context, index int) error {
	snap := m.engine.Snapshot()
	if index < 0 || index >= len(snap.Cards) {
		return fmt.Errorf("card %d: %w", index, apperrors.ErrNotFound)
	}
	card := snap.Cards[index]
	if !card.Synced() {
		return fmt.Errorf("card %d not in anki: %w", index, apperrors.ErrInvalidInput)
	}
	if err := m.anki.DeleteNotes(ctx, []int64{card.AnkiNoteID}); err != nil {
		return fmt.Errorf("delete anki note %d: %w", card.AnkiNoteID, err)
	}

	card.AnkiNoteID = 0
	if err := m.engine.UpdateCard(ctx, index, card); err != nil {
		return err
	}
	if err := m.persistCard(ctx, m.engine.Snapshot(), index, card); err != nil {
		m.logger.Warn("persist unlinked card", zap.Int("index", index), zap.Error(err))
		return err
	}
	return nil
}

// CardSet returns the cards under review. An empty sessionID, or the
// session the engine currently holds, reads the live set; any other
// session is fetched from the archived store and carries no deck name.
func (m *Manager) CardSet(ctx context.Context, sessionID string) (string, []gendto.CardView, error) {
	snap := m.engine.Snapshot()
	if sessionID == "" || sessionID == snap.SessionID {
		return snap.DeckName, snap.Cards, nil
	}
	cards, err := m.drafts.SessionCards(ctx, sessionID)
	if err != nil {
		return "", nil, fmt.Errorf("load session cards: %w", err)
	}
	return "", cards, nil
}

func (m *Manager) persistCard(ctx context.Context, snap gendto.Snapshot, index int, card gendto.CardView) error {
	if snap.Historical {
		return m.drafts.UpdateSessionCards(ctx, snap.SessionID, snap.Cards)
	}
	return m.drafts.UpdateDraft(ctx, index, card, snap.SessionID)
}

// noteFields maps a card onto Anki note fields. Cards carrying an
// explicit field map use it as is; plain cards fall back to the basic
// front/back layout.
func noteFields(card gendto.CardView) map[string]string {
	if len(card.Fields) > 0 {
		fields := make(map[string]string, len(card.Fields))
		for k, v := range card.Fields {
			fields[k] = v
		}
		return fields
	}
	return map[string]string{"Front": card.Front, "Back": card.Back}
}
