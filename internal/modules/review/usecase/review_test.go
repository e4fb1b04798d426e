package usecase_test

import (
	"context"
	"errors"
	"testing"

	gendto "deckhand/internal/modules/generation/dto"
	"deckhand/internal/modules/review/domain"
	reviewin "deckhand/internal/modules/review/port/in"
	reviewout "deckhand/internal/modules/review/port/out"
	"deckhand/internal/modules/review/service"
	"deckhand/internal/modules/review/usecase"
	apperrors "deckhand/internal/platform/errors"
	"deckhand/internal/platform/logging"
)

type stubEngine struct {
	cards []gendto.CardView
}

func (s *stubEngine) Snapshot() gendto.Snapshot {
	return gendto.Snapshot{Cards: s.cards, SessionID: "abc"}
}

func (s *stubEngine) UpdateCard(_ context.Context, index int, card gendto.CardView) error {
	if index < 0 || index >= len(s.cards) {
		return apperrors.ErrNotFound
	}
	s.cards[index] = card
	return nil
}

func (s *stubEngine) RemoveCard(_ context.Context, index int) error {
	s.cards = append(s.cards[:index], s.cards[index+1:]...)
	return nil
}

func (s *stubEngine) ReplaceCards(_ context.Context, cards []gendto.CardView) error {
	s.cards = cards
	return nil
}

type nullDrafts struct{}

func (nullDrafts) Drafts(context.Context, string) ([]gendto.CardView, error) { return nil, nil }
func (nullDrafts) UpdateDraft(context.Context, int, gendto.CardView, string) error {
	return nil
}
func (nullDrafts) DeleteDraft(context.Context, int, string) error { return nil }
func (nullDrafts) SessionCards(context.Context, string) ([]gendto.CardView, error) {
	return nil, nil
}
func (nullDrafts) UpdateSessionCards(context.Context, string, []gendto.CardView) error {
	return nil
}
func (nullDrafts) DeleteSessionCard(context.Context, string, int) error { return nil }

type nullAnki struct{}

func (nullAnki) DeleteNotes(context.Context, []int64) error { return nil }
func (nullAnki) UpdateNoteFields(context.Context, int64, map[string]string) error {
	return nil
}

type nullStreamer struct{}

func (nullStreamer) SyncDrafts(context.Context, string) (reviewout.SyncStream, error) {
	return nil, errors.New("no backend")
}

func (nullStreamer) SyncSession(context.Context, string) (reviewout.SyncStream, error) {
	return nil, errors.New("no backend")
}

func newReview(t *testing.T, engine *stubEngine) reviewin.Usecase {
	t.Helper()
	store := service.NewStore(nil)
	manager := service.NewManager(engine, nullDrafts{}, nullAnki{}, store, logging.Nop())
	syncer := service.NewSyncer(engine, nullDrafts{}, nullStreamer{}, store, logging.Nop())
	uc := usecase.NewInteractor(engine, store, manager, syncer)
	t.Cleanup(uc.Close)
	return uc
}

func TestSnapshotAppliesSortQueryAndEditState(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{cards: []gendto.CardView{
		{Front: "zygote", SlideNumber: 9},
		{Front: "Axon", SlideNumber: 2},
		{Front: "axiom", SlideNumber: 5},
	}}
	uc := newReview(t, engine)
	ctx := context.Background()

	if err := uc.SetSortMode(ctx, "front"); err != nil {
		t.Fatalf("set sort mode: %v", err)
	}
	uc.SetQuery("ax")
	if err := uc.Edit(ctx, 0); err != nil {
		t.Fatalf("edit: %v", err)
	}

	snap := uc.Snapshot()
	if snap.SortMode != "front" || snap.Query != "ax" {
		t.Fatalf("view settings = %q / %q", snap.SortMode, snap.Query)
	}
	if len(snap.Entries) != 2 {
		t.Fatalf("entries = %d, want the two ax cards", len(snap.Entries))
	}
	if snap.Entries[0].Card.Front != "axiom" || snap.Entries[1].Card.Front != "Axon" {
		t.Fatalf("order = %q, %q", snap.Entries[0].Card.Front, snap.Entries[1].Card.Front)
	}
	if snap.Entries[0].Index != 2 || snap.Entries[1].Index != 1 {
		t.Fatalf("indices = %d, %d", snap.Entries[0].Index, snap.Entries[1].Index)
	}
	if !snap.Editing || snap.EditIndex != 0 || snap.Buffer.Front != "zygote" {
		t.Fatalf("edit state = %v/%d/%q", snap.Editing, snap.EditIndex, snap.Buffer.Front)
	}
}

func TestSetSortModeRejectsUnknownModes(t *testing.T) {
	t.Parallel()

	uc := newReview(t, &stubEngine{})
	err := uc.SetSortMode(context.Background(), "by vibes")
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	if got := uc.Snapshot().SortMode; got != string(domain.SortRecent) {
		t.Fatalf("mode = %q, want untouched default", got)
	}
}

func TestEditCommitRoundTripThroughThePort(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{cards: []gendto.CardView{{Front: "before", Back: "b"}}}
	uc := newReview(t, engine)
	ctx := context.Background()

	if err := uc.Edit(ctx, 0); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if err := uc.SetBuffer(gendto.CardView{Front: "after", Back: "b"}); err != nil {
		t.Fatalf("set buffer: %v", err)
	}
	if err := uc.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	snap := uc.Snapshot()
	if snap.Editing {
		t.Fatal("commit should close the edit")
	}
	if engine.cards[0].Front != "after" {
		t.Fatalf("card = %q", engine.cards[0].Front)
	}
}

func TestCancelEditKeepsTheCard(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{cards: []gendto.CardView{{Front: "keep"}}}
	uc := newReview(t, engine)
	ctx := context.Background()

	if err := uc.Edit(ctx, 0); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if err := uc.SetBuffer(gendto.CardView{Front: "discarded"}); err != nil {
		t.Fatalf("set buffer: %v", err)
	}
	if err := uc.CancelEdit(ctx); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if engine.cards[0].Front != "keep" {
		t.Fatalf("card = %q, want untouched", engine.cards[0].Front)
	}
}
