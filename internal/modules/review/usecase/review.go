package usecase

import (
	"context"
	"fmt"

	gendto "deckhand/internal/modules/generation/dto"
	"deckhand/internal/modules/review/domain"
	"deckhand/internal/modules/review/dto"
	reviewin "deckhand/internal/modules/review/port/in"
	"deckhand/internal/modules/review/service"
	apperrors "deckhand/internal/platform/errors"
)

// Interactor exposes the review services behind the inbound port and
// maps between domain state and transport views.
type Interactor struct {
	engine  service.Engine
	store   *service.Store
	manager *service.Manager
	syncer  *service.Syncer
}

func NewInteractor(engine service.Engine, store *service.Store, manager *service.Manager, syncer *service.Syncer) reviewin.Usecase {
	return &Interactor{engine: engine, store: store, manager: manager, syncer: syncer}
}

func (i *Interactor) Edit(ctx context.Context, index int) error {
	return i.manager.Edit(ctx, index)
}

func (i *Interactor) SetBuffer(card gendto.CardView) error {
	return i.manager.SetBuffer(card)
}

func (i *Interactor) Commit(ctx context.Context) error {
	return i.manager.Commit(ctx)
}

func (i *Interactor) CancelEdit(ctx context.Context) error {
	i.manager.CancelEdit()
	return nil
}

func (i *Interactor) Delete(ctx context.Context, index int) error {
	return i.manager.Delete(ctx, index)
}

func (i *Interactor) DeleteFromAnki(ctx context.Context, index int) error {
	return i.manager.DeleteFromAnki(ctx, index)
}

func (i *Interactor) Sync(ctx context.Context) error {
	return i.syncer.Sync(ctx)
}

func (i *Interactor) SetSortMode(ctx context.Context, mode string) error {
	m, ok := domain.ParseSortMode(mode)
	if !ok {
		return fmt.Errorf("sort mode %q: %w", mode, apperrors.ErrInvalidInput)
	}
	i.store.SetSortMode(ctx, m)
	return nil
}

func (i *Interactor) SetQuery(query string) {
	i.store.SetQuery(query)
}

func (i *Interactor) Cards(ctx context.Context, sessionID string) (string, []gendto.CardView, error) {
	return i.manager.CardSet(ctx, sessionID)
}

func (i *Interactor) Snapshot() dto.Snapshot {
	snap := i.engine.Snapshot()
	mode := i.store.SortMode()
	query := i.store.Query()

	entries := service.Arrange(snap.Cards, query, mode)
	out := dto.Snapshot{
		Entries:  make([]dto.Entry, len(entries)),
		SortMode: string(mode),
		Query:    query,
	}
	for k, e := range entries {
		out.Entries[k] = dto.Entry{Index: e.Index, Card: e.Card}
	}

	if buf, index, editing := i.store.Editing(); editing {
		out.Editing = true
		out.EditIndex = index
		out.Buffer = buf
	}

	st := i.store.SyncState()
	out.Sync = dto.SyncView{
		Running: st.Running,
		Current: st.Current,
		Total:   st.Total,
		Synced:  st.Synced,
		Failed:  st.Failed,
		Done:    st.Done,
		Message: st.Message,
	}
	return out
}

func (i *Interactor) Close() {
	i.syncer.Close()
}
