package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"deckhand/internal/modules/history/domain"
	historyout "deckhand/internal/modules/history/port/out"
	"deckhand/internal/platform/slug"
)

type RunService struct {
	store historyout.RunStore
	index historyout.RunIndex
}

func NewRunService(store historyout.RunStore, index historyout.RunIndex) *RunService {
	return &RunService{store: store, index: index}
}

// Record archives one completed run. The slug folds the session id in,
// so two runs against the same deck never share a note file.
func (s *RunService) Record(ctx context.Context, run domain.Run) (domain.Run, error) {
	if strings.TrimSpace(run.Slug) == "" {
		run.Slug = slug.Make(run.DeckName + " " + run.SessionID)
	}
	if err := run.Validate(); err != nil {
		return domain.Run{}, err
	}
	path, err := s.store.Save(ctx, domain.RunDocument{Run: run})
	if err != nil {
		return domain.Run{}, err
	}
	run.NotePath = path
	if err := s.index.Upsert(ctx, run); err != nil {
		return domain.Run{}, fmt.Errorf("index run: %w", err)
	}
	return run, nil
}

func (s *RunService) List(ctx context.Context) ([]domain.Run, error) {
	docs, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	runs := make([]domain.Run, 0, len(docs))
	for _, doc := range docs {
		runs = append(runs, doc.Run)
	}
	sort.SliceStable(runs, func(a, b int) bool {
		return runs[a].FinishedAt.After(runs[b].FinishedAt)
	})
	return runs, nil
}

func (s *RunService) Get(ctx context.Context, sessionID string) (domain.RunDocument, error) {
	return s.store.FindBySession(ctx, sessionID)
}

func (s *RunService) Search(ctx context.Context, query string) ([]domain.Run, error) {
	return s.index.Search(ctx, strings.TrimSpace(query))
}

// Reindex rebuilds the projection from the notes on disk and reports
// how many runs it indexed.
func (s *RunService) Reindex(ctx context.Context) (int, error) {
	docs, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	runs := make([]domain.Run, 0, len(docs))
	for _, doc := range docs {
		runs = append(runs, doc.Run)
	}
	if err := s.index.Rebuild(ctx, runs); err != nil {
		return 0, err
	}
	return len(runs), nil
}
