package usecase

import (
	"context"

	"deckhand/internal/modules/history/domain"
	"deckhand/internal/modules/history/dto"
	historyin "deckhand/internal/modules/history/port/in"
	"deckhand/internal/modules/history/service"
)

type Interactor struct {
	svc *service.RunService
}

func NewInteractor(svc *service.RunService) historyin.Usecase {
	return &Interactor{svc: svc}
}

func (i *Interactor) Record(ctx context.Context, input dto.RecordRunInput) (dto.RunView, error) {
	run, err := i.svc.Record(ctx, domain.Run{
		SessionID:  input.SessionID,
		DeckName:   input.DeckName,
		SourceFile: input.SourceFile,
		CardCount:  input.CardCount,
		StartedAt:  input.StartedAt,
		FinishedAt: input.FinishedAt,
	})
	if err != nil {
		return dto.RunView{}, err
	}
	return toRunView(run), nil
}

func (i *Interactor) List(ctx context.Context) ([]dto.RunView, error) {
	runs, err := i.svc.List(ctx)
	if err != nil {
		return nil, err
	}
	return toRunViews(runs), nil
}

func (i *Interactor) Get(ctx context.Context, sessionID string) (dto.RunDetail, error) {
	doc, err := i.svc.Get(ctx, sessionID)
	if err != nil {
		return dto.RunDetail{}, err
	}
	return dto.RunDetail{RunView: toRunView(doc.Run), Body: doc.Body}, nil
}

func (i *Interactor) Search(ctx context.Context, query string) ([]dto.RunView, error) {
	runs, err := i.svc.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	return toRunViews(runs), nil
}

func (i *Interactor) Reindex(ctx context.Context) (int, error) {
	return i.svc.Reindex(ctx)
}

func toRunView(run domain.Run) dto.RunView {
	return dto.RunView{
		SessionID:  run.SessionID,
		DeckName:   run.DeckName,
		SourceFile: run.SourceFile,
		CardCount:  run.CardCount,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		NotePath:   run.NotePath,
	}
}

func toRunViews(runs []domain.Run) []dto.RunView {
	out := make([]dto.RunView, 0, len(runs))
	for _, run := range runs {
		out = append(out, toRunView(run))
	}
	return out
}
