package out

import (
	"context"

	genout "deckhand/internal/modules/generation/port/out"
	historydto "deckhand/internal/modules/history/dto"
	historyin "deckhand/internal/modules/history/port/in"
)

// HistoryRecorder archives completed runs through the history module.
type HistoryRecorder struct {
	history historyin.Usecase
}

func NewHistoryRecorder(history historyin.Usecase) genout.RunRecorder {
	return &HistoryRecorder{history: history}
}

func (r *HistoryRecorder) RecordCompleted(ctx context.Context, run genout.CompletedRun) error {
	_, err := r.history.Record(ctx, historydto.RecordRunInput{
		SessionID:  run.SessionID,
		DeckName:   run.DeckName,
		SourceFile: run.SourceFile,
		CardCount:  run.CardCount,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	})
	return err
}
