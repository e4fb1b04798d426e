package in

import (
	"context"

	"deckhand/internal/modules/history/dto"
)

// Usecase is the archive surface. Record is what the generation engine
// calls when a run completes; the rest serves the history browser.
type Usecase interface {
	Record(ctx context.Context, input dto.RecordRunInput) (dto.RunView, error)
	List(ctx context.Context) ([]dto.RunView, error)
	Get(ctx context.Context, sessionID string) (dto.RunDetail, error)
	Search(ctx context.Context, query string) ([]dto.RunView, error)
	Reindex(ctx context.Context) (int, error)
}
