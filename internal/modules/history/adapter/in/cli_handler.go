package in

import (
	"context"

	"deckhand/internal/modules/history/dto"
	historyin "deckhand/internal/modules/history/port/in"
)

type CLIHandler struct {
	usecase historyin.Usecase
}

func NewCLIHandler(usecase historyin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) List(ctx context.Context) ([]dto.RunView, error) {
	return h.usecase.List(ctx)
}

func (h CLIHandler) Get(ctx context.Context, sessionID string) (dto.RunDetail, error) {
	return h.usecase.Get(ctx, sessionID)
}

func (h CLIHandler) Search(ctx context.Context, query string) ([]dto.RunView, error) {
	return h.usecase.Search(ctx, query)
}

func (h CLIHandler) Reindex(ctx context.Context) (int, error) {
	return h.usecase.Reindex(ctx)
}
