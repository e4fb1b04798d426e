package in

import (
	"context"

	"deckhand/internal/modules/source/dto"
	sourcein "deckhand/internal/modules/source/port/in"
)

type CLIHandler struct {
	usecase sourcein.Usecase
}

func NewCLIHandler(usecase sourcein.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Inspect(ctx context.Context, path string) (dto.InspectionView, error) {
	return h.usecase.Inspect(ctx, path)
}
