package in

import (
	"context"

	"deckhand/internal/modules/source/dto"
)

// Usecase answers "what is this file" before a job is submitted:
// format, size and page count, without touching the backend.
type Usecase interface {
	Inspect(ctx context.Context, path string) (dto.InspectionView, error)
}
