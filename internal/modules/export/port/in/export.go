package in

import (
	"context"

	"deckhand/internal/modules/export/dto"
)

// Usecase drives card exports through registered exporter binaries.
type Usecase interface {
	List(ctx context.Context) ([]dto.ExporterInfo, error)
	Doctor(ctx context.Context) ([]dto.DoctorResult, error)
	ListFormats(ctx context.Context) ([]dto.FormatInfo, error)
	Export(ctx context.Context, input dto.ExportInput) (dto.ExportOutput, error)
}
