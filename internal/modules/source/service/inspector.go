package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"deckhand/internal/modules/source/domain"
	sourceout "deckhand/internal/modules/source/port/out"
	apperrors "deckhand/internal/platform/errors"
)

type Inspector struct {
	files sourceout.FileProber
	pdfs  sourceout.PDFProber
}

func NewInspector(files sourceout.FileProber, pdfs sourceout.PDFProber) *Inspector {
	return &Inspector{files: files, pdfs: pdfs}
}

// Inspect probes a source file. PDFs get an exact page count; text and
// markdown get a line-derived estimate. A PDF that cannot be parsed
// fails the inspection, since the backend would reject it too.
func (s *Inspector) Inspect(ctx context.Context, path string) (domain.Inspection, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return domain.Inspection{}, fmt.Errorf("source path is required: %w", apperrors.ErrInvalidInput)
	}
	kind, ok := domain.KindForPath(path)
	if !ok {
		return domain.Inspection{}, fmt.Errorf("unsupported source file %q: %w", filepath.Ext(path), apperrors.ErrInvalidInput)
	}

	size, err := s.files.Size(ctx, path)
	if err != nil {
		return domain.Inspection{}, err
	}

	insp := domain.Inspection{
		Path:      path,
		Title:     domain.TitleFromPath(path),
		Kind:      kind,
		SizeBytes: size,
	}
	switch kind {
	case domain.KindPDF:
		pages, err := s.pdfs.PageCount(ctx, path)
		if err != nil {
			return domain.Inspection{}, err
		}
		insp.Pages = pages
		insp.PagesExact = true
	default:
		lines, err := s.files.Lines(ctx, path)
		if err != nil {
			return domain.Inspection{}, err
		}
		insp.Lines = lines
		insp.Pages = domain.EstimatePages(lines)
	}
	return insp, nil
}
