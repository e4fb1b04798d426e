package out

import (
	"context"
	"fmt"
	"os"

	sourceout "deckhand/internal/modules/source/port/out"
	apperrors "deckhand/internal/platform/errors"
	"rsc.io/pdf"
)

type LocalPDFProber struct{}

func NewLocalPDFProber() sourceout.PDFProber {
	return &LocalPDFProber{}
}

func (LocalPDFProber) PageCount(_ context.Context, path string) (int, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return 0, fmt.Errorf("source %s: %w", path, apperrors.ErrNotFound)
	}
	doc, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	return doc.NumPage(), nil
}
