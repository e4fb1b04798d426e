package out

import "context"

// FileProber reads cheap facts off a local file. Size returns
// apperrors.ErrNotFound for missing paths.
type FileProber interface {
	Size(ctx context.Context, path string) (int64, error)
	Lines(ctx context.Context, path string) (int, error)
}

// PDFProber opens a PDF far enough to count its pages.
type PDFProber interface {
	PageCount(ctx context.Context, path string) (int, error)
}
