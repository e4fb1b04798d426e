package out

import (
	"context"

	"deckhand/internal/modules/export/domain"
)

type ManifestStore interface {
	Load(ctx context.Context) ([]domain.Manifest, error)
}

// Host speaks to one exporter binary per call. Processes are started
// fresh for each call and killed when it returns.
type Host interface {
	CheckLifecycle(ctx context.Context, manifest domain.Manifest) error
	GetMetadata(ctx context.Context, manifest domain.Manifest) (domain.Metadata, error)
	ListFormats(ctx context.Context, manifest domain.Manifest) ([]domain.FormatDescriptor, error)
	Export(ctx context.Context, manifest domain.Manifest, input domain.ExportRequest) (domain.ExportResult, error)
}

// CardSource supplies the cards to export: the set under review when
// sessionID is empty, otherwise an archived session's.
type CardSource interface {
	Cards(ctx context.Context, sessionID string) (domain.CardSet, error)
}
