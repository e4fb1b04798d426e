package out

import (
	"context"

	"deckhand/internal/modules/history/domain"
)

// RunStore keeps the archive notes; one markdown file per run, the
// frontmatter authoritative, the body free for the user. Save keeps an
// existing body when the incoming document carries none.
type RunStore interface {
	Save(ctx context.Context, document domain.RunDocument) (string, error)
	FindBySession(ctx context.Context, sessionID string) (domain.RunDocument, error)
	List(ctx context.Context) ([]domain.RunDocument, error)
}

// RunIndex is the queryable projection of the notes. Rebuild replaces
// the whole index atomically.
type RunIndex interface {
	Upsert(ctx context.Context, run domain.Run) error
	Search(ctx context.Context, query string) ([]domain.Run, error)
	Rebuild(ctx context.Context, runs []domain.Run) error
}
