package in

import (
	"context"
	"time"

	gendto "deckhand/internal/modules/generation/dto"
	"deckhand/internal/modules/review/dto"
	reviewin "deckhand/internal/modules/review/port/in"
)

type CLIHandler struct {
	usecase reviewin.Usecase
}

func NewCLIHandler(usecase reviewin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

func (h CLIHandler) Cards(ctx context.Context, sessionID string) (string, []gendto.CardView, error) {
	return h.usecase.Cards(ctx, sessionID)
}

// EditCard runs the buffered edit round trip in one call: begin the
// edit, overlay the changed fields, commit. Empty fields keep the
// card's current value; tags replace the whole set when given.
func (h CLIHandler) EditCard(ctx context.Context, index int, front, back string, tags []string) error {
	if err := h.usecase.Edit(ctx, index); err != nil {
		return err
	}
	buf := h.usecase.Snapshot().Buffer
	if front != "" {
		buf.Front = front
	}
	if back != "" {
		buf.Back = back
	}
	if tags != nil {
		buf.Tags = tags
	}
	if err := h.usecase.SetBuffer(buf); err != nil {
		_ = h.usecase.CancelEdit(ctx)
		return err
	}
	return h.usecase.Commit(ctx)
}

func (h CLIHandler) Delete(ctx context.Context, index int) error {
	return h.usecase.Delete(ctx, index)
}

func (h CLIHandler) DeleteFromAnki(ctx context.Context, index int) error {
	return h.usecase.DeleteFromAnki(ctx, index)
}

func (h CLIHandler) Sync(ctx context.Context) error {
	return h.usecase.Sync(ctx)
}

func (h CLIHandler) SetSortMode(ctx context.Context, mode string) error {
	return h.usecase.SetSortMode(ctx, mode)
}

func (h CLIHandler) Snapshot() dto.Snapshot {
	return h.usecase.Snapshot()
}

// WaitForSync blocks until the running push reaches its terminal
// state. The final sync view is always returned.
func (h CLIHandler) WaitForSync(ctx context.Context, poll time.Duration) (dto.SyncView, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		sync := h.usecase.Snapshot().Sync
		if !sync.Running {
			return sync, nil
		}
		select {
		case <-ctx.Done():
			return sync, ctx.Err()
		case <-ticker.C:
		}
	}
}
