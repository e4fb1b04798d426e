package in

import (
	"context"
	"time"

	"deckhand/internal/modules/generation/dto"
	genin "deckhand/internal/modules/generation/port/in"
)

type CLIHandler struct {
	usecase genin.Usecase
}

func NewCLIHandler(usecase genin.Usecase) CLIHandler {
	return CLIHandler{usecase: usecase}
}

// Generate configures and submits a run in one call.
func (h CLIHandler) Generate(ctx context.Context, sourceFile, deckName, focus, sourceType string, targetSize int) error {
	input := dto.ConfigInput{
		SourceFile: sourceFile,
		DeckName:   deckName,
		Focus:      focus,
		SourceType: sourceType,
		TargetSize: targetSize,
	}
	if err := h.usecase.Configure(ctx, input); err != nil {
		return err
	}
	return h.usecase.Submit(ctx)
}

func (h CLIHandler) Recover(ctx context.Context) error {
	return h.usecase.Recover(ctx)
}

func (h CLIHandler) Cancel(ctx context.Context) error {
	return h.usecase.Cancel(ctx)
}

func (h CLIHandler) Snapshot() dto.Snapshot {
	return h.usecase.Snapshot()
}

func (h CLIHandler) EstimateNow(ctx context.Context, sourceFile, sourceType string, targetSize int) (dto.EstimateView, error) {
	return h.usecase.EstimateNow(ctx, dto.ConfigInput{
		SourceFile: sourceFile,
		SourceType: sourceType,
		TargetSize: targetSize,
	})
}

// WaitForCompletion blocks until the run reaches a terminal shape: the
// done step, a failure with the stream gone quiet, or a cancelled run
// settling back. The last snapshot seen is always returned.
func (h CLIHandler) WaitForCompletion(ctx context.Context, poll time.Duration) (dto.Snapshot, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		snap := h.usecase.Snapshot()
		if snap.Step == dto.StepDone || snap.Failed {
			return snap, nil
		}
		if snap.Step != dto.StepGenerating {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ticker.C:
		}
	}
}

// WaitForCancel blocks until the cancelling flag drops, whether through
// the backend's cancelled event or the controller giving up on it.
func (h CLIHandler) WaitForCancel(ctx context.Context, poll time.Duration) (dto.Snapshot, error) {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		snap := h.usecase.Snapshot()
		if !snap.Cancelling {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ticker.C:
		}
	}
}
