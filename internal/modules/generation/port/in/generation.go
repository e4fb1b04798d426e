package in

import (
	"context"

	"deckhand/internal/modules/generation/dto"
)

// Usecase is the engine surface the CLI, the TUI, and the review module
// drive. Submit silently ignores configs that fail the submit guard;
// Cancel only flags the run and asks the backend to stop, the terminal
// state still arrives through the stream.
type Usecase interface {
	BeginConfig(ctx context.Context) error
	Configure(ctx context.Context, input dto.ConfigInput) error
	Submit(ctx context.Context) error
	Cancel(ctx context.Context) error
	Recover(ctx context.Context) error
	ResetToDashboard(ctx context.Context) error
	Snapshot() dto.Snapshot

	RequestEstimate(input dto.ConfigInput)
	PumpEstimate(ctx context.Context) bool
	Estimate() (dto.EstimateView, bool)
	EstimateNow(ctx context.Context, input dto.ConfigInput) (dto.EstimateView, error)

	UpdateCard(ctx context.Context, index int, card dto.CardView) error
	RemoveCard(ctx context.Context, index int) error
	ReplaceCards(ctx context.Context, cards []dto.CardView) error

	Close()
}
