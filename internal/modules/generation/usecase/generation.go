package usecase

import (
	"context"
	"fmt"

	"deckhand/internal/modules/generation/domain"
	"deckhand/internal/modules/generation/dto"
	genin "deckhand/internal/modules/generation/port/in"
	"deckhand/internal/modules/generation/service"
	apperrors "deckhand/internal/platform/errors"
)

// Interactor glues the engine services together behind the inbound
// port. It owns no state of its own; everything lives in the store,
// the synthesizer, and the estimator.
type Interactor struct {
	store     *service.Store
	ctrl      *service.Controller
	synth     *service.ProgressSynthesizer
	recovery  *service.Recovery
	estimator *service.Estimator
}

func NewInteractor(
	store *service.Store,
	ctrl *service.Controller,
	synth *service.ProgressSynthesizer,
	recovery *service.Recovery,
	estimator *service.Estimator,
) genin.Usecase {
	return &Interactor{
		store:     store,
		ctrl:      ctrl,
		synth:     synth,
		recovery:  recovery,
		estimator: estimator,
	}
}

// BeginConfig moves the run to the configuration step. Refused while a
// run is live; a finished run must be reset first.
func (i *Interactor) BeginConfig(_ context.Context) error {
	if i.store.Snapshot().Run.Step == domain.StepGenerating {
		return apperrors.ErrGenerationRunning
	}
	i.store.SetStep(domain.StepConfig)
	return nil
}

func (i *Interactor) Configure(ctx context.Context, input dto.ConfigInput) error {
	if input.TargetSize < 0 {
		return fmt.Errorf("target size %d: %w", input.TargetSize, apperrors.ErrInvalidInput)
	}
	if input.SourceType != "" {
		st, ok := domain.ParseSourceType(input.SourceType)
		if !ok {
			return fmt.Errorf("source type %q: %w", input.SourceType, apperrors.ErrInvalidInput)
		}
		i.store.SetSourceType(ctx, st)
	}
	if input.SourceFile != "" {
		i.store.SetSourceFile(input.SourceFile)
		i.store.SetFocus(input.Focus)
	} else if input.Focus != "" {
		i.store.SetFocus(input.Focus)
	}
	if input.DeckName != "" {
		i.store.SetDeckName(input.DeckName)
	}
	if input.TargetSize > 0 {
		i.store.SetTargetSize(ctx, input.TargetSize)
	}
	return nil
}

func (i *Interactor) Submit(ctx context.Context) error {
	return i.ctrl.Submit(ctx)
}

func (i *Interactor) Cancel(ctx context.Context) error {
	return i.ctrl.Cancel(ctx)
}

func (i *Interactor) Recover(ctx context.Context) error {
	return i.recovery.Recover(ctx)
}

// ResetToDashboard discards the finished run. It refuses while a run
// is live; cancel first.
func (i *Interactor) ResetToDashboard(_ context.Context) error {
	if i.store.Snapshot().Run.Step == domain.StepGenerating {
		return apperrors.ErrGenerationRunning
	}
	i.store.ResetRun()
	i.synth.Reset()
	i.estimator.Invalidate()
	return nil
}

func (i *Interactor) Snapshot() dto.Snapshot {
	state := i.store.Snapshot()
	out := dto.Snapshot{
		Step:       string(state.Run.Step),
		Phase:      string(state.Run.Phase),
		SourceFile: state.Config.SourceFile,
		DeckName:   state.Config.DeckName,
		Focus:      state.Config.Focus,
		SourceType: string(state.Config.SourceType),
		TargetSize: state.Config.TargetSize,

		SetupSteps:    state.Run.SetupSteps,
		BatchCurrent:  state.Run.Batch.Current,
		BatchTotal:    state.Run.Batch.Total,
		ExpectedCards: state.Run.ExpectedCards,
		Failed:        state.Run.Failed,
		Cancelling:    state.Run.Cancelling,
		SessionID:     state.Run.SessionID,
		Historical:    state.Run.Historical,

		RawPercent:     i.store.RawPercent(),
		DisplayPercent: i.synth.Display(),
	}
	out.Cards = make([]dto.CardView, len(state.Run.Cards))
	for idx, c := range state.Run.Cards {
		out.Cards[idx] = toCardView(c)
	}
	out.Logs = make([]dto.LogView, len(state.Run.Logs))
	for idx, l := range state.Run.Logs {
		out.Logs[idx] = dto.LogView{Level: string(l.Level), Message: l.Message, At: l.At}
	}
	return out
}

// RequestEstimate overlays the input on the current config and arms the
// debounce window.
func (i *Interactor) RequestEstimate(input dto.ConfigInput) {
	i.estimator.Request(i.mergedConfig(input))
}

func (i *Interactor) PumpEstimate(ctx context.Context) bool {
	return i.estimator.Pump(ctx)
}

func (i *Interactor) Estimate() (dto.EstimateView, bool) {
	est, ok := i.estimator.Latest()
	if !ok {
		return dto.EstimateView{}, false
	}
	return toEstimateView(est), true
}

func (i *Interactor) EstimateNow(ctx context.Context, input dto.ConfigInput) (dto.EstimateView, error) {
	est, err := i.estimator.EstimateNow(ctx, i.mergedConfig(input))
	if err != nil {
		return dto.EstimateView{}, err
	}
	return toEstimateView(est), nil
}

func (i *Interactor) UpdateCard(_ context.Context, index int, card dto.CardView) error {
	return i.store.UpdateCard(index, fromCardView(card))
}

func (i *Interactor) RemoveCard(_ context.Context, index int) error {
	return i.store.RemoveCard(index)
}

func (i *Interactor) ReplaceCards(_ context.Context, cards []dto.CardView) error {
	converted := make([]domain.Card, len(cards))
	for idx, c := range cards {
		converted[idx] = fromCardView(c)
	}
	i.store.ReplaceCards(converted)
	return nil
}

func (i *Interactor) Close() {
	i.ctrl.Close()
	i.recovery.StopPolling()
	i.synth.Stop()
}

func (i *Interactor) mergedConfig(input dto.ConfigInput) domain.JobConfig {
	cfg := i.store.Config()
	if input.SourceFile != "" {
		cfg.SourceFile = input.SourceFile
		cfg.Focus = input.Focus
	}
	if input.DeckName != "" {
		cfg.DeckName = input.DeckName
	}
	if input.SourceType != "" {
		if st, ok := domain.ParseSourceType(input.SourceType); ok {
			cfg.SourceType = st
		}
	}
	if input.TargetSize > 0 {
		cfg.TargetSize = input.TargetSize
	}
	return cfg
}

func toCardView(c domain.Card) dto.CardView {
	return dto.CardView{
		UID:         c.UID,
		Front:       c.Front,
		Back:        c.Back,
		Tags:        c.Tags,
		ModelName:   c.ModelName,
		Fields:      c.Fields,
		SlideNumber: c.SlideNumber,
		SlideTopic:  c.SlideTopic,
		AnkiNoteID:  c.AnkiNoteID,
	}
}

func fromCardView(c dto.CardView) domain.Card {
	card := domain.Card{
		UID:         c.UID,
		Front:       c.Front,
		Back:        c.Back,
		ModelName:   c.ModelName,
		SlideNumber: c.SlideNumber,
		SlideTopic:  c.SlideTopic,
		AnkiNoteID:  c.AnkiNoteID,
	}
	if c.Tags != nil {
		card.Tags = append([]string(nil), c.Tags...)
	}
	if c.Fields != nil {
		card.Fields = make(map[string]string, len(c.Fields))
		for k, v := range c.Fields {
			card.Fields[k] = v
		}
	}
	return card
}

func toEstimateView(est domain.Estimate) dto.EstimateView {
	return dto.EstimateView{
		Tokens:             est.Tokens,
		InputTokens:        est.InputTokens,
		OutputTokens:       est.OutputTokens,
		Cost:               est.Cost,
		InputCost:          est.InputCost,
		OutputCost:         est.OutputCost,
		Pages:              est.Pages,
		Model:              est.Model,
		EstimatedCardCount: est.EstimatedCardCount,
	}
}
