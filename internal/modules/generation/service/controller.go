package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"deckhand/internal/modules/generation/domain"
	genout "deckhand/internal/modules/generation/port/out"
	"deckhand/internal/platform/clock"
	apperrors "deckhand/internal/platform/errors"
)

// DefaultCancelWait bounds how long a run may sit in "cancelling"
// without backend confirmation before the controller gives up on it.
const DefaultCancelWait = 30 * time.Second

// Controller submits jobs and folds their event streams into store
// transitions. One stream is consumed at a time, strictly in arrival
// order.
type Controller struct {
	store    *Store
	synth    *ProgressSynthesizer
	backend  genout.Backend
	slot     genout.SessionSlot
	recorder genout.RunRecorder
	poller   *Recovery
	clock    clock.Clock
	logger   *zap.Logger

	// ctx outlives individual calls; streams must keep flowing after
	// the submitting command returns.
	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	cancelTimer *time.Timer
	cancelWait  time.Duration
}

func NewController(
	store *Store,
	synth *ProgressSynthesizer,
	backend genout.Backend,
	slot genout.SessionSlot,
	recorder genout.RunRecorder,
	poller *Recovery,
	clk clock.Clock,
	logger *zap.Logger,
) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		store:      store,
		synth:      synth,
		backend:    backend,
		slot:       slot,
		recorder:   recorder,
		poller:     poller,
		clock:      clk,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		cancelWait: DefaultCancelWait,
	}
}

// SetCancelWait overrides the cancel confirmation deadline.
func (c *Controller) SetCancelWait(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.cancelWait = d
	}
}

// Submit starts a run for the store's current config. A config that
// fails the submit guard is silently ignored; a run already in flight
// is refused.
func (c *Controller) Submit(ctx context.Context) error {
	cfg := c.store.Config()
	if !cfg.ReadyToSubmit() {
		c.logger.Debug("submit ignored: config incomplete",
			zap.String("source_file", cfg.SourceFile),
			zap.String("deck_name", cfg.DeckName))
		return nil
	}
	if c.store.Snapshot().Run.Step == domain.StepGenerating {
		return apperrors.ErrGenerationRunning
	}

	c.store.StartRun()
	c.synth.Reset()
	if err := c.slot.Clear(ctx); err != nil {
		c.logger.Warn("clear session slot", zap.Error(err))
	}

	stream, err := c.backend.Generate(c.ctx, cfg)
	if err != nil {
		c.streamFailed(fmt.Sprintf("failed to start generation: %v", err))
		return fmt.Errorf("start generation: %w", err)
	}
	c.logger.Info("generation started",
		zap.String("deck_name", cfg.DeckName),
		zap.String("source_file", cfg.SourceFile))
	go c.consume(stream)
	return nil
}

// Cancel flags the run and asks the backend to stop. The terminal state
// still arrives through the stream; if no confirmation shows up within
// cancelWait the run is folded to cancelled locally.
func (c *Controller) Cancel(ctx context.Context) error {
	run := c.store.Snapshot().Run
	if run.Step != domain.StepGenerating {
		return nil
	}
	c.store.SetCancelling(true)
	if err := c.backend.StopGeneration(ctx, run.SessionID); err != nil {
		c.store.AppendLog(domain.LogWarning, fmt.Sprintf("stop request failed: %v", err))
		c.logger.Warn("stop generation", zap.Error(err))
	}
	c.armCancelDeadline()
	return nil
}

func (c *Controller) armCancelDeadline() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelTimer != nil {
		c.cancelTimer.Stop()
	}
	c.cancelTimer = time.AfterFunc(c.cancelWait, c.cancelDeadlineExpired)
}

func (c *Controller) disarmCancelDeadline() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelTimer != nil {
		c.cancelTimer.Stop()
		c.cancelTimer = nil
	}
}

// cancelDeadlineExpired folds a synthetic cancelled transition when the
// backend never confirmed the stop.
func (c *Controller) cancelDeadlineExpired() {
	run := c.store.Snapshot().Run
	if !run.Cancelling || run.Step != domain.StepGenerating {
		return
	}
	c.store.AbandonRun()
	c.store.AppendLog(domain.LogWarning, "no cancel confirmation from the backend, abandoning the run")
	if err := c.slot.Clear(c.ctx); err != nil {
		c.logger.Warn("clear session slot", zap.Error(err))
	}
	c.poller.StopPolling()
	c.logger.Warn("cancel deadline expired", zap.String("session_id", run.SessionID))
}

func (c *Controller) consume(stream genout.EventStream) {
	defer stream.Close()
	for ev := range stream.Events() {
		c.fold(ev)
		if ev.Kind.Terminal() {
			return
		}
	}
	if err := stream.Err(); err != nil {
		c.streamFailed(fmt.Sprintf("generation stream failed: %v", err))
		return
	}
	c.streamFailed("generation stream ended before a terminal event")
}

// fold applies one decoded event to the store, then feeds the derived
// percentage to the synthesizer.
func (c *Controller) fold(ev domain.Event) {
	switch ev.Kind {
	case domain.EventSessionStart:
		if ev.SessionID == "" {
			c.store.AppendLog(domain.LogWarning, "backend did not assign a session id")
			if err := c.slot.Clear(c.ctx); err != nil {
				c.logger.Warn("clear session slot", zap.Error(err))
			}
			break
		}
		c.store.SetSession(ev.SessionID)
		if err := c.slot.Save(c.ctx, ev.SessionID); err != nil {
			c.logger.Warn("persist session id", zap.Error(err))
		}
		c.poller.StartPolling()
	case domain.EventProgressStart:
		c.store.StartBatch(ev.Total)
		c.store.SetExpected(ev.Expected)
	case domain.EventProgressUpdate:
		c.store.SetBatchCurrent(ev.Current)
	case domain.EventCard, domain.EventCardGenerated:
		if ev.Card != nil {
			c.store.AppendCard(*ev.Card)
		}
	case domain.EventStepStart:
		if ev.Phase != "" {
			c.store.SetPhase(ev.Phase)
		} else {
			c.store.AdvanceSetupStep()
		}
	case domain.EventNoteCreated:
		if ev.Message != "" {
			c.store.AppendLog(domain.LogInfo, ev.Message)
		}
	case domain.EventDone:
		c.finishRun()
	case domain.EventCancelled:
		c.store.AbandonRun()
		if ev.Message != "" {
			c.store.AppendLog(domain.LogInfo, ev.Message)
		}
		if err := c.slot.Clear(c.ctx); err != nil {
			c.logger.Warn("clear session slot", zap.Error(err))
		}
		c.disarmCancelDeadline()
		c.poller.StopPolling()
	case domain.EventError:
		c.store.SetFailed(true)
		c.store.AppendLog(domain.LogError, ev.Message)
	case domain.EventWarning:
		c.store.AppendLog(domain.LogWarning, ev.Message)
	case domain.EventInfo, domain.EventStatus:
		c.store.AppendLog(domain.LogInfo, ev.Message)
	default:
		c.logger.Debug("skipping unknown event", zap.String("type", string(ev.Kind)))
	}
	c.synth.Observe(c.store.RawPercent())
}

func (c *Controller) finishRun() {
	changed := c.store.CompleteRun()
	if err := c.slot.Clear(c.ctx); err != nil {
		c.logger.Warn("clear session slot", zap.Error(err))
	}
	c.disarmCancelDeadline()
	c.poller.StopPolling()
	if !changed || c.recorder == nil {
		return
	}
	state := c.store.Snapshot()
	rec := genout.CompletedRun{
		SessionID:  state.Run.SessionID,
		DeckName:   state.Config.DeckName,
		SourceFile: state.Config.SourceFile,
		CardCount:  len(state.Run.Cards),
		StartedAt:  c.store.StartedAt(),
		FinishedAt: c.clock.Now(),
	}
	if err := c.recorder.RecordCompleted(c.ctx, rec); err != nil {
		c.logger.Warn("archive completed run", zap.Error(err))
	}
}

// streamFailed marks the run errored without forcing a terminal step;
// the slot survives so a restart can still reconcile with the server.
func (c *Controller) streamFailed(message string) {
	c.store.AppendLog(domain.LogError, message)
	c.store.SetFailed(true)
	c.logger.Error("generation stream failure", zap.String("reason", message))
}

// Close releases the stream context and the cancel timer. The poller
// and synthesizer are owned by their own services.
func (c *Controller) Close() {
	c.disarmCancelDeadline()
	c.cancel()
}
