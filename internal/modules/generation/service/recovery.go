package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"deckhand/internal/modules/generation/domain"
	genout "deckhand/internal/modules/generation/port/out"
	"deckhand/internal/platform/clock"
	apperrors "deckhand/internal/platform/errors"
)

// DefaultPollInterval is how often an active session's status is
// re-checked while the run is in the generating step.
const DefaultPollInterval = 2500 * time.Millisecond

// Recovery reconciles the persisted session slot with the server on
// startup and keeps polling session status while a run is live, so a
// completion the stream missed still lands.
type Recovery struct {
	store    *Store
	synth    *ProgressSynthesizer
	backend  genout.Backend
	slot     genout.SessionSlot
	recorder genout.RunRecorder
	clock    clock.Clock
	logger   *zap.Logger

	interval time.Duration
	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
}

func NewRecovery(
	store *Store,
	synth *ProgressSynthesizer,
	backend genout.Backend,
	slot genout.SessionSlot,
	recorder genout.RunRecorder,
	clk clock.Clock,
	logger *zap.Logger,
) *Recovery {
	return &Recovery{
		store:    store,
		synth:    synth,
		backend:  backend,
		slot:     slot,
		recorder: recorder,
		clock:    clk,
		logger:   logger,
		interval: DefaultPollInterval,
	}
}

// Recover reads the slot and re-seeds the store from the server. Every
// failure path resolves to "no session": a stale or unreadable slot
// must never block startup or raise an error dialog.
func (r *Recovery) Recover(ctx context.Context) error {
	sessionID, err := r.slot.Load(ctx)
	if errors.Is(err, apperrors.ErrNoActiveSession) {
		return nil
	}
	if err != nil {
		r.logger.Warn("read session slot", zap.Error(err))
		r.clearSlot(ctx)
		return nil
	}

	active, err := r.backend.SessionStatus(ctx, sessionID)
	if err != nil {
		r.logger.Warn("session status during recovery", zap.String("session_id", sessionID), zap.Error(err))
		r.clearSlot(ctx)
		return nil
	}
	snap, err := r.backend.SessionSnapshot(ctx, sessionID)
	if err != nil {
		r.logger.Warn("session snapshot during recovery", zap.String("session_id", sessionID), zap.Error(err))
		r.clearSlot(ctx)
		return nil
	}

	r.store.SeedRecovered(sessionID, snap.DeckName, snap.Cards, active)
	r.synth.Reset()
	r.synth.Observe(r.store.RawPercent())
	if active {
		r.logger.Info("resumed live session", zap.String("session_id", sessionID), zap.Int("cards", len(snap.Cards)))
		r.StartPolling()
		return nil
	}
	r.logger.Info("loaded completed session", zap.String("session_id", sessionID), zap.Int("cards", len(snap.Cards)))
	r.clearSlot(ctx)
	return nil
}

func (r *Recovery) clearSlot(ctx context.Context) {
	if err := r.slot.Clear(ctx); err != nil {
		r.logger.Warn("clear session slot", zap.Error(err))
	}
}

// StartPolling launches the status loop. Calling it on a running
// poller is a no-op.
func (r *Recovery) StartPolling() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	go r.loop(r.stopCh)
}

// StopPolling halts the loop. Safe to call repeatedly.
func (r *Recovery) StopPolling() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.running = false
	close(r.stopCh)
}

func (r *Recovery) loop(stop <-chan struct{}) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if done := r.PollOnce(context.Background()); done {
				r.StopPolling()
				return
			}
		}
	}
}

// PollOnce checks the live session once and reports whether polling
// should stop. Transient status errors keep the poller alive; the
// stream stays the authority on failures.
func (r *Recovery) PollOnce(ctx context.Context) bool {
	run := r.store.Snapshot().Run
	if run.SessionID == "" || run.Step != domain.StepGenerating {
		return true
	}
	active, err := r.backend.SessionStatus(ctx, run.SessionID)
	if err != nil {
		r.logger.Warn("session status poll", zap.String("session_id", run.SessionID), zap.Error(err))
		return false
	}
	if active {
		return false
	}

	// The job finished while nobody was listening to the stream.
	snap, err := r.backend.SessionSnapshot(ctx, run.SessionID)
	if err != nil {
		r.logger.Warn("session snapshot after completion", zap.String("session_id", run.SessionID), zap.Error(err))
		return false
	}
	r.store.ReplaceCards(snap.Cards)
	if snap.DeckName != "" {
		r.store.SetDeckName(snap.DeckName)
	}
	changed := r.store.CompleteRun()
	r.store.MarkHistorical(true)
	r.clearSlot(ctx)
	r.synth.Observe(100)
	if changed && r.recorder != nil {
		state := r.store.Snapshot()
		rec := genout.CompletedRun{
			SessionID:  run.SessionID,
			DeckName:   state.Config.DeckName,
			SourceFile: state.Config.SourceFile,
			CardCount:  len(state.Run.Cards),
			StartedAt:  r.store.StartedAt(),
			FinishedAt: r.clock.Now(),
		}
		if err := r.recorder.RecordCompleted(ctx, rec); err != nil {
			r.logger.Warn("archive recovered run", zap.Error(err))
		}
	}
	r.logger.Info("finalized session from poll", zap.String("session_id", run.SessionID))
	return true
}
