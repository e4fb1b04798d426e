package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"deckhand/internal/modules/generation/domain"
	genout "deckhand/internal/modules/generation/port/out"
	"deckhand/internal/platform/clock"
	apperrors "deckhand/internal/platform/errors"
	"deckhand/internal/platform/id"
)

const (
	prefSourceType = "source_type"
	prefTargetSize = "target_size"

	defaultTargetSize = 20
)

// Store owns the engine state. Every action is one atomic transition
// under a single mutex, so no reader ever observes a half-applied
// update. Only the run slice is reset between jobs; config and the
// persisted preferences survive.
type Store struct {
	mu     sync.Mutex
	clock  clock.Clock
	idGen  id.Generator
	prefs  genout.Preferences
	policy domain.PercentPolicy

	cfg       domain.JobConfig
	run       domain.RunState
	startedAt time.Time
}

func NewStore(clk clock.Clock, idGen id.Generator, prefs genout.Preferences) *Store {
	s := &Store{
		clock:  clk,
		idGen:  idGen,
		prefs:  prefs,
		policy: domain.DefaultPercentPolicy(),
		cfg: domain.JobConfig{
			SourceType: domain.SourceTypeAuto,
			TargetSize: defaultTargetSize,
		},
		run: domain.NewRunState(),
	}
	s.loadPreferences()
	return s
}

func (s *Store) loadPreferences() {
	if s.prefs == nil {
		return
	}
	ctx := context.Background()
	if v, err := s.prefs.Get(ctx, prefSourceType); err == nil {
		if st, ok := domain.ParseSourceType(v); ok {
			s.cfg.SourceType = st
		}
	}
	if v, err := s.prefs.Get(ctx, prefTargetSize); err == nil {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			s.cfg.TargetSize = n
		}
	}
}

func (s *Store) SetSourceFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.SourceFile = path
}

func (s *Store) SetDeckName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.DeckName = name
}

func (s *Store) SetFocus(focus string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Focus = focus
}

func (s *Store) SetSourceType(ctx context.Context, st domain.SourceType) {
	s.mu.Lock()
	s.cfg.SourceType = st
	s.mu.Unlock()
	if s.prefs != nil {
		_ = s.prefs.Set(ctx, prefSourceType, string(st))
	}
}

func (s *Store) SetTargetSize(ctx context.Context, n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.cfg.TargetSize = n
	s.mu.Unlock()
	if s.prefs != nil {
		_ = s.prefs.Set(ctx, prefTargetSize, strconv.Itoa(n))
	}
}

func (s *Store) Config() domain.JobConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// ResetRun returns to a clean dashboard, dropping logs, cards, and all
// transient flags while keeping config and preferences.
func (s *Store) ResetRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = domain.NewRunState()
	s.startedAt = time.Time{}
}

// StartRun resets the run slice and enters the generating step in one
// transition, so no reader sees a stale run in the new step.
func (s *Store) StartRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run = domain.NewRunState()
	s.run.Step = domain.StepGenerating
	s.startedAt = s.clock.Now()
}

func (s *Store) AppendLog(level domain.LogLevel, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Logs = append(s.run.Logs, domain.LogEntry{
		Level:   level,
		Message: message,
		At:      s.clock.Now(),
	})
}

func (s *Store) AppendCard(card domain.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	card = card.Normalize()
	if card.UID == "" {
		card.UID = s.idGen.New()
	}
	s.run.Cards = append(s.run.Cards, card)
}

func (s *Store) StartBatch(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if total < 0 {
		total = 0
	}
	s.run.Batch = domain.BatchProgress{Current: 0, Total: total}
}

// SetBatchCurrent clamps into [0, total]. Updates arriving before any
// progress_start are dropped, keeping current <= total at all times.
func (s *Store) SetBatchCurrent(current int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.run.Batch.Total <= 0 {
		return
	}
	if current < 0 {
		current = 0
	}
	if current > s.run.Batch.Total {
		current = s.run.Batch.Total
	}
	s.run.Batch.Current = current
}

func (s *Store) SetExpected(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.run.ExpectedCards = n
	}
}

func (s *Store) SetPhase(p domain.Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Phase = p
}

func (s *Store) AdvanceSetupStep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.SetupSteps++
}

func (s *Store) SetStep(step domain.Step) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Step = step
}

func (s *Store) SetSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.SessionID = sessionID
}

func (s *Store) SetFailed(failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Failed = failed
}

func (s *Store) SetCancelling(cancelling bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Cancelling = cancelling
}

// CompleteRun applies the done transition: terminal step and phase,
// cancelling dropped, batch forced to its total. It reports whether the
// run actually transitioned, so the stream fold and the status poller
// cannot both archive the same run.
func (s *Store) CompleteRun() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	already := s.run.Step == domain.StepDone
	s.run.Step = domain.StepDone
	s.run.Phase = domain.PhaseComplete
	s.run.Cancelling = false
	s.run.Batch.Current = s.run.Batch.Total
	return !already
}

// AbandonRun applies the cancelled transition: the cancelling flag
// drops and a live run leaves the generating step, so the engine
// accepts new work again. Cards and logs stay until the next reset.
func (s *Store) AbandonRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Cancelling = false
	if s.run.Step != domain.StepGenerating {
		return
	}
	s.run.Step = domain.StepDashboard
	s.run.Phase = domain.PhaseIdle
}

// SeedRecovered replaces the run with a snapshot loaded from the server,
// in one transition.
func (s *Store) SeedRecovered(sessionID, deckName string, cards []domain.Card, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range cards {
		cards[i] = cards[i].Normalize()
	}
	domain.StampUIDs(cards, s.idGen.New)
	if deckName != "" {
		s.cfg.DeckName = deckName
	}
	s.run = domain.NewRunState()
	s.run.SessionID = sessionID
	s.run.Cards = cards
	if active {
		s.run.Step = domain.StepGenerating
		s.run.Phase = domain.PhaseGenerating
		s.run.Historical = false
	} else {
		s.run.Step = domain.StepDone
		s.run.Phase = domain.PhaseComplete
		s.run.Historical = true
	}
}

func (s *Store) MarkHistorical(historical bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Historical = historical
}

func (s *Store) ReplaceCards(cards []domain.Card) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range cards {
		cards[i] = cards[i].Normalize()
	}
	domain.StampUIDs(cards, s.idGen.New)
	s.run.Cards = cards
}

func (s *Store) UpdateCard(index int, card domain.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.run.Cards) {
		return apperrors.ErrNotFound
	}
	card = card.Normalize()
	if card.UID == "" {
		card.UID = s.run.Cards[index].UID
	}
	s.run.Cards[index] = card
	return nil
}

func (s *Store) RemoveCard(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.run.Cards) {
		return apperrors.ErrNotFound
	}
	s.run.Cards = append(s.run.Cards[:index], s.run.Cards[index+1:]...)
	return nil
}

func (s *Store) Card(index int) (domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.run.Cards) {
		return domain.Card{}, apperrors.ErrNotFound
	}
	return s.run.Cards[index].Clone(), nil
}

// RawPercent derives the overall job percentage from the current run.
func (s *Store) RawPercent() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.policy.Overall(s.run)
}

func (s *Store) StartedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startedAt
}

// Snapshot returns a copy that shares no mutable state with the store.
func (s *Store) Snapshot() domain.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := domain.State{Config: s.cfg, Run: s.run}
	out.Run.Logs = append([]domain.LogEntry(nil), s.run.Logs...)
	out.Run.Cards = make([]domain.Card, len(s.run.Cards))
	for i, c := range s.run.Cards {
		out.Run.Cards[i] = c.Clone()
	}
	return out
}
