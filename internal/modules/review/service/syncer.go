package service

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	gendto "deckhand/internal/modules/generation/dto"
	"deckhand/internal/modules/review/domain"
	reviewout "deckhand/internal/modules/review/port/out"
	apperrors "deckhand/internal/platform/errors"
)

// Syncer pushes the reviewed cards to Anki. The push runs in the
// background and outlives the call that started it; progress is read
// back through the store's sync state. After a push that ends in done
// the backend's list is refetched and replaces the engine's copy, so
// the new note ids land on the drafts.
type Syncer struct {
	engine   Engine
	drafts   reviewout.DraftStore
	streamer reviewout.SyncStreamer
	store    *Store
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSyncer(engine Engine, drafts reviewout.DraftStore, streamer reviewout.SyncStreamer, store *Store, logger *zap.Logger) *Syncer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Syncer{
		engine:   engine,
		drafts:   drafts,
		streamer: streamer,
		store:    store,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Sync starts a push. With no cards it does nothing; with a push
// already in flight it refuses.
func (s *Syncer) Sync(ctx context.Context) error {
	snap := s.engine.Snapshot()
	if len(snap.Cards) == 0 {
		return nil
	}
	if !s.store.StartSync() {
		return apperrors.ErrSyncRunning
	}

	var stream reviewout.SyncStream
	var err error
	if snap.Historical {
		stream, err = s.streamer.SyncSession(s.ctx, snap.SessionID)
	} else {
		stream, err = s.streamer.SyncDrafts(s.ctx, snap.SessionID)
	}
	if err != nil {
		s.store.FailSync(err.Error())
		return fmt.Errorf("open sync stream: %w", err)
	}

	s.logger.Info("sync started",
		zap.Int("cards", len(snap.Cards)),
		zap.Bool("historical", snap.Historical))
	s.wg.Add(1)
	go s.consume(stream, snap.SessionID, snap.Historical)
	return nil
}

func (s *Syncer) consume(stream reviewout.SyncStream, sessionID string, historical bool) {
	defer s.wg.Done()
	defer stream.Close()

	var last domain.SyncEventKind
	for ev := range stream.Events() {
		s.store.ApplySync(ev)
		last = ev.Kind
	}

	if err := stream.Err(); err != nil {
		s.logger.Error("sync stream failure", zap.Error(err))
		s.store.FailSync("sync interrupted: " + err.Error())
		return
	}
	if !last.Terminal() {
		s.logger.Error("sync stream ended without terminal event")
		s.store.FailSync("sync interrupted")
		return
	}
	if last != domain.SyncDone {
		return
	}
	s.refresh(sessionID, historical)
}

// refresh pulls the authoritative post-sync list. A failure here keeps
// the local copy; the push itself already succeeded.
func (s *Syncer) refresh(sessionID string, historical bool) {
	var cards []gendto.CardView
	var err error
	if historical {
		cards, err = s.drafts.SessionCards(s.ctx, sessionID)
	} else {
		cards, err = s.drafts.Drafts(s.ctx, sessionID)
	}
	if err != nil {
		s.logger.Warn("refetch cards after sync", zap.Error(err))
		return
	}
	if err := s.engine.ReplaceCards(s.ctx, cards); err != nil {
		s.logger.Warn("replace cards after sync", zap.Error(err))
	}
}

// Close stops any in-flight push and waits for its goroutine.
func (s *Syncer) Close() {
	s.cancel()
	s.wg.Wait()
}
