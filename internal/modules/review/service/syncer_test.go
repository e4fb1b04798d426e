package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	gendto "deckhand/internal/modules/generation/dto"
	"deckhand/internal/modules/review/domain"
	"deckhand/internal/modules/review/service"
	apperrors "deckhand/internal/platform/errors"
	"deckhand/internal/platform/logging"
)

func newSyncer(t *testing.T, engine *fakeEngine, drafts *fakeDrafts, streamer *fakeStreamer) (*service.Syncer, *service.Store) {
	t.Helper()
	store := service.NewStore(nil)
	syncer := service.NewSyncer(engine, drafts, streamer, store, logging.Nop())
	t.Cleanup(syncer.Close)
	return syncer, store
}

func TestSyncFoldsAFullPushAndRefreshesTheList(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{
		cards:     []gendto.CardView{card("a", 0), card("b", 0)},
		sessionID: "abc",
	}
	drafts := &fakeDrafts{list: []gendto.CardView{card("a", 101), card("b", 102)}}
	streamer := &fakeStreamer{stream: newFakeSyncStream([]domain.SyncEvent{
		{Kind: domain.SyncProgressStart, Total: 2},
		{Kind: domain.SyncNoteCreated, NoteID: 101},
		{Kind: domain.SyncProgressUpdate, Current: 1, Total: 2},
		{Kind: domain.SyncNoteCreated, NoteID: 102},
		{Kind: domain.SyncDone, Message: "synced 2 cards"},
	}, nil)}
	syncer, store := newSyncer(t, engine, drafts, streamer)

	if err := syncer.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	waitFor(t, "push to finish", func() bool {
		st := store.SyncState()
		return st.Done && !st.Running
	})

	st := store.SyncState()
	if st.Synced != 2 || st.Failed {
		t.Fatalf("state = %+v", st)
	}
	if st.Current != st.Total || st.Total != 2 {
		t.Fatalf("progress = %d/%d", st.Current, st.Total)
	}
	waitFor(t, "note ids to land on the cards", func() bool {
		return engine.card(t, 0).AnkiNoteID == 101 && engine.card(t, 1).AnkiNoteID == 102
	})
	if calls := drafts.recorded("drafts"); len(calls) != 1 || calls[0].sessionID != "abc" {
		t.Fatalf("refetch calls = %+v", calls)
	}
}

func TestSyncWithNoCardsIsSilentlyIgnored(t *testing.T) {
	t.Parallel()

	streamer := &fakeStreamer{}
	syncer, store := newSyncer(t, &fakeEngine{}, &fakeDrafts{}, streamer)

	if err := syncer.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if d, s := streamer.opened(); d != 0 || s != 0 {
		t.Fatalf("streams opened = %d/%d, want none", d, s)
	}
	if store.SyncState().Running {
		t.Fatal("no push should be running")
	}
}

func TestSecondSyncWhileOneIsRunningIsRefused(t *testing.T) {
	t.Parallel()

	open := &fakeSyncStream{ch: make(chan domain.SyncEvent)}
	engine := &fakeEngine{cards: []gendto.CardView{card("a", 0)}, sessionID: "abc"}
	streamer := &fakeStreamer{stream: open}
	syncer, _ := newSyncer(t, engine, &fakeDrafts{}, streamer)

	if err := syncer.Sync(context.Background()); err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if err := syncer.Sync(context.Background()); !errors.Is(err, apperrors.ErrSyncRunning) {
		t.Fatalf("err = %v, want ErrSyncRunning", err)
	}
	close(open.ch)
}

func TestStreamBreakMarksTheSyncFailed(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{cards: []gendto.CardView{card("a", 0)}, sessionID: "abc"}
	streamer := &fakeStreamer{stream: newFakeSyncStream([]domain.SyncEvent{
		{Kind: domain.SyncProgressStart, Total: 1},
	}, errors.New("connection reset"))}
	syncer, store := newSyncer(t, engine, &fakeDrafts{}, streamer)

	if err := syncer.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	waitFor(t, "failure to register", func() bool {
		st := store.SyncState()
		return st.Failed && !st.Running
	})
	if msg := store.SyncState().Message; !strings.Contains(msg, "connection reset") {
		t.Fatalf("message = %q", msg)
	}
}

func TestStreamEndingWithoutTerminalEventFailsTheSync(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{cards: []gendto.CardView{card("a", 0)}, sessionID: "abc"}
	streamer := &fakeStreamer{stream: newFakeSyncStream([]domain.SyncEvent{
		{Kind: domain.SyncNoteCreated, NoteID: 7},
	}, nil)}
	syncer, store := newSyncer(t, engine, &fakeDrafts{}, streamer)

	if err := syncer.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	waitFor(t, "failure to register", func() bool {
		st := store.SyncState()
		return st.Failed && !st.Running
	})
}

func TestCancelledPushStopsWithoutRefetch(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{cards: []gendto.CardView{card("a", 0)}, sessionID: "abc"}
	drafts := &fakeDrafts{}
	streamer := &fakeStreamer{stream: newFakeSyncStream([]domain.SyncEvent{
		{Kind: domain.SyncProgressStart, Total: 1},
		{Kind: domain.SyncCancelled, Message: "stopped"},
	}, nil)}
	syncer, store := newSyncer(t, engine, drafts, streamer)

	if err := syncer.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	waitFor(t, "push to stop", func() bool {
		return !store.SyncState().Running
	})

	st := store.SyncState()
	if st.Done || st.Failed {
		t.Fatalf("state = %+v, want neither done nor failed", st)
	}
	if calls := drafts.recorded("drafts"); len(calls) != 0 {
		t.Fatalf("cancelled push must not refetch, got %+v", calls)
	}
}

func TestHistoricalSyncUsesTheSessionEndpoints(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{
		cards:      []gendto.CardView{card("a", 0)},
		sessionID:  "old-1",
		historical: true,
	}
	drafts := &fakeDrafts{list: []gendto.CardView{card("a", 201)}}
	streamer := &fakeStreamer{stream: newFakeSyncStream([]domain.SyncEvent{
		{Kind: domain.SyncDone},
	}, nil)}
	syncer, store := newSyncer(t, engine, drafts, streamer)

	if err := syncer.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	waitFor(t, "push to finish", func() bool {
		return store.SyncState().Done
	})
	if d, s := streamer.opened(); d != 0 || s != 1 {
		t.Fatalf("streams opened = %d drafts / %d sessions", d, s)
	}
	waitFor(t, "session cards to land", func() bool {
		return engine.card(t, 0).AnkiNoteID == 201
	})
	if calls := drafts.recorded("session_cards"); len(calls) != 1 || calls[0].sessionID != "old-1" {
		t.Fatalf("refetch calls = %+v", calls)
	}
}

func TestOpenFailureFailsTheSyncImmediately(t *testing.T) {
	t.Parallel()

	engine := &fakeEngine{cards: []gendto.CardView{card("a", 0)}, sessionID: "abc"}
	streamer := &fakeStreamer{openErr: errors.New("backend unreachable")}
	syncer, store := newSyncer(t, engine, &fakeDrafts{}, streamer)

	if err := syncer.Sync(context.Background()); err == nil {
		t.Fatal("open failure should surface")
	}
	st := store.SyncState()
	if !st.Failed || st.Running {
		t.Fatalf("state = %+v", st)
	}
	if err := syncer.Sync(context.Background()); errors.Is(err, apperrors.ErrSyncRunning) {
		t.Fatal("a failed open must not leave the guard locked")
	}
}
