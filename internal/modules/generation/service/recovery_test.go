package service_test

import (
	"context"
	"errors"
	"testing"

	"deckhand/internal/modules/generation/domain"
	genout "deckhand/internal/modules/generation/port/out"
	"deckhand/internal/modules/generation/service"
	"deckhand/internal/platform/logging"
)

func newRecovery(t *testing.T, backend *fakeBackend, slot *fakeSlot, rec *fakeRecorder) (*service.Recovery, *service.Store, *service.ProgressSynthesizer) {
	t.Helper()
	clk := newStepClock()
	store := service.NewStore(clk, &seqID{}, nil)
	synth := service.NewProgressSynthesizer(clk)
	recovery := service.NewRecovery(store, synth, backend, slot, rec, clk, logging.Nop())
	t.Cleanup(recovery.StopPolling)
	return recovery, store, synth
}

func TestRecoverWithEmptySlotIsANoOp(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{}
	slot := &fakeSlot{}
	recovery, store, _ := newRecovery(t, backend, slot, nil)
	if err := recovery.Recover(context.Background()); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if store.Snapshot().Run.Step != domain.StepDashboard {
		t.Fatalf("empty slot must leave the dashboard untouched")
	}
	if slot.clears != 0 {
		t.Fatalf("nothing to clear for an empty slot, got %d clears", slot.clears)
	}
}

func TestRecoverInactiveSessionLandsOnHistoricalDone(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{
		statusActive: false,
		snapshot: genout.SessionSnapshot{
			DeckName: "Bio::Cells",
			Cards: []domain.Card{
				{Front: "Q1", Back: "A1"},
				{Front: "Q2", Back: "A2"},
			},
		},
	}
	slot := &fakeSlot{}
	_ = slot.Save(context.Background(), "abc")
	recovery, store, synth := newRecovery(t, backend, slot, nil)
	if err := recovery.Recover(context.Background()); err != nil {
		t.Fatalf("recover: %v", err)
	}
	snap := store.Snapshot()
	if snap.Run.Step != domain.StepDone || !snap.Run.Historical {
		t.Fatalf("inactive session must land on historical done, got step=%s historical=%v", snap.Run.Step, snap.Run.Historical)
	}
	if snap.Config.DeckName != "Bio::Cells" {
		t.Fatalf("deck name must come from the server snapshot, got %q", snap.Config.DeckName)
	}
	if len(snap.Run.Cards) != 2 || snap.Run.Cards[0].UID == "" {
		t.Fatalf("recovered cards must be present and carry uids, got %+v", snap.Run.Cards)
	}
	if slot.current() != "" {
		t.Fatalf("finished session must not stay resumable, got %q", slot.current())
	}
	if synth.Display() != 100 {
		t.Fatalf("historical done must display 100, got %.2f", synth.Display())
	}
}

func TestRecoverActiveSessionResumesGeneratingAndPolls(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{
		statusActive: true,
		snapshot: genout.SessionSnapshot{
			DeckName: "Chem",
			Cards:    []domain.Card{{Front: "Q", Back: "A"}},
		},
	}
	slot := &fakeSlot{}
	_ = slot.Save(context.Background(), "abc")
	recovery, store, _ := newRecovery(t, backend, slot, nil)
	if err := recovery.Recover(context.Background()); err != nil {
		t.Fatalf("recover: %v", err)
	}
	snap := store.Snapshot()
	if snap.Run.Step != domain.StepGenerating || snap.Run.Historical {
		t.Fatalf("active session must resume generating, got step=%s historical=%v", snap.Run.Step, snap.Run.Historical)
	}
	if snap.Run.SessionID != "abc" {
		t.Fatalf("session id must be re-seeded, got %q", snap.Run.SessionID)
	}
	if slot.current() != "abc" {
		t.Fatalf("live session must stay resumable, got %q", slot.current())
	}
}

func TestRecoverClearsSlotWhenTheServerCannotConfirm(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{statusErr: errors.New("connection refused")}
	slot := &fakeSlot{}
	_ = slot.Save(context.Background(), "abc")
	recovery, store, _ := newRecovery(t, backend, slot, nil)
	if err := recovery.Recover(context.Background()); err != nil {
		t.Fatalf("recovery must never fail startup, got %v", err)
	}
	if slot.current() != "" {
		t.Fatalf("unconfirmable slot must be cleared, got %q", slot.current())
	}
	if store.Snapshot().Run.Step != domain.StepDashboard {
		t.Fatalf("failed recovery must leave a fresh dashboard")
	}
}

func TestRecoverClearsSlotWhenTheSnapshotFails(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{statusActive: true, snapshotErr: errors.New("boom")}
	slot := &fakeSlot{}
	_ = slot.Save(context.Background(), "abc")
	recovery, store, _ := newRecovery(t, backend, slot, nil)
	if err := recovery.Recover(context.Background()); err != nil {
		t.Fatalf("recover: %v", err)
	}
	if slot.current() != "" {
		t.Fatalf("slot must be cleared when the snapshot cannot be read, got %q", slot.current())
	}
	if store.Snapshot().Run.Step != domain.StepDashboard {
		t.Fatalf("failed recovery must leave a fresh dashboard")
	}
}

func TestPollOnceFinalizesARunTheStreamMissed(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{
		statusActive: true,
		snapshot: genout.SessionSnapshot{
			DeckName: "Chem",
			Cards:    []domain.Card{{Front: "Q", Back: "A"}},
		},
	}
	slot := &fakeSlot{}
	_ = slot.Save(context.Background(), "abc")
	rec := &fakeRecorder{}
	recovery, store, synth := newRecovery(t, backend, slot, rec)
	if err := recovery.Recover(context.Background()); err != nil {
		t.Fatalf("recover: %v", err)
	}
	recovery.StopPolling()

	backend.mu.Lock()
	backend.statusActive = false
	backend.snapshot.Cards = append(backend.snapshot.Cards, domain.Card{Front: "Q2", Back: "A2"})
	backend.mu.Unlock()

	if done := recovery.PollOnce(context.Background()); !done {
		t.Fatalf("an inactive session must finalize the run")
	}
	snap := store.Snapshot()
	if snap.Run.Step != domain.StepDone || !snap.Run.Historical {
		t.Fatalf("poll finalization must land on historical done, got %+v", snap.Run)
	}
	if len(snap.Run.Cards) != 2 {
		t.Fatalf("the server card list is authoritative, got %d cards", len(snap.Run.Cards))
	}
	if slot.current() != "" {
		t.Fatalf("finalized session must clear the slot, got %q", slot.current())
	}
	if synth.Display() != 100 {
		t.Fatalf("finalized session must display 100, got %.2f", synth.Display())
	}
	runs := rec.recorded()
	if len(runs) != 1 || runs[0].CardCount != 2 || runs[0].SessionID != "abc" {
		t.Fatalf("expected one archived run for the missed completion, got %+v", runs)
	}
}

func TestPollOnceToleratesTransientStatusErrors(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{
		statusActive: true,
		snapshot:     genout.SessionSnapshot{Cards: []domain.Card{{Front: "Q", Back: "A"}}},
	}
	slot := &fakeSlot{}
	_ = slot.Save(context.Background(), "abc")
	recovery, store, _ := newRecovery(t, backend, slot, nil)
	if err := recovery.Recover(context.Background()); err != nil {
		t.Fatalf("recover: %v", err)
	}
	recovery.StopPolling()

	backend.mu.Lock()
	backend.statusErr = errors.New("timeout")
	backend.mu.Unlock()
	if done := recovery.PollOnce(context.Background()); done {
		t.Fatalf("a transient status error must keep the poller alive")
	}
	if store.Snapshot().Run.Step != domain.StepGenerating {
		t.Fatalf("a transient status error must not change the run")
	}
	if slot.current() != "abc" {
		t.Fatalf("a transient status error must keep the slot, got %q", slot.current())
	}
}

func TestPollOnceStopsWhenTheRunLeftTheGeneratingStep(t *testing.T) {
	t.Parallel()
	backend := &fakeBackend{}
	recovery, store, _ := newRecovery(t, backend, &fakeSlot{}, nil)
	store.SetSession("abc")
	if done := recovery.PollOnce(context.Background()); !done {
		t.Fatalf("polling is pointless outside the generating step")
	}
}
