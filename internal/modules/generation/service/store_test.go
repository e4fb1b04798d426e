package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"deckhand/internal/modules/generation/domain"
	"deckhand/internal/modules/generation/service"
	apperrors "deckhand/internal/platform/errors"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type seqID struct {
	mu sync.Mutex
	n  int
}

func (s *seqID) New() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("uid-%d", s.n)
}

type memPrefs struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemPrefs() *memPrefs {
	return &memPrefs{values: map[string]string{}}
}

func (p *memPrefs) Get(_ context.Context, key string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.values[key]
	if !ok {
		return "", fmt.Errorf("preference %s: %w", key, apperrors.ErrNotFound)
	}
	return v, nil
}

func (p *memPrefs) Set(_ context.Context, key, value string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.values[key] = value
	return nil
}

func TestStoreBatchClampingKeepsCurrentWithinTotal(t *testing.T) {
	t.Parallel()
	store := service.NewStore(newStepClock(), &seqID{}, nil)
	store.SetBatchCurrent(5)
	if got := store.Snapshot().Run.Batch; got.Current != 0 || got.Total != 0 {
		t.Fatalf("updates before progress_start must be dropped, got %+v", got)
	}
	store.StartBatch(10)
	store.SetBatchCurrent(25)
	if got := store.Snapshot().Run.Batch; got.Current != 10 {
		t.Fatalf("current must clamp to total, got %+v", got)
	}
	store.SetBatchCurrent(-3)
	if got := store.Snapshot().Run.Batch; got.Current != 0 {
		t.Fatalf("current must clamp to zero, got %+v", got)
	}
}

func TestStoreAppendCardStampsAndNormalizes(t *testing.T) {
	t.Parallel()
	store := service.NewStore(newStepClock(), &seqID{}, nil)
	store.AppendCard(domain.Card{Front: "Q1", Back: "A1"})
	store.AppendCard(domain.Card{Front: "Q2", Back: "A2"})
	cards := store.Snapshot().Run.Cards
	if len(cards) != 2 {
		t.Fatalf("expected two cards, got %d", len(cards))
	}
	if cards[0].UID == "" || cards[0].UID == cards[1].UID {
		t.Fatalf("cards must get distinct uids: %q vs %q", cards[0].UID, cards[1].UID)
	}
	if cards[0].ModelName != domain.DefaultModelName {
		t.Fatalf("cards must be normalized on append, got %+v", cards[0])
	}
}

func TestStoreResetRunKeepsConfigAndPreferences(t *testing.T) {
	t.Parallel()
	store := service.NewStore(newStepClock(), &seqID{}, nil)
	store.SetDeckName("Bio::Cells")
	store.SetSourceFile("/tmp/lecture.pdf")
	store.AppendLog(domain.LogError, "boom")
	store.SetFailed(true)
	store.SetSession("abc")
	store.ResetRun()
	snap := store.Snapshot()
	if snap.Config.DeckName != "Bio::Cells" || snap.Config.SourceFile != "/tmp/lecture.pdf" {
		t.Fatalf("config must survive a reset, got %+v", snap.Config)
	}
	if snap.Run.Failed || snap.Run.SessionID != "" || len(snap.Run.Logs) != 0 {
		t.Fatalf("run slice must be clean after reset, got %+v", snap.Run)
	}
	if snap.Run.Step != domain.StepDashboard || snap.Run.Phase != domain.PhaseIdle {
		t.Fatalf("reset must land on the dashboard, got %+v", snap.Run)
	}
}

func TestStoreSnapshotIsIsolatedFromLaterMutations(t *testing.T) {
	t.Parallel()
	store := service.NewStore(newStepClock(), &seqID{}, nil)
	store.AppendCard(domain.Card{Front: "Q", Back: "A", Tags: []string{"bio"}})
	snap := store.Snapshot()
	if err := store.UpdateCard(0, domain.Card{Front: "changed", Back: "changed", Tags: []string{"bio"}}); err != nil {
		t.Fatalf("update card: %v", err)
	}
	if snap.Run.Cards[0].Front != "Q" {
		t.Fatalf("snapshot must not see later updates, got %q", snap.Run.Cards[0].Front)
	}
	snap.Run.Cards[0].Tags[0] = "mutated"
	if store.Snapshot().Run.Cards[0].Tags[0] == "mutated" {
		t.Fatalf("mutating a snapshot must not reach the store")
	}
}

func TestStoreCompleteRunReportsTransitionOnce(t *testing.T) {
	t.Parallel()
	store := service.NewStore(newStepClock(), &seqID{}, nil)
	store.StartRun()
	store.StartBatch(20)
	store.SetBatchCurrent(13)
	if !store.CompleteRun() {
		t.Fatalf("first completion must report a transition")
	}
	if store.CompleteRun() {
		t.Fatalf("second completion must be a no-op")
	}
	run := store.Snapshot().Run
	if run.Step != domain.StepDone || run.Phase != domain.PhaseComplete {
		t.Fatalf("expected terminal step and phase, got %+v", run)
	}
	if run.Batch.Current != run.Batch.Total {
		t.Fatalf("done must force the batch to its total, got %+v", run.Batch)
	}
}

func TestStoreSeedRecoveredIsAtomicAndIdempotentOnUIDs(t *testing.T) {
	t.Parallel()
	store := service.NewStore(newStepClock(), &seqID{}, nil)
	cards := []domain.Card{{UID: "keep-1", Front: "Q1"}, {Front: "Q2"}}
	store.SeedRecovered("abc", "Chem::Bonds", cards, false)
	snap := store.Snapshot()
	if snap.Run.Step != domain.StepDone || !snap.Run.Historical {
		t.Fatalf("inactive seed must land on done/historical, got %+v", snap.Run)
	}
	if snap.Config.DeckName != "Chem::Bonds" || snap.Run.SessionID != "abc" {
		t.Fatalf("seed must carry deck and session, got %+v", snap)
	}
	if snap.Run.Cards[0].UID != "keep-1" || snap.Run.Cards[1].UID == "" {
		t.Fatalf("seed stamping must be idempotent, got %+v", snap.Run.Cards)
	}

	store.SeedRecovered("abc", "Chem::Bonds", []domain.Card{{Front: "live"}}, true)
	run := store.Snapshot().Run
	if run.Step != domain.StepGenerating || run.Historical {
		t.Fatalf("active seed must resume generating, got %+v", run)
	}
}

func TestStorePersistsStickyPreferences(t *testing.T) {
	t.Parallel()
	prefs := newMemPrefs()
	store := service.NewStore(newStepClock(), &seqID{}, prefs)
	store.SetSourceType(context.Background(), domain.SourceTypeSlides)
	store.SetTargetSize(context.Background(), 35)

	reopened := service.NewStore(newStepClock(), &seqID{}, prefs)
	cfg := reopened.Config()
	if cfg.SourceType != domain.SourceTypeSlides || cfg.TargetSize != 35 {
		t.Fatalf("preferences must survive a restart, got %+v", cfg)
	}
}

func TestStoreRemoveCardOnlyThroughExplicitAction(t *testing.T) {
	t.Parallel()
	store := service.NewStore(newStepClock(), &seqID{}, nil)
	store.AppendCard(domain.Card{Front: "Q1"})
	store.AppendCard(domain.Card{Front: "Q2"})
	if err := store.RemoveCard(5); err == nil {
		t.Fatalf("out of range delete must fail")
	}
	if err := store.RemoveCard(0); err != nil {
		t.Fatalf("remove card: %v", err)
	}
	cards := store.Snapshot().Run.Cards
	if len(cards) != 1 || cards[0].Front != "Q2" {
		t.Fatalf("expected only the second card to remain, got %+v", cards)
	}
}
