package domain_test

import (
	"testing"
	"time"

	"deckhand/internal/modules/history/domain"
)

func validRun() domain.Run {
	return domain.Run{
		SessionID:  "abc",
		DeckName:   "Bio::Cells",
		Slug:       "bio-cells-abc",
		SourceFile: "/tmp/lecture.pdf",
		CardCount:  12,
		StartedAt:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 3, 1, 12, 4, 30, 0, time.UTC),
	}
}

func TestRunValidate(t *testing.T) {
	t.Parallel()
	if err := validRun().Validate(); err != nil {
		t.Fatalf("valid run rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*domain.Run)
	}{
		{"missing session id", func(r *domain.Run) { r.SessionID = "  " }},
		{"missing deck", func(r *domain.Run) { r.DeckName = "" }},
		{"missing slug", func(r *domain.Run) { r.Slug = "" }},
		{"negative count", func(r *domain.Run) { r.CardCount = -1 }},
	}
	for _, tc := range cases {
		run := validRun()
		tc.mutate(&run)
		if err := run.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestRunDuration(t *testing.T) {
	t.Parallel()
	if got := validRun().Duration(); got != 4*time.Minute+30*time.Second {
		t.Fatalf("duration = %v", got)
	}

	backwards := validRun()
	backwards.FinishedAt = backwards.StartedAt.Add(-time.Minute)
	if got := backwards.Duration(); got != 0 {
		t.Fatalf("backwards timestamps must clamp to zero, got %v", got)
	}
}
