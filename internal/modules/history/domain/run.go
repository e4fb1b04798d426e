package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	ManagedSummaryStart = "<!-- deckhand:summary:start -->"
	ManagedSummaryEnd   = "<!-- deckhand:summary:end -->"
	SchemaVersion       = 1
)

// Run is one archived generation: the deck it produced, where the cards
// came from, and when it ran. The session id is the archive key; a run
// recorded twice overwrites its own note instead of growing a sibling.
type Run struct {
	SessionID  string
	DeckName   string
	Slug       string
	SourceFile string
	CardCount  int
	StartedAt  time.Time
	FinishedAt time.Time
	NotePath   string
}

func (r Run) Validate() error {
	if strings.TrimSpace(r.SessionID) == "" {
		return fmt.Errorf("session id is required")
	}
	if strings.TrimSpace(r.DeckName) == "" {
		return fmt.Errorf("deck name is required")
	}
	if strings.TrimSpace(r.Slug) == "" {
		return fmt.Errorf("slug is required")
	}
	if r.CardCount < 0 {
		return fmt.Errorf("card count must not be negative")
	}
	return nil
}

func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunDocument pairs a run with the free-form note body kept below the
// frontmatter.
type RunDocument struct {
	Run  Run
	Body string
}
