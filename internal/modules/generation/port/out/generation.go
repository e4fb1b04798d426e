package out

import (
	"context"
	"time"

	"deckhand/internal/modules/generation/domain"
)

// EventStream is a live NDJSON event sequence. Events closes the channel
// when the stream ends; Err then reports why, nil on a clean terminal.
type EventStream interface {
	Events() <-chan domain.Event
	Err() error
	Close() error
}

// SessionSnapshot is the server's view of a session's artifacts.
type SessionSnapshot struct {
	DeckName string
	Cards    []domain.Card
}

type Backend interface {
	EstimateCost(ctx context.Context, cfg domain.JobConfig) (domain.Estimate, error)
	Generate(ctx context.Context, cfg domain.JobConfig) (EventStream, error)
	StopGeneration(ctx context.Context, sessionID string) error
	SessionStatus(ctx context.Context, sessionID string) (bool, error)
	SessionSnapshot(ctx context.Context, sessionID string) (SessionSnapshot, error)
}

// SessionSlot is the single durable slot holding the resumable session
// id. Load returns apperrors.ErrNoActiveSession when the slot is empty.
type SessionSlot interface {
	Save(ctx context.Context, sessionID string) error
	Load(ctx context.Context) (string, error)
	Clear(ctx context.Context) error
}

// Preferences persists sticky UI choices (source type, target size,
// sort order). Get returns apperrors.ErrNotFound for unknown keys.
type Preferences interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// CompletedRun is handed to the archive when a run reaches done.
type CompletedRun struct {
	SessionID  string
	DeckName   string
	SourceFile string
	CardCount  int
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunRecorder archives completed runs. Failures are logged, never
// surfaced: archiving must not fail a finished job.
type RunRecorder interface {
	RecordCompleted(ctx context.Context, run CompletedRun) error
}
