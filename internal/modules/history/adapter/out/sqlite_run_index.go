package out

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"deckhand/internal/modules/history/domain"
	historyout "deckhand/internal/modules/history/port/out"
	"deckhand/internal/platform/sqlite"
)

type SQLiteRunIndex struct {
	db *sql.DB
}

func NewSQLiteRunIndex(db *sql.DB) (historyout.RunIndex, error) {
	index := &SQLiteRunIndex{db: db}
	if err := index.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return index, nil
}

func (s *SQLiteRunIndex) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS runs (
  session_id TEXT PRIMARY KEY,
  deck_name TEXT NOT NULL,
  slug TEXT NOT NULL,
  source_file TEXT,
  card_count INTEGER NOT NULL,
  started_at TEXT NOT NULL,
  finished_at TEXT NOT NULL,
  note_path TEXT
);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create runs table: %w", err)
	}
	return nil
}

const upsertRun = `
INSERT INTO runs (session_id, deck_name, slug, source_file, card_count, started_at, finished_at, note_path)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id) DO UPDATE SET
  deck_name=excluded.deck_name,
  slug=excluded.slug,
  source_file=excluded.source_file,
  card_count=excluded.card_count,
  started_at=excluded.started_at,
  finished_at=excluded.finished_at,
  note_path=excluded.note_path;
`

func (s *SQLiteRunIndex) Upsert(ctx context.Context, run domain.Run) error {
	if _, err := s.db.ExecContext(ctx, upsertRun, runArgs(run)...); err != nil {
		return fmt.Errorf("upsert run: %w", err)
	}
	return nil
}

// Search matches the query against deck name and source file. An empty
// query returns the whole index, newest first.
func (s *SQLiteRunIndex) Search(ctx context.Context, query string) ([]domain.Run, error) {
	const stmt = `
SELECT session_id, deck_name, slug, source_file, card_count, started_at, finished_at, note_path
FROM runs
WHERE (? = '' OR deck_name LIKE ? OR source_file LIKE ?)
ORDER BY finished_at DESC;
`
	like := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, stmt, query, like, like)
	if err != nil {
		return nil, fmt.Errorf("search runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		var run domain.Run
		var startedAt, finishedAt string
		if err := rows.Scan(&run.SessionID, &run.DeckName, &run.Slug, &run.SourceFile, &run.CardCount, &startedAt, &finishedAt, &run.NotePath); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		run.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		run.FinishedAt, _ = time.Parse(time.RFC3339, finishedAt)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// Rebuild replaces the whole projection in one transaction, so a
// failed reindex never leaves the table half-filled.
func (s *SQLiteRunIndex) Rebuild(ctx context.Context, runs []domain.Run) error {
	return sqlite.Within(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM runs`); err != nil {
			return fmt.Errorf("reset runs: %w", err)
		}
		for _, run := range runs {
			if _, err := tx.ExecContext(ctx, upsertRun, runArgs(run)...); err != nil {
				return fmt.Errorf("index run %s: %w", run.SessionID, err)
			}
		}
		return nil
	})
}

func runArgs(run domain.Run) []any {
	return []any{
		run.SessionID,
		run.DeckName,
		run.Slug,
		run.SourceFile,
		run.CardCount,
		run.StartedAt.Format(time.RFC3339),
		run.FinishedAt.Format(time.RFC3339),
		run.NotePath,
	}
}
