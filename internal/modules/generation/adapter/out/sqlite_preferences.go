package out

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	apperrors "deckhand/internal/platform/errors"
)

// SQLitePreferences stores sticky per-user settings (source type,
// target deck size, review sort order) in the shared database. Both
// the generation and the review module declare the same two-method
// port, so one instance serves them both.
type SQLitePreferences struct {
	db *sql.DB
}

func NewSQLitePreferences(db *sql.DB) (*SQLitePreferences, error) {
	prefs := &SQLitePreferences{db: db}
	if err := prefs.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	return prefs, nil
}

func (p *SQLitePreferences) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS preferences (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL
);
`
	if _, err := p.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create preferences table: %w", err)
	}
	return nil
}

func (p *SQLitePreferences) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := p.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("preference %s: %w", key, apperrors.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read preference %s: %w", key, err)
	}
	return value, nil
}

func (p *SQLitePreferences) Set(ctx context.Context, key, value string) error {
	const stmt = `
INSERT INTO preferences (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value=excluded.value;
`
	if _, err := p.db.ExecContext(ctx, stmt, key, value); err != nil {
		return fmt.Errorf("write preference %s: %w", key, err)
	}
	return nil
}
