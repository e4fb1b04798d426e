package out

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"deckhand/internal/modules/history/domain"
	historyout "deckhand/internal/modules/history/port/out"
	apperrors "deckhand/internal/platform/errors"
	"deckhand/internal/platform/markdown"
)

// DeckNoteStore keeps one markdown note per archived run under
// <dataDir>/decks. The frontmatter is authoritative; the body belongs
// to the user except for the managed summary block, which is rewritten
// on every save.
type DeckNoteStore struct {
	dataDir string
}

func NewDeckNoteStore(dataDir string) historyout.RunStore {
	return &DeckNoteStore{dataDir: dataDir}
}

func (s *DeckNoteStore) Save(_ context.Context, document domain.RunDocument) (string, error) {
	run := document.Run
	notePath := filepath.Join(s.dataDir, "decks", run.Slug+".md")
	if err := os.MkdirAll(filepath.Dir(notePath), 0o755); err != nil {
		return "", fmt.Errorf("create decks directory: %w", err)
	}

	body := document.Body
	if existing, err := os.ReadFile(notePath); err == nil {
		_, existingBody, splitErr := markdown.SplitFrontmatter(string(existing))
		if splitErr == nil && strings.TrimSpace(body) == "" {
			body = existingBody
		}
	}
	if strings.TrimSpace(body) == "" {
		body = "## Notes\n"
	}
	body = markdown.ReplaceManagedBlock(body, domain.ManagedSummaryStart, domain.ManagedSummaryEnd, summaryLines(run))

	rendered, err := markdown.RenderFrontmatter(toFrontmatter(run), body)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(notePath, []byte(rendered), 0o644); err != nil {
		return "", fmt.Errorf("write run note: %w", err)
	}
	return notePath, nil
}

func (s *DeckNoteStore) FindBySession(ctx context.Context, sessionID string) (domain.RunDocument, error) {
	docs, err := s.List(ctx)
	if err != nil {
		return domain.RunDocument{}, err
	}
	for _, doc := range docs {
		if doc.Run.SessionID == sessionID {
			return doc, nil
		}
	}
	return domain.RunDocument{}, apperrors.ErrNotFound
}

func (s *DeckNoteStore) List(_ context.Context) ([]domain.RunDocument, error) {
	glob := filepath.Join(s.dataDir, "decks", "*.md")
	matches, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("glob run notes: %w", err)
	}
	sort.Strings(matches)

	out := make([]domain.RunDocument, 0, len(matches))
	for _, path := range matches {
		content, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read %s: %w", path, readErr)
		}
		meta, body, splitErr := markdown.SplitFrontmatter(string(content))
		if splitErr != nil {
			return nil, fmt.Errorf("parse %s: %w", path, splitErr)
		}
		run, convErr := fromFrontmatter(meta, path)
		if convErr != nil {
			return nil, fmt.Errorf("decode run %s: %w", path, convErr)
		}
		out = append(out, domain.RunDocument{Run: run, Body: body})
	}
	return out, nil
}

func summaryLines(run domain.Run) string {
	lines := []string{
		fmt.Sprintf("- Cards: %d", run.CardCount),
		fmt.Sprintf("- Source: %s", run.SourceFile),
		fmt.Sprintf("- Duration: %s", run.Duration().Round(time.Second)),
	}
	return strings.Join(lines, "\n")
}

func toFrontmatter(run domain.Run) map[string]any {
	return map[string]any{
		"schema_version": domain.SchemaVersion,
		"session_id":     run.SessionID,
		"deck":           run.DeckName,
		"source_file":    run.SourceFile,
		"card_count":     run.CardCount,
		"started_at":     run.StartedAt.Format(time.RFC3339),
		"finished_at":    run.FinishedAt.Format(time.RFC3339),
	}
}

func fromFrontmatter(meta map[string]any, notePath string) (domain.Run, error) {
	run := domain.Run{
		SessionID:  asString(meta["session_id"]),
		DeckName:   asString(meta["deck"]),
		SourceFile: asString(meta["source_file"]),
		CardCount:  asInt(meta["card_count"]),
		NotePath:   notePath,
	}
	run.Slug = strings.TrimSuffix(filepath.Base(notePath), filepath.Ext(notePath))
	startedAt, _ := time.Parse(time.RFC3339, asString(meta["started_at"]))
	finishedAt, _ := time.Parse(time.RFC3339, asString(meta["finished_at"]))
	run.StartedAt = startedAt
	run.FinishedAt = finishedAt
	if err := run.Validate(); err != nil {
		return domain.Run{}, err
	}
	return run, nil
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	default:
		return fmt.Sprint(v)
	}
}

func asInt(v any) int {
	switch x := v.(type) {
	case int:
		return x
	case int64:
		return int(x)
	case float64:
		return int(x)
	case string:
		var out int
		_, _ = fmt.Sscanf(x, "%d", &out)
		return out
	default:
		return 0
	}
}
