package domain

import (
	"path/filepath"
	"strings"
)

type Kind string

const (
	KindPDF      Kind = "pdf"
	KindMarkdown Kind = "markdown"
	KindText     Kind = "text"
)

// linesPerPage is the density used to approximate a page count for
// plain-text sources, matching how the backend prices them.
const linesPerPage = 40

// KindForPath maps a file extension to a source kind. The second
// return is false for extensions the backend cannot ingest.
func KindForPath(path string) (Kind, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return KindPDF, true
	case ".md", ".markdown":
		return KindMarkdown, true
	case ".txt", ".text":
		return KindText, true
	default:
		return "", false
	}
}

// EstimatePages approximates a page count from a line count. Anything
// non-empty is at least one page.
func EstimatePages(lines int) int {
	if lines <= 0 {
		return 0
	}
	pages := lines / linesPerPage
	if lines%linesPerPage != 0 {
		pages++
	}
	return pages
}

// TitleFromPath guesses a human title from the filename: extension
// stripped, separators turned into spaces.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.Join(strings.Fields(base), " ")
}

// Inspection is what the client can tell about a source file without
// the backend: format, size, and a page count (exact for PDFs,
// line-derived otherwise).
type Inspection struct {
	Path       string
	Title      string
	Kind       Kind
	SizeBytes  int64
	Pages      int
	PagesExact bool
	Lines      int
}
