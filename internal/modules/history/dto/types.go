package dto

import "time"

type RecordRunInput struct {
	SessionID  string
	DeckName   string
	SourceFile string
	CardCount  int
	StartedAt  time.Time
	FinishedAt time.Time
}

type RunView struct {
	SessionID  string
	DeckName   string
	SourceFile string
	CardCount  int
	StartedAt  time.Time
	FinishedAt time.Time
	NotePath   string
}

type RunDetail struct {
	RunView
	Body string
}
