package dto

import gendto "deckhand/internal/modules/generation/dto"

// Entry pairs a card with its position in the engine's list. Actions
// address cards by that position no matter how the view is sorted or
// filtered.
type Entry struct {
	Index int
	Card  gendto.CardView
}

type SyncView struct {
	Running bool
	Current int
	Total   int
	Synced  int
	Failed  bool
	Done    bool
	Message string
}

type Snapshot struct {
	Entries   []Entry
	Editing   bool
	EditIndex int
	Buffer    gendto.CardView
	Sync      SyncView
	SortMode  string
	Query     string
}
