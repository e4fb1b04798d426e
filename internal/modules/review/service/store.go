package service

import (
	"context"
	"sync"

	gendto "deckhand/internal/modules/generation/dto"
	"deckhand/internal/modules/review/domain"
	reviewout "deckhand/internal/modules/review/port/out"
)

const prefSortMode = "review_sort"

// Store owns the review-side state: the edit buffer, the sync fold and
// the sticky view settings. Card data itself lives in the generation
// engine; the store never keeps its own copy of the list.
type Store struct {
	mu    sync.Mutex
	prefs reviewout.Preferences

	editing   bool
	editIndex int
	buffer    gendto.CardView

	sync domain.SyncState

	sortMode domain.SortMode
	query    string
}

func NewStore(prefs reviewout.Preferences) *Store {
	s := &Store{prefs: prefs, sortMode: domain.SortRecent}
	s.loadPreferences()
	return s
}

func (s *Store) loadPreferences() {
	if s.prefs == nil {
		return
	}
	if v, err := s.prefs.Get(context.Background(), prefSortMode); err == nil {
		if m, ok := domain.ParseSortMode(v); ok {
			s.sortMode = m
		}
	}
}

// BeginEdit loads a copy of the card into the buffer. A second edit
// simply retargets the buffer; there is nothing to roll back.
func (s *Store) BeginEdit(index int, card gendto.CardView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editing = true
	s.editIndex = index
	s.buffer = cloneView(card)
}

func (s *Store) SetBuffer(card gendto.CardView) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editing {
		return false
	}
	uid := s.buffer.UID
	s.buffer = cloneView(card)
	s.buffer.UID = uid
	return true
}

// TakeEdit ends the edit and hands back its target and buffer.
func (s *Store) TakeEdit() (int, gendto.CardView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.editing {
		return 0, gendto.CardView{}, false
	}
	s.editing = false
	return s.editIndex, s.buffer, true
}

func (s *Store) EndEdit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editing = false
	s.buffer = gendto.CardView{}
}

func (s *Store) Editing() (gendto.CardView, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneView(s.buffer), s.editIndex, s.editing
}

// StartSync flips the running flag and reports whether it won; a false
// return means a push is already in flight.
func (s *Store) StartSync() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sync.Running {
		return false
	}
	s.sync = domain.SyncState{}.Start()
	return true
}

func (s *Store) ApplySync(ev domain.SyncEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sync = s.sync.Apply(ev)
}

func (s *Store) FailSync(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sync = s.sync.Fail(message)
}

func (s *Store) SyncState() domain.SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sync
}

func (s *Store) SetSortMode(ctx context.Context, mode domain.SortMode) {
	s.mu.Lock()
	s.sortMode = mode
	prefs := s.prefs
	s.mu.Unlock()
	if prefs != nil {
		_ = prefs.Set(ctx, prefSortMode, string(mode))
	}
}

func (s *Store) SortMode() domain.SortMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortMode
}

func (s *Store) SetQuery(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = query
}

func (s *Store) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

func cloneView(c gendto.CardView) gendto.CardView {
	out := c
	if c.Tags != nil {
		out.Tags = append([]string(nil), c.Tags...)
	}
	if c.Fields != nil {
		out.Fields = make(map[string]string, len(c.Fields))
		for k, v := range c.Fields {
			out.Fields[k] = v
		}
	}
	return out
}
