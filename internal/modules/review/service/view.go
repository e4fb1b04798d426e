package service

import (
	"sort"
	"strings"

	gendto "deckhand/internal/modules/generation/dto"
	"deckhand/internal/modules/review/domain"
)

// Entry pairs a card with its position in the engine's list so a
// sorted or filtered view can still address the original slot.
type Entry struct {
	Index int
	Card  gendto.CardView
}

// Arrange filters the list by query and orders it by mode. The match
// is a case-insensitive substring test over front, back, slide topic
// and tags.
func Arrange(cards []gendto.CardView, query string, mode domain.SortMode) []Entry {
	needle := strings.ToLower(strings.TrimSpace(query))
	entries := make([]Entry, 0, len(cards))
	for i, c := range cards {
		if needle != "" && !matches(c, needle) {
			continue
		}
		entries = append(entries, Entry{Index: i, Card: c})
	}

	switch mode {
	case domain.SortFront:
		sort.SliceStable(entries, func(a, b int) bool {
			fa := strings.ToLower(entries[a].Card.Front)
			fb := strings.ToLower(entries[b].Card.Front)
			if fa != fb {
				return fa < fb
			}
			return entries[a].Index < entries[b].Index
		})
	case domain.SortSlide:
		sort.SliceStable(entries, func(a, b int) bool {
			sa, sb := entries[a].Card.SlideNumber, entries[b].Card.SlideNumber
			if sa != sb {
				return sa < sb
			}
			return entries[a].Index < entries[b].Index
		})
	default:
		// Recent: the engine appends in arrival order, so newest last.
		sort.SliceStable(entries, func(a, b int) bool {
			return entries[a].Index > entries[b].Index
		})
	}
	return entries
}

func matches(c gendto.CardView, needle string) bool {
	if strings.Contains(strings.ToLower(c.Front), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(c.Back), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(c.SlideTopic), needle) {
		return true
	}
	for _, tag := range c.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}
