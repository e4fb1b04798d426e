package domain

// SortMode orders the review list. Recent keeps arrival order newest
// first; Front is lexicographic; Slide follows the source material.
type SortMode string

const (
	SortRecent SortMode = "recent"
	SortFront  SortMode = "front"
	SortSlide  SortMode = "slide"
)

func ParseSortMode(s string) (SortMode, bool) {
	switch SortMode(s) {
	case SortRecent, SortFront, SortSlide:
		return SortMode(s), true
	}
	return "", false
}
