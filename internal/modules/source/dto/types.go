package dto

type InspectionView struct {
	Path       string
	Title      string
	Kind       string
	SizeBytes  int64
	Pages      int
	PagesExact bool
	Lines      int
}
