package dto

import "time"

// Step and Phase values as they appear in a Snapshot.
const (
	StepDashboard  = "dashboard"
	StepConfig     = "config"
	StepGenerating = "generating"
	StepDone       = "done"

	PhaseIdle       = "idle"
	PhaseConcept    = "concept"
	PhaseGenerating = "generating"
	PhaseReflecting = "reflecting"
	PhaseComplete   = "complete"

	SourceAuto     = "auto"
	SourceSlides   = "slides"
	SourceTextbook = "textbook"
	SourceNotes    = "notes"
)

// ConfigInput carries user-entered job settings. Zero values mean
// "leave unchanged" except Focus, which is applied verbatim once
// SourceFile is set.
type ConfigInput struct {
	SourceFile string
	DeckName   string
	Focus      string
	SourceType string
	TargetSize int
}

type CardView struct {
	UID         string
	Front       string
	Back        string
	Tags        []string
	ModelName   string
	Fields      map[string]string
	SlideNumber int
	SlideTopic  string
	AnkiNoteID  int64
}

func (c CardView) Synced() bool {
	return c.AnkiNoteID != 0
}

type LogView struct {
	Level   string
	Message string
	At      time.Time
}

// Snapshot is a consistent copy of the whole engine state for one read.
type Snapshot struct {
	Step       string
	Phase      string
	SourceFile string
	DeckName   string
	Focus      string
	SourceType string
	TargetSize int

	SetupSteps    int
	BatchCurrent  int
	BatchTotal    int
	ExpectedCards int
	Cards         []CardView
	Logs          []LogView
	Failed        bool
	Cancelling    bool
	SessionID     string
	Historical    bool

	RawPercent     float64
	DisplayPercent float64
}

type EstimateView struct {
	Tokens             int
	InputTokens        int
	OutputTokens       int
	Cost               float64
	InputCost          float64
	OutputCost         float64
	Pages              int
	Model              string
	EstimatedCardCount int
}
