package domain

import (
	"strings"
	"time"
)

type Step string

const (
	StepDashboard  Step = "dashboard"
	StepConfig     Step = "config"
	StepGenerating Step = "generating"
	StepDone       Step = "done"
)

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseConcept    Phase = "concept"
	PhaseGenerating Phase = "generating"
	PhaseReflecting Phase = "reflecting"
	PhaseComplete   Phase = "complete"
)

func ParsePhase(s string) (Phase, bool) {
	switch Phase(s) {
	case PhaseIdle, PhaseConcept, PhaseGenerating, PhaseReflecting, PhaseComplete:
		return Phase(s), true
	}
	return "", false
}

type SourceType string

const (
	SourceTypeAuto     SourceType = "auto"
	SourceTypeSlides   SourceType = "slides"
	SourceTypeTextbook SourceType = "textbook"
	SourceTypeNotes    SourceType = "notes"
)

func ParseSourceType(s string) (SourceType, bool) {
	switch SourceType(s) {
	case SourceTypeAuto, SourceTypeSlides, SourceTypeTextbook, SourceTypeNotes:
		return SourceType(s), true
	}
	return "", false
}

type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

type LogEntry struct {
	Level   LogLevel
	Message string
	At      time.Time
}

type BatchProgress struct {
	Current int
	Total   int
}

// JobConfig is what the user fills in before submitting a run.
type JobConfig struct {
	SourceFile string
	DeckName   string
	Focus      string
	SourceType SourceType
	TargetSize int
}

// ReadyToSubmit is the submit guard: a run needs a source file and a
// deck name, nothing else.
func (c JobConfig) ReadyToSubmit() bool {
	return c.SourceFile != "" && strings.TrimSpace(c.DeckName) != ""
}

// RunState is the per-job slice of the store. It is reset between jobs
// while preferences and config survive.
type RunState struct {
	Step          Step
	Phase         Phase
	SetupSteps    int
	Batch         BatchProgress
	ExpectedCards int
	Logs          []LogEntry
	Cards         []Card
	Failed        bool
	Cancelling    bool
	SessionID     string
	Historical    bool
}

func NewRunState() RunState {
	return RunState{Step: StepDashboard, Phase: PhaseIdle}
}

// State is the full aggregate a snapshot exposes.
type State struct {
	Config JobConfig
	Run    RunState
}
