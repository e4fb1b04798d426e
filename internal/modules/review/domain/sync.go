package domain

type SyncEventKind string

const (
	SyncProgressStart  SyncEventKind = "progress_start"
	SyncProgressUpdate SyncEventKind = "progress_update"
	SyncNoteCreated    SyncEventKind = "note_created"
	SyncStatus         SyncEventKind = "status"
	SyncInfo           SyncEventKind = "info"
	SyncWarning        SyncEventKind = "warning"
	SyncError          SyncEventKind = "error"
	SyncDone           SyncEventKind = "done"
	SyncCancelled      SyncEventKind = "cancelled"
)

func (k SyncEventKind) Terminal() bool {
	return k == SyncDone || k == SyncCancelled
}

// SyncEvent is one decoded record from the push stream. The wire schema
// is the same envelope the generation stream uses; only the payloads the
// push emits are mapped.
type SyncEvent struct {
	Kind    SyncEventKind
	Message string
	Current int
	Total   int
	NoteID  int64
}

// SyncState is the fold of a push stream: counters for the progress
// bar, the latest human-readable line, and terminal flags. Values are
// immutable; Apply returns the successor state.
type SyncState struct {
	Running bool
	Current int
	Total   int
	Synced  int
	Failed  bool
	Done    bool
	Message string
}

// Start is the state of a freshly opened push.
func (s SyncState) Start() SyncState {
	return SyncState{Running: true}
}

func (s SyncState) Apply(ev SyncEvent) SyncState {
	switch ev.Kind {
	case SyncProgressStart:
		s.Current = 0
		if ev.Total > 0 {
			s.Total = ev.Total
		}
	case SyncProgressUpdate:
		if s.Total > 0 {
			c := ev.Current
			if c < 0 {
				c = 0
			}
			if c > s.Total {
				c = s.Total
			}
			s.Current = c
		}
	case SyncNoteCreated:
		s.Synced++
		if ev.Message != "" {
			s.Message = ev.Message
		}
	case SyncError:
		s.Failed = true
		if ev.Message != "" {
			s.Message = ev.Message
		}
	case SyncStatus, SyncInfo, SyncWarning:
		if ev.Message != "" {
			s.Message = ev.Message
		}
	case SyncDone:
		s.Running = false
		s.Done = true
		s.Current = s.Total
		if ev.Message != "" {
			s.Message = ev.Message
		}
	case SyncCancelled:
		s.Running = false
		if ev.Message != "" {
			s.Message = ev.Message
		}
	}
	return s
}

// Fail marks a push whose stream broke without a terminal event.
func (s SyncState) Fail(message string) SyncState {
	s.Running = false
	s.Failed = true
	if message != "" {
		s.Message = message
	}
	return s
}
