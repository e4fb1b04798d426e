package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventKind string

const (
	EventSessionStart   EventKind = "session_start"
	EventStatus         EventKind = "status"
	EventInfo           EventKind = "info"
	EventWarning        EventKind = "warning"
	EventError          EventKind = "error"
	EventProgressStart  EventKind = "progress_start"
	EventProgressUpdate EventKind = "progress_update"
	EventCard           EventKind = "card"
	EventCardGenerated  EventKind = "card_generated"
	EventNoteCreated    EventKind = "note_created"
	EventStepStart      EventKind = "step_start"
	EventDone           EventKind = "done"
	EventCancelled      EventKind = "cancelled"
)

// Terminal reports whether the event ends a stream's influence on run
// state.
func (k EventKind) Terminal() bool {
	return k == EventDone || k == EventCancelled
}

// Event is one decoded stream record. Kind selects which payload fields
// are meaningful; the fold site switches on it exhaustively.
type Event struct {
	Kind      EventKind
	Message   string
	Timestamp time.Time

	SessionID string // session_start
	Total     int    // progress_start
	Expected  int    // progress_start, when the server predicts a card count
	Current   int    // progress_update
	Card      *Card  // card / card_generated
	Phase     Phase  // step_start, empty when the payload names no phase
	NoteID    int64  // note_created
}

type wireEvent struct {
	Type      string          `json:"type"`
	Message   string          `json:"message"`
	Data      json.RawMessage `json:"data"`
	Timestamp float64         `json:"timestamp"`
}

// DecodeEvent parses one NDJSON line into a typed event. A line that is
// not valid JSON, or that carries an unusable payload, returns an error;
// callers skip such lines without disturbing the rest of the stream.
func DecodeEvent(line []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if w.Type == "" {
		return Event{}, fmt.Errorf("decode event: missing type")
	}

	ev := Event{Kind: EventKind(w.Type), Message: w.Message}
	if w.Timestamp > 0 {
		sec := int64(w.Timestamp)
		ev.Timestamp = time.Unix(sec, int64((w.Timestamp-float64(sec))*1e9)).UTC()
	}

	switch ev.Kind {
	case EventSessionStart:
		var d struct {
			SessionID string `json:"session_id"`
		}
		if err := decodeData(w.Data, &d); err != nil {
			return Event{}, err
		}
		ev.SessionID = d.SessionID
	case EventProgressStart:
		var d struct {
			Total         int `json:"total"`
			ExpectedCards int `json:"expected_cards"`
		}
		if err := decodeData(w.Data, &d); err != nil {
			return Event{}, err
		}
		ev.Total = d.Total
		ev.Expected = d.ExpectedCards
	case EventProgressUpdate:
		var d struct {
			Current int `json:"current"`
		}
		if err := decodeData(w.Data, &d); err != nil {
			return Event{}, err
		}
		ev.Current = d.Current
	case EventCard, EventCardGenerated:
		if len(w.Data) == 0 {
			return Event{}, fmt.Errorf("decode event: %s without card payload", w.Type)
		}
		var card Card
		if err := json.Unmarshal(w.Data, &card); err != nil {
			return Event{}, fmt.Errorf("decode card payload: %w", err)
		}
		ev.Card = &card
	case EventStepStart:
		var d struct {
			Phase string `json:"phase"`
		}
		if err := decodeData(w.Data, &d); err != nil {
			return Event{}, err
		}
		if phase, ok := ParsePhase(d.Phase); ok {
			ev.Phase = phase
		}
	case EventNoteCreated:
		var d struct {
			NoteID int64 `json:"note_id"`
		}
		if err := decodeData(w.Data, &d); err != nil {
			return Event{}, err
		}
		ev.NoteID = d.NoteID
	}
	return ev, nil
}

func decodeData(raw json.RawMessage, into any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}
	return nil
}
