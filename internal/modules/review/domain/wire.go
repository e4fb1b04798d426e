package domain

import (
	"encoding/json"
	"fmt"
)

type wireSyncEvent struct {
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// DecodeSyncEvent parses one NDJSON line from a push stream. Lines that
// are not valid JSON or carry an unusable payload return an error;
// callers skip them without disturbing the rest of the stream.
func DecodeSyncEvent(line []byte) (SyncEvent, error) {
	var w wireSyncEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return SyncEvent{}, fmt.Errorf("decode sync event: %w", err)
	}
	if w.Type == "" {
		return SyncEvent{}, fmt.Errorf("decode sync event: missing type")
	}

	ev := SyncEvent{Kind: SyncEventKind(w.Type), Message: w.Message}
	switch ev.Kind {
	case SyncProgressStart:
		var d struct {
			Total int `json:"total"`
		}
		if err := decodeSyncData(w.Data, &d); err != nil {
			return SyncEvent{}, err
		}
		ev.Total = d.Total
	case SyncProgressUpdate:
		var d struct {
			Current int `json:"current"`
		}
		if err := decodeSyncData(w.Data, &d); err != nil {
			return SyncEvent{}, err
		}
		ev.Current = d.Current
	case SyncNoteCreated:
		var d struct {
			NoteID int64 `json:"note_id"`
		}
		if err := decodeSyncData(w.Data, &d); err != nil {
			return SyncEvent{}, err
		}
		ev.NoteID = d.NoteID
	}
	return ev, nil
}

func decodeSyncData(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode sync payload: %w", err)
	}
	return nil
}
