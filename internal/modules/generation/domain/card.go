package domain

import "encoding/json"

const DefaultModelName = "Basic"

// Card is one generated flashcard draft. AnkiNoteID is zero until the
// card has been pushed to Anki; a card that loses its note id goes back
// to being an unsynced draft.
type Card struct {
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

func (c Card) Synced() bool {
	return c.AnkiNoteID != 0
}

// Normalize fills the defaults a card needs before it enters the store:
// a model name and non-nil tag/field containers.
func (c Card) Normalize() Card {
	if c.ModelName == "" {
		c.ModelName = DefaultModelName
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.Fields == nil {
		c.Fields = map[string]string{"Front": c.Front, "Back": c.Back}
	}
	return c
}

// Clone returns a copy that shares no mutable state with the receiver.
func (c Card) Clone() Card {
	out := c
	out.Tags = append([]string(nil), c.Tags...)
	if c.Fields != nil {
		out.Fields = make(map[string]string, len(c.Fields))
		for k, v := range c.Fields {
			out.Fields[k] = v
		}
	}
	return out
}

// StampUIDs assigns a uid to every card that lacks one. Cards that are
// already stamped keep theirs, so re-stamping a list is idempotent.
func StampUIDs(cards []Card, next func() string) {
	for i := range cards {
		if cards[i].UID == "" {
			cards[i].UID = next()
		}
	}
}

// wireCard is the backend's card shape. The uid never crosses the wire;
// card identity toward the backend is positional.
type wireCard struct {
	Front       string            `json:"front"`
	Back        string            `json:"back"`
	Tags        []string          `json:"tags"`
	ModelName   string            `json:"model_name"`
	Fields      map[string]string `json:"fields"`
	SlideNumber int               `json:"slide_number,omitempty"`
	SlideTopic  string            `json:"slide_topic,omitempty"`
	AnkiNoteID  int64             `json:"anki_note_id,omitempty"`
}

func (c Card) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireCard{
		Front:       c.Front,
		Back:        c.Back,
		Tags:        c.Tags,
		ModelName:   c.ModelName,
		Fields:      c.Fields,
		SlideNumber: c.SlideNumber,
		SlideTopic:  c.SlideTopic,
		AnkiNoteID:  c.AnkiNoteID,
	})
}

func (c *Card) UnmarshalJSON(data []byte) error {
	var w wireCard
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*c = Card{
		Front:       w.Front,
		Back:        w.Back,
		Tags:        w.Tags,
		ModelName:   w.ModelName,
		Fields:      w.Fields,
		SlideNumber: w.SlideNumber,
		SlideTopic:  w.SlideTopic,
		AnkiNoteID:  w.AnkiNoteID,
	}.Normalize()
	return nil
}
