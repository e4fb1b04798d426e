package out

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	gendto "deckhand/internal/modules/generation/dto"
	"deckhand/internal/modules/review/domain"
	reviewout "deckhand/internal/modules/review/port/out"
	apperrors "deckhand/internal/platform/errors"
	"deckhand/internal/platform/ndjson"
)

// HTTPGateway talks to the backend's draft, session and Anki endpoints.
// One instance serves the three review ports: the draft store, the Anki
// gateway and the sync streamer. Unary calls share a client with a
// timeout; sync opens a stream on a client without one.
type HTTPGateway struct {
	base     string
	client   *http.Client
	streamer *http.Client
	logger   *zap.Logger
}

func NewHTTPGateway(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPGateway {
	return &HTTPGateway{
		base:     strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		streamer: &http.Client{},
		logger:   logger,
	}
}

// wireCard is the backend's card shape, shared with the generation
// stream. Cards carry no uid on the wire; identity is positional.
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

func toWire(c gendto.CardView) wireCard {
	return wireCard{
		Front:       c.Front,
		Back:        c.Back,
		Tags:        c.Tags,
		ModelName:   c.ModelName,
		Fields:      c.Fields,
		SlideNumber: c.SlideNumber,
		SlideTopic:  c.SlideTopic,
		AnkiNoteID:  c.AnkiNoteID,
	}
}

func fromWire(w wireCard) gendto.CardView {
	return gendto.CardView{
		Front:       w.Front,
		Back:        w.Back,
		Tags:        w.Tags,
		ModelName:   w.ModelName,
		Fields:      w.Fields,
		SlideNumber: w.SlideNumber,
		SlideTopic:  w.SlideTopic,
		AnkiNoteID:  w.AnkiNoteID,
	}
}

func fromWireList(ws []wireCard) []gendto.CardView {
	cards := make([]gendto.CardView, len(ws))
	for i, w := range ws {
		cards[i] = fromWire(w)
	}
	return cards
}

func (g *HTTPGateway) Drafts(ctx context.Context, sessionID string) ([]gendto.CardView, error) {
	var out struct {
		Cards []wireCard `json:"cards"`
	}
	path := "/api/drafts?session_id=" + url.QueryEscape(sessionID)
	if err := g.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return fromWireList(out.Cards), nil
}

func (g *HTTPGateway) UpdateDraft(ctx context.Context, index int, card gendto.CardView, sessionID string) error {
	req := struct {
		Card      wireCard `json:"card"`
		SessionID string   `json:"session_id,omitempty"`
	}{Card: toWire(card), SessionID: sessionID}
	return g.sendJSON(ctx, http.MethodPut, "/api/drafts/"+strconv.Itoa(index), req, nil)
}

func (g *HTTPGateway) DeleteDraft(ctx context.Context, index int, sessionID string) error {
	path := "/api/drafts/" + strconv.Itoa(index) + "?session_id=" + url.QueryEscape(sessionID)
	return g.sendJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (g *HTTPGateway) SessionCards(ctx context.Context, sessionID string) ([]gendto.CardView, error) {
	var out struct {
		Cards []wireCard `json:"cards"`
	}
	path := "/api/sessions/" + url.PathEscape(sessionID)
	if err := g.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return fromWireList(out.Cards), nil
}

func (g *HTTPGateway) UpdateSessionCards(ctx context.Context, sessionID string, cards []gendto.CardView) error {
	wires := make([]wireCard, len(cards))
	for i, c := range cards {
		wires[i] = toWire(c)
	}
	req := struct {
		Cards []wireCard `json:"cards"`
	}{Cards: wires}
	path := "/api/sessions/" + url.PathEscape(sessionID) + "/cards"
	return g.sendJSON(ctx, http.MethodPut, path, req, nil)
}

func (g *HTTPGateway) DeleteSessionCard(ctx context.Context, sessionID string, index int) error {
	path := "/api/sessions/" + url.PathEscape(sessionID) + "/cards/" + strconv.Itoa(index)
	return g.sendJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (g *HTTPGateway) DeleteNotes(ctx context.Context, noteIDs []int64) error {
	req := struct {
		NoteIDs []int64 `json:"note_ids"`
	}{NoteIDs: noteIDs}
	return g.sendJSON(ctx, http.MethodPost, "/api/anki/notes/delete", req, nil)
}

func (g *HTTPGateway) UpdateNoteFields(ctx context.Context, noteID int64, fields map[string]string) error {
	req := struct {
		Fields map[string]string `json:"fields"`
	}{Fields: fields}
	path := "/api/anki/notes/" + strconv.FormatInt(noteID, 10)
	return g.sendJSON(ctx, http.MethodPut, path, req, nil)
}

func (g *HTTPGateway) SyncDrafts(ctx context.Context, sessionID string) (reviewout.SyncStream, error) {
	req := struct {
		SessionID string `json:"session_id,omitempty"`
	}{SessionID: sessionID}
	return g.openStream(ctx, "/api/drafts/sync", req)
}

func (g *HTTPGateway) SyncSession(ctx context.Context, sessionID string) (reviewout.SyncStream, error) {
	path := "/api/sessions/" + url.PathEscape(sessionID) + "/sync"
	return g.openStream(ctx, path, struct{}{})
}

func (g *HTTPGateway) openStream(ctx context.Context, path string, in any) (reviewout.SyncStream, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.base+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := g.streamer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %v: %w", path, err, apperrors.ErrBackendUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse(path, resp)
	}
	return newSyncStream(resp.Body, g.logger), nil
}

func (g *HTTPGateway) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.base+path, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	return g.do(req, path, out)
}

func (g *HTTPGateway) sendJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", path, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.base+path, body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return g.do(req, path, out)
}

func (g *HTTPGateway) do(req *http.Request, path string, out any) error {
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %v: %w", path, err, apperrors.ErrBackendUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errorFromResponse(path, resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// errorFromResponse consumes and closes the body.
func errorFromResponse(op string, resp *http.Response) error {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, apperrors.ErrNotFound)
	}
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("%s: backend: %s", op, e.Error)
	}
	return fmt.Errorf("%s: backend returned %s", op, resp.Status)
}

// syncStream adapts a streaming NDJSON body to the event channel the
// syncer folds. Undecodable lines are skipped and counted; only a
// transport-level failure surfaces through Err.
type syncStream struct {
	body   io.ReadCloser
	logger *zap.Logger
	events chan domain.SyncEvent
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	err     error
	skipped int
}

func newSyncStream(body io.ReadCloser, logger *zap.Logger) *syncStream {
	s := &syncStream{
		body:   body,
		logger: logger,
		events: make(chan domain.SyncEvent, 16),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *syncStream) run() {
	defer close(s.events)
	sc := ndjson.NewScanner(s.body)
	for sc.Scan() {
		ev, err := domain.DecodeSyncEvent(sc.Bytes())
		if err != nil {
			s.mu.Lock()
			s.skipped++
			n := s.skipped
			s.mu.Unlock()
			s.logger.Debug("skipped malformed sync line", zap.Int("skipped_total", n), zap.Error(err))
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
	if err := sc.Err(); err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}
}

func (s *syncStream) Events() <-chan domain.SyncEvent { return s.events }

func (s *syncStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *syncStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.body.Close()
	})
	return err
}
