package out_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gendto "deckhand/internal/modules/generation/dto"
	revadapter "deckhand/internal/modules/review/adapter/out"
	"deckhand/internal/modules/review/domain"
	apperrors "deckhand/internal/platform/errors"
	"deckhand/internal/platform/logging"
)

func TestDraftsRoundTripThroughTheWire(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/drafts" || r.Method != http.MethodGet {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("session_id"); got != "abc" {
			t.Errorf("session_id = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"cards": []map[string]any{
				{"front": "Q1", "back": "A1", "tags": []string{"bio"}, "slide_number": 3},
				{"front": "Q2", "back": "A2", "anki_note_id": 77},
			},
		})
	}))
	defer srv.Close()

	gw := revadapter.NewHTTPGateway(srv.URL, 5*time.Second, logging.Nop())
	cards, err := gw.Drafts(context.Background(), "abc")
	if err != nil {
		t.Fatalf("drafts: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("cards = %d", len(cards))
	}
	if cards[0].Front != "Q1" || cards[0].SlideNumber != 3 || cards[0].Tags[0] != "bio" {
		t.Fatalf("first card = %+v", cards[0])
	}
	if !cards[1].Synced() {
		t.Fatalf("anki note id must map through, got %+v", cards[1])
	}
	if cards[0].UID != "" {
		t.Fatalf("uid must not come from the wire, got %q", cards[0].UID)
	}
}

func TestUpdateDraftAddressesTheSlot(t *testing.T) {
	t.Parallel()
	var gotPath, gotMethod string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath, gotMethod = r.URL.Path, r.Method
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	gw := revadapter.NewHTTPGateway(srv.URL, 5*time.Second, logging.Nop())
	card := gendto.CardView{UID: "local-only", Front: "Q", Back: "A", ModelName: "Basic"}
	if err := gw.UpdateDraft(context.Background(), 4, card, "abc"); err != nil {
		t.Fatalf("update draft: %v", err)
	}
	if gotPath != "/api/drafts/4" || gotMethod != http.MethodPut {
		t.Fatalf("request = %s %s", gotMethod, gotPath)
	}
	if gotBody["session_id"] != "abc" {
		t.Fatalf("body = %v", gotBody)
	}
	wire, ok := gotBody["card"].(map[string]any)
	if !ok || wire["front"] != "Q" {
		t.Fatalf("card payload = %v", gotBody["card"])
	}
	if _, leaked := wire["uid"]; leaked {
		t.Fatal("uid must never cross the wire")
	}
}

func TestSessionCardEndpoints(t *testing.T) {
	t.Parallel()
	var deletes []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/sessions/old-1":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"deck_name": "Bio",
				"cards":     []map[string]any{{"front": "Q", "back": "A"}},
			})
		case r.Method == http.MethodPut && r.URL.Path == "/api/sessions/old-1/cards":
			var body struct {
				Cards []map[string]any `json:"cards"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Cards) != 2 {
				t.Errorf("rewrite body = %+v err = %v", body, err)
			}
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodDelete:
			deletes = append(deletes, r.URL.Path)
			w.WriteHeader(http.StatusOK)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	gw := revadapter.NewHTTPGateway(srv.URL, 5*time.Second, logging.Nop())
	ctx := context.Background()

	cards, err := gw.SessionCards(ctx, "old-1")
	if err != nil {
		t.Fatalf("session cards: %v", err)
	}
	if len(cards) != 1 || cards[0].Front != "Q" {
		t.Fatalf("cards = %+v", cards)
	}

	rewrite := []gendto.CardView{{Front: "Q1"}, {Front: "Q2"}}
	if err := gw.UpdateSessionCards(ctx, "old-1", rewrite); err != nil {
		t.Fatalf("update session cards: %v", err)
	}

	if err := gw.DeleteSessionCard(ctx, "old-1", 0); err != nil {
		t.Fatalf("delete session card: %v", err)
	}
	if len(deletes) != 1 || deletes[0] != "/api/sessions/old-1/cards/0" {
		t.Fatalf("deletes = %v", deletes)
	}
}

func TestAnkiNoteCalls(t *testing.T) {
	t.Parallel()
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/anki/notes/delete":
			var body struct {
				NoteIDs []int64 `json:"note_ids"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.NoteIDs) != 2 {
				t.Errorf("delete body = %+v err = %v", body, err)
			}
		case "/api/anki/notes/77":
			var body struct {
				Fields map[string]string `json:"fields"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Fields["Front"] != "Q" {
				t.Errorf("update body = %+v err = %v", body, err)
			}
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	gw := revadapter.NewHTTPGateway(srv.URL, 5*time.Second, logging.Nop())
	ctx := context.Background()

	if err := gw.DeleteNotes(ctx, []int64{77, 78}); err != nil {
		t.Fatalf("delete notes: %v", err)
	}
	if err := gw.UpdateNoteFields(ctx, 77, map[string]string{"Front": "Q", "Back": "A"}); err != nil {
		t.Fatalf("update note fields: %v", err)
	}
	if len(calls) != 2 || calls[0] != "POST /api/anki/notes/delete" || calls[1] != "PUT /api/anki/notes/77" {
		t.Fatalf("calls = %v", calls)
	}
}

func TestSyncStreamsEventsAndSkipsMalformedLines(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/drafts/sync" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		lines := []string{
			`{"type": "progress_start", "data": {"total": 2}}`,
			`{half a line`,
			`{"type": "note_created", "data": {"note_id": 101}}`,
			`{"type": "done", "message": "synced"}`,
		}
		flusher := w.(http.Flusher)
		for _, line := range lines {
			_, _ = w.Write([]byte(line + "\n"))
			flusher.Flush()
		}
	}))
	defer srv.Close()

	gw := revadapter.NewHTTPGateway(srv.URL, 5*time.Second, logging.Nop())
	stream, err := gw.SyncDrafts(context.Background(), "abc")
	if err != nil {
		t.Fatalf("sync drafts: %v", err)
	}
	defer stream.Close()

	var kinds []domain.SyncEventKind
	for ev := range stream.Events() {
		kinds = append(kinds, ev.Kind)
		if ev.Kind == domain.SyncNoteCreated && ev.NoteID != 101 {
			t.Fatalf("note event must carry its payload, got %+v", ev)
		}
	}
	want := []domain.SyncEventKind{domain.SyncProgressStart, domain.SyncNoteCreated, domain.SyncDone}
	if len(kinds) != len(want) {
		t.Fatalf("malformed lines must be skipped, got %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("event order must survive skips, got %v", kinds)
		}
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("clean stream must end without error, got %v", err)
	}
}

func TestSyncSessionHitsTheSessionEndpoint(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sessions/old-1/sync" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = w.Write([]byte(`{"type": "done"}` + "\n"))
	}))
	defer srv.Close()

	gw := revadapter.NewHTTPGateway(srv.URL, 5*time.Second, logging.Nop())
	stream, err := gw.SyncSession(context.Background(), "old-1")
	if err != nil {
		t.Fatalf("sync session: %v", err)
	}
	defer stream.Close()
	for range stream.Events() {
	}
	if err := stream.Err(); err != nil {
		t.Fatalf("stream err = %v", err)
	}
}

func TestMissingDraftMapsToNotFound(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	gw := revadapter.NewHTTPGateway(srv.URL, 5*time.Second, logging.Nop())
	err := gw.DeleteDraft(context.Background(), 9, "abc")
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("404 must map to not found, got %v", err)
	}
}

func TestUnreachableBackendMapsToUnavailableForReviewCalls(t *testing.T) {
	t.Parallel()
	gw := revadapter.NewHTTPGateway("http://127.0.0.1:1", 500*time.Millisecond, logging.Nop())
	if err := gw.DeleteNotes(context.Background(), []int64{1}); !errors.Is(err, apperrors.ErrBackendUnavailable) {
		t.Fatalf("connection failure must map to unavailable, got %v", err)
	}
	if _, err := gw.SyncDrafts(context.Background(), "abc"); !errors.Is(err, apperrors.ErrBackendUnavailable) {
		t.Fatalf("stream open failure must map to unavailable, got %v", err)
	}
}
