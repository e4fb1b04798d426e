package domain_test

import (
	"strings"
	"testing"
	"time"

	"deckhand/internal/modules/generation/domain"
)

func TestDecodeEventSessionStartAndTimestamp(t *testing.T) {
	t.Parallel()
	line := `{"type":"session_start","message":"session ready","data":{"session_id":"abc"},"timestamp":1756200000.5}`
	ev, err := domain.DecodeEvent([]byte(line))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Kind != domain.EventSessionStart || ev.SessionID != "abc" {
		t.Fatalf("unexpected event %+v", ev)
	}
	want := time.Unix(1756200000, 500000000).UTC()
	if !ev.Timestamp.Equal(want) {
		t.Fatalf("expected timestamp %v, got %v", want, ev.Timestamp)
	}
}

func TestDecodeEventProgressPair(t *testing.T) {
	t.Parallel()
	start, err := domain.DecodeEvent([]byte(`{"type":"progress_start","data":{"total":20,"expected_cards":18}}`))
	if err != nil {
		t.Fatalf("decode progress_start: %v", err)
	}
	if start.Total != 20 || start.Expected != 18 {
		t.Fatalf("unexpected progress_start %+v", start)
	}
	update, err := domain.DecodeEvent([]byte(`{"type":"progress_update","data":{"current":7}}`))
	if err != nil {
		t.Fatalf("decode progress_update: %v", err)
	}
	if update.Current != 7 {
		t.Fatalf("unexpected progress_update %+v", update)
	}
}

func TestDecodeEventCardNormalizesDefaults(t *testing.T) {
	t.Parallel()
	line := `{"type":"card","data":{"front":"What is ATP?","back":"Energy currency","slide_number":4}}`
	ev, err := domain.DecodeEvent([]byte(line))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	card := ev.Card
	if card == nil {
		t.Fatalf("expected card payload")
	}
	if card.ModelName != domain.DefaultModelName {
		t.Fatalf("expected default model name, got %q", card.ModelName)
	}
	if card.Tags == nil || card.Fields["Front"] != "What is ATP?" || card.Fields["Back"] != "Energy currency" {
		t.Fatalf("expected normalized containers, got %+v", card)
	}
	if card.SlideNumber != 4 {
		t.Fatalf("expected slide number 4, got %d", card.SlideNumber)
	}
}

func TestDecodeEventCardGeneratedAliasCarriesACardToo(t *testing.T) {
	t.Parallel()
	ev, err := domain.DecodeEvent([]byte(`{"type":"card_generated","data":{"front":"Q","back":"A"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Kind != domain.EventCardGenerated || ev.Card == nil {
		t.Fatalf("expected card payload on alias, got %+v", ev)
	}
}

func TestDecodeEventStepStartPhaseHandling(t *testing.T) {
	t.Parallel()
	withPhase, err := domain.DecodeEvent([]byte(`{"type":"step_start","message":"generating cards","data":{"phase":"generating"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if withPhase.Phase != domain.PhaseGenerating {
		t.Fatalf("expected generating phase, got %q", withPhase.Phase)
	}
	without, err := domain.DecodeEvent([]byte(`{"type":"step_start","message":"reading file"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if without.Phase != "" {
		t.Fatalf("expected empty phase, got %q", without.Phase)
	}
	unknown, err := domain.DecodeEvent([]byte(`{"type":"step_start","data":{"phase":"warp"}}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if unknown.Phase != "" {
		t.Fatalf("unknown phase names must be ignored, got %q", unknown.Phase)
	}
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	t.Parallel()
	if _, err := domain.DecodeEvent([]byte(`{"type":"card","data":`)); err == nil {
		t.Fatalf("truncated json must fail")
	}
	if _, err := domain.DecodeEvent([]byte(`{"message":"no type"}`)); err == nil {
		t.Fatalf("missing type must fail")
	}
	if _, err := domain.DecodeEvent([]byte(`{"type":"card"}`)); err == nil {
		t.Fatalf("card without payload must fail")
	}
}

func TestDecodeEventSessionStartWithoutDataStillDecodes(t *testing.T) {
	t.Parallel()
	ev, err := domain.DecodeEvent([]byte(`{"type":"session_start","data":null}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.SessionID != "" {
		t.Fatalf("expected empty session id, got %q", ev.SessionID)
	}
}

func TestEventKindTerminal(t *testing.T) {
	t.Parallel()
	if !domain.EventDone.Terminal() || !domain.EventCancelled.Terminal() {
		t.Fatalf("done and cancelled are terminal")
	}
	for _, k := range []domain.EventKind{domain.EventCard, domain.EventStatus, domain.EventError} {
		if k.Terminal() {
			t.Fatalf("%s must not be terminal", k)
		}
	}
}

func TestDecodeEventKeepsLongMessagesIntact(t *testing.T) {
	t.Parallel()
	msg := strings.Repeat("m", 4096)
	ev, err := domain.DecodeEvent([]byte(`{"type":"info","message":"` + msg + `"}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Message != msg {
		t.Fatalf("message mangled, got %d bytes", len(ev.Message))
	}
}
