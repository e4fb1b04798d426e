package out

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"deckhand/internal/modules/generation/domain"
	genout "deckhand/internal/modules/generation/port/out"
	apperrors "deckhand/internal/platform/errors"
	"deckhand/internal/platform/ndjson"
)

// HTTPBackend talks to the local generation server. Unary calls share a
// client with a timeout; Generate uses a second client without one,
// since a job streams events for minutes.
type HTTPBackend struct {
	base     string
	client   *http.Client
	streamer *http.Client
	logger   *zap.Logger
}

func NewHTTPBackend(baseURL string, timeout time.Duration, logger *zap.Logger) genout.Backend {
	return &HTTPBackend{
		base:     strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		streamer: &http.Client{},
		logger:   logger,
	}
}

type jobRequest struct {
	SourceFile string `json:"source_file"`
	DeckName   string `json:"deck_name,omitempty"`
	Focus      string `json:"focus,omitempty"`
	SourceType string `json:"source_type,omitempty"`
	TargetSize int    `json:"target_size,omitempty"`
}

type estimatePayload struct {
	Tokens             int     `json:"tokens"`
	InputTokens        int     `json:"input_tokens"`
	OutputTokens       int     `json:"output_tokens"`
	Cost               float64 `json:"cost"`
	InputCost          float64 `json:"input_cost"`
	OutputCost         float64 `json:"output_cost"`
	Pages              int     `json:"pages"`
	Model              string  `json:"model"`
	EstimatedCardCount int     `json:"estimated_card_count"`
}

func (b *HTTPBackend) EstimateCost(ctx context.Context, cfg domain.JobConfig) (domain.Estimate, error) {
	req := jobRequest{
		SourceFile: cfg.SourceFile,
		SourceType: string(cfg.SourceType),
		TargetSize: cfg.TargetSize,
	}
	var out estimatePayload
	if err := b.postJSON(ctx, "/api/estimate-cost", req, &out); err != nil {
		return domain.Estimate{}, err
	}
	return domain.Estimate{
		Tokens:             out.Tokens,
		InputTokens:        out.InputTokens,
		OutputTokens:       out.OutputTokens,
		Cost:               out.Cost,
		InputCost:          out.InputCost,
		OutputCost:         out.OutputCost,
		Pages:              out.Pages,
		Model:              out.Model,
		EstimatedCardCount: out.EstimatedCardCount,
	}, nil
}

func (b *HTTPBackend) Generate(ctx context.Context, cfg domain.JobConfig) (genout.EventStream, error) {
	payload, err := json.Marshal(jobRequest{
		SourceFile: cfg.SourceFile,
		DeckName:   cfg.DeckName,
		Focus:      cfg.Focus,
		SourceType: string(cfg.SourceType),
		TargetSize: cfg.TargetSize,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal generate request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.base+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	resp, err := b.streamer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generate: %v: %w", err, apperrors.ErrBackendUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errorFromResponse("generate", resp)
	}
	return newEventStream(resp.Body, b.logger), nil
}

func (b *HTTPBackend) StopGeneration(ctx context.Context, sessionID string) error {
	req := struct {
		SessionID string `json:"session_id"`
	}{SessionID: sessionID}
	return b.postJSON(ctx, "/api/stop-generation", req, nil)
}

func (b *HTTPBackend) SessionStatus(ctx context.Context, sessionID string) (bool, error) {
	var out struct {
		Active bool `json:"active"`
	}
	path := "/api/sessions/" + url.PathEscape(sessionID) + "/status"
	if err := b.getJSON(ctx, path, &out); err != nil {
		return false, err
	}
	return out.Active, nil
}

func (b *HTTPBackend) SessionSnapshot(ctx context.Context, sessionID string) (genout.SessionSnapshot, error) {
	var out struct {
		DeckName string        `json:"deck_name"`
		Cards    []domain.Card `json:"cards"`
	}
	path := "/api/sessions/" + url.PathEscape(sessionID)
	if err := b.getJSON(ctx, path, &out); err != nil {
		return genout.SessionSnapshot{}, err
	}
	return genout.SessionSnapshot{DeckName: out.DeckName, Cards: out.Cards}, nil
}

func (b *HTTPBackend) postJSON(ctx context.Context, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return b.do(req, path, out)
}

func (b *HTTPBackend) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.base+path, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", path, err)
	}
	return b.do(req, path, out)
}

func (b *HTTPBackend) do(req *http.Request, path string, out any) error {
	resp, err := b.client.Do(req)
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

// eventStream adapts a streaming NDJSON body to the event channel the
// engine folds. Lines that fail to decode are skipped and counted; only
// a transport-level failure surfaces through Err.
type eventStream struct {
	body   io.ReadCloser
	logger *zap.Logger
	events chan domain.Event
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	err     error
	skipped int
}

func newEventStream(body io.ReadCloser, logger *zap.Logger) *eventStream {
	s := &eventStream{
		body:   body,
		logger: logger,
		events: make(chan domain.Event, 16),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *eventStream) run() {
	defer close(s.events)
	sc := ndjson.NewScanner(s.body)
	for sc.Scan() {
		ev, err := domain.DecodeEvent(sc.Bytes())
		if err != nil {
			s.mu.Lock()
			s.skipped++
			n := s.skipped
			s.mu.Unlock()
			s.logger.Debug("skipped malformed stream line", zap.Int("skipped_total", n), zap.Error(err))
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

func (s *eventStream) Events() <-chan domain.Event { return s.events }

func (s *eventStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *eventStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.body.Close()
	})
	return err
}
