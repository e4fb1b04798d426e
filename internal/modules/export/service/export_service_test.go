package service_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	exportout "deckhand/internal/modules/export/adapter/out"
	"deckhand/internal/modules/export/domain"
	"deckhand/internal/modules/export/dto"
	"deckhand/internal/modules/export/service"
)

type fakeStore struct {
	manifests []domain.Manifest
}

func (s fakeStore) Load(context.Context) ([]domain.Manifest, error) {
	return s.manifests, nil
}

type fakeHost struct {
	mu       sync.Mutex
	formats  map[string][]domain.FormatDescriptor
	requests []domain.ExportRequest
	result   domain.ExportResult
	err      error
}

func (*fakeHost) CheckLifecycle(context.Context, domain.Manifest) error { return nil }

func (*fakeHost) GetMetadata(context.Context, domain.Manifest) (domain.Metadata, error) {
	return domain.Metadata{Name: "fake", Version: "1"}, nil
}

func (h *fakeHost) ListFormats(_ context.Context, manifest domain.Manifest) ([]domain.FormatDescriptor, error) {
	return h.formats[manifest.Name], nil
}

func (h *fakeHost) Export(_ context.Context, _ domain.Manifest, input domain.ExportRequest) (domain.ExportResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.err != nil {
		return domain.ExportResult{}, h.err
	}
	h.requests = append(h.requests, input)
	if h.result.Path == "" {
		return domain.ExportResult{Path: input.OutputPath, CardCount: 2}, nil
	}
	return h.result, nil
}

func (h *fakeHost) recorded() []domain.ExportRequest {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.ExportRequest(nil), h.requests...)
}

type fakeSource struct {
	set domain.CardSet
	err error
}

func (s fakeSource) Cards(context.Context, string) (domain.CardSet, error) {
	if s.err != nil {
		return domain.CardSet{}, s.err
	}
	return s.set, nil
}

func manifestWithBinary(t *testing.T, name string, enabled bool, capabilities []domain.Capability) domain.Manifest {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "exporter-bin")
	if err := os.WriteFile(binPath, []byte("binary"), 0o755); err != nil {
		t.Fatalf("write binary: %v", err)
	}
	hash := sha256.Sum256([]byte("binary"))
	return domain.Manifest{
		Name:         name,
		Version:      "1.0.0",
		Binary:       binPath,
		SHA256:       hex.EncodeToString(hash[:]),
		Enabled:      enabled,
		Capabilities: capabilities,
	}
}

func tsvFormats() map[string][]domain.FormatDescriptor {
	return map[string][]domain.FormatDescriptor{
		"tsv-exporter": {{ID: "tsv", Title: "Tab-separated values", Extension: "tsv", TimeoutMS: 5000}},
	}
}

func biologySet() domain.CardSet {
	return domain.CardSet{
		DeckName: "Cell Biology",
		Cards: []domain.Card{
			{Front: "What is osmosis?", Back: "Diffusion of water", Tags: []string{"bio"}},
			{Front: "ATP synthase role?", Back: "Makes ATP", Tags: []string{"bio"}},
		},
	}
}

func TestExportResolvesFormatAndDerivesOutputPath(t *testing.T) {
	t.Parallel()
	manifest := manifestWithBinary(t, "tsv-exporter", true, []domain.Capability{domain.CapabilityExport})
	host := &fakeHost{formats: tsvFormats()}
	svc := service.NewExportService(fakeStore{manifests: []domain.Manifest{manifest}}, host, fakeSource{set: biologySet()})
	cwd := t.TempDir()

	out, err := svc.Export(context.Background(), dto.ExportInput{Format: "tsv", Cwd: cwd})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if out.Exporter != "tsv-exporter" || out.Format != "tsv" || out.CardCount != 2 {
		t.Fatalf("unexpected output: %+v", out)
	}
	want := filepath.Join(cwd, "cell-biology.tsv")
	if out.Path != want {
		t.Fatalf("path = %q, want %q", out.Path, want)
	}

	requests := host.recorded()
	if len(requests) != 1 {
		t.Fatalf("expected one export call, got %d", len(requests))
	}
	req := requests[0]
	if req.FormatID != "tsv" || req.OutputPath != want || req.TimeoutMS != 5000 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Context.DeckName != "Cell Biology" {
		t.Fatalf("deck name = %q", req.Context.DeckName)
	}
	var cards []domain.Card
	if err := json.Unmarshal([]byte(req.CardsJSON), &cards); err != nil {
		t.Fatalf("cards payload: %v", err)
	}
	if len(cards) != 2 || cards[0].Front != "What is osmosis?" {
		t.Fatalf("cards on the wire = %+v", cards)
	}
}

func TestExportJoinsRelativeOutputWithCwd(t *testing.T) {
	t.Parallel()
	manifest := manifestWithBinary(t, "tsv-exporter", true, []domain.Capability{domain.CapabilityExport})
	host := &fakeHost{formats: tsvFormats()}
	svc := service.NewExportService(fakeStore{manifests: []domain.Manifest{manifest}}, host, fakeSource{set: biologySet()})
	cwd := t.TempDir()

	out, err := svc.Export(context.Background(), dto.ExportInput{Format: "tsv", OutputPath: "out/deck.tsv", Cwd: cwd})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if want := filepath.Join(cwd, "out", "deck.tsv"); out.Path != want {
		t.Fatalf("path = %q, want %q", out.Path, want)
	}
}

func TestExportRejectsDisabledExporter(t *testing.T) {
	t.Parallel()
	manifest := manifestWithBinary(t, "tsv-exporter", false, []domain.Capability{domain.CapabilityExport})
	svc := service.NewExportService(fakeStore{manifests: []domain.Manifest{manifest}}, &fakeHost{formats: tsvFormats()}, fakeSource{set: biologySet()})

	_, err := svc.Export(context.Background(), dto.ExportInput{Format: "tsv", Exporter: "tsv-exporter", Cwd: t.TempDir()})
	if !errors.Is(err, domain.ErrExporterDisabled) {
		t.Fatalf("err = %v, want ErrExporterDisabled", err)
	}
}

func TestExportScanSkipsDisabledExporters(t *testing.T) {
	t.Parallel()
	disabled := manifestWithBinary(t, "tsv-exporter", false, []domain.Capability{domain.CapabilityExport})
	svc := service.NewExportService(fakeStore{manifests: []domain.Manifest{disabled}}, &fakeHost{formats: tsvFormats()}, fakeSource{set: biologySet()})

	_, err := svc.Export(context.Background(), dto.ExportInput{Format: "tsv", Cwd: t.TempDir()})
	if !errors.Is(err, domain.ErrFormatNotFound) {
		t.Fatalf("err = %v, want ErrFormatNotFound", err)
	}
}

func TestExportUnknownExporterName(t *testing.T) {
	t.Parallel()
	manifest := manifestWithBinary(t, "tsv-exporter", true, []domain.Capability{domain.CapabilityExport})
	svc := service.NewExportService(fakeStore{manifests: []domain.Manifest{manifest}}, &fakeHost{formats: tsvFormats()}, fakeSource{set: biologySet()})

	_, err := svc.Export(context.Background(), dto.ExportInput{Format: "tsv", Exporter: "csv-exporter", Cwd: t.TempDir()})
	if err == nil || !strings.Contains(err.Error(), "csv-exporter") {
		t.Fatalf("err = %v, want unknown exporter error", err)
	}
}

func TestExportNamedExporterMustOfferTheFormat(t *testing.T) {
	t.Parallel()
	manifest := manifestWithBinary(t, "tsv-exporter", true, []domain.Capability{domain.CapabilityExport})
	svc := service.NewExportService(fakeStore{manifests: []domain.Manifest{manifest}}, &fakeHost{formats: tsvFormats()}, fakeSource{set: biologySet()})

	_, err := svc.Export(context.Background(), dto.ExportInput{Format: "csv", Exporter: "tsv-exporter", Cwd: t.TempDir()})
	if !errors.Is(err, domain.ErrFormatNotFound) {
		t.Fatalf("err = %v, want ErrFormatNotFound", err)
	}
}

func TestExportChecksumMismatchRefusesToRun(t *testing.T) {
	t.Parallel()
	manifest := manifestWithBinary(t, "tsv-exporter", true, []domain.Capability{domain.CapabilityExport})
	manifest.SHA256 = strings.Repeat("0", 64)
	host := &fakeHost{formats: tsvFormats()}
	svc := service.NewExportService(fakeStore{manifests: []domain.Manifest{manifest}}, host, fakeSource{set: biologySet()})

	_, err := svc.Export(context.Background(), dto.ExportInput{Format: "tsv", Cwd: t.TempDir()})
	if !errors.Is(err, domain.ErrChecksumMismatch) {
		t.Fatalf("err = %v, want ErrChecksumMismatch", err)
	}
	if len(host.recorded()) != 0 {
		t.Fatal("a mismatched binary must never be executed")
	}
}

func TestExportEmptySetIsRejected(t *testing.T) {
	t.Parallel()
	manifest := manifestWithBinary(t, "tsv-exporter", true, []domain.Capability{domain.CapabilityExport})
	host := &fakeHost{formats: tsvFormats()}
	svc := service.NewExportService(fakeStore{manifests: []domain.Manifest{manifest}}, host, fakeSource{})

	_, err := svc.Export(context.Background(), dto.ExportInput{Format: "tsv", Cwd: t.TempDir()})
	if err == nil {
		t.Fatal("expected error for empty card set")
	}
	if len(host.recorded()) != 0 {
		t.Fatal("nothing should reach the exporter")
	}
}

func TestListFormatsAggregatesEnabledExporters(t *testing.T) {
	t.Parallel()
	tsv := manifestWithBinary(t, "tsv-exporter", true, []domain.Capability{domain.CapabilityExport})
	svg := manifestWithBinary(t, "svg-exporter", false, []domain.Capability{domain.CapabilityExport})
	host := &fakeHost{formats: map[string][]domain.FormatDescriptor{
		"tsv-exporter": {
			{ID: "tsv", Title: "Tab-separated values", Extension: "tsv"},
			{ID: "anki-txt", Title: "Anki import file", Extension: "txt"},
		},
		"svg-exporter": {{ID: "svg", Extension: "svg"}},
	}}
	svc := service.NewExportService(fakeStore{manifests: []domain.Manifest{tsv, svg}}, host, fakeSource{})

	formats, err := svc.ListFormats(context.Background())
	if err != nil {
		t.Fatalf("list formats: %v", err)
	}
	if len(formats) != 2 {
		t.Fatalf("expected formats of the enabled exporter only, got %+v", formats)
	}
	if formats[0].ID != "tsv" || formats[0].Exporter != "tsv-exporter" {
		t.Fatalf("unexpected first format: %+v", formats[0])
	}
	if formats[1].ID != "anki-txt" {
		t.Fatalf("unexpected second format: %+v", formats[1])
	}
}

func TestListRejectsDuplicateExporterNames(t *testing.T) {
	t.Parallel()
	a := manifestWithBinary(t, "tsv-exporter", true, []domain.Capability{domain.CapabilityExport})
	b := manifestWithBinary(t, "tsv-exporter", true, []domain.Capability{domain.CapabilityExport})
	svc := service.NewExportService(fakeStore{manifests: []domain.Manifest{a, b}}, &fakeHost{}, fakeSource{})

	if _, err := svc.List(context.Background()); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestDoctorDetectsChecksumMismatch(t *testing.T) {
	t.Parallel()
	tmp := t.TempDir()
	pluginsDir := filepath.Join(tmp, "plugins")
	if err := os.MkdirAll(pluginsDir, 0o755); err != nil {
		t.Fatalf("mkdir plugins: %v", err)
	}
	binPath := filepath.Join(tmp, "dummy-exporter")
	if err := os.WriteFile(binPath, []byte("not-a-real-exporter"), 0o755); err != nil {
		t.Fatalf("write exporter binary: %v", err)
	}
	manifests := []domain.Manifest{{
		Name:         "demo",
		Version:      "1.0.0",
		Binary:       binPath,
		SHA256:       strings.Repeat("0", 64),
		Enabled:      true,
		Capabilities: []domain.Capability{domain.CapabilityExport},
	}}
	raw, _ := json.Marshal(manifests)
	if err := os.WriteFile(filepath.Join(pluginsDir, "plugins.json"), raw, 0o644); err != nil {
		t.Fatalf("write plugins.json: %v", err)
	}

	svc := service.NewExportService(exportout.NewFileManifestStore(tmp), nil, fakeSource{})
	results, err := svc.Doctor(context.Background())
	if err != nil {
		t.Fatalf("doctor: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected one result, got %d", len(results))
	}
	if results[0].ChecksumValid {
		t.Fatalf("expected checksum mismatch")
	}
	if !results[0].BinaryReachable {
		t.Fatalf("binary should be reachable")
	}
}
