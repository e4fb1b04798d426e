package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"deckhand/internal/modules/export/domain"
	"deckhand/internal/modules/export/dto"
	exportout "deckhand/internal/modules/export/port/out"
	"deckhand/internal/platform/slug"
)

// ExportService runs card exports through out-of-process exporter
// binaries. Every run re-reads the manifest store and re-verifies the
// binary checksum, so a binary swapped on disk is refused even
// mid-session.
type ExportService struct {
	store  exportout.ManifestStore
	host   exportout.Host
	source exportout.CardSource
}

func NewExportService(store exportout.ManifestStore, host exportout.Host, source exportout.CardSource) *ExportService {
	return &ExportService{store: store, host: host, source: source}
}

func (s *ExportService) List(ctx context.Context) ([]dto.ExporterInfo, error) {
	manifests, err := s.loadValidated(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ExporterInfo, 0, len(manifests))
	for _, m := range manifests {
		caps := make([]string, 0, len(m.Capabilities))
		for _, c := range m.Capabilities {
			caps = append(caps, string(c))
		}
		out = append(out, dto.ExporterInfo{Name: m.Name, Version: m.Version, Enabled: m.Enabled, Binary: m.Binary, Capabilities: caps})
	}
	return out, nil
}

func (s *ExportService) Doctor(ctx context.Context) ([]dto.DoctorResult, error) {
	manifests, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]dto.DoctorResult, 0, len(manifests))
	for _, m := range manifests {
		result := dto.DoctorResult{Name: m.Name}
		if err := m.Validate(); err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}
		binaryOK := fileExists(m.Binary)
		result.BinaryReachable = binaryOK
		checksumOK := false
		if binaryOK {
			checksumOK = checksumMatches(m.Binary, m.SHA256) == nil
		}
		result.ChecksumValid = checksumOK
		if binaryOK && checksumOK && m.Enabled && s.host != nil {
			if err := s.host.CheckLifecycle(ctx, m); err != nil {
				result.Error = err.Error()
			} else {
				result.LifecycleOK = true
			}
		}
		if !binaryOK {
			result.Error = fmt.Sprintf("binary does not exist: %s", m.Binary)
		}
		if binaryOK && !checksumOK {
			result.Error = "checksum mismatch"
		}
		results = append(results, result)
	}
	return results, nil
}

// ListFormats aggregates the formats of every enabled exporter, in
// manifest order.
func (s *ExportService) ListFormats(ctx context.Context) ([]dto.FormatInfo, error) {
	manifests, err := s.loadValidated(ctx)
	if err != nil {
		return nil, err
	}
	out := []dto.FormatInfo{}
	for _, manifest := range manifests {
		if !manifest.Enabled || !manifest.HasCapability(domain.CapabilityExport) {
			continue
		}
		if err := checksumMatches(manifest.Binary, manifest.SHA256); err != nil {
			return nil, err
		}
		formats, err := s.host.ListFormats(ctx, manifest)
		if err != nil {
			return nil, fmt.Errorf("list formats of %s: %w", manifest.Name, err)
		}
		for _, format := range formats {
			if err := format.Validate(); err != nil {
				return nil, fmt.Errorf("exporter %s: %w", manifest.Name, err)
			}
			out = append(out, dto.FormatInfo{
				Exporter:    manifest.Name,
				ID:          format.ID,
				Title:       format.Title,
				Description: format.Description,
				Extension:   format.Extension,
			})
		}
	}
	return out, nil
}

// Export resolves the exporter offering the requested format, pulls
// the card set, and hands both to the plugin. The plugin writes the
// file itself and reports the path back.
func (s *ExportService) Export(ctx context.Context, input dto.ExportInput) (dto.ExportOutput, error) {
	if input.Format == "" {
		return dto.ExportOutput{}, fmt.Errorf("format is required")
	}
	if input.Cwd == "" {
		return dto.ExportOutput{}, fmt.Errorf("cwd is required")
	}
	manifest, format, err := s.resolveFormat(ctx, input.Exporter, input.Format)
	if err != nil {
		return dto.ExportOutput{}, err
	}

	set, err := s.source.Cards(ctx, input.SessionID)
	if err != nil {
		return dto.ExportOutput{}, fmt.Errorf("load cards: %w", err)
	}
	if len(set.Cards) == 0 {
		return dto.ExportOutput{}, fmt.Errorf("no cards to export")
	}
	payload, err := json.Marshal(set.Cards)
	if err != nil {
		return dto.ExportOutput{}, fmt.Errorf("encode cards: %w", err)
	}

	outputPath := input.OutputPath
	if outputPath == "" {
		outputPath = filepath.Join(input.Cwd, slug.Make(set.DeckName)+"."+format.Extension)
	} else if !filepath.IsAbs(outputPath) {
		outputPath = filepath.Clean(filepath.Join(input.Cwd, outputPath))
	}

	req := domain.ExportRequest{
		FormatID:   format.ID,
		CardsJSON:  string(payload),
		OutputPath: outputPath,
		TimeoutMS:  format.TimeoutMS,
		Context: domain.ExportContext{
			DeckName:  set.DeckName,
			SessionID: input.SessionID,
			Cwd:       input.Cwd,
			Env:       input.Env,
		},
	}
	if err := req.Validate(); err != nil {
		return dto.ExportOutput{}, err
	}

	result, err := s.host.Export(ctx, manifest, req)
	if err != nil {
		return dto.ExportOutput{}, err
	}
	return dto.ExportOutput{
		Exporter:  manifest.Name,
		Format:    format.ID,
		Path:      result.Path,
		CardCount: result.CardCount,
	}, nil
}

// resolveFormat picks the exporter serving the format. A named
// exporter must offer it; otherwise enabled exporters are scanned in
// manifest order and the first offer wins.
func (s *ExportService) resolveFormat(ctx context.Context, exporterName, formatID string) (domain.Manifest, domain.FormatDescriptor, error) {
	if exporterName != "" {
		manifest, err := s.manifestByName(ctx, exporterName)
		if err != nil {
			return domain.Manifest{}, domain.FormatDescriptor{}, err
		}
		format, err := s.requireFormat(ctx, manifest, formatID)
		if err != nil {
			return domain.Manifest{}, domain.FormatDescriptor{}, err
		}
		return manifest, format, nil
	}

	manifests, err := s.loadValidated(ctx)
	if err != nil {
		return domain.Manifest{}, domain.FormatDescriptor{}, err
	}
	for _, manifest := range manifests {
		if !manifest.Enabled || !manifest.HasCapability(domain.CapabilityExport) {
			continue
		}
		if err := checksumMatches(manifest.Binary, manifest.SHA256); err != nil {
			return domain.Manifest{}, domain.FormatDescriptor{}, err
		}
		format, err := s.requireFormat(ctx, manifest, formatID)
		if errors.Is(err, domain.ErrFormatNotFound) {
			continue
		}
		if err != nil {
			return domain.Manifest{}, domain.FormatDescriptor{}, err
		}
		return manifest, format, nil
	}
	return domain.Manifest{}, domain.FormatDescriptor{}, fmt.Errorf("%w: %s", domain.ErrFormatNotFound, formatID)
}

func (s *ExportService) requireFormat(ctx context.Context, manifest domain.Manifest, formatID string) (domain.FormatDescriptor, error) {
	formats, err := s.host.ListFormats(ctx, manifest)
	if err != nil {
		return domain.FormatDescriptor{}, fmt.Errorf("list formats of %s: %w", manifest.Name, err)
	}
	for _, format := range formats {
		if format.ID != formatID {
			continue
		}
		if err := format.Validate(); err != nil {
			return domain.FormatDescriptor{}, fmt.Errorf("exporter %s: %w", manifest.Name, err)
		}
		return format, nil
	}
	return domain.FormatDescriptor{}, fmt.Errorf("%w: %s", domain.ErrFormatNotFound, formatID)
}

func (s *ExportService) loadValidated(ctx context.Context) ([]domain.Manifest, error) {
	manifests, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	seenNames := map[string]struct{}{}
	for _, manifest := range manifests {
		if err := manifest.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seenNames[manifest.Name]; ok {
			return nil, fmt.Errorf("duplicate exporter name: %s", manifest.Name)
		}
		seenNames[manifest.Name] = struct{}{}
	}
	return manifests, nil
}

// manifestByName runs the static checks on a named exporter: known,
// enabled, export-capable, binary unchanged since registration.
func (s *ExportService) manifestByName(ctx context.Context, name string) (domain.Manifest, error) {
	manifests, err := s.loadValidated(ctx)
	if err != nil {
		return domain.Manifest{}, err
	}
	for _, manifest := range manifests {
		if manifest.Name != name {
			continue
		}
		if !manifest.Enabled {
			return domain.Manifest{}, fmt.Errorf("%w: %s", domain.ErrExporterDisabled, name)
		}
		if !manifest.HasCapability(domain.CapabilityExport) {
			return domain.Manifest{}, fmt.Errorf("%w: %s", domain.ErrCapabilityMissing, domain.CapabilityExport)
		}
		if err := checksumMatches(manifest.Binary, manifest.SHA256); err != nil {
			return domain.Manifest{}, err
		}
		return manifest, nil
	}
	return domain.Manifest{}, fmt.Errorf("exporter %q not found", name)
}

func checksumMatches(path string, expected string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read exporter binary: %w", err)
	}
	hash := sha256.Sum256(payload)
	actual := hex.EncodeToString(hash[:])
	if actual != expected {
		return fmt.Errorf("%w: %s", domain.ErrChecksumMismatch, filepath.Base(path))
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
