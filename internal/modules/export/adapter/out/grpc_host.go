package out

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	exportrpc "deckhand/internal/modules/export/adapter/out/rpc"
	"deckhand/internal/modules/export/domain"
	exportout "deckhand/internal/modules/export/port/out"
	apperrors "deckhand/internal/platform/errors"
)

const (
	defaultStartTimeout = 3 * time.Second
	defaultCallTimeout  = 5 * time.Second
)

type GRPCHost struct{}

func NewGRPCHost() exportout.Host {
	return &GRPCHost{}
}

func (h *GRPCHost) CheckLifecycle(ctx context.Context, manifest domain.Manifest) error {
	client, closeFn, err := h.connect(manifest, defaultStartTimeout)
	if err != nil {
		return err
	}
	defer closeFn()

	callCtx, cancel := h.callContext(ctx, defaultCallTimeout)
	defer cancel()
	if _, err := client.GetMetadata(callCtx); err != nil {
		return fmt.Errorf("get metadata: %w", err)
	}
	return nil
}

func (h *GRPCHost) GetMetadata(ctx context.Context, manifest domain.Manifest) (domain.Metadata, error) {
	client, closeFn, err := h.connect(manifest, defaultStartTimeout)
	if err != nil {
		return domain.Metadata{}, err
	}
	defer closeFn()

	callCtx, cancel := h.callContext(ctx, defaultCallTimeout)
	defer cancel()

	meta, err := client.GetMetadata(callCtx)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("get metadata: %w", err)
	}
	capabilities := make([]domain.Capability, 0, len(meta.Capabilities))
	for _, capability := range meta.Capabilities {
		capabilities = append(capabilities, domain.Capability(capability))
	}
	return domain.Metadata{Name: meta.Name, Version: meta.Version, Capabilities: capabilities}, nil
}

func (h *GRPCHost) ListFormats(ctx context.Context, manifest domain.Manifest) ([]domain.FormatDescriptor, error) {
	client, closeFn, err := h.connect(manifest, defaultStartTimeout)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	callCtx, cancel := h.callContext(ctx, defaultCallTimeout)
	defer cancel()

	response, err := client.ListFormats(callCtx)
	if err != nil {
		return nil, fmt.Errorf("list formats: %w", err)
	}
	out := make([]domain.FormatDescriptor, 0, len(response.Formats))
	for _, format := range response.Formats {
		out = append(out, domain.FormatDescriptor{
			ID:          format.ID,
			Title:       format.Title,
			Description: format.Description,
			Extension:   format.Extension,
			TimeoutMS:   int(format.TimeoutMS),
		})
	}
	return out, nil
}

func (h *GRPCHost) Export(ctx context.Context, manifest domain.Manifest, input domain.ExportRequest) (domain.ExportResult, error) {
	client, closeFn, err := h.connect(manifest, defaultStartTimeout)
	if err != nil {
		return domain.ExportResult{}, err
	}
	defer closeFn()

	callCtx, cancel := h.callContext(ctx, timeoutFor(input.TimeoutMS, defaultCallTimeout))
	defer cancel()
	response, err := client.Export(callCtx, &exportrpc.ExportRequest{
		FormatID:   input.FormatID,
		CardsJSON:  input.CardsJSON,
		OutputPath: input.OutputPath,
		Context: exportrpc.ExportContext{
			DeckName:  input.Context.DeckName,
			SessionID: input.Context.SessionID,
			Cwd:       input.Context.Cwd,
			Env:       input.Context.Env,
		},
	})
	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			return domain.ExportResult{}, fmt.Errorf("%w: format %s", domain.ErrExporterTimeout, input.FormatID)
		}
		return domain.ExportResult{}, fmt.Errorf("run export: %w", err)
	}
	return domain.ExportResult{Path: response.Path, CardCount: int(response.CardCount)}, nil
}

func (h *GRPCHost) connect(manifest domain.Manifest, startTimeout time.Duration) (exportrpc.CardExporterClient, func(), error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  exportrpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          exportrpc.PluginMap(nil),
		Cmd:              exec.Command(manifest.Binary),
		Managed:          true,
		StartTimeout:     startTimeout,
		Logger:           hclog.New(&hclog.LoggerOptions{Output: io.Discard, Level: hclog.NoLevel}),
	})
	closeFn := func() { client.Kill() }

	rpcClient, err := client.Client()
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("start exporter client: %w: %w", apperrors.ErrPluginFailure, err)
	}
	raw, err := rpcClient.Dispense(exportrpc.PluginMapKey)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("dispense exporter: %w: %w", apperrors.ErrPluginFailure, err)
	}
	typed, ok := raw.(exportrpc.CardExporterClient)
	if !ok {
		closeFn()
		return nil, nil, fmt.Errorf("exporter rpc client type mismatch")
	}
	return typed, closeFn, nil
}

// timeoutFor honors the format's advertised budget; formats that do
// not declare one get the host default.
func timeoutFor(ms int, fallback time.Duration) time.Duration {
	if ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func (h *GRPCHost) callContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
