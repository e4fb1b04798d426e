package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-plugin"

	exportrpc "deckhand/internal/modules/export/adapter/out/rpc"
)

type server struct{}

func (s *server) GetMetadata(_ context.Context, _ *exportrpc.Empty) (*exportrpc.Metadata, error) {
	return &exportrpc.Metadata{
		Name:         "tsv-exporter",
		Version:      "1.0.0",
		Capabilities: []string{"export"},
	}, nil
}

func (s *server) ListFormats(_ context.Context, _ *exportrpc.Empty) (*exportrpc.ListFormatsResponse, error) {
	return &exportrpc.ListFormatsResponse{Formats: []exportrpc.FormatDescriptor{
		{ID: "tsv", Title: "Tab-separated values", Description: "One card per line: front, back, tags", Extension: "tsv", TimeoutMS: 5000},
		{ID: "anki-txt", Title: "Anki import file", Description: "Tab-separated with Anki import headers", Extension: "txt", TimeoutMS: 5000},
	}}, nil
}

func (s *server) Export(_ context.Context, in *exportrpc.ExportRequest) (*exportrpc.ExportResponse, error) {
	if in.FormatID != "tsv" && in.FormatID != "anki-txt" {
		return nil, fmt.Errorf("unknown format: %s", in.FormatID)
	}
	var cards []exportrpc.Card
	if err := json.Unmarshal([]byte(in.CardsJSON), &cards); err != nil {
		return nil, fmt.Errorf("decode cards: %w", err)
	}

	var b strings.Builder
	if in.FormatID == "anki-txt" {
		b.WriteString("#separator:tab\n#html:false\n#tags column:3\n")
	}
	for _, card := range cards {
		b.WriteString(cell(card.Front))
		b.WriteByte('\t')
		b.WriteString(cell(card.Back))
		b.WriteByte('\t')
		b.WriteString(cell(strings.Join(card.Tags, " ")))
		b.WriteByte('\n')
	}

	if err := os.MkdirAll(filepath.Dir(in.OutputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(in.OutputPath, []byte(b.String()), 0o644); err != nil {
		return nil, fmt.Errorf("write export file: %w", err)
	}
	return &exportrpc.ExportResponse{Path: in.OutputPath, CardCount: int32(len(cards))}, nil
}

// cell flattens a value onto one line so it cannot break the
// tab-separated layout.
func cell(v string) string {
	v = strings.ReplaceAll(v, "\t", " ")
	v = strings.ReplaceAll(v, "\r\n", " ")
	v = strings.ReplaceAll(v, "\n", " ")
	return v
}

func main() {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: exportrpc.HandshakeConfig,
		Plugins:         exportrpc.PluginMap(&server{}),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}
