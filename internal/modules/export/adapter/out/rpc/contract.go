package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	PluginMapKey      = "deckhand"
	serviceName       = "deckhand.exporter.v1.CardExporter"
	jsonCodecName     = "json"
	methodGetMetadata = "/" + serviceName + "/GetMetadata"
	methodListFormats = "/" + serviceName + "/ListFormats"
	methodExport      = "/" + serviceName + "/Export"
)

var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "DECKHAND_PLUGIN",
	MagicCookieValue: "deckhand",
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type Empty struct{}

type Metadata struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

type FormatDescriptor struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Extension   string `json:"extension"`
	TimeoutMS   int32  `json:"timeout_ms"`
}

type ListFormatsResponse struct {
	Formats []FormatDescriptor `json:"formats"`
}

// Card is the element type of ExportRequest.CardsJSON.
type Card struct {
	Front       string            `json:"front"`
	Back        string            `json:"back"`
	Tags        []string          `json:"tags"`
	ModelName   string            `json:"model_name"`
	Fields      map[string]string `json:"fields"`
	SlideNumber int               `json:"slide_number,omitempty"`
	SlideTopic  string            `json:"slide_topic,omitempty"`
}

type ExportContext struct {
	DeckName  string            `json:"deck_name"`
	SessionID string            `json:"session_id"`
	Cwd       string            `json:"cwd"`
	Env       map[string]string `json:"env"`
}

type ExportRequest struct {
	FormatID   string        `json:"format_id"`
	CardsJSON  string        `json:"cards_json"`
	OutputPath string        `json:"output_path"`
	Context    ExportContext `json:"context"`
}

type ExportResponse struct {
	Path      string `json:"path"`
	CardCount int32  `json:"card_count"`
}

type CardExporterServer interface {
	GetMetadata(ctx context.Context, in *Empty) (*Metadata, error)
	ListFormats(ctx context.Context, in *Empty) (*ListFormatsResponse, error)
	Export(ctx context.Context, in *ExportRequest) (*ExportResponse, error)
}

type CardExporterClient interface {
	GetMetadata(ctx context.Context) (*Metadata, error)
	ListFormats(ctx context.Context) (*ListFormatsResponse, error)
	Export(ctx context.Context, in *ExportRequest) (*ExportResponse, error)
}

type cardExporterClient struct {
	conn *grpc.ClientConn
}

func NewCardExporterClient(conn *grpc.ClientConn) CardExporterClient {
	return &cardExporterClient{conn: conn}
}

func (c *cardExporterClient) GetMetadata(ctx context.Context) (*Metadata, error) {
	out := &Metadata{}
	if err := c.conn.Invoke(ctx, methodGetMetadata, &Empty{}, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *cardExporterClient) ListFormats(ctx context.Context) (*ListFormatsResponse, error) {
	out := &ListFormatsResponse{}
	if err := c.conn.Invoke(ctx, methodListFormats, &Empty{}, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *cardExporterClient) Export(ctx context.Context, in *ExportRequest) (*ExportResponse, error) {
	out := &ExportResponse{}
	if err := c.conn.Invoke(ctx, methodExport, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterCardExporterServer(server grpc.ServiceRegistrar, impl CardExporterServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*CardExporterServer)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "GetMetadata",
				Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
					in := &Empty{}
					if err := dec(in); err != nil {
						return nil, err
					}
					if interceptor == nil {
						return impl.GetMetadata(ctx, in)
					}
					info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetMetadata}
					handler := func(ctx context.Context, req any) (any, error) {
						empty, ok := req.(*Empty)
						if !ok {
							return nil, fmt.Errorf("invalid request type")
						}
						return impl.GetMetadata(ctx, empty)
					}
					return interceptor(ctx, in, info, handler)
				},
			},
			{
				MethodName: "ListFormats",
				Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
					in := &Empty{}
					if err := dec(in); err != nil {
						return nil, err
					}
					if interceptor == nil {
						return impl.ListFormats(ctx, in)
					}
					info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListFormats}
					handler := func(ctx context.Context, req any) (any, error) {
						empty, ok := req.(*Empty)
						if !ok {
							return nil, fmt.Errorf("invalid request type")
						}
						return impl.ListFormats(ctx, empty)
					}
					return interceptor(ctx, in, info, handler)
				},
			},
			{
				MethodName: "Export",
				Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
					in := &ExportRequest{}
					if err := dec(in); err != nil {
						return nil, err
					}
					if interceptor == nil {
						return impl.Export(ctx, in)
					}
					info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodExport}
					handler := func(ctx context.Context, req any) (any, error) {
						inReq, ok := req.(*ExportRequest)
						if !ok {
							return nil, fmt.Errorf("invalid request type")
						}
						return impl.Export(ctx, inReq)
					}
					return interceptor(ctx, in, info, handler)
				},
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "schemas/exporter-rpc-v1.proto",
	}, impl)
}

type GRPCPlugin struct {
	plugin.NetRPCUnsupportedPlugin
	Impl CardExporterServer
}

func (p *GRPCPlugin) GRPCServer(_ *plugin.GRPCBroker, server *grpc.Server) error {
	RegisterCardExporterServer(server, p.Impl)
	return nil
}

func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *plugin.GRPCBroker, conn *grpc.ClientConn) (any, error) {
	return NewCardExporterClient(conn), nil
}

func PluginMap(impl CardExporterServer) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		PluginMapKey: &GRPCPlugin{Impl: impl},
	}
}
