package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"llmgate/pkg/types"
)

// GenerateMethod is the full name of the server-streaming generation RPC a
// grpc backend must serve. Messages are JSON encoded (content-subtype json).
const GenerateMethod = "/llmgate.backend.v1.Generator/Generate"

var generateStreamDesc = &grpc.StreamDesc{StreamName: "Generate", ServerStreams: true}

// JSONCodec encodes RPC messages as JSON. It is registered under the name
// "json" so both ends can select it by content-subtype.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (JSONCodec) Name() string                       { return "json" }

func init() { encoding.RegisterCodec(JSONCodec{}) }

// GRPCGenerateRequest is the request message of GenerateMethod.
type GRPCGenerateRequest struct {
	Model       string          `json:"model"`
	Messages    []types.Message `json:"messages,omitempty"`
	Prompt      string          `json:"prompt,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature"`
	TopP        float64         `json:"top_p"`
	Stop        []string        `json:"stop,omitempty"`
	Seed        *int64          `json:"seed,omitempty"`
}

// GRPCGenerateEvent is one streamed response message of GenerateMethod.
type GRPCGenerateEvent struct {
	Text         string `json:"text,omitempty"`
	FinishReason string `json:"finish_reason,omitempty"`
	Done         bool   `json:"done,omitempty"`
}

type grpcBackend struct {
	conn   *grpc.ClientConn
	health healthpb.HealthClient
	model  string
}

// NewGRPCBackend dials spec.Endpoint lazily; the first Probe establishes the
// connection.
func NewGRPCBackend(spec types.ModelSpec, opts BackendOptions) (Backend, error) {
	dopts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, opts.GRPCDialOptions...)
	conn, err := grpc.NewClient(spec.Endpoint, dopts...)
	if err != nil {
		return nil, ErrInvalid(fmt.Sprintf("grpc endpoint %q: %v", spec.Endpoint, err))
	}
	return &grpcBackend{conn: conn, health: healthpb.NewHealthClient(conn), model: spec.Name}, nil
}

// Probe uses the standard gRPC health service.
func (b *grpcBackend) Probe(ctx context.Context) error {
	resp, err := b.health.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return err
	}
	if s := resp.GetStatus(); s != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("health status %s", s)
	}
	return nil
}

func (b *grpcBackend) Open(ctx context.Context, gr GenerationRequest) (BackendStream, error) {
	ctx, cancel := context.WithCancel(ctx)
	cs, err := b.conn.NewStream(ctx, generateStreamDesc, GenerateMethod, grpc.CallContentSubtype(JSONCodec{}.Name()))
	if err != nil {
		cancel()
		return nil, err
	}
	req := GRPCGenerateRequest{
		Model:       b.model,
		Messages:    gr.Messages,
		Prompt:      gr.Prompt,
		MaxTokens:   gr.Params.MaxTokens,
		Temperature: gr.Params.Temperature,
		TopP:        gr.Params.TopP,
		Stop:        gr.Params.Stop,
		Seed:        gr.Params.Seed,
	}
	if err := cs.SendMsg(&req); err != nil {
		cancel()
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		cancel()
		return nil, err
	}
	return &grpcStream{cs: cs, cancel: cancel}, nil
}

func (b *grpcBackend) Close() error { return b.conn.Close() }

type grpcStream struct {
	cs     grpc.ClientStream
	cancel context.CancelFunc
}

func (s *grpcStream) Recv() (BackendEvent, error) {
	var ev GRPCGenerateEvent
	if err := s.cs.RecvMsg(&ev); err != nil {
		if err == io.EOF {
			return BackendEvent{}, io.EOF
		}
		return BackendEvent{}, err
	}
	return BackendEvent{
		Text:         ev.Text,
		FinishReason: ev.FinishReason,
		Done:         ev.Done || ev.FinishReason != "",
	}, nil
}

// Close abandons the RPC by canceling its context.
func (s *grpcStream) Close() error {
	s.cancel()
	return nil
}
