// Package pb holds the stratbench.v1.Selector gRPC service definition.
//
// Requests and responses travel as google.protobuf.Struct; the typed views
// below are converted through their JSON form.
package pb

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "stratbench.v1.Selector"

	ChooseBestMethod = "/stratbench.v1.Selector/ChooseBest"
	OptimizeMethod   = "/stratbench.v1.Selector/Optimize"
)

// ChooseBestRequest selects the best strategy for one stored symbol.
type ChooseBestRequest struct {
	Symbol string `json:"symbol"`
}

// OptimizeRequest searches one strategy on one stored symbol.
type OptimizeRequest struct {
	Symbol   string `json:"symbol"`
	Strategy string `json:"strategy"`
}

// Window is a (short, long) moving-average pair.
type Window struct {
	Short int `json:"short"`
	Long  int `json:"long"`
}

// Score is the return one strategy achieved. Return is a decimal string.
type Score struct {
	Strategy string  `json:"strategy"`
	Window   *Window `json:"window,omitempty"`
	Return   string  `json:"return"`
}

// ChooseBestResponse is the selected strategy and the three candidates.
type ChooseBestResponse struct {
	Symbol     string  `json:"symbol"`
	Strategy   string  `json:"strategy"`
	Window     *Window `json:"window,omitempty"`
	Return     string  `json:"return"`
	Baseline   Score   `json:"baseline"`
	SMA        Score   `json:"sma"`
	EMA        Score   `json:"ema"`
	Bars       int     `json:"bars"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
	LastSignal string  `json:"last_signal"`
}

// OptimizeResponse is the best window of one strategy and the leaders of the
// search, ascending by return.
type OptimizeResponse struct {
	Symbol   string  `json:"symbol"`
	Strategy string  `json:"strategy"`
	Window   *Window `json:"window,omitempty"`
	Return   string  `json:"return"`
	Cells    int     `json:"cells"`
	TopK     []Score `json:"top_k,omitempty"`
	Bars     int     `json:"bars"`
}

// ToStruct converts a typed message into its wire form.
func ToStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	return s, nil
}

// FromStruct decodes a wire message into v.
func FromStruct(s *structpb.Struct, v any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("decoding %T: %w", v, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %T: %w", v, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// SelectorServer is the server API for the Selector service.
type SelectorServer interface {
	ChooseBest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Optimize(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterSelectorServer registers srv on s.
func RegisterSelectorServer(s grpc.ServiceRegistrar, srv SelectorServer) {
	s.RegisterService(&SelectorServiceDesc, srv)
}

func chooseBestHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SelectorServer).ChooseBest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ChooseBestMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SelectorServer).ChooseBest(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func optimizeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SelectorServer).Optimize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: OptimizeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SelectorServer).Optimize(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// SelectorServiceDesc is the grpc.ServiceDesc for the Selector service.
var SelectorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SelectorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ChooseBest", Handler: chooseBestHandler},
		{MethodName: "Optimize", Handler: optimizeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stratbench/v1/selector.proto",
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// SelectorClient is the client API for the Selector service.
type SelectorClient interface {
	ChooseBest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Optimize(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type selectorClient struct {
	cc grpc.ClientConnInterface
}

// NewSelectorClient creates a SelectorClient on cc.
func NewSelectorClient(cc grpc.ClientConnInterface) SelectorClient {
	return &selectorClient{cc: cc}
}

func (c *selectorClient) ChooseBest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ChooseBestMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *selectorClient) Optimize(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, OptimizeMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
