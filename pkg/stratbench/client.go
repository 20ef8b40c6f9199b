// Package stratbench is a Go client for the stratbench-server gRPC API.
package stratbench

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"

	"stratbench/internal/api/pb"
)

// Response types of the Selector service.
type (
	Window             = pb.Window
	Score              = pb.Score
	ChooseBestResponse = pb.ChooseBestResponse
	OptimizeResponse   = pb.OptimizeResponse
)

// Client provides a Go SDK for interacting with the stratbench-server API.
type Client struct {
	conn     *grpc.ClientConn
	selector pb.SelectorClient
	health   grpc_health_v1.HealthClient
}

// NewClient creates a client for the server at addr. Without options the
// connection is plaintext.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{
		conn:     conn,
		selector: pb.NewSelectorClient(conn),
		health:   grpc_health_v1.NewHealthClient(conn),
	}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ChooseBest selects the best strategy for symbol.
func (c *Client) ChooseBest(ctx context.Context, symbol string) (*ChooseBestResponse, error) {
	in, err := pb.ToStruct(pb.ChooseBestRequest{Symbol: symbol})
	if err != nil {
		return nil, err
	}
	resp, err := c.selector.ChooseBest(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("ChooseBest %s: %w", symbol, err)
	}
	out := &ChooseBestResponse{}
	if err := pb.FromStruct(resp, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Optimize searches one strategy, by name or kind, on symbol.
func (c *Client) Optimize(ctx context.Context, symbol, strategy string) (*OptimizeResponse, error) {
	in, err := pb.ToStruct(pb.OptimizeRequest{Symbol: symbol, Strategy: strategy})
	if err != nil {
		return nil, err
	}
	resp, err := c.selector.Optimize(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("Optimize %s %s: %w", strategy, symbol, err)
	}
	out := &OptimizeResponse{}
	if err := pb.FromStruct(resp, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Healthy reports whether the Selector service is serving.
func (c *Client) Healthy(ctx context.Context) (bool, error) {
	resp, err := c.health.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: pb.ServiceName})
	if err != nil {
		return false, fmt.Errorf("health check: %w", err)
	}
	return resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING, nil
}
