package stratbench

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"stratbench/internal/api/pb"
)

type fakeSelector struct {
	lastOptimize pb.OptimizeRequest
}

func (f *fakeSelector) ChooseBest(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.ChooseBestRequest
	if err := pb.FromStruct(in, &req); err != nil {
		return nil, err
	}
	if req.Symbol != "AAPL" {
		return nil, status.Errorf(codes.NotFound, "no bars for %s", req.Symbol)
	}
	return pb.ToStruct(pb.ChooseBestResponse{
		Symbol:   "AAPL",
		Strategy: "ema",
		Window:   &pb.Window{Short: 5, Long: 20},
		Return:   "11250.5",
		Baseline: pb.Score{Strategy: "buy-and-hold", Return: "10800"},
		Bars:     500,
	})
}

func (f *fakeSelector) Optimize(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := pb.FromStruct(in, &f.lastOptimize); err != nil {
		return nil, err
	}
	return pb.ToStruct(pb.OptimizeResponse{
		Symbol:   f.lastOptimize.Symbol,
		Strategy: "sma",
		Window:   &pb.Window{Short: 3, Long: 15},
		Return:   "10100",
		Cells:    42,
		TopK:     []pb.Score{{Strategy: "sma", Window: &pb.Window{Short: 4, Long: 15}, Return: "10050"}, {Strategy: "sma", Window: &pb.Window{Short: 3, Long: 15}, Return: "10100"}},
	})
}

func newTestClient(t *testing.T, hs *health.Server) (*Client, *fakeSelector) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer()
	fake := &fakeSelector{}
	pb.RegisterSelectorServer(gs, fake)
	grpc_health_v1.RegisterHealthServer(gs, hs)
	go gs.Serve(lis)
	t.Cleanup(gs.Stop)

	c, err := NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, fake
}

func TestChooseBest(t *testing.T) {
	c, _ := newTestClient(t, health.NewServer())

	got, err := c.ChooseBest(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "ema", got.Strategy)
	assert.Equal(t, &Window{Short: 5, Long: 20}, got.Window)
	assert.Equal(t, "11250.5", got.Return)
	assert.Equal(t, "10800", got.Baseline.Return)
	assert.Equal(t, 500, got.Bars)

	_, err = c.ChooseBest(context.Background(), "MSFT")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestOptimize(t *testing.T) {
	c, fake := newTestClient(t, health.NewServer())

	got, err := c.Optimize(context.Background(), "SPY", "sma-cross")
	require.NoError(t, err)
	assert.Equal(t, pb.OptimizeRequest{Symbol: "SPY", Strategy: "sma-cross"}, fake.lastOptimize)
	assert.Equal(t, "SPY", got.Symbol)
	assert.Equal(t, 42, got.Cells)
	require.Len(t, got.TopK, 2)
	assert.Equal(t, "10100", got.TopK[1].Return)
}

func TestHealthy(t *testing.T) {
	hs := health.NewServer()
	c, _ := newTestClient(t, hs)

	hs.SetServingStatus(pb.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	ok, err := c.Healthy(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	hs.SetServingStatus(pb.ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	ok, err = c.Healthy(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
