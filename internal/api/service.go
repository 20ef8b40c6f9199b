package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"stratbench/internal/api/pb"
	"stratbench/internal/domain"
	"stratbench/internal/engine"
	"stratbench/internal/report"
	"stratbench/internal/selector"
	"stratbench/internal/strategy"
)

var _ pb.SelectorServer = (*SelectorService)(nil)

// SeriesReader loads the analyzed range of a symbol's stored bars.
type SeriesReader interface {
	Series(ctx context.Context, symbol string) (domain.PriceSeries, error)
}

// SelectorService answers strategy selection queries over stored bars.
type SelectorService struct {
	series   SeriesReader
	sel      *selector.Selector
	registry *strategy.Registry
	capital  decimal.Decimal
	log      *slog.Logger
}

// NewSelectorService creates a SelectorService.
func NewSelectorService(series SeriesReader, sel *selector.Selector, registry *strategy.Registry, capital decimal.Decimal, log *slog.Logger) *SelectorService {
	return &SelectorService{
		series:   series,
		sel:      sel,
		registry: registry,
		capital:  capital,
		log:      log.With("component", "selector-service"),
	}
}

// ChooseBest runs the full selection on the requested symbol.
func (s *SelectorService) ChooseBest(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.ChooseBestRequest
	if err := pb.FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, status.Error(codes.InvalidArgument, "symbol is required")
	}

	start := time.Now()
	series, err := s.series.Series(ctx, symbol)
	if err != nil {
		return nil, toStatus(err)
	}
	c, err := s.sel.ChooseBest(ctx, series, s.capital)
	if err != nil {
		return nil, toStatus(err)
	}
	s.log.Info("ChooseBest", "symbol", symbol, "kind", c.Kind, "elapsed", time.Since(start).Round(time.Millisecond))

	return pb.ToStruct(pb.ChooseBestResponse{
		Symbol:     symbol,
		Strategy:   string(c.Kind),
		Window:     window(c.Window),
		Return:     c.Return.String(),
		Baseline:   score(c.Baseline),
		SMA:        score(c.SMA),
		EMA:        score(c.EMA),
		Bars:       series.Len(),
		Start:      series.Bars[0].Timestamp.Format("2006-01-02"),
		End:        series.Bars[series.Len()-1].Timestamp.Format("2006-01-02"),
		LastSignal: report.LastSignal(c),
	})
}

// Optimize runs one strategy, named either by registry name or by kind.
func (s *SelectorService) Optimize(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req pb.OptimizeRequest
	if err := pb.FromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	if symbol == "" {
		return nil, status.Error(codes.InvalidArgument, "symbol is required")
	}
	st, err := s.lookup(req.Strategy)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	series, err := s.series.Series(ctx, symbol)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := st.Optimize(ctx, series, s.capital)
	if err != nil {
		return nil, toStatus(err)
	}
	s.log.Info("Optimize", "symbol", symbol, "strategy", st.Name(), "return", out.Return.StringFixed(2))

	return pb.ToStruct(pb.OptimizeResponse{
		Symbol:   symbol,
		Strategy: string(out.Kind),
		Window:   window(out.Window),
		Return:   out.Return.String(),
		Cells:    out.Cells,
		TopK: lo.Map(out.TopK, func(r domain.RankedWindow, _ int) pb.Score {
			return pb.Score{Strategy: string(out.Kind), Window: window(&r.Window), Return: r.Return.String()}
		}),
		Bars: series.Len(),
	})
}

func (s *SelectorService) lookup(name string) (strategy.Strategy, error) {
	if st, ok := s.registry.Get(name); ok {
		return st, nil
	}
	kind, err := domain.ParseStrategyKind(name)
	if err != nil {
		return nil, fmt.Errorf("unknown strategy %q, have %s", name, strings.Join(s.registry.List(), ", "))
	}
	st, ok := s.registry.ByKind(kind)
	if !ok {
		return nil, fmt.Errorf("no strategy registered for %s", kind)
	}
	return st, nil
}

func window(w *domain.Window) *pb.Window {
	if w == nil {
		return nil
	}
	return &pb.Window{Short: w.Short, Long: w.Long}
}

func score(o *strategy.Outcome) pb.Score {
	return pb.Score{Strategy: string(o.Kind), Window: window(o.Window), Return: o.Return.String()}
}

// toStatus maps engine errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	case errors.Is(err, domain.ErrEmptySeries):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, strategy.ErrInvalidParameters),
		errors.Is(err, domain.ErrMalformedSeries),
		errors.Is(err, engine.ErrNegativeCapital):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
