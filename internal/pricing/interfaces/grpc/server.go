// Package grpc 以 google.protobuf.Struct 为载荷的分析服务 gRPC 接口
package grpc

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wyfcoding/derivanalytics/internal/pricing/application"
	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName 完整服务名
const ServiceName = "derivanalytics.v1.AnalyticsService"

// AnalyticsServiceServer 服务端方法集，请求与响应字段沿用 HTTP 接口的 JSON 命名
type AnalyticsServiceServer interface {
	UpsertInstrument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApplyQuote(context.Context, *structpb.Struct) (*structpb.Struct, error)
	PriceOption(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Greeks(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ImpliedVolatility(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SelectStrikes(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateBasket(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddBasketLeg(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BasketGreeks(context.Context, *structpb.Struct) (*structpb.Struct, error)
	LatestResult(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// Server gRPC 服务实现
type Server struct {
	cmd   *application.AnalyticsCommandService
	query *application.AnalyticsQueryService
}

// NewServer 创建服务并注册到 s
func NewServer(s *grpc.Server, svc *application.AnalyticsService) *Server {
	srv := &Server{cmd: svc.Command, query: svc.Query}
	s.RegisterService(&ServiceDesc, srv)
	return srv
}

// UpsertInstrument 请求体为证券本身
func (s *Server) UpsertInstrument(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var inst domain.Instrument
	if err := decodeStruct(in, &inst); err != nil {
		return nil, invalid(err)
	}
	saved, err := s.cmd.UpsertInstrument(ctx, application.UpsertInstrumentCommand{Instrument: inst})
	if err != nil {
		return nil, toStatus(ctx, "UpsertInstrument", err)
	}
	return encodeStruct(saved)
}

func (s *Server) ApplyQuote(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var cmd application.ApplyQuoteCommand
	if err := decodeStruct(in, &cmd); err != nil {
		return nil, invalid(err)
	}
	cmd.Field = domain.Level1Field(strings.ToUpper(string(cmd.Field)))
	if err := s.cmd.ApplyQuote(ctx, cmd); err != nil {
		return nil, toStatus(ctx, "ApplyQuote", err)
	}
	return &structpb.Struct{}, nil
}

// PriceOption 计算、落库并发布
func (s *Server) PriceOption(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var cmd application.PriceOptionCommand
	if err := decodeStruct(in, &cmd); err != nil {
		return nil, invalid(err)
	}
	result, err := s.cmd.PriceOption(ctx, cmd)
	if err != nil {
		return nil, toStatus(ctx, "PriceOption", err)
	}
	return encodeStruct(result)
}

// Greeks 只计算
func (s *Server) Greeks(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var query application.GreeksQuery
	if err := decodeStruct(in, &query); err != nil {
		return nil, invalid(err)
	}
	result, err := s.query.Greeks(ctx, query)
	if err != nil {
		return nil, toStatus(ctx, "Greeks", err)
	}
	return encodeStruct(result)
}

func (s *Server) ImpliedVolatility(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var query application.ImpliedVolatilityQuery
	if err := decodeStruct(in, &query); err != nil {
		return nil, invalid(err)
	}
	iv, err := s.query.ImpliedVolatility(ctx, query)
	if err != nil {
		return nil, toStatus(ctx, "ImpliedVolatility", err)
	}
	return encodeStruct(map[string]any{
		"instrument_id":      query.InstrumentID,
		"implied_volatility": iv,
	})
}

// SelectStrikes 结果在 items 字段
func (s *Server) SelectStrikes(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var query application.SelectStrikesQuery
	if err := decodeStruct(in, &query); err != nil {
		return nil, invalid(err)
	}
	selected, err := s.query.SelectStrikes(ctx, query)
	if err != nil {
		return nil, toStatus(ctx, "SelectStrikes", err)
	}
	return encodeList(selected)
}

func (s *Server) CreateBasket(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var cmd application.CreateBasketCommand
	if err := decodeStruct(in, &cmd); err != nil {
		return nil, invalid(err)
	}
	dto, err := s.cmd.CreateBasket(ctx, cmd)
	if err != nil {
		return nil, toStatus(ctx, "CreateBasket", err)
	}
	return encodeStruct(dto)
}

func (s *Server) AddBasketLeg(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var cmd application.AddBasketLegCommand
	if err := decodeStruct(in, &cmd); err != nil {
		return nil, invalid(err)
	}
	dto, err := s.cmd.AddBasketLeg(ctx, cmd)
	if err != nil {
		return nil, toStatus(ctx, "AddBasketLeg", err)
	}
	return encodeStruct(dto)
}

// BasketGreeksRequest 篮子希腊字母请求
type BasketGreeksRequest struct {
	BasketID string     `json:"basket_id"`
	At       *time.Time `json:"at,omitempty"`
}

func (s *Server) BasketGreeks(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req BasketGreeksRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, invalid(err)
	}
	dto, err := s.query.BasketGreeks(ctx, req.BasketID, req.At)
	if err != nil {
		return nil, toStatus(ctx, "BasketGreeks", err)
	}
	return encodeStruct(dto)
}

// LatestResultRequest 最近定价结果请求
type LatestResultRequest struct {
	InstrumentID string `json:"instrument_id"`
}

// LatestResult 无结果时返回 NotFound
func (s *Server) LatestResult(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req LatestResultRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, invalid(err)
	}
	result, err := s.query.LatestResult(ctx, req.InstrumentID)
	if err != nil {
		return nil, toStatus(ctx, "LatestResult", err)
	}
	if result == nil {
		return nil, status.Errorf(codes.NotFound, "no pricing result for %s", req.InstrumentID)
	}
	return encodeStruct(result)
}

func invalid(err error) error {
	return status.Error(codes.InvalidArgument, fmt.Sprintf("malformed request: %v", err))
}
