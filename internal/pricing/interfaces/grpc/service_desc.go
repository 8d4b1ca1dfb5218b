package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

type unaryCall func(AnalyticsServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryCall) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AnalyticsServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AnalyticsServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc 手写的服务描述，消息类型统一为 google.protobuf.Struct
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AnalyticsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("UpsertInstrument", AnalyticsServiceServer.UpsertInstrument),
		unary("ApplyQuote", AnalyticsServiceServer.ApplyQuote),
		unary("PriceOption", AnalyticsServiceServer.PriceOption),
		unary("Greeks", AnalyticsServiceServer.Greeks),
		unary("ImpliedVolatility", AnalyticsServiceServer.ImpliedVolatility),
		unary("SelectStrikes", AnalyticsServiceServer.SelectStrikes),
		unary("CreateBasket", AnalyticsServiceServer.CreateBasket),
		unary("AddBasketLeg", AnalyticsServiceServer.AddBasketLeg),
		unary("BasketGreeks", AnalyticsServiceServer.BasketGreeks),
		unary("LatestResult", AnalyticsServiceServer.LatestResult),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "derivanalytics/v1/analytics.proto",
}
