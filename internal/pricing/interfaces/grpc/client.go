package grpc

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/derivanalytics/internal/pricing/application"
	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
	"github.com/wyfcoding/derivanalytics/pkg/grpcclient"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client 分析服务的类型化客户端
type Client struct {
	conn *grpc.ClientConn
}

// NewClient 通过 grpcclient 建立连接
func NewClient(cfg grpcclient.ClientConfig, opts ...grpc.DialOption) (*Client, error) {
	conn, err := grpcclient.NewClient(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close 关闭底层连接
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	req, err := encodeStruct(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, req, resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decodeStruct(resp, out)
}

func (c *Client) UpsertInstrument(ctx context.Context, inst domain.Instrument) (*domain.Instrument, error) {
	out := new(domain.Instrument)
	if err := c.invoke(ctx, "UpsertInstrument", inst, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ApplyQuote(ctx context.Context, cmd application.ApplyQuoteCommand) error {
	return c.invoke(ctx, "ApplyQuote", cmd, nil)
}

func (c *Client) PriceOption(ctx context.Context, cmd application.PriceOptionCommand) (*domain.PricingResult, error) {
	out := new(domain.PricingResult)
	if err := c.invoke(ctx, "PriceOption", cmd, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Greeks(ctx context.Context, query application.GreeksQuery) (*domain.PricingResult, error) {
	out := new(domain.PricingResult)
	if err := c.invoke(ctx, "Greeks", query, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ImpliedVolatility 返回百分比形式的隐含波动率，无解时 Valid 为 false
func (c *Client) ImpliedVolatility(ctx context.Context, query application.ImpliedVolatilityQuery) (decimal.NullDecimal, error) {
	var out struct {
		ImpliedVolatility decimal.NullDecimal `json:"implied_volatility"`
	}
	if err := c.invoke(ctx, "ImpliedVolatility", query, &out); err != nil {
		return decimal.NullDecimal{}, err
	}
	return out.ImpliedVolatility, nil
}

func (c *Client) SelectStrikes(ctx context.Context, query application.SelectStrikesQuery) ([]*domain.Instrument, error) {
	req, err := encodeStruct(query)
	if err != nil {
		return nil, err
	}
	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/SelectStrikes", req, resp); err != nil {
		return nil, err
	}
	return decodeList[*domain.Instrument](resp)
}

func (c *Client) CreateBasket(ctx context.Context, cmd application.CreateBasketCommand) (*application.BasketDTO, error) {
	out := new(application.BasketDTO)
	if err := c.invoke(ctx, "CreateBasket", cmd, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AddBasketLeg(ctx context.Context, cmd application.AddBasketLegCommand) (*application.BasketDTO, error) {
	out := new(application.BasketDTO)
	if err := c.invoke(ctx, "AddBasketLeg", cmd, out); err != nil {
		return nil, err
	}
	return out, nil
}

// BasketGreeks at 为 nil 时按服务端当前时刻估值
func (c *Client) BasketGreeks(ctx context.Context, basketID string, at *time.Time) (*application.BasketGreeksDTO, error) {
	out := new(application.BasketGreeksDTO)
	if err := c.invoke(ctx, "BasketGreeks", BasketGreeksRequest{BasketID: basketID, At: at}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// LatestResult 无结果时返回 codes.NotFound
func (c *Client) LatestResult(ctx context.Context, instrumentID string) (*domain.PricingResult, error) {
	out := new(domain.PricingResult)
	if err := c.invoke(ctx, "LatestResult", LatestResultRequest{InstrumentID: instrumentID}, out); err != nil {
		return nil, err
	}
	return out, nil
}
