package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/derivanalytics/internal/pricing/application"
	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
	"github.com/wyfcoding/derivanalytics/pkg/logger"
	"github.com/wyfcoding/pkg/response"
)

// AnalyticsHandler HTTP 处理器
type AnalyticsHandler struct {
	cmd   *application.AnalyticsCommandService
	query *application.AnalyticsQueryService
}

// NewAnalyticsHandler 创建 HTTP 处理器实例
func NewAnalyticsHandler(cmd *application.AnalyticsCommandService, query *application.AnalyticsQueryService) *AnalyticsHandler {
	return &AnalyticsHandler{cmd: cmd, query: query}
}

// RegisterRoutes 将处理器方法绑定到 Gin 路由
func (h *AnalyticsHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/analytics")
	{
		api.PUT("/instruments", h.UpsertInstrument)
		api.GET("/instruments", h.ListInstruments)
		api.GET("/instruments/:id", h.GetInstrument)
		api.DELETE("/instruments/:id", h.RemoveInstrument)

		api.POST("/quotes", h.ApplyQuote)
		api.POST("/positions", h.ApplyPosition)

		api.POST("/options/:id/price", h.PriceOption)
		api.POST("/options/:id/greeks", h.Greeks)
		api.POST("/options/:id/implied-volatility", h.ImpliedVolatility)
		api.GET("/options/:id/volatility-depth", h.VolatilityDepth)
		api.GET("/options/:id/value", h.OptionValue)
		api.GET("/options/:id/synthetic", h.SyntheticLegs)
		api.GET("/options/:id/result", h.LatestResult)
		api.GET("/options/:id/history", h.ResultHistory)

		api.GET("/underlyings/:id/moneyness", h.Moneyness)
		api.GET("/underlyings/:id/strike-step", h.StrikeStep)
		api.POST("/underlyings/:id/strikes", h.SelectStrikes)
		api.PUT("/underlyings/:id/strike-rules/:name", h.SaveStrikeRule)
		api.GET("/underlyings/:id/strike-rules", h.ListStrikeRules)
		api.GET("/underlyings/:id/synthetic", h.UnderlyingSyntheticLegs)

		api.POST("/baskets", h.CreateBasket)
		api.GET("/baskets/:id", h.GetBasket)
		api.DELETE("/baskets/:id", h.DeleteBasket)
		api.POST("/baskets/:id/legs", h.AddBasketLeg)
		api.DELETE("/baskets/:id/legs/:instrument", h.RemoveBasketLeg)
		api.PUT("/baskets/:id/rounding", h.SetBasketRounding)
		api.GET("/baskets/:id/greeks", h.BasketGreeks)
		api.POST("/baskets/:id/revalue", h.RevalueBasket)

		api.POST("/results/purge", h.PurgeResults)
	}
}

// InstrumentRequest 证券请求
type InstrumentRequest struct {
	ID           string              `json:"id" binding:"required"`
	Code         string              `json:"code"`
	Type         string              `json:"type" binding:"required"`
	UnderlyingID string              `json:"underlying_id"`
	Strike       decimal.NullDecimal `json:"strike"`
	OptionType   string              `json:"option_type"`
	ExpiryDate   *time.Time          `json:"expiry_date"`
	BoardCode    string              `json:"board_code"`
	BoardExpiry  string              `json:"board_expiry"` // 如 "16:30"
}

func (r InstrumentRequest) toDomain() (domain.Instrument, error) {
	inst := domain.Instrument{
		ID:           r.ID,
		Code:         r.Code,
		Type:         domain.SecurityType(r.Type),
		UnderlyingID: r.UnderlyingID,
		Strike:       r.Strike,
		OptionType:   domain.OptionType(r.OptionType),
		ExpiryDate:   r.ExpiryDate,
	}
	if r.BoardCode != "" || r.BoardExpiry != "" {
		inst.Board = &domain.ExchangeBoard{Code: r.BoardCode}
		if r.BoardExpiry != "" {
			offset, err := parseClock(r.BoardExpiry)
			if err != nil {
				return domain.Instrument{}, err
			}
			inst.Board.ExpiryTime = offset
		}
	}
	return inst, nil
}

// ModelRequest 模型参数覆盖
type ModelRequest struct {
	Model         string              `json:"model"`
	RiskFree      decimal.NullDecimal `json:"risk_free"`
	Dividend      decimal.NullDecimal `json:"dividend"`
	RoundDecimals *int                `json:"round_decimals"`
}

func (r ModelRequest) params() application.ModelParams {
	return application.ModelParams{
		Model:         r.Model,
		RiskFree:      r.RiskFree,
		Dividend:      r.Dividend,
		RoundDecimals: r.RoundDecimals,
	}
}

// PricingRequest 定价请求，空请求体使用全部默认值
type PricingRequest struct {
	ModelRequest
	Volatility decimal.NullDecimal `json:"volatility"` // 小数形式
	AssetPrice decimal.NullDecimal `json:"asset_price"`
	At         *time.Time          `json:"at"`
}

// QuoteRequest 行情请求
type QuoteRequest struct {
	InstrumentID string              `json:"instrument_id" binding:"required"`
	Field        string              `json:"field"`
	Value        decimal.NullDecimal `json:"value"`
	Depth        *domain.MarketDepth `json:"depth"`
}

// PositionRequest 持仓请求
type PositionRequest struct {
	InstrumentID  string          `json:"instrument_id" binding:"required"`
	PortfolioName string          `json:"portfolio_name"`
	CurrentValue  decimal.Decimal `json:"current_value"`
}

// ImpliedVolatilityRequest 隐含波动率请求
type ImpliedVolatilityRequest struct {
	ModelRequest
	Premium decimal.Decimal `json:"premium"`
	At      *time.Time      `json:"at"`
}

// SelectStrikesRequest 行权价选择请求
type SelectStrikesRequest struct {
	Rule     string     `json:"rule"`
	RuleName string     `json:"rule_name"`
	Expiry   *time.Time `json:"expiry"`
}

// StrikeRuleRequest 规则保存请求
type StrikeRuleRequest struct {
	Rule string `json:"rule" binding:"required"`
}

// BasketRequest 篮子创建请求
type BasketRequest struct {
	ID            string              `json:"id"`
	UnderlyingID  string              `json:"underlying_id"`
	RiskFree      decimal.NullDecimal `json:"risk_free"`
	Dividend      decimal.NullDecimal `json:"dividend"`
	RoundDecimals *int                `json:"round_decimals"`
}

// BasketLegRequest 篮子加腿请求
type BasketLegRequest struct {
	InstrumentID string `json:"instrument_id" binding:"required"`
	Model        string `json:"model"`
}

// RoundingRequest 取整精度请求
type RoundingRequest struct {
	RoundDecimals *int `json:"round_decimals" binding:"required"`
}

// PurgeRequest 清理请求
type PurgeRequest struct {
	Before time.Time `json:"before"`
}

func (h *AnalyticsHandler) UpsertInstrument(c *gin.Context) {
	var req InstrumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	inst, err := req.toDomain()
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	saved, err := h.cmd.UpsertInstrument(c.Request.Context(), application.UpsertInstrumentCommand{Instrument: inst})
	if err != nil {
		h.fail(c, "failed to upsert instrument", err)
		return
	}
	response.Success(c, saved)
}

func (h *AnalyticsHandler) ListInstruments(c *gin.Context) {
	criteria := domain.Criteria{
		Type:         domain.SecurityType(strings.ToUpper(c.Query("type"))),
		UnderlyingID: c.Query("underlying_id"),
		OptionType:   domain.OptionType(strings.ToUpper(c.Query("option_type"))),
	}
	if s := c.Query("strike"); s != "" {
		strike, err := decimal.NewFromString(s)
		if err != nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid strike", err.Error())
			return
		}
		criteria.Strike = decimal.NewNullDecimal(strike)
	}
	expiry, err := queryTime(c, "expiry")
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid expiry", err.Error())
		return
	}
	criteria.ExpiryDate = expiry
	response.Success(c, h.query.Instruments(c.Request.Context(), criteria))
}

func (h *AnalyticsHandler) GetInstrument(c *gin.Context) {
	inst, err := h.query.Instrument(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "failed to get instrument", err)
		return
	}
	response.Success(c, inst)
}

func (h *AnalyticsHandler) RemoveInstrument(c *gin.Context) {
	if err := h.cmd.RemoveInstrument(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "failed to remove instrument", err)
		return
	}
	response.Success(c, gin.H{"id": c.Param("id")})
}

func (h *AnalyticsHandler) ApplyQuote(c *gin.Context) {
	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	err := h.cmd.ApplyQuote(c.Request.Context(), application.ApplyQuoteCommand{
		InstrumentID: req.InstrumentID,
		Field:        domain.Level1Field(strings.ToUpper(req.Field)),
		Value:        req.Value,
		Depth:        req.Depth,
	})
	if err != nil {
		h.fail(c, "failed to apply quote", err)
		return
	}
	response.Success(c, gin.H{"instrument_id": req.InstrumentID})
}

func (h *AnalyticsHandler) ApplyPosition(c *gin.Context) {
	var req PositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	err := h.cmd.ApplyPosition(c.Request.Context(), domain.Position{
		InstrumentID:  req.InstrumentID,
		PortfolioName: req.PortfolioName,
		CurrentValue:  req.CurrentValue,
	})
	if err != nil {
		h.fail(c, "failed to apply position", err)
		return
	}
	response.Success(c, gin.H{"instrument_id": req.InstrumentID})
}

func (h *AnalyticsHandler) pricingCommand(c *gin.Context) (application.PriceOptionCommand, bool) {
	var req PricingRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
			return application.PriceOptionCommand{}, false
		}
	}
	return application.PriceOptionCommand{
		InstrumentID: c.Param("id"),
		Params:       req.params(),
		Deviation:    req.Volatility,
		AssetPrice:   req.AssetPrice,
		At:           req.At,
	}, true
}

// PriceOption 计算并保存定价结果
func (h *AnalyticsHandler) PriceOption(c *gin.Context) {
	cmd, ok := h.pricingCommand(c)
	if !ok {
		return
	}
	result, err := h.cmd.PriceOption(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, "failed to price option", err)
		return
	}
	response.Success(c, result)
}

// Greeks 只计算不保存
func (h *AnalyticsHandler) Greeks(c *gin.Context) {
	cmd, ok := h.pricingCommand(c)
	if !ok {
		return
	}
	result, err := h.query.Greeks(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, "failed to calculate greeks", err)
		return
	}
	response.Success(c, result)
}

func (h *AnalyticsHandler) ImpliedVolatility(c *gin.Context) {
	var req ImpliedVolatilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	iv, err := h.query.ImpliedVolatility(c.Request.Context(), application.ImpliedVolatilityQuery{
		InstrumentID: c.Param("id"),
		Params:       req.params(),
		Premium:      req.Premium,
		At:           req.At,
	})
	if err != nil {
		h.fail(c, "failed to solve implied volatility", err)
		return
	}
	response.Success(c, gin.H{"instrument_id": c.Param("id"), "implied_volatility": iv})
}

func (h *AnalyticsHandler) VolatilityDepth(c *gin.Context) {
	depth, err := h.query.VolatilityDepth(c.Request.Context(), c.Param("id"), application.ModelParams{Model: c.Query("model")}, nil)
	if err != nil {
		h.fail(c, "failed to convert market depth", err)
		return
	}
	response.Success(c, depth)
}

func (h *AnalyticsHandler) OptionValue(c *gin.Context) {
	v, err := h.query.OptionValue(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "failed to calculate option value", err)
		return
	}
	response.Success(c, v)
}

func (h *AnalyticsHandler) SyntheticLegs(c *gin.Context) {
	legs, err := h.query.SyntheticLegs(c.Request.Context(), application.SyntheticQuery{
		InstrumentID: c.Param("id"),
		Side:         domain.Side(strings.ToUpper(c.DefaultQuery("side", string(domain.SideBuy)))),
	})
	if err != nil {
		h.fail(c, "failed to build synthetic position", err)
		return
	}
	response.Success(c, legs)
}

func (h *AnalyticsHandler) LatestResult(c *gin.Context) {
	result, err := h.query.LatestResult(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "failed to get pricing result", err)
		return
	}
	if result == nil {
		response.ErrorWithStatus(c, http.StatusNotFound, "pricing result not found", c.Param("id"))
		return
	}
	response.Success(c, result)
}

func (h *AnalyticsHandler) ResultHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	results, err := h.query.ResultHistory(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.fail(c, "failed to get pricing history", err)
		return
	}
	response.Success(c, results)
}

func (h *AnalyticsHandler) Moneyness(c *gin.Context) {
	expiry, err := queryTime(c, "expiry")
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid expiry", err.Error())
		return
	}
	m, err := h.query.Moneyness(c.Request.Context(), c.Param("id"), expiry)
	if err != nil {
		h.fail(c, "failed to classify strikes", err)
		return
	}
	response.Success(c, m)
}

func (h *AnalyticsHandler) StrikeStep(c *gin.Context) {
	expiry, err := queryTime(c, "expiry")
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid expiry", err.Error())
		return
	}
	step, err := h.query.StrikeStep(c.Request.Context(), c.Param("id"), expiry)
	if err != nil {
		h.fail(c, "failed to compute strike step", err)
		return
	}
	response.Success(c, gin.H{"underlying_id": c.Param("id"), "strike_step": step})
}

func (h *AnalyticsHandler) SelectStrikes(c *gin.Context) {
	var req SelectStrikesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	out, err := h.query.SelectStrikes(c.Request.Context(), application.SelectStrikesQuery{
		UnderlyingID: c.Param("id"),
		Expiry:       req.Expiry,
		Rule:         req.Rule,
		RuleName:     req.RuleName,
	})
	if err != nil {
		h.fail(c, "failed to select strikes", err)
		return
	}
	response.Success(c, out)
}

func (h *AnalyticsHandler) SaveStrikeRule(c *gin.Context) {
	var req StrikeRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	rec, err := h.cmd.SaveStrikeRule(c.Request.Context(), application.SaveStrikeRuleCommand{
		UnderlyingID: c.Param("id"),
		Name:         c.Param("name"),
		Rule:         req.Rule,
	})
	if err != nil {
		h.fail(c, "failed to save strike rule", err)
		return
	}
	response.Success(c, gin.H{"underlying_id": rec.UnderlyingID, "name": rec.Name, "rule": rec.Spec.String()})
}

func (h *AnalyticsHandler) ListStrikeRules(c *gin.Context) {
	recs, err := h.query.StrikeRules(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "failed to list strike rules", err)
		return
	}
	out := make([]gin.H, 0, len(recs))
	for _, rec := range recs {
		out = append(out, gin.H{"name": rec.Name, "rule": rec.Spec.String(), "updated_at": rec.UpdatedAt})
	}
	response.Success(c, out)
}

func (h *AnalyticsHandler) UnderlyingSyntheticLegs(c *gin.Context) {
	strike, err := decimal.NewFromString(c.Query("strike"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid strike", err.Error())
		return
	}
	expiry, err := queryTime(c, "expiry")
	if err != nil || expiry == nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid expiry", c.Query("expiry"))
		return
	}
	legs, err := h.query.UnderlyingSyntheticLegs(c.Request.Context(), application.UnderlyingSyntheticQuery{
		UnderlyingID: c.Param("id"),
		Strike:       strike,
		Expiry:       *expiry,
		Side:         domain.Side(strings.ToUpper(c.DefaultQuery("side", string(domain.SideBuy)))),
	})
	if err != nil {
		h.fail(c, "failed to build synthetic underlying", err)
		return
	}
	response.Success(c, legs)
}

func (h *AnalyticsHandler) CreateBasket(c *gin.Context) {
	var req BasketRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
			return
		}
	}
	basket, err := h.cmd.CreateBasket(c.Request.Context(), application.CreateBasketCommand{
		ID:            req.ID,
		UnderlyingID:  req.UnderlyingID,
		RiskFree:      req.RiskFree,
		Dividend:      req.Dividend,
		RoundDecimals: req.RoundDecimals,
	})
	if err != nil {
		h.fail(c, "failed to create basket", err)
		return
	}
	response.SuccessWithStatus(c, http.StatusCreated, "created", basket)
}

func (h *AnalyticsHandler) GetBasket(c *gin.Context) {
	basket, err := h.query.Basket(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, "failed to get basket", err)
		return
	}
	response.Success(c, basket)
}

func (h *AnalyticsHandler) DeleteBasket(c *gin.Context) {
	if err := h.cmd.DeleteBasket(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, "failed to delete basket", err)
		return
	}
	response.Success(c, gin.H{"id": c.Param("id")})
}

func (h *AnalyticsHandler) AddBasketLeg(c *gin.Context) {
	var req BasketLegRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	basket, err := h.cmd.AddBasketLeg(c.Request.Context(), application.AddBasketLegCommand{
		BasketID:     c.Param("id"),
		InstrumentID: req.InstrumentID,
		Model:        req.Model,
	})
	if err != nil {
		h.fail(c, "failed to add basket leg", err)
		return
	}
	response.Success(c, basket)
}

func (h *AnalyticsHandler) RemoveBasketLeg(c *gin.Context) {
	basket, err := h.cmd.RemoveBasketLeg(c.Request.Context(), c.Param("id"), c.Param("instrument"))
	if err != nil {
		h.fail(c, "failed to remove basket leg", err)
		return
	}
	response.Success(c, basket)
}

func (h *AnalyticsHandler) SetBasketRounding(c *gin.Context) {
	var req RoundingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	basket, err := h.cmd.SetBasketRounding(c.Request.Context(), c.Param("id"), *req.RoundDecimals)
	if err != nil {
		h.fail(c, "failed to set basket rounding", err)
		return
	}
	response.Success(c, basket)
}

func (h *AnalyticsHandler) BasketGreeks(c *gin.Context) {
	greeks, err := h.query.BasketGreeks(c.Request.Context(), c.Param("id"), nil)
	if err != nil {
		h.fail(c, "failed to calculate basket greeks", err)
		return
	}
	response.Success(c, greeks)
}

func (h *AnalyticsHandler) RevalueBasket(c *gin.Context) {
	greeks, err := h.cmd.RevalueBasket(c.Request.Context(), c.Param("id"), nil)
	if err != nil {
		h.fail(c, "failed to revalue basket", err)
		return
	}
	response.Success(c, greeks)
}

func (h *AnalyticsHandler) PurgeResults(c *gin.Context) {
	var req PurgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	if req.Before.IsZero() {
		response.ErrorWithStatus(c, http.StatusBadRequest, "before is required", "")
		return
	}
	n, err := h.cmd.PurgeResults(c.Request.Context(), req.Before)
	if err != nil {
		h.fail(c, "failed to purge pricing results", err)
		return
	}
	response.Success(c, gin.H{"deleted": n})
}

func (h *AnalyticsHandler) fail(c *gin.Context, msg string, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), msg, "error", err)
	} else {
		logger.Debug(c.Request.Context(), msg, "error", err)
	}
	response.ErrorWithStatus(c, status, msg, err.Error())
}

// queryTime 接受 2006-01-02 或 RFC3339，参数缺失时返回 nil
func queryTime(c *gin.Context, key string) (*time.Time, error) {
	s := c.Query(key)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unsupported time %q", s)
}

// parseClock 解析 "15:04" 或 "15:04:05" 为自午夜起的偏移
func parseClock(s string) (time.Duration, error) {
	for _, layout := range []string{"15:04", time.TimeOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second, nil
		}
	}
	return 0, fmt.Errorf("invalid board expiry %q", s)
}
