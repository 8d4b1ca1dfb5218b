package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/derivanalytics/internal/pricing/application"
	"github.com/wyfcoding/derivanalytics/internal/pricing/domain"
	"github.com/wyfcoding/derivanalytics/internal/pricing/infrastructure/messaging"
	"github.com/wyfcoding/derivanalytics/internal/pricing/infrastructure/persistence/mysql"
	pricingredis "github.com/wyfcoding/derivanalytics/internal/pricing/infrastructure/persistence/redis"
	"github.com/wyfcoding/derivanalytics/internal/pricing/infrastructure/registry"
	grpchandler "github.com/wyfcoding/derivanalytics/internal/pricing/interfaces/grpc"
	httphandler "github.com/wyfcoding/derivanalytics/internal/pricing/interfaces/http"
	"github.com/wyfcoding/derivanalytics/pkg/cache"
	"github.com/wyfcoding/derivanalytics/pkg/config"
	"github.com/wyfcoding/derivanalytics/pkg/db"
	"github.com/wyfcoding/derivanalytics/pkg/logger"
	analyticsmetrics "github.com/wyfcoding/derivanalytics/pkg/metrics"
	localmiddleware "github.com/wyfcoding/derivanalytics/pkg/middleware"
	"github.com/wyfcoding/derivanalytics/pkg/mq"
	"github.com/wyfcoding/derivanalytics/pkg/ratelimit"
	"github.com/wyfcoding/derivanalytics/pkg/utils"
	"github.com/wyfcoding/pkg/app"
	"github.com/wyfcoding/pkg/metrics"
	"github.com/wyfcoding/pkg/middleware"
	"google.golang.org/grpc"
)

// BootstrapName 服务唯一标识
const BootstrapName = "pricing"

const (
	relayInterval   = time.Second
	relayBatchSize  = 100
	outboxRetention = 24 * time.Hour
)

// rateLimit 在 initService 中绑定 Redis 限流器，gRPC 拦截器在 Build 前即需注册
var rateLimit = new(ratelimit.Policy)

// AppContext 应用上下文
type AppContext struct {
	AppService *application.AnalyticsService
	Config     *config.Config
}

func main() {
	if err := app.NewBuilder(BootstrapName).
		WithConfig(&config.Config{}).
		WithService(initService).
		WithGRPC(registerGRPC).
		WithGin(registerGin).
		WithGinMiddleware(middleware.CORS()).
		WithGRPCInterceptor(
			localmiddleware.GRPCRecoveryInterceptor(),
			localmiddleware.GRPCLoggingInterceptor(),
			localmiddleware.GRPCRateLimitInterceptor(rateLimit),
		).
		Build().
		Run(); err != nil {
		slog.Error("service bootstrap failed", "error", err)
	}
}

func registerGRPC(s *grpc.Server, srv any) {
	ctx := srv.(*AppContext)
	grpchandler.NewServer(s, ctx.AppService)
	slog.Default().Info("gRPC server registered", "service", BootstrapName)
}

func registerGin(e *gin.Engine, srv any) {
	ctx := srv.(*AppContext)
	if ctx.Config.Server.Environment == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	e.Use(
		localmiddleware.GinLoggingMiddleware(),
		localmiddleware.GinRecoveryMiddleware(),
		localmiddleware.RateLimitMiddleware(rateLimit),
	)
	e.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":    "healthy",
			"service":   BootstrapName,
			"version":   ctx.Config.Version,
			"timestamp": time.Now().Unix(),
		})
	})
	httphandler.NewAnalyticsHandler(ctx.AppService.Command, ctx.AppService.Query).RegisterRoutes(&e.RouterGroup)
	slog.Default().Info("HTTP routes registered", "service", BootstrapName)
}

func initService(cfg any, m *metrics.Metrics) (any, func(), error) {
	c := cfg.(*config.Config)
	ctx := context.Background()
	slog.Info("initializing service dependencies...")

	c.Analytics.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, nil, err
	}
	model, err := domain.ParseModelKind(c.Analytics.DefaultModel)
	if err != nil {
		return nil, nil, fmt.Errorf("analytics.default_model: %w", err)
	}

	var cleanups []func()
	cleanup := func() {
		slog.Info("cleaning up resources...")
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	// 1. 数据库
	var database *db.DB
	err = utils.RetryWithBackoff(ctx, 5, 500*time.Millisecond, 5*time.Second, func() error {
		var err error
		database, err = db.Init(ctx, c.Data.Database)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	cleanups = append(cleanups, func() { _ = database.Close() })
	if err := database.WithContext(ctx).AutoMigrate(append(mysql.Models(), &messaging.OutboxMessage{})...); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("auto migrate: %w", err)
	}
	gdb := database.DB

	// 2. Redis：结果缓存与分布式限流
	redisCache, err := cache.New(ctx, c.Data.Redis)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	cleanups = append(cleanups, func() { _ = redisCache.Close() })
	if c.RateLimit.Enabled {
		rateLimit.Bind(ratelimit.NewRedisRateLimiter(redisCache.Client()), ratelimit.PerSecond(c.RateLimit.Rate, c.RateLimit.Burst))
	}

	// 3. 消息：事件投递与行情消费
	am := analyticsmetrics.New(m, BootstrapName)
	var producer *mq.KafkaProducer
	if c.KafkaEnabled() {
		producer = mq.NewProducer(c.MessageQueue.Kafka)
		cleanups = append(cleanups, func() { _ = producer.Close() })
	}
	outbox := messaging.NewOutboxEventPublisher(gdb, am)
	var publisher domain.EventPublisher
	switch c.Analytics.EventDelivery {
	case config.DeliveryDirect:
		publisher = messaging.NewKafkaEventPublisher(producer, c.Analytics.EventTopic, am)
	case config.DeliveryLog:
		publisher = messaging.LogEventPublisher{}
	default:
		publisher = outbox
	}

	// 4. 应用服务
	svc, err := application.NewAnalyticsService(application.Dependencies{
		Catalog:     registry.NewInstrumentRegistry(),
		Quotes:      registry.NewLevel1Store(),
		Positions:   registry.NewPositionBook(),
		Instruments: mysql.NewInstrumentRepository(gdb),
		Results:     mysql.NewPricingRepository(gdb),
		StrikeRules: mysql.NewStrikeRuleRepository(gdb),
		Cache:       pricingredis.NewPricingCache(redisCache, c.Analytics.ResultTTL),
		Publisher:   publisher,
		Tx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.WithTx(ctx, gdb, fn)
		},
		Metrics: am,
		Defaults: application.Defaults{
			Model:         model,
			RiskFree:      c.Analytics.RiskFreeRate(),
			Dividend:      c.Analytics.DividendYield(),
			RoundDecimals: c.Analytics.Decimals(),
			HistoryLimit:  c.Analytics.HistoryLimit,
		},
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	n, err := svc.Command.LoadCatalog(ctx)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}
	slog.Info("instrument catalog loaded", "instruments", n)

	// 5. 后台任务：行情消费、outbox 投递与清理
	bg, cancel := context.WithCancel(ctx)
	cleanups = append(cleanups, cancel)
	if producer != nil {
		startQuoteConsumer(bg, c, producer, svc.Command)
		if c.Analytics.EventDelivery == config.DeliveryOutbox {
			go outbox.RunRelay(bg, producer, c.Analytics.EventTopic, relayInterval, relayBatchSize)
		}
	} else if c.Analytics.EventDelivery == config.DeliveryOutbox {
		slog.Warn("kafka brokers not configured, events stay in outbox", "topic", c.Analytics.EventTopic)
	}
	go cleanupOutbox(bg, outbox)

	return &AppContext{
		AppService: svc,
		Config:     c,
	}, cleanup, nil
}

// startQuoteConsumer 行情 topic 驱动一档行情与订单簿，处理失败的消息进入 <topic>.dlq
func startQuoteConsumer(ctx context.Context, cfg *config.Config, producer *mq.KafkaProducer, cmd *application.AnalyticsCommandService) {
	topic := cfg.Analytics.QuoteTopic
	consumer := mq.NewConsumer(cfg.MessageQueue.Kafka, topic).
		WithDeadLetterQueue(mq.NewDeadLetterQueue(producer, topic+".dlq"))
	quotes := messaging.NewQuoteConsumer(func(ctx context.Context, q messaging.QuoteMessage) error {
		return cmd.ApplyQuote(ctx, application.ApplyQuoteCommand{
			InstrumentID: q.InstrumentID,
			Field:        q.Field,
			Value:        q.Value,
			Depth:        q.Depth,
		})
	})
	go func() {
		defer func() { _ = consumer.Close() }()
		if err := consumer.Run(ctx, quotes.Handle); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error(ctx, "quote consumer stopped", "topic", topic, "error", err)
		}
	}()
}

func cleanupOutbox(ctx context.Context, outbox *messaging.OutboxEventPublisher) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := outbox.CleanupProcessedMessages(ctx, time.Now().Add(-outboxRetention))
			if err != nil {
				logger.Warn(ctx, "outbox cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info(ctx, "outbox cleaned", "deleted", n)
			}
		}
	}
}
