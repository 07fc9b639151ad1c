package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/webpushd/webpushd/internal/config"
	"github.com/webpushd/webpushd/internal/handler"
	"github.com/webpushd/webpushd/internal/infra/postgresql"
	"github.com/webpushd/webpushd/internal/infra/postgresql/migrations"
	infraredis "github.com/webpushd/webpushd/internal/infra/redis"
	"github.com/webpushd/webpushd/internal/observability"
	"github.com/webpushd/webpushd/internal/provider"
	"github.com/webpushd/webpushd/internal/queue"
	"github.com/webpushd/webpushd/internal/repository"
	"github.com/webpushd/webpushd/internal/service"
	"github.com/webpushd/webpushd/internal/transport"
	"github.com/webpushd/webpushd/internal/webpush"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	vapidKeys, err := webpush.LoadVAPIDKeys(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubject)
	if err != nil {
		logger.Fatal("vapid key initialization failed", zap.Error(err))
	}

	signer, err := webpush.NewVAPIDSigner(vapidKeys)
	if err != nil {
		logger.Fatal("vapid signer initialization failed", zap.Error(err))
	}

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	rdb, err := infraredis.NewRedis(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis initialization failed", zap.Error(err))
	}
	defer rdb.Close()

	rateLimiter, err := infraredis.NewRedisRateLimiter(rdb, cfg.RateLimitPerSec)
	if err != nil {
		logger.Fatal("rate limiter initialization failed", zap.Error(err))
	}

	broker, err := queue.NewRabbitMQ(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	publisher := queue.NewRabbitMQPublisher(broker)
	defer publisher.Close()

	pushProvider := provider.NewPushServiceProvider(time.Duration(cfg.PushTimeoutSec) * time.Second)
	subscriptions := repository.NewGormSubscriptionRepo(db)

	deliveries, err := service.NewDeliveryService(
		subscriptions,
		signer,
		pushProvider,
		rateLimiter,
		cfg.FanoutConcurrency,
		logger,
	)
	if err != nil {
		logger.Fatal("delivery service initialization failed", zap.Error(err))
	}

	metrics := observability.NewMetrics()
	deliveries.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})
	app.Use(metrics.HTTPMiddleware())

	handler.RegisterHealthRoutes(app, sqlDB, rdb)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if err := handler.RegisterPushRoutes(app, deliveries, publisher); err != nil {
		logger.Fatal("route registration failed", zap.Error(err))
	}

	logger.Info("webpushd api started", zap.Int("port", cfg.APIPort))
	if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Fatal("api server stopped", zap.Error(err))
	}
}
